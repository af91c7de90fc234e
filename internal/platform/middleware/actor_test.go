package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swasthya/internal/platform/logger"
	"swasthya/pkg/domain"
	dErrors "swasthya/pkg/domain-errors"
)

type fakeValidator struct {
	actors map[string]domain.Actor
}

func (v fakeValidator) ValidateToken(token string) (domain.Actor, error) {
	actor, ok := v.actors[token]
	if !ok {
		return domain.Actor{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	return actor, nil
}

func protectedEcho(t *testing.T, validator TokenValidator) http.Handler {
	t.Helper()
	echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := GetActor(r.Context())
		require.True(t, ok)
		w.Write([]byte(actor.Identity))
	})
	return RequireActor(validator, logger.New())(echo)
}

func TestRequireActor(t *testing.T) {
	validator := fakeValidator{actors: map[string]domain.Actor{
		"good-token": {Role: domain.RoleUser, Identity: "user@example.com"},
	}}
	handler := protectedEcho(t, validator)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "user@example.com", rr.Body.String())
}

func TestRequireActor_MissingHeader(t *testing.T) {
	handler := protectedEcho(t, fakeValidator{})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRequireActor_MalformedHeader(t *testing.T) {
	handler := protectedEcho(t, fakeValidator{})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Token abc")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRequireActor_InvalidToken(t *testing.T) {
	handler := protectedEcho(t, fakeValidator{})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer bogus")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRequirePharmacist(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := RequirePharmacist(logger.New())(ok)

	pharmacist := domain.Actor{Role: domain.RolePharmacist, Identity: "pharmacist@example.com"}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithActor(req.Context(), pharmacist))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	patient := domain.Actor{Role: domain.RoleUser, Identity: "user@example.com"}
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithActor(req.Context(), patient))
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}
