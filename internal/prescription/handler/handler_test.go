package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swasthya/internal/platform/logger"
	"swasthya/internal/prescription/models"
	"swasthya/internal/prescription/service"
	"swasthya/internal/prescription/store"
	"swasthya/pkg/domain"
	dErrors "swasthya/pkg/domain-errors"
)

type staticValidator struct {
	actors map[string]domain.Actor
}

func (v *staticValidator) ValidateToken(token string) (domain.Actor, error) {
	actor, ok := v.actors[token]
	if !ok {
		return domain.Actor{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	return actor, nil
}

type fixture struct {
	router *chi.Mux
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	svc, err := service.New(store.NewInMemory())
	require.NoError(t, err)

	validator := &staticValidator{actors: map[string]domain.Actor{
		"patient-token":    {Role: domain.RoleUser, Identity: "patient@example.com", Name: "Priya"},
		"pharmacist-token": {Role: domain.RolePharmacist, Identity: "pharmacist@example.com", Name: "Kamal"},
	}}

	router := chi.NewRouter()
	New(svc, logger.New(), validator).Register(router)
	return &fixture{router: router}
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func (f *fixture) submitManual(t *testing.T, medicines ...string) models.Prescription {
	t.Helper()
	rr := f.do(t, http.MethodPost, "/api/prescriptions/manual", "patient-token",
		models.SubmitManualInput{Medicines: medicines})
	require.Equal(t, http.StatusCreated, rr.Code)

	var prescription models.Prescription
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &prescription))
	return prescription
}

func TestSubmitUpload(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, http.MethodPost, "/api/prescriptions", "patient-token",
		models.SubmitUploadInput{UploadRef: "rx-0001.jpg", UploadName: "scan.jpg"})
	require.Equal(t, http.StatusCreated, rr.Code)

	var prescription models.Prescription
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &prescription))
	assert.Equal(t, models.KindUpload, prescription.Kind)
	assert.Equal(t, models.StatusPending, prescription.Status)
}

func TestSubmitManual_Invalid(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, http.MethodPost, "/api/prescriptions/manual", "patient-token",
		models.SubmitManualInput{Medicines: []string{"  "}})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestConfirm(t *testing.T) {
	f := newFixture(t)
	prescription := f.submitManual(t, "Napa", "Seclo")

	rr := f.do(t, http.MethodPut, "/api/prescriptions/"+prescription.ID.String()+"/confirm", "pharmacist-token",
		models.ConfirmInput{AllPresent: false, AvailableMedicines: []string{"Napa"}})
	require.Equal(t, http.StatusOK, rr.Code)

	var confirmed models.Prescription
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &confirmed))
	assert.Equal(t, models.StatusConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.Confirmation)
	assert.Equal(t, []string{"Napa"}, confirmed.Confirmation.Medicines)
}

func TestConfirm_PharmacistOnly(t *testing.T) {
	f := newFixture(t)
	prescription := f.submitManual(t, "Napa")

	rr := f.do(t, http.MethodPut, "/api/prescriptions/"+prescription.ID.String()+"/confirm", "patient-token",
		models.ConfirmInput{AllPresent: true})
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestConfirm_Terminal(t *testing.T) {
	f := newFixture(t)
	prescription := f.submitManual(t, "Napa")

	rr := f.do(t, http.MethodPut, "/api/prescriptions/"+prescription.ID.String()+"/reject", "pharmacist-token", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = f.do(t, http.MethodPut, "/api/prescriptions/"+prescription.ID.String()+"/confirm", "pharmacist-token",
		models.ConfirmInput{AllPresent: true})
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestListMine_VersusAll(t *testing.T) {
	f := newFixture(t)
	f.submitManual(t, "Napa")

	rr := f.do(t, http.MethodGet, "/api/prescriptions", "patient-token", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var mine []models.Prescription
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &mine))
	assert.Len(t, mine, 1)

	// The full queue is pharmacist-only.
	rr = f.do(t, http.MethodGet, "/api/prescriptions/all", "patient-token", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = f.do(t, http.MethodGet, "/api/prescriptions/all", "pharmacist-token", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestUnauthorized(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, http.MethodGet, "/api/prescriptions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
