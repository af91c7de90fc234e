package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swasthya/pkg/domain"
	dErrors "swasthya/pkg/domain-errors"
)

func TestGenerateAndValidate(t *testing.T) {
	svc := NewJWTService("test-signing-key", "swasthya")
	actor := domain.Actor{Role: domain.RolePharmacist, Identity: "pharmacist@example.com", Name: "Meera"}

	tokenString, err := svc.GenerateToken(actor, time.Hour)
	require.NoError(t, err)

	got, err := svc.ValidateToken(tokenString)
	require.NoError(t, err)
	assert.Equal(t, actor, got)
	assert.True(t, got.IsPharmacist())
}

func TestValidate_Expired(t *testing.T) {
	svc := NewJWTService("test-signing-key", "swasthya")
	actor := domain.Actor{Role: domain.RoleUser, Identity: "user@example.com"}

	tokenString, err := svc.GenerateToken(actor, -time.Minute)
	require.NoError(t, err)

	_, err = svc.ValidateToken(tokenString)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestValidate_WrongKey(t *testing.T) {
	issuer := NewJWTService("issuer-key", "swasthya")
	verifier := NewJWTService("other-key", "swasthya")

	tokenString, err := issuer.GenerateToken(domain.Actor{Role: domain.RoleUser, Identity: "user@example.com"}, time.Hour)
	require.NoError(t, err)

	_, err = verifier.ValidateToken(tokenString)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestValidate_Garbage(t *testing.T) {
	svc := NewJWTService("test-signing-key", "swasthya")
	_, err := svc.ValidateToken("not-a-token")
	require.Error(t, err)
}

// A structurally valid token whose claims don't form a valid actor (unknown
// role) must be rejected rather than producing a zero-role Actor.
func TestValidate_InvalidRoleClaim(t *testing.T) {
	svc := NewJWTService("test-signing-key", "swasthya")
	tokenString, err := svc.GenerateToken(domain.Actor{Role: domain.Role("superadmin"), Identity: "x@example.com"}, time.Hour)
	require.NoError(t, err)

	_, err = svc.ValidateToken(tokenString)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}
