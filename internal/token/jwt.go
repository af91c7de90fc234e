package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"swasthya/pkg/domain"
	dErrors "swasthya/pkg/domain-errors"
)

// Claims represents the JWT claims carried by access tokens issued by the
// auth collaborator. Subject holds the identity email; Role and Name map
// straight onto domain.Actor.
type Claims struct {
	Role string `json:"role"`
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// JWTService validates tokens into typed Actors. It can also mint tokens,
// which the test helpers and development seeding use; production issuance
// belongs to the external auth service sharing the signing key.
type JWTService struct {
	signingKey []byte
	issuer     string
}

func NewJWTService(signingKey, issuer string) *JWTService {
	return &JWTService{signingKey: []byte(signingKey), issuer: issuer}
}

// GenerateToken mints a signed token for the given actor.
func (s *JWTService) GenerateToken(actor domain.Actor, expiresIn time.Duration) (string, error) {
	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: string(actor.Role),
		Name: actor.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.Identity,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	})
	return newToken.SignedString(s.signingKey)
}

// ValidateToken parses and verifies a token, returning the typed Actor.
func (s *JWTService) ValidateToken(tokenString string) (domain.Actor, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Actor{}, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return domain.Actor{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return domain.Actor{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	actor, err := domain.NewActor(domain.Role(claims.Role), claims.Subject, claims.Name)
	if err != nil {
		return domain.Actor{}, dErrors.New(dErrors.CodeUnauthorized, "token claims do not form a valid actor")
	}
	return actor, nil
}
