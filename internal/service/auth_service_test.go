package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-portal-api/internal/models"
	appErrors "github.com/noah-isme/sma-portal-api/pkg/errors"
)

func signToken(t *testing.T, secret string, claims *models.JWTClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestAuthServiceValidateToken(t *testing.T) {
	svc := NewAuthService(nil, AuthConfig{AccessTokenSecret: "secret", Issuer: "sma-portal"})

	token := signToken(t, "secret", &models.JWTClaims{
		UserID: "editor-1",
		Role:   models.RoleEditor,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "sma-portal",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "editor-1", claims.UserID)
	assert.Equal(t, models.RoleEditor, claims.Role)
}

func TestAuthServiceRejectsBadTokens(t *testing.T) {
	svc := NewAuthService(nil, AuthConfig{AccessTokenSecret: "secret", Issuer: "sma-portal"})

	cases := map[string]string{
		"wrong secret": signToken(t, "other", &models.JWTClaims{UserID: "u", RegisteredClaims: jwt.RegisteredClaims{Issuer: "sma-portal"}}),
		"wrong issuer": signToken(t, "secret", &models.JWTClaims{UserID: "u", RegisteredClaims: jwt.RegisteredClaims{Issuer: "elsewhere"}}),
		"expired": signToken(t, "secret", &models.JWTClaims{UserID: "u", RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "sma-portal",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		}}),
		"missing subject": signToken(t, "secret", &models.JWTClaims{RegisteredClaims: jwt.RegisteredClaims{Issuer: "sma-portal"}}),
		"garbage":         "not-a-token",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
		})
	}
}
