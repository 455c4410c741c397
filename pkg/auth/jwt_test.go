package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestValidator(t *testing.T, secret, issuer string, audience []string) *JWTValidator {
	t.Helper()
	validator, err := NewJWTValidator(JWTConfig{
		SigningMethod: "HS256",
		SecretKey:     secret,
		Issuer:        issuer,
		Audience:      audience,
	})
	require.NoError(t, err)
	return validator
}

func TestGenerateAndValidateToken(t *testing.T) {
	validator := newTestValidator(t, "test-secret", "promptvault-backend", []string{"promptvault"})

	t.Run("RoundTripCarriesClaims", func(t *testing.T) {
		token, err := validator.GenerateToken("user-1", "user@example.com", time.Hour)
		require.NoError(t, err)

		claims, err := validator.ValidateToken("Bearer " + token)
		require.NoError(t, err)
		assert.Equal(t, "user-1", claims.UserID)
		assert.Equal(t, "user@example.com", claims.Email)
		assert.Equal(t, "promptvault-backend", claims.Issuer)
	})

	t.Run("ExpiredTokenRejected", func(t *testing.T) {
		token, err := validator.GenerateToken("user-1", "user@example.com", -time.Minute)
		require.NoError(t, err)

		_, err = validator.ValidateToken(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("WrongSecretRejected", func(t *testing.T) {
		other := newTestValidator(t, "other-secret", "promptvault-backend", []string{"promptvault"})
		token, err := other.GenerateToken("user-1", "user@example.com", time.Hour)
		require.NoError(t, err)

		_, err = validator.ValidateToken(token)
		assert.Error(t, err)
		_, err = other.ValidateToken(token)
		assert.NoError(t, err)
	})

	t.Run("WrongIssuerRejected", func(t *testing.T) {
		other := newTestValidator(t, "test-secret", "someone-else", []string{"promptvault"})
		token, err := other.GenerateToken("user-1", "user@example.com", time.Hour)
		require.NoError(t, err)

		_, err = validator.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidClaims)
	})

	t.Run("WrongAudienceRejected", func(t *testing.T) {
		other := newTestValidator(t, "test-secret", "promptvault-backend", []string{"another-app"})
		token, err := other.GenerateToken("user-1", "user@example.com", time.Hour)
		require.NoError(t, err)

		_, err = validator.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidClaims)
	})

	t.Run("MissingTokenRejected", func(t *testing.T) {
		_, err := validator.ValidateToken("")
		assert.ErrorIs(t, err, ErrMissingToken)

		_, err = validator.ValidateToken("Bearer ")
		assert.ErrorIs(t, err, ErrMissingToken)
	})
}
