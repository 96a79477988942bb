// internal/utils/jwt_test.go
package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	SetJWTSecret("jwt-test-secret")

	token, err := GenerateJWT(42, "Ana Ionescu", "professor", 1)
	require.NoError(t, err)

	claims, err := ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "Ana Ionescu", claims.Name)
	assert.Equal(t, "professor", claims.Role)
	assert.Equal(t, "thesisflow", claims.Issuer)
	assert.Equal(t, "42", claims.Subject)
}

func TestJWTExpired(t *testing.T) {
	SetJWTSecret("jwt-test-secret")

	token, err := GenerateJWT(7, "Expired", "student", -1)
	require.NoError(t, err)

	_, err = ValidateJWT(token)
	assert.Error(t, err)
}

func TestJWTWrongSecret(t *testing.T) {
	SetJWTSecret("jwt-test-secret")
	token, err := GenerateJWT(7, "Someone", "student", 1)
	require.NoError(t, err)

	SetJWTSecret("a-different-secret")
	_, err = ValidateJWT(token)
	assert.Error(t, err)
}

func TestJWTMalformed(t *testing.T) {
	SetJWTSecret("jwt-test-secret")

	_, err := ValidateJWT("not.a.token")
	assert.Error(t, err)
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	SetJWTSecret("jwt-test-secret")

	token, err := GenerateRefreshToken(99, 24)
	require.NoError(t, err)

	userID, err := ValidateRefreshToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(99), userID)
}

func TestRefreshTokenExpired(t *testing.T) {
	SetJWTSecret("jwt-test-secret")

	token, err := GenerateRefreshToken(99, -1)
	require.NoError(t, err)

	_, err = ValidateRefreshToken(token)
	assert.Error(t, err)
}
