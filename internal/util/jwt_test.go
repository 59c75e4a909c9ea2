package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundtrip(t *testing.T) {
	token, err := CreateToken(42, "user@example.com", "user", "secret")
	require.NoError(t, err)

	claims, err := ValidateJWT(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "user@example.com", claims.Email)
	assert.Equal(t, "user", claims.Role)
	assert.WithinDuration(t, time.Now().Add(30*24*time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestValidateJWTWrongSecret(t *testing.T) {
	token, err := CreateToken(42, "user@example.com", "user", "secret")
	require.NoError(t, err)

	_, err = ValidateJWT(token, "other")
	assert.Error(t, err)
}

func TestValidateJWTGarbage(t *testing.T) {
	_, err := ValidateJWT("not.a.token", "secret")
	assert.Error(t, err)
}

func TestReviewTokenRoundtrip(t *testing.T) {
	token, err := CreateReviewToken(7, "approve", "secret")
	require.NoError(t, err)

	claims, err := ValidateReviewToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.RequestID)
	assert.Equal(t, "approve", claims.Action)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestValidateReviewTokenWrongSecret(t *testing.T) {
	token, err := CreateReviewToken(7, "reject", "secret")
	require.NoError(t, err)

	_, err = ValidateReviewToken(token, "other")
	assert.Error(t, err)
}
