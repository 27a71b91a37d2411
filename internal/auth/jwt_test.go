package auth

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	svc := NewJWTService("secret-key", "shoplens")
	userID := uuid.New().String()

	token, err := svc.GenerateAccessToken(userID, "ana@example.com", "Ana")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "ana@example.com", claims.Email)
	assert.Equal(t, "Ana", claims.Name)
	assert.Equal(t, "shoplens", claims.Issuer)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	token, err := NewJWTService("secret-a", "shoplens").GenerateAccessToken(uuid.New().String(), "a@b.co", "A")
	require.NoError(t, err)

	_, err = NewJWTService("secret-b", "shoplens").ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	svc := NewJWTService("secret-key", "shoplens")
	token, err := svc.GenerateAccessToken(uuid.New().String(), "a@b.co", "A")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	tampered := parts[1][:len(parts[1])-2] + "ab"
	if tampered == parts[1] {
		tampered = parts[1][:len(parts[1])-2] + "cd"
	}
	parts[1] = tampered

	_, err = svc.ValidateToken(strings.Join(parts, "."))
	assert.Error(t, err)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc := NewJWTService("secret-key", "shoplens")
	_, err := svc.ValidateToken("not-a-token")
	assert.Error(t, err)
}

func TestExtractTokenFromBearer(t *testing.T) {
	assert.Equal(t, "abc123", ExtractTokenFromBearer("Bearer abc123"))
	assert.Empty(t, ExtractTokenFromBearer("abc123"))
	assert.Empty(t, ExtractTokenFromBearer("Bearer"))
	assert.Empty(t, ExtractTokenFromBearer(""))
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery staple", hash)

	assert.True(t, CheckPassword("correct horse battery staple", hash))
	assert.False(t, CheckPassword("wrong password", hash))
}
