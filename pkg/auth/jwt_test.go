package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndVerifyToken(t *testing.T) {
	verifier := NewTokenVerifier("test-secret", time.Hour)
	userID := uuid.New()

	token, err := verifier.GenerateToken(userID, "alice")
	require.NoError(t, err)

	claims, err := verifier.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "alice", claims.DisplayName)
	assert.Equal(t, "whispr", claims.Issuer)
}

func TestVerifyTokenRejectsWrongSecret(t *testing.T) {
	issuer := NewTokenVerifier("secret-a", time.Hour)
	verifier := NewTokenVerifier("secret-b", time.Hour)

	token, err := issuer.GenerateToken(uuid.New(), "alice")
	require.NoError(t, err)

	_, err = verifier.VerifyToken(token)
	assert.Error(t, err)
}

func TestVerifyTokenRejectsExpired(t *testing.T) {
	verifier := NewTokenVerifier("test-secret", -time.Minute)

	token, err := verifier.GenerateToken(uuid.New(), "alice")
	require.NoError(t, err)

	_, err = verifier.VerifyToken(token)
	assert.Error(t, err)
}

func TestVerifyTokenRejectsGarbage(t *testing.T) {
	verifier := NewTokenVerifier("test-secret", time.Hour)

	_, err := verifier.VerifyToken("not-a-token")
	assert.Error(t, err)
}
