package auth_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copperline/orderd/internal/auth"
	"github.com/copperline/orderd/internal/model"
)

func TestHashAndVerifyAPIKey(t *testing.T) {
	hash, err := auth.HashAPIKey("test-key-123")
	require.NoError(t, err)
	assert.NotEmpty(t, hash)

	valid, err := auth.VerifyAPIKey("test-key-123", hash)
	require.NoError(t, err)
	assert.True(t, valid)

	valid, err = auth.VerifyAPIKey("wrong-key", hash)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestVerifyAPIKeyBadFormat(t *testing.T) {
	_, err := auth.VerifyAPIKey("key", "not-a-valid-hash")
	assert.Error(t, err)
}

func TestJWTIssueAndValidate(t *testing.T) {
	mgr, err := auth.NewJWTManager("", "", 1*time.Hour)
	require.NoError(t, err)

	client := model.Client{
		ID:       uuid.New(),
		ClientID: "front-desk",
		Role:     model.RoleClerk,
	}

	token, expiresAt, err := mgr.IssueToken(client)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := mgr.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "front-desk", claims.ClientID)
	assert.Equal(t, model.RoleClerk, claims.Role)
	assert.Equal(t, client.ID.String(), claims.Subject)
}

func TestValidateTokenRejectsForeignKey(t *testing.T) {
	issuer, err := auth.NewJWTManager("", "", time.Hour)
	require.NoError(t, err)
	verifier, err := auth.NewJWTManager("", "", time.Hour)
	require.NoError(t, err)

	token, _, err := issuer.IssueToken(model.Client{ID: uuid.New(), ClientID: "x", Role: model.RoleReader})
	require.NoError(t, err)

	// A different manager has a different ephemeral key pair; its public key
	// must not validate this token.
	_, err = verifier.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	mgr, err := auth.NewJWTManager("", "", time.Hour)
	require.NoError(t, err)

	_, err = mgr.ValidateToken("not.a.jwt")
	assert.Error(t, err)
}
