package utils

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerifySessionToken(t *testing.T) {
	token, err := IssueSessionToken("sess-1", "secret", time.Hour)
	require.NoError(t, err)

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	claims, err := VerifyToken(r, "secret")
	require.NoError(t, err)

	id, err := SessionIDFromClaims(claims)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", id)
}

func TestVerifyToken_MissingHeader(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	_, err := VerifyToken(r, "secret")
	assert.ErrorIs(t, err, ErrMissingAuthHeader)
}

func TestVerifyToken_WrongSecret(t *testing.T) {
	token, err := IssueSessionToken("sess-1", "secret", time.Hour)
	require.NoError(t, err)

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	_, err = VerifyToken(r, "other-secret")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyToken_Expired(t *testing.T) {
	token, err := IssueSessionToken("sess-1", "secret", -time.Minute)
	require.NoError(t, err)

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	_, err = VerifyToken(r, "secret")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
