package identity_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakline/invest-engine/identity"
)

const testSecret = "test-secret"

func issueTestToken(t *testing.T, secret string, p identity.Profile) string {
	t.Helper()
	token, err := identity.IssueToken(secret, p, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	require.NoError(t, err)
	return token
}

func TestVerify_AcceptsOwnTokens(t *testing.T) {
	v := identity.NewVerifier(testSecret)
	token := issueTestToken(t, testSecret, identity.Profile{
		ID: "u1", Email: "u1@example.com", Name: "User One",
	})

	profile, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", profile.ID)
	assert.Equal(t, "u1@example.com", profile.Email)
	assert.Equal(t, "User One", profile.Name)
}

func TestVerify_RejectsWrongSecret(t *testing.T) {
	v := identity.NewVerifier(testSecret)
	token := issueTestToken(t, "other-secret", identity.Profile{ID: "u1"})

	_, err := v.Verify(token)
	assert.ErrorIs(t, err, identity.ErrInvalidToken)
}

func TestVerify_RejectsExpiredToken(t *testing.T) {
	v := identity.NewVerifier(testSecret)
	token, err := identity.IssueToken(testSecret, identity.Profile{ID: "u1"}, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	})
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, identity.ErrInvalidToken)
}

func TestVerify_RejectsMissingSubject(t *testing.T) {
	v := identity.NewVerifier(testSecret)
	token := issueTestToken(t, testSecret, identity.Profile{Email: "nobody@example.com"})

	_, err := v.Verify(token)
	assert.ErrorIs(t, err, identity.ErrInvalidToken)
}

func TestFromAuthorizationHeader(t *testing.T) {
	v := identity.NewVerifier(testSecret)
	token := issueTestToken(t, testSecret, identity.Profile{ID: "u1"})

	t.Run("bearer prefix required", func(t *testing.T) {
		_, err := v.FromAuthorizationHeader(token)
		assert.ErrorIs(t, err, identity.ErrMissingToken)
	})
	t.Run("empty header", func(t *testing.T) {
		_, err := v.FromAuthorizationHeader("")
		assert.ErrorIs(t, err, identity.ErrMissingToken)
	})
	t.Run("well-formed", func(t *testing.T) {
		profile, err := v.FromAuthorizationHeader("Bearer " + token)
		require.NoError(t, err)
		assert.Equal(t, "u1", profile.ID)
	})
}
