package admin

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/info-evry/astro-join/pkg/domainerrors"
)

const testPassword = "correct horse battery staple"

func newTestAuthenticator(t *testing.T) *Authenticator {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	return NewAuthenticator(string(hash), "test-signing-key")
}

func TestLoginAndVerify(t *testing.T) {
	auth := newTestAuthenticator(t)

	token, err := auth.Login(testPassword)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	subject, err := auth.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", subject)
}

func TestLoginWrongPassword(t *testing.T) {
	auth := newTestAuthenticator(t)

	_, err := auth.Login("wrong")
	require.Error(t, err)
	assert.True(t, domainerrors.HasCode(err, domainerrors.CodeUnauthorized))
}

func TestVerifyRejectsGarbage(t *testing.T) {
	auth := newTestAuthenticator(t)

	for _, token := range []string{"", "not.a.jwt", "a.b.c"} {
		_, err := auth.Verify(token)
		assert.Error(t, err, "token %q", token)
	}
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	auth := newTestAuthenticator(t)
	other := newTestAuthenticator(t)
	other.signingKey = []byte("a-different-key")

	token, err := other.Login(testPassword)
	require.NoError(t, err)

	_, err = auth.Verify(token)
	require.Error(t, err)
	assert.True(t, domainerrors.HasCode(err, domainerrors.CodeUnauthorized))
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	auth := newTestAuthenticator(t)

	issued := time.Date(2026, time.January, 1, 8, 0, 0, 0, time.UTC)
	auth.now = func() time.Time { return issued }
	token, err := auth.Login(testPassword)
	require.NoError(t, err)

	auth.now = func() time.Time { return issued.Add(sessionTTL + time.Minute) }
	_, err = auth.Verify(token)
	require.Error(t, err)
	assert.True(t, domainerrors.HasCode(err, domainerrors.CodeUnauthorized))
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	auth := newTestAuthenticator(t)

	token, err := auth.Login(testPassword)
	require.NoError(t, err)

	tampered := token[:len(token)-2] + "xx"
	_, err = auth.Verify(tampered)
	assert.Error(t, err)
}
