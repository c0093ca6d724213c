// Package admin authenticates association administrators. Login checks the
// configured bcrypt password hash and issues a short-lived HS256 session
// token; the admin middleware verifies it on every dashboard API call.
package admin

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/info-evry/astro-join/pkg/domainerrors"
)

const sessionTTL = 12 * time.Hour

type Authenticator struct {
	passwordHash []byte
	signingKey   []byte
	now          func() time.Time
}

func NewAuthenticator(passwordHash, signingKey string) *Authenticator {
	return &Authenticator{
		passwordHash: []byte(passwordHash),
		signingKey:   []byte(signingKey),
		now:          time.Now,
	}
}

// Login verifies the admin password and returns a signed session token.
func (a *Authenticator) Login(password string) (string, error) {
	if err := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)); err != nil {
		return "", domainerrors.New(domainerrors.CodeUnauthorized, "invalid credentials")
	}
	now := a.now()
	claims := jwt.RegisteredClaims{
		Subject:   "admin",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(sessionTTL)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.signingKey)
	if err != nil {
		return "", domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to sign session token")
	}
	return token, nil
}

// Verify parses a session token and returns its subject.
func (a *Authenticator) Verify(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return a.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithTimeFunc(a.now))
	if err != nil || !token.Valid {
		return "", domainerrors.New(domainerrors.CodeUnauthorized, "invalid or expired session token")
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", domainerrors.New(domainerrors.CodeUnauthorized, "invalid session token claims")
	}
	return claims.Subject, nil
}
