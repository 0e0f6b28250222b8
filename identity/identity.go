/*
Package identity is the boundary with the external auth provider.

The provider owns sign-in, sign-up, and sessions; this package only
verifies the bearer token it issues (HS256, shared secret) and extracts
the stable user id, email, and display name. Credentials never reach
this codebase.
*/
package identity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid bearer token")
)

// Profile is what the identity provider asserts about the caller.
type Profile struct {
	ID    string // stable, externally issued
	Email string
	Name  string
}

type claims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// Verifier validates provider-issued tokens.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// FromAuthorizationHeader parses "Bearer <token>" and verifies the token.
func (v *Verifier) FromAuthorizationHeader(header string) (Profile, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return Profile{}, ErrMissingToken
	}
	return v.Verify(strings.TrimPrefix(header, prefix))
}

// Verify checks signature, algorithm, and expiry, then extracts the profile.
func (v *Verifier) Verify(tokenString string) (Profile, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return Profile{}, ErrInvalidToken
	}
	if c.Subject == "" {
		return Profile{}, ErrInvalidToken
	}
	return Profile{ID: c.Subject, Email: c.Email, Name: c.Name}, nil
}

// IssueToken mints a token the Verifier accepts. Dev/test convenience;
// production tokens come from the provider.
func IssueToken(secret string, p Profile, registered jwt.RegisteredClaims) (string, error) {
	registered.Subject = p.ID
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email:            p.Email,
		Name:             p.Name,
		RegisteredClaims: registered,
	})
	return token.SignedString([]byte(secret))
}
