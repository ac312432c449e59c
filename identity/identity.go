// Package identity resolves the caller of an API request from a bearer
// token.
//
// Three verifiers exist:
//
//   - Anonymous accepts every request as the same local principal
//   - StaticVerifier compares the token with one shared secret
//   - FirebaseVerifier checks Firebase ID tokens with the Admin SDK
//
// Identity never affects the payout math. The submitter of a revenue event
// is chosen by name in the request body, as the dashboard form does.
package identity

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"firebase.google.com/go/v4/auth"
)

var ErrUnauthenticated = errors.New("unauthenticated")

// Principal is the authenticated caller.
type Principal struct {
	UID   string `json:"uid"`
	Email string `json:"email,omitempty"`
}

// Verifier turns a bearer token into a principal.
type Verifier interface {
	Verify(ctx context.Context, token string) (Principal, error)
}

// =============================================================================
// ANONYMOUS
// =============================================================================

type anonymous struct{}

// Anonymous returns a verifier that accepts any token, including none.
func Anonymous() Verifier { return anonymous{} }

func (anonymous) Verify(context.Context, string) (Principal, error) {
	return Principal{UID: "local"}, nil
}

// =============================================================================
// STATIC TOKEN
// =============================================================================

type StaticVerifier struct {
	token string
}

func NewStaticVerifier(token string) *StaticVerifier {
	return &StaticVerifier{token: token}
}

func (v *StaticVerifier) Verify(_ context.Context, token string) (Principal, error) {
	if v.token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(v.token)) != 1 {
		return Principal{}, ErrUnauthenticated
	}
	return Principal{UID: "static"}, nil
}

// =============================================================================
// FIREBASE
// =============================================================================

// TokenVerifier is the part of *auth.Client used here.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

type FirebaseVerifier struct {
	client TokenVerifier
}

func NewFirebaseVerifier(client TokenVerifier) *FirebaseVerifier {
	return &FirebaseVerifier{client: client}
}

func (v *FirebaseVerifier) Verify(ctx context.Context, token string) (Principal, error) {
	if token == "" {
		return Principal{}, ErrUnauthenticated
	}
	decoded, err := v.client.VerifyIDToken(ctx, token)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	p := Principal{UID: decoded.UID}
	if email, ok := decoded.Claims["email"].(string); ok {
		p.Email = email
	}
	return p, nil
}

// =============================================================================
// CONTEXT
// =============================================================================

type principalKey struct{}

// WithPrincipal stores p on ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom retrieves the authenticated caller.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
