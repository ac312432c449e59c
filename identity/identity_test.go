package identity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"firebase.google.com/go/v4/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTokens map[string]*auth.Token

func (f fakeTokens) VerifyIDToken(_ context.Context, token string) (*auth.Token, error) {
	if t, ok := f[token]; ok {
		return t, nil
	}
	return nil, errors.New("token expired")
}

func TestStaticVerifier(t *testing.T) {
	v := NewStaticVerifier("s3cret")

	p, err := v.Verify(context.Background(), "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "static", p.UID)

	_, err = v.Verify(context.Background(), "guess")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = NewStaticVerifier("").Verify(context.Background(), "")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestFirebaseVerifier(t *testing.T) {
	v := NewFirebaseVerifier(fakeTokens{
		"good": {UID: "uid-1", Claims: map[string]interface{}{"email": "dre@example.com"}},
	})

	p, err := v.Verify(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, Principal{UID: "uid-1", Email: "dre@example.com"}, p)

	_, err = v.Verify(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Contains(t, err.Error(), "token expired")

	_, err = v.Verify(context.Background(), "")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestRequirePrincipal(t *testing.T) {
	handler := RequirePrincipal(NewStaticVerifier("s3cret"), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFrom(r.Context())
		require.True(t, ok)
		_, _ = w.Write([]byte(p.UID))
	}))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "valid bearer", header: "Bearer s3cret", status: http.StatusOK},
		{name: "case-insensitive scheme", header: "bearer s3cret", status: http.StatusOK},
		{name: "wrong token", header: "Bearer nope", status: http.StatusUnauthorized},
		{name: "missing header", header: "", status: http.StatusUnauthorized},
		{name: "basic scheme", header: "Basic s3cret", status: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/cards", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, "static", rec.Body.String())
			} else {
				assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestAnonymous_AllowsMissingToken(t *testing.T) {
	handler := RequirePrincipal(Anonymous(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, _ := PrincipalFrom(r.Context())
		_, _ = w.Write([]byte(p.UID))
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "local", rec.Body.String())
}
