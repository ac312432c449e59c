package identity

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// RequirePrincipal rejects requests whose bearer token v does not accept.
// Accepted principals are available through PrincipalFrom.
func RequirePrincipal(v Verifier, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r.Header.Get("Authorization"))
			p, err := v.Verify(r.Context(), token)
			if err != nil {
				logger.Debug("request rejected", zap.String("path", r.URL.Path), zap.Error(err))
				unauthorized(w, "invalid or missing bearer token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// bearerToken returns "" when the header is missing or not a bearer
// credential.
func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
