package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"mediadrop/internal/logging"
	"mediadrop/internal/metrics"

	"golang.org/x/crypto/bcrypt"
)

// BearerAuth returns a middleware that requires "Authorization: Bearer <token>"
// where token matches the bcrypt hash. An empty hash disables the check.
// CORS preflight requests pass through unauthenticated.
func BearerAuth(tokenHash string) func(http.Handler) http.Handler {
	if tokenHash == "" {
		return func(next http.Handler) http.Handler { return next }
	}

	v := &tokenVerifier{hash: []byte(tokenHash)}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := bearerToken(r)
			if !ok || !v.verify(token) {
				metrics.UploadsRejectedTotal.WithLabelValues("unauthorized").Inc()
				logging.Debug("Rejected unauthenticated %s %s from %s",
					r.Method, sanitizeLogField(r.URL.Path), sanitizeLogField(getClientIP(r)))
				w.Header().Set("WWW-Authenticate", `Bearer realm="mediadrop"`)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// tokenVerifier remembers the SHA-256 of the last accepted token so repeat
// requests skip the bcrypt comparison.
type tokenVerifier struct {
	hash []byte

	mu       sync.RWMutex
	accepted [sha256.Size]byte
	cached   bool
}

func (v *tokenVerifier) verify(token string) bool {
	sum := sha256.Sum256([]byte(token))

	v.mu.RLock()
	hit := v.cached && subtle.ConstantTimeCompare(sum[:], v.accepted[:]) == 1
	v.mu.RUnlock()
	if hit {
		return true
	}

	if bcrypt.CompareHashAndPassword(v.hash, []byte(token)) != nil {
		return false
	}

	v.mu.Lock()
	v.accepted = sum
	v.cached = true
	v.mu.Unlock()
	return true
}
