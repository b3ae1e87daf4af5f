package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"marketsync/pkg/config"
	"marketsync/pkg/logger"
)

// Role is the resolved caller role for a request.
type Role int

const (
	RoleUnauth Role = iota
	RoleFrontend
	RoleBackend
)

// SecConfig mirrors the security-related configuration driving
// authentication, CORS and rate limiting. Shared by gateway.go and
// limiter.go.
type SecConfig struct {
	AllowedOrigins []string
	RPS            float64
	Burst          int
	IPWhitelist    []string
	BackendKeys    map[string]struct{}
	FrontendKeys   map[string]struct{}
}

type ctxActorKey struct{}

// RequireVerifiedActor verifies the HMAC identity headers and injects the
// verified actor id into the request context. Client-supplied actor ids in
// request bodies are never trusted: mutation policy and ownership checks
// read the actor exclusively from this context. Backend callers (trusted
// server-side services) may state an actor via X-User-ID without a
// signature; when a signature is present it is always verified.
func RequireVerifiedActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role := r.Header.Get("X-Role-Name")
		userID := strings.TrimSpace(r.Header.Get("X-User-ID"))
		sig := strings.TrimSpace(r.Header.Get("X-User-Signature"))

		if role == "backend" && sig == "" {
			if userID != "" {
				r = r.WithContext(context.WithValue(r.Context(), ctxActorKey{}, userID))
			}
			next.ServeHTTP(w, r)
			return
		}

		if sig == "" || userID == "" {
			logger.Warn("missing_identity_headers", "path", r.URL.Path, "remote", r.RemoteAddr)
			http.Error(w, `{"error":"missing identity headers"}`, http.StatusUnauthorized)
			return
		}

		keys := config.GetSigningKeys()
		if len(keys) == 0 {
			logger.Error("no_signing_keys_configured")
			http.Error(w, `{"error":"server misconfigured: no signing secrets available"}`, http.StatusInternalServerError)
			return
		}

		ok := false
		for k := range keys {
			mac := hmac.New(sha256.New, []byte(k))
			mac.Write([]byte(userID))
			expected := hex.EncodeToString(mac.Sum(nil))
			if hmac.Equal([]byte(expected), []byte(sig)) {
				ok = true
				break
			}
		}
		if !ok {
			logger.Warn("invalid_signature", "user", userID)
			http.Error(w, `{"error":"invalid signature"}`, http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), ctxActorKey{}, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ActorFromContext returns the verified actor id or empty string.
func ActorFromContext(ctx context.Context) string {
	if v := ctx.Value(ctxActorKey{}); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
