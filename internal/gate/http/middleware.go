package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/abraham-of-london/circlegate/pkg/cryptox"
	"github.com/abraham-of-london/circlegate/pkg/httpx"
	"github.com/abraham-of-london/circlegate/pkg/ratelimit"
	"github.com/abraham-of-london/circlegate/pkg/slogx"
)

// RateLimit gates a route on the limiter under the given policy, keyed by
// client IP. Decision headers are emitted on every response; a denial answers
// 429 with Retry-After and never reaches the wrapped handler.
func RateLimit(limiter *ratelimit.Limiter, policy ratelimit.Policy) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identifier := ratelimit.ClientIP(r.Header, r.RemoteAddr)
			res := limiter.Check(r.Context(), identifier, policy)

			for name, value := range ratelimit.Headers(res) {
				w.Header().Set(name, value)
			}

			if !res.Allowed {
				httpx.WriteJSON(w, http.StatusTooManyRequests, errorResponse{
					Reason: "Too many requests",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// AdminAuth admits requests carrying either the static admin key (verified
// against its argon2id hash) or an HS256 bearer token signed with the admin
// JWT secret. Both mechanisms are optional; with neither configured every
// admin route answers 401.
func AdminAuth(adminKeyHash, jwtSecret string) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := slogx.FromContext(r.Context())

			token := bearerToken(r)
			if token == "" {
				writeAdminUnauthorized(w)
				return
			}

			// A JWT has two dots; anything else is treated as the static key.
			if strings.Count(token, ".") == 2 && jwtSecret != "" {
				if verifyAdminJWT(token, jwtSecret) {
					ctx := context.WithValue(r.Context(), httpx.CtxKeyAdmin, "jwt")
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
				log.Warn("admin jwt verification failed")
				writeAdminUnauthorized(w)
				return
			}

			if adminKeyHash != "" {
				if err := cryptox.VerifySecret(token, adminKeyHash); err == nil {
					ctx := context.WithValue(r.Context(), httpx.CtxKeyAdmin, "api_key")
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
				log.Warn("admin key verification failed")
			}

			writeAdminUnauthorized(w)
		})
	}
}

func bearerToken(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer"))
}

func verifyAdminJWT(token, secret string) bool {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	return err == nil && parsed.Valid
}

func writeAdminUnauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	httpx.WriteJSON(w, http.StatusUnauthorized, errorResponse{Reason: "Unauthorized"})
}
