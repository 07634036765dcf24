package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/strayhome/secstate"
)

type claimsContextKey struct{}

// ClaimsFromContext returns the claims a guard attached to the request
// context, or false when the request never passed a guard.
func ClaimsFromContext(ctx context.Context) (*secstate.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*secstate.Claims)
	return claims, ok
}

// Guard returns middleware that admits only requests carrying a valid access
// token. Validated claims are injected into the request context for handlers
// and later middleware.
func Guard(engine *secstate.Engine) func(http.Handler) http.Handler {
	return RequireKind(engine, secstate.KindAccess)
}

// RequireKind is the generalized guard: it admits only requests whose bearer
// token validates as the given kind. Single-use kinds are consumed by the
// validation, so a guard over invitation or reset tokens admits each token
// exactly once.
func RequireKind(engine *secstate.Engine, kind secstate.Kind) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := withRequestMetadata(r)
			claims, err := engine.Validate(ctx, token, kind)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx = context.WithValue(ctx, claimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// withRequestMetadata stamps the caller's IP and correlation ID into the
// request context so engine audit events can attribute the call.
func withRequestMetadata(r *http.Request) context.Context {
	ctx := r.Context()

	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	if ip != "" {
		ctx = secstate.WithClientIP(ctx, ip)
	}
	if requestID := r.Header.Get("X-Request-Id"); requestID != "" {
		ctx = secstate.WithRequestID(ctx, requestID)
	}

	return ctx
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
