package middleware

import (
	"context"
	"net/http"

	"github.com/strayhome/secstate"
)

// RequireSigned returns middleware that admits requests on signature and
// expiry alone, via [secstate.Engine.Decode]. The state store is never
// consulted, so the route keeps answering through a store outage — and a
// revoked token keeps working until it expires. Reserve it for read-only
// routes where that trade is acceptable; [Guard] is the default.
func RequireSigned(engine *secstate.Engine) func(http.Handler) http.Handler {
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

			claims, err := engine.Decode(token)
			if err != nil || claims.Kind != secstate.KindAccess {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(withRequestMetadata(r), claimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
