package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/strayhome/secstate"
)

// RequireLease returns middleware that admits a request only when the
// authenticated principal holds the edit lease on the record resolve names.
// It must run after [Guard], which supplies the principal.
//
// A record with no live lease answers 428: the client has to acquire before
// editing. A record held by someone else answers 423 naming the holder.
func RequireLease(engine *secstate.Engine, resolve func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil || resolve == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			recordID := resolve(r)
			if recordID == "" {
				http.Error(w, "record id required", http.StatusBadRequest)
				return
			}

			status, err := engine.LeaseStatus(r.Context(), recordID)
			if err != nil {
				if errors.Is(err, secstate.ErrStoreUnavailable) {
					http.Error(w, "lease state unavailable", http.StatusServiceUnavailable)
					return
				}
				http.Error(w, "lease check failed", http.StatusInternalServerError)
				return
			}

			switch {
			case !status.Held:
				http.Error(w, "edit lease required", http.StatusPreconditionRequired)
			case status.Holder != claims.Subject:
				http.Error(w, fmt.Sprintf("record locked by %s", status.Holder), http.StatusLocked)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
