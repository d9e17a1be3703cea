package auth

import (
	"encoding/json"
	"errors"
	"net/http"
)

// RequireAdmin gates a route subtree to admin users. An identity already
// attached by an earlier guard is reused; otherwise the source is asked
// to authenticate. Unauthenticated requests get 401, non-admins 403.
//
// This check is deliberately tenant-blind: platform administration spans
// hosts. Host-scoped handlers must still call RequireRoleForHost with
// the resolved host id.
func RequireAdmin(source ContextSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, ok := FromContext(r.Context())
			if !ok {
				var err error
				c, err = source.Authenticate(r)
				if err != nil {
					if errors.Is(err, ErrNotAuthenticated) {
						denyJSON(w, http.StatusUnauthorized, "authentication required")
						return
					}
					denyJSON(w, http.StatusInternalServerError, "internal error")
					return
				}
				r = r.WithContext(WithContext(r.Context(), c))
			}
			if !c.IsAdmin() {
				denyJSON(w, http.StatusForbidden, "admin access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func denyJSON(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
