package host

import (
	"net/http"
)

// headerHost picks the host string for resolution, preferring the
// forwarded header over the direct one. Trusting X-Forwarded-Host is a
// deployment precondition: a controlled reverse proxy must strip or
// rewrite it from untrusted clients.
func headerHost(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-Host"); fwd != "" {
		return fwd
	}
	return r.Host
}

// Middleware resolves the request's tenant and stamps it on the context
// before any handler runs. A missing host header is the only fatal
// condition (400); every other path succeeds, possibly into a freshly
// auto-provisioned inactive tenant or the synthetic unknown one.
func Middleware(resolver *Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := headerHost(r)
			if Normalize(raw) == "" {
				http.Error(w, "missing host header", http.StatusBadRequest)
				return
			}
			info := resolver.Resolve(r.Context(), raw)
			next.ServeHTTP(w, r.WithContext(WithInfo(r.Context(), info)))
		})
	}
}
