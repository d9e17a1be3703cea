package httpapi

import (
	"net/http"
	"time"

	"github.com/jschappet/heron/internal/host"
	"github.com/jschappet/heron/internal/roles"
	"github.com/jschappet/heron/internal/token"
)

const serviceName = "heron-api"

func (a *API) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.opts.Version,
	})
}

func (a *API) readyz(w http.ResponseWriter, r *http.Request) {
	if err := a.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.opts.Version,
	})
}

// configIndex describes the resolved host to the client application.
func (a *API) configIndex(w http.ResponseWriter, r *http.Request) {
	h, ok := host.FromContext(r.Context())
	if !ok {
		h = host.Unknown()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"host": map[string]any{
			"id":           h.ID,
			"slug":         h.Slug,
			"host_name":    h.HostName,
			"display_name": h.DisplayName,
			"base_url":     h.BaseURL,
			"active":       h.Active,
		},
		"roles":          roles.Options(),
		"token_purposes": token.Purposes(),
		"version":        a.opts.Version,
	})
}

func (a *API) online(w http.ResponseWriter, r *http.Request) {
	dbOK := a.store.Ping(r.Context()) == nil
	writeJSON(w, http.StatusOK, map[string]any{
		"online":   true,
		"database": dbOK,
		"version":  a.opts.Version,
	})
}

// ping echoes the resolved host so clients can confirm which tenant
// their traffic lands on.
func (a *API) ping(w http.ResponseWriter, r *http.Request) {
	h, ok := host.FromContext(r.Context())
	if !ok {
		h = host.Unknown()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ping": "pong",
		"host": h.HostName,
	})
}

// capabilities lists the routes the caller may use. Anonymous callers
// see only public routes; the listing never includes routes the
// caller's roles would not pass.
func (a *API) capabilities(w http.ResponseWriter, r *http.Request) {
	var callerRoles []roles.Role
	if c, ok := a.callerContext(r); ok {
		callerRoles = c.Roles()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"capabilities": a.registry.Capabilities(callerRoles),
	})
}
