package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jschappet/heron/internal/audit"
	"github.com/jschappet/heron/internal/auth"
	"github.com/jschappet/heron/internal/host"
	"github.com/jschappet/heron/internal/roles"
	"github.com/jschappet/heron/internal/store/pg"
)

type grantMembershipRequest struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func (a *API) listHosts(w http.ResponseWriter, r *http.Request) {
	hosts, err := a.store.ListHosts(r.Context())
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hosts": hosts})
}

func (a *API) activateHost(w http.ResponseWriter, r *http.Request) {
	a.setHostActive(w, r, true)
}

func (a *API) deactivateHost(w http.ResponseWriter, r *http.Request) {
	a.setHostActive(w, r, false)
}

func (a *API) setHostActive(w http.ResponseWriter, r *http.Request, active bool) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "validation", "host id must be an integer")
		return
	}

	if active {
		err = a.store.ActivateHost(r.Context(), id)
	} else {
		err = a.store.DeactivateHost(r.Context(), id)
	}
	if err != nil {
		if errors.Is(err, pg.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "not_found", "host not found")
			return
		}
		internalError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "admin.host.active", map[string]any{
		"host_id": id,
		"active":  active,
	})

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// requireHostAdmin binds the admin gate to the resolved host: the
// caller must hold admin on this host specifically, not just anywhere.
func (a *API) requireHostAdmin(w http.ResponseWriter, r *http.Request) (int64, bool) {
	hostID, err := host.RequireID(r.Context())
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", "no host bound to request")
		return 0, false
	}
	c, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized", "authentication required")
		return 0, false
	}
	if err := auth.RequireRoleForHost(c, hostID, []roles.Role{roles.Admin}); err != nil {
		writeError(w, r, http.StatusForbidden, "forbidden", "admin access required for this host")
		return 0, false
	}
	return hostID, true
}

func (a *API) listMemberships(w http.ResponseWriter, r *http.Request) {
	hostID, ok := a.requireHostAdmin(w, r)
	if !ok {
		return
	}
	rows, err := a.store.ListMemberships(r.Context(), hostID)
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"memberships": rows})
}

func (a *API) grantMembership(w http.ResponseWriter, r *http.Request) {
	hostID, ok := a.requireHostAdmin(w, r)
	if !ok {
		return
	}

	var req grantMembershipRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if req.UserID <= 0 {
		writeError(w, r, http.StatusBadRequest, "validation", "user_id is required")
		return
	}
	role, err := roles.Parse(req.Role)
	if err != nil || role == roles.Public {
		writeError(w, r, http.StatusBadRequest, "validation", "unknown role")
		return
	}

	id, err := a.store.CreateMembership(r.Context(), req.UserID, hostID, role)
	if err != nil {
		switch {
		case errors.Is(err, pg.ErrConflict):
			writeError(w, r, http.StatusConflict, "conflict", "membership already exists")
		case errors.Is(err, pg.ErrNotFound):
			writeError(w, r, http.StatusNotFound, "not_found", "user or host not found")
		default:
			internalError(w, r, err)
		}
		return
	}

	_ = audit.LogEvent(r.Context(), "admin.membership.grant", map[string]any{
		"membership_id": id,
		"user_id":       req.UserID,
		"host_id":       hostID,
		"role":          role.Value(),
	})

	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (a *API) deactivateMembership(w http.ResponseWriter, r *http.Request) {
	hostID, ok := a.requireHostAdmin(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "validation", "membership id must be an integer")
		return
	}

	if err := a.store.DeactivateMembership(r.Context(), id); err != nil {
		if errors.Is(err, pg.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "not_found", "membership not found")
			return
		}
		internalError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "admin.membership.deactivate", map[string]any{
		"membership_id": id,
		"host_id":       hostID,
	})

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.store.ListUsers(r.Context())
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (a *API) deactivateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "validation", "user id must be an integer")
		return
	}
	if err := a.store.DeactivateUser(r.Context(), id); err != nil {
		if errors.Is(err, pg.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "not_found", "user not found")
			return
		}
		internalError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "admin.user.deactivate", map[string]any{"user_id": id})

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
