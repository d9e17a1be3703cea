package httpapi

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/jschappet/heron/internal/audit"
	"github.com/jschappet/heron/internal/store/pg"
	"github.com/jschappet/heron/internal/token"
)

type emailChangeRequest struct {
	Email string `json:"email"`
}

// profile returns the caller's account and memberships.
func (a *API) profile(w http.ResponseWriter, r *http.Request) {
	c, ok := a.callerContext(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	user, err := a.store.FindUserByID(r.Context(), c.UserID)
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":        user,
		"memberships": c.Memberships,
	})
}

// requestEmailChange stores the new address as pending and issues the
// confirmation token; the address switches only on confirmation.
func (a *API) requestEmailChange(w http.ResponseWriter, r *http.Request) {
	c, ok := a.callerContext(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	var req emailChangeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	email := strings.TrimSpace(req.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		writeError(w, r, http.StatusBadRequest, "validation", "a valid email is required")
		return
	}

	if err := a.store.RequestEmailChange(r.Context(), c.UserID, email); err != nil {
		internalError(w, r, err)
		return
	}
	secret, err := a.tokens.Issue(r.Context(), c.UserID, token.PurposeChangeEmail, a.opts.EmailTokenTTL)
	if err != nil {
		internalError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "profile.email.requested", map[string]any{
		"user_id": c.UserID,
	})

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":        "confirmation_required",
		"confirm_token": secret,
	})
}

// confirmEmailChange redeems the change-email token and promotes the
// pending address.
func (a *API) confirmEmailChange(w http.ResponseWriter, r *http.Request) {
	secret := chi.URLParam(r, "token")
	userID, err := a.tokens.Verify(r.Context(), secret, token.PurposeChangeEmail)
	if err != nil {
		if errors.Is(err, token.ErrInvalidToken) {
			writeError(w, r, http.StatusNotFound, "invalid_token", "invalid or expired token")
			return
		}
		internalError(w, r, err)
		return
	}

	if err := a.store.ConfirmEmailChange(r.Context(), userID); err != nil {
		switch {
		case errors.Is(err, pg.ErrNotFound):
			writeError(w, r, http.StatusNotFound, "not_found", "no pending email change")
		case errors.Is(err, pg.ErrConflict):
			writeError(w, r, http.StatusConflict, "conflict", "email already taken")
		default:
			internalError(w, r, err)
		}
		return
	}

	_ = audit.LogEvent(r.Context(), "profile.email.confirmed", map[string]any{"user_id": userID})

	writeJSON(w, http.StatusOK, map[string]any{"status": "email_updated"})
}
