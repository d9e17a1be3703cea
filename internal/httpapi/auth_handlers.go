package httpapi

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/jschappet/heron/internal/audit"
	"github.com/jschappet/heron/internal/auth"
	"github.com/jschappet/heron/internal/store/pg"
	"github.com/jschappet/heron/internal/token"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

const minPasswordLength = 8

// callerContext reuses an identity attached by an upstream gate or
// authenticates the session inline. Anonymous callers get (nil, false).
func (a *API) callerContext(r *http.Request) (*auth.Context, bool) {
	if c, ok := auth.FromContext(r.Context()); ok {
		return c, true
	}
	c, err := a.authn.Authenticate(r)
	if err != nil {
		return nil, false
	}
	return c, true
}

// register creates an inactive account and hands back the verification
// token. Mail delivery is the caller's concern.
func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	username := strings.TrimSpace(req.Username)
	email := strings.TrimSpace(req.Email)
	if username == "" {
		writeError(w, r, http.StatusBadRequest, "validation", "username is required")
		return
	}
	if _, err := mail.ParseAddress(email); err != nil {
		writeError(w, r, http.StatusBadRequest, "validation", "a valid email is required")
		return
	}
	if len(req.Password) < minPasswordLength {
		writeError(w, r, http.StatusBadRequest, "validation", "password must be at least 8 characters")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		internalError(w, r, err)
		return
	}
	user, err := a.store.CreateUser(r.Context(), username, email, hash)
	if err != nil {
		if errors.Is(err, pg.ErrConflict) {
			writeError(w, r, http.StatusConflict, "conflict", "username or email already taken")
			return
		}
		internalError(w, r, err)
		return
	}

	secret, err := a.tokens.Issue(r.Context(), user.ID, token.PurposeVerifyAccount, a.opts.VerifyTokenTTL)
	if err != nil {
		internalError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.register", map[string]any{
		"user_id":  user.ID,
		"username": user.Username,
	})

	writeJSON(w, http.StatusCreated, map[string]any{
		"user":         user,
		"verify_token": secret,
	})
}

// verifyAccount redeems the verification token and activates the
// account.
func (a *API) verifyAccount(w http.ResponseWriter, r *http.Request) {
	secret := chi.URLParam(r, "token")
	userID, err := a.tokens.Verify(r.Context(), secret, token.PurposeVerifyAccount)
	if err != nil {
		if errors.Is(err, token.ErrInvalidToken) {
			writeError(w, r, http.StatusNotFound, "invalid_token", "invalid or expired token")
			return
		}
		internalError(w, r, err)
		return
	}
	if err := a.store.ActivateUser(r.Context(), userID); err != nil {
		internalError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.verify", map[string]any{"user_id": userID})

	writeJSON(w, http.StatusOK, map[string]any{"status": "verified"})
}

// login checks credentials and starts a session. Unknown usernames,
// wrong passwords and inactive accounts all answer the same way.
func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	user, err := a.store.FindUserByUsername(r.Context(), strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, pg.ErrNotFound) {
			writeError(w, r, http.StatusUnauthorized, "unauthorized", "invalid credentials")
			return
		}
		internalError(w, r, err)
		return
	}
	if !user.IsActive || auth.VerifyPassword(user.PasswordHash, req.Password) != nil {
		writeError(w, r, http.StatusUnauthorized, "unauthorized", "invalid credentials")
		return
	}

	if err := a.sessions.SignIn(w, r, user.ID); err != nil {
		internalError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{"user_id": user.ID})

	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	if err := a.sessions.SignOut(w, r); err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "signed_out"})
}

// forgotPassword always answers 202: the response never reveals whether
// the address exists.
func (a *API) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	user, err := a.store.FindUserByEmail(r.Context(), strings.TrimSpace(req.Email))
	if err == nil && user.IsActive {
		secret, issueErr := a.tokens.Issue(r.Context(), user.ID, token.PurposeResetPassword, a.opts.ResetTokenTTL)
		if issueErr == nil {
			_ = audit.LogEvent(r.Context(), "auth.password.forgot", map[string]any{
				"user_id":     user.ID,
				"reset_token": secret,
			})
		}
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"status": "accepted"})
}

func (a *API) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if len(req.Password) < minPasswordLength {
		writeError(w, r, http.StatusBadRequest, "validation", "password must be at least 8 characters")
		return
	}

	userID, err := a.tokens.Verify(r.Context(), req.Token, token.PurposeResetPassword)
	if err != nil {
		if errors.Is(err, token.ErrInvalidToken) {
			writeError(w, r, http.StatusNotFound, "invalid_token", "invalid or expired token")
			return
		}
		internalError(w, r, err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		internalError(w, r, err)
		return
	}
	if err := a.store.UpdatePassword(r.Context(), userID, hash); err != nil {
		internalError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.password.reset", map[string]any{"user_id": userID})

	writeJSON(w, http.StatusOK, map[string]any{"status": "password_updated"})
}
