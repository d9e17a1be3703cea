package auth

import (
	"net/http"

	"github.com/gorilla/sessions"
)

const sessionUserKey = "user_id"

// Sessions wraps the signed cookie store. The session carries exactly
// one key: the authenticated user's id.
type Sessions struct {
	store *sessions.CookieStore
	name  string
}

// NewSessions builds the cookie-backed session layer. The secret signs
// every cookie; rotating it invalidates outstanding sessions.
func NewSessions(secret []byte, name string, maxAge int, secure bool) *Sessions {
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &Sessions{store: store, name: name}
}

// UserID reads the authenticated user id from the request's session.
// Tampered or absent cookies read as "no session".
func (s *Sessions) UserID(r *http.Request) (int64, bool) {
	sess, err := s.store.Get(r, s.name)
	if err != nil {
		return 0, false
	}
	v, ok := sess.Values[sessionUserKey]
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	if !ok || id <= 0 {
		return 0, false
	}
	return id, true
}

// SignIn stores the user id in a fresh session cookie.
func (s *Sessions) SignIn(w http.ResponseWriter, r *http.Request, userID int64) error {
	sess, _ := s.store.Get(r, s.name)
	sess.Values[sessionUserKey] = userID
	return sess.Save(r, w)
}

// SignOut clears the session and expires the cookie.
func (s *Sessions) SignOut(w http.ResponseWriter, r *http.Request) error {
	sess, _ := s.store.Get(r, s.name)
	delete(sess.Values, sessionUserKey)
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}
