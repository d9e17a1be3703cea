package auth

import "errors"

var (
	// ErrNotAuthenticated covers missing sessions, unknown users and
	// inactive accounts alike; callers cannot tell which.
	ErrNotAuthenticated = errors.New("auth: not authenticated")

	// ErrForbidden means the caller is authenticated but lacks the
	// required role, optionally scoped to one host.
	ErrForbidden = errors.New("auth: forbidden")
)
