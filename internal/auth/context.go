// Package auth turns a session cookie into a role-aware identity and
// enforces role requirements. Construction of a Context is itself the
// authentication gate: any failure yields ErrNotAuthenticated and no
// partial context.
package auth

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/jschappet/heron/internal/obs"
	"github.com/jschappet/heron/internal/roles"
)

// Membership is one tenant-scoped role grant. Only active memberships
// are ever loaded.
type Membership struct {
	HostID int64      `json:"host_id"`
	Role   roles.Role `json:"role"`
}

// Context is the per-request authenticated identity: the user id plus
// every active membership the user holds across all hosts. Filtering to
// the current host happens at the decision point, not at load time.
type Context struct {
	UserID      int64        `json:"user_id"`
	Memberships []Membership `json:"memberships"`
}

// Roles flattens the memberships to a role list. Duplicates are possible
// when the user holds the same role on several hosts.
func (c *Context) Roles() []roles.Role {
	out := make([]roles.Role, 0, len(c.Memberships))
	for _, m := range c.Memberships {
		out = append(out, m.Role)
	}
	return out
}

// IsAdmin reports an admin membership on any host. Tenant-blind: prefer
// RequireRoleForHost whenever a host is known.
func (c *Context) IsAdmin() bool {
	return roles.Contains(c.Roles(), roles.Admin)
}

// IsReviewer reports a reviewer membership on any host. Tenant-blind.
func (c *Context) IsReviewer() bool {
	return roles.Contains(c.Roles(), roles.Reviewer)
}

// RequireRole returns ErrForbidden unless the user's role set intersects
// the required set. Tenant-blind variant.
func RequireRole(userRoles, required []roles.Role) error {
	for _, r := range required {
		if roles.Contains(userRoles, r) {
			return nil
		}
	}
	return fmt.Errorf("%w: insufficient role", ErrForbidden)
}

// RequireRoleForHost additionally binds the check to one host id. This
// is the stricter, tenant-correct check; tenant-blind helpers can leak
// cross-tenant privilege when a host is actually known.
func RequireRoleForHost(c *Context, hostID int64, required []roles.Role) error {
	for _, m := range c.Memberships {
		if m.HostID == hostID && roles.Contains(required, m.Role) {
			return nil
		}
	}
	return fmt.Errorf("%w: insufficient role for this host", ErrForbidden)
}

type ctxKey struct{}

// WithContext attaches the authenticated identity to the request context
// so later guards can reuse it instead of re-authenticating.
func WithContext(ctx context.Context, c *Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext returns a previously attached identity.
func FromContext(ctx context.Context) (*Context, bool) {
	v, ok := ctx.Value(ctxKey{}).(*Context)
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// ContextSource builds an authenticated Context from a request.
type ContextSource interface {
	Authenticate(r *http.Request) (*Context, error)
}

// Authenticator resolves sessions against the relational store. It is
// the only ContextSource in production; tests substitute stubs.
type Authenticator struct {
	sessions *Sessions
	db       *sql.DB
}

func NewAuthenticator(sessions *Sessions, db *sql.DB) *Authenticator {
	return &Authenticator{sessions: sessions, db: db}
}

// Authenticate builds the request identity: session user id, active
// account check, then the active membership list. Inactive accounts are
// indistinguishable from nonexistent ones.
func (a *Authenticator) Authenticate(r *http.Request) (*Context, error) {
	userID, ok := a.sessions.UserID(r)
	if !ok {
		return nil, ErrNotAuthenticated
	}

	var active bool
	row := a.db.QueryRowContext(r.Context(), `select is_active from users where id = $1`, userID)
	if err := row.Scan(&active); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotAuthenticated
		}
		return nil, fmt.Errorf("load user %d: %w", userID, err)
	}
	if !active {
		return nil, ErrNotAuthenticated
	}

	memberships, err := a.loadMemberships(r.Context(), userID)
	if err != nil {
		return nil, err
	}
	return &Context{UserID: userID, Memberships: memberships}, nil
}

func (a *Authenticator) loadMemberships(ctx context.Context, userID int64) ([]Membership, error) {
	rows, err := a.db.QueryContext(ctx, `
		select m.host_id, r.name
		from memberships m
		join roles r on r.id = m.role_id
		where m.user_id = $1 and m.active = true
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("load memberships for %d: %w", userID, err)
	}
	defer rows.Close()

	var out []Membership
	for rows.Next() {
		var (
			hostID int64
			name   string
		)
		if err := rows.Scan(&hostID, &name); err != nil {
			return nil, err
		}
		role, err := roles.Parse(name)
		if err != nil {
			// Unknown role rows grant nothing.
			obs.L().Warn("skipping membership with unknown role",
				zap.Int64("user_id", userID), zap.String("role", name))
			continue
		}
		out = append(out, Membership{HostID: hostID, Role: role})
	}
	return out, rows.Err()
}
