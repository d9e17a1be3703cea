package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jschappet/heron/internal/auth"
	"github.com/jschappet/heron/internal/host"
	"github.com/jschappet/heron/internal/roles"
	"github.com/jschappet/heron/internal/store/pg"
)

// adminRequest builds a request with a resolved host and an attached
// identity, bypassing the HTTP stack to hit the handler directly.
func adminRequest(method, path, body string, hostID int64, c *auth.Context) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	ctx := host.WithInfo(req.Context(), &host.Info{ID: hostID, Slug: "h", HostName: "h.example.org", Active: true})
	if c != nil {
		ctx = auth.WithContext(ctx, c)
	}
	return req.WithContext(ctx)
}

func membershipRow(id, hostID int64, role roles.Role) pg.MembershipRow {
	return pg.MembershipRow{ID: id, UserID: 4, Username: "ada", HostID: hostID, Role: role, Active: true}
}

func hostAdmin(hostID int64) *auth.Context {
	return &auth.Context{
		UserID:      1,
		Memberships: []auth.Membership{{HostID: hostID, Role: roles.Admin}},
	}
}

func TestGrantMembership(t *testing.T) {
	c := newTestAPI(t, anonAuthn())
	rec := httptest.NewRecorder()
	req := adminRequest(http.MethodPost, "/api/admin/memberships",
		`{"user_id": 4, "role": "reviewer"}`, 2, hostAdmin(2))

	c.api.grantMembership(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if c.store.grantedRole != roles.Reviewer {
		t.Fatalf("granted role = %v", c.store.grantedRole)
	}
}

// Admin on host 1 must not manage memberships on host 2, even though
// the tenant-blind outer gate lets them into the admin surface.
func TestGrantMembershipCrossHostIsForbidden(t *testing.T) {
	c := newTestAPI(t, anonAuthn())
	rec := httptest.NewRecorder()
	req := adminRequest(http.MethodPost, "/api/admin/memberships",
		`{"user_id": 4, "role": "member"}`, 2, hostAdmin(1))

	c.api.grantMembership(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestGrantMembershipRejectsUnknownRole(t *testing.T) {
	c := newTestAPI(t, anonAuthn())
	rec := httptest.NewRecorder()
	req := adminRequest(http.MethodPost, "/api/admin/memberships",
		`{"user_id": 4, "role": "wizard"}`, 2, hostAdmin(2))

	c.api.grantMembership(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestGrantMembershipRejectsPublicRole(t *testing.T) {
	c := newTestAPI(t, anonAuthn())
	rec := httptest.NewRecorder()
	req := adminRequest(http.MethodPost, "/api/admin/memberships",
		`{"user_id": 4, "role": "public"}`, 2, hostAdmin(2))

	c.api.grantMembership(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestListMembershipsScopedToResolvedHost(t *testing.T) {
	c := newTestAPI(t, anonAuthn())
	c.store.memberships = append(c.store.memberships,
		membershipRow(1, 2, roles.Member),
		membershipRow(2, 3, roles.Member))

	rec := httptest.NewRecorder()
	req := adminRequest(http.MethodGet, "/api/admin/memberships", "", 2, hostAdmin(2))
	c.api.listMemberships(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"host_id":2`) {
		t.Fatalf("missing host 2 rows: %s", rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), `"host_id":3`) {
		t.Fatalf("leaked host 3 rows: %s", rec.Body.String())
	}
}

func TestMembershipsWithoutResolvedHost(t *testing.T) {
	c := newTestAPI(t, anonAuthn())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/admin/memberships", nil)
	req = req.WithContext(auth.WithContext(req.Context(), hostAdmin(2)))

	c.api.listMemberships(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}
