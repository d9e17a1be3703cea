package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/jschappet/heron/internal/roles"
)

func testSessions() *Sessions {
	return NewSessions([]byte("0123456789abcdef0123456789abcdef"), "heron_session", 3600, false)
}

// signedInRequest builds a request carrying a valid session cookie for
// the given user id.
func signedInRequest(t *testing.T, s *Sessions, userID int64) *http.Request {
	t.Helper()
	rec := httptest.NewRecorder()
	seed := httptest.NewRequest(http.MethodGet, "/", nil)
	if err := s.SignIn(rec, seed, userID); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func TestAuthenticateSuccess(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("select is_active from users").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"is_active"}).AddRow(true))
	mock.ExpectQuery("select m.host_id, r.name").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"host_id", "name"}).
			AddRow(int64(1), "admin").
			AddRow(int64(2), "member").
			AddRow(int64(3), "wizard")) // unknown role rows are skipped

	sess := testSessions()
	a := NewAuthenticator(sess, db)
	ctx, err := a.Authenticate(signedInRequest(t, sess, 42))
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if ctx.UserID != 42 {
		t.Fatalf("user id = %d, want 42", ctx.UserID)
	}
	if len(ctx.Memberships) != 2 {
		t.Fatalf("memberships = %d, want 2 (unknown role skipped)", len(ctx.Memberships))
	}
	if !ctx.IsAdmin() {
		t.Fatal("expected admin")
	}
	if ctx.IsReviewer() {
		t.Fatal("unexpected reviewer")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestAuthenticateNoSession(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	a := NewAuthenticator(testSessions(), db)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, err := a.Authenticate(req); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("err = %v, want ErrNotAuthenticated", err)
	}
}

func TestAuthenticateInactiveUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("select is_active from users").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"is_active"}).AddRow(false))

	sess := testSessions()
	a := NewAuthenticator(sess, db)
	if _, err := a.Authenticate(signedInRequest(t, sess, 7)); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("err = %v, want ErrNotAuthenticated", err)
	}
}

func TestAuthenticateUnknownUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("select is_active from users").
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"is_active"}))

	sess := testSessions()
	a := NewAuthenticator(sess, db)
	if _, err := a.Authenticate(signedInRequest(t, sess, 9)); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("err = %v, want ErrNotAuthenticated", err)
	}
}

func TestRequireRole(t *testing.T) {
	user := []roles.Role{roles.Member, roles.Organizer}
	if err := RequireRole(user, []roles.Role{roles.Organizer, roles.Admin}); err != nil {
		t.Fatalf("expected allow, got %v", err)
	}
	if err := RequireRole(user, []roles.Role{roles.Admin}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
	if err := RequireRole(nil, []roles.Role{roles.Member}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

// A reviewer on one host must not pass a host-scoped check on another,
// even though the tenant-blind check lets them through.
func TestRequireRoleForHostIsTenantScoped(t *testing.T) {
	c := &Context{
		UserID: 5,
		Memberships: []Membership{
			{HostID: 1, Role: roles.Reviewer},
			{HostID: 2, Role: roles.Member},
		},
	}

	if err := RequireRole(c.Roles(), []roles.Role{roles.Reviewer}); err != nil {
		t.Fatalf("tenant-blind check: %v", err)
	}
	if err := RequireRoleForHost(c, 1, []roles.Role{roles.Reviewer}); err != nil {
		t.Fatalf("host 1: %v", err)
	}
	if err := RequireRoleForHost(c, 2, []roles.Role{roles.Reviewer}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("host 2: err = %v, want ErrForbidden", err)
	}
	if err := RequireRoleForHost(c, 99, []roles.Role{roles.Member}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("host 99: err = %v, want ErrForbidden", err)
	}
}

// A member on a freshly provisioned tenant fails the host-scoped admin
// check until an admin membership is granted there.
func TestAdminCheckAfterGrant(t *testing.T) {
	const tenant = int64(42)
	c := &Context{
		UserID:      5,
		Memberships: []Membership{{HostID: tenant, Role: roles.Member}},
	}

	if err := RequireRoleForHost(c, tenant, []roles.Role{roles.Admin}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("before grant: err = %v, want ErrForbidden", err)
	}

	c.Memberships = append(c.Memberships, Membership{HostID: tenant, Role: roles.Admin})
	if err := RequireRoleForHost(c, tenant, []roles.Role{roles.Admin}); err != nil {
		t.Fatalf("after grant: %v", err)
	}
}

func TestFromContextRoundTrip(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := FromContext(req.Context()); ok {
		t.Fatal("unexpected identity on bare context")
	}
	c := &Context{UserID: 3}
	ctx := WithContext(req.Context(), c)
	got, ok := FromContext(ctx)
	if !ok || got.UserID != 3 {
		t.Fatalf("got %+v ok=%v", got, ok)
	}
}
