package host

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestNormalize(t *testing.T) {
	cases := []struct{ in, want string }{
		{"a.example.com", "a.example.com"},
		{"A.Example.COM:8443", "a.example.com"},
		{" b.example.com , proxy.internal", "b.example.com"},
		{"c.example.com:80", "c.example.com"},
		{"", ""},
		{" , ", ""},
	}
	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func hostRows(id int64, name string, active bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "slug", "host_name", "display_name", "base_url", "active"}).
		AddRow(id, name, name, name, "", active)
}

func TestResolveKnownHost(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("select id, slug, host_name, display_name, base_url, active").
		WithArgs("a.example.com").
		WillReturnRows(hostRows(7, "a.example.com", true))

	info := NewResolver(db).Resolve(context.Background(), "A.example.com:443")
	if info.ID != 7 || !info.Active {
		t.Fatalf("unexpected host: %+v", info)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestResolveAutoProvisionsUnknownHost(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("select id, slug, host_name, display_name, base_url, active").
		WithArgs("new.example.com").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("insert into hosts").
		WithArgs("new.example.com", sqlmock.AnyArg()).
		WillReturnRows(hostRows(12, "new.example.com", false))

	info := NewResolver(db).Resolve(context.Background(), "new.example.com")
	if info.ID != 12 {
		t.Fatalf("expected freshly provisioned id 12, got %d", info.ID)
	}
	if info.Active {
		t.Fatalf("auto-provisioned host must be inactive")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestResolveFallsBackToUnknownOnStorageFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("select id, slug, host_name, display_name, base_url, active").
		WithArgs("down.example.com").
		WillReturnError(errors.New("connection refused"))

	info := NewResolver(db).Resolve(context.Background(), "down.example.com")
	if info.ID != 0 || info.Slug != "unknown" {
		t.Fatalf("expected synthetic unknown host, got %+v", info)
	}
}

func TestMiddlewareStampsHostOnContext(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("select id, slug, host_name, display_name, base_url, active").
		WithArgs("a.example.com").
		WillReturnRows(hostRows(3, "a.example.com", true))

	var seen *Info
	handler := Middleware(NewResolver(db))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "http://ignored/", nil)
	req.Header.Set("X-Forwarded-Host", "a.example.com:8080")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if seen == nil || seen.ID != 3 {
		t.Fatalf("handler did not observe the bound host: %+v", seen)
	}
}

func TestMiddlewareRejectsMissingHost(t *testing.T) {
	handler := Middleware(NewResolver(nil))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler must not run without a host header")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = ""
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestRequireAccessors(t *testing.T) {
	ctx := context.Background()
	if _, err := RequireID(ctx); !errors.Is(err, ErrNoHost) {
		t.Fatalf("expected ErrNoHost, got %v", err)
	}

	ctx = WithInfo(ctx, &Info{ID: 9, Slug: "nine"})
	id, err := RequireID(ctx)
	if err != nil || id != 9 {
		t.Fatalf("RequireID = %d, %v", id, err)
	}
	slug, err := RequireSlug(ctx)
	if err != nil || slug != "nine" {
		t.Fatalf("RequireSlug = %q, %v", slug, err)
	}
}
