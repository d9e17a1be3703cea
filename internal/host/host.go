// Package host binds every inbound request to a tenant. Resolution never
// fails the request: unknown host names are auto-provisioned as inactive
// rows, and storage failures fall back to the synthetic unknown record.
package host

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jschappet/heron/internal/obs"
)

// Info is a resolved tenant identity, shared read-only for the duration
// of a request. HostName is the natural key matched against the request.
type Info struct {
	ID          int64  `json:"id"`
	Slug        string `json:"slug"`
	HostName    string `json:"host_name"`
	DisplayName string `json:"display_name"`
	BaseURL     string `json:"base_url"`
	Active      bool   `json:"active"`
}

// Unknown is the synthetic id-0 tenant returned when resolution cannot
// reach storage. Downstream code treats it like any inactive host.
func Unknown() *Info {
	return &Info{
		ID:          0,
		Slug:        "unknown",
		HostName:    "unknown",
		DisplayName: "Unknown Host",
	}
}

// Normalize reduces a raw host header to its technical host name: first
// comma-separated segment (proxies may append), trimmed, port stripped,
// lowercased.
func Normalize(raw string) string {
	h, _, _ := strings.Cut(raw, ",")
	h = strings.TrimSpace(h)
	h, _, _ = strings.Cut(h, ":")
	return strings.ToLower(h)
}

// Resolver maps normalized host names to tenant records.
type Resolver struct {
	db  *sql.DB
	now func() time.Time
}

func NewResolver(db *sql.DB) *Resolver {
	return &Resolver{db: db, now: time.Now}
}

// Resolve looks up a tenant by exact host name. A miss inserts a fresh
// inactive row (tracked but not trusted until an administrator activates
// it) and returns it; a storage failure logs and returns the synthetic
// unknown record. Resolve itself never returns an error to the caller.
func (r *Resolver) Resolve(ctx context.Context, raw string) *Info {
	name := Normalize(raw)
	if name == "" {
		return Unknown()
	}

	info, err := r.lookup(ctx, name)
	if err == nil {
		return info
	}
	if err != sql.ErrNoRows {
		obs.L().Error("host lookup failed", zap.String("host", name), zap.Error(err))
		return Unknown()
	}

	info, err = r.provision(ctx, name)
	if err != nil {
		obs.L().Error("host auto-provision failed", zap.String("host", name), zap.Error(err))
		return Unknown()
	}
	obs.L().Info("auto-provisioned inactive host", zap.String("host", name), zap.Int64("host_id", info.ID))
	return info
}

func (r *Resolver) lookup(ctx context.Context, name string) (*Info, error) {
	row := r.db.QueryRowContext(ctx, `
		select id, slug, host_name, display_name, base_url, active
		from hosts where host_name = $1
	`, name)
	var info Info
	if err := row.Scan(&info.ID, &info.Slug, &info.HostName, &info.DisplayName, &info.BaseURL, &info.Active); err != nil {
		return nil, err
	}
	return &info, nil
}

func (r *Resolver) provision(ctx context.Context, name string) (*Info, error) {
	row := r.db.QueryRowContext(ctx, `
		insert into hosts (slug, host_name, display_name, base_url, active, created_at)
		values ($1, $1, $1, '', false, $2)
		on conflict (host_name) do update set host_name = excluded.host_name
		returning id, slug, host_name, display_name, base_url, active
	`, name, r.now().UTC())
	var info Info
	if err := row.Scan(&info.ID, &info.Slug, &info.HostName, &info.DisplayName, &info.BaseURL, &info.Active); err != nil {
		return nil, err
	}
	return &info, nil
}
