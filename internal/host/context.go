package host

import (
	"context"
	"errors"
)

type ctxKey struct{}

var ErrNoHost = errors.New("host: no host bound to request")

// WithInfo stamps the resolved tenant on the context. The pointer is
// shared read-only for the request's duration.
func WithInfo(ctx context.Context, info *Info) context.Context {
	return context.WithValue(ctx, ctxKey{}, info)
}

// FromContext returns the tenant bound to the request, if any.
func FromContext(ctx context.Context) (*Info, bool) {
	v, ok := ctx.Value(ctxKey{}).(*Info)
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Require returns the bound tenant or ErrNoHost. Under the middleware's
// resolution policy it is only absent when the middleware never ran.
func Require(ctx context.Context) (*Info, error) {
	info, ok := FromContext(ctx)
	if !ok {
		return nil, ErrNoHost
	}
	return info, nil
}

// RequireID returns just the bound tenant's id.
func RequireID(ctx context.Context) (int64, error) {
	info, err := Require(ctx)
	if err != nil {
		return 0, err
	}
	return info.ID, nil
}

// RequireSlug returns just the bound tenant's slug.
func RequireSlug(ctx context.Context) (string, error) {
	info, err := Require(ctx)
	if err != nil {
		return "", err
	}
	return info.Slug, nil
}
