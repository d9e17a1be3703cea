// Package routes holds the route registry: a single source of truth for
// which endpoints exist, under what path, requiring what role. The table
// is populated during service wiring through nested Scope builders and
// frozen before the server accepts traffic; the HTTP dispatcher and the
// capability introspection endpoint both read from it.
package routes

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/jschappet/heron/internal/roles"
)

// Route is a registered endpoint descriptor. Entries are write-once:
// inserted during wiring, never mutated afterwards.
type Route struct {
	Key        string       `json:"key"`
	Method     string       `json:"method"`
	ParentPath string       `json:"parent_path"`
	Segments   []string     `json:"segments"`
	Auth       bool         `json:"auth"`
	Roles      []roles.Role `json:"roles"`
}

// URL joins the full segment list into the route's path.
func (r Route) URL() string {
	return "/" + strings.Join(r.Segments, "/")
}

// Capability is the introspection view of a route exposed to a caller.
type Capability struct {
	Key    string `json:"key"`
	URL    string `json:"url"`
	Method string `json:"method"`
	Auth   bool   `json:"auth"`
}

// Registry is the process-wide route table. It is mutable (under lock)
// only between construction and Freeze.
type Registry struct {
	mu     sync.Mutex
	routes []Route
	frozen []Route
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Root returns the top-level scope builder bound to the given router.
// The ambient default role starts as Public.
func (reg *Registry) Root(r chi.Router) Scope {
	return Scope{reg: reg, router: r, role: roles.Public}
}

// Freeze converts the registry into an immutable read-only view. Wiring
// must be complete before Freeze; registration afterwards panics. Freeze
// must happen-before the server starts accepting connections.
func (reg *Registry) Freeze() {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if reg.frozen != nil {
		return
	}
	snapshot := make([]Route, len(reg.routes))
	copy(snapshot, reg.routes)
	reg.frozen = snapshot
}

// Routes returns the registered routes in registration order.
func (reg *Registry) Routes() []Route {
	if reg.frozen != nil {
		return reg.frozen
	}
	reg.mu.Lock()
	defer reg.mu.Unlock()
	out := make([]Route, len(reg.routes))
	copy(out, reg.routes)
	return out
}

// Capabilities filters the registry to routes the caller's role set may
// attempt, per the role-allows predicate. Anonymous callers pass an
// empty role set and see only Public routes.
func (reg *Registry) Capabilities(callerRoles []roles.Role) []Capability {
	all := reg.Routes()
	out := make([]Capability, 0, len(all))
	for _, r := range all {
		if !roles.Allows(callerRoles, r.Roles) {
			continue
		}
		out = append(out, Capability{
			Key:    r.Key,
			URL:    r.URL(),
			Method: r.Method,
			Auth:   r.Auth,
		})
	}
	return out
}

// add inserts a route unless an identical (key, method, segments) entry
// already exists; duplicate registration is silently ignored so repeated
// service construction stays idempotent.
func (reg *Registry) add(route Route) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if reg.frozen != nil {
		panic(fmt.Sprintf("routes: register %q after freeze", route.Key))
	}
	for _, existing := range reg.routes {
		if existing.Key == route.Key && existing.Method == route.Method && equalSegments(existing.Segments, route.Segments) {
			return
		}
	}
	reg.routes = append(reg.routes, route)
}

func equalSegments(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Scope is an explicit builder carrying the accumulated path prefix,
// dotted group name and the ambient default role. Scopes are passed by
// value down the wiring call tree, so sibling scopes never observe each
// other's state and no save/restore step is needed.
type Scope struct {
	reg    *Registry
	router chi.Router
	prefix string
	group  string
	role   roles.Role
}

// Group derives a nested scope mounted at path. group extends the dotted
// group name. Passing a non-Public role overrides the inherited default
// for everything registered inside fn; Public inherits the parent's.
func (s Scope) Group(path, group string, role roles.Role, fn func(Scope)) {
	child := s
	child.prefix = s.prefix + path
	if child.group != "" {
		child.group += "."
	}
	child.group += group
	if role != roles.Public {
		child.role = role
	}
	s.router.Route(path, func(r chi.Router) {
		child.router = r
		fn(child)
	})
}

// Use appends middleware to the scope's router. Must be called before
// any Handle in the same scope (chi constraint).
func (s Scope) Use(mw ...func(http.Handler) http.Handler) {
	s.router.Use(mw...)
}

// Handle registers a handler at the scope's path plus relPath (which may
// be empty to register at the scope's own path, and may carry parameter
// placeholders like {id}). The effective role is the scope's ambient
// default when the Public marker is passed, otherwise the explicit role.
func (s Scope) Handle(key, method, relPath string, role roles.Role, h http.HandlerFunc) {
	segments := splitSegments(s.prefix)
	rel := strings.Trim(relPath, "/")
	if rel != "" {
		segments = append(segments, strings.Split(rel, "/")...)
	}

	effective := role
	if effective == roles.Public {
		effective = s.role
	}

	s.reg.add(Route{
		Key:        key,
		Method:     method,
		ParentPath: s.prefix,
		Segments:   segments,
		Auth:       effective != roles.Public,
		Roles:      []roles.Role{effective},
	})

	pattern := "/" + rel
	s.router.Method(method, pattern, h)
}

func splitSegments(path string) []string {
	var out []string
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}
