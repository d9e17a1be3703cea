// Package roles defines the membership role set shared by the route
// registry and the authorization layer. Roles serialize as lowercase
// snake_case strings at every API and database boundary.
package roles

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role is a membership role. Public is a routing-only marker meaning
// "no role required"; it is never granted to a user.
type Role string

const (
	Public    Role = "public"
	Admin     Role = "admin"
	Reviewer  Role = "reviewer"
	Member    Role = "member"
	Organizer Role = "organizer"
	Volunteer Role = "volunteer"
	Guest     Role = "guest"
)

// All lists every role in declaration order, Public first.
func All() []Role {
	return []Role{Public, Admin, Reviewer, Member, Organizer, Volunteer, Guest}
}

// Parse converts a wire/database string into a Role.
func Parse(s string) (Role, error) {
	switch Role(strings.TrimSpace(strings.ToLower(s))) {
	case Public:
		return Public, nil
	case Admin:
		return Admin, nil
	case Reviewer:
		return Reviewer, nil
	case Member:
		return Member, nil
	case Organizer:
		return Organizer, nil
	case Volunteer:
		return Volunteer, nil
	case Guest:
		return Guest, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Value returns the wire form of the role.
func (r Role) Value() string { return string(r) }

// Label returns the human display form.
func (r Role) Label() string {
	switch r {
	case Public:
		return "Public"
	case Admin:
		return "Admin"
	case Reviewer:
		return "Reviewer"
	case Member:
		return "Member"
	case Organizer:
		return "Organizer"
	case Volunteer:
		return "Volunteer"
	case Guest:
		return "Guest"
	}
	return string(r)
}

func (r Role) MarshalJSON() ([]byte, error) { return json.Marshal(string(r)) }

func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Contains reports whether set includes role.
func Contains(set []Role, role Role) bool {
	for _, r := range set {
		if r == role {
			return true
		}
	}
	return false
}

// Allows implements the role-allows predicate: a caller holding userRoles
// may access a route requiring routeRoles iff routeRoles contains Public
// or the two sets intersect. An anonymous caller has an empty user set.
func Allows(userRoles, routeRoles []Role) bool {
	if Contains(routeRoles, Public) {
		return true
	}
	for _, r := range routeRoles {
		if Contains(userRoles, r) {
			return true
		}
	}
	return false
}

// Option is a value/label pair surfaced by the config endpoint.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Options returns the full role set as config options.
func Options() []Option {
	all := All()
	out := make([]Option, 0, len(all))
	for _, r := range all {
		out = append(out, Option{Value: r.Value(), Label: r.Label()})
	}
	return out
}
