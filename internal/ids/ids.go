// Package ids generates the request identifiers threaded through logs
// and audit events.
package ids

import "github.com/oklog/ulid/v2"

// New returns a lexicographically sortable identifier. ULIDs sort by
// creation time, which makes correlating log lines across a request
// trivial with plain text tools.
func New() string {
	return ulid.Make().String()
}
