// Package migrations embeds the SQL schema and seed files so the api
// and migrate binaries carry them without a filesystem dependency.
package migrations

import "embed"

//go:embed sql/*.sql seeds/*.sql
var Files embed.FS

const (
	// SQLDir is the embedded directory holding *.up.sql / *.down.sql.
	SQLDir = "sql"
	// SeedsDir is the embedded directory holding idempotent seeds.
	SeedsDir = "seeds"
)
