// Package migrations carries the embedded goose SQL migrations.
//
// Files are named YYYYMMDDHHMMSS_description.sql and applied in timestamp
// order on startup, guarded by an advisory lock so concurrent replicas do
// not race the schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
