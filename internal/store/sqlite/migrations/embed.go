package migrations

import "embed"

// FS contains embedded SQLite migrations for the services database.
//
//go:embed *.sql
var FS embed.FS
