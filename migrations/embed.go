// Package migrations embeds the SQL migration files applied to every
// per-store cache database.
package migrations

import "embed"

// FS holds the embedded migration files, applied with goose.
//
//go:embed *.sql
var FS embed.FS
