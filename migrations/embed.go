// Package migrations embeds the PostgreSQL schema migrations so the migrate
// binary and the integration tests apply the same files.
package migrations

import "embed"

// FS holds the numbered *.up.sql and *.down.sql files.
//
//go:embed *.sql
var FS embed.FS
