// Package migrations embeds the versioned schema migration files that
// pg.MigrateFS applies at service startup.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
