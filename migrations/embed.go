// Package migrations embeds the bridge's SQL schema into the binary.
//
// Pass FS to database.Open through database.Config.Migrations.
package migrations

import "embed"

// FS holds every *.sql migration at its root.
//
//go:embed *.sql
var FS embed.FS
