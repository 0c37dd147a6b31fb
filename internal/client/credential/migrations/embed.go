// Package migrations embeds the goose migrations for the durable credential
// channel's SQLite database.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
