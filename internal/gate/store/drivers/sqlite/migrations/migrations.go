// Package migrations embeds the sqlite schema migrations so the binary can
// apply them without shipping loose files.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
