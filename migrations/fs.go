// Package migrations embeds the portal database schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
