// Package migrations embeds the SQL schema so the migrate command works
// without the source tree.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
