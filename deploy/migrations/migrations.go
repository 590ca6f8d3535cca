// Package migrations embeds the MySQL schema used by the wallet store.
// Files are named NNNN_description.sql and applied in version order.
package migrations

import "embed"

//go:embed *.sql
var Files embed.FS
