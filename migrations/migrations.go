// Package migrations embeds the SQL schema for the optional transcript store.
package migrations

import "embed"

// FS holds every NNNN_name.up.sql and NNNN_name.down.sql file
//
//go:embed *.sql
var FS embed.FS
