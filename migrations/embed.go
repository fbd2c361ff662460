// Package migrations embeds the credit ledger schema.
package migrations

import "embed"

// FS holds the numbered up/down migrations applied by database.NewDB.
//
//go:embed *.sql
var FS embed.FS
