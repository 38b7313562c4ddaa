// Package migrations carries the SQL schema for the Postgres store.
package migrations

import (
	_ "embed"
)

// Schema is the full DDL, written to be idempotent so repeated application
// on startup is safe.
//
//go:embed schema.sql
var Schema string
