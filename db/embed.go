// Package db carries the embedded schema applied by the storage layer on startup.
package db

import _ "embed"

// Schema contains the DDL for all shop tables, including the unique
// constraints the checkout transaction relies on.
//
//go:embed migrations/001_schema.sql
var Schema string
