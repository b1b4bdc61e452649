// Package db embeds the database schema and seed data.
package db

import _ "embed"

// Schema contains the idempotent DDL for all application tables.
//
//go:embed migrations/001_schema.sql
var Schema string

// SeedBars is the default seed file for cmd/seed-db.
//
//go:embed seed/bars.json
var SeedBars []byte
