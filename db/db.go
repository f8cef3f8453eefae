// Package db embeds the SQL migrations and seed files applied at startup.
// Seed files currently carry the '*' event envelope schema used by ingestion
// validation.
package db

import "embed"

//go:embed migrations/*.sql
var Migrations embed.FS

//go:embed seed/*.*
var SeedFiles embed.FS
