package migrations

import "embed"

// FS contains the ordered Postgres migrations for the orchestrator schema.
//
//go:embed *.sql
var FS embed.FS
