package migrations

import "embed"

// FS holds one directory of ordered .sql files per database driver.
//
//go:embed mysql/*.sql sqlite/*.sql
var FS embed.FS
