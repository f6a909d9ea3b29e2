package orgcreator

import (
	"embed"
	"io/fs"
)

// migrationsFS holds the outcome ledger schema. Postgres files sit at the
// root of data/sql/migrations and sqlite variants under sqlite/.
//
//go:embed data/sql/migrations/*.sql data/sql/migrations/sqlite/*.sql
var migrationsFS embed.FS

func GetMigrationsFS() fs.FS {
	return migrationsFS
}
