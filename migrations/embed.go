// Package migrations embeds the state store schema into the binary.
package migrations

import (
	"embed"

	"github.com/rookie50/ioBroker.bluos/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
