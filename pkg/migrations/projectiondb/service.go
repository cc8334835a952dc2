// Package projectiondb holds all the migrations for the projection database
package projectiondb

import (
	"github.com/uptrace/bun/migrate"
)

// Migrations is the collection of all migrations for the projection database
var Migrations = migrate.NewMigrations()
