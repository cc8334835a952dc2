package projectiondb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	mghelper "github.com/hatchmark/hatchmark/pkg/pgutil/migrations"
	"github.com/hatchmark/hatchmark/pkg/projection"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating registrations table...")
		if err := mghelper.CreateSchema(ctx, db, &projection.RegistrationDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &projection.RegistrationDao{}, "image_hash", "creator")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping registrations table...")
		return mghelper.DropTables(ctx, db, &projection.RegistrationDao{})
	})
}
