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
		log.Println("creating disputes table...")
		if err := mghelper.CreateSchema(ctx, db, &projection.DisputeDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &projection.DisputeDao{}, "original_cert_id", "status")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping disputes table...")
		return mghelper.DropTables(ctx, db, &projection.DisputeDao{})
	})
}
