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
		log.Println("creating indexer_cursors table...")
		return mghelper.CreateSchema(ctx, db, &projection.CursorDao{})
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping indexer_cursors table...")
		return mghelper.DropTables(ctx, db, &projection.CursorDao{})
	})
}
