package db

import (
	"context"

	"github.com/uptrace/bun"

	"scanlog/internal/models"
)

// Migrate creates the scans table. Used by tests and the migrate command;
// production schema changes go through golang-migrate.
func Migrate(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().
		Model((*models.ScanEvent)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}
