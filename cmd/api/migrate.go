package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/tccredit/portal/backend/internal/logging"
	"github.com/tccredit/portal/backend/internal/store/psql"
)

func runMigrate(cmd *cobra.Command, _ []string) (err error) {
	if cfg.Database.Type != "postgres" {
		return fmt.Errorf("migrate requires STORAGE_TYPE=postgres, got %q", cfg.Database.Type)
	}

	db, err := psql.Open(cmd.Context(), cfg.Database)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, db.Close()) }()

	if err := db.Migrate(cmd.Context()); err != nil {
		return err
	}
	logging.L().Info("schema migrated")
	return nil
}
