package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"docchat-backend/internal/documents"
	"docchat-backend/internal/shared/config"
	"docchat-backend/internal/shared/storage/db"
)

// maintenanceFactory opens the document store for maintenance commands.
type maintenanceFactory func(ctx context.Context) (documents.Maintenance, func(), error)

func defaultMaintenance(ctx context.Context) (documents.Maintenance, func(), error) {
	cfg := config.Load()
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultCLIOptions()))
	if err != nil {
		return nil, nil, err
	}
	return &documents.PGRepo{DB: sqlDB}, func() { _ = sqlDB.Close() }, nil
}

func newSweepCmd(open maintenanceFactory) *cobra.Command {
	var olderThan, purgeAfter time.Duration
	var purge bool
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Fail documents stuck in processing and purge old tombstones",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			repo, closeFn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			failed, err := repo.FailStale(cmd.Context(), olderThan)
			if err != nil {
				return fmt.Errorf("fail stale: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "marked %d stale document(s) as error\n", failed)

			if !purge {
				return nil
			}
			purged, err := repo.PurgeDeleted(cmd.Context(), purgeAfter)
			if err != nil {
				return fmt.Errorf("purge deleted: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d deleted document(s)\n", purged)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*time.Minute, "Processing age after which a document is failed")
	cmd.Flags().BoolVar(&purge, "purge", false, "Also remove deleted records")
	cmd.Flags().DurationVar(&purgeAfter, "purge-after", 7*24*time.Hour, "Tombstone age before purge")
	return cmd
}
