package main

import (
	"fmt"

	"github.com/narvanalabs/logkeeper/internal/cleanup"
	"github.com/spf13/cobra"
)

// newPurgeCommand constructs the `purge` command.
func newPurgeCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete entries older than the retention window from both streams",
		Long: "purge runs a retention pass now. With --as the run is attributed to that admin, " +
			"who must be an enabled super admin; without it the run is recorded as a scheduled run " +
			"using the configured window.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			asAdmin, _ := cmd.Flags().GetString("as")
			days, _ := cmd.Flags().GetInt("days")
			batchSize, _ := cmd.Flags().GetInt("batch-size")
			singleBatch, _ := cmd.Flags().GetBool("single-batch")

			s, err := e.open(cmd, false)
			if err != nil {
				return err
			}
			defer s.Close()

			if cmd.Flags().Changed("batch-size") {
				s.cfg.Retention.BatchSize = batchSize
			}
			opts := []cleanup.PurgerOption{
				cleanup.WithBatchSize(s.cfg.Retention.BatchSize),
				cleanup.WithMaxIterations(s.cfg.Retention.MaxIterations),
			}
			if singleBatch || s.cfg.Retention.SingleBatch {
				opts = append(opts, cleanup.WithSingleBatch())
			}
			policy := cleanup.Policy{DefaultDays: s.cfg.Retention.DefaultDays}
			svc := cleanup.NewService(s.store, cleanup.NewPurger(s.store, s.logger, opts...), policy, s.logger)

			if asAdmin == "" {
				if cmd.Flags().Changed("days") {
					return fmt.Errorf("--days requires --as; scheduled runs use the configured window")
				}
				if singleBatch {
					return fmt.Errorf("--single-batch requires --as; scheduled runs always delete in batches")
				}
				result, err := svc.RunScheduled(cmd.Context())
				if err != nil {
					return err
				}
				return writeJSON(cmd, result)
			}

			var daysPtr *int
			if cmd.Flags().Changed("days") {
				daysPtr = &days
			}
			result, err := svc.RunManual(cmd.Context(), asAdmin, daysPtr)
			if err != nil {
				return err
			}
			return writeJSON(cmd, result)
		},
	}
	cmd.Flags().String("as", "", "Admin id to attribute the run to")
	cmd.Flags().Int("days", cleanup.DefaultRetentionDays, "Retention window in days (requires --as)")
	cmd.Flags().Int("batch-size", 0, "Entries deleted per batch (max 500)")
	cmd.Flags().Bool("single-batch", false, "Delete each stream's expired entries in one atomic query; fails if a stream has more than 500 (requires --as)")
	return cmd
}
