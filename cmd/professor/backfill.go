package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DARIONZITA/backend-professorIA/internal/domain/classroom"
	"github.com/DARIONZITA/backend-professorIA/internal/infra/config"
	"github.com/DARIONZITA/backend-professorIA/internal/infra/sqlite"
)

func newBackfillCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Fill the historical summary of stored analyses that lack one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			db, err := sqlite.OpenContext(cmd.Context(), cfg.DatabasePath, nil)
			if err != nil {
				return err
			}
			defer db.Close()

			res, err := classroom.NewStore(db, nil).BackfillHistory(cmd.Context(), dryRun)
			if err != nil {
				return err
			}
			verb := "updated"
			if dryRun {
				verb = "would update"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scanned %d analyses, %s %d\n", res.Scanned, verb, res.Updated) //nolint:errcheck
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would change without writing")
	return cmd
}
