package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/DARIONZITA/backend-professorIA/internal/domain/classroom"
	"github.com/DARIONZITA/backend-professorIA/internal/infra/config"
	"github.com/DARIONZITA/backend-professorIA/internal/infra/sqlite"
)

func newMigrateCmd() *cobra.Command {
	var seed bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			if err := ensureDataDir(cfg.DatabasePath); err != nil {
				return err
			}
			db, err := sqlite.NewDB(cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := sqlite.Migrate(cmd.Context(), db, nil)
			if err != nil {
				return err
			}
			for _, m := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %03d %s\n", m.Version, m.Name) //nolint:errcheck
			}
			v, err := sqlite.MigrationVersion(db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "database %s at migration %d\n", cfg.DatabasePath, v) //nolint:errcheck

			if seed {
				n, err := classroom.NewStore(db, nil).SeedDefaultStudents(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "seeded %d students\n", n) //nolint:errcheck
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "Insert the default roster when the student table is empty")
	return cmd
}

// ensureDataDir creates the parent directory of a file database.
func ensureDataDir(path string) error {
	if path == "" || path == ":memory:" {
		return nil
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data directory %q: %w", dir, err)
	}
	return nil
}
