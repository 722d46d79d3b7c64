package root

import (
	"fmt"

	"questlock/database"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, cfg, cleanup, err := openDB()
			if err != nil {
				return err
			}
			defer cleanup()

			if err := database.RunMigrations(conn); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Schema up to date (%s)\n", cfg.DBDriver)
			return nil
		},
	}
}
