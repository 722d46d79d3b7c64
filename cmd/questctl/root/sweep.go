package root

import (
	"context"
	"fmt"
	"time"

	"questlock/services"

	"github.com/spf13/cobra"
)

func newSweepCmd() *cobra.Command {
	var noLease bool
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Fail every active quest past its deadline once",
		RunE: func(cmd *cobra.Command, args []string) error {
			quests, store, cfg, cleanup, err := openService()
			if err != nil {
				return err
			}
			defer cleanup()

			leaseTTL := cfg.SweepLeaseTTL
			if noLease {
				leaseTTL = 0
			}
			clock := func() time.Time { return time.Now().UTC() }
			sweeper := services.NewSweeper(quests, store, clock, cfg.SweepInterval, leaseTTL)

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()
			result, err := sweeper.SweepOnce(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if result.Skipped {
				fmt.Fprintln(out, "⏸️  Another instance holds the sweeper lease, nothing done")
				return nil
			}
			for _, q := range result.Failed {
				fmt.Fprintf(out, "- #%d %s (user %d, expired %s)\n", q.ID, q.Title, q.UserID, q.ExpiresAt.Format(time.RFC3339))
			}
			fmt.Fprintf(out, "⏰ %d failed, %d already resolved, %d errors\n", len(result.Failed), result.Conflicts, result.Errors)
			return nil
		},
	}
	cmd.Flags().BoolVar(&noLease, "no-lease", false, "sweep without taking the database lease")
	return cmd
}
