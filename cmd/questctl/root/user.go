package root

import (
	"context"
	"fmt"
	"strconv"

	"questlock/services"

	"github.com/spf13/cobra"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Inspect and adjust users",
	}
	cmd.AddCommand(newUserShowCmd(), newUserXPassCmd())
	return cmd
}

func newUserShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <username>",
		Short: "Show a user's progression and quest counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			quests, store, _, cleanup, err := openService()
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := context.Background()
			user, err := store.GetUserByUsername(ctx, args[0])
			if err != nil {
				return err
			}
			stats, err := quests.Stats(ctx, user.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "👤 %s (#%d) - %s\n", user.Username, user.ID, user.Title)
			fmt.Fprintf(out, "Level:   %d (%d/%d xp, %d%%)\n", stats.Level, stats.CurrentXP, stats.NextLevelXP, stats.XPPercentage)
			fmt.Fprintf(out, "XPass:   %d\n", stats.XPass)
			fmt.Fprintf(out, "Streak:  %d\n", stats.Streak)
			fmt.Fprintf(out, "Quests:  %d active, %d completed, %d failed\n", stats.Active, stats.Completed, stats.Failed)
			if stats.IsLocked {
				fmt.Fprintln(out, "🔒 Locked until a punishment is chosen")
			}
			return nil
		},
	}
}

func newUserXPassCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "xpass <username> <amount>",
		Short: "Credit xpass to a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.Atoi(args[1])
			if err != nil {
				return &services.ValidationError{Field: "amount", Reason: "must be a whole number"}
			}
			quests, store, _, cleanup, err := openService()
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := context.Background()
			user, err := store.GetUserByUsername(ctx, args[0])
			if err != nil {
				return err
			}
			user, err = quests.AddXPass(ctx, user.ID, amount)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ %s now has %d xpass\n", user.Username, user.XPass)
			return nil
		},
	}
}
