package root

import (
	"context"
	"fmt"
	"strings"
	"time"

	"questlock/models"

	"github.com/spf13/cobra"
)

func newAchievementCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "achievement",
		Short: "List and grant achievements",
	}
	cmd.AddCommand(newAchievementListCmd(), newAchievementGrantCmd())
	return cmd
}

func newAchievementListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <username>",
		Short: "List a user's achievements",
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
			achievements, err := quests.Achievements(ctx, user.ID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(achievements) == 0 {
				fmt.Fprintln(out, "No achievements yet.")
				return nil
			}
			for _, a := range achievements {
				fmt.Fprintf(out, "🏆 %s - %s (%s)\n", a.Title, a.Description, a.UnlockedAt.Format("2006-01-02"))
			}
			return nil
		},
	}
}

func newAchievementGrantCmd() *cobra.Command {
	var xp int
	cmd := &cobra.Command{
		Use:   "grant <username> <title> <description>",
		Short: "Record an unlocked achievement for a user",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, _, cleanup, err := openService()
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := context.Background()
			user, err := store.GetUserByUsername(ctx, args[0])
			if err != nil {
				return err
			}
			title, description := strings.TrimSpace(args[1]), strings.TrimSpace(args[2])
			if title == "" || description == "" {
				return fmt.Errorf("title and description are required")
			}
			achievement := &models.Achievement{
				UserID:      user.ID,
				Title:       title,
				Description: description,
				UnlockedAt:  time.Now().UTC(),
				XPReward:    xp,
			}
			if err := store.CreateAchievement(ctx, achievement); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "🏆 Granted %q to %s\n", achievement.Title, user.Username)
			return nil
		},
	}
	cmd.Flags().IntVar(&xp, "xp", 0, "xp value shown with the achievement")
	return cmd
}
