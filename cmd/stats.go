package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/korjavin/mathpracticebot/database"
	"github.com/korjavin/mathpracticebot/terminal"
)

func statsCmd(a *app) *cobra.Command {
	var (
		owner string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show recorded answers and accuracy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := database.New(ctx, a.cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer db.Close()

			stats, err := db.GetStats(ctx, owner)
			if err != nil {
				return fmt.Errorf("failed to get stats: %w", err)
			}
			out := cmd.OutOrStdout()
			if stats.Total() == 0 {
				fmt.Fprintf(out, "No answers recorded for %s.\n", owner)
				return nil
			}

			recent, err := db.GetRecentAttempts(ctx, owner, limit)
			if err != nil {
				return fmt.Errorf("failed to get attempts: %w", err)
			}
			terminal.WriteAttempts(out, recent, terminal.ShouldUseColor(out))
			fmt.Fprintf(out, "%s: %d correct, %d incorrect (%.1f%% accuracy)\n",
				owner, stats.Correct, stats.Incorrect, stats.Accuracy())

			missed, err := db.GetMostMissedProblems(ctx, owner, 3)
			if err != nil {
				return fmt.Errorf("failed to get missed problems: %w", err)
			}
			for i, m := range missed {
				fmt.Fprintf(out, "%d. %s (%d wrong)\n", i+1, m.Action, m.Misses)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "terminal:"+currentUser(), "Whose answers to show, e.g. telegram:12345")
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of recent answers to list")
	return cmd
}
