package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/korjavin/mathpracticebot/database"
	"github.com/korjavin/mathpracticebot/terminal"
)

func solveCmd(a *app) *cobra.Command {
	var (
		startURL  string
		name      string
		resume    bool
		noJournal bool
	)
	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Work through practice pages in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			defer a.startTelemetry(ctx)()

			owner := "terminal:" + name
			start := startURL
			if start == "" {
				start = a.cfg.BaseURL
			}

			var journal terminal.Journal
			if !noJournal {
				db, err := database.New(ctx, a.cfg.DatabasePath)
				if err != nil {
					return err
				}
				defer db.Close()
				journal = db

				if resume && startURL == "" {
					saved, err := db.GetLocation(ctx, owner)
					if err != nil {
						return err
					}
					if saved != "" {
						start = saved
					}
				}
			}

			out := cmd.OutOrStdout()
			session, err := terminal.New(terminal.Options{
				In:      cmd.InOrStdin(),
				Out:     out,
				Owner:   owner,
				Journal: journal,
				Color:   terminal.ShouldUseColor(out),
				Width:   terminal.DetermineWidth(out),
			})
			if err != nil {
				return err
			}
			return session.Run(ctx, start)
		},
	}
	cmd.Flags().StringVar(&startURL, "url", "", "Page to start from (default the configured base URL)")
	cmd.Flags().StringVar(&name, "name", currentUser(), "Name the answers are recorded under")
	cmd.Flags().BoolVar(&resume, "resume", false, "Start from the page the last session ended on")
	cmd.Flags().BoolVar(&noJournal, "no-journal", false, "Do not record answers or pages")
	return cmd
}
