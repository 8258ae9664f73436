package cmd

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/korjavin/mathpracticebot/bot"
	"github.com/korjavin/mathpracticebot/database"
)

func telegramCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "telegram",
		Short: "Run the telegram bot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.RequireBotToken(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			slog.Info("starting math practice bot", "base_url", a.cfg.BaseURL)
			defer a.startTelemetry(ctx)()

			db, err := database.New(ctx, a.cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer db.Close()

			b, err := bot.New(a.cfg, db)
			if err != nil {
				return err
			}

			slog.Info("bot initialized successfully")
			return b.Start(ctx)
		},
	}
}
