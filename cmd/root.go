// Package cmd holds the command line of the math practice bot.
package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/user"

	"github.com/spf13/cobra"

	"github.com/korjavin/mathpracticebot/config"
	"github.com/korjavin/mathpracticebot/telemetry"
)

// app carries what every command needs once the root command has run
type app struct {
	configPath string
	cfg        *config.Config
}

// RootCmd returns the mathpracticebot command with all subcommands attached
func RootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "mathpracticebot",
		Short: "Practice math problems from telegram or a terminal",
		Long: `Work through the problem pages of a math practice site.
Answers are checked by the site, recorded locally and summarised in statistics.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
				Level: cfg.Level(),
			})))
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to a YAML config file (default $CONFIG_FILE)")

	root.AddCommand(telegramCmd(a))
	root.AddCommand(solveCmd(a))
	root.AddCommand(statsCmd(a))
	return root
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	return RootCmd().ExecuteContext(ctx)
}

// startTelemetry installs tracing for the lifetime of a command
func (a *app) startTelemetry(ctx context.Context) func() {
	shutdown, err := telemetry.Setup(ctx, a.cfg.ServiceName, a.cfg.OTLPEndpoint)
	if err != nil {
		slog.Warn("tracing disabled", "error", err)
		return func() {}
	}
	return func() {
		if err := shutdown(context.Background()); err != nil {
			slog.Error("failed to flush traces", "error", err)
		}
	}
}

func currentUser() string {
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "guest"
}
