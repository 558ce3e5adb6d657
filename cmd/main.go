package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"

	"estate-assistant/handler"
	"estate-assistant/internal/config"
)

var (
	cfg     *config.Config
	version = "dev"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	rootCmd := &cobra.Command{
		Use:   "estate-assistant",
		Short: "Real-estate chat assistant",
		Long: `Runs the real-estate chat assistant. Without a subcommand it starts the
AWS Lambda handler behind API Gateway.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger()
			app, err := buildApp(cmd.Context(), logger)
			if err != nil {
				return err
			}
			defer app.Close()

			h, err := handler.NewHandler(app.chat, logger)
			if err != nil {
				return fmt.Errorf("creating handler: %w", err)
			}
			lambda.StartWithOptions(h.Handle, lambda.WithContext(cmd.Context()))
			return nil
		},
	}

	rootCmd.AddCommand(
		serveCmd(),
		mcpCmd(),
		analyzeCmd(),
		flowsCmd(),
	)

	rootCmd.SetContext(ctx)

	err := rootCmd.Execute()
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if cfg != nil && cfg.Logging.Level == "debug" {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg != nil && cfg.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// skipConfig lets offline commands run without LLM credentials.
func skipConfig(*cobra.Command, []string) error { return nil }
