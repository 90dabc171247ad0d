package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/workbridge/workbridge-auth/internal/app"
	"github.com/workbridge/workbridge-auth/internal/config"
	"github.com/workbridge/workbridge-auth/internal/observability"
	"github.com/workbridge/workbridge-auth/internal/tools/loadgen"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "workbridge-auth", Short: "Authentication and session lifecycle service"}
	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newLoadgenCommand())
	return cmd
}

func newLoadgenCommand() *cobra.Command {
	opts := loadgen.Options{}
	cmd := &cobra.Command{
		Use:   "loadgen",
		Short: "Fire synthetic traffic at a running instance",
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := loadgen.Run(cmd.Context(), opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "requests=%d failures=%d duration=%s\n", report.Total, report.Failures, report.Duration)
			for class, count := range report.ByClass {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s: %d\n", class, count)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.BaseURL, "base-url", "http://localhost:8080", "target instance")
	cmd.Flags().StringVar(&opts.Profile, "profile", "mixed", "traffic profile: auth, health or mixed")
	cmd.Flags().IntVar(&opts.Requests, "requests", 100, "total requests to send")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", 4, "parallel workers")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 10*time.Second, "per-request timeout")
	return cmd
}

func newServeCommand() *cobra.Command {
	var envFile string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and the verification token reaper",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := config.LoadEnvFile(envFile); err != nil {
				return fmt.Errorf("load env file: %w", err)
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, loggerProvider, err := observability.NewLogger(ctx, cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			slog.SetDefault(logger)

			a, err := app.Build(ctx, cfg, logger)
			if err != nil {
				return err
			}
			a.Observability.LoggerProvider = loggerProvider
			return a.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "optional env file, never overrides the real environment")
	return cmd
}
