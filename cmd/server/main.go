package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/chatcore/internal/app"
	"github.com/vovakirdan/chatcore/internal/auth"
	"github.com/vovakirdan/chatcore/internal/config"
	"github.com/vovakirdan/chatcore/internal/log"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootFlags struct {
	configPath string
	overrides  config.Config
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "chatcore",
		Short:         "Real-time conversation messaging server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServer(cmd.Context(), flags)
		},
	}

	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to config.yaml")
	cmd.Flags().StringVar(&flags.overrides.Addr, "addr", "", "HTTP listen address")
	cmd.Flags().StringVar(&flags.overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&flags.overrides.DatabasePath, "db", "", "SQLite database path")

	cmd.AddCommand(newTokenCmd(flags))
	return cmd
}

// loadConfig resolves the configuration. quiet suppresses bootstrap logging
// so that commands printing to stdout stay machine readable.
func loadConfig(flags *rootFlags, quiet bool) (config.Config, error) {
	bootstrap := log.New("info", "console")
	if quiet {
		bootstrap = nil
	}
	cfg, path, err := config.Load(bootstrap, flags.configPath)
	if err != nil {
		return cfg, fmt.Errorf("load config %s: %w", path, err)
	}
	cfg.UpdateFrom(flags.overrides)
	return cfg, nil
}

func runServer(ctx context.Context, flags *rootFlags) error {
	cfg, err := loadConfig(flags, false)
	if err != nil {
		return err
	}
	logger := log.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(&cfg, logger)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}

	logger.Info().Str("addr", cfg.Addr).Msg("starting chatcore server")
	if err := application.Run(ctx); err != nil {
		return fmt.Errorf("server exited with error: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

func newTokenCmd(flags *rootFlags) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development access token signed with the configured secret",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags, true)
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return fmt.Errorf("jwt_secret is not configured")
			}
			token, err := auth.GenerateToken(&auth.JWTConfig{
				Secret:   []byte(cfg.JWTSecret),
				Issuer:   cfg.JWTIssuer,
				Audience: cfg.JWTAudience,
				TTL:      cfg.JWTTTL,
			}, userID)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user ID to put in the token")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
