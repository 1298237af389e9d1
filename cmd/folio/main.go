package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/skshohagmiah/folio/internal/auth"
	"github.com/skshohagmiah/folio/internal/config"
	"github.com/skshohagmiah/folio/internal/logging"
	"github.com/skshohagmiah/folio/internal/metrics"
	"github.com/skshohagmiah/folio/internal/server"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "folio",
	Short: "Folio - blog and bookmark content service",
	Long: `Folio serves articles, categories and bookmarks over a JSON API with a
single admin account.

Configuration is read from folio.yaml (., $HOME/.folio, /etc/folio) or the
file given with --config, and FOLIO_* environment variables override it.

Examples:
  # Run with an in-memory store
  FOLIO_AUTH_SECRET=change-me-please-now FOLIO_STORE_IN_MEMORY=true folio serve

  # Produce a password hash for auth.admin_password_hash
  folio hash-password`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(config.New(configFile))
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg)
	},
}

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password [password]",
	Short: "Print the bcrypt hash of a password (read from stdin when omitted)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readPassword(args, cmd.InOrStdin())
		if err != nil {
			return err
		}
		hash, err := auth.HashPassword(password)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default: discover folio.yaml)")
	rootCmd.AddCommand(serveCmd, hashPasswordCmd)
}

func readPassword(args []string, in io.Reader) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", auth.ErrInvalidPassword
	}
	return password, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	backends, err := server.OpenBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := backends.Close(context.Background()); err != nil {
			logger.Error("failed to close backends", "error", err)
		}
	}()

	srv, err := server.New(cfg, server.Deps{
		Driver:  backends.Driver,
		Limiter: backends.Limiter,
		Metrics: metrics.New(),
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	if err := srv.Init(ctx); err != nil {
		return err
	}
	if cfg.Auth.AdminPasswordHash == "" {
		logger.Warn("auth.admin_password_hash is empty; admin login is disabled")
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
