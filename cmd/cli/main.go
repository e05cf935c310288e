package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aryan0dhankhar/estatebooks/internal/client"
	"github.com/aryan0dhankhar/estatebooks/internal/infrastructure/logger"
)

const defaultAPI = "http://localhost:8080"

// app carries what every command needs
type app struct {
	apiURL        string
	stateDir      string
	tenantFlag    string
	sessionCookie string
	logLevel      string

	client *client.Client
	out    io.Writer
	in     io.Reader
	logger *slog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{out: os.Stdout, in: os.Stdin}
	if err := newRootCmd(a).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "✗ %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "estatebooks",
		Short:         "Command line client for the estatebooks dashboard",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
	}

	home, _ := os.UserHomeDir()
	root.PersistentFlags().StringVar(&a.apiURL, "api", envOr("ESTATEBOOKS_API", defaultAPI), "API base URL")
	root.PersistentFlags().StringVar(&a.stateDir, "state-dir", envOr("ESTATEBOOKS_STATE_DIR", filepath.Join(home, ".estatebooks")), "directory for the session and tenant preference")
	root.PersistentFlags().StringVar(&a.tenantFlag, "tenant", "", "tenant id to act as for this command")
	root.PersistentFlags().StringVar(&a.sessionCookie, "session-cookie", "session", "name of the session cookie")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", envOr("LOG_LEVEL", "warn"), "log level")

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newTenantsCmd(a),
		newTablesCmd(a),
		newOptionsCmd(a),
		newRentCmd(a),
		newSummaryCmd(a),
	)
	return root
}

func (a *app) setup() error {
	if a.client != nil {
		return nil
	}
	if a.logger == nil {
		// stdout carries command output
		a.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logger.ParseLevel(a.logLevel)}))
	}
	c, err := client.New(client.Options{
		BaseURL:  a.apiURL,
		StateDir: a.stateDir,
		Logger:   a.logger,
	})
	if err != nil {
		return err
	}
	a.client = c
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
