package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gitpigeon/pigeon/internal/handlers"
	"github.com/gitpigeon/pigeon/internal/journal"
	"github.com/gitpigeon/pigeon/pkg/relay"
)

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the relay poll loop",
		Long: `Start the relay against the configured mailbox.

The relay polls the mailbox file, dispatches pending requests to the
routes from the config, uploads binary responses as side files, and
writes answers back under the mailbox's version guard. It runs until
interrupted.

Example:
  pigeon run --config pigeon.yaml
  pigeon run -v`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelay(rootOpts, cmd)
		},
	}

	return cmd
}

func runRelay(opts *RootOptions, cmd *cobra.Command) error {
	// Configure logging based on verbose flag
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	client, err := newClient(cfg)
	if err != nil {
		return err
	}

	// Durable response journal when configured, in-memory cache otherwise.
	var cache relay.ResponseCache
	if cfg.JournalPath != "" {
		slog.Info("opening response journal", "path", cfg.JournalPath)
		j, err := journal.Open(cfg.JournalPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer func() {
			if closeErr := j.Close(); closeErr != nil {
				slog.Error("error closing journal", "error", closeErr)
			}
		}()
		cache = j
	}

	listener, err := relay.NewListener(relay.Options{
		Client:       client,
		Cache:        cache,
		Logger:       logger,
		PollInterval: cfg.PollInterval,
		ExpiryWindow: cfg.ExpiryWindow,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build listener", err)
	}

	for route, r := range cfg.Routes {
		h, err := handlers.Build(r)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to build route handler", err)
		}
		listener.Register(route, h)
	}

	// Setup signal handling for graceful shutdown
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	slog.Info("relay starting", "repo", cfg.Owner+"/"+cfg.Repo, "file", cfg.FilePath)
	fmt.Fprintln(cmd.OutOrStdout(), "Relay started. Polling for requests...")
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

	if err := listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return WrapExitError(ExitFailure, "relay error", err)
	}

	slog.Info("relay stopped gracefully")
	return nil
}
