package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gitpigeon/pigeon/pkg/envelope"
)

// peekResult is the JSON payload of the peek command.
type peekResult struct {
	Version   string              `json:"version"`
	Envelopes envelope.Collection `json:"envelopes"`
}

// NewPeekCommand creates the peek command.
func NewPeekCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "peek",
		Short: "Fetch the mailbox once and print its contents",
		Long: `Fetch the mailbox file once, without dispatching or writing, and print
the envelopes it holds. Useful for checking what producers have queued
and which requests have been answered.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPeek(rootOpts, cmd)
		},
	}

	return cmd
}

func runPeek(opts *RootOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	client, err := newClient(cfg)
	if err != nil {
		return err
	}

	collection, version, err := client.Fetch(cmd.Context())
	if err != nil {
		return WrapExitError(ExitFailure, "failed to fetch mailbox", err)
	}

	if opts.Format == "json" {
		return formatter.Success(peekResult{Version: version, Envelopes: collection})
	}
	return formatter.Success(formatPeek(collection, version))
}

// formatPeek renders a text table of the collection.
func formatPeek(c envelope.Collection, version string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "mailbox version %s, %d envelope(s)\n", version, len(c))
	for _, e := range c {
		created := time.UnixMilli(e.Head.Timestamp).UTC().Format(time.RFC3339)
		tag := "-"
		if e.Head.ContentType != nil {
			tag = string(*e.Head.ContentType)
		}
		fmt.Fprintf(&b, "  %-36s  %-7s  %-6s  %s  %s\n", e.Head.ID, e.Head.State, tag, created, e.Body)
	}
	return strings.TrimRight(b.String(), "\n")
}
