package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/gitpigeon/pigeon/pkg/envelope"
	"github.com/gitpigeon/pigeon/pkg/relay"
)

// sendAttempts bounds the append-under-CAS loop. The relay on the other
// side writes at most once per poll interval, so a handful of retries is
// plenty.
const sendAttempts = 5

// sendResult is the JSON payload of the send command.
type sendResult struct {
	ID    string `json:"id"`
	Route string `json:"route"`
}

// NewSendCommand creates the send command.
func NewSendCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <route>",
		Short: "Append a pending request to the mailbox",
		Long: `Append a Pending envelope for a route to the mailbox, under the same
compare-and-swap discipline the relay uses: fetch, append, conditional
write, and refetch-and-redo on conflict.

Prints the envelope id; poll with 'pigeon peek' until the envelope turns
Done to read the response.

Example:
  pigeon send /monitor/pic/shot`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runSend(opts *RootOptions, route string, cmd *cobra.Command) error {
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

	id, err := appendRequest(cmd.Context(), client, route)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to send request", err)
	}

	if opts.Format == "json" {
		return formatter.Success(sendResult{ID: id, Route: route})
	}
	return formatter.Success(id)
}

// appendRequest appends one Pending envelope under the CAS discipline.
func appendRequest(ctx context.Context, client relay.Client, route string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= sendAttempts; attempt++ {
		collection, version, err := client.Fetch(ctx)
		if err != nil {
			return "", err
		}
		req := envelope.NewRequest(route, timeNow())
		merged := append(collection, req)
		if err := client.Write(ctx, merged, version); err != nil {
			if relay.IsConflict(err) {
				lastErr = err
				continue
			}
			return "", err
		}
		return req.Head.ID, nil
	}
	return "", lastErr
}
