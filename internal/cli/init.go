package cli

import (
	"github.com/spf13/cobra"

	"github.com/gitpigeon/pigeon/pkg/relay"
)

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the mailbox file in the repository",
		Long: `Create the configured mailbox file with an empty envelope array.

Run once when setting up a new relay. Fails cleanly if the file already
exists; the existing mailbox is never overwritten.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(rootOpts, cmd)
		},
	}

	return cmd
}

func runInit(opts *RootOptions, cmd *cobra.Command) error {
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

	// The mailbox always holds a JSON array; a new one holds "[]".
	if err := client.Upload(cmd.Context(), cfg.FilePath, []byte("[]")); err != nil {
		if relay.IsAlreadyExists(err) {
			return WrapExitError(ExitCommandError, "mailbox file already exists", err)
		}
		return WrapExitError(ExitFailure, "failed to create mailbox file", err)
	}

	return formatter.Success("mailbox created: " + cfg.FilePath)
}
