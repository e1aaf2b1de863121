package cli

import (
	"time"

	"github.com/gitpigeon/pigeon/internal/config"
	"github.com/gitpigeon/pigeon/internal/gitee"
)

// timeNow is swapped out by tests that need a pinned clock.
var timeNow = time.Now

// loadConfig reads and validates the configured file, mapping failures to
// command errors.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg, nil
}

// newClient builds the store client from a loaded config.
func newClient(cfg *config.Config) (*gitee.Client, error) {
	client, err := gitee.NewClient(gitee.Options{
		BaseURL:     cfg.APIBase,
		AccessToken: cfg.AccessToken,
		Owner:       cfg.Owner,
		Repo:        cfg.Repo,
		FilePath:    cfg.FilePath,
	})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to build store client", err)
	}
	return client, nil
}
