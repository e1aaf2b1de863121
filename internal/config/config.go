// Package config loads the relay configuration from YAML: repository
// identity, mailbox path, timing overrides, and an optional static route
// table. Repository identity and file path are injected configuration;
// nothing in the transport core reads files or environment on its own.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// TokenEnvVar is consulted for the access token when the config file
// leaves it empty, so tokens can stay out of files checked into dotfiles.
const TokenEnvVar = "PIGEON_TOKEN"

// DefaultPath is where commands look for the config when --config is not
// given.
const DefaultPath = "pigeon.yaml"

// RouteType selects how a static route produces its response.
type RouteType string

const (
	// RouteText responds with a fixed string.
	RouteText RouteType = "text"
	// RouteFile responds with the bytes of a local file, read at
	// dispatch time.
	RouteFile RouteType = "file"
	// RouteCommand responds with the combined output of a shell
	// command, run at dispatch time.
	RouteCommand RouteType = "command"
)

// Route is one entry of the static route table. Exactly one of Value,
// Path, or Command is meaningful, selected by Type.
type Route struct {
	Type    RouteType `yaml:"type"`
	Value   string    `yaml:"value,omitempty"`
	Path    string    `yaml:"path,omitempty"`
	Command string    `yaml:"command,omitempty"`
}

// Config is the full file shape.
type Config struct {
	AccessToken string `yaml:"access_token"`
	Owner       string `yaml:"owner"`
	Repo        string `yaml:"repo"`
	FilePath    string `yaml:"file_path"`

	// APIBase overrides the content-API endpoint; empty means the
	// public Gitee API.
	APIBase string `yaml:"api_base,omitempty"`

	// PollInterval and ExpiryWindow override the protocol defaults
	// (10s poll, 30m expiry). Zero keeps the default.
	PollInterval time.Duration `yaml:"poll_interval,omitempty"`
	ExpiryWindow time.Duration `yaml:"expiry_window,omitempty"`

	// JournalPath locates the SQLite response journal. Empty runs with
	// the in-memory cache only.
	JournalPath string `yaml:"journal_path,omitempty"`

	// Routes is the static route table served by `pigeon run`.
	Routes map[string]Route `yaml:"routes,omitempty"`
}

// Load reads, parses, and validates a config file. The access token falls
// back to the PIGEON_TOKEN environment variable when absent from the file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse parses and validates config bytes.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.AccessToken == "" {
		cfg.AccessToken = os.Getenv(TokenEnvVar)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate rejects configs the relay could not run with.
func (c *Config) validate() error {
	if c.AccessToken == "" {
		return fmt.Errorf("config: access_token is required (or set %s)", TokenEnvVar)
	}
	if c.Owner == "" {
		return fmt.Errorf("config: owner is required")
	}
	if c.Repo == "" {
		return fmt.Errorf("config: repo is required")
	}
	if c.FilePath == "" {
		return fmt.Errorf("config: file_path is required")
	}
	if c.PollInterval < 0 {
		return fmt.Errorf("config: poll_interval must not be negative")
	}
	if c.ExpiryWindow < 0 {
		return fmt.Errorf("config: expiry_window must not be negative")
	}
	for route, r := range c.Routes {
		if err := r.validate(route); err != nil {
			return err
		}
	}
	return nil
}

// validate checks one static route entry.
func (r Route) validate(route string) error {
	switch r.Type {
	case RouteText:
		if r.Value == "" {
			return fmt.Errorf("config: route %s: text routes need a value", route)
		}
	case RouteFile:
		if r.Path == "" {
			return fmt.Errorf("config: route %s: file routes need a path", route)
		}
	case RouteCommand:
		if r.Command == "" {
			return fmt.Errorf("config: route %s: command routes need a command", route)
		}
	default:
		return fmt.Errorf("config: route %s: unknown type %q (want text, file, or command)", route, r.Type)
	}
	return nil
}
