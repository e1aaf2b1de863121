// Package handlers builds relay handlers from static route config. These
// cover the operator-configured cases — fixed text, a local file's bytes,
// a shell command's output — while embedding programs register arbitrary
// handlers through the listener directly.
package handlers

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/gitpigeon/pigeon/internal/config"
	"github.com/gitpigeon/pigeon/pkg/relay"
)

// Build turns one static route entry into a handler. The config is
// validated at load time, so an unknown type here is a programming error.
func Build(r config.Route) (relay.Handler, error) {
	switch r.Type {
	case config.RouteText:
		return TextHandler(r.Value), nil
	case config.RouteFile:
		return FileHandler(r.Path), nil
	case config.RouteCommand:
		return CommandHandler(r.Command), nil
	default:
		return nil, fmt.Errorf("handlers: unknown route type %q", r.Type)
	}
}

// TextHandler answers with a fixed string.
func TextHandler(value string) relay.Handler {
	return func() relay.Response {
		return relay.Text(value)
	}
}

// FileHandler answers with the current bytes of a local file, read at
// dispatch time so the requester sees the file as of this cycle. A read
// failure becomes a text response describing the error: the requester gets
// an answer either way, instead of a silent expiry.
func FileHandler(path string) relay.Handler {
	return func() relay.Response {
		data, err := os.ReadFile(path)
		if err != nil {
			return relay.Text(fmt.Sprintf("error: read %s: %v", path, err))
		}
		return relay.File(data)
	}
}

// CommandHandler answers with the combined output of a shell command, run
// at dispatch time. The command blocks the poll loop while it runs, like
// any handler. Failures answer with the error and whatever output the
// command produced.
func CommandHandler(command string) relay.Handler {
	return func() relay.Response {
		out, err := exec.Command("sh", "-c", command).CombinedOutput()
		if err != nil {
			return relay.Text(fmt.Sprintf("error: %v\n%s", err, out))
		}
		return relay.Text(string(out))
	}
}
