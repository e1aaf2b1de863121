package relay

import (
	"context"

	"github.com/gitpigeon/pigeon/pkg/envelope"
)

// Client is the remote store surface the listener consumes. Each method is
// exactly one network round trip; retry policy belongs to the listener, not
// the client.
//
// Implementations classify failures as *TransportError so the listener can
// pick a policy by code (see errors.go).
type Client interface {
	// Fetch reads the entire mailbox file, returning the decoded
	// collection and the opaque version token that must guard the next
	// Write. Fails with NETWORK, AUTH, NOT_FOUND, or DECODE errors.
	Fetch(ctx context.Context) (envelope.Collection, string, error)

	// Write replaces the mailbox content, conditioned on the version
	// token from the Fetch that produced it. Fails with CONFLICT when
	// the file changed since that fetch; the caller must refetch and
	// redo its cycle.
	Write(ctx context.Context, c envelope.Collection, version string) error

	// Upload creates a side binary file named by the caller. The caller
	// chooses a collision-free name. Fails with ALREADY_EXISTS when the
	// name is taken.
	Upload(ctx context.Context, name string, data []byte) error
}
