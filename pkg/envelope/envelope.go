// Package envelope defines the wire-level data model for the shared mailbox
// file: a JSON array of request/response envelopes, plus the codec that
// (de)serializes it and the base64 framing the content API wraps around it.
//
// An envelope is one record in the mailbox. Requests arrive Pending with a
// route path in the body; the relay answers them by replacing the record
// with a Done envelope carrying either inline text or a reference token
// pointing at a separately uploaded side file. Binary payload bytes never
// travel inside the mailbox itself.
package envelope

import (
	"time"

	"github.com/google/uuid"
)

// State is the processing state recorded in an envelope header.
type State string

const (
	// StatePending marks a request that has not been answered yet.
	StatePending State = "Pending"
	// StateDone marks a request whose response has been produced.
	StateDone State = "Done"
)

// ContentType tags the body of an answered envelope.
type ContentType string

const (
	// ContentTypeString means the body is the inline text response.
	ContentTypeString ContentType = "string"
	// ContentTypeFile means the body is a reference token naming a
	// side-uploaded binary file.
	ContentTypeFile ContentType = "file"
)

// Header carries the envelope metadata.
//
// ContentType is a pointer because requests carry no tag: producers write
// `"content_type": null`, and re-encoding a fetched collection must be
// byte-stable, so the null has to survive a round trip.
type Header struct {
	ID          string       `json:"id"`
	ContentType *ContentType `json:"content_type"`
	State       State        `json:"state"`
	// Timestamp is milliseconds since the Unix epoch, set at creation
	// and immutable afterwards. Expiry is measured against it.
	Timestamp int64 `json:"timestamp"`
}

// Envelope is one record in the mailbox: a header plus a body.
// While Pending, the body is interpreted as a route path.
type Envelope struct {
	Head Header `json:"head"`
	Body string `json:"body"`
}

// Collection is the entire, literal content of the mailbox file.
// It is read and rewritten as one atomic unit under a version-guarded
// write; there are no partial updates.
type Collection []Envelope

// Age returns how long ago the envelope was created, relative to now.
func (e Envelope) Age(now time.Time) time.Duration {
	created := time.UnixMilli(e.Head.Timestamp)
	return now.Sub(created)
}

// NewRequest mints a Pending envelope for a route.
//
// The id is a UUIDv7, so concurrently minted requests sort by creation
// time. Used by the producer-side CLI and by tests; the relay core itself
// never creates Pending envelopes.
func NewRequest(route string, now time.Time) Envelope {
	return Envelope{
		Head: Header{
			ID:        uuid.Must(uuid.NewV7()).String(),
			State:     StatePending,
			Timestamp: now.UnixMilli(),
		},
		Body: route,
	}
}

// Done returns the answered form of orig: same id and timestamp, state
// Done, and the given content type and body. This is the only state
// transition the relay performs.
func Done(orig Envelope, ct ContentType, body string) Envelope {
	tag := ct
	return Envelope{
		Head: Header{
			ID:          orig.Head.ID,
			ContentType: &tag,
			State:       StateDone,
			Timestamp:   orig.Head.Timestamp,
		},
		Body: body,
	}
}

// IsPending reports whether the envelope still awaits a response.
func (e Envelope) IsPending() bool {
	return e.Head.State == StatePending
}
