// Package queue implements the state engine over a fetched mailbox
// collection: expiring stale envelopes, partitioning by state, and merging
// produced responses back in.
//
// Every operation is a pure value transform — collection in, collection
// out — so each phase of a poll cycle is independently testable and no
// queue state lives outside the cycle that fetched it.
package queue

import (
	"fmt"
	"time"

	"github.com/gitpigeon/pigeon/pkg/envelope"
)

// DefaultWindow is how long an envelope may live before it is purged,
// regardless of state. Done envelopes persist until expiry so producers
// can retrieve replies on a later fetch.
const DefaultWindow = 30 * time.Minute

// Grouped is the ephemeral partition of a collection for one cycle.
// It is derived, never persisted.
type Grouped struct {
	Pending envelope.Collection
	Done    envelope.Collection
}

// FilterExpired removes every envelope strictly older than window,
// regardless of state. An envelope aged exactly window is retained; the
// boundary belongs to the living.
func FilterExpired(c envelope.Collection, now time.Time, window time.Duration) envelope.Collection {
	kept := make(envelope.Collection, 0, len(c))
	for _, e := range c {
		if e.Age(now) > window {
			continue
		}
		kept = append(kept, e)
	}
	return kept
}

// PartitionByState splits a collection into pending and done buckets,
// preserving original order within each bucket. Dispatch order is the
// pending bucket's order, so this is what makes dispatch deterministic.
//
// Any state other than Pending lands in the done bucket: an envelope the
// relay does not recognize as work is left alone.
func PartitionByState(c envelope.Collection) Grouped {
	g := Grouped{
		Pending: envelope.Collection{},
		Done:    envelope.Collection{},
	}
	for _, e := range c {
		if e.IsPending() {
			g.Pending = append(g.Pending, e)
		} else {
			g.Done = append(g.Done, e)
		}
	}
	return g
}

// Merge replaces each responded-to envelope in original with its Done form,
// locating targets by id and leaving everything else untouched. Order and
// length are preserved.
//
// A response whose id does not appear in original is rejected: the listener
// only builds responses from ids present in the current fetch, so an
// unknown id is a bug to surface, not input to tolerate.
func Merge(original envelope.Collection, responses []envelope.Envelope) (envelope.Collection, error) {
	if len(responses) == 0 {
		return original, nil
	}

	byID := make(map[string]envelope.Envelope, len(responses))
	for _, r := range responses {
		byID[r.Head.ID] = r
	}

	merged := make(envelope.Collection, len(original))
	for i, e := range original {
		if r, ok := byID[e.Head.ID]; ok {
			merged[i] = r
			delete(byID, e.Head.ID)
			continue
		}
		merged[i] = e
	}

	if len(byID) > 0 {
		for id := range byID {
			return nil, fmt.Errorf("merge: response id %q not present in collection", id)
		}
	}
	return merged, nil
}
