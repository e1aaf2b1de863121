package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitpigeon/pigeon/pkg/envelope"
)

func makeEnvelope(id string, state envelope.State, created time.Time) envelope.Envelope {
	return envelope.Envelope{
		Head: envelope.Header{ID: id, State: state, Timestamp: created.UnixMilli()},
		Body: "/route/" + id,
	}
}

func TestFilterExpired_RemovesOnlyStale(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	c := envelope.Collection{
		makeEnvelope("fresh", envelope.StatePending, now.Add(-time.Minute)),
		makeEnvelope("boundary", envelope.StatePending, now.Add(-DefaultWindow)),
		makeEnvelope("stale", envelope.StatePending, now.Add(-31*time.Minute)),
		makeEnvelope("stale-done", envelope.StateDone, now.Add(-2*time.Hour)),
	}

	kept := FilterExpired(c, now, DefaultWindow)

	require.Len(t, kept, 2)
	assert.Equal(t, "fresh", kept[0].Head.ID)
	assert.Equal(t, "boundary", kept[1].Head.ID, "an envelope aged exactly the window stays")
}

func TestFilterExpired_DoneEnvelopesExpireToo(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	c := envelope.Collection{
		makeEnvelope("done-fresh", envelope.StateDone, now.Add(-29*time.Minute)),
		makeEnvelope("done-stale", envelope.StateDone, now.Add(-DefaultWindow-time.Millisecond)),
	}

	kept := FilterExpired(c, now, DefaultWindow)

	require.Len(t, kept, 1)
	assert.Equal(t, "done-fresh", kept[0].Head.ID)
}

func TestFilterExpired_EmptyCollection(t *testing.T) {
	kept := FilterExpired(envelope.Collection{}, time.Now(), DefaultWindow)
	assert.NotNil(t, kept)
	assert.Len(t, kept, 0)
}

func TestPartitionByState_DisjointAndLossless(t *testing.T) {
	now := time.Now()
	c := envelope.Collection{
		makeEnvelope("p1", envelope.StatePending, now),
		makeEnvelope("d1", envelope.StateDone, now),
		makeEnvelope("p2", envelope.StatePending, now),
		makeEnvelope("d2", envelope.StateDone, now),
	}

	g := PartitionByState(c)

	require.Len(t, g.Pending, 2)
	require.Len(t, g.Done, 2)
	assert.Equal(t, len(c), len(g.Pending)+len(g.Done))

	// Order within each bucket follows the collection.
	assert.Equal(t, "p1", g.Pending[0].Head.ID)
	assert.Equal(t, "p2", g.Pending[1].Head.ID)
	assert.Equal(t, "d1", g.Done[0].Head.ID)
	assert.Equal(t, "d2", g.Done[1].Head.ID)
}

func TestPartitionByState_UnknownStateTreatedAsDone(t *testing.T) {
	now := time.Now()
	c := envelope.Collection{
		makeEnvelope("odd", envelope.State("Cancelled"), now),
	}

	g := PartitionByState(c)

	assert.Len(t, g.Pending, 0)
	require.Len(t, g.Done, 1)
	assert.Equal(t, "odd", g.Done[0].Head.ID)
}

func TestMerge_ReplacesByID(t *testing.T) {
	now := time.Now()
	original := envelope.Collection{
		makeEnvelope("a", envelope.StatePending, now),
		makeEnvelope("b", envelope.StatePending, now),
		makeEnvelope("c", envelope.StateDone, now),
	}

	resp := envelope.Done(original[1], envelope.ContentTypeString, "answer")

	merged, err := Merge(original, []envelope.Envelope{resp})
	require.NoError(t, err)
	require.Len(t, merged, len(original), "merge preserves length")

	assert.Equal(t, "a", merged[0].Head.ID)
	assert.Equal(t, envelope.StatePending, merged[0].Head.State)

	assert.Equal(t, "b", merged[1].Head.ID)
	assert.Equal(t, envelope.StateDone, merged[1].Head.State)
	assert.Equal(t, "answer", merged[1].Body)

	assert.Equal(t, "c", merged[2].Head.ID)
}

func TestMerge_NoResponsesIsIdentity(t *testing.T) {
	now := time.Now()
	original := envelope.Collection{
		makeEnvelope("a", envelope.StatePending, now),
	}

	merged, err := Merge(original, nil)
	require.NoError(t, err)
	assert.Equal(t, original, merged)
}

func TestMerge_RejectsUnknownResponseID(t *testing.T) {
	now := time.Now()
	original := envelope.Collection{
		makeEnvelope("a", envelope.StatePending, now),
	}
	ghost := makeEnvelope("ghost", envelope.StateDone, now)

	_, err := Merge(original, []envelope.Envelope{ghost})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}
