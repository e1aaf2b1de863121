package envelope

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequest_MintsPendingEnvelope(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	e := NewRequest("/monitor/pic/shot", now)

	assert.Equal(t, StatePending, e.Head.State)
	assert.Nil(t, e.Head.ContentType, "requests carry no content type")
	assert.Equal(t, now.UnixMilli(), e.Head.Timestamp)
	assert.Equal(t, "/monitor/pic/shot", e.Body)
	assert.True(t, e.IsPending())

	// The id must be a valid UUID.
	parsed, err := uuid.Parse(e.Head.ID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestNewRequest_IDsAreUnique(t *testing.T) {
	now := time.Now()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		e := NewRequest("/route", now)
		require.False(t, seen[e.Head.ID], "duplicate id %s", e.Head.ID)
		seen[e.Head.ID] = true
	}
}

func TestDone_PreservesIdentityAndTimestamp(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	req := NewRequest("/cmd/date", now)

	resp := Done(req, ContentTypeString, "Mon Jun  1 12:00:00 UTC 2025")

	assert.Equal(t, req.Head.ID, resp.Head.ID)
	assert.Equal(t, req.Head.Timestamp, resp.Head.Timestamp)
	assert.Equal(t, StateDone, resp.Head.State)
	require.NotNil(t, resp.Head.ContentType)
	assert.Equal(t, ContentTypeString, *resp.Head.ContentType)
	assert.Equal(t, "Mon Jun  1 12:00:00 UTC 2025", resp.Body)
	assert.False(t, resp.IsPending())

	// The original is untouched.
	assert.Equal(t, StatePending, req.Head.State)
	assert.Equal(t, "/cmd/date", req.Body)
}

func TestDone_FileResponseCarriesReferenceToken(t *testing.T) {
	now := time.Now()
	req := NewRequest("/monitor/pic/shot", now)

	resp := Done(req, ContentTypeFile, "0190cafe-babe-7000-8000-000000000001")

	require.NotNil(t, resp.Head.ContentType)
	assert.Equal(t, ContentTypeFile, *resp.Head.ContentType)
	assert.Equal(t, "0190cafe-babe-7000-8000-000000000001", resp.Body)
}

func TestAge_MeasuresFromCreation(t *testing.T) {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	e := NewRequest("/route", created)

	assert.Equal(t, 30*time.Minute, e.Age(created.Add(30*time.Minute)))
	assert.Equal(t, time.Duration(0), e.Age(created))
	// A clock behind the producer's yields a negative age.
	assert.Equal(t, -time.Minute, e.Age(created.Add(-time.Minute)))
}
