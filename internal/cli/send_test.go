package cli

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitpigeon/pigeon/pkg/envelope"
	"github.com/gitpigeon/pigeon/pkg/relay"
)

// stubClient scripts Fetch/Write behavior for appendRequest tests.
type stubClient struct {
	collection envelope.Collection
	version    int
	fetchErr   error
	writeErrs  []error
	writes     []envelope.Collection
}

func (s *stubClient) Fetch(ctx context.Context) (envelope.Collection, string, error) {
	if s.fetchErr != nil {
		return nil, "", s.fetchErr
	}
	out := make(envelope.Collection, len(s.collection))
	copy(out, s.collection)
	return out, fmt.Sprintf("v%d", s.version), nil
}

func (s *stubClient) Write(ctx context.Context, c envelope.Collection, version string) error {
	if len(s.writeErrs) > 0 {
		err := s.writeErrs[0]
		s.writeErrs = s.writeErrs[1:]
		if err != nil {
			return err
		}
	}
	s.collection = c
	s.version++
	s.writes = append(s.writes, c)
	return nil
}

func (s *stubClient) Upload(ctx context.Context, name string, data []byte) error {
	return nil
}

func TestAppendRequest_AppendsPendingEnvelope(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	orig := timeNow
	timeNow = func() time.Time { return now }
	defer func() { timeNow = orig }()

	existing := envelope.NewRequest("/other", now)
	client := &stubClient{collection: envelope.Collection{existing}}

	id, err := appendRequest(context.Background(), client, "/cmd/date")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	require.Len(t, client.writes, 1)
	got := client.writes[0]
	require.Len(t, got, 2, "existing envelopes are preserved")
	assert.Equal(t, existing.Head.ID, got[0].Head.ID)
	assert.Equal(t, id, got[1].Head.ID)
	assert.Equal(t, envelope.StatePending, got[1].Head.State)
	assert.Equal(t, "/cmd/date", got[1].Body)
	assert.Equal(t, now.UnixMilli(), got[1].Head.Timestamp)
}

func TestAppendRequest_RetriesOnConflict(t *testing.T) {
	client := &stubClient{}
	client.writeErrs = []error{relay.NewConflictError("pigeon.json", 409)}

	id, err := appendRequest(context.Background(), client, "/cmd/date")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Len(t, client.writes, 1)
}

func TestAppendRequest_GivesUpAfterRepeatedConflicts(t *testing.T) {
	client := &stubClient{}
	for i := 0; i < sendAttempts; i++ {
		client.writeErrs = append(client.writeErrs, relay.NewConflictError("pigeon.json", 409))
	}

	_, err := appendRequest(context.Background(), client, "/cmd/date")
	require.Error(t, err)
	assert.True(t, relay.IsConflict(err))
}

func TestAppendRequest_FetchErrorAbortsImmediately(t *testing.T) {
	client := &stubClient{fetchErr: relay.NewAuthError("pigeon.json")}

	_, err := appendRequest(context.Background(), client, "/cmd/date")
	require.Error(t, err)
	assert.True(t, relay.IsAuth(err))
	assert.Empty(t, client.writes)
}

func TestAppendRequest_NonConflictWriteErrorAborts(t *testing.T) {
	client := &stubClient{}
	client.writeErrs = []error{relay.NewNetworkError("pigeon.json", errors.New("timeout"))}

	_, err := appendRequest(context.Background(), client, "/cmd/date")
	require.Error(t, err)
	assert.True(t, relay.IsNetwork(err))
}
