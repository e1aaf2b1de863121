package relay

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransportError_Message(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewNetworkError("pigeon.json", cause)

	assert.Contains(t, err.Error(), "NETWORK")
	assert.Contains(t, err.Error(), "pigeon.json")
	assert.Contains(t, err.Error(), "connection refused")
	assert.ErrorIs(t, err, cause)
}

func TestErrorPredicates(t *testing.T) {
	tests := []struct {
		name string
		err  error
		pred func(error) bool
	}{
		{"network", NewNetworkError("p", nil), IsNetwork},
		{"auth", NewAuthError("p"), IsAuth},
		{"not found", NewNotFoundError("p"), IsNotFound},
		{"decode", NewDecodeError("p", nil), IsDecode},
		{"conflict", NewConflictError("p", 409), IsConflict},
		{"already exists", NewAlreadyExistsError("p"), IsAlreadyExists},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.pred(tt.err))
			// Predicates see through wrapping.
			assert.True(t, tt.pred(fmt.Errorf("cycle failed: %w", tt.err)))
			// Predicates are specific to their code.
			assert.False(t, tt.pred(errors.New("plain")))
		})
	}
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(NewAuthError("p")))
	assert.True(t, IsFatal(NewNotFoundError("p")))

	// Everything transient keeps the loop alive.
	assert.False(t, IsFatal(NewNetworkError("p", nil)))
	assert.False(t, IsFatal(NewConflictError("p", 409)))
	assert.False(t, IsFatal(NewDecodeError("p", nil)))
	assert.False(t, IsFatal(nil))
}

func TestErrorPredicates_StatusPreserved(t *testing.T) {
	err := NewConflictError("pigeon.json", 412)

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, 412, te.Status)
	assert.Equal(t, ErrCodeConflict, te.Code)
}
