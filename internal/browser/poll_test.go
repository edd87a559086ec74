package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollSucceedsEventually(t *testing.T) {
	calls := 0
	err := Poll(context.Background(), time.Millisecond, 5, func(context.Context) (bool, error) {
		calls++
		return calls == 3, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestPollExhausted(t *testing.T) {
	calls := 0
	err := Poll(context.Background(), time.Millisecond, 4, func(context.Context) (bool, error) {
		calls++
		return false, nil
	})
	require.ErrorIs(t, err, ErrPollExhausted)
	assert.Equal(t, 4, calls)
}

func TestPollKeepsGoingOnErrors(t *testing.T) {
	calls := 0
	boom := errors.New("execution context was destroyed")
	err := Poll(context.Background(), time.Millisecond, 3, func(context.Context) (bool, error) {
		calls++
		return false, boom
	})
	require.ErrorIs(t, err, ErrPollExhausted)
	assert.Contains(t, err.Error(), boom.Error())
	assert.Equal(t, 3, calls)
}

func TestPollStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Poll(ctx, time.Hour, 10, func(context.Context) (bool, error) {
		calls++
		cancel()
		return false, nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
