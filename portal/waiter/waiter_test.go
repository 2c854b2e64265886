package waiter_test

import (
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zeebo/assert"

	"github.com/skalenetwork/portal-sub000/portal/waiter"
)

func intEqual(a, b int) bool { return a == b }

func TestWaitForChange_ReturnsOnChange(t *testing.T) {
	var calls atomic.Int32
	read := func(context.Context) (int, error) {
		if calls.Add(1) < 3 {
			return 5, nil
		}
		return 7, nil
	}

	v, err := waiter.WaitForChange(context.Background(), read, 5, intEqual,
		waiter.Options{Interval: time.Millisecond, MaxIterations: 10})
	assert.NoError(t, err)
	assert.Equal(t, v, 7)
	assert.Equal(t, calls.Load(), int32(3))
}

func TestWaitForChange_SingleIterationTimesOut(t *testing.T) {
	var calls atomic.Int32
	read := func(context.Context) (int, error) {
		calls.Add(1)
		return 5, nil
	}

	start := time.Now()
	_, err := waiter.WaitForChange(context.Background(), read, 5, intEqual,
		waiter.Options{Interval: time.Second, MaxIterations: 1})
	assert.True(t, errors.Is(err, waiter.ErrTimeout))
	assert.Equal(t, calls.Load(), int32(1))
	assert.True(t, time.Since(start) < time.Second)
}

func TestWaitForChange_ReadErrorsAreTransient(t *testing.T) {
	var calls atomic.Int32
	boom := errors.New("boom")
	read := func(context.Context) (int, error) {
		if calls.Add(1) == 1 {
			return 0, boom
		}
		return 1, nil
	}

	v, err := waiter.WaitForChange(context.Background(), read, 0, intEqual,
		waiter.Options{Interval: time.Millisecond, MaxIterations: 3})
	assert.NoError(t, err)
	assert.Equal(t, v, 1)
}

func TestWaitForChange_TimeoutKeepsLastError(t *testing.T) {
	boom := errors.New("boom")
	read := func(context.Context) (int, error) { return 0, boom }

	_, err := waiter.WaitForChange(context.Background(), read, 0, intEqual,
		waiter.Options{Interval: time.Millisecond, MaxIterations: 2})
	assert.True(t, errors.Is(err, waiter.ErrTimeout))
	assert.True(t, errors.Is(err, boom))

	var timeout *waiter.TimeoutError
	assert.True(t, errors.As(err, &timeout))
	assert.Equal(t, timeout.Iterations, 2)
}

func TestWaitForChange_CancelledBetweenIterations(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	read := func(context.Context) (int, error) {
		cancel()
		return 0, nil
	}

	_, err := waiter.WaitForChange(ctx, read, 0, intEqual,
		waiter.Options{Interval: time.Hour, MaxIterations: 5})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestChainID(t *testing.T) {
	var calls atomic.Int32
	read := func(context.Context) (*big.Int, error) {
		if calls.Add(1) < 2 {
			return big.NewInt(1), nil
		}
		return big.NewInt(42), nil
	}

	err := waiter.ChainID(context.Background(), read, big.NewInt(42),
		waiter.Options{Interval: time.Millisecond, MaxIterations: 5})
	assert.NoError(t, err)

	err = waiter.ChainID(context.Background(), func(context.Context) (*big.Int, error) {
		return big.NewInt(1), nil
	}, big.NewInt(42), waiter.Options{Interval: time.Millisecond, MaxIterations: 2})
	assert.True(t, errors.Is(err, waiter.ErrTimeout))
}
