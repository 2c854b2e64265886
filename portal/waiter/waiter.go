package waiter

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/skalenetwork/portal-sub000/portal/chain"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "waiter").Logger()
}

// SetLogger replaces the package logger.
func SetLogger(l zerolog.Logger) {
	log = l.With().Str("component", "waiter").Logger()
}

const (
	DefaultInterval      = 10 * time.Second
	DefaultMaxIterations = 60
)

// ErrTimeout is returned when the observed value did not change within the iteration bound.
var ErrTimeout = errors.New("timed out waiting for change")

// TimeoutError carries the iteration count and the last read failure, if any.
type TimeoutError struct {
	Iterations int
	LastErr    error
}

func (e *TimeoutError) Error() string {
	if e.LastErr != nil {
		return fmt.Sprintf("%s after %d iterations: %v", ErrTimeout, e.Iterations, e.LastErr)
	}
	return fmt.Sprintf("%s after %d iterations", ErrTimeout, e.Iterations)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

func (e *TimeoutError) Unwrap() error {
	return e.LastErr
}

// Options bound a wait. Zero fields fall back to the defaults.
type Options struct {
	Interval      time.Duration
	MaxIterations int
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	return o
}

// WaitForChange calls read up to MaxIterations times, sleeping Interval between calls, and
// returns the first value that is not equal to baseline. Read errors are logged and count as
// an iteration. ctx is only checked between iterations.
func WaitForChange[V any](ctx context.Context, read func(context.Context) (V, error), baseline V, equal func(a, b V) bool, opts Options) (V, error) {
	opts = opts.withDefaults()
	var lastErr error

	for i := 0; i < opts.MaxIterations; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				var zero V
				return zero, ctx.Err()
			case <-time.After(opts.Interval):
			}
		}

		v, err := read(ctx)
		if err != nil {
			lastErr = err
			log.Debug().Err(err).Int("iteration", i).Msg("Read failed, retrying")
			continue
		}
		if !equal(v, baseline) {
			return v, nil
		}
	}

	var zero V
	return zero, &TimeoutError{Iterations: opts.MaxIterations, LastErr: lastErr}
}

func bigEqual(a, b *big.Int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Cmp(b) == 0
}

// NativeBalance waits until the native balance of account differs from baseline.
func NativeBalance(ctx context.Context, client chain.Client, account common.Address, baseline *big.Int, opts Options) (*big.Int, error) {
	read := func(ctx context.Context) (*big.Int, error) {
		return client.BalanceAt(ctx, account)
	}
	return WaitForChange(ctx, read, baseline, bigEqual, opts)
}

// TokenBalance waits until the ERC20 balance of account differs from baseline.
func TokenBalance(ctx context.Context, token *chain.Contract, account common.Address, baseline *big.Int, opts Options) (*big.Int, error) {
	read := func(ctx context.Context) (*big.Int, error) {
		return token.Uint(ctx, "balanceOf", account)
	}
	return WaitForChange(ctx, read, baseline, bigEqual, opts)
}

// MultiTokenBalance waits until the ERC1155 balance of account for id differs from baseline.
func MultiTokenBalance(ctx context.Context, token *chain.Contract, account common.Address, id, baseline *big.Int, opts Options) (*big.Int, error) {
	read := func(ctx context.Context) (*big.Int, error) {
		return token.Uint(ctx, "balanceOf", account, id)
	}
	return WaitForChange(ctx, read, baseline, bigEqual, opts)
}

// NFTOwner waits until the owner of tokenID differs from baseline. A token that does not exist
// yet on the destination reverts ownerOf, which counts as a transient failure.
func NFTOwner(ctx context.Context, token *chain.Contract, tokenID *big.Int, baseline common.Address, opts Options) (common.Address, error) {
	read := func(ctx context.Context) (common.Address, error) {
		return token.AddressOf(ctx, "ownerOf", tokenID)
	}
	return WaitForChange(ctx, read, baseline, func(a, b common.Address) bool { return a == b }, opts)
}

// LockedEth waits until the amount of ETH the deposit box holds for account changes.
func LockedEth(ctx context.Context, depositBox *chain.Contract, account common.Address, baseline *big.Int, opts Options) (*big.Int, error) {
	read := func(ctx context.Context) (*big.Int, error) {
		return depositBox.Uint(ctx, "approveTransfers", account)
	}
	return WaitForChange(ctx, read, baseline, bigEqual, opts)
}

// ChainID waits until read reports target. Unlike the other helpers the wait ends on equality.
func ChainID(ctx context.Context, read func(context.Context) (*big.Int, error), target *big.Int, opts Options) error {
	matches := func(ctx context.Context) (bool, error) {
		id, err := read(ctx)
		if err != nil {
			return false, err
		}
		return bigEqual(id, target), nil
	}
	_, err := WaitForChange(ctx, matches, false, func(a, b bool) bool { return a == b }, opts)
	return err
}
