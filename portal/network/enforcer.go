package network

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/skalenetwork/portal-sub000/portal/chain"
	"github.com/skalenetwork/portal-sub000/portal/waiter"
	"github.com/skalenetwork/portal-sub000/portal/wallet"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "network").Logger()
}

// SetLogger replaces the package logger.
func SetLogger(l zerolog.Logger) {
	log = l.With().Str("component", "network").Logger()
}

const DefaultSwitchBackoff = 2 * time.Second

// Enforcer makes sure the wallet is attached to the chain a step signs on.
type Enforcer struct {
	catalog *chain.Catalog
	// SwitchBackoff is the pause before the single retry of a failed switch request.
	SwitchBackoff time.Duration
	// Confirm bounds the wait for the wallet to report the new chain id.
	Confirm waiter.Options
}

// NewEnforcer creates an enforcer resolving chain names through catalog.
func NewEnforcer(catalog *chain.Catalog) *Enforcer {
	return &Enforcer{
		catalog:       catalog,
		SwitchBackoff: DefaultSwitchBackoff,
		Confirm:       waiter.Options{Interval: time.Second, MaxIterations: 30},
	}
}

// Enforce switches w to target unless current already is the target chain id.
func (e *Enforcer) Enforce(ctx context.Context, current *big.Int, w wallet.Wallet, target string) error {
	info, err := e.catalog.Chain(target)
	if err != nil {
		return err
	}
	if current != nil && info.ChainID != nil && current.Cmp(info.ChainID) == 0 {
		return nil
	}

	logger := log.With().Str("target", target).Str("chain_id", info.ChainID.String()).Logger()
	logger.Info().Msg("Switching wallet network")

	if err := w.AddChain(ctx, info); err != nil {
		// usually means the chain is already registered
		logger.Debug().Err(err).Msg("Add chain failed, continuing")
	}

	if err := w.SwitchChain(ctx, info.ChainID); err != nil {
		logger.Warn().Err(err).Dur("backoff", e.SwitchBackoff).Msg("Switch failed, retrying once")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(e.SwitchBackoff):
		}
		if err := w.SwitchChain(ctx, info.ChainID); err != nil {
			return fmt.Errorf("failed to switch to %s: %w", target, err)
		}
	}

	if err := waiter.ChainID(ctx, w.ChainID, info.ChainID, e.Confirm); err != nil {
		return fmt.Errorf("wallet did not switch to %s: %w", target, err)
	}
	return nil
}
