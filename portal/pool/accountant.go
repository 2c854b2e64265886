// Package pool tracks the community pool, the mainnet contract that prepays the gas of exits
// from a bridge chain, and drives its recharge and withdraw calls.
package pool

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/skalenetwork/portal-sub000/portal/action"
	"github.com/skalenetwork/portal-sub000/portal/chain"
	"github.com/skalenetwork/portal-sub000/portal/models"
	"github.com/skalenetwork/portal-sub000/portal/network"
	"github.com/skalenetwork/portal-sub000/portal/waiter"
	"github.com/skalenetwork/portal-sub000/portal/wallet"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "pool").Logger()
}

// SetLogger replaces the package logger.
func SetLogger(l zerolog.Logger) {
	log = l.With().Str("component", "pool").Logger()
}

const ethDecimals = 18

var (
	DefaultMultiplier  = decimal.RequireFromString("1.2")
	DefaultMinRecharge = big.NewInt(5_000_000_000_000_000)

	// ErrNoPool is returned when mainnet has no community pool configured.
	ErrNoPool = errors.New("community pool is not configured")
)

// Options tune the status maths and the activation wait after a recharge.
type Options struct {
	// Multiplier is applied to the contract's recommended recharge.
	Multiplier decimal.Decimal
	// MinRecharge is the smallest nonzero top-up suggested, in wei.
	MinRecharge *big.Int
	// Activation bounds the wait for both activation flags after a recharge.
	Activation waiter.Options
}

func (o Options) withDefaults() Options {
	if o.Multiplier.IsZero() {
		o.Multiplier = DefaultMultiplier
	}
	if o.MinRecharge == nil {
		o.MinRecharge = DefaultMinRecharge
	}
	return o
}

// Accountant reads and moves community pool balances.
type Accountant struct {
	catalog  *chain.Catalog
	clients  chain.Provider
	enforcer *network.Enforcer
	opts     Options
	now      func() time.Time
}

func NewAccountant(catalog *chain.Catalog, clients chain.Provider, enforcer *network.Enforcer, opts Options) *Accountant {
	return &Accountant{
		catalog:  catalog,
		clients:  clients,
		enforcer: enforcer,
		opts:     opts.withDefaults(),
		now:      time.Now,
	}
}

// RechargeResult is the outcome of a recharge. Activated is false when the flags did not flip
// within the wait, the recharge itself still succeeded.
type RechargeResult struct {
	TxHash    common.Hash
	Activated bool
}

type poolContracts struct {
	mainnet chain.Client
	pool    *chain.Contract
	locker  *chain.Contract
}

func (a *Accountant) contracts(source string) (*poolContracts, error) {
	mainnetName := a.catalog.Mainnet()
	mainnetCt, err := a.catalog.Contracts(mainnetName)
	if err != nil {
		return nil, err
	}
	if mainnetCt.CommunityPool == (common.Address{}) {
		return nil, ErrNoPool
	}
	mainnet, err := a.clients.Client(mainnetName)
	if err != nil {
		return nil, err
	}
	out := &poolContracts{
		mainnet: mainnet,
		pool:    chain.NewContract(mainnetCt.CommunityPool, chain.CommunityPoolABI, mainnet),
	}

	sourceCt, err := a.catalog.Contracts(source)
	if err != nil {
		return nil, err
	}
	if sourceCt.CommunityLocker != (common.Address{}) {
		sourceClient, err := a.clients.Client(source)
		if err != nil {
			return nil, err
		}
		out.locker = chain.NewContract(sourceCt.CommunityLocker, chain.CommunityLockerABI, sourceClient)
	}
	return out, nil
}

// activeOnSource reads the locker activation of address. A chain without a community locker
// does not gate exits, so it always counts as active.
func (c *poolContracts) activeOnSource(ctx context.Context, address common.Address) (bool, error) {
	if c.locker == nil {
		return true, nil
	}
	return c.locker.Bool(ctx, "activeUsers", address)
}

// ComputeStatus snapshots the pool position of address for exits from source. Transfers that
// do not end on mainnet need no exit gas, so they are reported as ok without any call.
func (a *Accountant) ComputeStatus(ctx context.Context, address common.Address, source, destination string) (models.GasReserveStatus, error) {
	status := models.GasReserveStatus{
		Address:          address.Hex(),
		SourceChain:      source,
		DestinationChain: destination,
		CheckedAt:        a.now(),
	}
	if !a.catalog.IsMainnet(destination) {
		status.ExitGasOK = true
		return status, nil
	}

	c, err := a.contracts(source)
	if err != nil {
		return status, err
	}
	hash := chain.SchainHash(source)

	if status.Balance, err = c.pool.Uint(ctx, "getBalance", address, source); err != nil {
		return status, fmt.Errorf("failed to get pool balance: %w", err)
	}
	if status.AccountBalance, err = c.mainnet.BalanceAt(ctx, address); err != nil {
		return status, fmt.Errorf("failed to get mainnet balance: %w", err)
	}
	if status.ActiveOnMainnet, err = c.pool.Bool(ctx, "checkUserBalance", hash, address); err != nil {
		return status, fmt.Errorf("failed to check pool activation: %w", err)
	}
	if status.ActiveOnSource, err = c.activeOnSource(ctx, address); err != nil {
		return status, fmt.Errorf("failed to check locker activation: %w", err)
	}
	recommended, err := c.pool.Uint(ctx, "getRecommendedRechargeAmount", hash, address)
	if err != nil {
		return status, fmt.Errorf("failed to get recommended recharge: %w", err)
	}
	status.RecommendedRecharge = a.adjust(recommended)
	status.ExitGasOK = status.ActiveOnMainnet && status.ActiveOnSource && status.RecommendedRecharge.Sign() == 0

	log.Debug().
		Str("address", status.Address).
		Str("source", source).
		Str("balance", status.Balance.String()).
		Str("recommended", status.RecommendedRecharge.String()).
		Bool("exit_gas_ok", status.ExitGasOK).
		Msg("Pool status")
	return status, nil
}

// adjust applies the multiplier to a nonzero recommendation and raises it to the minimum top-up.
func (a *Accountant) adjust(recommended *big.Int) *big.Int {
	if recommended.Sign() == 0 {
		return new(big.Int)
	}
	scaled := decimal.NewFromBigInt(recommended, 0).Mul(a.opts.Multiplier).Ceil().BigInt()
	if scaled.Cmp(a.opts.MinRecharge) < 0 {
		return new(big.Int).Set(a.opts.MinRecharge)
	}
	return scaled
}

// Recharge tops up the pool for address on source with amount ETH, then waits for the
// activation flags on a best-effort basis.
func (a *Accountant) Recharge(ctx context.Context, w wallet.Wallet, amount string, address common.Address, source string) (RechargeResult, error) {
	wei, res := action.ParseAmount(amount, ethDecimals)
	if !res.OK {
		return RechargeResult{}, fmt.Errorf("%w: %s", action.ErrInvalidInput, res.Message)
	}
	c, err := a.contracts(source)
	if err != nil {
		return RechargeResult{}, err
	}

	receipt, err := a.send(ctx, w, c.mainnet, c.pool, wei, "rechargeUserWallet", source, address)
	if err != nil {
		return RechargeResult{}, err
	}
	result := RechargeResult{TxHash: receipt.Hash}

	hash := chain.SchainHash(source)
	active := func(ctx context.Context) (bool, error) {
		onMainnet, err := c.pool.Bool(ctx, "checkUserBalance", hash, address)
		if err != nil || !onMainnet {
			return false, err
		}
		return c.activeOnSource(ctx, address)
	}
	_, err = waiter.WaitForChange(ctx, active, false, func(x, y bool) bool { return x == y }, a.opts.Activation)
	if err != nil {
		log.Warn().Err(err).Str("address", address.Hex()).Str("source", source).
			Msg("Pool not active yet, it may still activate later")
		return result, nil
	}
	result.Activated = true
	log.Info().Str("address", address.Hex()).Str("source", source).Str("tx", receipt.Hash.Hex()).Msg("Pool recharged")
	return result, nil
}

// Withdraw takes amount ETH back out of the pool for source.
func (a *Accountant) Withdraw(ctx context.Context, w wallet.Wallet, amount string, source string) (common.Hash, error) {
	wei, res := action.ParseAmount(amount, ethDecimals)
	if !res.OK {
		return common.Hash{}, fmt.Errorf("%w: %s", action.ErrInvalidInput, res.Message)
	}
	c, err := a.contracts(source)
	if err != nil {
		return common.Hash{}, err
	}
	receipt, err := a.send(ctx, w, c.mainnet, c.pool, nil, "withdrawFunds", source, wei)
	if err != nil {
		return common.Hash{}, err
	}
	log.Info().Str("source", source).Str("tx", receipt.Hash.Hex()).Msg("Pool withdrawal")
	return receipt.Hash, nil
}

func (a *Accountant) send(ctx context.Context, w wallet.Wallet, client chain.Client, c *chain.Contract, value *big.Int, method string, args ...any) (*chain.Receipt, error) {
	current, err := w.ChainID(ctx)
	if err != nil {
		current = nil
	}
	if err := a.enforcer.Enforce(ctx, current, w, a.catalog.Mainnet()); err != nil {
		return nil, err
	}
	data, err := c.Pack(method, args...)
	if err != nil {
		return nil, err
	}
	hash, err := w.SendTransaction(ctx, wallet.TxRequest{To: c.Address, Data: data, Value: value})
	if err != nil {
		return nil, action.Classify(err)
	}
	receipt, err := client.WaitMined(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed waiting for %s: %w", method, err)
	}
	if !receipt.Succeeded() {
		return nil, &action.RevertError{TxHash: hash, Reason: method + " failed"}
	}
	return receipt, nil
}
