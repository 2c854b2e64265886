package pool_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/zeebo/assert"

	"github.com/skalenetwork/portal-sub000/portal/action"
	"github.com/skalenetwork/portal-sub000/portal/chain"
	"github.com/skalenetwork/portal-sub000/portal/chaintest"
	"github.com/skalenetwork/portal-sub000/portal/network"
	"github.com/skalenetwork/portal-sub000/portal/pool"
	"github.com/skalenetwork/portal-sub000/portal/waiter"
)

var (
	user       = common.HexToAddress("0xaa")
	poolAddr   = common.HexToAddress("0xc0")
	lockerAddr = common.HexToAddress("0xc1")
)

// fakePool answers the community pool and locker views from plain fields.
type fakePool struct {
	balance      *big.Int
	recommended  *big.Int
	activeMain   bool
	activeSource bool
}

type fixture struct {
	net  *chaintest.Network
	w    *chaintest.Wallet
	pool *fakePool
	acc  *pool.Accountant
}

func setup(t *testing.T) *fixture {
	t.Helper()
	mainnet := chaintest.NewChain("mainnet", 1)
	chainA := chaintest.NewChain("chain-a", 1482601649)
	net := chaintest.NewNetwork("mainnet", mainnet, chainA)

	fp := &fakePool{balance: big.NewInt(0), recommended: big.NewInt(0)}
	mainnet.Handle(poolAddr, chain.CommunityPoolABI, "getBalance", func(args []any) ([]any, error) {
		assert.Equal(t, args[1].(string), "chain-a")
		return []any{new(big.Int).Set(fp.balance)}, nil
	})
	mainnet.Handle(poolAddr, chain.CommunityPoolABI, "checkUserBalance", func([]any) ([]any, error) {
		return []any{fp.activeMain}, nil
	})
	mainnet.Handle(poolAddr, chain.CommunityPoolABI, "getRecommendedRechargeAmount", func(args []any) ([]any, error) {
		assert.Equal(t, common.Hash(args[0].([32]byte)), chain.SchainHash("chain-a"))
		return []any{new(big.Int).Set(fp.recommended)}, nil
	})
	chainA.Handle(lockerAddr, chain.CommunityLockerABI, "activeUsers", func([]any) ([]any, error) {
		return []any{fp.activeSource}, nil
	})

	catalog := net.Catalog(map[string]chain.Contracts{
		"mainnet": {CommunityPool: poolAddr},
		"chain-a": {CommunityLocker: lockerAddr},
	})
	enforcer := network.NewEnforcer(catalog)
	enforcer.SwitchBackoff = time.Millisecond
	enforcer.Confirm = waiter.Options{Interval: time.Millisecond, MaxIterations: 3}

	acc := pool.NewAccountant(catalog, net, enforcer, pool.Options{
		Activation: waiter.Options{Interval: time.Millisecond, MaxIterations: 3},
	})
	return &fixture{
		net:  net,
		w:    chaintest.NewWallet(net, user, "chain-a"),
		pool: fp,
		acc:  acc,
	}
}

func TestComputeStatus_NotToMainnetIsOKWithoutCalls(t *testing.T) {
	f := setup(t)
	status, err := f.acc.ComputeStatus(context.Background(), user, "chain-a", "chain-b")
	assert.NoError(t, err)
	assert.True(t, status.ExitGasOK)
	assert.Equal(t, f.net.Chain("mainnet").Reads(), 0)
	assert.Equal(t, f.net.Chain("chain-a").Reads(), 0)
}

func TestComputeStatus_RaisesToMinimum(t *testing.T) {
	f := setup(t)
	f.pool.balance = big.NewInt(42)
	f.pool.recommended = big.NewInt(1_000_000_000_000_000)
	f.net.Chain("mainnet").SetBalance(user, big.NewInt(7))

	status, err := f.acc.ComputeStatus(context.Background(), user, "chain-a", "mainnet")
	assert.NoError(t, err)
	assert.Equal(t, status.Balance.String(), "42")
	assert.Equal(t, status.AccountBalance.String(), "7")
	assert.Equal(t, status.RecommendedRecharge.String(), pool.DefaultMinRecharge.String())
	assert.False(t, status.ExitGasOK)
}

func TestComputeStatus_AppliesMultiplier(t *testing.T) {
	f := setup(t)
	f.pool.recommended = big.NewInt(10_000_000_000_000_000)

	status, err := f.acc.ComputeStatus(context.Background(), user, "chain-a", "mainnet")
	assert.NoError(t, err)
	assert.Equal(t, status.RecommendedRecharge.String(), "12000000000000000")
}

func TestComputeStatus_ExitGasOK(t *testing.T) {
	cases := []struct {
		name         string
		activeMain   bool
		activeSource bool
		recommended  int64
		ok           bool
	}{
		{"all set", true, true, 0, true},
		{"mainnet inactive", false, true, 0, false},
		{"source inactive", true, false, 0, false},
		{"recharge recommended", true, true, 1, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := setup(t)
			f.pool.activeMain = tc.activeMain
			f.pool.activeSource = tc.activeSource
			f.pool.recommended = big.NewInt(tc.recommended)

			status, err := f.acc.ComputeStatus(context.Background(), user, "chain-a", "mainnet")
			assert.NoError(t, err)
			assert.Equal(t, status.ExitGasOK, tc.ok)
		})
	}
}

func TestComputeStatus_CustomOptions(t *testing.T) {
	f := setup(t)
	f.pool.recommended = big.NewInt(100)
	catalog := f.net.Catalog(map[string]chain.Contracts{
		"mainnet": {CommunityPool: poolAddr},
		"chain-a": {CommunityLocker: lockerAddr},
	})
	acc := pool.NewAccountant(catalog, f.net, network.NewEnforcer(catalog), pool.Options{
		Multiplier:  decimal.RequireFromString("1.5"),
		MinRecharge: big.NewInt(1),
	})

	status, err := acc.ComputeStatus(context.Background(), user, "chain-a", "mainnet")
	assert.NoError(t, err)
	assert.Equal(t, status.RecommendedRecharge.String(), "150")
}

func TestRecharge_Activates(t *testing.T) {
	f := setup(t)
	f.w.OnSend = func(tx chaintest.Tx) error {
		if tx.Method == "rechargeUserWallet" {
			f.pool.activeMain = true
			f.pool.activeSource = true
		}
		return nil
	}

	res, err := f.acc.Recharge(context.Background(), f.w, "0.01", user, "chain-a")
	assert.NoError(t, err)
	assert.True(t, res.Activated)
	assert.True(t, res.TxHash != (common.Hash{}))

	sent := f.w.Sent()
	assert.Equal(t, len(sent), 1)
	assert.Equal(t, sent[0].Chain, "mainnet")
	assert.Equal(t, sent[0].Value.String(), "10000000000000000")
	assert.Equal(t, sent[0].Args[0], any("chain-a"))
	assert.Equal(t, sent[0].Args[1], any(user))
}

func TestRecharge_NotActivatedIsNotAnError(t *testing.T) {
	f := setup(t)
	res, err := f.acc.Recharge(context.Background(), f.w, "0.01", user, "chain-a")
	assert.NoError(t, err)
	assert.False(t, res.Activated)
	assert.True(t, res.TxHash != (common.Hash{}))
}

func TestRecharge_InvalidAmount(t *testing.T) {
	f := setup(t)
	_, err := f.acc.Recharge(context.Background(), f.w, "-1", user, "chain-a")
	assert.True(t, errors.Is(err, action.ErrInvalidInput))
	assert.Equal(t, len(f.w.Sent()), 0)
}

func TestWithdraw(t *testing.T) {
	f := setup(t)
	hash, err := f.acc.Withdraw(context.Background(), f.w, "0.5", "chain-a")
	assert.NoError(t, err)
	assert.True(t, hash != (common.Hash{}))

	sent := f.w.Sent()
	assert.DeepEqual(t, f.w.Methods(), []string{"withdrawFunds"})
	assert.Equal(t, sent[0].Args[1].(*big.Int).String(), "500000000000000000")
}

func TestWithdraw_Reverted(t *testing.T) {
	f := setup(t)
	f.w.Revert = func(chaintest.Tx) bool { return true }

	_, err := f.acc.Withdraw(context.Background(), f.w, "0.5", "chain-a")
	var revert *action.RevertError
	assert.True(t, errors.As(err, &revert))
}

func TestComputeStatus_NoPool(t *testing.T) {
	f := setup(t)
	catalog := f.net.Catalog(nil)
	acc := pool.NewAccountant(catalog, f.net, network.NewEnforcer(catalog), pool.Options{})
	_, err := acc.ComputeStatus(context.Background(), user, "chain-a", "mainnet")
	assert.True(t, errors.Is(err, pool.ErrNoPool))
}

func TestNoLocker_RechargeAndStatusAgree(t *testing.T) {
	f := setup(t)
	catalog := f.net.Catalog(map[string]chain.Contracts{
		"mainnet": {CommunityPool: poolAddr},
	})
	enforcer := network.NewEnforcer(catalog)
	enforcer.SwitchBackoff = time.Millisecond
	enforcer.Confirm = waiter.Options{Interval: time.Millisecond, MaxIterations: 3}
	acc := pool.NewAccountant(catalog, f.net, enforcer, pool.Options{
		Activation: waiter.Options{Interval: time.Millisecond, MaxIterations: 3},
	})
	f.w.OnSend = func(tx chaintest.Tx) error {
		if tx.Method == "rechargeUserWallet" {
			f.pool.activeMain = true
		}
		return nil
	}

	res, err := acc.Recharge(context.Background(), f.w, "0.01", user, "chain-a")
	assert.NoError(t, err)
	assert.True(t, res.Activated)

	status, err := acc.ComputeStatus(context.Background(), user, "chain-a", "mainnet")
	assert.NoError(t, err)
	assert.True(t, status.ActiveOnMainnet)
	assert.True(t, status.ActiveOnSource)
	assert.True(t, status.ExitGasOK)
	assert.Equal(t, f.net.Chain("chain-a").Reads(), 0)
}
