package network_test

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/zeebo/assert"

	"github.com/skalenetwork/portal-sub000/portal/chaintest"
	"github.com/skalenetwork/portal-sub000/portal/network"
	"github.com/skalenetwork/portal-sub000/portal/waiter"
)

func setup() (*network.Enforcer, *chaintest.Wallet) {
	net := chaintest.NewNetwork("mainnet",
		chaintest.NewChain("mainnet", 1),
		chaintest.NewChain("chain-a", 1482601649),
	)
	w := chaintest.NewWallet(net, common.HexToAddress("0xaa"), "mainnet")

	e := network.NewEnforcer(net.Catalog(nil))
	e.SwitchBackoff = time.Millisecond
	e.Confirm = waiter.Options{Interval: time.Millisecond, MaxIterations: 3}
	return e, w
}

func TestEnforce_NoopOnSameChain(t *testing.T) {
	e, w := setup()
	ctx := context.Background()

	current, err := w.ChainID(ctx)
	assert.NoError(t, err)
	assert.NoError(t, e.Enforce(ctx, current, w, "mainnet"))
	assert.Equal(t, w.SwitchCalls(), 0)
}

func TestEnforce_Switches(t *testing.T) {
	e, w := setup()
	ctx := context.Background()

	current, _ := w.ChainID(ctx)
	assert.NoError(t, e.Enforce(ctx, current, w, "chain-a"))
	assert.Equal(t, w.SwitchCalls(), 1)

	id, err := w.ChainID(ctx)
	assert.NoError(t, err)
	assert.Equal(t, id.Int64(), int64(1482601649))

	// chain is already added now, the add error is swallowed
	assert.NoError(t, e.Enforce(ctx, nil, w, "mainnet"))
	assert.NoError(t, e.Enforce(ctx, nil, w, "chain-a"))
}

func TestEnforce_RetriesSwitchOnce(t *testing.T) {
	e, w := setup()
	w.SwitchFailures = 1

	assert.NoError(t, e.Enforce(context.Background(), nil, w, "chain-a"))
	assert.Equal(t, w.SwitchCalls(), 2)
}

func TestEnforce_FailsAfterSecondSwitchError(t *testing.T) {
	e, w := setup()
	w.SwitchFailures = 2

	assert.Error(t, e.Enforce(context.Background(), nil, w, "chain-a"))
	assert.Equal(t, w.SwitchCalls(), 2)
}

func TestEnforce_UnknownChain(t *testing.T) {
	e, w := setup()
	assert.Error(t, e.Enforce(context.Background(), nil, w, "chain-z"))
	assert.Equal(t, w.SwitchCalls(), 0)
}
