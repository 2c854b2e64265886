package action

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/skalenetwork/portal-sub000/portal/chain"
	"github.com/skalenetwork/portal-sub000/portal/models"
	"github.com/skalenetwork/portal-sub000/portal/waiter"
)

// ethBalance reads the ETH balance of account on a chain. Bridge chains hold ETH as an ERC20
// clone, mainnet (and clone entries without an address) as the native coin.
func ethBalance(ctx context.Context, client chain.Client, conn models.Connection, account common.Address) (*big.Int, error) {
	if conn.Address == (common.Address{}) {
		return client.BalanceAt(ctx, account)
	}
	return chain.NewContract(conn.Address, chain.ERC20ABI, client).Uint(ctx, "balanceOf", account)
}

// EthM2S deposits ETH from mainnet to a bridge chain through DepositBoxEth.
type EthM2S struct {
	*base
	depositBox *chain.Contract
	srcConn    models.Connection
	dstConn    models.Connection
}

func newEthM2S(b *base) (Action, error) {
	b.name = "EthM2S"
	if b.fromCt.DepositBoxEth == (common.Address{}) {
		return nil, fmt.Errorf("no DepositBoxEth on %s", b.spec.Step.From)
	}
	src, _ := b.token().Connection(b.spec.Step.From)
	dst, _ := b.token().Connection(b.spec.Step.To)
	return &EthM2S{
		base:       b,
		depositBox: chain.NewContract(b.fromCt.DepositBoxEth, chain.DepositBoxABI, b.from),
		srcConn:    src,
		dstConn:    dst,
	}, nil
}

func (a *EthM2S) PreAction(ctx context.Context) (models.CheckResult, error) {
	if res := a.parse(); !res.OK {
		return res, nil
	}
	balance, err := ethBalance(ctx, a.from, a.srcConn, a.address())
	if err != nil {
		return models.CheckResult{}, fmt.Errorf("failed to get balance on %s: %w", a.spec.Step.From, err)
	}
	if balance.Cmp(a.wei) < 0 {
		return a.insufficient(balance), nil
	}
	return models.CheckResult{OK: true}, nil
}

func (a *EthM2S) Execute(ctx context.Context) error {
	return a.traced(ctx, func(ctx context.Context) error {
		if err := a.mustParse(); err != nil {
			return err
		}
		a.emit(models.StateInit, nil)

		if err := a.enforce(ctx, a.spec.Step.From); err != nil {
			return err
		}
		a.emit(models.StateSwitch, nil)

		baseline, err := ethBalance(ctx, a.to, a.dstConn, a.address())
		if err != nil {
			return fmt.Errorf("failed to read destination balance: %w", err)
		}

		a.emit(models.StateTransfer, nil)
		receipt, err := a.send(ctx, a.from, a.depositBox.Address, a.depositBox.ABI, a.wei, "deposit", a.spec.Step.To)
		if err != nil {
			return err
		}
		a.emit(models.StateTransferDone, receipt)

		read := func(ctx context.Context) (*big.Int, error) {
			return ethBalance(ctx, a.to, a.dstConn, a.address())
		}
		if _, err := waiter.WaitForChange(ctx, read, baseline, bigEqual, a.waitOpts()); err != nil {
			return err
		}
		a.emit(models.StateReceived, receipt)
		return nil
	})
}

// EthS2M exits ETH from a bridge chain to mainnet through TokenManagerEth. The ETH ends up
// locked in DepositBoxEth until an Unlock step claims it.
type EthS2M struct {
	*base
	tokenManager *chain.Contract
	depositBox   *chain.Contract
	srcConn      models.Connection
}

func newEthS2M(b *base) (Action, error) {
	b.name = "EthS2M"
	if b.fromCt.TokenManagerEth == (common.Address{}) {
		return nil, fmt.Errorf("no TokenManagerEth on %s", b.spec.Step.From)
	}
	if b.toCt.DepositBoxEth == (common.Address{}) {
		return nil, fmt.Errorf("no DepositBoxEth on %s", b.spec.Step.To)
	}
	src, _ := b.token().Connection(b.spec.Step.From)
	return &EthS2M{
		base:         b,
		tokenManager: chain.NewContract(b.fromCt.TokenManagerEth, chain.TokenManagerABI, b.from),
		depositBox:   chain.NewContract(b.toCt.DepositBoxEth, chain.DepositBoxABI, b.to),
		srcConn:      src,
	}, nil
}

func (a *EthS2M) PreAction(ctx context.Context) (models.CheckResult, error) {
	if res := a.parse(); !res.OK {
		return res, nil
	}
	balance, err := ethBalance(ctx, a.from, a.srcConn, a.address())
	if err != nil {
		return models.CheckResult{}, fmt.Errorf("failed to get balance on %s: %w", a.spec.Step.From, err)
	}
	if balance.Cmp(a.wei) < 0 {
		return a.insufficient(balance), nil
	}
	return models.CheckResult{OK: true}, nil
}

func (a *EthS2M) Execute(ctx context.Context) error {
	return a.traced(ctx, func(ctx context.Context) error {
		if err := a.mustParse(); err != nil {
			return err
		}
		a.emit(models.StateInit, nil)

		if err := a.enforce(ctx, a.spec.Step.From); err != nil {
			return err
		}
		a.emit(models.StateSwitch, nil)

		locked, err := a.depositBox.Uint(ctx, "approveTransfers", a.address())
		if err != nil {
			return fmt.Errorf("failed to read locked ETH: %w", err)
		}

		a.emit(models.StateTransfer, nil)
		receipt, err := a.send(ctx, a.from, a.tokenManager.Address, a.tokenManager.ABI, nil, "exitToMain", a.wei)
		if err != nil {
			return err
		}
		a.emit(models.StateTransferDone, receipt)

		if _, err := waiter.LockedEth(ctx, a.depositBox, a.address(), locked, a.waitOpts()); err != nil {
			return err
		}
		a.emit(models.StateReceived, receipt)
		return nil
	})
}

func bigEqual(a, b *big.Int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Cmp(b) == 0
}
