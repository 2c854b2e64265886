package action

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/skalenetwork/portal-sub000/portal/chain"
	"github.com/skalenetwork/portal-sub000/portal/models"
)

// Wrap deposits the token into its wrapper on the source chain so it can be bridged.
type Wrap struct {
	*base
	// underlying is nil when the wrapper takes the native coin.
	underlying *chain.Contract
	wrapper    *chain.Contract
}

func newWrap(b *base) (Action, error) {
	b.name = "Wrap"
	conn, _ := b.token().Connection(b.spec.Step.From)
	a := &Wrap{
		base:    b,
		wrapper: chain.NewContract(*conn.Wrapper, chain.WrapperABI, b.from),
	}
	if conn.Address != (common.Address{}) {
		a.underlying = chain.NewContract(conn.Address, chain.ERC20ABI, b.from)
	}
	return a, nil
}

func (a *Wrap) PreAction(ctx context.Context) (models.CheckResult, error) {
	if res := a.parse(); !res.OK {
		return res, nil
	}
	var (
		balance *big.Int
		err     error
	)
	if a.underlying == nil {
		balance, err = a.from.BalanceAt(ctx, a.address())
	} else {
		balance, err = a.underlying.Uint(ctx, "balanceOf", a.address())
	}
	if err != nil {
		return models.CheckResult{}, fmt.Errorf("failed to get balance on %s: %w", a.spec.Step.From, err)
	}
	if balance.Cmp(a.wei) < 0 {
		return a.insufficient(balance), nil
	}
	return models.CheckResult{OK: true}, nil
}

func (a *Wrap) Execute(ctx context.Context) error {
	return a.traced(ctx, func(ctx context.Context) error {
		if err := a.mustParse(); err != nil {
			return err
		}
		a.emit(models.StateInit, nil)

		if err := a.enforce(ctx, a.spec.Step.From); err != nil {
			return err
		}

		var value *big.Int
		if a.underlying == nil {
			value = a.wei
		} else {
			allowance, err := a.underlying.Uint(ctx, "allowance", a.address(), a.wrapper.Address)
			if err != nil {
				return fmt.Errorf("failed to check allowance: %w", err)
			}
			if allowance.Cmp(a.wei) < 0 {
				a.emit(models.StateApproveWrap, nil)
				receipt, err := a.send(ctx, a.from, a.underlying.Address, a.underlying.ABI, nil, "approve", a.wrapper.Address, a.wei)
				if err != nil {
					return err
				}
				a.emit(models.StateApproveWrapDone, receipt)
				if err := a.enforce(ctx, a.spec.Step.From); err != nil {
					return err
				}
			}
		}

		a.emit(models.StateWrap, nil)
		receipt, err := a.send(ctx, a.from, a.wrapper.Address, a.wrapper.ABI, value, "depositFor", a.address(), a.wei)
		if err != nil {
			return err
		}
		a.emit(models.StateWrapDone, receipt)
		return nil
	})
}

// Unwrap withdraws the wrapped balance back to the underlying token on the destination chain.
type Unwrap struct {
	*base
	wrapper *chain.Contract
}

func newUnwrap(b *base) (Action, error) {
	b.name = "Unwrap"
	conn, _ := b.token().Connection(b.spec.Step.To)
	return &Unwrap{
		base:    b,
		wrapper: chain.NewContract(*conn.Wrapper, chain.WrapperABI, b.to),
	}, nil
}

func (a *Unwrap) PreAction(ctx context.Context) (models.CheckResult, error) {
	if res := a.parse(); !res.OK {
		return res, nil
	}
	balance, err := chain.NewContract(a.wrapper.Address, chain.ERC20ABI, a.to).Uint(ctx, "balanceOf", a.address())
	if err != nil {
		return models.CheckResult{}, fmt.Errorf("failed to get wrapped balance on %s: %w", a.spec.Step.To, err)
	}
	if balance.Cmp(a.wei) < 0 {
		return a.insufficient(balance), nil
	}
	return models.CheckResult{OK: true}, nil
}

func (a *Unwrap) Execute(ctx context.Context) error {
	return a.traced(ctx, func(ctx context.Context) error {
		if err := a.mustParse(); err != nil {
			return err
		}
		a.emit(models.StateInit, nil)

		if err := a.enforce(ctx, a.spec.Step.To); err != nil {
			return err
		}

		a.emit(models.StateUnwrap, nil)
		receipt, err := a.send(ctx, a.to, a.wrapper.Address, a.wrapper.ABI, nil, "withdrawTo", a.address(), a.wei)
		if err != nil {
			return err
		}
		a.emit(models.StateUnwrapDone, receipt)
		return nil
	})
}

const msgNothingToUnlock = "No ETH to unlock"

// Unlock claims ETH that an exit left locked in DepositBoxEth on mainnet. It moves whatever
// is locked, the entered amount is only informational.
type Unlock struct {
	*base
	depositBox *chain.Contract
}

func newUnlock(b *base) (Action, error) {
	b.name = "Unlock"
	if b.toCt.DepositBoxEth == (common.Address{}) {
		return nil, fmt.Errorf("no DepositBoxEth on %s", b.spec.Step.To)
	}
	return &Unlock{
		base:       b,
		depositBox: chain.NewContract(b.toCt.DepositBoxEth, chain.DepositBoxABI, b.to),
	}, nil
}

func (a *Unlock) PreAction(ctx context.Context) (models.CheckResult, error) {
	locked, err := a.depositBox.Uint(ctx, "approveTransfers", a.address())
	if err != nil {
		return models.CheckResult{}, fmt.Errorf("failed to read locked ETH: %w", err)
	}
	if locked.Sign() <= 0 {
		return models.CheckResult{Message: msgNothingToUnlock}, nil
	}
	return models.CheckResult{OK: true}, nil
}

func (a *Unlock) Execute(ctx context.Context) error {
	return a.traced(ctx, func(ctx context.Context) error {
		a.parse()
		a.emit(models.StateInit, nil)

		if err := a.enforce(ctx, a.spec.Step.To); err != nil {
			return err
		}

		a.emit(models.StateUnlock, nil)
		receipt, err := a.send(ctx, a.to, a.depositBox.Address, a.depositBox.ABI, nil, "getFunds")
		if err != nil {
			return err
		}
		a.emit(models.StateUnlockDone, receipt)
		return nil
	})
}
