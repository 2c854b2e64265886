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

var standardNames = map[models.TokenType]string{
	models.TokenTypeEth:        "Eth",
	models.TokenTypeERC20:      "ERC20",
	models.TokenTypeERC721:     "ERC721",
	models.TokenTypeERC721Meta: "ERC721Meta",
	models.TokenTypeERC1155:    "ERC1155",
}

var dirNames = map[models.Direction]string{
	models.DirectionM2S: "M2S",
	models.DirectionS2M: "S2M",
	models.DirectionS2S: "S2S",
}

// TokenTransfer moves a token through the bridge contracts: DepositBox* from mainnet,
// TokenManager* from a bridge chain. ETH between two bridge chains travels as its ERC20
// representation and is handled here too.
type TokenTransfer struct {
	*base
	// std is the standard the contracts are driven with, ERC20 for ETH between bridge chains.
	std      models.TokenType
	srcToken *chain.Contract
	dstToken *chain.Contract
	bridge   *chain.Contract
	origin   common.Address
}

func newTokenTransfer(ctx context.Context, b *base) (Action, error) {
	b.name = standardNames[b.spec.Standard] + dirNames[b.spec.Dir]

	std := b.spec.Standard
	if std == models.TokenTypeEth {
		std = models.TokenTypeERC20
	}
	t := b.token()
	src, _ := t.Connection(b.spec.Step.From)
	dst, _ := t.Connection(b.spec.Step.To)
	srcAddr, dstAddr := bridged(src), bridged(dst)
	if srcAddr == (common.Address{}) {
		return nil, fmt.Errorf("%s has no contract on %s", t.Keyname, b.spec.Step.From)
	}

	bridgeAddr := bridgeContract(b.fromCt, b.spec.Standard, b.spec.Dir)
	if bridgeAddr == (common.Address{}) {
		return nil, fmt.Errorf("no %s bridge contract for %s on %s", b.spec.Dir, b.spec.Standard, b.spec.Step.From)
	}
	bridgeABI := chain.TokenManagerABI
	if b.spec.Dir == models.DirectionM2S {
		bridgeABI = chain.DepositBoxABI
	}

	origin, err := b.originAddress()
	if err != nil {
		return nil, err
	}
	if origin == (common.Address{}) {
		origin = srcAddr
	}

	if b.spec.Dir == models.DirectionS2M && dstAddr == (common.Address{}) {
		dstAddr = origin
	}

	a := &TokenTransfer{
		base:     b,
		std:      std,
		srcToken: chain.NewContract(srcAddr, tokenABI(std), b.from),
		dstToken: chain.NewContract(dstAddr, tokenABI(std), b.to),
		bridge:   chain.NewContract(bridgeAddr, bridgeABI, b.from),
		origin:   origin,
	}
	if err := a.resolveDecimals(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// bridgeContract returns the contract the transfer is sent to, which is also the spender
// the source token has to approve.
func bridgeContract(ct chain.Contracts, std models.TokenType, dir models.Direction) common.Address {
	if dir == models.DirectionM2S {
		switch std {
		case models.TokenTypeERC20:
			return ct.DepositBoxERC20
		case models.TokenTypeERC721:
			return ct.DepositBoxERC721
		case models.TokenTypeERC721Meta:
			return ct.DepositBoxERC721Meta
		case models.TokenTypeERC1155:
			return ct.DepositBoxERC1155
		}
		return common.Address{}
	}
	switch std {
	case models.TokenTypeEth, models.TokenTypeERC20:
		return ct.TokenManagerERC20
	case models.TokenTypeERC721:
		return ct.TokenManagerERC721
	case models.TokenTypeERC721Meta:
		return ct.TokenManagerERC721Meta
	case models.TokenTypeERC1155:
		return ct.TokenManagerERC1155
	}
	return common.Address{}
}

// bridged is the contract that crosses the bridge on a chain. A wrapped token travels as
// its wrapper, the underlying token never leaves the chain.
func bridged(c models.Connection) common.Address {
	if c.HasWrapper() {
		return *c.Wrapper
	}
	return c.Address
}

func (b *base) originAddress() (common.Address, error) {
	t := b.token()
	if b.deps.Graph != nil {
		return b.deps.Graph.OriginAddress(b.spec.Step.From, b.spec.Step.To, t.Keyname)
	}
	src, _ := t.Connection(b.spec.Step.From)
	if !src.Clone {
		return bridged(src), nil
	}
	origin, _ := t.Connection(t.OriginChain)
	return bridged(origin), nil
}

// resolveDecimals reads decimals from the source contract for fungible tokens configured without them.
func (a *TokenTransfer) resolveDecimals(ctx context.Context) error {
	if a.spec.Standard != models.TokenTypeERC20 || a.spec.Params.Token.Decimals != 0 {
		return nil
	}
	d, err := a.srcToken.Uint(ctx, "decimals")
	if err != nil {
		log.Warn().Err(err).Str("token", a.token().Keyname).Msg("Failed to read decimals, assuming 18")
		a.spec.Params.Token.Decimals = 18
		return nil
	}
	a.spec.Params.Token.Decimals = int32(d.Int64())
	return nil
}

func (a *TokenTransfer) PreAction(ctx context.Context) (models.CheckResult, error) {
	if res := a.parse(); !res.OK {
		return res, nil
	}
	addr := a.address()

	switch a.std {
	case models.TokenTypeERC721, models.TokenTypeERC721Meta:
		owner, err := a.srcToken.AddressOf(ctx, "ownerOf", a.id)
		if err != nil {
			// ownerOf reverts for a token id that does not exist
			if reverted(err) {
				return models.CheckResult{Message: msgNotOwned}, nil
			}
			return models.CheckResult{}, fmt.Errorf("failed to get owner on %s: %w", a.spec.Step.From, err)
		}
		if owner != addr {
			return models.CheckResult{Message: msgNotOwned}, nil
		}
	case models.TokenTypeERC1155:
		balance, err := a.srcToken.Uint(ctx, "balanceOf", addr, a.id)
		if err != nil {
			return models.CheckResult{}, fmt.Errorf("failed to get balance on %s: %w", a.spec.Step.From, err)
		}
		if balance.Cmp(a.wei) < 0 {
			return a.insufficient(balance), nil
		}
	default:
		balance, err := a.srcToken.Uint(ctx, "balanceOf", addr)
		if err != nil {
			return models.CheckResult{}, fmt.Errorf("failed to get balance on %s: %w", a.spec.Step.From, err)
		}
		if balance.Cmp(a.wei) < 0 {
			return a.insufficient(balance), nil
		}
	}
	return models.CheckResult{OK: true}, nil
}

// approved reports whether the bridge can already move the tokens.
func (a *TokenTransfer) approved(ctx context.Context) (bool, error) {
	spender := a.bridge.Address
	switch a.std {
	case models.TokenTypeERC721, models.TokenTypeERC721Meta:
		current, err := a.srcToken.AddressOf(ctx, "getApproved", a.id)
		if err != nil {
			return false, err
		}
		return current == spender, nil
	case models.TokenTypeERC1155:
		return a.srcToken.Bool(ctx, "isApprovedForAll", a.address(), spender)
	}
	allowance, err := a.srcToken.Uint(ctx, "allowance", a.address(), spender)
	if err != nil {
		return false, err
	}
	return allowance.Cmp(a.wei) >= 0, nil
}

func (a *TokenTransfer) approve(ctx context.Context) (*chain.Receipt, error) {
	spender := a.bridge.Address
	switch a.std {
	case models.TokenTypeERC721, models.TokenTypeERC721Meta:
		return a.send(ctx, a.from, a.srcToken.Address, a.srcToken.ABI, nil, "approve", spender, a.id)
	case models.TokenTypeERC1155:
		return a.send(ctx, a.from, a.srcToken.Address, a.srcToken.ABI, nil, "setApprovalForAll", spender, true)
	}
	return a.send(ctx, a.from, a.srcToken.Address, a.srcToken.ABI, nil, "approve", spender, a.wei)
}

// call returns the bridge method and its arguments.
func (a *TokenTransfer) call() (string, []any) {
	to := a.spec.Step.To
	switch a.spec.Dir {
	case models.DirectionM2S:
		switch a.std {
		case models.TokenTypeERC721:
			return "depositERC721", []any{to, a.origin, a.id}
		case models.TokenTypeERC721Meta:
			return "depositERC721WithMetadata", []any{to, a.origin, a.id}
		case models.TokenTypeERC1155:
			return "depositERC1155", []any{to, a.origin, a.id, a.wei}
		}
		return "depositERC20", []any{to, a.origin, a.wei}
	case models.DirectionS2M:
		switch a.std {
		case models.TokenTypeERC721, models.TokenTypeERC721Meta:
			return "exitToMainERC721", []any{a.origin, a.id}
		case models.TokenTypeERC1155:
			return "exitToMainERC1155", []any{a.origin, a.id, a.wei}
		}
		return "exitToMainERC20", []any{a.origin, a.wei}
	}
	switch a.std {
	case models.TokenTypeERC721, models.TokenTypeERC721Meta:
		return "transferToSchainERC721", []any{to, a.origin, a.id}
	case models.TokenTypeERC1155:
		return "transferToSchainERC1155", []any{to, a.origin, a.id, a.wei}
	}
	return "transferToSchainERC20", []any{to, a.origin, a.wei}
}

func (a *TokenTransfer) Execute(ctx context.Context) error {
	return a.traced(ctx, func(ctx context.Context) error {
		if err := a.mustParse(); err != nil {
			return err
		}
		a.emit(models.StateInit, nil)

		if err := a.enforce(ctx, a.spec.Step.From); err != nil {
			return err
		}
		a.emit(models.StateSwitch, nil)

		ok, err := a.approved(ctx)
		if err != nil {
			return fmt.Errorf("failed to check approval: %w", err)
		}
		if !ok {
			a.emit(models.StateApprove, nil)
			receipt, err := a.approve(ctx)
			if err != nil {
				return err
			}
			a.emit(models.StateApproveDone, receipt)
			if err := a.enforce(ctx, a.spec.Step.From); err != nil {
				return err
			}
		}

		wait, err := a.destinationWait(ctx)
		if err != nil {
			return err
		}

		a.emit(models.StateTransfer, nil)
		method, args := a.call()
		receipt, err := a.send(ctx, a.from, a.bridge.Address, a.bridge.ABI, nil, method, args...)
		if err != nil {
			return err
		}
		a.emit(models.StateTransferDone, receipt)

		if err := wait(ctx); err != nil {
			return err
		}
		a.emit(models.StateReceived, receipt)
		return nil
	})
}

// destinationWait snapshots the destination before the transfer and returns a function
// that blocks until it changes.
func (a *TokenTransfer) destinationWait(ctx context.Context) (func(context.Context) error, error) {
	addr := a.address()
	opts := a.waitOpts()

	switch a.std {
	case models.TokenTypeERC721, models.TokenTypeERC721Meta:
		baseline, err := a.dstToken.AddressOf(ctx, "ownerOf", a.id)
		if err != nil {
			baseline = common.Address{}
		}
		return func(ctx context.Context) error {
			_, err := waiter.NFTOwner(ctx, a.dstToken, a.id, baseline, opts)
			return err
		}, nil
	case models.TokenTypeERC1155:
		baseline, err := a.dstToken.Uint(ctx, "balanceOf", addr, a.id)
		if err != nil {
			baseline = new(big.Int)
		}
		return func(ctx context.Context) error {
			_, err := waiter.MultiTokenBalance(ctx, a.dstToken, addr, a.id, baseline, opts)
			return err
		}, nil
	}
	baseline, err := a.dstToken.Uint(ctx, "balanceOf", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to read destination balance: %w", err)
	}
	return func(ctx context.Context) error {
		_, err := waiter.TokenBalance(ctx, a.dstToken, addr, baseline, opts)
		return err
	}, nil
}
