package action

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/skalenetwork/portal-sub000/portal/chain"
	"github.com/skalenetwork/portal-sub000/portal/graph"
	"github.com/skalenetwork/portal-sub000/portal/models"
	"github.com/skalenetwork/portal-sub000/portal/network"
	"github.com/skalenetwork/portal-sub000/portal/progress"
	"github.com/skalenetwork/portal-sub000/portal/waiter"
	"github.com/skalenetwork/portal-sub000/portal/wallet"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "action").Logger()
}

// SetLogger replaces the package logger.
func SetLogger(l zerolog.Logger) {
	log = l.With().Str("component", "action").Logger()
}

var tracer = otel.Tracer("github.com/skalenetwork/portal-sub000/portal/action")

// Action is one executable step bound to its collaborators.
type Action interface {
	// Name is the variant name reported in progress events.
	Name() string
	Step() models.StepMetadata
	// PreAction runs read-only checks. Expected validation failures are returned as a
	// CheckResult, only unexpected RPC failures as an error.
	PreAction(ctx context.Context) (models.CheckResult, error)
	// Execute sends the step's transactions and waits until their effect is observable.
	Execute(ctx context.Context) error
}

// Params is the user input a step runs with.
type Params struct {
	Token   models.Token
	Address common.Address
	// Amount is the human amount for fungible tokens and ERC1155.
	Amount string
	// TokenID is used by ERC721 and ERC1155.
	TokenID string
}

// Deps are the collaborators an action needs.
type Deps struct {
	Catalog  *chain.Catalog
	Clients  chain.Provider
	Graph    *graph.Graph
	Wallet   wallet.Wallet
	Enforcer *network.Enforcer
	Sink     progress.Sink
	Wait     waiter.Options
}

// Spec is a validated, not yet resolved action.
type Spec struct {
	Step     models.StepMetadata
	Params   Params
	Standard models.TokenType
	Dir      models.Direction
}

type transferKind struct {
	standard models.TokenType
	dir      models.Direction
}

var transferKinds = map[models.ActionType]transferKind{}

func init() {
	for _, std := range []models.TokenType{
		models.TokenTypeEth, models.TokenTypeERC20, models.TokenTypeERC721,
		models.TokenTypeERC721Meta, models.TokenTypeERC1155,
	} {
		for _, dir := range []models.Direction{models.DirectionM2S, models.DirectionS2M, models.DirectionS2S} {
			transferKinds[models.TransferActionType(std, dir)] = transferKind{std, dir}
		}
	}
}

// Plan validates a step against the user input without any I/O.
func Plan(step models.StepMetadata, params Params) (Spec, error) {
	spec := Spec{Step: step, Params: params, Standard: params.Token.Type}
	if params.Token.IsZero() {
		return spec, fmt.Errorf("%w: no token selected", ErrInvalidInput)
	}

	switch step.Type {
	case models.ActionWrap:
		conn, ok := params.Token.Connection(step.From)
		if !ok || !conn.HasWrapper() {
			return spec, fmt.Errorf("%w: %s has no wrapper on %s", ErrInvalidInput, params.Token.Keyname, step.From)
		}
		return spec, nil
	case models.ActionUnwrap:
		conn, ok := params.Token.Connection(step.To)
		if !ok || !conn.HasWrapper() {
			return spec, fmt.Errorf("%w: %s has no wrapper on %s", ErrInvalidInput, params.Token.Keyname, step.To)
		}
		return spec, nil
	case models.ActionUnlock:
		if params.Token.Type != models.TokenTypeEth {
			return spec, fmt.Errorf("%w: unlock only applies to eth", ErrInvalidInput)
		}
		return spec, nil
	}

	kind, ok := transferKinds[step.Type]
	if !ok {
		return spec, fmt.Errorf("%w: unknown action type %q", ErrInvalidInput, step.Type)
	}
	if kind.standard != params.Token.Type {
		return spec, fmt.Errorf("%w: step %s does not match token type %s", ErrInvalidInput, step.Type, params.Token.Type)
	}
	if !params.Token.ConnectedTo(step.From) || !params.Token.ConnectedTo(step.To) {
		return spec, fmt.Errorf("%w: %s is not connected between %s and %s",
			ErrInvalidInput, params.Token.Keyname, step.From, step.To)
	}
	spec.Dir = kind.dir
	return spec, nil
}

// Resolve binds a spec to chain clients and contract handles.
func Resolve(ctx context.Context, spec Spec, deps Deps) (Action, error) {
	if deps.Sink == nil {
		deps.Sink = progress.Discard
	}
	b, err := newBase(spec, deps)
	if err != nil {
		return nil, err
	}

	switch spec.Step.Type {
	case models.ActionWrap:
		return newWrap(b)
	case models.ActionUnwrap:
		return newUnwrap(b)
	case models.ActionUnlock:
		return newUnlock(b)
	}

	if spec.Standard == models.TokenTypeEth {
		switch spec.Dir {
		case models.DirectionM2S:
			return newEthM2S(b)
		case models.DirectionS2M:
			return newEthS2M(b)
		}
	}
	return newTokenTransfer(ctx, b)
}

// Build runs Plan and Resolve.
func Build(ctx context.Context, step models.StepMetadata, params Params, deps Deps) (Action, error) {
	spec, err := Plan(step, params)
	if err != nil {
		return nil, err
	}
	return Resolve(ctx, spec, deps)
}

// base carries what every variant shares.
type base struct {
	name   string
	spec   Spec
	deps   Deps
	from   chain.Client
	to     chain.Client
	fromCt chain.Contracts
	toCt   chain.Contracts

	wei *big.Int
	id  *big.Int
}

func newBase(spec Spec, deps Deps) (*base, error) {
	from, err := deps.Clients.Client(spec.Step.From)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", spec.Step.From, err)
	}
	to, err := deps.Clients.Client(spec.Step.To)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", spec.Step.To, err)
	}
	fromCt, err := deps.Catalog.Contracts(spec.Step.From)
	if err != nil {
		return nil, err
	}
	toCt, err := deps.Catalog.Contracts(spec.Step.To)
	if err != nil {
		return nil, err
	}
	return &base{spec: spec, deps: deps, from: from, to: to, fromCt: fromCt, toCt: toCt}, nil
}

func (b *base) Name() string              { return b.name }
func (b *base) Step() models.StepMetadata { return b.spec.Step }

func (b *base) token() models.Token { return b.spec.Params.Token }

func (b *base) address() common.Address { return b.spec.Params.Address }

// parse validates the user input for the token standard and caches the result.
func (b *base) parse() models.CheckResult {
	t := b.token()
	switch t.Type {
	case models.TokenTypeERC721, models.TokenTypeERC721Meta:
		id, res := ParseTokenID(b.spec.Params.TokenID)
		b.id = id
		return res
	case models.TokenTypeERC1155:
		id, res := ParseTokenID(b.spec.Params.TokenID)
		if !res.OK {
			return res
		}
		b.id = id
		wei, res := ParseAmount(b.spec.Params.Amount, t.Decimals)
		b.wei = wei
		return res
	}
	wei, res := ParseAmount(b.spec.Params.Amount, t.Decimals)
	b.wei = wei
	return res
}

func (b *base) mustParse() error {
	if res := b.parse(); !res.OK {
		if res.Message == "" {
			return fmt.Errorf("%w: nothing entered", ErrInvalidInput)
		}
		return fmt.Errorf("%w: %s", ErrInvalidInput, res.Message)
	}
	return nil
}

func (b *base) insufficient(balance *big.Int) models.CheckResult {
	t := b.token()
	return models.CheckResult{
		Message: fmt.Sprintf("Insufficient funds. Current balance: %s %s", FormatAmount(balance, t.Decimals), t.Symbol),
	}
}

func (b *base) emit(state models.ActionState, receipt *chain.Receipt) {
	e := models.ProgressEvent{
		ActionName:  b.name,
		ActionState: state,
		Chain1:      b.spec.Step.From,
		Chain2:      b.spec.Step.To,
		Address:     b.address().Hex(),
		Amount:      b.spec.Params.Amount,
		TokenID:     b.spec.Params.TokenID,
	}
	if b.wei != nil {
		e.AmountWei = b.wei.String()
	}
	if receipt != nil {
		e.TxHash = receipt.Hash.Hex()
		e.Timestamp = int64(receipt.Timestamp)
	}
	log.Debug().Str("action", b.name).Str("state", string(state)).Str("tx", e.TxHash).Msg("Action state")
	b.deps.Sink.Emit(e)
}

// enforce attaches the wallet to the chain.
func (b *base) enforce(ctx context.Context, chainName string) error {
	current, err := b.deps.Wallet.ChainID(ctx)
	if err != nil {
		current = nil
	}
	return b.deps.Enforcer.Enforce(ctx, current, b.deps.Wallet, chainName)
}

// send signs and broadcasts a contract call, then waits for its receipt on client.
func (b *base) send(ctx context.Context, client chain.Client, to common.Address, parsed abi.ABI, value *big.Int, method string, args ...any) (*chain.Receipt, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}
	hash, err := b.deps.Wallet.SendTransaction(ctx, wallet.TxRequest{To: to, Data: data, Value: value})
	if err != nil {
		return nil, Classify(err)
	}
	receipt, err := client.WaitMined(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed waiting for %s: %w", method, err)
	}
	if !receipt.Succeeded() {
		return nil, &RevertError{TxHash: hash, Reason: method + " failed"}
	}
	return receipt, nil
}

// traced wraps an Execute body in a span and logs the outcome.
func (b *base) traced(ctx context.Context, run func(ctx context.Context) error) error {
	ctx, span := tracer.Start(ctx, "action.Execute", trace.WithAttributes(
		attribute.String("action", b.name),
		attribute.String("type", string(b.spec.Step.Type)),
		attribute.String("from", b.spec.Step.From),
		attribute.String("to", b.spec.Step.To),
		attribute.String("token", b.token().Keyname),
	))
	defer span.End()

	start := time.Now()
	err := run(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, Describe(err))
		log.Error().Err(err).Str("action", b.name).Dur("elapsed", time.Since(start)).Msg("Action failed")
		return err
	}
	log.Info().Str("action", b.name).Str("from", b.spec.Step.From).Str("to", b.spec.Step.To).
		Dur("elapsed", time.Since(start)).Msg("Action completed")
	return nil
}

func (b *base) waitOpts() waiter.Options {
	return b.deps.Wait
}

func tokenABI(t models.TokenType) abi.ABI {
	switch t {
	case models.TokenTypeERC721, models.TokenTypeERC721Meta:
		return chain.ERC721ABI
	case models.TokenTypeERC1155:
		return chain.ERC1155ABI
	}
	return chain.ERC20ABI
}
