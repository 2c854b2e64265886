// Package transfer drives one user's transfer through its planned steps: it keeps the current
// step, builds the action for it, records included transactions and hands finished or
// abandoned transfers to the ledger.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/skalenetwork/portal-sub000/portal/action"
	"github.com/skalenetwork/portal-sub000/portal/chain"
	"github.com/skalenetwork/portal-sub000/portal/graph"
	"github.com/skalenetwork/portal-sub000/portal/ledger"
	"github.com/skalenetwork/portal-sub000/portal/models"
	"github.com/skalenetwork/portal-sub000/portal/progress"
	"github.com/skalenetwork/portal-sub000/portal/router"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "transfer").Logger()
}

// SetLogger replaces the package logger.
func SetLogger(l zerolog.Logger) {
	log = l.With().Str("component", "transfer").Logger()
}

var (
	// ErrBusy is returned when a step is executing on the session.
	ErrBusy = errors.New("a step is already executing")
	// ErrComplete is returned when every planned step has run.
	ErrComplete = errors.New("transfer is complete")
	// ErrNoPlan is returned when nothing is selected or the selection has no route.
	ErrNoPlan = errors.New("no steps planned")
)

// Selection is what the user picked.
type Selection struct {
	Chain1  string
	Chain2  string
	Token   models.Token
	Amount  string
	TokenID string
}

// Session is the transfer state of one connected address. Steps run strictly one at a time.
type Session struct {
	planner *router.Planner
	graph   *graph.Graph
	ledger  *ledger.Ledger
	deps    action.Deps

	// exec serializes Execute and keeps Check from overlapping it.
	exec sync.Mutex

	mu         sync.Mutex
	sel        Selection
	address    common.Address
	plan       []models.StepMetadata
	current    int
	transferID string
}

// New creates a session. deps.Sink receives every progress event the session's actions emit.
func New(planner *router.Planner, g *graph.Graph, l *ledger.Ledger, deps action.Deps) *Session {
	if deps.Sink == nil {
		deps.Sink = progress.Discard
	}
	if deps.Graph == nil {
		deps.Graph = g
	}
	s := &Session{
		planner:    planner,
		graph:      g,
		ledger:     l,
		deps:       deps,
		plan:       []models.StepMetadata{},
		transferID: ledger.NewTransferID(),
	}
	if deps.Wallet != nil {
		s.address = deps.Wallet.Address()
	}
	return s
}

// Select changes the selection. A different token or chain pair replans, abandoning a
// transfer that already committed steps.
func (s *Session) Select(sel Selection) []models.StepMetadata {
	s.mu.Lock()
	defer s.mu.Unlock()

	route := sel.Chain1 != s.sel.Chain1 || sel.Chain2 != s.sel.Chain2 || sel.Token.Keyname != s.sel.Token.Keyname
	s.sel = sel
	if route {
		s.abandonLocked(s.address.Hex())
		s.replanLocked()
	}
	return slices.Clone(s.plan)
}

// Replan recomputes the plan for the current selection and restarts at the first step.
func (s *Session) Replan() []models.StepMetadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.abandonLocked(s.address.Hex())
	s.replanLocked()
	return slices.Clone(s.plan)
}

func (s *Session) replanLocked() {
	s.plan = s.planner.Plan(s.sel.Token, s.sel.Chain1, s.sel.Chain2)
	s.current = 0
	s.transferID = ledger.NewTransferID()
	log.Debug().Str("token", s.sel.Token.Keyname).Str("from", s.sel.Chain1).Str("to", s.sel.Chain2).
		Int("steps", len(s.plan)).Msg("Plan computed")
}

// abandonLocked flushes a transfer that committed steps but did not finish.
func (s *Session) abandonLocked(address string) {
	if s.current == 0 || s.current >= len(s.plan) {
		return
	}
	s.ledger.FinishTransfer(models.TransferRecord{
		ID:           s.transferID,
		Chain1:       s.sel.Chain1,
		Chain2:       s.sel.Chain2,
		TokenKeyname: s.sel.Token.Keyname,
		Amount:       s.sel.Amount,
		Address:      address,
		Status:       models.TransferUnfinished,
	})
	log.Warn().Str("transfer", s.transferID).Int("step", s.current).Int("steps", len(s.plan)).Msg("Transfer abandoned")
}

// SetAddress switches the connected address. A transfer in flight is flushed as unfinished
// without an address and the plan restarts.
func (s *Session) SetAddress(address common.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if address == s.address {
		return
	}
	s.abandonLocked("")
	s.address = address
	s.current = 0
	s.transferID = ledger.NewTransferID()
}

// Address is the connected address.
func (s *Session) Address() common.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.address
}

// State reports the plan and the index of the next step to execute.
func (s *Session) State() ([]models.StepMetadata, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.plan), s.current
}

// TransferID is the id of the transfer in progress.
func (s *Session) TransferID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transferID
}

// Done reports whether every step of a nonempty plan has run.
func (s *Session) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.plan) > 0 && s.current >= len(s.plan)
}

type pending struct {
	step       models.StepMetadata
	index      int
	transferID string
	params     action.Params
}

func (s *Session) next() (pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.plan) == 0 {
		return pending{}, ErrNoPlan
	}
	if s.current >= len(s.plan) {
		return pending{}, ErrComplete
	}
	return pending{
		step:       s.plan[s.current],
		index:      s.current,
		transferID: s.transferID,
		params: action.Params{
			Token:   s.sel.Token,
			Address: s.address,
			Amount:  s.sel.Amount,
			TokenID: s.sel.TokenID,
		},
	}, nil
}

// Check runs the precondition checks of the current step. It does not wait for an executing
// step, it returns ErrBusy instead.
func (s *Session) Check(ctx context.Context) (models.CheckResult, error) {
	if !s.exec.TryLock() {
		return models.CheckResult{}, ErrBusy
	}
	defer s.exec.Unlock()

	p, err := s.next()
	if err != nil {
		return models.CheckResult{}, err
	}
	a, err := action.Build(ctx, p.step, p.params, s.deps)
	if err != nil {
		return models.CheckResult{}, err
	}
	return a.PreAction(ctx)
}

// ExecuteCurrent executes the current step. On success the session advances, and the
// transfer is handed to the ledger once the last step has run. On failure the session stays
// on the step so it can be retried.
func (s *Session) ExecuteCurrent(ctx context.Context) error {
	s.exec.Lock()
	defer s.exec.Unlock()

	p, err := s.next()
	if err != nil {
		return err
	}

	deps := s.deps
	deps.Sink = progress.Multi(s.deps.Sink, s.recorder(p))
	a, err := action.Build(ctx, p.step, p.params, deps)
	if err != nil {
		return err
	}

	log.Info().Str("transfer", p.transferID).Int("step", p.index).Str("type", string(p.step.Type)).Msg("Executing step")
	if err := a.Execute(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transferID != p.transferID || s.current != p.index {
		// the selection or address changed while the step ran
		return nil
	}
	s.current++
	if s.current == len(s.plan) {
		s.ledger.FinishTransfer(models.TransferRecord{
			ID:           s.transferID,
			Chain1:       s.sel.Chain1,
			Chain2:       s.sel.Chain2,
			TokenKeyname: s.sel.Token.Keyname,
			Amount:       s.sel.Amount,
			Address:      s.address.Hex(),
			Status:       models.TransferCompleted,
		})
	}
	return nil
}

// recorder turns events that carry a transaction into ledger entries of the transfer.
func (s *Session) recorder(p pending) progress.Sink {
	signing := p.step.SigningChain()
	return progress.SinkFunc(func(e models.ProgressEvent) {
		if !e.HasTransaction() {
			return
		}
		s.ledger.AddTransaction(models.TransactionRecord{
			TransferID: p.transferID,
			Hash:       common.HexToHash(e.TxHash),
			Chain:      signing,
			Timestamp:  e.Timestamp,
			State:      e.ActionState,
		})
	})
}

// UnwrapResult is the outcome of one token in UnwrapAll.
type UnwrapResult struct {
	Keyname string `json:"keyname"`
	Amount  string `json:"amount"`
	Err     error  `json:"-"`
}

// UnwrapAll unwraps every wrapped balance the session's address holds on chainName, one
// token after another. Tokens without a wrapped balance are skipped. It stops at the first
// failure and returns what ran so far.
func (s *Session) UnwrapAll(ctx context.Context, chainName string) ([]UnwrapResult, error) {
	s.exec.Lock()
	defer s.exec.Unlock()

	s.mu.Lock()
	address := s.address
	s.mu.Unlock()

	tokens, err := s.graph.WrappedTokensFor(chainName)
	if err != nil {
		return nil, err
	}
	client, err := s.deps.Clients.Client(chainName)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(tokens))
	for k := range tokens {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var results []UnwrapResult
	for _, k := range keys {
		t := tokens[k]
		conn, _ := t.Connection(chainName)
		balance, err := chain.NewContract(*conn.Wrapper, chain.ERC20ABI, client).Uint(ctx, "balanceOf", address)
		if err != nil {
			return results, fmt.Errorf("failed to get wrapped %s balance: %w", k, err)
		}
		if balance.Sign() == 0 {
			continue
		}

		res := UnwrapResult{Keyname: k, Amount: action.FormatAmount(balance, t.Decimals)}
		step := models.StepMetadata{Type: models.ActionUnwrap, From: chainName, To: chainName, OnSource: false}
		a, err := action.Build(ctx, step, action.Params{Token: t, Address: address, Amount: res.Amount}, s.deps)
		if err == nil {
			err = a.Execute(ctx)
		}
		res.Err = err
		results = append(results, res)
		if err != nil {
			return results, fmt.Errorf("failed to unwrap %s: %w", k, err)
		}
	}
	return results, nil
}
