package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"github.com/skalenetwork/portal-sub000/portal/graph"
	"github.com/skalenetwork/portal-sub000/portal/models"
	"github.com/skalenetwork/portal-sub000/portal/pool"
)

type api struct {
	ctx     context.Context
	svc     Services
	refresh time.Duration
	op      *operator

	mu sync.Mutex
	// watched holds the latest pool status per address. One watcher runs per address, watching
	// another chain pair for the same address replaces it.
	watched map[string]models.GasReserveStatus
}

func newAPI(ctx context.Context, svc Services, refresh time.Duration) *api {
	a := &api{
		ctx:     ctx,
		svc:     svc,
		refresh: refresh,
		watched: make(map[string]models.GasReserveStatus),
	}
	if svc.Session != nil {
		a.op = &operator{ctx: ctx, session: svc.Session}
	}
	return a
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		Logger.Warn().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// lookupStatus maps graph errors to 404 and anything else to 500.
func lookupStatus(err error) int {
	if errors.Is(err, graph.ErrChainNotFound) || errors.Is(err, graph.ErrTokenNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

type chainsResponse struct {
	Mainnet string   `json:"mainnet"`
	Chains  []string `json:"chains"`
}

func (a *api) chains(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, chainsResponse{
		Mainnet: a.svc.Graph.Mainnet(),
		Chains:  a.svc.Graph.Chains(),
	})
}

// tokens lists the tokens available on "from", restricted to those also on "to" when given.
func (a *api) tokens(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	if from == "" {
		writeError(w, http.StatusBadRequest, "from is required")
		return
	}
	tokens, err := a.svc.Graph.TokensFor(from, r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, lookupStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}

func (a *api) wrappedTokens(w http.ResponseWriter, r *http.Request) {
	chainName := r.URL.Query().Get("chain")
	if chainName == "" {
		writeError(w, http.StatusBadRequest, "chain is required")
		return
	}
	tokens, err := a.svc.Graph.WrappedTokensFor(chainName)
	if err != nil {
		writeError(w, lookupStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}

type planResponse struct {
	Token string                `json:"token"`
	From  string                `json:"from"`
	To    string                `json:"to"`
	Steps []models.StepMetadata `json:"steps"`
}

func (a *api) plan(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	keyname, from, to := q.Get("token"), q.Get("from"), q.Get("to")
	if keyname == "" || from == "" || to == "" {
		writeError(w, http.StatusBadRequest, "token, from and to are required")
		return
	}
	chains := a.svc.Graph.Chains()
	for _, c := range []string{from, to} {
		if !slices.Contains(chains, c) {
			writeError(w, http.StatusNotFound, "chain not found: "+c)
			return
		}
	}
	token, err := a.svc.Graph.Token(keyname)
	if err != nil {
		writeError(w, lookupStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, planResponse{
		Token: keyname,
		From:  from,
		To:    to,
		Steps: a.svc.Planner.Plan(token, from, to),
	})
}

// poolStatus answers the community pool status of an address for a source/destination pair.
// The first request computes it synchronously and starts a watcher that keeps it fresh.
func (a *api) poolStatus(w http.ResponseWriter, r *http.Request) {
	if a.svc.Pool == nil {
		writeError(w, http.StatusNotFound, "community pool is not configured")
		return
	}
	raw := chi.URLParam(r, "address")
	if !common.IsHexAddress(raw) {
		writeError(w, http.StatusBadRequest, "invalid address")
		return
	}
	address := common.HexToAddress(raw)
	source, destination := r.URL.Query().Get("source"), r.URL.Query().Get("destination")
	if source == "" || destination == "" {
		writeError(w, http.StatusBadRequest, "source and destination are required")
		return
	}

	key := "pool:" + strings.ToLower(address.Hex())
	a.mu.Lock()
	cached, ok := a.watched[key]
	a.mu.Unlock()
	if ok && cached.SourceChain == source && cached.DestinationChain == destination {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	status, err := a.svc.Pool.ComputeStatus(r.Context(), address, source, destination)
	if err != nil {
		code := http.StatusBadGateway
		if errors.Is(err, pool.ErrNoPool) {
			code = http.StatusNotFound
		}
		writeError(w, code, err.Error())
		return
	}
	a.watch(key, status, address, source, destination)
	writeJSON(w, http.StatusOK, status)
}

// watch stores status under key and keeps refreshing it. The previous watcher of key has
// returned before status is stored, and a refresh that finishes after its watcher was replaced
// is dropped.
func (a *api) watch(key string, status models.GasReserveStatus, address common.Address, source, destination string) {
	defer func() {
		a.mu.Lock()
		a.watched[key] = status
		a.mu.Unlock()
	}()

	if a.svc.Tasks == nil || a.refresh <= 0 {
		return
	}
	first := true
	a.svc.Tasks.Start(key, a.refresh, func(ctx context.Context) {
		if first {
			// the handler just computed it
			first = false
			return
		}
		next, err := a.svc.Pool.ComputeStatus(ctx, address, source, destination)
		if err != nil {
			if ctx.Err() == nil {
				Logger.Warn().Err(err).Str("address", address.Hex()).Msg("Failed to refresh pool status")
			}
			return
		}
		a.mu.Lock()
		defer a.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		a.watched[key] = next
	})
}

func (a *api) close() {
	if a.svc.Tasks == nil {
		return
	}
	a.mu.Lock()
	keys := make([]string, 0, len(a.watched))
	for k := range a.watched {
		keys = append(keys, k)
	}
	a.mu.Unlock()
	for _, k := range keys {
		a.svc.Tasks.Stop(k)
	}
}

func (a *api) transfers(w http.ResponseWriter, r *http.Request) {
	var out []models.TransferRecord
	if address := r.URL.Query().Get("address"); address != "" {
		out = a.svc.Ledger.TransfersFor(address)
	} else {
		out = a.svc.Ledger.Transfers()
	}
	if out == nil {
		out = []models.TransferRecord{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *api) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.svc.Ledger.Stats())
}
