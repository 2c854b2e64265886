package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/skalenetwork/portal-sub000/portal/action"
	"github.com/skalenetwork/portal-sub000/portal/models"
	"github.com/skalenetwork/portal-sub000/portal/transfer"
)

// operator drives the server's own transfer session. Steps run in the background on the
// server context, their progress is visible on the stream.
type operator struct {
	ctx     context.Context
	session *transfer.Session
	running atomic.Bool

	mu      sync.Mutex
	lastErr *taskError
}

// taskError is the outcome of the last failed background task.
type taskError struct {
	Task     string `json:"task"`
	Message  string `json:"message"`
	Rejected bool   `json:"rejected"`
	Pending  bool   `json:"pending"`
}

type sessionState struct {
	Address    string                `json:"address"`
	TransferID string                `json:"transfer_id"`
	Plan       []models.StepMetadata `json:"plan"`
	Current    int                   `json:"current"`
	Done       bool                  `json:"done"`
	Running    bool                  `json:"running"`
	LastError  *taskError            `json:"last_error,omitempty"`
}

type selectRequest struct {
	Chain1  string `json:"chain_name_1"`
	Chain2  string `json:"chain_name_2"`
	Token   string `json:"token"`
	Amount  string `json:"amount"`
	TokenID string `json:"token_id"`
}

func (o *operator) state() sessionState {
	plan, current := o.session.State()
	return sessionState{
		Address:    o.session.Address().Hex(),
		TransferID: o.session.TransferID(),
		Plan:       plan,
		Current:    current,
		Done:       o.session.Done(),
		Running:    o.running.Load(),
		LastError:  o.lastError(),
	}
}

func (o *operator) lastError() *taskError {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}

func (o *operator) setLastError(e *taskError) {
	o.mu.Lock()
	o.lastErr = e
	o.mu.Unlock()
}

func (a *api) getSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.op.state())
}

func (a *api) selectTransfer(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	token, err := a.svc.Graph.Token(req.Token)
	if err != nil {
		writeError(w, lookupStatus(err), err.Error())
		return
	}
	if _, err := a.svc.Graph.TokensFor(req.Chain1, req.Chain2); err != nil {
		writeError(w, lookupStatus(err), err.Error())
		return
	}
	if a.op.running.Load() {
		writeError(w, http.StatusConflict, transfer.ErrBusy.Error())
		return
	}
	a.op.session.Select(transfer.Selection{
		Chain1:  req.Chain1,
		Chain2:  req.Chain2,
		Token:   token,
		Amount:  req.Amount,
		TokenID: req.TokenID,
	})
	writeJSON(w, http.StatusOK, a.op.state())
}

// sessionErrStatus maps session state errors to 409, everything else is an upstream failure.
func sessionErrStatus(err error) int {
	if errors.Is(err, transfer.ErrBusy) || errors.Is(err, transfer.ErrComplete) || errors.Is(err, transfer.ErrNoPlan) {
		return http.StatusConflict
	}
	return http.StatusBadGateway
}

func (a *api) checkStep(w http.ResponseWriter, r *http.Request) {
	res, err := a.op.session.Check(r.Context())
	if err != nil {
		writeError(w, sessionErrStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// background runs fn unless another step is already running. It reports whether fn started.
// Starting clears the previous failure, a new failure is kept until the next start.
func (o *operator) background(name string, fn func(ctx context.Context) error) bool {
	if !o.running.CompareAndSwap(false, true) {
		return false
	}
	o.setLastError(nil)
	go func() {
		defer o.running.Store(false)
		if err := fn(o.ctx); err != nil {
			reason := action.Describe(err)
			o.setLastError(&taskError{
				Task:     name,
				Message:  reason,
				Rejected: errors.Is(err, action.ErrUserRejected),
				Pending:  action.Pending(err),
			})
			Logger.Error().Err(err).Str("task", name).Str("reason", reason).Msg("Session task failed")
		}
	}()
	return true
}

func (a *api) executeStep(w http.ResponseWriter, r *http.Request) {
	if a.op.session.Done() {
		writeError(w, http.StatusConflict, transfer.ErrComplete.Error())
		return
	}
	if !a.op.background("execute", a.op.session.ExecuteCurrent) {
		writeError(w, http.StatusConflict, transfer.ErrBusy.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, a.op.state())
}

func (a *api) unwrapAll(w http.ResponseWriter, r *http.Request) {
	chainName := r.URL.Query().Get("chain")
	if _, err := a.svc.Graph.WrappedTokensFor(chainName); err != nil {
		writeError(w, lookupStatus(err), err.Error())
		return
	}
	started := a.op.background("unwrap", func(ctx context.Context) error {
		results, err := a.op.session.UnwrapAll(ctx, chainName)
		for _, res := range results {
			Logger.Info().Str("token", res.Keyname).Str("amount", res.Amount).Msg("Unwrapped")
		}
		return err
	})
	if !started {
		writeError(w, http.StatusConflict, transfer.ErrBusy.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, a.op.state())
}
