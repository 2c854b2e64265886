// Package ledger keeps the transactions and transfers of the running process in memory.
package ledger

import (
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/axiomhq/hyperloglog"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/skalenetwork/portal-sub000/portal/models"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "ledger").Logger()
}

// SetLogger replaces the package logger.
func SetLogger(l zerolog.Logger) {
	log = l.With().Str("component", "ledger").Logger()
}

// NewTransferID returns a fresh transfer id.
func NewTransferID() string {
	return uuid.NewString()
}

// Stats summarises the ledger.
type Stats struct {
	Transfers    int `json:"transfers"`
	Completed    int `json:"completed"`
	Unfinished   int `json:"unfinished"`
	Transactions int `json:"transactions"`
	// DistinctAddresses is an estimate.
	DistinctAddresses uint64 `json:"distinct_addresses"`
}

// Ledger records transactions as they are included and transfers once they leave a session.
// It is safe for concurrent use.
type Ledger struct {
	mu        sync.RWMutex
	pending   map[string][]models.TransactionRecord
	transfers []models.TransferRecord
	// finished maps a transfer id to its index in transfers.
	finished  map[string]int
	txCount   int
	addresses *hyperloglog.Sketch
	now       func() time.Time
}

func New() *Ledger {
	return &Ledger{
		pending:   make(map[string][]models.TransactionRecord),
		finished:  make(map[string]int),
		addresses: hyperloglog.New14(),
		now:       time.Now,
	}
}

// AddTransaction records an included transaction of a transfer in progress. A transaction of
// a transfer that was already finished, such as one abandoned while its step was running, is
// attached to the finished record.
func (l *Ledger) AddTransaction(rec models.TransactionRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.txCount++
	if i, ok := l.finished[rec.TransferID]; ok {
		finished := &l.transfers[i]
		finished.Transactions = append(slices.Clip(finished.Transactions), rec)
		log.Debug().Str("transfer", rec.TransferID).Str("tx", rec.Hash.Hex()).Msg("Late transaction attached to finished transfer")
		return
	}
	l.pending[rec.TransferID] = append(l.pending[rec.TransferID], rec)
	log.Debug().Str("transfer", rec.TransferID).Str("chain", rec.Chain).Str("tx", rec.Hash.Hex()).Msg("Transaction recorded")
}

// Transactions returns the transactions recorded for a transfer that is not finished yet.
func (l *Ledger) Transactions(transferID string) []models.TransactionRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.pending[transferID])
}

// FinishTransfer closes a transfer. Transactions recorded under its id are attached when the
// record carries none, and the id and finish time are filled in when missing.
func (l *Ledger) FinishTransfer(rec models.TransferRecord) models.TransferRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	if rec.ID == "" {
		rec.ID = NewTransferID()
	}
	if rec.FinishedAt.IsZero() {
		rec.FinishedAt = l.now()
	}
	if len(rec.Transactions) == 0 {
		rec.Transactions = slices.Clone(l.pending[rec.ID])
	}
	if rec.Transactions == nil {
		rec.Transactions = []models.TransactionRecord{}
	}
	delete(l.pending, rec.ID)

	if rec.Address != "" {
		l.addresses.Insert([]byte(strings.ToLower(rec.Address)))
	}
	l.finished[rec.ID] = len(l.transfers)
	l.transfers = append(l.transfers, rec)

	log.Info().
		Str("transfer", rec.ID).
		Str("status", string(rec.Status)).
		Str("from", rec.Chain1).
		Str("to", rec.Chain2).
		Int("transactions", len(rec.Transactions)).
		Msg("Transfer finished")
	return rec
}

// Transfers returns the finished transfers, oldest first.
func (l *Ledger) Transfers() []models.TransferRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.transfers)
}

// TransfersFor returns the finished transfers of one address.
func (l *Ledger) TransfersFor(address string) []models.TransferRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []models.TransferRecord
	for _, rec := range l.transfers {
		if strings.EqualFold(rec.Address, address) {
			out = append(out, rec)
		}
	}
	return out
}

func (l *Ledger) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s := Stats{
		Transfers:         len(l.transfers),
		Transactions:      l.txCount,
		DistinctAddresses: l.addresses.Estimate(),
	}
	for _, rec := range l.transfers {
		switch rec.Status {
		case models.TransferCompleted:
			s.Completed++
		case models.TransferUnfinished:
			s.Unfinished++
		}
	}
	return s
}
