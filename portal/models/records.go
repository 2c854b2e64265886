package models

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ProgressEvent is emitted on every action state transition. It is the only externally
// observable contract of a transfer's progress, so field names are part of the wire format.
type ProgressEvent struct {
	ActionName  string      `json:"action_name"`
	ActionState ActionState `json:"action_state"`
	Chain1      string      `json:"chain_name_1"`
	Chain2      string      `json:"chain_name_2"`
	Address     string      `json:"address"`
	Amount      string      `json:"amount"`
	AmountWei   string      `json:"amount_wei"`
	TokenID     string      `json:"token_id,omitempty"`
	TxHash      string      `json:"transaction_hash,omitempty"`
	Timestamp   int64       `json:"timestamp,omitempty"`
}

// HasTransaction reports whether the event closes a stage with an included transaction.
func (e ProgressEvent) HasTransaction() bool {
	return e.TxHash != ""
}

// TransactionRecord is one included transaction of a transfer.
type TransactionRecord struct {
	TransferID string      `json:"transfer_id"`
	Hash       common.Hash `json:"hash"`
	Chain      string      `json:"chain"`
	Timestamp  int64       `json:"timestamp"`
	State      ActionState `json:"state"`
}

// TransferStatus marks how a transfer left the session.
type TransferStatus string

const (
	TransferCompleted  TransferStatus = "completed"
	TransferUnfinished TransferStatus = "unfinished"
)

// TransferRecord is a completed or abandoned transfer. Address is empty for unfinished
// transfers flushed because the connected address changed.
type TransferRecord struct {
	ID           string              `json:"id"`
	Chain1       string              `json:"chain_name_1"`
	Chain2       string              `json:"chain_name_2"`
	TokenKeyname string              `json:"token_keyname"`
	Amount       string              `json:"amount"`
	Address      string              `json:"address,omitempty"`
	Status       TransferStatus      `json:"status"`
	Transactions []TransactionRecord `json:"transactions"`
	FinishedAt   time.Time           `json:"finished_at"`
}

// CheckResult is the outcome of a precondition check. Validation failures are values, not errors.
// An empty message with OK false means there is nothing to check yet (no amount entered).
type CheckResult struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}
