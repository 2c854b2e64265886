package models

import (
	"math/big"
	"time"
)

// GasReserveStatus is a snapshot of a user's community pool (exit gas sponsorship) position
// for one source chain. It is recomputed on an interval and never persisted.
type GasReserveStatus struct {
	Address             string    `json:"address"`
	SourceChain         string    `json:"source_chain"`
	DestinationChain    string    `json:"destination_chain"`
	Balance             *big.Int  `json:"balance"`
	AccountBalance      *big.Int  `json:"account_balance"`
	RecommendedRecharge *big.Int  `json:"recommended_recharge"`
	ActiveOnMainnet     bool      `json:"active_on_mainnet"`
	ActiveOnSource      bool      `json:"active_on_source"`
	ExitGasOK           bool      `json:"exit_gas_ok"`
	CheckedAt           time.Time `json:"checked_at"`
}
