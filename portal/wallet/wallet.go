package wallet

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/skalenetwork/portal-sub000/portal/chain"
)

var (
	// ErrChainNotAdded is returned by SwitchChain for a chain the wallet does not know.
	ErrChainNotAdded = errors.New("chain not added to wallet")
	// ErrRejected is returned when the signer refuses to sign.
	ErrRejected = errors.New("user rejected the request")
)

// TxRequest is an unsigned call the wallet has to sign and broadcast on its current chain.
type TxRequest struct {
	To    common.Address
	Data  []byte
	Value *big.Int
	// Gas is optional, the wallet estimates it when zero.
	Gas uint64
}

// Wallet is the signing capability the orchestrator drives. Implementations must serialize
// SendTransaction so nonces stay ordered.
type Wallet interface {
	Address() common.Address
	ChainID(ctx context.Context) (*big.Int, error)
	// AddChain registers a chain definition. It may fail if the chain is already known.
	AddChain(ctx context.Context, info chain.Info) error
	SwitchChain(ctx context.Context, chainID *big.Int) error
	SendTransaction(ctx context.Context, req TxRequest) (common.Hash, error)
}
