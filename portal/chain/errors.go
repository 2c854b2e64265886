package chain

import "errors"

var (
	ErrUnknownChain    = errors.New("unknown chain")
	ErrNoEndpoints     = errors.New("no rpc endpoints configured")
	ErrReceiptNotFound = errors.New("transaction receipt not found")
)
