package action

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/skalenetwork/portal-sub000/portal/chain"
	"github.com/skalenetwork/portal-sub000/portal/waiter"
	"github.com/skalenetwork/portal-sub000/portal/wallet"
)

var (
	// ErrUserRejected means the signer declined the request.
	ErrUserRejected = errors.New("transaction rejected by user")
	// ErrInvalidInput is returned by Execute when the amount or token id does not pass the checks.
	ErrInvalidInput = errors.New("invalid input")
)

// codeUserRejected is the EIP-1193 error code for a declined request.
const codeUserRejected = 4001

// RevertError is an on-chain revert, either at estimation or in the receipt.
type RevertError struct {
	Reason string
	TxHash common.Hash
}

func (e *RevertError) Error() string {
	if e.TxHash != (common.Hash{}) {
		return fmt.Sprintf("transaction %s reverted: %s", e.TxHash.Hex(), e.Reason)
	}
	return "execution reverted: " + e.Reason
}

// Classify maps a send failure to ErrUserRejected, *RevertError or leaves it as is.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var revert *RevertError
	if errors.As(err, &revert) || errors.Is(err, ErrUserRejected) {
		return err
	}
	if errors.Is(err, wallet.ErrRejected) {
		return fmt.Errorf("%w: %w", ErrUserRejected, err)
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == codeUserRejected {
		return fmt.Errorf("%w: %w", ErrUserRejected, err)
	}

	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if reason, ok := revertReason(dataErr.ErrorData()); ok {
			return &RevertError{Reason: reason}
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "user rejected"), strings.Contains(msg, "user denied"):
		return fmt.Errorf("%w: %w", ErrUserRejected, err)
	case strings.Contains(msg, "execution reverted"):
		return &RevertError{Reason: strings.TrimSpace(strings.TrimPrefix(err.Error(), "execution reverted:"))}
	}
	return err
}

// reverted reports whether a view call failed inside the contract rather than on the way to
// the node.
func reverted(err error) bool {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return true
	}
	var revert *RevertError
	return errors.As(Classify(err), &revert)
}

func revertReason(data any) (string, bool) {
	s, ok := data.(string)
	if !ok {
		return "", false
	}
	raw, err := hexutil.Decode(s)
	if err != nil {
		return "", false
	}
	reason, err := abi.UnpackRevert(raw)
	if err != nil {
		return "", false
	}
	return reason, true
}

// Describe renders the single user-facing message of an Execute failure.
func Describe(err error) string {
	var revert *RevertError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUserRejected):
		return "Transaction was rejected by the user"
	case errors.As(err, &revert):
		if revert.Reason == "" {
			return "Transaction reverted"
		}
		return "Transaction reverted: " + revert.Reason
	case errors.Is(err, waiter.ErrTimeout):
		return "Timed out waiting for the transfer to arrive, it may still complete later"
	case errors.Is(err, chain.ErrReceiptNotFound):
		return "Transaction is not mined yet, it may still complete later"
	case errors.Is(err, ErrInvalidInput):
		return err.Error()
	}
	return "Unexpected error: " + err.Error()
}

// Pending reports whether err leaves the outcome open: the transaction or the transfer may
// still land after the wait gave up.
func Pending(err error) bool {
	return errors.Is(err, waiter.ErrTimeout) || errors.Is(err, chain.ErrReceiptNotFound)
}
