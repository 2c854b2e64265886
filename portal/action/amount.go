package action

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/skalenetwork/portal-sub000/portal/models"
)

const (
	msgIncorrectAmount  = "Incorrect amount"
	msgAmountTooSmall   = "Amount too small"
	msgIncorrectTokenID = "Incorrect token id"
	msgNotOwned         = "This token is not owned by the address"
)

// nothingEntered is the check result for an empty input: not OK, but nothing to report either.
var nothingEntered = models.CheckResult{}

// ParseAmount converts a human amount to base units. The second result is OK when the amount is
// usable, otherwise it carries the message to show (empty when nothing was entered).
func ParseAmount(amount string, decimals int32) (*big.Int, models.CheckResult) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, nothingEntered
	}
	d, err := decimal.NewFromString(amount)
	if err != nil || d.IsNegative() {
		return nil, models.CheckResult{Message: msgIncorrectAmount}
	}
	if d.IsZero() {
		return nil, nothingEntered
	}
	shifted := d.Shift(decimals)
	wei := shifted.Truncate(0)
	if wei.Sign() <= 0 {
		return nil, models.CheckResult{Message: msgAmountTooSmall}
	}
	// digits past the token's precision cannot be moved
	if !wei.Equal(shifted) {
		return nil, models.CheckResult{Message: msgIncorrectAmount}
	}
	return wei.BigInt(), models.CheckResult{OK: true}
}

// ParseTokenID parses a decimal token id.
func ParseTokenID(id string) (*big.Int, models.CheckResult) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nothingEntered
	}
	v, ok := new(big.Int).SetString(id, 10)
	if !ok || v.Sign() < 0 {
		return nil, models.CheckResult{Message: msgIncorrectTokenID}
	}
	return v, models.CheckResult{OK: true}
}

// FormatAmount renders base units as a human amount.
func FormatAmount(wei *big.Int, decimals int32) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -decimals).String()
}
