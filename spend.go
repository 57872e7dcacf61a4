package x402

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/primsh/x402fetch/types"
	"github.com/primsh/x402fetch/utils"
)

// DefaultMaxPayment is the per-request ceiling used when none is configured.
const DefaultMaxPayment = "1.00"

// SpendCap is an inclusive per-request ceiling on what a Client will authorize.
type SpendCap struct {
	ceiling *big.Int
	label   string
}

// NewSpendCap parses ceiling as a decimal currency amount. Empty selects DefaultMaxPayment.
// The label keeps the caller's spelling so error messages echo what was configured.
func NewSpendCap(ceiling string) SpendCap {
	ceiling = strings.TrimSpace(ceiling)
	if ceiling == "" {
		ceiling = DefaultMaxPayment
	}
	return SpendCap{
		ceiling: utils.ParseDecimal(ceiling),
		label:   ceiling,
	}
}

// Ceiling returns the cap in atomic units.
func (s SpendCap) Ceiling() *big.Int {
	return new(big.Int).Set(s.ceiling)
}

func (s SpendCap) String() string {
	return s.label
}

// Check fails when the requirement asks for more than the ceiling. Equal is allowed.
func (s SpendCap) Check(req types.PaymentRequirements) error {
	amount, err := utils.ParseAtomic(req.AtomicAmount())
	if err != nil {
		return &types.X402Error{
			Code:    types.ErrInvalidRequirements,
			Message: fmt.Sprintf("invalid payment amount: %v", err),
		}
	}

	if amount.Cmp(s.ceiling) <= 0 {
		return nil
	}

	requested := utils.FormatDecimal(amount)
	return &types.X402Error{
		Code:    types.ErrSpendCapExceeded,
		Message: fmt.Sprintf("payment of %s exceeds spend ceiling of %s", requested, s.label),
		Data: types.SpendCapDetail{
			Requested: requested,
			Ceiling:   s.label,
		},
	}
}

// IsSpendCapExceeded reports whether err is a spend-cap violation.
func IsSpendCapExceeded(err error) bool {
	var xe *types.X402Error
	return errors.As(err, &xe) && xe.Code == types.ErrSpendCapExceeded
}
