package trade

import "errors"

// ErrNotComputable is returned when the original price is missing or
// non-positive, which makes a margin rate meaningless.
var ErrNotComputable = errors.New("margin not computable: original price missing or zero")

// Margin is the gap between a recent real-transaction price and the
// listing's original sale price, both in 억.
type Margin struct {
	Amount float64 `json:"amount"` // recent - original, 억
	Rate   float64 `json:"rate"`   // amount / original * 100
}

// ComputeMargin derives the margin from an original and a recent price.
// A negative amount (recent below original) is a valid result.
func ComputeMargin(original, recent float64) (Margin, error) {
	if original <= 0 {
		return Margin{}, ErrNotComputable
	}
	amount := recent - original
	return Margin{
		Amount: amount,
		Rate:   amount / original * 100,
	}, nil
}
