package offers

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// NormalizePrice parses raw price text as an exact decimal and renders it in
// canonical form: integral values without a fractional part, everything else
// rounded to two decimal places with trailing zeros stripped. The result is a
// stable string, so NormalizePrice(NormalizePrice(x)) == NormalizePrice(x).
func NormalizePrice(raw string) (string, error) {
	dec, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return "", ErrInvalidPrice
	}
	if dec.Sign() <= 0 {
		return "", ErrInvalidPrice
	}
	// Half-even rounding, so half-cent inputs round to the nearest even cent.
	rounded := dec.RoundBank(2)
	if rounded.IsInteger() {
		return rounded.Truncate(0).String(), nil
	}
	// decimal.String already drops trailing zeros after the point.
	return rounded.String(), nil
}

// ParseQuantity parses raw quantity text as a non-negative integer.
// Zero is valid and is the sold-out sentinel.
func ParseQuantity(raw string) (int, error) {
	qty, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, ErrInvalidQuantity
	}
	if qty < 0 {
		return 0, ErrInvalidQuantity
	}
	return qty, nil
}

// ParseID parses raw text as an offer id.
func ParseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidID
	}
	return id, nil
}
