// Package amount normalises caller supplied token amounts into exact base-unit integers.
package amount

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/GoPolymarket/safeboard/internal/pkg/apperrors"
	"github.com/shopspring/decimal"
)

// Reasons reported in the "reason" detail of an INVALID_AMOUNT error.
const (
	ReasonEmpty       = "empty"
	ReasonNonNumeric  = "non_numeric"
	ReasonNonInteger  = "non_integer"
	ReasonNegative    = "negative"
	ReasonUnsupported = "unsupported_type"
)

// Parse converts v into a non-negative integer amount. Fractional values are
// rejected rather than truncated.
func Parse(v any) (*big.Int, error) {
	switch val := v.(type) {
	case nil:
		return nil, invalid(ReasonEmpty, "amount is required")
	case string:
		return parseString(val)
	case json.Number:
		return parseString(val.String())
	case *big.Int:
		if val == nil {
			return nil, invalid(ReasonEmpty, "amount is required")
		}
		return checkSign(new(big.Int).Set(val))
	case big.Int:
		return checkSign(new(big.Int).Set(&val))
	case decimal.Decimal:
		return fromDecimal(val)
	case int:
		return checkSign(big.NewInt(int64(val)))
	case int32:
		return checkSign(big.NewInt(int64(val)))
	case int64:
		return checkSign(big.NewInt(val))
	case uint:
		return new(big.Int).SetUint64(uint64(val)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(val)), nil
	case uint64:
		return new(big.Int).SetUint64(val), nil
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil, invalid(ReasonNonNumeric, "amount is not a finite number")
		}
		return fromDecimal(decimal.NewFromFloat(val))
	default:
		return nil, invalid(ReasonUnsupported, fmt.Sprintf("unsupported amount type %T", v))
	}
}

// MustParse is Parse for constants known to be valid.
func MustParse(v any) *big.Int {
	out, err := Parse(v)
	if err != nil {
		panic(err)
	}
	return out
}

func parseString(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, invalid(ReasonEmpty, "amount is required")
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		digits := s[2:]
		if strings.HasPrefix(digits, "-") {
			return nil, invalid(ReasonNegative, fmt.Sprintf("amount %q is negative", s))
		}
		out, ok := new(big.Int).SetString(digits, 16)
		if !ok || strings.HasPrefix(digits, "+") {
			return nil, invalid(ReasonNonNumeric, fmt.Sprintf("amount %q is not a hex number", s))
		}
		return checkSign(out)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, invalid(ReasonNonNumeric, fmt.Sprintf("amount %q is not a number", s))
	}
	return fromDecimal(d)
}

func fromDecimal(d decimal.Decimal) (*big.Int, error) {
	if !d.IsInteger() {
		return nil, invalid(ReasonNonInteger, fmt.Sprintf("amount %s is not an integer", d.String()))
	}
	return checkSign(d.BigInt())
}

func checkSign(v *big.Int) (*big.Int, error) {
	if v.Sign() < 0 {
		return nil, invalid(ReasonNegative, fmt.Sprintf("amount %s is negative", v.String()))
	}
	return v, nil
}

func invalid(reason, msg string) error {
	return apperrors.New(apperrors.ErrInvalidAmount, msg, nil).WithDetail("reason", reason)
}
