// Package units converts between human decimal amounts and integer base
// units without floating point, and reads token descriptors from chain.
package units

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	xerrors "OpenMCP-EVM/internal/errors"

	"github.com/shopspring/decimal"
)

// NativeDecimals is the fixed precision of every EVM native currency.
const NativeDecimals uint8 = 18

// maxBits is the width of a uint256 ABI word. Larger values would be
// reduced mod 2^256 by the packer.
const maxBits = 256

var (
	// ErrInvalidAmount is the sentinel for malformed or over-precise amounts.
	ErrInvalidAmount = xerrors.New(xerrors.CodeInvalidAmount, "invalid amount")

	humanPattern   = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)
	integerPattern = regexp.MustCompile(`^[0-9]+$`)
)

// Amount pairs the canonical human form with its exact base-unit value.
type Amount struct {
	Human string
	Base  *big.Int
}

// NewAmount converts human at the given precision.
func NewAmount(human string, decimals uint8) (Amount, error) {
	base, err := ToBaseUnits(human, decimals)
	if err != nil {
		return Amount{}, err
	}
	return Amount{Human: ToHumanUnits(base, decimals), Base: base}, nil
}

// ParseHuman validates a non-negative decimal numeral and returns its exact value.
func ParseHuman(human string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(human)
	if !humanPattern.MatchString(trimmed) {
		return decimal.Decimal{}, invalidAmount(human, "expected a non-negative decimal number")
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Decimal{}, xerrors.Wrap(xerrors.CodeInvalidAmount, err, "invalid amount: "+human)
	}
	return d, nil
}

// ToBaseUnits returns human × 10^decimals. It never rounds: more fractional
// digits than decimals is an INVALID_AMOUNT error.
func ToBaseUnits(human string, decimals uint8) (*big.Int, error) {
	d, err := ParseHuman(human)
	if err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(human)
	if dot := strings.IndexByte(trimmed, '.'); dot >= 0 {
		if len(trimmed)-dot-1 > int(decimals) {
			return nil, invalidAmount(human, fmt.Sprintf("more than %d decimal places", decimals))
		}
	}
	base := d.Shift(int32(decimals)).BigInt()
	if base.BitLen() > maxBits {
		return nil, invalidAmount(human, "exceeds uint256")
	}
	return base, nil
}

// ToHumanUnits renders base / 10^decimals in canonical form: no trailing
// fractional zeros, no trailing dot, no leading zeros.
func ToHumanUnits(base *big.Int, decimals uint8) string {
	if base == nil {
		return "0"
	}
	return decimal.NewFromBigInt(base, -int32(decimals)).String()
}

// Canonical normalizes a human amount the same way ToHumanUnits renders one.
func Canonical(human string) (string, error) {
	d, err := ParseHuman(human)
	if err != nil {
		return "", err
	}
	return d.String(), nil
}

// ParseInteger parses an exact non-negative integer such as a token id.
func ParseInteger(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if !integerPattern.MatchString(trimmed) {
		return nil, invalidAmount(raw, "expected a non-negative integer")
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, invalidAmount(raw, "expected a non-negative integer")
	}
	if value.BitLen() > maxBits {
		return nil, invalidAmount(raw, "exceeds uint256")
	}
	return value, nil
}

func invalidAmount(raw, reason string) error {
	return xerrors.New(xerrors.CodeInvalidAmount, "invalid amount "+`"`+raw+`"`+": "+reason, xerrors.WithMetadata("amount", raw))
}
