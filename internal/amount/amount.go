// Package amount converts between smallest-unit integers and decimal
// strings. All on-chain arithmetic stays in *big.Int; decimal strings
// exist only at input and artifact boundaries.
package amount

import (
	"fmt"
	"math/big"
	"strings"
)

// FormatUnits renders a smallest-unit value as a decimal string with
// trailing zeros trimmed ("1", "0.012", "0.000000000000000001").
func FormatUnits(value *big.Int, decimals uint8) string {
	if value == nil || value.Sign() == 0 {
		return "0"
	}
	if decimals == 0 {
		return value.String()
	}

	sign := ""
	abs := new(big.Int).Abs(value)
	if value.Sign() < 0 {
		sign = "-"
	}

	denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	text := new(big.Rat).SetFrac(abs, denom).FloatString(int(decimals))

	text = strings.TrimRight(text, "0")
	text = strings.TrimSuffix(text, ".")
	return sign + text
}

// ParseUnits converts a decimal string ("1.25") into a smallest-unit
// integer. The value must be exactly representable in the given number
// of decimals.
func ParseUnits(text string, decimals uint8) (*big.Int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty amount")
	}

	rat, ok := new(big.Rat).SetString(text)
	if !ok {
		return nil, fmt.Errorf("invalid amount: %q", text)
	}

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	scaled := new(big.Rat).Mul(rat, new(big.Rat).SetInt(scale))
	if !scaled.IsInt() {
		return nil, fmt.Errorf("amount %q needs more than %d decimals", text, decimals)
	}
	return new(big.Int).Set(scaled.Num()), nil
}
