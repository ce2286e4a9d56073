// Package format converts on-chain fixed-point amounts into display strings.
//
// Amounts travel as *big.Int until the last step so that no integer precision
// is lost on large balances.
package format

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// Decimals is the number of fractional digits of the native token.
const Decimals = 9

// DecimalPlaces selects how many fraction digits a formatter keeps.
// Optimal keeps every significant digit and trims trailing zeros.
type DecimalPlaces int

const Optimal DecimalPlaces = -1

var unit = new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)

// ParseRawAmount parses a raw integer amount as returned by the indexers.
func ParseRawAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return nil, fmt.Errorf("invalid raw amount %q", s)
	}
	return v, nil
}

// RawAmountToDecimal scales a raw amount down by the token decimals.
func RawAmountToDecimal(raw *big.Int) *big.Rat {
	if raw == nil {
		return new(big.Rat)
	}
	return new(big.Rat).SetFrac(raw, unit)
}

// RawAmountToDecimaledString returns the raw amount string for a whole number of tokens.
func RawAmountToDecimaledString(whole int64) string {
	return new(big.Int).Mul(big.NewInt(whole), unit).String()
}

// FormatDecimal renders value as a plain decimal string without separators.
func FormatDecimal(value *big.Rat, places DecimalPlaces) string {
	if value == nil {
		return "0"
	}
	if places != Optimal {
		return value.FloatString(int(places))
	}
	if value.IsInt() {
		return value.Num().String()
	}
	s := value.FloatString(Decimals)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

// FormatCurrency renders value with thousands separators followed by the currency symbol.
func FormatCurrency(value *big.Rat, currency string, places DecimalPlaces) string {
	s := AddCommas(FormatDecimal(value, places))
	if currency == "" {
		return s
	}
	return s + " " + currency
}

// FormatRawAmount is FormatCurrency applied to a raw amount.
func FormatRawAmount(raw *big.Int, currency string, places DecimalPlaces) string {
	return FormatCurrency(RawAmountToDecimal(raw), currency, places)
}

// RawAmountToFloat is the lossy conversion used for chart coordinates.
func RawAmountToFloat(raw *big.Int) float64 {
	f, _ := RawAmountToDecimal(raw).Float64()
	return f
}

// AddCommas inserts thousands separators into the integer part of a decimal string.
func AddCommas(s string) string {
	if len(s) == 0 {
		return s
	}
	integerPart, fraction, hasFraction := strings.Cut(s, ".")
	sign := ""
	if strings.HasPrefix(integerPart, "-") {
		sign = "-"
		integerPart = integerPart[1:]
	}

	n := len(integerPart)
	if n <= 3 {
		return s
	}

	var b strings.Builder
	b.WriteString(sign)
	head := n % 3
	if head > 0 {
		b.WriteString(integerPart[:head])
	}
	for i := head; i < n; i += 3 {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(integerPart[i : i+3])
	}

	if hasFraction {
		b.WriteByte('.')
		b.WriteString(fraction)
	}
	return b.String()
}

var siSymbols = []struct {
	value  float64
	symbol string
}{
	{1e18, "E"},
	{1e15, "P"},
	{1e12, "T"},
	{1e9, "G"},
	{1e6, "M"},
	{1e3, "k"},
	{1, ""},
}

// NFormatter abbreviates num with an SI suffix, e.g. 1234567 -> "1.23M".
// Trailing fraction zeros are dropped.
func NFormatter(num float64, digits int) string {
	if math.IsNaN(num) || math.IsInf(num, 0) {
		return "0"
	}
	sign := ""
	if num < 0 {
		sign = "-"
		num = -num
	}
	for _, s := range siSymbols {
		if num >= s.value {
			text := strconv.FormatFloat(num/s.value, 'f', digits, 64)
			if strings.Contains(text, ".") {
				text = strings.TrimSuffix(strings.TrimRight(text, "0"), ".")
			}
			return sign + text + s.symbol
		}
	}
	return "0"
}
