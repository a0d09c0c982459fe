// Package amount parses and formats money entered in chat, where "k" is
// shorthand for thousands.
package amount

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ErrInvalid is returned for text that is not a suffix-k number.
var ErrInvalid = errors.New("amount: invalid format")

var (
	suffixK  = regexp.MustCompile(`^(\d+\.?\d*|\d*\.\d+)k?$`)
	thousand = decimal.NewFromInt(1000)
	printer  = message.NewPrinter(language.English)
)

// Parse reads a decimal number optionally followed by a single k/K suffix
// meaning x1000. Surrounding whitespace is ignored.
func Parse(s string) (decimal.Decimal, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if !suffixK.MatchString(v) {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalid, s)
	}

	multiplier := decimal.NewFromInt(1)
	if strings.HasSuffix(v, "k") {
		v = strings.TrimSuffix(v, "k")
		multiplier = thousand
	}
	if strings.HasPrefix(v, ".") {
		v = "0" + v
	}
	v = strings.TrimSuffix(v, ".")

	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q: %v", ErrInvalid, s, err)
	}
	return d.Mul(multiplier), nil
}

// Format renders d with comma thousand separators, e.g. 1500000 -> "1,500,000"
// and 1234.5 -> "1,234.5".
func Format(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	whole := d.Truncate(0)
	out := sign + printer.Sprintf("%d", whole.IntPart())

	frac := d.Sub(whole)
	if frac.IsZero() {
		return out
	}
	// "0.5" -> ".5"
	return out + strings.TrimPrefix(frac.String(), "0")
}
