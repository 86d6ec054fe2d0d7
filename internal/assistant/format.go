package assistant

import (
	"strings"

	"github.com/shopspring/decimal"
)

// formatINR renders an amount with Indian digit grouping, e.g. ₹1,23,456.78.
func formatINR(amount decimal.Decimal) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
	}
	return sign + "₹" + groupIndian(amount.Abs().StringFixed(2))
}

// formatSignedINR always carries a sign, for profit and loss figures.
func formatSignedINR(amount decimal.Decimal) string {
	if amount.IsNegative() {
		return formatINR(amount)
	}
	return "+" + formatINR(amount)
}

func formatPercent(p decimal.Decimal) string {
	s := p.StringFixed(2) + "%"
	if p.IsPositive() {
		return "+" + s
	}
	return s
}

// groupIndian inserts separators into a non-negative fixed-point string:
// the last three integer digits, then pairs.
func groupIndian(fixed string) string {
	intPart, fracPart, hasFrac := strings.Cut(fixed, ".")
	if len(intPart) > 3 {
		head, tail := intPart[:len(intPart)-3], intPart[len(intPart)-3:]
		var groups []string
		for len(head) > 2 {
			groups = append([]string{head[len(head)-2:]}, groups...)
			head = head[:len(head)-2]
		}
		groups = append([]string{head}, groups...)
		intPart = strings.Join(groups, ",") + "," + tail
	}
	if hasFrac {
		return intPart + "." + fracPart
	}
	return intPart
}

func pnlMarker(pnl decimal.Decimal) string {
	if pnl.IsNegative() {
		return "🔴"
	}
	return "🟢"
}
