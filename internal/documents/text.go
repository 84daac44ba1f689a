// Package documents renders invoices, visit summaries and exports.
package documents

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ClinicInfo is printed in document headers.
type ClinicInfo struct {
	Name    string
	Address string
	Phone   string
}

var dStroke = strings.NewReplacer("đ", "d", "Đ", "D")

// plain strips diacritics so text fits the PDF core fonts.
func plain(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, dStroke.Replace(s))
	if err != nil {
		return s
	}
	return out
}

// FormatVND renders an amount with dot thousand separators, e.g. "1.250.000 VND".
func FormatVND(amount decimal.Decimal) string {
	rounded := amount.Round(0)
	negative := rounded.IsNegative()
	digits := rounded.Abs().String()

	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	if negative {
		return "-" + b.String() + " VND"
	}
	return b.String() + " VND"
}
