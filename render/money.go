// ABOUTME: Locale-aware money formatting for templates and contracts
// ABOUTME: Formats minor-unit amounts with grouping using golang.org/x/text
package render

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var moneyPrinter = message.NewPrinter(language.English)

// FormatMoney renders an amount in minor units, e.g. 5000000 NOK as "50,000.00 NOK".
func FormatMoney(minor int64, currency string) string {
	amount := float64(minor) / 100
	s := moneyPrinter.Sprint(number.Decimal(amount, number.Scale(2)))
	if currency = strings.TrimSpace(currency); currency != "" {
		s += " " + strings.ToUpper(currency)
	}
	return s
}
