package render

import (
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var printer = message.NewPrinter(language.BritishEnglish)

// FormatPrice formats amount in the given ISO 4217 currency for en-GB, e.g.
// 10 GBP -> "£10.00". Unknown codes fall back to "XYZ 10.00".
func FormatPrice(amount float64, code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		code = "GBP"
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return code + " " + printer.Sprint(number.Decimal(amount, number.Scale(2)))
	}
	scale, _ := currency.Standard.Rounding(unit)
	symbol := printer.Sprint(currency.NarrowSymbol(unit))
	digits := printer.Sprint(number.Decimal(abs(amount), number.Scale(scale)))
	if amount < 0 {
		return "-" + symbol + digits
	}
	return symbol + digits
}

// FormatCount groups digits for en-GB, e.g. 1204 -> "1,204".
func FormatCount(n int) string {
	return printer.Sprint(number.Decimal(n))
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
