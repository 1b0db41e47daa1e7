package format

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Money formats amount, given in major units, with the symbol and precision of
// the ISO 4217 currency code. Amounts are rounded to the currency's minor unit.
func Money(amount decimal.Decimal, currency string) string {
	// money.New never returns a nil currency; unknown codes get default formatting.
	cur := money.New(0, currency).Currency()
	minor := amount.Shift(int32(cur.Fraction)).Round(0)
	return cur.Formatter().Format(minor.IntPart())
}

// KnownCurrency reports whether code is an ISO currency go-money knows about.
func KnownCurrency(code string) bool {
	return money.GetCurrency(code) != nil
}
