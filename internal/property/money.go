package property

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// FormatMoney renders a major-unit amount with the currency's symbol,
// separators and fraction digits. An unknown currency code falls back to USD.
func FormatMoney(amount decimal.Decimal, currency string) string {
	if money.GetCurrency(currency) == nil {
		currency = money.USD
	}
	// money.New never returns a nil currency for a known code.
	cur := *money.New(0, currency).Currency()
	minor := amount.Shift(int32(cur.Fraction)).Round(0)
	return cur.Formatter().Format(minor.IntPart())
}
