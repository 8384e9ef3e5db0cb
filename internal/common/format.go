package common

import (
	"fmt"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/bobmcallan/folio-portal/internal/models"
)

// FormatMoney formats v in the given ISO currency, rounded to the currency's
// minor unit. Unknown codes fall back to a plain two-decimal number.
func FormatMoney(v float64, currency string) string {
	if money.GetCurrency(currency) == nil {
		return decimal.NewFromFloat(v).StringFixed(2)
	}
	// money.New never returns a nil currency, unlike GetCurrency.
	cur := *money.New(0, currency).Currency()
	minor := decimal.NewFromFloat(v).Round(int32(cur.Fraction)).Shift(int32(cur.Fraction))
	return cur.Formatter().Format(minor.IntPart())
}

// FormatSignedMoney formats v with a leading + when non-negative.
func FormatSignedMoney(v float64, currency string) string {
	if v >= 0 {
		return "+" + FormatMoney(v, currency)
	}
	return FormatMoney(v, currency)
}

// FormatOptionalMoney formats v, or returns models.Missing when v is nil.
func FormatOptionalMoney(v *float64, currency string) string {
	if v == nil {
		return models.Missing
	}
	return FormatMoney(*v, currency)
}

// FormatSignedPct formats a percentage with +/- prefix.
func FormatSignedPct(v float64) string {
	if v >= 0 {
		return fmt.Sprintf("+%.2f%%", v)
	}
	return fmt.Sprintf("%.2f%%", v)
}

// FormatQuantity trims trailing zeros from a share count.
func FormatQuantity(v float64) string {
	return decimal.NewFromFloat(v).String()
}
