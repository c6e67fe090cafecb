// Package calculator computes invoice totals from line items.
package calculator

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Item is the minimal line item information needed for totals.
type Item struct {
	Quantity  float64
	UnitPrice float64
}

// Totals holds the derived amounts of an invoice.
type Totals struct {
	Subtotal float64
	Tax      float64
	Total    float64
}

// Compute returns the totals for items at taxPercent, rounded to two decimal places.
// See ComputeForCurrency.
func Compute(items []*Item, taxPercent float64) Totals {
	return compute(items, taxPercent, 2)
}

// ComputeForCurrency returns the totals for items at taxPercent, rounded to the
// minor unit of currency.
//
// Algorithm:
//   - subtotal = round(Σ quantity × unitPrice) over non-nil items
//   - tax = round(subtotal × taxPercent / 100)
//   - total = subtotal + tax
//
// nil items are skipped and NaN or infinite values count as zero. Negative values
// are not rejected. Rounding is half away from zero.
func ComputeForCurrency(items []*Item, taxPercent float64, currency string) Totals {
	return compute(items, taxPercent, currencyDecimals(currency))
}

func compute(items []*Item, taxPercent float64, places int32) Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		if item == nil {
			continue
		}
		qty := decimal.NewFromFloat(finite(item.Quantity))
		price := decimal.NewFromFloat(finite(item.UnitPrice))
		subtotal = subtotal.Add(qty.Mul(price))
	}
	subtotal = subtotal.Round(places)

	rate := decimal.NewFromFloat(finite(taxPercent))
	tax := subtotal.Mul(rate).Div(decimal.NewFromInt(100)).Round(places)
	total := subtotal.Add(tax)

	return Totals{
		Subtotal: subtotal.InexactFloat64(),
		Tax:      tax.InexactFloat64(),
		Total:    total.InexactFloat64(),
	}
}

// finite maps NaN and ±Inf to zero.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// currencyDecimals returns the number of minor-unit digits for a currency code.
func currencyDecimals(currency string) int32 {
	switch strings.ToLower(strings.TrimSpace(currency)) {
	case "jpy", "krw", "vnd", "clp", "pyg", "idr":
		return 0
	}
	return 2
}

// FormatAmount renders v with the minor-unit digits of currency, e.g. "331.10"
// for MYR and "331" for JPY.
func FormatAmount(v float64, currency string) string {
	return decimal.NewFromFloat(finite(v)).StringFixed(currencyDecimals(currency))
}
