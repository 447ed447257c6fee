// Package money implements fixed-scale decimal amounts with per-currency
// precision rules, and the order-level currency snapshot that locks
// buyer/seller exchange rates for the lifetime of an order. Amounts are
// never cast to float64 anywhere in this package.
package money

import (
	"github.com/shopspring/decimal"

	"github.com/iaros/commerce-core/internal/apperror"
)

// MaxFractionDigits is the per-currency scale rule.
// TWD/USD/INR/IDR/THB all use 2 fractional digits today; the table is
// deliberately a map so a future currency doesn't require touching call
// sites.
var MaxFractionDigits = map[string]int32{
	"TWD": 2,
	"USD": 2,
	"INR": 2,
	"IDR": 2,
	"THB": 2,
}

// Amount is a signed decimal tagged with the currency it was parsed under.
type Amount struct {
	Label string
	Value decimal.Decimal
}

func NewAmount(label string, v decimal.Decimal) Amount {
	return Amount{Label: label, Value: v}
}

// CheckPrecision enforces the per-currency fractional-digit rule. Violating
// it on persistence is fatal (CurrencyPrecision), never silently rounded.
func (a Amount) CheckPrecision() error {
	max, ok := MaxFractionDigits[a.Label]
	if !ok {
		// Unknown currency label: treat conservatively as a data-corruption
		// condition rather than guessing a scale.
		return apperror.Wrap(apperror.KindDataCorruption, "CurrencyPrecision",
			errUnknownCurrency(a.Label))
	}
	if -a.Value.Exponent() > max {
		return apperror.Wrap(apperror.KindDataCorruption, "CurrencyPrecision",
			errTooManyFractionDigits(a.Label, max))
	}
	return nil
}

// TryFromRawAmount parses a unit price and a total, validating
// total == unit * qty (or unit*qty + extraCharge when supplied) and that the
// per-currency scale rule holds.
func TryFromRawAmount(label, rawUnit, rawTotal string, qty int64, extraCharge decimal.Decimal) (unit, total Amount, err error) {
	u, parseErr := decimal.NewFromString(rawUnit)
	if parseErr != nil {
		return Amount{}, Amount{}, apperror.Wrap(apperror.KindClientInput, "ParseUnit", parseErr)
	}
	t, parseErr := decimal.NewFromString(rawTotal)
	if parseErr != nil {
		return Amount{}, Amount{}, apperror.Wrap(apperror.KindClientInput, "ParseTotal", parseErr)
	}
	expected := u.Mul(decimal.NewFromInt(qty)).Add(extraCharge)
	if !expected.Equal(t) {
		return Amount{}, Amount{}, apperror.New(apperror.KindClientInput, "Mismatch",
			"unit*qty+extra does not equal total")
	}
	unit = NewAmount(label, u)
	total = NewAmount(label, t)
	if err := unit.CheckPrecision(); err != nil {
		return Amount{}, Amount{}, &apperror.Error{Kind: apperror.KindClientInput, Code: "PrecisionUnit", Msg: err.Error()}
	}
	if err := total.CheckPrecision(); err != nil {
		return Amount{}, Amount{}, &apperror.Error{Kind: apperror.KindClientInput, Code: "PrecisionUnit", Msg: err.Error()}
	}
	return unit, total, nil
}

func errUnknownCurrency(label string) error {
	return &currencyErr{msg: "unknown currency label: " + label}
}

func errTooManyFractionDigits(label string, max int32) error {
	return &currencyErr{msg: "too many fractional digits for " + label}
}

type currencyErr struct{ msg string }

func (e *currencyErr) Error() string { return e.msg }
