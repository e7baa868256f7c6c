package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type Currency string

const (
	CurrencyIDR Currency = "IDR"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
	CurrencySGD Currency = "SGD"
	CurrencyJPY Currency = "JPY"
)

// ISO-4217 minor units.
var minorUnits = map[Currency]int32{
	CurrencyIDR: 2,
	CurrencyUSD: 2,
	CurrencyEUR: 2,
	CurrencyGBP: 2,
	CurrencySGD: 2,
	CurrencyJPY: 0,
}

func (c Currency) IsValid() bool {
	_, ok := minorUnits[c]
	return ok
}

func (c Currency) MinorUnits() int32 {
	return minorUnits[c]
}

func SupportedCurrencies() []Currency {
	return []Currency{CurrencyIDR, CurrencyUSD, CurrencyEUR, CurrencyGBP, CurrencySGD, CurrencyJPY}
}

// MaxIntegerDigits matches the NUMERIC(20, 4) amount columns.
const MaxIntegerDigits = 16

var amountLimit = decimal.New(1, MaxIntegerDigits)

// CheckPrecision reports ErrAmountPrecision when amount carries more
// fractional digits than the currency allows, and ErrAmountOutOfRange when
// it has more than MaxIntegerDigits integer digits.
func CheckPrecision(amount decimal.Decimal, c Currency) error {
	if !c.IsValid() {
		return fmt.Errorf("CheckPrecision: %s: %w", c, ErrInvalidCurrency)
	}
	if amount.Abs().GreaterThanOrEqual(amountLimit) {
		return fmt.Errorf("CheckPrecision: %s: %w", amount, ErrAmountOutOfRange)
	}
	if !amount.Equal(amount.Truncate(c.MinorUnits())) {
		return fmt.Errorf("CheckPrecision: %s in %s: %w", amount, c, ErrAmountPrecision)
	}
	return nil
}

// ParseDecimal parses an exact decimal string without any currency rules.
func ParseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("ParseDecimal: empty: %w", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ParseDecimal: %q: %w", s, ErrInvalidAmount)
	}
	return d, nil
}

// ParseAmount parses an exact decimal string in the given currency.
func ParseAmount(s string, c Currency) (decimal.Decimal, error) {
	d, err := ParseDecimal(s)
	if err != nil {
		return decimal.Zero, err
	}
	if err := CheckPrecision(d, c); err != nil {
		return decimal.Zero, fmt.Errorf("ParseAmount: %w", err)
	}
	return d, nil
}
