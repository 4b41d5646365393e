// Package core provides money parsing and currency conversion.
//
// This file contains the closed set of currencies the ledger understands,
// the static conversion table into the base currency and helpers to parse
// and format amounts.
package core

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	INR Currency = "₹"
	USD Currency = "$"
	EUR Currency = "€"
	GBP Currency = "£"
	JPY Currency = "¥"
)

// BaseCurrency is the unit every aggregate is computed in.
const BaseCurrency = INR

// Currency is one of the fixed currency symbols.
type Currency string

var ErrInvalidCurrency = errors.New("invalid currency")

var currencyCodes = map[string]Currency{
	"INR": INR,
	"USD": USD,
	"EUR": EUR,
	"GBP": GBP,
	"JPY": JPY,
}

// Currencies returns the recognized currencies, base first.
func Currencies() []Currency {
	return []Currency{INR, USD, EUR, GBP, JPY}
}

// ParseCurrency accepts a symbol or an ISO code. An empty string is the base
// currency, never an error.
func ParseCurrency(s string) (Currency, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return BaseCurrency, nil
	}
	c := Currency(s)
	if c.IsValid() {
		return c, nil
	}
	if c, ok := currencyCodes[strings.ToUpper(s)]; ok {
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, s)
}

func (c Currency) IsValid() bool {
	switch c {
	case INR, USD, EUR, GBP, JPY:
		return true
	default:
		return false
	}
}

// Code returns the ISO 4217 code of the currency.
func (c Currency) Code() string {
	for code, cur := range currencyCodes {
		if cur == c {
			return code
		}
	}
	return ""
}

func (c Currency) String() string {
	return string(c)
}

// Converter normalizes amounts into the base currency using a fixed rate table.
type Converter struct {
	rates map[Currency]decimal.Decimal
}

// DefaultRates returns the static rate table (units of base per unit).
func DefaultRates() map[Currency]decimal.Decimal {
	return map[Currency]decimal.Decimal{
		INR: decimal.NewFromInt(1),
		USD: decimal.RequireFromString("83.5"),
		EUR: decimal.RequireFromString("91.2"),
		GBP: decimal.RequireFromString("106.8"),
		JPY: decimal.RequireFromString("0.56"),
	}
}

// NewConverter copies rates; later changes to the map do not affect it.
func NewConverter(rates map[Currency]decimal.Decimal) *Converter {
	cp := make(map[Currency]decimal.Decimal, len(rates))
	for c, r := range rates {
		cp[c] = r
	}
	return &Converter{rates: cp}
}

func DefaultConverter() *Converter {
	return NewConverter(DefaultRates())
}

// Normalize converts amount from currency into base units. The zero currency
// is treated as the base currency.
func (c *Converter) Normalize(amount decimal.Decimal, currency Currency) (decimal.Decimal, error) {
	if currency == "" {
		currency = BaseCurrency
	}
	rate, ok := c.rates[currency]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidCurrency, string(currency))
	}
	return amount.Mul(rate), nil
}

// Rate returns the conversion rate for currency.
func (c *Converter) Rate(currency Currency) (decimal.Decimal, bool) {
	r, ok := c.rates[currency]
	return r, ok
}

// ParseAmount parses a positive decimal amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators, the same
// way the input forms always have, and thousands grouping with the other
// separator (1,234.50 or 1.234,50). A lone comma is always the decimal
// separator. Zero, negative and malformed values fail with ErrInvalidAmount.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = normalizeSeparators(s)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	return d, nil
}

var (
	commaGrouped = regexp.MustCompile(`^\d{1,3}(,\d{3})+(\.\d+)?$`)
	dotGrouped   = regexp.MustCompile(`^\d{1,3}(\.\d{3})+,\d+$`)
)

// normalizeSeparators rewrites s to use a dot as the only decimal separator.
// Anything it does not recognize is returned unchanged for the parser to
// reject.
func normalizeSeparators(s string) string {
	switch {
	case strings.Count(s, ",") == 1 && !strings.Contains(s, "."):
		return strings.Replace(s, ",", ".", 1)
	case commaGrouped.MatchString(s):
		return strings.ReplaceAll(s, ",", "")
	case dotGrouped.MatchString(s):
		return strings.Replace(strings.ReplaceAll(s, ".", ""), ",", ".", 1)
	default:
		return s
	}
}

// FormatAmount renders an amount with its symbol and two decimals, e.g. "₹417.50".
func FormatAmount(amount decimal.Decimal, currency Currency) string {
	if currency == "" {
		currency = BaseCurrency
	}
	return string(currency) + amount.StringFixed(2)
}
