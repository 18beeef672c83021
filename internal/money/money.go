// Package money formats billing amounts. Every amount declares its scale:
// plan prices and invoice totals arrive in minor units (cents), a few
// backend fields are already in major units. Scale is a property of the
// field type, never inferred from where a value is displayed.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Scale says how a stored value relates to the currency's major unit.
type Scale string

const (
	ScaleMinor Scale = "minor"
	ScaleMajor Scale = "major"
)

// DefaultCurrency is used when neither the record nor the configuration
// names one.
const DefaultCurrency = "usd"

var currencySymbols = map[string]string{
	"usd": "$",
	"eur": "€",
	"gbp": "£",
	"aud": "AU$",
	"cad": "CA$",
	"chf": "CHF",
	"sek": "kr",
	"nzd": "NZ$",
	"hkd": "HK$",
	"sgd": "S$",
	"jpy": "¥",
	"cny": "¥",
	"inr": "₹",
	"brl": "R$",
	"mxn": "MX$",
	"krw": "₩",
	"zar": "R",
}

// zero-decimal currencies per the payment processor's convention
var zeroDecimal = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true,
	"kmf": true, "krw": true, "mga": true, "pyg": true, "rwf": true,
	"ugx": true, "vnd": true, "vuv": true, "xaf": true, "xof": true, "xpf": true,
}

// Amount is a value tagged with its scale and currency.
type Amount struct {
	value    decimal.Decimal
	scale    Scale
	currency string
}

// Minor builds an amount expressed in minor units.
func Minor(units int64, currency string) Amount {
	return Amount{value: decimal.NewFromInt(units), scale: ScaleMinor, currency: NormalizeCurrency(currency)}
}

// Major builds an amount already expressed in major units.
func Major(value decimal.Decimal, currency string) Amount {
	return Amount{value: value, scale: ScaleMajor, currency: NormalizeCurrency(currency)}
}

func (a Amount) Scale() Scale { return a.scale }
func (a Amount) Currency() string { return a.currency }

// MajorValue converts the amount to major units.
func (a Amount) MajorValue() decimal.Decimal {
	if a.scale == ScaleMajor {
		return a.value
	}
	return a.value.Shift(-Exponent(a.currency))
}

// Format renders the amount with symbol, grouping and the currency's
// number of decimals, e.g. "$1,234.50".
func (a Amount) Format() string {
	exp := Exponent(a.currency)
	major := a.MajorValue().Round(exp)

	sign := ""
	if major.IsNegative() {
		sign = "-"
		major = major.Neg()
	}

	text := major.StringFixed(exp)
	intPart, fracPart, _ := strings.Cut(text, ".")
	out := groupThousands(intPart)
	if exp > 0 {
		out += "." + fracPart
	}

	symbol := Symbol(a.currency)
	if symbol == strings.ToUpper(a.currency) {
		return sign + symbol + " " + out
	}
	return sign + symbol + out
}

func (a Amount) String() string { return a.Format() }

// Exponent returns the number of minor-unit digits of a currency.
func Exponent(currency string) int32 {
	if zeroDecimal[NormalizeCurrency(currency)] {
		return 0
	}
	return 2
}

// Symbol returns the display symbol of a currency, or its upper-cased code.
func Symbol(currency string) string {
	code := NormalizeCurrency(currency)
	if symbol, ok := currencySymbols[code]; ok {
		return symbol
	}
	return strings.ToUpper(code)
}

func NormalizeCurrency(currency string) string {
	code := strings.ToLower(strings.TrimSpace(currency))
	if code == "" {
		return DefaultCurrency
	}
	return code
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
