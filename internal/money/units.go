package money

import (
	"github.com/shopspring/decimal"
)

// MinorUnits is a JSON field holding an integer amount in minor units.
type MinorUnits int64

func (m MinorUnits) Amount(currency string) Amount {
	return Minor(int64(m), currency)
}

// MajorUnits is a JSON field holding an amount already in major units.
// It accepts JSON numbers and numeric strings.
type MajorUnits decimal.Decimal

func (m MajorUnits) Amount(currency string) Amount {
	return Major(decimal.Decimal(m), currency)
}

func (m MajorUnits) Decimal() decimal.Decimal {
	return decimal.Decimal(m)
}

func (m *MajorUnits) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	*m = MajorUnits(d)
	return nil
}

func (m MajorUnits) MarshalJSON() ([]byte, error) {
	return decimal.Decimal(m).MarshalJSON()
}
