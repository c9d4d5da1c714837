package model

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrValueOutOfRange = errors.New("value out of range for column precision")

// ValueClass groups indicators by the magnitude of their values. Rates and
// indices fit comfortably in a narrow numeric column while GDP-scale amounts
// need many more integer digits.
type ValueClass string

const (
	ClassRate     ValueClass = "rate"
	ClassIndex    ValueClass = "index"
	ClassRatio    ValueClass = "ratio"
	ClassMonetary ValueClass = "monetary"
)

// Precision mirrors a NUMERIC(Digits, Scale) column.
type Precision struct {
	Digits int32
	Scale  int32
}

func ParseValueClass(value string) (ValueClass, error) {
	switch class := ValueClass(strings.ToLower(strings.TrimSpace(value))); class {
	case ClassRate, ClassIndex, ClassRatio, ClassMonetary:
		return class, nil
	case "":
		return ClassRate, nil
	default:
		return "", fmt.Errorf("unknown value class: %s", value)
	}
}

func (c ValueClass) Precision() Precision {
	switch c {
	case ClassMonetary:
		return Precision{Digits: 20, Scale: 2}
	default:
		return Precision{Digits: 15, Scale: 4}
	}
}

func (p Precision) SQLType() string {
	return fmt.Sprintf("NUMERIC(%d, %d)", p.Digits, p.Scale)
}

// Fit rounds value to the column scale and checks that its integer part fits.
func (p Precision) Fit(value float64) (decimal.Decimal, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return decimal.Decimal{}, fmt.Errorf("%w: %v", ErrValueOutOfRange, value)
	}
	rounded := decimal.NewFromFloat(value).Round(p.Scale)
	limit := decimal.New(1, p.Digits-p.Scale)
	if rounded.Abs().GreaterThanOrEqual(limit) {
		return decimal.Decimal{}, fmt.Errorf("%w: %s exceeds %s", ErrValueOutOfRange, rounded.String(), p.SQLType())
	}
	return rounded, nil
}
