package folio

import "github.com/shopspring/decimal"

// newDecimal is a convenient factory for decimal.Decimal
func newDecimal[T float64 | int | int64 | decimal.Decimal](value T) decimal.Decimal {
	switch v := any(value).(type) {
	case decimal.Decimal:
		return v
	case float64:
		return decimal.NewFromFloat(v)
	case int:
		return decimal.NewFromInt(int64(v))
	case int64:
		return decimal.NewFromInt(v)
	default:
		panic("unsupported type")
	}
}

// D is a short hand for amounts in tests and call sites building payloads.
func D[T float64 | int | int64 | decimal.Decimal](value T) decimal.Decimal { return newDecimal(value) }

// Quantity is a number of shares.
type Quantity struct {
	value decimal.Decimal
}

func Q[T float64 | int | int64 | decimal.Decimal](value T) Quantity {
	return Quantity{value: newDecimal(value)}
}

func (q Quantity) Decimal() decimal.Decimal    { return q.value }
func (q Quantity) Equal(p Quantity) bool       { return q.value.Equal(p.value) }
func (q Quantity) LessThan(p Quantity) bool    { return q.value.LessThan(p.value) }
func (q Quantity) GreaterThan(p Quantity) bool { return q.value.GreaterThan(p.value) }
func (q Quantity) Add(p Quantity) Quantity     { return Quantity{value: q.value.Add(p.value)} }
func (q Quantity) Sub(p Quantity) Quantity     { return Quantity{value: q.value.Sub(p.value)} }
func (q Quantity) IsNegative() bool            { return q.value.IsNegative() }
func (q Quantity) IsPositive() bool            { return q.value.IsPositive() }
func (q Quantity) IsZero() bool                { return q.value.IsZero() }
func (q Quantity) String() string              { return q.value.String() }

// Mul scales the quantity by f.
func (q Quantity) Mul(f decimal.Decimal) Quantity { return Quantity{value: q.value.Mul(f)} }

// Price returns the value of q shares at price p.
func (q Quantity) Price(p decimal.Decimal) decimal.Decimal { return q.value.Mul(p) }

// Ratio returns q/p, zero when p is zero.
func (q Quantity) Ratio(p Quantity) decimal.Decimal {
	if p.value.IsZero() {
		return decimal.Zero
	}
	return q.value.Div(p.value)
}

func (q Quantity) MarshalJSON() ([]byte, error) {
	return q.value.MarshalJSON()
}

func (q *Quantity) UnmarshalJSON(decimalBytes []byte) error {
	// null and missing shares are zero.
	if string(decimalBytes) == "null" {
		q.value = decimal.Zero
		return nil
	}
	return q.value.UnmarshalJSON(decimalBytes)
}
