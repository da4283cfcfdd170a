// README: Common money value object used across modules (amounts kept in minor units).
package types

import "math"

type Money struct {
	Amount   int64
	Currency string
}

// NewMoney rounds a major-unit amount (e.g. rupees) to minor units.
func NewMoney(major float64, currency string) Money {
	return Money{Amount: int64(math.Round(major * 100)), Currency: currency}
}

func (m Money) Major() float64 {
	return float64(m.Amount) / 100
}

func (m Money) Add(o Money) Money {
	return Money{Amount: m.Amount + o.Amount, Currency: m.Currency}
}
