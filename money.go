package cukai

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Currency is the only currency the estimator deals in.
const Currency = "MYR"

// Money
type Money struct {
	Amount   decimal.Decimal
	Currency string
}

func NewMoney(amount decimal.Decimal) Money {
	return Money{
		Amount:   amount,
		Currency: Currency,
	}
}

func NewMoneyZero() Money {
	return Money{
		Amount:   decimal.Zero,
		Currency: Currency,
	}
}

// RM builds a ringgit amount from a float literal. Meant for constants and
// tests; user input goes through ParseMoney.
func RM(amount float64) Money {
	return NewMoney(decimal.NewFromFloat(amount))
}

// ParseMoney parses a plain decimal string such as "9000" or "1234.50".
// Thousands separators and an optional "RM" prefix are accepted.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "RM"), "rm")
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, err
	}
	return NewMoney(d), nil
}

func (m Money) Add(other Money) Money {
	return Money{Amount: m.Amount.Add(other.Amount), Currency: m.Currency}
}

func (m Money) Subtract(other Money) Money {
	return Money{Amount: m.Amount.Sub(other.Amount), Currency: m.Currency}
}

func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

func (m Money) IsNegative() bool {
	return m.Amount.IsNegative()
}

// Min returns the smaller of m and other.
func (m Money) Min(other Money) Money {
	if other.Amount.LessThan(m.Amount) {
		return Money{Amount: other.Amount, Currency: m.Currency}
	}
	return m
}

// Fixed renders the amount with two decimals and no grouping, the form
// stored in records.
func (m Money) Fixed() string {
	return m.Amount.StringFixed(2)
}

// String renders the amount for display, e.g. "RM12,345.60".
func (m Money) String() string {
	s := m.Amount.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if m.Amount.IsNegative() {
		b.WriteByte('-')
	}
	b.WriteString("RM")
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}
