package tax

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned for negative relief claims and malformed
// relief catalogs.
var ErrInvalidAmount = errors.New("invalid amount")

// Relief is a named deduction category.
type Relief struct {
	Key   string
	Label string
	// Amount is granted automatically for mandatory reliefs.
	Amount decimal.Decimal
	// Cap is the statutory ceiling; zero means no ceiling.
	Cap decimal.Decimal
	// PerUnit marks reliefs granted per dependant (Cap is per unit).
	PerUnit   bool
	Mandatory bool
}

// DefaultReliefs lists the individual relief and the optional categories
// offered by the shell.
func DefaultReliefs() []Relief {
	return []Relief{
		{Key: "individual", Label: "Individual Relief", Amount: decimal.NewFromInt(9000), Mandatory: true},
		{Key: "spouse", Label: "Spouse Relief", Cap: decimal.NewFromInt(4000)},
		{Key: "child", Label: "Child Relief", Cap: decimal.NewFromInt(8000), PerUnit: true},
		{Key: "medical", Label: "Medical Expenses Relief", Cap: decimal.NewFromInt(8000)},
		{Key: "lifestyle", Label: "Lifestyle Relief", Cap: decimal.NewFromInt(2500)},
		{Key: "education", Label: "Education Fees Relief", Cap: decimal.NewFromInt(7000)},
		{Key: "parental", Label: "Parental Care Relief", Cap: decimal.NewFromInt(5000)},
	}
}

// ValidateReliefs checks keys are unique and amounts are non-negative.
func ValidateReliefs(reliefs []Relief) error {
	seen := make(map[string]bool, len(reliefs))
	for _, r := range reliefs {
		if r.Key == "" {
			return fmt.Errorf("%w: relief without key", ErrInvalidAmount)
		}
		if seen[r.Key] {
			return fmt.Errorf("%w: duplicate relief %q", ErrInvalidAmount, r.Key)
		}
		seen[r.Key] = true
		if r.Amount.IsNegative() || r.Cap.IsNegative() {
			return fmt.Errorf("%w: relief %q has a negative amount", ErrInvalidAmount, r.Key)
		}
	}
	return nil
}

// Claims accumulates relief amounts by category.
type Claims struct {
	catalog     []Relief
	enforceCaps bool
	amounts     map[string]decimal.Decimal
}

// NewClaims starts a claim set with every mandatory relief already granted.
func NewClaims(catalog []Relief, enforceCaps bool) *Claims {
	c := &Claims{catalog: catalog, enforceCaps: enforceCaps, amounts: make(map[string]decimal.Decimal)}
	for _, r := range catalog {
		if r.Mandatory {
			c.amounts[r.Key] = r.Amount
		}
	}
	return c
}

// Claim records amount against the relief key and returns the amount
// accepted. With cap enforcement on, amounts above the cap are clamped and
// clamped is true. Per-unit reliefs are not clamped since the unit count is
// not known.
func (c *Claims) Claim(key string, amount decimal.Decimal) (accepted decimal.Decimal, clamped bool, err error) {
	if amount.IsNegative() {
		return decimal.Zero, false, fmt.Errorf("%w: %s is negative", ErrInvalidAmount, amount)
	}
	r, ok := c.lookup(key)
	if !ok {
		return decimal.Zero, false, fmt.Errorf("unknown relief %q", key)
	}
	accepted = amount
	if c.enforceCaps && !r.PerUnit && r.Cap.IsPositive() && amount.GreaterThan(r.Cap) {
		accepted, clamped = r.Cap, true
	}
	c.amounts[key] = accepted
	return accepted, clamped, nil
}

// Amount returns what has been claimed for key.
func (c *Claims) Amount(key string) decimal.Decimal {
	return c.amounts[key]
}

// Total is the sum of all claims.
func (c *Claims) Total() decimal.Decimal {
	total := decimal.Zero
	for _, r := range c.catalog {
		if a, ok := c.amounts[r.Key]; ok {
			total = total.Add(a)
		}
	}
	return total
}

func (c *Claims) lookup(key string) (Relief, bool) {
	for _, r := range c.catalog {
		if r.Key == key {
			return r, true
		}
	}
	return Relief{}, false
}
