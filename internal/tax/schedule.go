// Package tax computes Malaysian personal income tax over a progressive
// schedule of marginal brackets.
package tax

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// ErrInvalidSchedule is returned by NewSchedule when the brackets do not form
// a progressive schedule.
var ErrInvalidSchedule = errors.New("invalid tax schedule")

// Bracket is one tier of the schedule. Limit is the cumulative upper bound of
// the tier; an unbounded tier has Unbounded set and Limit ignored.
type Bracket struct {
	Limit     decimal.Decimal
	Unbounded bool
	Rate      decimal.Decimal
}

// Slice is the part of chargeable income that fell into one bracket.
type Slice struct {
	Lower     decimal.Decimal
	Upper     decimal.Decimal
	Unbounded bool
	Rate      decimal.Decimal
	Taxable   decimal.Decimal
	Tax       decimal.Decimal
}

// Schedule is an immutable ordered bracket table.
type Schedule struct {
	brackets []Bracket
}

func bracket(limit int64, ratePct int64) Bracket {
	return Bracket{Limit: decimal.NewFromInt(limit), Rate: decimal.New(ratePct, -2)}
}

// Default is the resident individual schedule for year of assessment 2024.
var Default = MustSchedule(
	bracket(5_000, 0),
	bracket(20_000, 1),
	bracket(35_000, 3),
	bracket(50_000, 6),
	bracket(70_000, 11),
	bracket(100_000, 19),
	bracket(400_000, 25),
	bracket(600_000, 26),
	bracket(2_000_000, 28),
	Bracket{Unbounded: true, Rate: decimal.New(30, -2)},
)

// NewSchedule validates and copies the brackets. Limits must strictly
// increase, only the last bracket may be (and must be) unbounded, and rates
// must lie in [0,1] without decreasing.
func NewSchedule(brackets ...Bracket) (*Schedule, error) {
	if len(brackets) == 0 {
		return nil, fmt.Errorf("%w: no brackets", ErrInvalidSchedule)
	}
	one := decimal.NewFromInt(1)
	prevLimit := decimal.Zero
	prevRate := decimal.Zero
	for i, b := range brackets {
		last := i == len(brackets)-1
		if b.Unbounded != last {
			return nil, fmt.Errorf("%w: only the final bracket is unbounded (bracket %d)", ErrInvalidSchedule, i)
		}
		if !b.Unbounded && !b.Limit.GreaterThan(prevLimit) {
			return nil, fmt.Errorf("%w: limit %s does not exceed %s", ErrInvalidSchedule, b.Limit, prevLimit)
		}
		if b.Rate.IsNegative() || b.Rate.GreaterThan(one) {
			return nil, fmt.Errorf("%w: rate %s outside [0,1]", ErrInvalidSchedule, b.Rate)
		}
		if b.Rate.LessThan(prevRate) {
			return nil, fmt.Errorf("%w: rate %s lower than preceding %s", ErrInvalidSchedule, b.Rate, prevRate)
		}
		prevLimit, prevRate = b.Limit, b.Rate
	}
	return &Schedule{brackets: append([]Bracket(nil), brackets...)}, nil
}

// MustSchedule is NewSchedule that panics on error, for package-level tables.
func MustSchedule(brackets ...Bracket) *Schedule {
	s, err := NewSchedule(brackets...)
	if err != nil {
		panic(err)
	}
	return s
}

// Brackets returns a copy of the table.
func (s *Schedule) Brackets() []Bracket {
	return append([]Bracket(nil), s.brackets...)
}

// Compute returns the tax payable on income after relief, rounded half-up to
// sen. Non-positive chargeable income is taxed at exactly zero.
func (s *Schedule) Compute(income, relief decimal.Decimal) decimal.Decimal {
	chargeable := income.Sub(relief)
	if !chargeable.IsPositive() {
		return decimal.Zero
	}
	total := decimal.Zero
	for _, sl := range s.Breakdown(chargeable) {
		total = total.Add(sl.Tax)
	}
	return total.Round(2)
}

// Breakdown walks the brackets from the bottom and returns one Slice per
// bracket reached by chargeable. The slice taxes are unrounded.
func (s *Schedule) Breakdown(chargeable decimal.Decimal) []Slice {
	var out []Slice
	prev := decimal.Zero
	for _, b := range s.brackets {
		if chargeable.LessThanOrEqual(prev) {
			break
		}
		upper := chargeable
		if !b.Unbounded {
			upper = decimal.Min(chargeable, b.Limit)
		}
		taxable := upper.Sub(prev)
		out = append(out, Slice{
			Lower:     prev,
			Upper:     b.Limit,
			Unbounded: b.Unbounded,
			Rate:      b.Rate,
			Taxable:   taxable,
			Tax:       taxable.Mul(b.Rate),
		})
		if b.Unbounded {
			break
		}
		prev = b.Limit
	}
	return out
}

// MarginalRate is the rate applied to the last ringgit of chargeable income.
// Zero for non-positive income.
func (s *Schedule) MarginalRate(chargeable decimal.Decimal) decimal.Decimal {
	slices := s.Breakdown(chargeable)
	if len(slices) == 0 {
		return decimal.Zero
	}
	return slices[len(slices)-1].Rate
}

// Compute applies the Default schedule.
func Compute(income, relief decimal.Decimal) decimal.Decimal {
	return Default.Compute(income, relief)
}

// ComputeFloat is Compute for callers holding float64 amounts. NaN and
// infinite inputs cannot be represented and yield zero.
func ComputeFloat(income, relief float64) float64 {
	in, ok := fromFloat(income)
	if !ok {
		return 0
	}
	rel, ok := fromFloat(relief)
	if !ok {
		return 0
	}
	return Compute(in, rel).InexactFloat64()
}

func fromFloat(f float64) (decimal.Decimal, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(f), true
}
