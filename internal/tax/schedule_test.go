package tax

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCompute(t *testing.T) {
	tests := []struct {
		name   string
		income string
		relief string
		want   string
	}{
		{"low income", "30000", "9000", "180"},
		{"medium income", "50000", "12000", "780"},
		{"high income", "100000", "20000", "5600"},
		{"relief exceeds income", "10000", "15000", "0"},
		{"every bracket to 28%", "2000000", "0", "528400"},
		{"top bracket", "2100000", "0", "558400"},
		{"inside zero-rate bracket", "5000", "0", "0"},
		{"chargeable exactly zero", "9000", "9000", "0"},
		{"one sen above first limit", "5000.01", "0", "0"},
		{"rounds half up to sen", "5000.5", "0", "0.01"},
		{"fractional slice", "20000.37", "0", "150.01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(d(tt.income), d(tt.relief))
			assert.True(t, got.Equal(d(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestComputeReliefNotBelowIncome(t *testing.T) {
	for _, income := range []string{"0", "1", "5000", "99999.99", "2000000"} {
		for _, extra := range []string{"0", "0.01", "1000"} {
			relief := d(income).Add(d(extra))
			assert.True(t, Compute(d(income), relief).IsZero(), "income %s relief %s", income, relief)
		}
	}
}

func TestComputeMonotonic(t *testing.T) {
	relief := d("9000")
	prev := decimal.Zero
	for income := int64(0); income <= 2_500_000; income += 1_250 {
		got := Compute(decimal.NewFromInt(income), relief)
		require.False(t, got.LessThan(prev), "tax fell at income %d: %s < %s", income, got, prev)
		prev = got
	}
}

func TestComputeContinuousAtBoundaries(t *testing.T) {
	eps := d("0.01")
	for _, b := range Default.Brackets() {
		if b.Unbounded {
			continue
		}
		below := Compute(b.Limit.Sub(eps), decimal.Zero)
		at := Compute(b.Limit, decimal.Zero)
		above := Compute(b.Limit.Add(eps), decimal.Zero)

		// a single sen moves tax by at most one sen at these rates
		assert.True(t, at.Sub(below).LessThanOrEqual(eps), "jump below %s", b.Limit)
		assert.True(t, above.Sub(at).LessThanOrEqual(eps), "jump above %s", b.Limit)
	}
}

func TestComputeSlopeMatchesRate(t *testing.T) {
	step := decimal.NewFromInt(1000)
	prev := decimal.Zero
	for _, b := range Default.Brackets() {
		mid := prev.Add(step)
		if !b.Unbounded && mid.GreaterThanOrEqual(b.Limit) {
			t.Fatalf("bracket ending %s too narrow for step", b.Limit)
		}
		slope := Compute(mid.Add(step), decimal.Zero).Sub(Compute(mid, decimal.Zero)).Div(step)
		assert.True(t, slope.Equal(b.Rate), "slope %s want %s past %s", slope, b.Rate, prev)
		prev = b.Limit
	}
}

func TestComputeIdempotent(t *testing.T) {
	a := Compute(d("123456.78"), d("23456.78"))
	b := Compute(d("123456.78"), d("23456.78"))
	assert.True(t, a.Equal(b))
	assert.Equal(t, "9400.00", a.StringFixed(2))
}

func TestBreakdown(t *testing.T) {
	slices := Default.Breakdown(d("38000"))
	require.Len(t, slices, 4)

	wantTaxable := []string{"5000", "15000", "15000", "3000"}
	wantTax := []string{"0", "150", "450", "180"}
	for i, sl := range slices {
		assert.True(t, sl.Taxable.Equal(d(wantTaxable[i])), "slice %d taxable %s", i, sl.Taxable)
		assert.True(t, sl.Tax.Equal(d(wantTax[i])), "slice %d tax %s", i, sl.Tax)
	}
	assert.True(t, slices[3].Lower.Equal(d("35000")))
	assert.True(t, slices[3].Upper.Equal(d("50000")))

	assert.Empty(t, Default.Breakdown(decimal.Zero))
	assert.Empty(t, Default.Breakdown(d("-5000")))

	top := Default.Breakdown(d("3000000"))
	require.Len(t, top, 10)
	assert.True(t, top[9].Unbounded)
	assert.True(t, top[9].Taxable.Equal(d("1000000")))
}

func TestMarginalRate(t *testing.T) {
	assert.True(t, Default.MarginalRate(d("21000")).Equal(d("0.03")))
	assert.True(t, Default.MarginalRate(d("80000")).Equal(d("0.19")))
	assert.True(t, Default.MarginalRate(d("5000000")).Equal(d("0.30")))
	assert.True(t, Default.MarginalRate(d("-1")).IsZero())
}

func TestNewSchedule(t *testing.T) {
	rate := func(s string) decimal.Decimal { return d(s) }
	unbounded := Bracket{Unbounded: true, Rate: rate("0.3")}

	tests := []struct {
		name     string
		brackets []Bracket
		ok       bool
	}{
		{"empty", nil, false},
		{"single unbounded", []Bracket{unbounded}, true},
		{"missing unbounded tail", []Bracket{{Limit: d("100"), Rate: rate("0.1")}}, false},
		{"unbounded in middle", []Bracket{unbounded, {Limit: d("100"), Rate: rate("0.3")}}, false},
		{"limits not increasing", []Bracket{{Limit: d("100"), Rate: rate("0.1")}, {Limit: d("100"), Rate: rate("0.2")}, unbounded}, false},
		{"rate decreases", []Bracket{{Limit: d("100"), Rate: rate("0.5")}, unbounded}, false},
		{"rate above one", []Bracket{{Limit: d("100"), Rate: rate("0.1")}, {Unbounded: true, Rate: rate("1.5")}}, false},
		{"negative rate", []Bracket{{Limit: d("100"), Rate: rate("-0.1")}, unbounded}, false},
		{"progressive", []Bracket{{Limit: d("100"), Rate: rate("0")}, {Limit: d("200"), Rate: rate("0.1")}, unbounded}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSchedule(tt.brackets...)
			if tt.ok {
				require.NoError(t, err)
				assert.Len(t, s.Brackets(), len(tt.brackets))
				return
			}
			assert.ErrorIs(t, err, ErrInvalidSchedule)
		})
	}
}

func TestDefaultScheduleShape(t *testing.T) {
	b := Default.Brackets()
	require.Len(t, b, 10)
	assert.True(t, b[9].Unbounded)

	// mutating the copy leaves the schedule alone
	b[0].Rate = d("0.99")
	assert.True(t, Default.Brackets()[0].Rate.IsZero())
}

func TestComputeFloat(t *testing.T) {
	assert.Equal(t, 180.0, ComputeFloat(30000, 9000))
	assert.Equal(t, 780.0, ComputeFloat(50000, 12000))
	assert.Equal(t, 5600.0, ComputeFloat(100000, 20000))
	assert.Equal(t, 0.0, ComputeFloat(10000, 15000))
	assert.Equal(t, 528400.0, ComputeFloat(2000000, 0))
	assert.Equal(t, 0.0, ComputeFloat(math.NaN(), 0))
	assert.Equal(t, 0.0, ComputeFloat(math.Inf(1), 0))
	assert.Equal(t, 0.0, ComputeFloat(50000, math.Inf(-1)))
}
