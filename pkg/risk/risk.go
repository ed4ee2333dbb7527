// Package risk holds the position sizing, splitting and portfolio-heat logic.
package risk

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// ErrDegenerateInput is returned when sizing would divide by a zero stop
// distance or cross rate. This must never be swallowed into an infinite
// volume.
var ErrDegenerateInput = errors.New("risk: degenerate input")

// Profile is the per-run risk configuration, loaded once at startup.
type Profile struct {
	// Fraction of equity risked per trade, used unless UseFixedAmount.
	Fraction decimal.Decimal
	// FixedAmount is an absolute risk amount in account currency.
	FixedAmount    decimal.Decimal
	UseFixedAmount bool
	// Heat is the maximum aggregate risk allowed across open positions.
	Heat decimal.Decimal
	// TPLevel is the 1-based index of the target profit used as the primary
	// exit for unsplit orders.
	TPLevel int
	// Split divides the position over all target-profit levels.
	Split bool
}

// Amount returns the money at risk for a trade given current equity.
func (p Profile) Amount(equity decimal.Decimal) decimal.Decimal {
	if p.UseFixedAmount {
		return p.FixedAmount
	}
	return equity.Mul(p.Fraction)
}

// Size converts account risk parameters and price distances into a lot
// volume:
//
//	stopDistance   = |entry - stop| rounded to 5 decimals
//	distanceInAcct = stopDistance / crossRate
//	volume         = round(riskAmount / distanceInAcct / lotSize, 2)
func Size(lotSize, equity decimal.Decimal, profile Profile, stop, crossRate, entry decimal.Decimal) (decimal.Decimal, error) {
	distance := entry.Sub(stop).Abs().Round(5)
	if distance.IsZero() {
		return decimal.Decimal{}, fmt.Errorf("%w: zero stop distance", ErrDegenerateInput)
	}
	if crossRate.IsZero() {
		return decimal.Decimal{}, fmt.Errorf("%w: zero cross rate", ErrDegenerateInput)
	}
	distanceAcct := distance.Div(crossRate)
	return profile.Amount(equity).Div(distanceAcct).Div(lotSize).Round(2), nil
}

var cent = decimal.New(1, -2)

// Split divides total into parts values summing exactly to total. The base is
// total/parts rounded to 2 decimals and the rounding remainder is distributed
// one cent at a time: onto the currently largest slot (re-sorted descending
// after each nudge), or onto the last slot when largestAtEnd, in which case
// the result is sorted ascending.
//
// Degenerate case: when total/min/parts < 1 the split returns parts copies of
// min instead. That sequence does not necessarily sum to total; whether to
// under-risk or reject here is an open product call, so the observed behavior
// is kept as is.
func Split(total decimal.Decimal, parts int, min decimal.Decimal, largestAtEnd bool) ([]decimal.Decimal, error) {
	if parts <= 0 {
		return nil, fmt.Errorf("risk: invalid parts count: %d", parts)
	}
	n := decimal.NewFromInt(int64(parts))

	if !min.IsZero() && total.Div(min).Div(n).LessThan(decimal.NewFromInt(1)) {
		out := make([]decimal.Decimal, parts)
		for i := range out {
			out[i] = min
		}
		return out, nil
	}

	base := total.Div(n).Round(2)
	out := make([]decimal.Decimal, parts)
	for i := range out {
		out[i] = base
	}
	remainder := total.Sub(base.Mul(n)).Round(2)

	step := cent
	if remainder.IsNegative() {
		step = cent.Neg()
	}
	for !remainder.IsZero() {
		if largestAtEnd {
			out[parts-1] = out[parts-1].Add(step)
		} else {
			out[0] = out[0].Add(step)
			sort.Slice(out, func(i, j int) bool { return out[i].GreaterThan(out[j]) })
		}
		remainder = remainder.Sub(step)
	}
	if largestAtEnd {
		sort.Slice(out, func(i, j int) bool { return out[i].LessThan(out[j]) })
	}

	sum := decimal.Zero
	for _, v := range out {
		sum = sum.Add(v)
	}
	if !sum.Round(2).Equal(total.Round(2)) {
		return nil, fmt.Errorf("risk: split parts sum %s, expected %s", sum, total)
	}
	return out, nil
}
