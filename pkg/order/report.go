package order

import (
	"fmt"
	"strings"

	"github.com/mvberkel/pipster/pkg/signal"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Summary aggregates risk and reward statistics over the filled sub-orders
// of one signal.
type Summary struct {
	Symbol string
	Ref    string
	// AvgPrice is the plain average of the realized fill prices; VWAP
	// weights them by fill volume.
	AvgPrice decimal.Decimal
	VWAP     decimal.Decimal
	// StopDistance is |avg fill - stop| in price units, StopDistanceAcct the
	// same distance converted to account currency.
	StopDistance     decimal.Decimal
	StopDistanceAcct decimal.Decimal
	// RiskPercents holds, per filled sub-order, the position risk as a
	// percentage of equity.
	RiskPercents []decimal.Decimal
	// RiskRewards holds |target - avg fill| / stop distance per target.
	RiskRewards   []decimal.Decimal
	AvgRiskReward decimal.Decimal
	// OptimalSplit is the percentage of the position on the first target
	// that equalizes a 1:1 risk:reward over the first two levels. Only
	// computed for signals with exactly three targets.
	OptimalSplit    decimal.Decimal
	HasOptimalSplit bool
}

// Summarize computes the summary for a set of submissions. It returns nil
// when no submission was filled: nothing was traded, nothing to report.
// crossRate must be the non-zero rate used for sizing.
func Summarize(sig *signal.Signal, subs []*Submission, equity, crossRate, contractSize decimal.Decimal) *Summary {
	var results []*Submission
	for _, sub := range subs {
		if sub.Result != nil {
			results = append(results, sub)
		}
	}
	if len(results) == 0 {
		return nil
	}

	count := decimal.NewFromInt(int64(len(results)))
	priceSum, weighted, volSum := decimal.Zero, decimal.Zero, decimal.Zero
	for _, sub := range results {
		priceSum = priceSum.Add(sub.Result.Price)
		weighted = weighted.Add(sub.Result.Price.Mul(sub.Result.Volume))
		volSum = volSum.Add(sub.Result.Volume)
	}
	avg := priceSum.Div(count)
	vwap := avg
	if !volSum.IsZero() {
		vwap = weighted.Div(volSum)
	}

	s := &Summary{
		Symbol:       sig.Symbol,
		Ref:          sig.Ref,
		AvgPrice:     avg,
		VWAP:         vwap,
		StopDistance: avg.Sub(sig.Stop).Abs(),
	}
	s.StopDistanceAcct = s.StopDistance.Div(crossRate)

	for _, sub := range results {
		amount := s.StopDistanceAcct.Mul(contractSize).Mul(sub.Result.Volume)
		s.RiskPercents = append(s.RiskPercents, amount.Div(equity).Mul(hundred).Round(2))
	}

	if s.StopDistance.IsZero() {
		return s
	}
	rrSum := decimal.Zero
	for _, target := range sig.Targets {
		rr := target.Sub(avg).Abs().Div(s.StopDistance).Round(3)
		s.RiskRewards = append(s.RiskRewards, rr)
		rrSum = rrSum.Add(rr)
	}
	s.AvgRiskReward = rrSum.Div(decimal.NewFromInt(int64(len(sig.Targets)))).Round(3)

	if len(sig.Targets) == 3 {
		rr1, rr2 := s.RiskRewards[0], s.RiskRewards[1]
		if !rr1.Equal(rr2) {
			// p*rr1 + (1-p)*rr2 = 1
			one := decimal.NewFromInt(1)
			p := one.Sub(rr2).Div(rr1.Sub(rr2))
			s.OptimalSplit = p.Mul(hundred).Round(1)
			s.HasOptimalSplit = true
		}
	}
	return s
}

func (s *Summary) String() string {
	sb := &strings.Builder{}
	fmt.Fprintf(sb, "SUMMARY %s (%s)\n", s.Symbol, s.Ref)
	fmt.Fprintf(sb, "avg price: %s, vwap: %s\n", s.AvgPrice, s.VWAP)
	fmt.Fprintf(sb, "stop distance: %s (%s account currency)\n", s.StopDistance, s.StopDistanceAcct.Round(5))
	for i, p := range s.RiskPercents {
		fmt.Fprintf(sb, "order %d risk: %s%% of equity\n", i+1, p)
	}
	for i, rr := range s.RiskRewards {
		fmt.Fprintf(sb, "TP%d risk:reward %s\n", i+1, rr)
	}
	if len(s.RiskRewards) > 0 {
		fmt.Fprintf(sb, "avg risk:reward %s\n", s.AvgRiskReward)
	}
	if s.HasOptimalSplit {
		fmt.Fprintf(sb, "optimal TP1/TP2 split for 1:1 outcome: %s%%/%s%%", s.OptimalSplit, hundred.Sub(s.OptimalSplit))
	}
	return strings.TrimSpace(sb.String())
}
