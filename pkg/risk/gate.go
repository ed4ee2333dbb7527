package risk

import "github.com/shopspring/decimal"

// Gate decides whether new orders may be placed given the number of
// currently open positions. A false answer is a normal risk-control outcome,
// not an error.
type Gate interface {
	Allow(openPositions, orders int) bool
}

// HeatGate blocks entries once openPositions * Fraction reaches the heat
// ceiling. With ScaleByOrders the ceiling check also accounts for the
// sub-orders about to be placed.
type HeatGate struct {
	Profile       Profile
	ScaleByOrders bool
}

func (g HeatGate) Allow(openPositions, orders int) bool {
	heat := decimal.NewFromInt(int64(openPositions)).Mul(g.Profile.Fraction)
	ceiling := g.Profile.Heat
	if g.ScaleByOrders && orders > 1 {
		heat = heat.Add(decimal.NewFromInt(int64(orders - 1)).Mul(g.Profile.Fraction))
	}
	return heat.LessThan(ceiling)
}

// OpenGate always allows. It matches the currently disabled heat tracking;
// keep it pluggable rather than baking the stub into the pipeline.
type OpenGate struct{}

func (OpenGate) Allow(int, int) bool { return true }
