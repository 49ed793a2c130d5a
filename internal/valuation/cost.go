package valuation

import "github.com/shopspring/decimal"

// Method selects how a material's unit cost is derived from its purchase
// history.
type Method string

const (
	// MethodSimpleMean averages price_per_unit across all purchases without
	// weighting by quantity. This is the rule the dashboard has always used
	// and is the default.
	MethodSimpleMean Method = "simple_mean"

	// MethodWeightedAverage weights each purchase price by its quantity,
	// the standard inventory-accounting moving average. Opt-in via config.
	MethodWeightedAverage Method = "weighted_average"
)

// IsValid checks whether the method is one of the supported costing rules.
func (m Method) IsValid() bool {
	switch m {
	case MethodSimpleMean, MethodWeightedAverage:
		return true
	default:
		return false
	}
}

// PricePoint is one purchase observation used for cost averaging.
type PricePoint struct {
	Price    float64
	Quantity float64
}

// UnitCost derives a unit cost from purchase observations using the given
// method. With no observations it returns 0, matching a material that has
// never been purchased. Intermediate math runs on decimals so long purchase
// histories don't accumulate float drift.
func UnitCost(method Method, points []PricePoint) float64 {
	if len(points) == 0 {
		return 0
	}

	switch method {
	case MethodWeightedAverage:
		totalQty := decimal.Zero
		totalCost := decimal.Zero
		for _, p := range points {
			qty := decimal.NewFromFloat(p.Quantity)
			totalQty = totalQty.Add(qty)
			totalCost = totalCost.Add(decimal.NewFromFloat(p.Price).Mul(qty))
		}
		if totalQty.IsZero() {
			return 0
		}
		f, _ := totalCost.Div(totalQty).Float64()
		return f
	default:
		sum := decimal.Zero
		for _, p := range points {
			sum = sum.Add(decimal.NewFromFloat(p.Price))
		}
		f, _ := sum.Div(decimal.NewFromInt(int64(len(points)))).Float64()
		return f
	}
}

// TotalCost returns quantity * price as stored redundantly on purchase and
// usage records.
func TotalCost(quantity, price float64) float64 {
	f, _ := decimal.NewFromFloat(quantity).Mul(decimal.NewFromFloat(price)).Float64()
	return f
}
