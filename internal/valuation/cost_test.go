package valuation

import (
	"testing"
)

func TestUnitCostSimpleMean(t *testing.T) {
	points := []PricePoint{
		{Price: 5, Quantity: 100},
		{Price: 7, Quantity: 50},
	}

	got := UnitCost(MethodSimpleMean, points)
	if got != 6.0 {
		t.Errorf("UnitCost(simple_mean) = %v, want 6.0", got)
	}
}

func TestUnitCostSimpleMeanIgnoresQuantity(t *testing.T) {
	// The simple mean averages prices only; a huge purchase at a low
	// price moves the average no more than a tiny one.
	points := []PricePoint{
		{Price: 10, Quantity: 1},
		{Price: 2, Quantity: 10000},
	}

	got := UnitCost(MethodSimpleMean, points)
	if got != 6.0 {
		t.Errorf("UnitCost(simple_mean) = %v, want 6.0", got)
	}
}

func TestUnitCostWeightedAverage(t *testing.T) {
	points := []PricePoint{
		{Price: 5, Quantity: 100},
		{Price: 7, Quantity: 50},
	}

	// (5*100 + 7*50) / 150 = 850/150
	got := UnitCost(MethodWeightedAverage, points)
	want := 850.0 / 150.0
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("UnitCost(weighted_average) = %v, want %v", got, want)
	}
}

func TestUnitCostNoPurchases(t *testing.T) {
	if got := UnitCost(MethodSimpleMean, nil); got != 0 {
		t.Errorf("UnitCost with no points = %v, want 0", got)
	}
	if got := UnitCost(MethodWeightedAverage, nil); got != 0 {
		t.Errorf("UnitCost with no points = %v, want 0", got)
	}
}

func TestUnitCostWeightedZeroQuantity(t *testing.T) {
	points := []PricePoint{{Price: 5, Quantity: 0}}
	if got := UnitCost(MethodWeightedAverage, points); got != 0 {
		t.Errorf("UnitCost with zero total quantity = %v, want 0", got)
	}
}

func TestTotalCost(t *testing.T) {
	if got := TotalCost(20, 6); got != 120.0 {
		t.Errorf("TotalCost(20, 6) = %v, want 120", got)
	}
	// Decimal math avoids the classic binary float artifact.
	if got := TotalCost(0.1, 0.2); got != 0.02 {
		t.Errorf("TotalCost(0.1, 0.2) = %v, want 0.02", got)
	}
}

func TestMethodIsValid(t *testing.T) {
	if !MethodSimpleMean.IsValid() || !MethodWeightedAverage.IsValid() {
		t.Error("built-in methods should be valid")
	}
	if Method("fifo").IsValid() {
		t.Error("unknown method should be invalid")
	}
}
