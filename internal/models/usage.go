package models

// UsageRecord represents one material consumption entry produced when a
// recipe sale or preparation is recorded. The usage ledger is append-only
// history; UnitCost is the material's unit cost snapshotted before the
// stock deduction was applied.
type UsageRecord struct {
	ID           int     `csv:"usage_id" json:"usage_id"`
	UsageDate    string  `csv:"usage_date" json:"usage_date"`
	RecipeID     int     `csv:"recipe_id" json:"recipe_id"`
	RecipeName   string  `csv:"recipe_name" json:"recipe_name"`
	MaterialID   int     `csv:"material_id" json:"material_id"`
	MaterialName string  `csv:"material_name" json:"material_name"`
	QuantityUsed float64 `csv:"quantity_used" json:"quantity_used"`
	UnitCost     float64 `csv:"unit_cost" json:"unit_cost"`
	TotalCost    float64 `csv:"total_cost" json:"total_cost"`
	OrderID      string  `csv:"order_id" json:"order_id"`
	SaleID       string  `csv:"sale_id" json:"sale_id"`
	Notes        string  `csv:"notes" json:"notes"`
}
