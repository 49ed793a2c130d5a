package models

// PurchaseRecord represents one acquisition event in the purchase ledger.
// The ledger is append/edit only; records are never physically deleted by
// the normal flow. TotalCost is stored redundantly and holds
// quantity * price at write time.
type PurchaseRecord struct {
	ID           int     `csv:"purchase_id" json:"purchase_id"`
	MaterialID   int     `csv:"material_id" json:"material_id"`
	MaterialName string  `csv:"material_name" json:"material_name"`
	PurchaseDate string  `csv:"purchase_date" json:"purchase_date"`
	Quantity     float64 `csv:"quantity_purchased" json:"quantity_purchased"`
	PricePerUnit float64 `csv:"price_per_unit" json:"price_per_unit"`
	TotalCost    float64 `csv:"total_cost" json:"total_cost"`
	Supplier     string  `csv:"supplier" json:"supplier"`
	Invoice      string  `csv:"invoice_number" json:"invoice_number"`
	Notes        string  `csv:"notes" json:"notes"`
}

// PurchaseUpdate carries the editable fields of a purchase record. Nil
// pointers leave the field unchanged. Editing quantity or price recomputes
// TotalCost and re-averages the owning material's unit cost from the full
// ledger; it does not retroactively adjust the material's stock.
type PurchaseUpdate struct {
	MaterialID   *int     `json:"material_id"`
	PurchaseDate *string  `json:"purchase_date"`
	Quantity     *float64 `json:"quantity_purchased"`
	PricePerUnit *float64 `json:"price_per_unit"`
	Supplier     *string  `json:"supplier"`
	Invoice      *string  `json:"invoice_number"`
	Notes        *string  `json:"notes"`
}
