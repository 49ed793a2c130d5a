package models

// DateLayout is the date format used across all persisted tables. It matches
// the format the dashboard's data files have always used.
const DateLayout = "2006-01-02"

// Material represents a packing material tracked for stock and cost.
// CostPerUnit is derived from the purchase ledger; nothing outside the
// catalog writes it (MaterialUpdate deliberately has no cost field).
type Material struct {
	ID           int     `csv:"material_id" json:"material_id"`
	Name         string  `csv:"material_name" json:"material_name"`
	Category     string  `csv:"category" json:"category"`
	Size         string  `csv:"size" json:"size"`
	Unit         string  `csv:"unit" json:"unit"`
	CostPerUnit  float64 `csv:"cost_per_unit" json:"cost_per_unit"`
	CurrentStock float64 `csv:"current_stock" json:"current_stock"`
	MinimumStock float64 `csv:"minimum_stock" json:"minimum_stock"`
	Supplier     string  `csv:"supplier" json:"supplier"`
	Notes        string  `csv:"notes" json:"notes"`
	DateAdded    string  `csv:"date_added" json:"date_added"`
}

// BelowMinimum reports whether the material's stock has fallen to or below
// its alert threshold. Advisory only; never blocks an operation.
func (m *Material) BelowMinimum() bool {
	return m.CurrentStock <= m.MinimumStock
}

// StockValue returns the value of the on-hand stock at the current unit cost.
func (m *Material) StockValue() float64 {
	return m.CurrentStock * m.CostPerUnit
}

// MaterialUpdate carries the externally settable fields of a material.
// Nil pointers leave the field unchanged. There is intentionally no
// CostPerUnit here: the unit cost is derived from the purchase ledger and
// attempts to set it through the API are dropped without error.
type MaterialUpdate struct {
	Name         *string  `json:"material_name"`
	Category     *string  `json:"category"`
	Size         *string  `json:"size"`
	Unit         *string  `json:"unit"`
	CurrentStock *float64 `json:"current_stock"`
	MinimumStock *float64 `json:"minimum_stock"`
	Supplier     *string  `json:"supplier"`
	Notes        *string  `json:"notes"`
}

// MaterialCategory represents the category of a packing material
type MaterialCategory string

const (
	// Material categories
	CategoryBox       MaterialCategory = "box"
	CategoryContainer MaterialCategory = "container"
	CategoryWrap      MaterialCategory = "wrap"
	CategoryBag       MaterialCategory = "bag"
	CategoryTape      MaterialCategory = "tape"
	CategoryLabel     MaterialCategory = "label"
	CategoryCutlery   MaterialCategory = "cutlery"
	CategoryOther     MaterialCategory = "other"
)

// MaterialUnit represents the unit of measurement for a packing material
type MaterialUnit string

const (
	// Count units
	UnitPiece  MaterialUnit = "pc"
	UnitPacket MaterialUnit = "packet"
	UnitBox    MaterialUnit = "box"
	UnitRoll   MaterialUnit = "roll"
	UnitSheet  MaterialUnit = "sheet"

	// Weight units
	UnitGram     MaterialUnit = "g"
	UnitKilogram MaterialUnit = "kg"

	// Length units
	UnitMeter MaterialUnit = "m"
)

// RecipeRef identifies a recipe in the external recipe catalog. This module
// only reads recipe identities, it never mutates the recipe catalog.
type RecipeRef struct {
	ID   int    `json:"recipe_id"`
	Name string `json:"recipe_name"`
}
