package models

// RecipeMaterialLink states that one batch of a recipe consumes
// QuantityNeeded units of a material. CostPerRecipe is a snapshot taken when
// the link was last written or recalculated, not a live join against the
// material's current cost; CostSnapshotAt records when the snapshot was
// taken so callers can judge staleness.
type RecipeMaterialLink struct {
	RecipeID       int     `csv:"recipe_id" json:"recipe_id"`
	RecipeName     string  `csv:"recipe_name" json:"recipe_name"`
	MaterialID     int     `csv:"material_id" json:"material_id"`
	MaterialName   string  `csv:"material_name" json:"material_name"`
	QuantityNeeded float64 `csv:"quantity_needed" json:"quantity_needed"`
	CostPerRecipe  float64 `csv:"cost_per_recipe" json:"cost_per_recipe"`
	Notes          string  `csv:"notes" json:"notes"`
	CostSnapshotAt string  `csv:"cost_snapshot_at" json:"cost_snapshot_at"`
}

// SnapshotCost returns the packaging cost captured at the last link write or
// recalculation. Use Links.LiveCost for the cost at current material prices.
func (l *RecipeMaterialLink) SnapshotCost() float64 {
	return l.CostPerRecipe
}

// BulkAssignResult reports the outcome of a Cartesian-product assignment.
type BulkAssignResult struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// CopyResult reports the outcome of cloning links between recipes.
type CopyResult struct {
	Copied  int `json:"copied"`
	Skipped int `json:"skipped"`
}
