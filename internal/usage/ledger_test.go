package usage

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"packtrack/internal/catalog"
	"packtrack/internal/models"
	"packtrack/internal/purchases"
	"packtrack/internal/recipelinks"
	"packtrack/internal/store"
	"packtrack/internal/valuation"
)

type env struct {
	cat   *catalog.Catalog
	led   *purchases.Ledger
	links *recipelinks.Links
	usage *Ledger
}

func newTestEnv(t *testing.T) *env {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	st, err := store.New(t.TempDir(), log)
	require.NoError(t, err)
	cat, err := catalog.New(st, valuation.MethodSimpleMean, nil, log)
	require.NoError(t, err)
	led, err := purchases.New(st, cat, nil, log)
	require.NoError(t, err)
	links, err := recipelinks.New(st, cat, nil, log)
	require.NoError(t, err)
	ul, err := New(st, cat, links, nil, log)
	require.NoError(t, err)
	return &env{cat: cat, led: led, links: links, usage: ul}
}

var cake = models.RecipeRef{ID: 1, Name: "Cake"}

func TestRecordSaleUsageEndToEnd(t *testing.T) {
	e := newTestEnv(t)

	box, err := e.cat.AddMaterial(catalog.AddMaterialRequest{Name: "Box-S", Unit: string(models.UnitPiece)})
	require.NoError(t, err)

	// Two purchases: 100 @ 5.00 then 50 @ 7.00. Stock 150, unit cost the
	// unweighted mean 6.00.
	_, err = e.led.RecordPurchase(purchases.RecordPurchaseRequest{
		MaterialID: box.ID, PurchaseDate: "2025-01-10", Quantity: 100, PricePerUnit: 5,
	})
	require.NoError(t, err)
	_, err = e.led.RecordPurchase(purchases.RecordPurchaseRequest{
		MaterialID: box.ID, PurchaseDate: "2025-01-15", Quantity: 50, PricePerUnit: 7,
	})
	require.NoError(t, err)

	got, _ := e.cat.Get(box.ID)
	require.Equal(t, 150.0, got.CurrentStock)
	require.Equal(t, 6.0, got.CostPerUnit)

	link, err := e.links.AssignMaterial(cake, box.ID, 2, "", false)
	require.NoError(t, err)
	require.Equal(t, 12.0, link.CostPerRecipe)

	recs, err := e.usage.RecordSaleUsage(cake, 10, "ORD-77")
	require.NoError(t, err)
	require.Len(t, recs, 1)

	assert.Equal(t, 20.0, recs[0].QuantityUsed)
	assert.Equal(t, 6.0, recs[0].UnitCost)
	assert.Equal(t, 120.0, recs[0].TotalCost)
	assert.Equal(t, "ORD-77", recs[0].OrderID)
	assert.Equal(t, "ORD-77", recs[0].SaleID)
	assert.Equal(t, "Box-S", recs[0].MaterialName)
	assert.Equal(t, "Cake", recs[0].RecipeName)

	got, _ = e.cat.Get(box.ID)
	assert.Equal(t, 130.0, got.CurrentStock)

	assert.Equal(t, 120.0, e.usage.TotalConsumedCost(cake.ID))
}

func TestRecordSaleUsageAtomic(t *testing.T) {
	e := newTestEnv(t)

	a, err := e.cat.AddMaterial(catalog.AddMaterialRequest{Name: "A", InitialStock: 5})
	require.NoError(t, err)
	b, err := e.cat.AddMaterial(catalog.AddMaterialRequest{Name: "B", InitialStock: 1})
	require.NoError(t, err)

	_, err = e.links.AssignMaterial(cake, a.ID, 3, "", false)
	require.NoError(t, err)
	_, err = e.links.AssignMaterial(cake, b.ID, 3, "", false)
	require.NoError(t, err)

	recs, err := e.usage.RecordSaleUsage(cake, 1, "ORD-1")
	var isErr *models.InsufficientStockError
	require.ErrorAs(t, err, &isErr)
	assert.Nil(t, recs)
	require.Len(t, isErr.Shortages, 1)
	assert.Equal(t, "B", isErr.Shortages[0].MaterialName)
	assert.Equal(t, 1.0, isErr.Shortages[0].Available)
	assert.Equal(t, 3.0, isErr.Shortages[0].Required)

	gotA, _ := e.cat.Get(a.ID)
	gotB, _ := e.cat.Get(b.ID)
	assert.Equal(t, 5.0, gotA.CurrentStock, "failed sale must not deduct anything")
	assert.Equal(t, 1.0, gotB.CurrentStock)
	assert.Empty(t, e.usage.List(Filter{}), "failed sale leaves no usage rows")
}

func TestRecordSaleUsageNoLinks(t *testing.T) {
	e := newTestEnv(t)

	recs, err := e.usage.RecordSaleUsage(models.RecipeRef{ID: 9, Name: "Plain"}, 5, "")
	require.NoError(t, err)
	assert.Empty(t, recs, "recipe without packaging succeeds with nothing to do")
}

func TestRecordSaleUsageValidation(t *testing.T) {
	e := newTestEnv(t)

	_, err := e.usage.RecordSaleUsage(cake, 0, "")
	var vErr *models.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "quantity_sold", vErr.Field)
}

func TestRecordSaleUsageSnapshotsPreDeductionCost(t *testing.T) {
	e := newTestEnv(t)

	box, err := e.cat.AddMaterial(catalog.AddMaterialRequest{Name: "Box"})
	require.NoError(t, err)
	_, err = e.led.RecordPurchase(purchases.RecordPurchaseRequest{MaterialID: box.ID, Quantity: 10, PricePerUnit: 4})
	require.NoError(t, err)

	_, err = e.links.AssignMaterial(cake, box.ID, 1, "", false)
	require.NoError(t, err)

	recs, err := e.usage.RecordSaleUsage(cake, 2, "")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 4.0, recs[0].UnitCost, "unit cost comes from the material at sale time")

	// A later purchase changes the material cost; the written record does not move.
	_, err = e.led.RecordPurchase(purchases.RecordPurchaseRequest{MaterialID: box.ID, Quantity: 10, PricePerUnit: 8})
	require.NoError(t, err)

	all := e.usage.List(Filter{})
	require.Len(t, all, 1)
	assert.Equal(t, 4.0, all[0].UnitCost)
}

func TestListUsageFilters(t *testing.T) {
	e := newTestEnv(t)

	box, err := e.cat.AddMaterial(catalog.AddMaterialRequest{Name: "Box", InitialStock: 100})
	require.NoError(t, err)
	wrap, err := e.cat.AddMaterial(catalog.AddMaterialRequest{Name: "Wrap", InitialStock: 100})
	require.NoError(t, err)

	pie := models.RecipeRef{ID: 2, Name: "Pie"}
	_, err = e.links.AssignMaterial(cake, box.ID, 1, "", false)
	require.NoError(t, err)
	_, err = e.links.AssignMaterial(pie, wrap.ID, 1, "", false)
	require.NoError(t, err)

	_, err = e.usage.RecordSaleUsage(cake, 1, "ORD-1")
	require.NoError(t, err)
	_, err = e.usage.RecordSaleUsage(pie, 1, "ORD-2")
	require.NoError(t, err)

	assert.Len(t, e.usage.List(Filter{}), 2)
	assert.Len(t, e.usage.List(Filter{RecipeID: &cake.ID}), 1)
	assert.Len(t, e.usage.List(Filter{MaterialID: &wrap.ID}), 1)

	byOrder := e.usage.List(Filter{OrderID: "ORD-2"})
	require.Len(t, byOrder, 1)
	assert.Equal(t, "Pie", byOrder[0].RecipeName)
}

func TestUsageReload(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	dir := t.TempDir()
	st, err := store.New(dir, log)
	require.NoError(t, err)
	cat, err := catalog.New(st, valuation.MethodSimpleMean, nil, log)
	require.NoError(t, err)
	links, err := recipelinks.New(st, cat, nil, log)
	require.NoError(t, err)
	ul, err := New(st, cat, links, nil, log)
	require.NoError(t, err)

	box, err := cat.AddMaterial(catalog.AddMaterialRequest{Name: "Box", InitialStock: 10})
	require.NoError(t, err)
	_, err = links.AssignMaterial(cake, box.ID, 1, "", false)
	require.NoError(t, err)
	recs, err := ul.RecordSaleUsage(cake, 2, "ORD-1")
	require.NoError(t, err)
	require.Len(t, recs, 1)

	st2, err := store.New(dir, log)
	require.NoError(t, err)
	cat2, err := catalog.New(st2, valuation.MethodSimpleMean, nil, log)
	require.NoError(t, err)
	links2, err := recipelinks.New(st2, cat2, nil, log)
	require.NoError(t, err)
	ul2, err := New(st2, cat2, links2, nil, log)
	require.NoError(t, err)

	all := ul2.List(Filter{})
	require.Len(t, all, 1)
	assert.Equal(t, recs[0].ID, all[0].ID)
	assert.Equal(t, 2.0, all[0].QuantityUsed)

	next, err := ul2.RecordSaleUsage(cake, 1, "ORD-2")
	require.NoError(t, err)
	require.Len(t, next, 1)
	assert.Equal(t, recs[0].ID+1, next[0].ID, "ids continue past persisted ones")
}
