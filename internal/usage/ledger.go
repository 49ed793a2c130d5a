package usage

import (
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"packtrack/internal/catalog"
	"packtrack/internal/models"
	"packtrack/internal/notify"
	"packtrack/internal/recipelinks"
	"packtrack/internal/store"
	"packtrack/internal/valuation"
)

// Filter narrows a usage listing.
type Filter struct {
	RecipeID   *int
	MaterialID *int
	OrderID    string
}

// Ledger records material consumption per recipe sale and deducts stock.
// It is append-only history; records are never edited or deleted.
type Ledger struct {
	mu      sync.RWMutex
	records []*models.UsageRecord
	nextID  int

	catalog  *catalog.Catalog
	links    *recipelinks.Links
	store    *store.Store
	notifier *notify.Notifier
	log      *logrus.Entry
}

// New loads the usage table.
func New(st *store.Store, cat *catalog.Catalog, links *recipelinks.Links, notifier *notify.Notifier, log *logrus.Logger) (*Ledger, error) {
	rows, err := st.LoadUsage()
	if err != nil {
		return nil, err
	}

	l := &Ledger{
		records:  make([]*models.UsageRecord, 0, len(rows)),
		nextID:   1,
		catalog:  cat,
		links:    links,
		store:    st,
		notifier: notifier,
		log:      log.WithField("component", "usage"),
	}
	for i := range rows {
		r := rows[i]
		l.records = append(l.records, &r)
		if r.ID >= l.nextID {
			l.nextID = r.ID + 1
		}
	}
	return l, nil
}

// RecordSaleUsage consumes packing materials for a recipe sale. Every
// material the recipe is linked to is checked for availability first, and
// only if all pass is any stock deducted: insufficient stock for one
// material fails the whole sale with no partial deduction. On success one
// usage record is appended per material, with the unit cost snapshotted
// from before the deduction. A recipe with no links succeeds trivially.
func (l *Ledger) RecordSaleUsage(recipe models.RecipeRef, quantitySold float64, orderID string) ([]models.UsageRecord, error) {
	if quantitySold <= 0 {
		return nil, &models.ValidationError{Field: "quantity_sold", Reason: "must be greater than zero"}
	}

	linked := l.links.ForRecipe(recipe.ID)
	if len(linked) == 0 {
		return nil, nil
	}

	demands := make([]catalog.StockDemand, 0, len(linked))
	for _, link := range linked {
		demands = append(demands, catalog.StockDemand{
			MaterialID: link.MaterialID,
			Quantity:   link.QuantityNeeded * quantitySold,
		})
	}

	// All-or-nothing: the catalog checks every demand, then commits every
	// deduction, under one lock. The returned copies carry the unit costs
	// as they were before the deduction.
	before, err := l.catalog.DeductAll(demands)
	if err != nil {
		l.log.WithFields(logrus.Fields{
			"recipe_id": recipe.ID,
			"order_id":  orderID,
		}).WithError(err).Warn("sale usage rejected")
		return nil, err
	}

	today := time.Now().Format(models.DateLayout)

	l.mu.Lock()
	out := make([]models.UsageRecord, 0, len(linked))
	for _, link := range linked {
		mat := before[link.MaterialID]
		qty := link.QuantityNeeded * quantitySold
		rec := &models.UsageRecord{
			ID:           l.nextID,
			UsageDate:    today,
			RecipeID:     recipe.ID,
			RecipeName:   recipe.Name,
			MaterialID:   mat.ID,
			MaterialName: mat.Name,
			QuantityUsed: qty,
			UnitCost:     mat.CostPerUnit,
			TotalCost:    valuation.TotalCost(qty, mat.CostPerUnit),
			OrderID:      orderID,
			SaleID:       orderID,
		}
		l.nextID++
		l.records = append(l.records, rec)
		out = append(out, *rec)
	}
	saveErr := l.saveLocked()
	l.mu.Unlock()

	l.log.WithFields(logrus.Fields{
		"recipe_id":     recipe.ID,
		"quantity_sold": quantitySold,
		"order_id":      orderID,
		"materials":     len(out),
	}).Info("sale usage recorded")
	if l.notifier != nil {
		l.notifier.Publish(notify.EventUsageRecorded, "Usage recorded: "+recipe.Name,
			map[string]interface{}{"recipe_id": recipe.ID, "order_id": orderID, "records": len(out)})
	}
	return out, saveErr
}

// List returns usage records matching the filter, newest first.
func (l *Ledger) List(f Filter) []models.UsageRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []models.UsageRecord
	for _, rec := range l.records {
		if f.RecipeID != nil && rec.RecipeID != *f.RecipeID {
			continue
		}
		if f.MaterialID != nil && rec.MaterialID != *f.MaterialID {
			continue
		}
		if f.OrderID != "" && rec.OrderID != f.OrderID {
			continue
		}
		out = append(out, *rec)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].UsageDate != out[j].UsageDate {
			return out[i].UsageDate > out[j].UsageDate
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// TotalConsumedCost sums the total cost of all usage for one recipe.
func (l *Ledger) TotalConsumedCost(recipeID int) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := 0.0
	for _, rec := range l.records {
		if rec.RecipeID == recipeID {
			total += rec.TotalCost
		}
	}
	return total
}

func (l *Ledger) saveLocked() error {
	rows := make([]models.UsageRecord, 0, len(l.records))
	for _, rec := range l.records {
		rows = append(rows, *rec)
	}

	if err := l.store.SaveUsage(rows); err != nil {
		l.log.WithError(err).Error("usage table save failed")
		return err
	}
	return nil
}
