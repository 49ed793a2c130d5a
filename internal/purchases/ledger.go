package purchases

import (
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"packtrack/internal/catalog"
	"packtrack/internal/models"
	"packtrack/internal/notify"
	"packtrack/internal/store"
	"packtrack/internal/valuation"
)

// RecordPurchaseRequest carries the fields of a new purchase event.
type RecordPurchaseRequest struct {
	MaterialID   int     `json:"material_id"`
	PurchaseDate string  `json:"purchase_date"`
	Quantity     float64 `json:"quantity_purchased"`
	PricePerUnit float64 `json:"price_per_unit"`
	Supplier     string  `json:"supplier"`
	Invoice      string  `json:"invoice_number"`
	Notes        string  `json:"notes"`
}

// Filter narrows a purchase listing.
type Filter struct {
	MaterialID *int
	From       string // inclusive, YYYY-MM-DD
	To         string // inclusive, YYYY-MM-DD
}

// Totals aggregates a material's purchase history for reporting.
type Totals struct {
	Quantity float64
	Spend    float64
}

// Ledger is the authoritative history of material acquisitions and the sole
// source of truth for cost averaging.
type Ledger struct {
	mu      sync.RWMutex
	records map[int]*models.PurchaseRecord
	nextID  int

	catalog  *catalog.Catalog
	store    *store.Store
	notifier *notify.Notifier
	log      *logrus.Entry
}

// New loads the purchase table and registers a rename hook so denormalized
// material names stay in sync with the catalog.
func New(st *store.Store, cat *catalog.Catalog, notifier *notify.Notifier, log *logrus.Logger) (*Ledger, error) {
	rows, err := st.LoadPurchases()
	if err != nil {
		return nil, err
	}

	l := &Ledger{
		records:  make(map[int]*models.PurchaseRecord, len(rows)),
		nextID:   1,
		catalog:  cat,
		store:    st,
		notifier: notifier,
		log:      log.WithField("component", "purchases"),
	}
	for i := range rows {
		r := rows[i]
		l.records[r.ID] = &r
		if r.ID >= l.nextID {
			l.nextID = r.ID + 1
		}
	}

	cat.RegisterRenameHook(l.refreshMaterialName)
	return l, nil
}

// RecordPurchase validates and appends a purchase, then applies its side
// effects in order: stock increases by the purchased quantity, the
// material's unit cost is re-averaged over the full ledger, and the
// material's supplier is updated last-write-wins.
func (l *Ledger) RecordPurchase(req RecordPurchaseRequest) (models.PurchaseRecord, error) {
	if req.Quantity <= 0 {
		return models.PurchaseRecord{}, &models.ValidationError{Field: "quantity_purchased", Reason: "must be greater than zero"}
	}
	if req.PricePerUnit <= 0 {
		return models.PurchaseRecord{}, &models.ValidationError{Field: "price_per_unit", Reason: "must be greater than zero"}
	}

	date := req.PurchaseDate
	if date == "" {
		date = time.Now().Format(models.DateLayout)
	} else if _, err := time.Parse(models.DateLayout, date); err != nil {
		return models.PurchaseRecord{}, &models.ValidationError{Field: "purchase_date", Reason: "must be YYYY-MM-DD"}
	}

	mat, err := l.catalog.Get(req.MaterialID)
	if err != nil {
		return models.PurchaseRecord{}, err
	}

	l.mu.Lock()
	rec := &models.PurchaseRecord{
		ID:           l.nextID,
		MaterialID:   mat.ID,
		MaterialName: mat.Name,
		PurchaseDate: date,
		Quantity:     req.Quantity,
		PricePerUnit: req.PricePerUnit,
		TotalCost:    valuation.TotalCost(req.Quantity, req.PricePerUnit),
		Supplier:     req.Supplier,
		Invoice:      req.Invoice,
		Notes:        req.Notes,
	}
	l.nextID++
	l.records[rec.ID] = rec
	saveErr := l.saveLocked()
	out := *rec
	l.mu.Unlock()

	if saveErr != nil {
		return out, saveErr
	}

	if err := l.catalog.AdjustStock(mat.ID, req.Quantity); err != nil {
		return out, err
	}
	if err := l.catalog.RecomputeCost(mat.ID, l); err != nil {
		return out, err
	}
	if err := l.catalog.SetSupplier(mat.ID, req.Supplier); err != nil {
		return out, err
	}

	l.log.WithFields(logrus.Fields{
		"purchase_id": out.ID,
		"material_id": out.MaterialID,
		"quantity":    out.Quantity,
		"price":       out.PricePerUnit,
	}).Info("purchase recorded")
	if l.notifier != nil {
		l.notifier.Publish(notify.EventPurchaseRecorded, "Purchase recorded: "+out.MaterialName,
			map[string]interface{}{"purchase_id": out.ID, "material_id": out.MaterialID, "total_cost": out.TotalCost})
	}
	return out, nil
}

// EditPurchase mutates a record in place, recomputes its total cost, and
// re-averages the owning material's unit cost from the full ledger rather
// than applying an incremental delta. A changed quantity does not
// retroactively adjust the material's stock; stock reflects the quantities
// as they were recorded.
func (l *Ledger) EditPurchase(id int, upd models.PurchaseUpdate) (models.PurchaseRecord, error) {
	if upd.Quantity != nil && *upd.Quantity <= 0 {
		return models.PurchaseRecord{}, &models.ValidationError{Field: "quantity_purchased", Reason: "must be greater than zero"}
	}
	if upd.PricePerUnit != nil && *upd.PricePerUnit <= 0 {
		return models.PurchaseRecord{}, &models.ValidationError{Field: "price_per_unit", Reason: "must be greater than zero"}
	}
	if upd.PurchaseDate != nil {
		if _, err := time.Parse(models.DateLayout, *upd.PurchaseDate); err != nil {
			return models.PurchaseRecord{}, &models.ValidationError{Field: "purchase_date", Reason: "must be YYYY-MM-DD"}
		}
	}

	// Resolve any material change before taking the ledger lock; catalog
	// rename hooks acquire locks in catalog-then-ledger order.
	var newMat *models.Material
	if upd.MaterialID != nil {
		mat, err := l.catalog.Get(*upd.MaterialID)
		if err != nil {
			return models.PurchaseRecord{}, err
		}
		newMat = &mat
	}

	l.mu.Lock()
	rec, ok := l.records[id]
	if !ok {
		l.mu.Unlock()
		return models.PurchaseRecord{}, &models.NotFoundError{Kind: "purchase", ID: id}
	}

	oldMaterial := rec.MaterialID
	if newMat != nil && newMat.ID != rec.MaterialID {
		rec.MaterialID = newMat.ID
		rec.MaterialName = newMat.Name
	}
	if upd.PurchaseDate != nil {
		rec.PurchaseDate = *upd.PurchaseDate
	}
	if upd.Quantity != nil {
		rec.Quantity = *upd.Quantity
	}
	if upd.PricePerUnit != nil {
		rec.PricePerUnit = *upd.PricePerUnit
	}
	if upd.Supplier != nil {
		rec.Supplier = *upd.Supplier
	}
	if upd.Invoice != nil {
		rec.Invoice = *upd.Invoice
	}
	if upd.Notes != nil {
		rec.Notes = *upd.Notes
	}
	rec.TotalCost = valuation.TotalCost(rec.Quantity, rec.PricePerUnit)

	newMaterial := rec.MaterialID
	saveErr := l.saveLocked()
	out := *rec
	l.mu.Unlock()

	if saveErr != nil {
		return out, saveErr
	}

	if err := l.catalog.RecomputeCost(newMaterial, l); err != nil {
		return out, err
	}
	if oldMaterial != newMaterial {
		if err := l.catalog.RecomputeCost(oldMaterial, l); err != nil {
			return out, err
		}
	}

	l.log.WithFields(logrus.Fields{"purchase_id": id, "material_id": newMaterial}).Info("purchase edited")
	if l.notifier != nil {
		l.notifier.Publish(notify.EventPurchaseEdited, "Purchase edited: "+out.MaterialName,
			map[string]interface{}{"purchase_id": id, "material_id": newMaterial})
	}
	return out, nil
}

// Get returns a copy of one purchase record.
func (l *Ledger) Get(id int) (models.PurchaseRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rec, ok := l.records[id]
	if !ok {
		return models.PurchaseRecord{}, &models.NotFoundError{Kind: "purchase", ID: id}
	}
	return *rec, nil
}

// List returns purchases matching the filter, newest purchase date first.
func (l *Ledger) List(f Filter) ([]models.PurchaseRecord, error) {
	var from, to time.Time
	var err error
	if f.From != "" {
		if from, err = time.Parse(models.DateLayout, f.From); err != nil {
			return nil, &models.ValidationError{Field: "from", Reason: "must be YYYY-MM-DD"}
		}
	}
	if f.To != "" {
		if to, err = time.Parse(models.DateLayout, f.To); err != nil {
			return nil, &models.ValidationError{Field: "to", Reason: "must be YYYY-MM-DD"}
		}
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.PurchaseRecord, 0, len(l.records))
	for _, rec := range l.records {
		if f.MaterialID != nil && rec.MaterialID != *f.MaterialID {
			continue
		}
		d, perr := time.Parse(models.DateLayout, rec.PurchaseDate)
		if perr == nil {
			if !from.IsZero() && d.Before(from) {
				continue
			}
			if !to.IsZero() && d.After(to) {
				continue
			}
		}
		out = append(out, *rec)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].PurchaseDate != out[j].PurchaseDate {
			return out[i].PurchaseDate > out[j].PurchaseDate
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// PurchasePrices implements catalog.PriceSource: every price observation
// for a material across the full ledger.
func (l *Ledger) PurchasePrices(materialID int) []valuation.PricePoint {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var points []valuation.PricePoint
	for _, rec := range l.records {
		if rec.MaterialID == materialID {
			points = append(points, valuation.PricePoint{Price: rec.PricePerUnit, Quantity: rec.Quantity})
		}
	}
	return points
}

// TotalsByMaterial aggregates purchased quantity and spend per material.
func (l *Ledger) TotalsByMaterial() map[int]Totals {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[int]Totals)
	for _, rec := range l.records {
		t := out[rec.MaterialID]
		t.Quantity += rec.Quantity
		t.Spend += rec.TotalCost
		out[rec.MaterialID] = t
	}
	return out
}

// refreshMaterialName updates the denormalized name copies after a catalog
// rename. Ids are the join key; names are display data.
func (l *Ledger) refreshMaterialName(materialID int, newName string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	changed := false
	for _, rec := range l.records {
		if rec.MaterialID == materialID && rec.MaterialName != newName {
			rec.MaterialName = newName
			changed = true
		}
	}
	if changed {
		if err := l.saveLocked(); err != nil {
			l.log.WithError(err).Error("purchase table save failed after rename")
		}
	}
}

func (l *Ledger) saveLocked() error {
	rows := make([]models.PurchaseRecord, 0, len(l.records))
	for _, rec := range l.records {
		rows = append(rows, *rec)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })

	if err := l.store.SavePurchases(rows); err != nil {
		l.log.WithError(err).Error("purchase table save failed")
		return err
	}
	return nil
}
