package catalog

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"packtrack/internal/models"
	"packtrack/internal/notify"
	"packtrack/internal/store"
	"packtrack/internal/valuation"
)

// Stock arithmetic runs on float64; deductions that land within this of
// zero are treated as exactly zero rather than rejected.
const stockEpsilon = 1e-9

// PriceSource supplies the purchase observations a material's unit cost is
// averaged from. The purchase ledger implements it.
type PriceSource interface {
	PurchasePrices(materialID int) []valuation.PricePoint
}

// StockDemand is one material requirement inside an all-or-nothing
// deduction.
type StockDemand struct {
	MaterialID int
	Quantity   float64
}

// DeleteHook runs when a material is deleted, before it is removed from the
// catalog. The association table registers one to cascade its links.
type DeleteHook func(materialID int, name string)

// RenameHook runs when a material is renamed so tables holding denormalized
// name copies can refresh them. Ids stay the canonical join key throughout.
type RenameHook func(materialID int, newName string)

// AddMaterialRequest carries the fields of a new material. Cost always
// starts at zero; only purchases establish it.
type AddMaterialRequest struct {
	Name         string  `json:"material_name"`
	Category     string  `json:"category"`
	Size         string  `json:"size"`
	Unit         string  `json:"unit"`
	InitialStock float64 `json:"initial_stock"`
	MinimumStock float64 `json:"minimum_stock"`
	Supplier     string  `json:"supplier"`
	Notes        string  `json:"notes"`
}

// Catalog owns material identity, stock levels and the derived unit cost.
// All mutations happen under one mutex and are followed by a full-table
// save, so callers see the atomicity the stock invariants require.
type Catalog struct {
	mu        sync.RWMutex
	materials map[int]*models.Material
	byName    map[string]int
	nextID    int
	method    valuation.Method

	store    *store.Store
	notifier *notify.Notifier
	log      *logrus.Entry

	onDelete []DeleteHook
	onRename []RenameHook
}

// New loads the material table from the store and builds the name index.
func New(st *store.Store, method valuation.Method, notifier *notify.Notifier, log *logrus.Logger) (*Catalog, error) {
	rows, err := st.LoadMaterials()
	if err != nil {
		return nil, err
	}

	c := &Catalog{
		materials: make(map[int]*models.Material, len(rows)),
		byName:    make(map[string]int, len(rows)),
		nextID:    1,
		method:    method,
		store:     st,
		notifier:  notifier,
		log:       log.WithField("component", "catalog"),
	}
	for i := range rows {
		m := rows[i]
		c.materials[m.ID] = &m
		c.byName[m.Name] = m.ID
		if m.ID >= c.nextID {
			c.nextID = m.ID + 1
		}
	}
	return c, nil
}

// RegisterDeleteHook adds a cascade hook invoked on material deletion.
func (c *Catalog) RegisterDeleteHook(h DeleteHook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDelete = append(c.onDelete, h)
}

// RegisterRenameHook adds a hook invoked when a material is renamed.
func (c *Catalog) RegisterRenameHook(h RenameHook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onRename = append(c.onRename, h)
}

// AddMaterial creates a material with the next integer id. Ids are never
// reused, even when names collide.
func (c *Catalog) AddMaterial(req AddMaterialRequest) (models.Material, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return models.Material{}, &models.ValidationError{Field: "material_name", Reason: "must not be empty"}
	}
	if req.InitialStock < 0 {
		return models.Material{}, &models.ValidationError{Field: "initial_stock", Reason: "must not be negative"}
	}
	if req.MinimumStock < 0 {
		return models.Material{}, &models.ValidationError{Field: "minimum_stock", Reason: "must not be negative"}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	m := &models.Material{
		ID:           c.nextID,
		Name:         name,
		Category:     req.Category,
		Size:         req.Size,
		Unit:         req.Unit,
		CostPerUnit:  0,
		CurrentStock: req.InitialStock,
		MinimumStock: req.MinimumStock,
		Supplier:     req.Supplier,
		Notes:        req.Notes,
		DateAdded:    time.Now().Format(models.DateLayout),
	}
	c.nextID++
	c.materials[m.ID] = m
	c.byName[m.Name] = m.ID

	c.log.WithFields(logrus.Fields{"material_id": m.ID, "name": m.Name}).Info("material added")
	c.publish(notify.EventMaterialAdded, "Material added: "+m.Name, m.ID)

	return *m, c.saveLocked()
}

// Get returns a copy of the material with the given id.
func (c *Catalog) Get(id int) (models.Material, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m, ok := c.materials[id]
	if !ok {
		return models.Material{}, &models.NotFoundError{Kind: "material", ID: id}
	}
	return *m, nil
}

// GetByName resolves a material by its display name. Names are denormalized
// attributes; prefer ids for joins.
func (c *Catalog) GetByName(name string) (models.Material, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	id, ok := c.byName[name]
	if !ok {
		return models.Material{}, false
	}
	return *c.materials[id], true
}

// List returns all materials ordered by id.
func (c *Catalog) List() []models.Material {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.Material, 0, len(c.materials))
	for _, m := range c.materials {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LowStock returns materials at or below their minimum stock threshold.
func (c *Catalog) LowStock() []models.Material {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []models.Material
	for _, m := range c.materials {
		if m.BelowMinimum() {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// UpdateMaterial applies the settable fields of upd to a material. The unit
// cost is not among them: it is derived from the purchase ledger and any
// attempt to set it through the API is dropped without error. Renames keep
// the name index and the denormalized copies in other tables in sync.
func (c *Catalog) UpdateMaterial(id int, upd models.MaterialUpdate) (models.Material, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.materials[id]
	if !ok {
		return models.Material{}, &models.NotFoundError{Kind: "material", ID: id}
	}

	var renamedTo string
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return models.Material{}, &models.ValidationError{Field: "material_name", Reason: "must not be empty"}
		}
		if name != m.Name {
			delete(c.byName, m.Name)
			m.Name = name
			c.byName[name] = id
			renamedTo = name
		}
	}
	if upd.Category != nil {
		m.Category = *upd.Category
	}
	if upd.Size != nil {
		m.Size = *upd.Size
	}
	if upd.Unit != nil {
		m.Unit = *upd.Unit
	}
	if upd.CurrentStock != nil {
		if *upd.CurrentStock < 0 {
			return models.Material{}, &models.ValidationError{Field: "current_stock", Reason: "must not be negative"}
		}
		m.CurrentStock = *upd.CurrentStock
	}
	if upd.MinimumStock != nil {
		if *upd.MinimumStock < 0 {
			return models.Material{}, &models.ValidationError{Field: "minimum_stock", Reason: "must not be negative"}
		}
		m.MinimumStock = *upd.MinimumStock
	}
	if upd.Supplier != nil {
		m.Supplier = *upd.Supplier
	}
	if upd.Notes != nil {
		m.Notes = *upd.Notes
	}

	if renamedTo != "" {
		for _, h := range c.onRename {
			h(id, renamedTo)
		}
	}

	c.publish(notify.EventMaterialUpdated, "Material updated: "+m.Name, id)
	return *m, c.saveLocked()
}

// DeleteMaterial removes a material and cascades into the association
// table through the registered hooks. Ledger history is immutable and is
// left untouched.
func (c *Catalog) DeleteMaterial(id int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.materials[id]
	if !ok {
		return &models.NotFoundError{Kind: "material", ID: id}
	}

	for _, h := range c.onDelete {
		h(id, m.Name)
	}

	delete(c.byName, m.Name)
	delete(c.materials, id)

	c.log.WithFields(logrus.Fields{"material_id": id, "name": m.Name}).Info("material deleted")
	c.publish(notify.EventMaterialDeleted, "Material deleted: "+m.Name, id)

	return c.saveLocked()
}

// RecomputeCost re-derives a material's unit cost from the full purchase
// history. With no purchase rows the current value is left alone (zero for
// a material that was never purchased). Called after every purchase insert
// and edit.
func (c *Catalog) RecomputeCost(id int, src PriceSource) error {
	points := src.PurchasePrices(id)

	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.materials[id]
	if !ok {
		return &models.NotFoundError{Kind: "material", ID: id}
	}
	if len(points) == 0 {
		return nil
	}

	m.CostPerUnit = valuation.UnitCost(c.method, points)
	c.log.WithFields(logrus.Fields{"material_id": id, "cost_per_unit": m.CostPerUnit}).Debug("unit cost recomputed")

	return c.saveLocked()
}

// AdjustStock applies a stock delta, rejecting any change that would drive
// stock negative. The check and the write happen under one lock; a rejected
// adjustment leaves stock exactly as it was.
func (c *Catalog) AdjustStock(id int, delta float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.materials[id]
	if !ok {
		return &models.NotFoundError{Kind: "material", ID: id}
	}

	next := m.CurrentStock + delta
	if next < -stockEpsilon {
		c.publish(notify.EventInsufficientStock, "Insufficient stock: "+m.Name, id)
		return &models.InsufficientStockError{Shortages: []models.Shortage{{
			MaterialID:   id,
			MaterialName: m.Name,
			Available:    m.CurrentStock,
			Required:     -delta,
		}}}
	}
	if next < 0 {
		next = 0
	}
	m.CurrentStock = next

	if m.BelowMinimum() {
		c.publish(notify.EventLowStock, "Low stock: "+m.Name, id)
	}
	return c.saveLocked()
}

// SetSupplier records the supplier of the latest purchase on the material,
// last write wins. Empty suppliers are ignored.
func (c *Catalog) SetSupplier(id int, supplier string) error {
	if supplier == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.materials[id]
	if !ok {
		return &models.NotFoundError{Kind: "material", ID: id}
	}
	m.Supplier = supplier
	return c.saveLocked()
}

// DeductAll applies a set of stock deductions as one atomic operation:
// every demand is checked against available stock first, and only if all
// pass is any deduction applied. On failure it returns an
// InsufficientStockError naming every deficient material and stock is left
// untouched. On success it returns pre-deduction copies of the affected
// materials so callers can snapshot unit costs.
func (c *Catalog) DeductAll(demands []StockDemand) (map[int]models.Material, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Collapse repeated demands for the same material so the availability
	// check sees the combined requirement.
	order := make([]int, 0, len(demands))
	required := make(map[int]float64, len(demands))
	for _, d := range demands {
		if _, seen := required[d.MaterialID]; !seen {
			order = append(order, d.MaterialID)
		}
		required[d.MaterialID] += d.Quantity
	}

	// Phase one: verify every demand without touching stock.
	var shortages []models.Shortage
	for _, id := range order {
		m, ok := c.materials[id]
		if !ok {
			return nil, &models.NotFoundError{Kind: "material", ID: id}
		}
		if m.CurrentStock+stockEpsilon < required[id] {
			shortages = append(shortages, models.Shortage{
				MaterialID:   id,
				MaterialName: m.Name,
				Available:    m.CurrentStock,
				Required:     required[id],
			})
		}
	}
	if len(shortages) > 0 {
		for _, s := range shortages {
			c.publish(notify.EventInsufficientStock, "Insufficient stock: "+s.MaterialName, s.MaterialID)
		}
		return nil, &models.InsufficientStockError{Shortages: shortages}
	}

	// Phase two: commit every deduction.
	before := make(map[int]models.Material, len(order))
	for _, id := range order {
		m := c.materials[id]
		before[id] = *m
		m.CurrentStock -= required[id]
		if m.CurrentStock < 0 {
			m.CurrentStock = 0
		}
		if m.BelowMinimum() {
			c.publish(notify.EventLowStock, "Low stock: "+m.Name, m.ID)
		}
	}

	return before, c.saveLocked()
}

// Save rewrites the material table. Exposed for callers that need to retry
// after a PersistenceError.
func (c *Catalog) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saveLocked()
}

func (c *Catalog) saveLocked() error {
	rows := make([]models.Material, 0, len(c.materials))
	for _, m := range c.materials {
		rows = append(rows, *m)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })

	if err := c.store.SaveMaterials(rows); err != nil {
		c.log.WithError(err).Error("material table save failed")
		return err
	}
	return nil
}

func (c *Catalog) publish(typ notify.EventType, msg string, materialID int) {
	if c.notifier == nil {
		return
	}
	c.notifier.Publish(typ, msg, map[string]interface{}{"material_id": materialID})
}
