package recipelinks

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

type key struct {
	recipeID   int
	materialID int
}

// Links is the many-to-many association between recipes and packing
// materials: how much of each material one batch of a recipe consumes, and
// the packaging cost snapshot that follows from it. Recipe identities come
// from the external recipe catalog and are never mutated here.
type Links struct {
	mu    sync.RWMutex
	links map[key]*models.RecipeMaterialLink

	catalog  *catalog.Catalog
	store    *store.Store
	notifier *notify.Notifier
	log      *logrus.Entry
}

// New loads the association table and registers the cascade and rename
// hooks on the catalog.
func New(st *store.Store, cat *catalog.Catalog, notifier *notify.Notifier, log *logrus.Logger) (*Links, error) {
	rows, err := st.LoadLinks()
	if err != nil {
		return nil, err
	}

	s := &Links{
		links:    make(map[key]*models.RecipeMaterialLink, len(rows)),
		catalog:  cat,
		store:    st,
		notifier: notifier,
		log:      log.WithField("component", "recipelinks"),
	}
	for i := range rows {
		l := rows[i]
		s.links[key{l.RecipeID, l.MaterialID}] = &l
	}

	cat.RegisterDeleteHook(s.removeLinksForMaterial)
	cat.RegisterRenameHook(s.refreshMaterialName)
	return s, nil
}

// AssignMaterial creates or overwrites the link between a recipe and a
// material. Duplicate pairs are never created silently: when the link
// already exists the caller must pass overwrite, otherwise a
// DuplicateLinkError is returned. CostPerRecipe is snapshotted from the
// material's unit cost at write time and does not track later cost changes
// until the link is re-saved or RecalculateAllCosts runs.
func (s *Links) AssignMaterial(recipe models.RecipeRef, materialID int, quantityNeeded float64, notes string, overwrite bool) (models.RecipeMaterialLink, error) {
	if quantityNeeded <= 0 {
		return models.RecipeMaterialLink{}, &models.ValidationError{Field: "quantity_needed", Reason: "must be greater than zero"}
	}

	mat, err := s.catalog.Get(materialID)
	if err != nil {
		return models.RecipeMaterialLink{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{recipe.ID, materialID}
	if _, exists := s.links[k]; exists && !overwrite {
		return models.RecipeMaterialLink{}, &models.DuplicateLinkError{RecipeName: recipe.Name, MaterialName: mat.Name}
	}

	link := &models.RecipeMaterialLink{
		RecipeID:       recipe.ID,
		RecipeName:     recipe.Name,
		MaterialID:     mat.ID,
		MaterialName:   mat.Name,
		QuantityNeeded: quantityNeeded,
		CostPerRecipe:  valuation.TotalCost(quantityNeeded, mat.CostPerUnit),
		Notes:          notes,
		CostSnapshotAt: time.Now().Format(time.RFC3339),
	}
	s.links[k] = link

	s.log.WithFields(logrus.Fields{
		"recipe_id":   recipe.ID,
		"material_id": mat.ID,
		"quantity":    quantityNeeded,
	}).Info("material assigned to recipe")

	return *link, s.saveLocked()
}

// BulkAssign links every given material to every given recipe with one
// quantity. Existing pairs are skipped, never overwritten; the result
// reports how many links were created and how many skipped.
func (s *Links) BulkAssign(materialIDs []int, recipes []models.RecipeRef, quantityNeeded float64, notes string) (models.BulkAssignResult, error) {
	if quantityNeeded <= 0 {
		return models.BulkAssignResult{}, &models.ValidationError{Field: "quantity_needed", Reason: "must be greater than zero"}
	}

	// Resolve every material up front so an unknown id fails the whole
	// call before anything is written.
	mats := make(map[int]models.Material, len(materialIDs))
	for _, id := range materialIDs {
		mat, err := s.catalog.Get(id)
		if err != nil {
			return models.BulkAssignResult{}, err
		}
		mats[id] = mat
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var res models.BulkAssignResult
	now := time.Now().Format(time.RFC3339)
	for _, recipe := range recipes {
		for _, id := range materialIDs {
			k := key{recipe.ID, id}
			if _, exists := s.links[k]; exists {
				res.Skipped++
				continue
			}
			mat := mats[id]
			s.links[k] = &models.RecipeMaterialLink{
				RecipeID:       recipe.ID,
				RecipeName:     recipe.Name,
				MaterialID:     mat.ID,
				MaterialName:   mat.Name,
				QuantityNeeded: quantityNeeded,
				CostPerRecipe:  valuation.TotalCost(quantityNeeded, mat.CostPerUnit),
				Notes:          notes,
				CostSnapshotAt: now,
			}
			res.Created++
		}
	}

	if res.Created == 0 {
		return res, nil
	}

	s.log.WithFields(logrus.Fields{"created": res.Created, "skipped": res.Skipped}).Info("bulk assignment applied")
	return res, s.saveLocked()
}

// CopyFromRecipe clones every link of the source recipe onto the target.
// With copyQuantities false the cloned links default to quantity 1.0; with
// replaceExisting false, materials the target already has are skipped.
func (s *Links) CopyFromRecipe(source, target models.RecipeRef, replaceExisting, copyQuantities bool) (models.CopyResult, error) {
	// Snapshot source links and fetch current material costs outside the
	// write lock; catalog hooks acquire catalog-then-links.
	s.mu.RLock()
	var src []models.RecipeMaterialLink
	for _, l := range s.links {
		if l.RecipeID == source.ID {
			src = append(src, *l)
		}
	}
	s.mu.RUnlock()

	costs := make(map[int]float64, len(src))
	for _, l := range src {
		if mat, err := s.catalog.Get(l.MaterialID); err == nil {
			costs[l.MaterialID] = mat.CostPerUnit
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var res models.CopyResult
	now := time.Now().Format(time.RFC3339)
	for _, l := range src {
		k := key{target.ID, l.MaterialID}
		if _, exists := s.links[k]; exists && !replaceExisting {
			res.Skipped++
			continue
		}
		qty := 1.0
		if copyQuantities {
			qty = l.QuantityNeeded
		}
		s.links[k] = &models.RecipeMaterialLink{
			RecipeID:       target.ID,
			RecipeName:     target.Name,
			MaterialID:     l.MaterialID,
			MaterialName:   l.MaterialName,
			QuantityNeeded: qty,
			CostPerRecipe:  valuation.TotalCost(qty, costs[l.MaterialID]),
			Notes:          l.Notes,
			CostSnapshotAt: now,
		}
		res.Copied++
	}

	if res.Copied == 0 {
		return res, nil
	}

	s.log.WithFields(logrus.Fields{
		"source_recipe": source.ID,
		"target_recipe": target.ID,
		"copied":        res.Copied,
		"skipped":       res.Skipped,
	}).Info("recipe links copied")
	return res, s.saveLocked()
}

// RemoveLink deletes one recipe-material link.
func (s *Links) RemoveLink(recipeID, materialID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{recipeID, materialID}
	if _, ok := s.links[k]; !ok {
		return &models.NotFoundError{Kind: "link", ID: materialID}
	}
	delete(s.links, k)
	return s.saveLocked()
}

// RemoveLinksForRecipe deletes every link of a recipe; called when the
// external recipe catalog deletes the recipe.
func (s *Links) RemoveLinksForRecipe(recipeID int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k := range s.links {
		if k.recipeID == recipeID {
			delete(s.links, k)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, s.saveLocked()
}

// ForRecipe returns the links of one recipe ordered by material id.
func (s *Links) ForRecipe(recipeID int) []models.RecipeMaterialLink {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.RecipeMaterialLink
	for _, l := range s.links {
		if l.RecipeID == recipeID {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MaterialID < out[j].MaterialID })
	return out
}

// List returns every link, ordered by recipe then material.
func (s *Links) List() []models.RecipeMaterialLink {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.RecipeMaterialLink, 0, len(s.links))
	for _, l := range s.links {
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RecipeID != out[j].RecipeID {
			return out[i].RecipeID < out[j].RecipeID
		}
		return out[i].MaterialID < out[j].MaterialID
	})
	return out
}

// TotalPackagingCost sums the snapshotted cost_per_recipe of a recipe's
// links, scaled by multiplier. It deliberately does not consult live
// material costs; run RecalculateAllCosts first if snapshots may be stale.
func (s *Links) TotalPackagingCost(recipeID int, multiplier float64) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0.0
	for _, l := range s.links {
		if l.RecipeID == recipeID {
			total += l.CostPerRecipe * multiplier
		}
	}
	return total
}

// LiveCost returns what one link would cost at the material's current unit
// cost, without touching the stored snapshot. Callers choose between this
// and SnapshotCost intentionally.
func (s *Links) LiveCost(recipeID, materialID int) (float64, error) {
	s.mu.RLock()
	l, ok := s.links[key{recipeID, materialID}]
	if !ok {
		s.mu.RUnlock()
		return 0, &models.NotFoundError{Kind: "link", ID: materialID}
	}
	qty := l.QuantityNeeded
	s.mu.RUnlock()

	mat, err := s.catalog.Get(materialID)
	if err != nil {
		return 0, err
	}
	return valuation.TotalCost(qty, mat.CostPerUnit), nil
}

// RecalculateAllCosts re-derives every cost_per_recipe snapshot from
// current material costs. Run after bulk cost changes; links whose material
// no longer exists are left as-is.
func (s *Links) RecalculateAllCosts() (int, error) {
	// Fetch costs outside the write lock to respect hook lock ordering.
	s.mu.RLock()
	ids := make(map[int]struct{}, len(s.links))
	for _, l := range s.links {
		ids[l.MaterialID] = struct{}{}
	}
	s.mu.RUnlock()

	costs := make(map[int]float64, len(ids))
	for id := range ids {
		if mat, err := s.catalog.Get(id); err == nil {
			costs[id] = mat.CostPerUnit
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	updated := 0
	now := time.Now().Format(time.RFC3339)
	for _, l := range s.links {
		cost, ok := costs[l.MaterialID]
		if !ok {
			continue
		}
		next := valuation.TotalCost(l.QuantityNeeded, cost)
		if next != l.CostPerRecipe {
			l.CostPerRecipe = next
			updated++
		}
		l.CostSnapshotAt = now
	}

	s.log.WithField("updated", updated).Info("recipe packaging costs recalculated")
	if s.notifier != nil {
		s.notifier.Publish(notify.EventCostsRecalculated, "Packaging costs recalculated",
			map[string]interface{}{"updated": updated})
	}
	return updated, s.saveLocked()
}

// removeLinksForMaterial cascades a material deletion into the association
// table. Runs under the catalog's write lock via the delete hook.
func (s *Links) removeLinksForMaterial(materialID int, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k := range s.links {
		if k.materialID == materialID {
			delete(s.links, k)
			removed++
		}
	}
	if removed == 0 {
		return
	}

	s.log.WithFields(logrus.Fields{"material_id": materialID, "name": name, "removed": removed}).
		Info("links removed for deleted material")
	if err := s.saveLocked(); err != nil {
		s.log.WithError(err).Error("link table save failed after cascade delete")
	}
}

// refreshMaterialName keeps the denormalized material name copies in sync
// after a catalog rename.
func (s *Links) refreshMaterialName(materialID int, newName string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	for _, l := range s.links {
		if l.MaterialID == materialID && l.MaterialName != newName {
			l.MaterialName = newName
			changed = true
		}
	}
	if changed {
		if err := s.saveLocked(); err != nil {
			s.log.WithError(err).Error("link table save failed after rename")
		}
	}
}

func (s *Links) saveLocked() error {
	rows := make([]models.RecipeMaterialLink, 0, len(s.links))
	for _, l := range s.links {
		rows = append(rows, *l)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].RecipeID != rows[j].RecipeID {
			return rows[i].RecipeID < rows[j].RecipeID
		}
		return rows[i].MaterialID < rows[j].MaterialID
	})

	if err := s.store.SaveLinks(rows); err != nil {
		s.log.WithError(err).Error("link table save failed")
		return err
	}
	return nil
}
