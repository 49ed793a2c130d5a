package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"packtrack/internal/catalog"
	"packtrack/internal/models"
	"packtrack/internal/purchases"
	"packtrack/internal/usage"
)

func pathID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// Material catalog handlers

func (s *Server) ListMaterials(c *gin.Context) {
	mats := s.catalog.List()
	s.metrics.RecordStockLevels(mats)
	c.JSON(http.StatusOK, mats)
}

func (s *Server) ListLowStock(c *gin.Context) {
	low := s.catalog.LowStock()
	s.metrics.RecordLowStockCount(len(low))
	c.JSON(http.StatusOK, low)
}

func (s *Server) GetMaterial(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	mat, err := s.catalog.Get(id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, mat)
}

func (s *Server) AddMaterial(c *gin.Context) {
	var req catalog.AddMaterialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mat, err := s.catalog.AddMaterial(req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, mat)
}

// UpdateMaterial applies field updates. The request body may include
// cost_per_unit but it is not bound: the unit cost is derived from the
// purchase ledger and attempts to set it are dropped without error.
func (s *Server) UpdateMaterial(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var upd models.MaterialUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mat, err := s.catalog.UpdateMaterial(id, upd)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, mat)
}

func (s *Server) DeleteMaterial(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.catalog.DeleteMaterial(id); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Material deleted"})
}

func (s *Server) AdjustStock(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req struct {
		Delta float64 `json:"delta"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.catalog.AdjustStock(id, req.Delta); err != nil {
		s.respondError(c, err)
		return
	}
	mat, err := s.catalog.Get(id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, mat)
}

// Purchase ledger handlers

func (s *Server) ListPurchases(c *gin.Context) {
	var f purchases.Filter
	if raw := c.Query("material_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid material_id"})
			return
		}
		f.MaterialID = &id
	}
	f.From = c.Query("from")
	f.To = c.Query("to")

	recs, err := s.purchases.List(f)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, recs)
}

func (s *Server) GetPurchase(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	rec, err := s.purchases.Get(id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) RecordPurchase(c *gin.Context) {
	var req purchases.RecordPurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rec, err := s.purchases.RecordPurchase(req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.metrics.RecordPurchase(rec)
	c.JSON(http.StatusCreated, rec)
}

func (s *Server) EditPurchase(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var upd models.PurchaseUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rec, err := s.purchases.EditPurchase(id, upd)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Recipe-material association handlers

func (s *Server) ListLinks(c *gin.Context) {
	c.JSON(http.StatusOK, s.links.List())
}

func (s *Server) LinksForRecipe(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.links.ForRecipe(id))
}

func (s *Server) AssignMaterial(c *gin.Context) {
	var req struct {
		Recipe         models.RecipeRef `json:"recipe"`
		MaterialID     int              `json:"material_id"`
		QuantityNeeded float64          `json:"quantity_needed"`
		Notes          string           `json:"notes"`
		Overwrite      bool             `json:"overwrite"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	link, err := s.links.AssignMaterial(req.Recipe, req.MaterialID, req.QuantityNeeded, req.Notes, req.Overwrite)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, link)
}

func (s *Server) BulkAssign(c *gin.Context) {
	var req struct {
		MaterialIDs    []int              `json:"material_ids"`
		Recipes        []models.RecipeRef `json:"recipes"`
		QuantityNeeded float64            `json:"quantity_needed"`
		Notes          string             `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := s.links.BulkAssign(req.MaterialIDs, req.Recipes, req.QuantityNeeded, req.Notes)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) CopyLinks(c *gin.Context) {
	var req struct {
		Source          models.RecipeRef `json:"source"`
		Target          models.RecipeRef `json:"target"`
		ReplaceExisting bool             `json:"replace_existing"`
		CopyQuantities  bool             `json:"copy_quantities"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := s.links.CopyFromRecipe(req.Source, req.Target, req.ReplaceExisting, req.CopyQuantities)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) RemoveLink(c *gin.Context) {
	recipeID, err1 := strconv.Atoi(c.Query("recipe_id"))
	materialID, err2 := strconv.Atoi(c.Query("material_id"))
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "recipe_id and material_id query parameters are required"})
		return
	}

	if err := s.links.RemoveLink(recipeID, materialID); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Link removed"})
}

func (s *Server) RecalculateCosts(c *gin.Context) {
	updated, err := s.links.RecalculateAllCosts()
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

func (s *Server) PackagingCost(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	multiplier := 1.0
	if raw := c.Query("multiplier"); raw != "" {
		m, err := strconv.ParseFloat(raw, 64)
		if err != nil || m <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multiplier"})
			return
		}
		multiplier = m
	}

	c.JSON(http.StatusOK, gin.H{
		"recipe_id":  id,
		"multiplier": multiplier,
		"total_cost": s.links.TotalPackagingCost(id, multiplier),
	})
}

// Sale usage handlers

// RecordSaleUsage is the sale-completion entry point: the sales module
// posts (recipe, quantity_sold, order_id) here when an order completes.
func (s *Server) RecordSaleUsage(c *gin.Context) {
	var req struct {
		Recipe       models.RecipeRef `json:"recipe"`
		QuantitySold float64          `json:"quantity_sold"`
		OrderID      string           `json:"order_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	recs, err := s.usage.RecordSaleUsage(req.Recipe, req.QuantitySold, req.OrderID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.metrics.RecordUsage(recs)
	c.JSON(http.StatusCreated, gin.H{"usage_records": recs})
}

func (s *Server) ListUsage(c *gin.Context) {
	var f usage.Filter
	if raw := c.Query("recipe_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid recipe_id"})
			return
		}
		f.RecipeID = &id
	}
	if raw := c.Query("material_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid material_id"})
			return
		}
		f.MaterialID = &id
	}
	f.OrderID = c.Query("order_id")

	c.JSON(http.StatusOK, s.usage.List(f))
}

// Report handlers

// ValuationReport streams the valuation summary workbook.
func (s *Server) ValuationReport(c *gin.Context) {
	c.Header("Content-Disposition", `attachment; filename="packing_materials_valuation.xlsx"`)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")

	if err := s.exporter.WriteValuationSummary(c.Writer); err != nil {
		s.log.WithError(err).Error("valuation report failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
