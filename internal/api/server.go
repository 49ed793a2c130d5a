package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"packtrack/internal/catalog"
	"packtrack/internal/models"
	"packtrack/internal/notify"
	"packtrack/internal/purchases"
	"packtrack/internal/recipelinks"
	"packtrack/internal/reports"
	"packtrack/internal/usage"
)

// Server is the HTTP surface the dashboard UI calls in place of in-process
// button handlers: materials, purchases, recipe links, sale usage, reports
// and the live event stream.
type Server struct {
	router    *gin.Engine
	catalog   *catalog.Catalog
	purchases *purchases.Ledger
	links     *recipelinks.Links
	usage     *usage.Ledger
	notifier  *notify.Notifier
	metrics   *Metrics
	exporter  *reports.Exporter
	log       *logrus.Entry
}

// NewServer creates the API server and wires its routes.
func NewServer(
	cat *catalog.Catalog,
	pur *purchases.Ledger,
	links *recipelinks.Links,
	usg *usage.Ledger,
	notifier *notify.Notifier,
	metrics *Metrics,
	exporter *reports.Exporter,
	log *logrus.Logger,
) *Server {
	s := &Server{
		router:    gin.Default(),
		catalog:   cat,
		purchases: pur,
		links:     links,
		usage:     usg,
		notifier:  notifier,
		metrics:   metrics,
		exporter:  exporter,
		log:       log.WithField("component", "api"),
	}
	s.setupRoutes()
	return s
}

// Router returns the Gin router
func (s *Server) Router() *gin.Engine {
	return s.router
}

// setupRoutes configures all API endpoints
func (s *Server) setupRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	s.router.GET("/ws", s.handleEventStream)

	v1 := s.router.Group("/api/v1")
	{
		// Material catalog
		v1.GET("/materials", s.ListMaterials)
		v1.GET("/materials/low-stock", s.ListLowStock)
		v1.GET("/materials/:id", s.GetMaterial)
		v1.POST("/materials", s.AddMaterial)
		v1.PUT("/materials/:id", s.UpdateMaterial)
		v1.DELETE("/materials/:id", s.DeleteMaterial)
		v1.POST("/materials/:id/stock", s.AdjustStock)

		// Purchase ledger
		v1.GET("/purchases", s.ListPurchases)
		v1.GET("/purchases/:id", s.GetPurchase)
		v1.POST("/purchases", s.RecordPurchase)
		v1.PUT("/purchases/:id", s.EditPurchase)

		// Recipe-material associations
		v1.GET("/links", s.ListLinks)
		v1.POST("/links", s.AssignMaterial)
		v1.POST("/links/bulk", s.BulkAssign)
		v1.POST("/links/copy", s.CopyLinks)
		v1.POST("/links/recalculate", s.RecalculateCosts)
		v1.DELETE("/links", s.RemoveLink)
		v1.GET("/recipes/:id/links", s.LinksForRecipe)
		v1.GET("/recipes/:id/packaging-cost", s.PackagingCost)

		// Sale usage
		v1.POST("/sales/usage", s.RecordSaleUsage)
		v1.GET("/usage", s.ListUsage)

		// Reports
		v1.GET("/reports/valuation", s.ValuationReport)
	}
}

// respondError maps the core error taxonomy onto HTTP status codes:
// validation 400, not found 404, duplicates and stock conflicts 409,
// persistence failures 500.
func (s *Server) respondError(c *gin.Context, err error) {
	var (
		vErr   *models.ValidationError
		nfErr  *models.NotFoundError
		isErr  *models.InsufficientStockError
		dupErr *models.DuplicateLinkError
		pErr   *models.PersistenceError
	)
	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error(), "field": vErr.Field})
	case errors.As(err, &nfErr):
		c.JSON(http.StatusNotFound, gin.H{"error": nfErr.Error()})
	case errors.As(err, &isErr):
		s.metrics.RecordInsufficientStock(len(isErr.Shortages))
		c.JSON(http.StatusConflict, gin.H{"error": isErr.Error(), "shortages": isErr.Shortages})
	case errors.As(err, &dupErr):
		c.JSON(http.StatusConflict, gin.H{"error": dupErr.Error()})
	case errors.As(err, &pErr):
		s.log.WithError(pErr).Error("persistence failure")
		c.JSON(http.StatusInternalServerError, gin.H{"error": pErr.Error(), "table": pErr.Table})
	default:
		s.log.WithError(err).Error("unhandled error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
