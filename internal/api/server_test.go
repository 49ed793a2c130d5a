package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"packtrack/internal/catalog"
	"packtrack/internal/models"
	"packtrack/internal/notify"
	"packtrack/internal/purchases"
	"packtrack/internal/recipelinks"
	"packtrack/internal/reports"
	"packtrack/internal/store"
	"packtrack/internal/usage"
	"packtrack/internal/valuation"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logrus.New()
	log.SetOutput(io.Discard)

	st, err := store.New(t.TempDir(), log)
	require.NoError(t, err)
	notifier := notify.NewNotifier(log)
	cat, err := catalog.New(st, valuation.MethodSimpleMean, notifier, log)
	require.NoError(t, err)
	pur, err := purchases.New(st, cat, notifier, log)
	require.NoError(t, err)
	links, err := recipelinks.New(st, cat, notifier, log)
	require.NoError(t, err)
	usg, err := usage.New(st, cat, links, notifier, log)
	require.NoError(t, err)

	return NewServer(cat, pur, links, usg, notifier, NewMetrics(), reports.NewExporter(cat, pur), log)
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestMaterialLifecycle(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/v1/materials", gin.H{
		"material_name": "Box Small",
		"category":      "box",
		"unit":          "piece",
		"initial_stock": 10,
		"minimum_stock": 2,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var mat models.Material
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &mat))
	assert.Equal(t, 1, mat.ID)
	assert.Equal(t, "Box Small", mat.Name)

	w = doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/v1/materials/%d", mat.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, s, http.MethodPut, fmt.Sprintf("/api/v1/materials/%d", mat.ID), gin.H{
		"material_name": "Box Medium",
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &mat))
	assert.Equal(t, "Box Medium", mat.Name)

	w = doJSON(t, s, http.MethodDelete, fmt.Sprintf("/api/v1/materials/%d", mat.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/v1/materials/%d", mat.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateMaterialIgnoresCostField(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/v1/materials", gin.H{"material_name": "Box"})
	require.Equal(t, http.StatusCreated, w.Code)

	// The cost is derived from purchases; a client-supplied value is dropped.
	w = doJSON(t, s, http.MethodPut, "/api/v1/materials/1", gin.H{"cost_per_unit": 99.0})
	require.Equal(t, http.StatusOK, w.Code)

	var mat models.Material
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &mat))
	assert.Equal(t, 0.0, mat.CostPerUnit)
}

func TestAddMaterialValidationStatus(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/v1/materials", gin.H{"material_name": "  "})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "material_name")
}

func TestRecordPurchaseUpdatesMaterial(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/v1/materials", gin.H{"material_name": "Box"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, s, http.MethodPost, "/api/v1/purchases", gin.H{
		"material_id":        1,
		"purchase_date":      "2025-01-10",
		"quantity_purchased": 100,
		"price_per_unit":     5,
		"supplier":           "Acme Packaging",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var rec models.PurchaseRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, 500.0, rec.TotalCost)

	w = doJSON(t, s, http.MethodGet, "/api/v1/materials/1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var mat models.Material
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &mat))
	assert.Equal(t, 100.0, mat.CurrentStock)
	assert.Equal(t, 5.0, mat.CostPerUnit)
	assert.Equal(t, "Acme Packaging", mat.Supplier)
}

func TestSaleUsageConflictPayload(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/v1/materials", gin.H{"material_name": "Box", "initial_stock": 1})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, s, http.MethodPost, "/api/v1/links", gin.H{
		"recipe":          gin.H{"recipe_id": 1, "recipe_name": "Cake"},
		"material_id":     1,
		"quantity_needed": 2,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, s, http.MethodPost, "/api/v1/sales/usage", gin.H{
		"recipe":        gin.H{"recipe_id": 1, "recipe_name": "Cake"},
		"quantity_sold": 1,
		"order_id":      "ORD-1",
	})
	require.Equal(t, http.StatusConflict, w.Code)

	var resp struct {
		Error     string            `json:"error"`
		Shortages []models.Shortage `json:"shortages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Shortages, 1)
	assert.Equal(t, "Box", resp.Shortages[0].MaterialName)
	assert.Equal(t, 1.0, resp.Shortages[0].Available)
	assert.Equal(t, 2.0, resp.Shortages[0].Required)

	// Stock untouched after the rejected sale.
	w = doJSON(t, s, http.MethodGet, "/api/v1/materials/1", nil)
	var mat models.Material
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &mat))
	assert.Equal(t, 1.0, mat.CurrentStock)
}

func TestDuplicateLinkConflict(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/v1/materials", gin.H{"material_name": "Box"})
	require.Equal(t, http.StatusCreated, w.Code)

	body := gin.H{
		"recipe":          gin.H{"recipe_id": 1, "recipe_name": "Cake"},
		"material_id":     1,
		"quantity_needed": 2,
	}
	w = doJSON(t, s, http.MethodPost, "/api/v1/links", body)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, s, http.MethodPost, "/api/v1/links", body)
	assert.Equal(t, http.StatusConflict, w.Code)

	body["overwrite"] = true
	w = doJSON(t, s, http.MethodPost, "/api/v1/links", body)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestPackagingCostEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/v1/materials", gin.H{"material_name": "Box", "initial_stock": 100})
	require.Equal(t, http.StatusCreated, w.Code)
	w = doJSON(t, s, http.MethodPost, "/api/v1/purchases", gin.H{
		"material_id": 1, "quantity_purchased": 10, "price_per_unit": 6,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, s, http.MethodPost, "/api/v1/links", gin.H{
		"recipe":          gin.H{"recipe_id": 1, "recipe_name": "Cake"},
		"material_id":     1,
		"quantity_needed": 2,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, s, http.MethodGet, "/api/v1/recipes/1/packaging-cost?multiplier=5", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		TotalCost float64 `json:"total_cost"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 60.0, resp.TotalCost)
}

func TestRemoveLinkRequiresQueryParams(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodDelete, "/api/v1/links", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, s, http.MethodDelete, "/api/v1/links?recipe_id=1&material_id=1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestValuationReportDownload(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/v1/materials", gin.H{"material_name": "Box", "initial_stock": 10})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, s, http.MethodGet, "/api/v1/reports/valuation", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")
	assert.NotZero(t, w.Body.Len())
}
