package api

import (
	"github.com/prometheus/client_golang/prometheus"

	"packtrack/internal/models"
)

// Metrics handles metrics collection and reporting for the valuation core.
type Metrics struct {
	registry *prometheus.Registry

	purchasesTotal    *prometheus.CounterVec
	purchaseSpend     prometheus.Counter
	usageTotal        *prometheus.CounterVec
	usageCost         prometheus.Counter
	insufficientStock prometheus.Counter
	stockLevel        *prometheus.GaugeVec
	lowStockCount     prometheus.Gauge
}

// NewMetrics creates the collector and registers it on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		purchasesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "packing_purchases_total",
				Help: "Number of purchase events recorded",
			},
			[]string{"material"},
		),
		purchaseSpend: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "packing_purchase_spend_total",
				Help: "Total money spent on packing material purchases",
			},
		),
		usageTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "packing_usage_records_total",
				Help: "Number of usage records written at sale time",
			},
			[]string{"material"},
		),
		usageCost: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "packing_usage_cost_total",
				Help: "Total packaging cost consumed by sales",
			},
		),
		insufficientStock: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "packing_insufficient_stock_total",
				Help: "Operations rejected because stock would go negative",
			},
		),
		stockLevel: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "packing_material_stock",
				Help: "Current stock level per material",
			},
			[]string{"material"},
		),
		lowStockCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "packing_low_stock_materials",
				Help: "Materials at or below their minimum stock threshold",
			},
		),
	}

	m.registry.MustRegister(
		m.purchasesTotal,
		m.purchaseSpend,
		m.usageTotal,
		m.usageCost,
		m.insufficientStock,
		m.stockLevel,
		m.lowStockCount,
	)
	return m
}

// Registry exposes the registry for the metrics HTTP server.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordPurchase records metrics for a recorded purchase.
func (m *Metrics) RecordPurchase(rec models.PurchaseRecord) {
	m.purchasesTotal.WithLabelValues(rec.MaterialName).Inc()
	m.purchaseSpend.Add(rec.TotalCost)
}

// RecordUsage records metrics for the usage rows of one sale.
func (m *Metrics) RecordUsage(recs []models.UsageRecord) {
	for _, rec := range recs {
		m.usageTotal.WithLabelValues(rec.MaterialName).Inc()
		m.usageCost.Add(rec.TotalCost)
	}
}

// RecordInsufficientStock counts a rejected deduction.
func (m *Metrics) RecordInsufficientStock(shortages int) {
	m.insufficientStock.Add(float64(shortages))
}

// RecordStockLevels refreshes the per-material stock gauges.
func (m *Metrics) RecordStockLevels(mats []models.Material) {
	for _, mat := range mats {
		m.stockLevel.WithLabelValues(mat.Name).Set(mat.CurrentStock)
	}
}

// RecordLowStockCount refreshes the low-stock gauge.
func (m *Metrics) RecordLowStockCount(n int) {
	m.lowStockCount.Set(float64(n))
}
