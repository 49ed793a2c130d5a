package reports

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"packtrack/internal/catalog"
	"packtrack/internal/purchases"
)

// Exporter builds the Excel workbooks the dashboard offers for download.
type Exporter struct {
	catalog   *catalog.Catalog
	purchases *purchases.Ledger
}

// NewExporter creates an exporter over the catalog and purchase ledger.
func NewExporter(cat *catalog.Catalog, pur *purchases.Ledger) *Exporter {
	return &Exporter{catalog: cat, purchases: pur}
}

// WriteValuationSummary writes a one-sheet valuation workbook: per material
// the stock, unit cost, stock value and lifetime purchase totals, with a
// totals row at the bottom.
func (e *Exporter) WriteValuationSummary(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Valuation"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{
		"Material ID", "Name", "Category", "Unit",
		"Current Stock", "Minimum Stock", "Cost Per Unit", "Stock Value",
		"Purchased Qty", "Total Spend", "Supplier",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	totals := e.purchases.TotalsByMaterial()
	var totalValue, totalSpend float64

	row := 2
	for _, m := range e.catalog.List() {
		t := totals[m.ID]
		values := []interface{}{
			m.ID, m.Name, m.Category, m.Unit,
			m.CurrentStock, m.MinimumStock, m.CostPerUnit, m.StockValue(),
			t.Quantity, t.Spend, m.Supplier,
		}
		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			f.SetCellValue(sheet, cell, v)
		}
		totalValue += m.StockValue()
		totalSpend += t.Spend
		row++
	}

	f.SetCellValue(sheet, fmt.Sprintf("B%d", row+1), "Totals")
	f.SetCellValue(sheet, fmt.Sprintf("H%d", row+1), totalValue)
	f.SetCellValue(sheet, fmt.Sprintf("J%d", row+1), totalSpend)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing valuation workbook: %w", err)
	}
	return nil
}
