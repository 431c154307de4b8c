package httpserver

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/phenrril/ordercore/internal/domain"
)

const invoiceSheet = "Invoice"

// renderInvoiceXLSX lays out the invoice header, one row per order line and
// the stored totals.
func renderInvoiceXLSX(inv *domain.Invoice, o *domain.Order) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", invoiceSheet); err != nil {
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return nil, err
	}

	header := [][]any{
		{"Invoice", inv.Number},
		{"Issue date", inv.IssueDate.Format("2006-01-02")},
		{"Order", o.ID.String()},
	}
	for i, row := range header {
		if err := f.SetSheetRow(invoiceSheet, fmt.Sprintf("A%d", i+1), &row); err != nil {
			return nil, err
		}
	}
	_ = f.SetCellStyle(invoiceSheet, "A1", "A3", bold)

	const first = 5
	cols := []any{"Item", "Variant size", "Qty", "Unit price", "Line total"}
	if err := f.SetSheetRow(invoiceSheet, fmt.Sprintf("A%d", first), &cols); err != nil {
		return nil, err
	}
	_ = f.SetCellStyle(invoiceSheet, fmt.Sprintf("A%d", first), fmt.Sprintf("E%d", first), bold)

	row := first + 1
	for i, it := range o.Items {
		line := domain.LineTotal(it.UnitPrice, it.Qty)
		vals := []any{i + 1, it.VariantSizeID.String(), it.Qty, it.UnitPrice.InexactFloat64(), line.InexactFloat64()}
		if err := f.SetSheetRow(invoiceSheet, fmt.Sprintf("A%d", row), &vals); err != nil {
			return nil, err
		}
		row++
	}
	_ = f.SetCellStyle(invoiceSheet, fmt.Sprintf("D%d", first+1), fmt.Sprintf("E%d", row), money)

	row++
	totals := []struct {
		label string
		value float64
	}{
		{"Subtotal", inv.Subtotal.InexactFloat64()},
		{fmt.Sprintf("Tax (%s%%)", inv.TaxPct.StringFixed(2)), inv.TaxAmount.InexactFloat64()},
		{"Total", inv.TotalAmount.InexactFloat64()},
	}
	for _, t := range totals {
		if err := f.SetCellValue(invoiceSheet, fmt.Sprintf("D%d", row), t.label); err != nil {
			return nil, err
		}
		if err := f.SetCellValue(invoiceSheet, fmt.Sprintf("E%d", row), t.value); err != nil {
			return nil, err
		}
		_ = f.SetCellStyle(invoiceSheet, fmt.Sprintf("E%d", row), fmt.Sprintf("E%d", row), money)
		row++
	}
	_ = f.SetColWidth(invoiceSheet, "B", "B", 38)
	_ = f.SetColWidth(invoiceSheet, "D", "E", 14)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
