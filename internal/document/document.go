// Package document turns persisted quotes and batch breakdowns into
// table-shaped documents and renders them as xlsx workbooks for clients.
package document

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"minerva/internal/costing"
	"minerva/models"
)

// QuoteDocument is the printable projection of a finalized client quote.
type QuoteDocument struct {
	QuoteID      uint
	ClientName   string
	IssuedAt     time.Time
	ExchangeRate float64
	Lines        []QuoteDocumentLine
	TotalVolume  float64
	TotalCost    float64
	TotalPrice   float64
	TotalUSD     float64
	MarginPct    float64
}

// QuoteDocumentLine is one batch row in the printable quote.
type QuoteDocumentLine struct {
	RecipeName     string
	Volume         float64
	Batches        int
	Cost           float64
	MarginPct      float64
	SalePrice      float64
	SalePriceUSD   float64
	PricePerLitre  float64
	ContainerName  string
	ContainerUnits int
}

// BuildQuoteDocument projects a persisted quote, with its preloaded client
// and lines, into its printable shape.
func BuildQuoteDocument(quote models.ClientQuote) QuoteDocument {
	doc := QuoteDocument{
		QuoteID:      quote.ID,
		IssuedAt:     quote.CreatedAt,
		ExchangeRate: quote.ExchangeRate,
		TotalVolume:  quote.TotalVolume,
		TotalCost:    quote.TotalCost,
		TotalPrice:   quote.TotalPrice,
		MarginPct:    quote.MarginPct,
	}
	if quote.Client != nil {
		doc.ClientName = quote.Client.Name
	}

	for _, line := range quote.Lines {
		row := QuoteDocumentLine{
			RecipeName:     line.RecipeName,
			Volume:         line.Volume,
			Batches:        line.Batches,
			Cost:           line.Cost,
			MarginPct:      line.MarginPct,
			SalePrice:      line.SalePrice,
			SalePriceUSD:   line.SalePriceUSD,
			ContainerName:  line.ContainerName,
			ContainerUnits: line.ContainerUnits,
		}
		if line.Volume > 0 {
			row.PricePerLitre = line.SalePrice / line.Volume
		}
		doc.Lines = append(doc.Lines, row)
		doc.TotalUSD += line.SalePriceUSD
	}

	return doc
}

// BreakdownRow is one display row of a batch cost breakdown table.
type BreakdownRow struct {
	Label    string
	Quantity string
	UnitCost string
	Total    string
}

// BreakdownRows flattens a batch breakdown into ordered display rows:
// material lines first, then freight, overhead, packaging and the totals.
func BreakdownRows(breakdown costing.BatchCostBreakdown) []BreakdownRow {
	rows := make([]BreakdownRow, 0, len(breakdown.Lines)+5)
	for _, line := range breakdown.Lines {
		rows = append(rows, BreakdownRow{
			Label:    line.Name,
			Quantity: FormatQuantity(line.Quantity, line.Unit),
			UnitCost: FormatMoney(line.UnitCostLocalTotal),
			Total:    FormatMoney(line.LineTotalLocal),
		})
	}
	rows = append(rows,
		BreakdownRow{Label: "Flete", Total: FormatMoney(breakdown.FreightLocal)},
		BreakdownRow{Label: "Gastos fijos", UnitCost: FormatMoney(breakdown.OverheadPerUnit), Total: FormatMoney(breakdown.OverheadLocal)},
	)
	if breakdown.ContainersNeeded > 0 {
		rows = append(rows, BreakdownRow{
			Label:    breakdown.ContainerName,
			Quantity: strconv.Itoa(breakdown.ContainersNeeded) + " u",
			Total:    FormatMoney(breakdown.PackagingLocal),
		})
	}
	rows = append(rows, BreakdownRow{
		Label:    "Total",
		UnitCost: FormatMoney(breakdown.CostPerUnitLocal),
		Total:    FormatMoney(breakdown.TotalLocal),
	})
	return rows
}

// FormatMoney renders a local-currency amount with two decimals.
func FormatMoney(value float64) string {
	return "$ " + strconv.FormatFloat(value, 'f', 2, 64)
}

// FormatQuantity renders a quantity with its unit, trimming trailing zeros.
func FormatQuantity(value float64, unit string) string {
	formatted := strconv.FormatFloat(value, 'f', -1, 64)
	if unit == "" {
		return formatted
	}
	return formatted + " " + unit
}

// WriteQuoteWorkbook renders the quote document as an xlsx workbook.
func WriteQuoteWorkbook(doc QuoteDocument) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())

	title := fmt.Sprintf("Cotizacion #%d - %s", doc.QuoteID, doc.ClientName)
	if err := f.SetCellValue(sheet, "A1", title); err != nil {
		return nil, err
	}
	if err := f.MergeCell(sheet, "A1", "I1"); err != nil {
		return nil, err
	}
	if err := f.SetCellValue(sheet, "A2", "Fecha: "+doc.IssuedAt.Format("02/01/2006")); err != nil {
		return nil, err
	}
	if err := f.SetCellValue(sheet, "A3", "Tipo de cambio: "+strconv.FormatFloat(doc.ExchangeRate, 'f', 2, 64)); err != nil {
		return nil, err
	}

	header := []interface{}{
		"producto",
		"litros",
		"tandas",
		"costo",
		"margen_pct",
		"precio",
		"precio_usd",
		"envase",
		"envases",
	}
	if err := f.SetSheetRow(sheet, "A5", &header); err != nil {
		return nil, err
	}

	row := 6
	for _, line := range doc.Lines {
		excelRow := []interface{}{
			line.RecipeName,
			line.Volume,
			line.Batches,
			line.Cost,
			line.MarginPct,
			line.SalePrice,
			line.SalePriceUSD,
			line.ContainerName,
			line.ContainerUnits,
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &excelRow); err != nil {
			return nil, err
		}
		row++
	}

	totals := []interface{}{
		"TOTAL",
		doc.TotalVolume,
		"",
		doc.TotalCost,
		doc.MarginPct,
		doc.TotalPrice,
		doc.TotalUSD,
	}
	cell, err := excelize.CoordinatesToCellName(1, row+1)
	if err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(sheet, cell, &totals); err != nil {
		return nil, err
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
