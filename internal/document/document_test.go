package document

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"

	"minerva/internal/costing"
	"minerva/models"
)

func sampleQuote() models.ClientQuote {
	quote := models.ClientQuote{
		ClientID:     1,
		MarginPct:    40,
		TotalVolume:  600,
		TotalCost:    3000,
		TotalPrice:   4200,
		ExchangeRate: 1300,
		Client:       &models.Client{Name: "Distribuidora Litoral"},
		Lines: []models.ClientQuoteLine{
			{RecipeName: "Shampoo Nutritivo", Volume: 400, Batches: 2, Cost: 1000, MarginPct: 20, SalePrice: 1200, SalePriceUSD: 0.92, ContainerName: "Bidon 5L", ContainerUnits: 80},
			{RecipeName: "Acondicionador", Volume: 200, Batches: 1, Cost: 2000, MarginPct: 50, SalePrice: 3000, SalePriceUSD: 2.31},
		},
	}
	quote.ID = 7
	return quote
}

func TestBuildQuoteDocument(t *testing.T) {
	t.Parallel()

	doc := BuildQuoteDocument(sampleQuote())

	if doc.ClientName != "Distribuidora Litoral" {
		t.Fatalf("unexpected client name %q", doc.ClientName)
	}
	if len(doc.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(doc.Lines))
	}
	if doc.Lines[0].PricePerLitre != 3 {
		t.Fatalf("expected 3 per litre, got %v", doc.Lines[0].PricePerLitre)
	}
	if doc.TotalUSD != 3.23 {
		t.Fatalf("expected dollar total 3.23, got %v", doc.TotalUSD)
	}
}

func TestWriteQuoteWorkbookRoundTrips(t *testing.T) {
	t.Parallel()

	payload, err := WriteQuoteWorkbook(BuildQuoteDocument(sampleQuote()))
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	rows, err := f.GetRows(sheet)
	if err != nil {
		t.Fatalf("read workbook rows: %v", err)
	}
	if len(rows) < 7 {
		t.Fatalf("expected title, header, lines and totals, got %d rows", len(rows))
	}
	if rows[4][0] != "producto" {
		t.Fatalf("unexpected header row: %v", rows[4])
	}
	if rows[5][0] != "Shampoo Nutritivo" {
		t.Fatalf("unexpected first line: %v", rows[5])
	}
}

func TestBreakdownRowsIncludeTotalsAndPackaging(t *testing.T) {
	t.Parallel()

	breakdown := costing.BatchCostBreakdown{
		Lines: []costing.CostLine{
			{Name: "Lauril Sulfato", Unit: "kg", Quantity: 20, UnitCostLocalTotal: 2678, LineTotalLocal: 53560},
		},
		FreightLocal:     15000,
		OverheadPerUnit:  12.5,
		OverheadLocal:    5000,
		ContainerName:    "Bidon 5L",
		ContainersNeeded: 80,
		PackagingLocal:   160000,
		TotalLocal:       233560,
		CostPerUnitLocal: 583.9,
	}

	rows := BreakdownRows(breakdown)
	if len(rows) != 5 {
		t.Fatalf("expected 5 rows, got %d: %+v", len(rows), rows)
	}
	if rows[0].Quantity != "20 kg" {
		t.Fatalf("unexpected quantity cell %q", rows[0].Quantity)
	}
	if rows[3].Label != "Bidon 5L" || rows[3].Quantity != "80 u" {
		t.Fatalf("unexpected packaging row: %+v", rows[3])
	}
	if rows[4].Label != "Total" || rows[4].Total != "$ 233560.00" {
		t.Fatalf("unexpected totals row: %+v", rows[4])
	}
}
