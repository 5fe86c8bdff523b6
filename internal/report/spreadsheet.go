package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/models"
)

const (
	shortlistSheet = "Top 15 Woningen"
	referenceSheet = "Referentie"
)

var spreadsheetHeaders = []string{
	"#",
	"Adres",
	"Verkoopprijs",
	"Woonoppervlakte (m²)",
	"Kamers",
	"Slaapkamers",
	"Badkamers",
	"Bouwjaar",
	"Type",
	"Subtype",
	"Tuin",
	"Balkon",
	"Terras",
	"Onderhoud binnen",
	"Onderhoud buiten",
	"Energielabel",
	"Prijs per m²",
	"Score",
	"Match Type",
	"Funda Link",
}

var columnWidths = []float64{5, 35, 15, 18, 8, 12, 10, 10, 12, 15, 6, 8, 8, 15, 15, 12, 12, 8, 14, 50}

func (r *Renderer) writeSpreadsheet(path string, rows []row, ref *models.ReferenceProperty) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", shortlistSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{headerColor}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
		Border:    thinBorder(),
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	cellStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    thinBorder(),
	})
	if err != nil {
		return fmt.Errorf("failed to create cell style: %w", err)
	}

	header := make([]interface{}, len(spreadsheetHeaders))
	for i, h := range spreadsheetHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(shortlistSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, rw := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		values := []interface{}{
			rw.Number,
			rw.Address,
			r.euro(rw.SalePrice),
			areaText(rw.AreaM2),
			intText(rw.Rooms),
			intText(rw.Bedrooms),
			intText(rw.Bathrooms),
			intText(rw.YearBuilt),
			orUnknown(rw.Type),
			orUnknown(rw.Subtype),
			yesNo(rw.Garden),
			yesNo(rw.Balcony),
			yesNo(rw.Terrace),
			orUnknown(rw.Inside),
			orUnknown(rw.Outside),
			energyText(rw.EnergyLabel),
			r.euro(rw.PricePerM2),
			fmt.Sprintf("%.2f", rw.Score),
			rw.MatchType,
			linkText(rw.Link),
		}
		if err := f.SetSheetRow(shortlistSheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", rw.Number, err)
		}
	}

	lastCol, _ := excelize.ColumnNumberToName(len(spreadsheetHeaders))
	if err := f.SetCellStyle(shortlistSheet, "A1", lastCol+"1", headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}
	if len(rows) > 0 {
		last := fmt.Sprintf("%s%d", lastCol, len(rows)+1)
		if err := f.SetCellStyle(shortlistSheet, "A2", last, cellStyle); err != nil {
			return fmt.Errorf("failed to style rows: %w", err)
		}
	}
	for i, width := range columnWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(shortlistSheet, col, col, width); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}
	if err := f.SetPanes(shortlistSheet, &excelize.Panes{
		Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}

	if err := r.writeReferenceSheet(f, ref, headerStyle); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save spreadsheet: %w", err)
	}
	return nil
}

func (r *Renderer) writeReferenceSheet(f *excelize.File, ref *models.ReferenceProperty, headerStyle int) error {
	if _, err := f.NewSheet(referenceSheet); err != nil {
		return fmt.Errorf("failed to create reference sheet: %w", err)
	}

	pairs := [][]interface{}{{"Eigenschap", "Referentie"}}
	for _, p := range r.referenceFacts(ref) {
		pairs = append(pairs, []interface{}{p[0], p[1]})
	}
	for i, p := range pairs {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(referenceSheet, cell, &p); err != nil {
			return fmt.Errorf("failed to write reference row: %w", err)
		}
	}

	if err := f.SetCellStyle(referenceSheet, "A1", "B1", headerStyle); err != nil {
		return fmt.Errorf("failed to style reference header: %w", err)
	}
	if err := f.SetColWidth(referenceSheet, "A", "A", 22); err != nil {
		return err
	}
	return f.SetColWidth(referenceSheet, "B", "B", 45)
}

// referenceFacts lists the reference attributes shown in both artifacts.
func (r *Renderer) referenceFacts(ref *models.ReferenceProperty) [][2]string {
	if ref == nil {
		return [][2]string{{"Adres", unknown}}
	}
	return [][2]string{
		{"Adres", orUnknown(ref.AddressFull)},
		{"Buurt", orUnknown(ref.Neighbourhood)},
		{"Verkoopprijs", r.euro(ref.SalePrice)},
		{"Oppervlakte (m²)", areaText(ref.AreaM2)},
		{"Kamers", intText(ref.Rooms)},
		{"Slaapkamers", intText(ref.Bedrooms)},
		{"Bouwjaar", intText(ref.YearBuilt)},
		{"Energielabel", energyText(ref.EnergyLabel)},
		{"Tuin", yesNo(ref.HasGarden)},
		{"Balkon", yesNo(ref.HasBalcony)},
		{"Terras", yesNo(ref.HasTerrace)},
	}
}

func thinBorder() []excelize.Border {
	return []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
}

func linkText(link string) string {
	if link == "" {
		return "Geen link"
	}
	return link
}
