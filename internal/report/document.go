package report

import (
	"fmt"

	"github.com/go-pdf/fpdf"

	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/models"
	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/scoring"
)

// RGB of headerColor
var headerRGB = [3]int{0x36, 0x60, 0x92}

var overviewColumns = []struct {
	title string
	width float64
}{
	{"#", 10},
	{"Adres", 80},
	{"Verkoopprijs", 35},
	{"Oppervlakte (m²)", 35},
	{"Score", 20},
}

func (r *Renderer) writeDocument(path string, rows []row, ref *models.ReferenceProperty, summary scoring.ShortlistSummary) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Top 15 woningmatches", true)
	pdf.SetAutoPageBreak(true, 15)
	// Core fonts are cp1252; the translator maps € and ² onto it.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 22)
	pdf.SetTextColor(headerRGB[0], headerRGB[1], headerRGB[2])
	pdf.CellFormat(0, 14, tr("TOP 15 WONINGMATCHES"), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 13)
	pdf.SetTextColor(0x66, 0x66, 0x66)
	pdf.CellFormat(0, 9, tr("Gebaseerd op Funda + Realworks data"), "", 1, "C", false, 0, "")
	pdf.Ln(6)

	r.factsTable(pdf, tr, "Referentie", r.referenceFacts(ref))
	pdf.Ln(6)

	if len(rows) == 0 {
		pdf.SetFont("Helvetica", "I", 12)
		pdf.SetTextColor(0, 0, 0)
		pdf.CellFormat(0, 10, tr("Geen vergelijkbare woningen gevonden."), "", 1, "C", false, 0, "")
		return r.save(pdf, path)
	}

	if summary.AveragePricePerM2 > 0 {
		pdf.SetFont("Helvetica", "B", 13)
		pdf.SetTextColor(headerRGB[0], headerRGB[1], headerRGB[2])
		if ref != nil && ref.AreaM2 != nil && *ref.AreaM2 > 0 {
			advice := summary.AveragePricePerM2 * *ref.AreaM2
			pdf.CellFormat(0, 9, tr("BEREKENDE ADVIESPRIJS: "+r.euro(&advice)), "", 1, "C", false, 0, "")
		}
		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(0, 0, 0)
		pdf.CellFormat(0, 7, tr("Gemiddelde prijs per m²: "+r.euro(&summary.AveragePricePerM2)), "", 1, "C", false, 0, "")
		pdf.Ln(4)
	}

	r.overviewTable(pdf, tr, rows)

	for _, rw := range rows {
		pdf.AddPage()
		pdf.SetFont("Helvetica", "B", 14)
		pdf.SetTextColor(0, 0, 0)
		pdf.MultiCell(0, 8, tr(fmt.Sprintf("%d. %s", rw.Number, rw.Address)), "", "L", false)
		pdf.Ln(4)
		r.comparisonTable(pdf, tr, rw, ref)
		pdf.Ln(6)
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(30, 6, tr("Bekijk op Funda:"), "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		if rw.Link == "" {
			pdf.CellFormat(0, 6, tr("Geen link beschikbaar"), "", 1, "L", false, 0, "")
		} else {
			pdf.SetTextColor(0, 0, 0xCC)
			pdf.CellFormat(0, 6, tr(rw.Link), "", 1, "L", false, 0, rw.Link)
		}
	}

	return r.save(pdf, path)
}

func (r *Renderer) save(pdf *fpdf.Fpdf, path string) error {
	if err := pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

func headerCells(pdf *fpdf.Fpdf) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(headerRGB[0], headerRGB[1], headerRGB[2])
	pdf.SetTextColor(0xFF, 0xFF, 0xFF)
}

func bodyCells(pdf *fpdf.Fpdf, i int) {
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(0, 0, 0)
	if i%2 == 0 {
		pdf.SetFillColor(0xFF, 0xFF, 0xFF)
	} else {
		pdf.SetFillColor(0xD3, 0xD3, 0xD3)
	}
}

func (r *Renderer) overviewTable(pdf *fpdf.Fpdf, tr func(string) string, rows []row) {
	headerCells(pdf)
	for _, c := range overviewColumns {
		pdf.CellFormat(c.width, 8, tr(c.title), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	for i, rw := range rows {
		bodyCells(pdf, i)
		cells := []string{
			fmt.Sprint(rw.Number),
			truncate(rw.Address, 45),
			r.euro(rw.SalePrice),
			areaText(rw.AreaM2),
			fmt.Sprintf("%.2f", rw.Score),
		}
		for j, c := range overviewColumns {
			pdf.CellFormat(c.width, 7, tr(cells[j]), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
	}
}

func (r *Renderer) factsTable(pdf *fpdf.Fpdf, tr func(string) string, title string, facts [][2]string) {
	headerCells(pdf)
	pdf.CellFormat(60, 8, tr("Eigenschap"), "1", 0, "C", true, 0, "")
	pdf.CellFormat(120, 8, tr(title), "1", 1, "C", true, 0, "")
	for i, f := range facts {
		bodyCells(pdf, i)
		pdf.CellFormat(60, 7, tr(f[0]), "1", 0, "L", true, 0, "")
		pdf.CellFormat(120, 7, tr(truncate(f[1], 70)), "1", 1, "L", true, 0, "")
	}
}

func (r *Renderer) comparisonTable(pdf *fpdf.Fpdf, tr func(string) string, rw row, ref *models.ReferenceProperty) {
	refFacts := map[string]string{}
	for _, f := range r.referenceFacts(ref) {
		refFacts[f[0]] = f[1]
	}
	refValue := func(key string) string {
		if v, ok := refFacts[key]; ok {
			return v
		}
		return unknown
	}

	lines := [][3]string{
		{"Adres", refValue("Adres"), rw.Address},
		{"Verkoopprijs", refValue("Verkoopprijs"), r.euro(rw.SalePrice)},
		{"Oppervlakte (m²)", refValue("Oppervlakte (m²)"), areaText(rw.AreaM2)},
		{"Kamers", refValue("Kamers"), intText(rw.Rooms)},
		{"Slaapkamers", refValue("Slaapkamers"), intText(rw.Bedrooms)},
		{"Badkamers", unknown, intText(rw.Bathrooms)},
		{"Bouwjaar", refValue("Bouwjaar"), intText(rw.YearBuilt)},
		{"Energielabel", refValue("Energielabel"), energyText(rw.EnergyLabel)},
		{"Tuin", refValue("Tuin"), yesNo(rw.Garden)},
		{"Balkon", refValue("Balkon"), yesNo(rw.Balcony)},
		{"Terras", refValue("Terras"), yesNo(rw.Terrace)},
		{"Onderhoud binnen", unknown, orUnknown(rw.Inside)},
		{"Onderhoud buiten", unknown, orUnknown(rw.Outside)},
		{"Prijs per m²", unknown, r.euro(rw.PricePerM2)},
		{"Score", "", fmt.Sprintf("%.2f", rw.Score)},
		{"Match Type", "", rw.MatchType},
	}

	headerCells(pdf)
	for _, h := range []string{"Eigenschap", "Referentie", "Huidig pand"} {
		pdf.CellFormat(60, 8, tr(h), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
	for i, l := range lines {
		bodyCells(pdf, i)
		for _, v := range l {
			pdf.CellFormat(60, 7, tr(truncate(v, 34)), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if n <= 0 || len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
