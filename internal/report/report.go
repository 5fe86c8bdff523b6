// Package report renders a ranked shortlist as a spreadsheet and a PDF.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/models"
	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/scoring"
)

const (
	SpreadsheetFile = "top15_woningen.xlsx"
	DocumentFile    = "top15_rapport.pdf"

	fundaBaseURL = "https://www.funda.nl"
	unknown      = "Onbekend"
	headerColor  = "366092"
)

// Artifacts are the paths of the written report files.
type Artifacts struct {
	Spreadsheet string `json:"spreadsheet"`
	Document    string `json:"document"`
}

type Renderer struct {
	logger  *logrus.Logger
	printer *message.Printer
}

func NewRenderer(logger *logrus.Logger) *Renderer {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	return &Renderer{
		logger:  logger,
		printer: message.NewPrinter(language.Dutch),
	}
}

// Render writes both artifacts into outDir. The reference may be nil.
// An empty shortlist still yields a valid pair of files.
func (r *Renderer) Render(shortlist []models.SimilarityResult, ref *models.ReferenceProperty, outDir string) (Artifacts, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return Artifacts{}, fmt.Errorf("failed to create report directory: %w", err)
	}

	artifacts := Artifacts{
		Spreadsheet: filepath.Join(outDir, SpreadsheetFile),
		Document:    filepath.Join(outDir, DocumentFile),
	}

	rows := make([]row, 0, len(shortlist))
	for i, res := range shortlist {
		rows = append(rows, newRow(i+1, res))
	}
	summary := scoring.Summary(shortlist)

	if err := r.writeSpreadsheet(artifacts.Spreadsheet, rows, ref); err != nil {
		return Artifacts{}, err
	}
	if err := r.writeDocument(artifacts.Document, rows, ref, summary); err != nil {
		return Artifacts{}, err
	}

	r.logger.WithFields(logrus.Fields{
		"properties":  len(rows),
		"spreadsheet": artifacts.Spreadsheet,
		"document":    artifacts.Document,
	}).Info("Rendered report")
	return artifacts, nil
}

// row is one shortlisted property with the display values resolved.
type row struct {
	Number      int
	Address     string
	SalePrice   *float64
	AreaM2      *float64
	Rooms       *int
	Bedrooms    *int
	Bathrooms   *int
	YearBuilt   *int
	Type        string
	Subtype     string
	Garden      bool
	Balcony     bool
	Terrace     bool
	Inside      string
	Outside     string
	EnergyLabel string
	PricePerM2  *float64
	Score       float64
	MatchType   string
	Link        string
}

func newRow(number int, res models.SimilarityResult) row {
	rec := res.Record
	detail := rec.Detail()

	out := row{
		Number:      number,
		Address:     rec.AddressFull,
		SalePrice:   rec.SalePrice(),
		AreaM2:      rec.Area(),
		Rooms:       rec.Rooms(),
		Bedrooms:    rec.Bedrooms(),
		Bathrooms:   rec.Bathrooms(),
		YearBuilt:   rec.YearBuilt(),
		Type:        detail.Type,
		Subtype:     detail.Subtype,
		Garden:      rec.HasGarden(),
		Balcony:     detail.HasBalcony,
		Terrace:     detail.HasTerrace,
		Inside:      detail.MaintenanceInside,
		Outside:     detail.MaintenanceOutside,
		EnergyLabel: rec.EnergyLabel(),
		Score:       res.FinalScore,
		MatchType:   string(rec.MatchType),
		Link:        fundaLink(rec.URL),
	}
	if out.SalePrice != nil && out.AreaM2 != nil && *out.AreaM2 > 0 {
		v := *out.SalePrice / *out.AreaM2
		out.PricePerM2 = &v
	}
	return out
}

func fundaLink(url string) string {
	url = strings.TrimSpace(url)
	switch {
	case url == "":
		return ""
	case strings.HasPrefix(url, "/"):
		return fundaBaseURL + url
	default:
		return url
	}
}

func (r *Renderer) euro(v *float64) string {
	if v == nil || *v <= 0 {
		return unknown
	}
	return r.printer.Sprintf("€ %.0f", *v)
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return unknown
	}
	return s
}

func intText(v *int) string {
	if v == nil || *v <= 0 {
		return unknown
	}
	return strconv.Itoa(*v)
}

func areaText(v *float64) string {
	if v == nil || *v <= 0 {
		return unknown
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func yesNo(b bool) string {
	if b {
		return "Ja"
	}
	return "Nee"
}

func energyText(label string) string {
	if models.EnergyLabelIndex(label) < 0 {
		return "ONBEKEND"
	}
	return strings.ToUpper(label)
}
