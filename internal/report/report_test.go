package report

import (
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/models"
)

func float(v float64) *float64 { return &v }
func integer(v int) *int       { return &v }

func shortlist() []models.SimilarityResult {
	linked := models.MergedRecord{PropertyRecord: models.NewPropertyRecord(), MatchType: models.MatchExact}
	linked.AddressFull = "Herengracht 12, 1015 BN Amsterdam"
	linked.URL = "/koop/amsterdam/huis-12/"
	detail := models.NewPropertyRecord()
	detail.SalePrice = float(900000)
	detail.AreaM2 = float(90)
	detail.Rooms = integer(4)
	detail.EnergyLabel = "B"
	detail.HasTerrace = true
	detail.MaintenanceInside = "goed"
	linked.Secondary = &detail

	plain := models.MergedRecord{PropertyRecord: models.NewPropertyRecord(), MatchType: models.MatchNone}
	plain.AddressFull = "Kerkstraat 3, 1017 GB Amsterdam"

	return []models.SimilarityResult{
		{Record: linked, Rank: 1, FinalScore: 0.91},
		{Record: plain, Rank: 2, FinalScore: 0.55},
	}
}

func reference() *models.ReferenceProperty {
	return &models.ReferenceProperty{
		AddressFull: "Keizersgracht 100, 1015 CV Amsterdam",
		AreaM2:      float(100),
		EnergyLabel: "A",
	}
}

func newTestRenderer() *Renderer {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewRenderer(logger)
}

func TestRender(t *testing.T) {
	dir := t.TempDir()
	artifacts, err := newTestRenderer().Render(shortlist(), reference(), dir)
	require.NoError(t, err)

	f, err := excelize.OpenFile(artifacts.Spreadsheet)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{shortlistSheet, referenceSheet}, f.GetSheetList())

	rows, err := f.GetRows(shortlistSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, spreadsheetHeaders, rows[0])
	assert.Equal(t, "Herengracht 12, 1015 BN Amsterdam", rows[1][1])
	assert.Equal(t, "4", rows[1][4])
	assert.Equal(t, "Ja", rows[1][12])
	assert.Equal(t, "B", rows[1][15])
	assert.Equal(t, "0.91", rows[1][17])
	assert.Equal(t, "https://www.funda.nl/koop/amsterdam/huis-12/", rows[1][19])

	assert.Equal(t, unknown, rows[2][2])
	assert.Equal(t, "ONBEKEND", rows[2][15])
	assert.Equal(t, "Geen link", rows[2][19])

	refRows, err := f.GetRows(referenceSheet)
	require.NoError(t, err)
	assert.Equal(t, []string{"Adres", "Keizersgracht 100, 1015 CV Amsterdam"}, refRows[1])

	assertPDF(t, artifacts.Document)
}

func TestRenderEmptyShortlist(t *testing.T) {
	dir := t.TempDir()
	artifacts, err := newTestRenderer().Render(nil, nil, dir)
	require.NoError(t, err)

	f, err := excelize.OpenFile(artifacts.Spreadsheet)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(shortlistSheet)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, spreadsheetHeaders, rows[0])

	assertPDF(t, artifacts.Document)
}

func assertPDF(t *testing.T, path string) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Greater(t, len(data), 4)
	assert.Equal(t, "%PDF", string(data[:4]))
}

func TestNewRow(t *testing.T) {
	rw := newRow(1, shortlist()[0])
	require.NotNil(t, rw.PricePerM2)
	assert.Equal(t, 10000.0, *rw.PricePerM2)
	assert.Equal(t, "exact", rw.MatchType)
	assert.True(t, rw.Terrace)

	rw = newRow(2, shortlist()[1])
	assert.Nil(t, rw.PricePerM2)
	assert.Empty(t, rw.Link)
}

func TestDisplayHelpers(t *testing.T) {
	r := newTestRenderer()
	assert.Equal(t, unknown, r.euro(nil))
	assert.Equal(t, unknown, r.euro(float(0)))
	assert.Contains(t, r.euro(float(1250000)), "€")

	assert.Equal(t, unknown, intText(nil))
	assert.Equal(t, "3", intText(integer(3)))
	assert.Equal(t, "82.5", areaText(float(82.5)))
	assert.Equal(t, "https://example.com/x", fundaLink("https://example.com/x"))
	assert.Equal(t, "Keizersgr…", truncate("Keizersgracht", 10))
	assert.Equal(t, "Nee", yesNo(false))
}
