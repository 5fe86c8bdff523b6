package tables

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/models"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }
func strPtr(v string) *string     { return &v }

func sampleRecord() models.PropertyRecord {
	rec := models.NewPropertyRecord()
	rec.AddressFull = "Keizersgracht 10, 1015 CJ Amsterdam"
	rec.Street = "Keizersgracht"
	rec.HouseNumber = "10"
	rec.PostalCode = "1015CJ"
	rec.City = "Amsterdam"
	rec.SalePrice = floatPtr(525000)
	rec.AreaM2 = floatPtr(82.5)
	rec.Rooms = intPtr(3)
	rec.SaleDate = strPtr("2024-03-15")
	rec.HasBalcony = true
	rec.EnergyLabel = "A+"
	rec.Notes = "Erfpacht, afgekocht"
	return rec
}

func TestHeaders(t *testing.T) {
	merged := MergedHeader()
	assert.Equal(t, "address_full", merged[0])
	assert.Contains(t, merged, "rw_address_full")
	assert.Contains(t, merged, "rw_sale_price")
	assert.Equal(t, []string{"match_type", "match_score", "match_notes"}, merged[len(merged)-3:])

	shortlist := ShortlistHeader()
	assert.Equal(t, []string{"rank", "similarity_score", "final_score"}, shortlist[len(shortlist)-3:])
	assert.Len(t, shortlist, len(merged)+3)
}

func TestRecordsRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRecords(&buf, []models.PropertyRecord{sampleRecord()}))

	records, err := ReadRecords(&buf)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, sampleRecord(), records[0])
}

func TestMergedKeepsUnlinkedRowsEmpty(t *testing.T) {
	linked := sampleRecord()
	merged := []models.MergedRecord{
		{
			PropertyRecord: sampleRecord(),
			Secondary:      &linked,
			MatchType:      models.MatchExact,
			MatchScore:     100,
			MatchNotes:     "Exact match: Keizersgracht 10, 1015 CJ Amsterdam",
		},
		{
			PropertyRecord: models.PropertyRecord{AddressFull: "Damrak 1, 1012 LG Amsterdam", EnergyLabel: models.UnknownEnergyLabel},
			MatchType:      models.MatchNone,
			MatchNotes:     "No match found",
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteMerged(&buf, merged))

	got, err := ReadMerged(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, models.MatchExact, got[0].MatchType)
	require.NotNil(t, got[0].Secondary)
	assert.Equal(t, 525000.0, *got[0].Secondary.SalePrice)
	assert.Equal(t, merged[0].MatchNotes, got[0].MatchNotes)

	assert.Equal(t, models.MatchNone, got[1].MatchType)
	assert.Nil(t, got[1].Secondary)
	assert.Nil(t, got[1].PropertyRecord.SalePrice)
}

func TestShortlistRoundTrip(t *testing.T) {
	results := []models.SimilarityResult{
		{Record: models.MergedRecord{PropertyRecord: sampleRecord(), MatchType: models.MatchNone}, Rank: 1, SimilarityScore: 0.91, FinalScore: 0.93},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteShortlist(&buf, results))

	got, err := ReadShortlist(&buf)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Rank)
	assert.Equal(t, 0.91, got[0].SimilarityScore)
	assert.Equal(t, 0.93, got[0].FinalScore)
	assert.Equal(t, "Keizersgracht 10, 1015 CJ Amsterdam", got[0].Record.AddressFull)
}

func TestReadRejectsBadNumber(t *testing.T) {
	_, err := ReadRecords(strings.NewReader("address_full,sale_price\nX,veel\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")
	assert.Contains(t, err.Error(), "sale_price")
}

func TestJSONFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "result.json")
	require.NoError(t, WriteJSON(path, map[string]string{"status": "success"}))

	var got map[string]string
	require.NoError(t, ReadJSON(path, &got))
	assert.Equal(t, "success", got["status"])

	assert.Error(t, ReadJSON(filepath.Join(t.TempDir(), "missing.json"), &got))
}

func TestFileHelpers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "records.csv")
	records := []models.PropertyRecord{sampleRecord()}
	require.NoError(t, WriteFile(path, func(w io.Writer) error { return WriteRecords(w, records) }))

	got, err := ReadFile(path, ReadRecords)
	require.NoError(t, err)
	assert.Equal(t, records, got)
}
