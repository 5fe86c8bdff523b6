package linker

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/models"
)

func newTestLinker() *Linker {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewLinker(logger, 50)
}

func record(street, number, postal string) models.PropertyRecord {
	rec := models.NewPropertyRecord()
	rec.Street = street
	rec.HouseNumber = number
	rec.PostalCode = postal
	rec.City = "Amsterdam"
	rec.AddressFull = street + " " + number + ", " + postal + " Amsterdam"
	return rec
}

func floatPtr(v float64) *float64 { return &v }

func TestLink(t *testing.T) {
	primary := record("Keizersgracht", "10", "1015CJ")

	tests := []struct {
		name          string
		secondary     []models.PropertyRecord
		expectedType  models.MatchType
		expectedScore float64
		expectedNotes string
		expectedAddr  string
	}{
		{
			name: "exact wins over an earlier fuzzy candidate",
			secondary: []models.PropertyRecord{
				record("Keizersgracht", "12", "1015CJ"),
				record("Keizersgracht", "10", "1015CJ"),
			},
			expectedType:  models.MatchExact,
			expectedScore: 100,
			expectedNotes: "Exact match: Keizersgracht 10, 1015CJ Amsterdam",
			expectedAddr:  "Keizersgracht 10, 1015CJ Amsterdam",
		},
		{
			name: "best fuzzy candidate above threshold",
			secondary: []models.PropertyRecord{
				record("Prinsengracht", "14", "1015CJ"),
				record("Keizersgracht", "12", "1015CJ"),
			},
			expectedType:  models.MatchFuzzy,
			expectedScore: 75,
			expectedNotes: "Fuzzy match (75.0%): Keizersgracht 12, 1015CJ Amsterdam",
			expectedAddr:  "Keizersgracht 12, 1015CJ Amsterdam",
		},
		{
			name: "ties keep the earliest candidate",
			secondary: []models.PropertyRecord{
				record("Keizersgracht", "12", "1015CJ"),
				record("Keizersgracht", "14", "1015CJ"),
			},
			expectedType:  models.MatchFuzzy,
			expectedScore: 75,
			expectedNotes: "Fuzzy match (75.0%): Keizersgracht 12, 1015CJ Amsterdam",
			expectedAddr:  "Keizersgracht 12, 1015CJ Amsterdam",
		},
		{
			name: "overlap of exactly fifty percent is rejected",
			secondary: []models.PropertyRecord{
				record("Prinsengracht", "20", "1015CJ"),
			},
			expectedType:  models.MatchNone,
			expectedNotes: "No match found",
		},
		{
			name:          "empty secondary",
			secondary:     nil,
			expectedType:  models.MatchNone,
			expectedNotes: "No match found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merged := newTestLinker().Link([]models.PropertyRecord{primary}, tt.secondary)
			require.Len(t, merged, 1)

			m := merged[0]
			assert.Equal(t, tt.expectedType, m.MatchType)
			assert.InDelta(t, tt.expectedScore, m.MatchScore, 1e-9)
			assert.Equal(t, tt.expectedNotes, m.MatchNotes)
			assert.Equal(t, primary.AddressFull, m.AddressFull)

			if tt.expectedType == models.MatchNone {
				assert.Nil(t, m.Secondary)
				return
			}
			require.NotNil(t, m.Secondary)
			assert.Equal(t, tt.expectedAddr, m.Secondary.AddressFull)
		})
	}
}

func TestLinkSharesSecondary(t *testing.T) {
	primary := []models.PropertyRecord{
		record("Keizersgracht", "10", "1015CJ"),
		record("Keizersgracht", "12", "1015CJ"),
	}
	secondary := []models.PropertyRecord{record("Keizersgracht", "10", "1015CJ")}

	merged := newTestLinker().Link(primary, secondary)
	require.Len(t, merged, 2)
	assert.Equal(t, models.MatchExact, merged[0].MatchType)
	assert.Equal(t, models.MatchFuzzy, merged[1].MatchType)
	for _, m := range merged {
		require.NotNil(t, m.Secondary)
		assert.Equal(t, secondary[0].AddressFull, m.Secondary.AddressFull)
	}

	outer := newTestLinker().LinkOuter(primary, secondary)
	require.Len(t, outer, 2)
	assert.Equal(t, models.MatchBoth, outer[1].MatchType)
}

func TestLinkRejectsInvalidSecondary(t *testing.T) {
	bad := record("Keizersgracht", "10", "1015CJ")
	bad.AreaM2 = floatPtr(0)

	merged := newTestLinker().Link([]models.PropertyRecord{record("Keizersgracht", "10", "1015CJ")}, []models.PropertyRecord{bad})

	require.Len(t, merged, 1)
	assert.Equal(t, models.MatchNone, merged[0].MatchType)
	assert.Nil(t, merged[0].Secondary)
	assert.Contains(t, merged[0].MatchNotes, "Rejected")
}

func TestLinkCopiesSecondary(t *testing.T) {
	rw := record("Keizersgracht", "10", "1015CJ")
	rw.AreaM2 = floatPtr(82)
	secondary := []models.PropertyRecord{rw}

	merged := newTestLinker().Link([]models.PropertyRecord{record("Keizersgracht", "10", "1015CJ")}, secondary)
	require.NotNil(t, merged[0].Secondary)

	*secondary[0].AreaM2 = 999
	assert.Equal(t, 82.0, *merged[0].Secondary.AreaM2)
	assert.Equal(t, 82.0, *merged[0].Area())
}

func TestLinkEmptyPrimary(t *testing.T) {
	merged := newTestLinker().Link(nil, []models.PropertyRecord{record("Keizersgracht", "10", "1015CJ")})
	assert.Empty(t, merged)
}

func TestLinkOuter(t *testing.T) {
	primary := []models.PropertyRecord{
		record("Keizersgracht", "10", "1015CJ"),
		record("Damrak", "1", "1012LG"),
	}
	secondary := []models.PropertyRecord{
		record("Keizersgracht", "10", "1015CJ"),
		record("Lauriergracht", "7", "1016RG"),
	}

	merged := newTestLinker().LinkOuter(primary, secondary)

	require.Len(t, merged, 3)
	assert.Equal(t, models.MatchBoth, merged[0].MatchType)
	assert.NotNil(t, merged[0].Secondary)
	assert.Equal(t, models.MatchPrimaryOnly, merged[1].MatchType)
	assert.Nil(t, merged[1].Secondary)
	assert.Equal(t, models.MatchSecondaryOnly, merged[2].MatchType)
	require.NotNil(t, merged[2].Secondary)
	assert.Equal(t, "Lauriergracht 7, 1016RG Amsterdam", merged[2].AddressFull)

	assert.Equal(t, map[models.MatchType]int{
		models.MatchBoth:          1,
		models.MatchPrimaryOnly:   1,
		models.MatchSecondaryOnly: 1,
	}, Summary(merged))
}

func TestDedup(t *testing.T) {
	first := record("Keizersgracht", "10", "1015CJ")
	first.URL = "first"
	second := record("KEIZERSGRACHT", "10", "1015 CJ")
	second.URL = "second"
	empty := models.NewPropertyRecord()

	l := newTestLinker()
	deduped := l.Dedup([]models.PropertyRecord{first, second, empty, record("Damrak", "1", "1012LG")})

	require.Len(t, deduped, 2)
	assert.Equal(t, "first", deduped[0].URL)
	assert.Equal(t, "Damrak", deduped[1].Street)

	assert.Equal(t, deduped, l.Dedup(deduped))
	assert.Empty(t, l.Dedup(nil))
}

func TestKeyFallsBackToFullAddress(t *testing.T) {
	fromFields := Key(record("Keizersgracht", "10", "1015CJ"))
	fromString := Key(models.PropertyRecord{AddressFull: "Keizersgracht 10, 1015 CJ Amsterdam"})
	assert.Equal(t, fromFields, fromString)
}
