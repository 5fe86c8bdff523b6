package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jntvanlanschot/Vastgoedanalyse/config"
	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/database"
	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/models"
)

const exportText = `Keizersgracht 10, 1015 CJ Amsterdam
Type Appartement
Soort Bovenwoning
Transactieprijs: € 715.000,-
Woonoppervlakte 84 m²
Aantal kamers 3 (2 slaapkamers)
Energielabel B
Balkon aanwezig
Bouwjaar 1920`

func setupRouter(t *testing.T, db *database.Database) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	router := gin.New()
	SetupRoutes(router, NewHandler(db, cfg, logger))
	return router
}

func setupTestDB(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.NewDatabase(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())
	t.Cleanup(func() { db.Close() })
	return db
}

func perform(router *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func record(street, number, postal string, area float64) models.PropertyRecord {
	rec := models.NewPropertyRecord()
	rec.Street = street
	rec.HouseNumber = number
	rec.PostalCode = postal
	rec.City = "Amsterdam"
	rec.AddressFull = street + " " + number + ", " + postal + " Amsterdam"
	rec.AreaM2 = &area
	return rec
}

func TestParseExport(t *testing.T) {
	router := setupRouter(t, nil)
	doc := `{\rtf1\ansi ` + strings.ReplaceAll(exportText, "\n", `\par`+"\n") + `}`

	rr := perform(router, http.MethodPost, "/api/parse?source=test.rtf", []byte(doc))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp ParseResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Records, 1)
	assert.Equal(t, "Keizersgracht", resp.Records[0].Street)
	assert.Equal(t, "10", resp.Records[0].HouseNumber)
	require.NotNil(t, resp.Records[0].SalePrice)
	assert.Equal(t, 715000.0, *resp.Records[0].SalePrice)
	assert.Zero(t, resp.FailedSegments)
}

func TestParseExportEmptyBody(t *testing.T) {
	rr := perform(setupRouter(t, nil), http.MethodPost, "/api/parse", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLinkRecords(t *testing.T) {
	router := setupRouter(t, nil)
	body, err := json.Marshal(LinkRequest{
		Primary: []models.PropertyRecord{
			record("Keizersgracht", "10", "1015CJ", 84),
			record("Kerkstraat", "3", "1017GB", 50),
		},
		Secondary: []models.PropertyRecord{record("Keizersgracht", "10", "1015CJ", 85)},
	})
	require.NoError(t, err)

	rr := perform(router, http.MethodPost, "/api/link", body)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp LinkResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Records, 2)
	assert.Equal(t, models.MatchExact, resp.Records[0].MatchType)
	assert.Equal(t, models.MatchNone, resp.Records[1].MatchType)
	assert.Equal(t, 1, resp.MatchSummary[models.MatchExact])
	assert.Equal(t, 1, resp.MatchSummary[models.MatchNone])
}

func TestLinkRecordsOuter(t *testing.T) {
	router := setupRouter(t, nil)
	body, err := json.Marshal(LinkRequest{
		Primary: []models.PropertyRecord{
			record("Keizersgracht", "10", "1015CJ", 84),
			record("Kerkstraat", "3", "1017GB", 50),
		},
		Secondary: []models.PropertyRecord{
			record("Keizersgracht", "10", "1015CJ", 85),
			record("Damrak", "1", "1012LG", 70),
		},
		Outer: true,
	})
	require.NoError(t, err)

	rr := perform(router, http.MethodPost, "/api/link", body)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp LinkResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Records, 3)
	assert.Equal(t, models.MatchBoth, resp.Records[0].MatchType)
	assert.Equal(t, models.MatchPrimaryOnly, resp.Records[1].MatchType)
	assert.Equal(t, models.MatchSecondaryOnly, resp.Records[2].MatchType)
	assert.Equal(t, "Damrak", resp.Records[2].Street)
	assert.Equal(t, map[models.MatchType]int{
		models.MatchBoth:          1,
		models.MatchPrimaryOnly:   1,
		models.MatchSecondaryOnly: 1,
	}, resp.MatchSummary)
}

func TestBadRequests(t *testing.T) {
	router := setupRouter(t, nil)

	tests := []struct {
		name string
		path string
		body string
	}{
		{name: "link invalid json", path: "/api/link", body: `{"primary":`},
		{name: "link without primary", path: "/api/link", body: `{"secondary": []}`},
		{name: "score without reference", path: "/api/score", body: `{"candidates": []}`},
		{name: "score reference without street", path: "/api/score", body: `{"reference": {"area_m2": 80}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := perform(router, http.MethodPost, tt.path, []byte(tt.body))
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Contains(t, rr.Body.String(), "error")
		})
	}
}

func TestScoreCandidates(t *testing.T) {
	router := setupRouter(t, nil)

	self := models.MergedRecord{PropertyRecord: record("Keizersgracht", "100", "1015CV", 100), MatchType: models.MatchNone}
	other := models.MergedRecord{PropertyRecord: record("Herengracht", "5", "1015BA", 95), MatchType: models.MatchNone}
	candidates, err := json.Marshal([]models.MergedRecord{self, other})
	require.NoError(t, err)

	body := `{"reference": {"address_full": "Keizersgracht 100, 1015 CV Amsterdam", "area_m2": 100}, "candidates": ` + string(candidates) + `}`
	rr := perform(router, http.MethodPost, "/api/score", []byte(body))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp ScoreResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "Herengracht", resp.Results[0].Record.Street)
	assert.Equal(t, 1, resp.Results[0].Rank)
	assert.Equal(t, 1, resp.Summary.Count)
}

func TestRunsWithoutDatabase(t *testing.T) {
	router := setupRouter(t, nil)
	for _, path := range []string{"/api/runs", "/api/runs/abc/merged", "/api/runs/abc/shortlist"} {
		rr := perform(router, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code, path)
	}
}

func TestRunEndpoints(t *testing.T) {
	db := setupTestDB(t)
	router := setupRouter(t, db)

	run, err := db.CreateRun("merge", "Keizersgracht 100, 1015 CV Amsterdam")
	require.NoError(t, err)

	linked := models.MergedRecord{PropertyRecord: record("Keizersgracht", "10", "1015CJ", 84), MatchType: models.MatchExact, MatchScore: 100}
	secondary := record("Keizersgracht", "10", "1015CJ", 85)
	linked.Secondary = &secondary
	plain := models.MergedRecord{PropertyRecord: record("Kerkstraat", "3", "1017GB", 50), MatchType: models.MatchNone}
	require.NoError(t, db.SaveMergedBatch(run.ID, []models.MergedRecord{linked, plain}))
	require.NoError(t, db.SaveShortlist(run.ID, []models.SimilarityResult{{Record: linked, Rank: 1, FinalScore: 0.8}}))

	t.Run("list runs", func(t *testing.T) {
		rr := perform(router, http.MethodGet, "/api/runs", nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var runs []database.Run
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &runs))
		require.Len(t, runs, 1)
		assert.Equal(t, run.ID, runs[0].ID)
	})

	t.Run("invalid limit", func(t *testing.T) {
		rr := perform(router, http.MethodGet, "/api/runs?limit=zero", nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("merged filtered by match type", func(t *testing.T) {
		rr := perform(router, http.MethodGet, "/api/runs/"+run.ID+"/merged?match_type=exact", nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var records []models.MergedRecord
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &records))
		require.Len(t, records, 1)
		assert.Equal(t, "Keizersgracht", records[0].Street)
		require.NotNil(t, records[0].Secondary)
	})

	t.Run("shortlist", func(t *testing.T) {
		rr := perform(router, http.MethodGet, "/api/runs/"+run.ID+"/shortlist", nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var results []models.SimilarityResult
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &results))
		require.Len(t, results, 1)
		assert.Equal(t, 1, results[0].Rank)
	})

	t.Run("unknown run", func(t *testing.T) {
		for _, path := range []string{"/api/runs/missing/merged", "/api/runs/missing/shortlist"} {
			rr := perform(router, http.MethodGet, path, nil)
			assert.Equal(t, http.StatusNotFound, rr.Code, path)
		}
	})
}

func TestHealth(t *testing.T) {
	rr := perform(setupRouter(t, nil), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}
