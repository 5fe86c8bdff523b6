package pipeline

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Jntvanlanschot/Vastgoedanalyse/config"
	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/database"
	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/models"
	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/streets"
	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/tables"
)

const listings = "address/street_name,address/house_number,address/house_number_suffix,address/postal_code,address/city,price/selling_price/0,floor_area/0,number_of_rooms,number_of_bedrooms,energy_label,object_detail_page_relative_url\n" +
	"Keizersgracht,100,,1015 CV,Amsterdam,1000000,100,4,2,A,/koop/keizersgracht-100/\n" +
	"Keizersgracht,10,,1015 CJ,Amsterdam,700000,82,3,2,B,/koop/keizersgracht-10/\n" +
	"Keizersgracht,20,,1015 CR,Amsterdam,950000,150,4,3,C,/koop/keizersgracht-20/\n" +
	"Herengracht,5,,1015 BA,Amsterdam,800000,95,4,2,B,/koop/herengracht-5/\n" +
	"Herengracht,7,,1016 BC,Amsterdam,820000,90,3,2,A,/koop/herengracht-7/\n" +
	"Kerkstraat,3,,1017 GB,Amsterdam,400000,50,2,1,D,/koop/kerkstraat-3/\n" +
	"Kerkstraat,3,,1017 GB,Amsterdam,400000,50,2,1,D,/koop/kerkstraat-3/\n"

const exportText = `Keizersgracht 10, 1015 CJ Amsterdam
Type Appartement
Soort Bovenwoning
Transactieprijs: € 715.000,-
Woonoppervlakte 84 m²
Aantal kamers 3 (2 slaapkamers)
Energielabel B
Balkon aanwezig
Bouwjaar 1920
Herengracht 5, 1015 BA Amsterdam
Type Woonhuis
Transactieprijs: € 810.000,-
Woonoppervlakte 96 m²
Aantal kamers 4 (2 slaapkamers)
Energielabel B
Tuin Achtertuin 30 m²
Bouwjaar 1750`

type fixture struct {
	dir      string
	listings string
	rtfDir   string
	ref      *models.ReferenceProperty
	cfg      *config.Config
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()

	listingsPath := filepath.Join(dir, "funda.csv")
	require.NoError(t, os.WriteFile(listingsPath, []byte(listings), 0644))

	rtfDir := filepath.Join(dir, "exports")
	require.NoError(t, os.MkdirAll(rtfDir, 0755))
	doc := `{\rtf1\ansi ` + strings.ReplaceAll(exportText, "\n", `\par`+"\n") + `}`
	require.NoError(t, os.WriteFile(filepath.Join(rtfDir, "export.rtf"), []byte(doc), 0644))

	ref, err := config.ParseReference([]byte(`{"address_full": "Keizersgracht 100, 1015 CV Amsterdam", "area_m2": 100, "rooms": 4, "bedrooms": 2, "energy_label": "a"}`))
	require.NoError(t, err)

	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	cfg.OutputDir = filepath.Join(dir, "outputs")

	return fixture{dir: dir, listings: listingsPath, rtfDir: rtfDir, ref: ref, cfg: cfg}
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// MockRecorder is a mock implementation of Recorder
type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) Record(stage string, ref *models.ReferenceProperty, merged []models.MergedRecord, shortlist []models.SimilarityResult) (string, error) {
	args := m.Called(stage, ref, merged, shortlist)
	return args.String(0), args.Error(1)
}

type staticFinder struct {
	result *streets.Result
	err    error
	calls  int
}

func (f *staticFinder) FindSimilar(ctx context.Context, reference string, candidates []string) (*streets.Result, error) {
	f.calls++
	return f.result, f.err
}

func TestRun(t *testing.T) {
	fx := newFixture(t)
	res := New(fx.cfg, Dependencies{}, quietLogger()).Run(context.Background(), fx.listings, fx.rtfDir, fx.ref)
	require.True(t, res.OK(), res.Message)

	assert.Equal(t, "Keizersgracht", res.Streets.TopStreets[0])
	assert.Contains(t, res.Streets.TopStreets, "Herengracht")
	assert.NotContains(t, res.Streets.TopStreets, "Kerkstraat")
	assert.Equal(t, 6, res.Streets.TotalFundaRecords)

	assert.Equal(t, 2, res.Parse.ProcessedRecords)
	assert.Equal(t, 2, res.Parse.FilteredRecords)
	assert.ElementsMatch(t, []string{"Keizersgracht", "Herengracht"}, res.Parse.StreetsFound)

	assert.Equal(t, 2, res.Merge.MatchedRecords)
	assert.Equal(t, 5, res.Merge.Top15Count)
	for _, m := range res.Merge.Top15Matches {
		assert.NotEqual(t, "100", m.Record.HouseNumber)
	}
	assert.True(t, res.Merge.Top15Matches[0].Record.MatchType.Linked())

	assert.Equal(t, 5, res.Report.Properties)
	for _, name := range []string{BestStreetsFile, RankingFile, RealworksFile, FilteredFile, MergedFile, Top15File, "top15_woningen.xlsx", "top15_rapport.pdf"} {
		assert.FileExists(t, filepath.Join(fx.cfg.OutputDir, name))
	}

	top, err := LoadBestStreets(filepath.Join(fx.cfg.OutputDir, BestStreetsFile))
	require.NoError(t, err)
	assert.Equal(t, res.Streets.TopStreets, top)
}

func TestStageErrors(t *testing.T) {
	fx := newFixture(t)
	p := New(fx.cfg, Dependencies{}, quietLogger())
	missing := filepath.Join(fx.dir, "missing.csv")

	junk := filepath.Join(fx.dir, "junk.rtf")
	require.NoError(t, os.WriteFile(junk, []byte(`{\rtf1 geen adres hier}`), 0644))

	empty := filepath.Join(fx.dir, "empty.csv")
	require.NoError(t, os.WriteFile(empty, []byte("address/street_name,address/house_number\n"), 0644))

	tests := []struct {
		name   string
		result models.Result
	}{
		{name: "streets missing listings", result: p.Streets(context.Background(), missing, fx.ref).Result},
		{name: "streets without rows", result: p.Streets(context.Background(), empty, fx.ref).Result},
		{name: "parse without records", result: p.Parse([]string{junk}, nil).Result},
		{name: "parse missing input", result: p.Parse([]string{missing}, nil).Result},
		{name: "merge missing realworks", result: p.Merge(context.Background(), fx.listings, missing, fx.ref).Result},
		{name: "report missing shortlist", result: p.Report(missing, fx.ref).Result},
		{name: "rank missing merged file", result: p.Rank(context.Background(), missing, fx.ref).Result},
		{name: "rank empty merged file", result: p.Rank(context.Background(), empty, fx.ref).Result},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, models.StatusError, tt.result.Status)
			assert.NotEmpty(t, tt.result.Message)
		})
	}
}

func TestRunStopsAtFailingStage(t *testing.T) {
	fx := newFixture(t)
	emptyDir := filepath.Join(fx.dir, "no-exports")
	require.NoError(t, os.MkdirAll(emptyDir, 0755))

	res := New(fx.cfg, Dependencies{}, quietLogger()).Run(context.Background(), fx.listings, emptyDir, fx.ref)
	assert.False(t, res.OK())
	assert.Contains(t, res.Message, "step 2 failed")
	assert.True(t, res.Streets.OK())
	assert.Nil(t, res.Merge)
	assert.FileExists(t, filepath.Join(fx.cfg.OutputDir, BestStreetsFile))
}

func TestMergeRequireMatch(t *testing.T) {
	fx := newFixture(t)
	fx.cfg.Scoring.RequireMatch = true

	unrelated := filepath.Join(fx.dir, "realworks.csv")
	rec := models.NewPropertyRecord()
	rec.AddressFull = "Damrak 1, 1012 LG Amsterdam"
	rec.Street = "Damrak"
	rec.HouseNumber = "1"
	require.NoError(t, tables.WriteFile(unrelated, func(w io.Writer) error {
		return tables.WriteRecords(w, []models.PropertyRecord{rec})
	}))

	res := New(fx.cfg, Dependencies{}, quietLogger()).Merge(context.Background(), fx.listings, unrelated, fx.ref)
	assert.False(t, res.OK())
	assert.Contains(t, res.Message, "no matches found")
	assert.FileExists(t, res.MergedFile)
}

func TestMergeRecordsRun(t *testing.T) {
	fx := newFixture(t)
	p := New(fx.cfg, Dependencies{}, quietLogger())
	parsed := p.Parse([]string{fx.rtfDir}, nil)
	require.True(t, parsed.OK(), parsed.Message)

	recorder := &MockRecorder{}
	recorder.On("Record", "merge", fx.ref, mock.Anything, mock.Anything).Return("run-1", nil).Once()

	p = New(fx.cfg, Dependencies{Recorder: recorder}, quietLogger())
	res := p.Merge(context.Background(), fx.listings, parsed.RealworksFile, fx.ref)
	require.True(t, res.OK(), res.Message)
	assert.Equal(t, "run-1", res.RunID)
	recorder.AssertExpectations(t)

	// A failing recorder does not fail the stage.
	failing := &MockRecorder{}
	failing.On("Record", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("disk full"))
	res = New(fx.cfg, Dependencies{Recorder: failing}, quietLogger()).Merge(context.Background(), fx.listings, parsed.RealworksFile, fx.ref)
	assert.True(t, res.OK())
	assert.Empty(t, res.RunID)
}

func realworksWithUnmatched(t *testing.T, fx fixture) string {
	t.Helper()
	parsed := New(fx.cfg, Dependencies{}, quietLogger()).Parse([]string{fx.rtfDir}, nil)
	require.True(t, parsed.OK(), parsed.Message)

	records, err := tables.ReadFile(parsed.RealworksFile, tables.ReadRecords)
	require.NoError(t, err)

	extra := models.NewPropertyRecord()
	extra.AddressFull = "Damrak 1, 1012 LG Amsterdam"
	extra.Street = "Damrak"
	extra.HouseNumber = "1"
	extra.PostalCode = "1012LG"
	extra.City = "Amsterdam"
	area := 70.0
	extra.AreaM2 = &area
	records = append(records, extra)

	path := filepath.Join(fx.dir, "realworks_extra.csv")
	require.NoError(t, tables.WriteFile(path, func(w io.Writer) error {
		return tables.WriteRecords(w, records)
	}))
	return path
}

func TestMergeOuterLink(t *testing.T) {
	fx := newFixture(t)
	realworks := realworksWithUnmatched(t, fx)
	fx.cfg.Linker.Outer = true

	res := New(fx.cfg, Dependencies{}, quietLogger()).Merge(context.Background(), fx.listings, realworks, fx.ref)
	require.True(t, res.OK(), res.Message)

	assert.Equal(t, 7, res.TotalRecords)
	assert.Equal(t, 2, res.MatchedRecords)
	assert.Equal(t, map[models.MatchType]int{
		models.MatchBoth:          2,
		models.MatchPrimaryOnly:   4,
		models.MatchSecondaryOnly: 1,
	}, res.MatchSummary)
	assert.Equal(t, 6, res.Top15Count)

	merged, err := tables.ReadFile(res.MergedFile, tables.ReadMerged)
	require.NoError(t, err)
	require.Len(t, merged, 7)
	assert.Equal(t, models.MatchSecondaryOnly, merged[6].MatchType)
	assert.Equal(t, "Damrak", merged[6].Street)
}

func TestRankMergedFile(t *testing.T) {
	fx := newFixture(t)
	fx.cfg.Linker.Outer = true
	p := New(fx.cfg, Dependencies{}, quietLogger())

	merged := p.Merge(context.Background(), fx.listings, realworksWithUnmatched(t, fx), fx.ref)
	require.True(t, merged.OK(), merged.Message)

	fx.cfg.Scoring.TopN = 3
	recorder := &MockRecorder{}
	recorder.On("Record", "rank", fx.ref, mock.Anything, mock.Anything).Return("run-2", nil).Once()

	res := New(fx.cfg, Dependencies{Recorder: recorder}, quietLogger()).Rank(context.Background(), merged.MergedFile, fx.ref)
	require.True(t, res.OK(), res.Message)
	assert.Equal(t, 7, res.TotalRecords)
	assert.Equal(t, merged.MatchSummary, res.MatchSummary)
	assert.Equal(t, 3, res.Top15Count)
	assert.Equal(t, merged.Top15Matches[0].Record.AddressFull, res.Top15Matches[0].Record.AddressFull)
	assert.Equal(t, "run-2", res.RunID)
	recorder.AssertExpectations(t)
}

func TestRunStoreRecords(t *testing.T) {
	fx := newFixture(t)
	db, err := database.NewDatabase(":memory:")
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.RunMigrations())

	p := New(fx.cfg, Dependencies{Recorder: NewRunStore(db, fx.cfg, quietLogger())}, quietLogger())
	res := p.Run(context.Background(), fx.listings, fx.rtfDir, fx.ref)
	require.True(t, res.OK(), res.Message)
	require.NotEmpty(t, res.Merge.RunID)

	merged, err := db.ListMerged(res.Merge.RunID, string(models.MatchExact))
	require.NoError(t, err)
	assert.Len(t, merged, 2)

	shortlist, err := db.ListShortlist(res.Merge.RunID)
	require.NoError(t, err)
	assert.Len(t, shortlist, res.Merge.Top15Count)
}

func TestStreetsWithStreetFinder(t *testing.T) {
	fx := newFixture(t)
	finder := &staticFinder{result: &streets.Result{
		Matches: []models.StreetMatch{{StreetName: "Herengracht", Score: 0.95}, {StreetName: "Kerkstraat", Score: 0.2}},
		Profiles: streets.ProfileSet{
			Profiles: map[string]models.StreetProfile{"herengracht": {Name: "Herengracht"}},
		},
	}}

	p := New(fx.cfg, Dependencies{Streets: finder}, quietLogger())
	res := p.Streets(context.Background(), fx.listings, fx.ref)
	require.True(t, res.OK(), res.Message)
	assert.Equal(t, 1, finder.calls)
	assert.FileExists(t, res.StreetSimilarityFile)
	assert.FileExists(t, filepath.Join(fx.cfg.OutputDir, StreetProfilesFile))

	// The merge stage scores with the saved similarity.
	lookup := p.loadLookup()
	require.NotNil(t, lookup)
	v, ok := lookup.StreetSimilarity("Keizersgracht", "Herengracht")
	require.True(t, ok)
	assert.Equal(t, 0.95, v)
}

func TestStreetsFinderError(t *testing.T) {
	fx := newFixture(t)
	finder := &staticFinder{err: errors.New("overpass rejected the query")}
	res := New(fx.cfg, Dependencies{Streets: finder}, quietLogger()).Streets(context.Background(), fx.listings, fx.ref)
	require.True(t, res.OK(), res.Message)
	assert.Equal(t, 1, finder.calls)
	assert.Equal(t, "Keizersgracht", res.TopStreets[0])
	assert.Empty(t, res.StreetSimilarityFile)
	assert.NoFileExists(t, filepath.Join(fx.cfg.OutputDir, StreetSimilarityFile))
}

func TestStreetsWithRejectingOverpass(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusForbidden} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
			}))
			defer server.Close()

			fx := newFixture(t)
			fx.cfg.Overpass.Endpoint = server.URL
			fx.cfg.Overpass.RetryDelay = time.Millisecond
			fx.cfg.Overpass.RequestsPerSecond = 0

			logger := quietLogger()
			provider := streets.NewProvider(streets.NewClient(streets.ClientOptionsFromConfig(fx.cfg), logger), nil,
				streets.ProviderOptionsFromConfig(fx.cfg), logger)

			res := New(fx.cfg, Dependencies{Streets: provider}, logger).Streets(context.Background(), fx.listings, fx.ref)
			require.True(t, res.OK(), res.Message)
			assert.Contains(t, res.TopStreets, "Herengracht")
		})
	}
}

func TestReportEmptyShortlist(t *testing.T) {
	fx := newFixture(t)
	path := filepath.Join(fx.dir, "top15.csv")
	require.NoError(t, tables.WriteFile(path, func(w io.Writer) error {
		return tables.WriteShortlist(w, nil)
	}))

	res := New(fx.cfg, Dependencies{}, quietLogger()).Report(path, nil)
	require.True(t, res.OK(), res.Message)
	assert.Equal(t, 0, res.Properties)
	assert.FileExists(t, res.Spreadsheet)
	assert.FileExists(t, res.Document)
}

func TestSaveResult(t *testing.T) {
	dir := t.TempDir()
	res := &ReportResult{Result: models.Success("ok"), Properties: 2}
	require.NoError(t, SaveResult(dir, "report", res))

	data, err := os.ReadFile(filepath.Join(dir, "report_result.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"status": "success"`)
	assert.Contains(t, string(data), `"properties": 2`)
}
