// Package pipeline runs the four analysis stages on files and reports each
// outcome as a status/message result.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/Jntvanlanschot/Vastgoedanalyse/config"
	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/funda"
	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/linker"
	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/models"
	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/realworks"
	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/report"
	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/streets"
	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/tables"
)

// ErrNoUsableRows is reported when a stage has nothing left to work with.
var ErrNoUsableRows = errors.New("no usable rows")

// Stage artifacts, all inside the output directory.
const (
	BestStreetsFile      = "best_streets.json"
	RankingFile          = "ranking_top100.csv"
	StreetSimilarityFile = "street_similarity.json"
	StreetProfilesFile   = "street_profiles.geojson"
	RealworksFile        = "realworks_data.csv"
	FilteredFile         = "realworks_filtered_data.csv"
	MergedFile           = "merged_data.csv"
	Top15File            = "top15_matches.csv"

	rankingSize = 100
)

// StreetFinder compares street geometry. *streets.Provider implements it.
type StreetFinder interface {
	FindSimilar(ctx context.Context, reference string, candidates []string) (*streets.Result, error)
}

// ReferenceGeocoder adds missing coordinates. *geocoding.Geocoder implements it.
type ReferenceGeocoder interface {
	FillReference(ctx context.Context, ref *models.ReferenceProperty) bool
}

// Recorder keeps a history of merge runs.
type Recorder interface {
	Record(stage string, ref *models.ReferenceProperty, merged []models.MergedRecord, shortlist []models.SimilarityResult) (string, error)
}

// Dependencies are the optional collaborators. Any of them may be nil.
type Dependencies struct {
	Streets  StreetFinder
	Geocoder ReferenceGeocoder
	Recorder Recorder
}

type Pipeline struct {
	cfg      *config.Config
	logger   *logrus.Logger
	deps     Dependencies
	loader   *funda.Loader
	parser   *realworks.Parser
	linker   *linker.Linker
	renderer *report.Renderer
}

func New(cfg *config.Config, deps Dependencies, logger *logrus.Logger) *Pipeline {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	return &Pipeline{
		cfg:      cfg,
		logger:   logger,
		deps:     deps,
		loader:   funda.NewLoader(logger),
		parser:   realworks.NewParser(logger, cfg.Parser.MinSegmentLength),
		linker:   linker.NewLinker(logger, cfg.Linker.FuzzyThreshold),
		renderer: report.NewRenderer(logger),
	}
}

func (p *Pipeline) output(name string) string {
	return filepath.Join(p.cfg.OutputDir, name)
}

func (p *Pipeline) fillReference(ctx context.Context, ref *models.ReferenceProperty) {
	if p.deps.Geocoder == nil || ref.HasCoordinates() {
		return
	}
	if p.deps.Geocoder.FillReference(ctx, ref) {
		p.logger.WithFields(logrus.Fields{
			"reference": ref.AddressFull,
			"latitude":  *ref.Latitude,
			"longitude": *ref.Longitude,
		}).Info("Geocoded reference property")
	}
}

// loadLookup reads the street similarity saved by the streets stage. A missing
// file means scoring falls back to street names.
func (p *Pipeline) loadLookup() *streets.Lookup {
	lookup, err := streets.LoadLookup(p.output(StreetSimilarityFile))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			p.logger.WithError(err).Warn("Ignoring unreadable street similarity")
		}
		return nil
	}
	p.logger.WithField("streets", lookup.Len()).Info("Loaded street similarity")
	return lookup
}

// SaveResult writes a stage result to <output>/<stage>_result.json.
func SaveResult(outputDir, stage string, result interface{}) error {
	path := filepath.Join(outputDir, stage+"_result.json")
	if err := tables.WriteJSON(path, result); err != nil {
		return fmt.Errorf("failed to save %s result: %w", stage, err)
	}
	return nil
}

// BestStreets is the streets stage artifact consumed by the parse stage.
type BestStreets struct {
	ReferenceStreet  string               `json:"reference_street"`
	TopStreets       []string             `json:"top_5_streets"`
	StreetStatistics []models.StreetStats `json:"street_statistics"`
}

func LoadBestStreets(path string) ([]string, error) {
	var best BestStreets
	if err := tables.ReadJSON(path, &best); err != nil {
		return nil, err
	}
	return best.TopStreets, nil
}

func requireFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("input file not found: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("input %s is a directory", path)
	}
	return nil
}
