// Package scoring ranks comparable sales against a reference property.
package scoring

import (
	"math"
	"os"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/sirupsen/logrus"

	"github.com/Jntvanlanschot/Vastgoedanalyse/config"
	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/models"
)

// Component names as they appear in SimilarityResult.Components.
const (
	ComponentStreetName     = "street_name"
	ComponentStreetGeometry = "street_geometry"
	ComponentArea           = "area"
	ComponentLocation       = "location"
	ComponentGarden         = "garden"
	ComponentRooms          = "rooms"
	ComponentBedrooms       = "bedrooms"
	ComponentOutdoor        = "outdoor"
	ComponentEnergy         = "energy"
)

// mismatchCredit is given when a boolean amenity differs.
const mismatchCredit = 0.5

// neutralEnergy is given when either energy label is unknown.
const neutralEnergy = 0.5

// StreetLookup returns precomputed street geometry similarity.
type StreetLookup interface {
	StreetSimilarity(reference, candidate string) (float64, bool)
}

type Options struct {
	Weights       config.Weights
	DecayDistance float64
	GrachtPenalty float64
	MatchBonus    float64
	TopN          int
	RequireMatch  bool
}

func DefaultOptions() Options {
	return Options{
		Weights:       config.DefaultWeights(),
		DecayDistance: 2000,
		GrachtPenalty: 0.01,
		MatchBonus:    0.017,
		TopN:          15,
	}
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Weights:       cfg.Scoring.Weights,
		DecayDistance: cfg.Scoring.DecayDistance,
		GrachtPenalty: cfg.Scoring.GrachtPenalty,
		MatchBonus:    cfg.Scoring.MatchBonus,
		TopN:          cfg.Scoring.TopN,
		RequireMatch:  cfg.Scoring.RequireMatch,
	}
}

type Scorer struct {
	opts   Options
	lookup StreetLookup
	logger *logrus.Logger
}

// NewScorer creates a scorer. lookup may be nil, in which case street
// geometry falls back to comparing names.
func NewScorer(opts Options, lookup StreetLookup, logger *logrus.Logger) *Scorer {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	return &Scorer{
		opts:   opts,
		lookup: lookup,
		logger: logger,
	}
}

// Score computes the similarity of one candidate to the reference.
func (s *Scorer) Score(c models.MergedRecord, ref models.ReferenceProperty) models.SimilarityResult {
	refStreet := normalizeName(ref.StreetName)
	candStreet := normalizeName(c.Street)

	geometry, penalty := s.streetGeometry(ref.StreetName, c.Street, refStreet, candStreet)

	components := map[string]float64{
		ComponentStreetName:     streetName(refStreet, candStreet),
		ComponentStreetGeometry: geometry,
		ComponentArea:           proximity(ref.AreaM2, c.Area()),
		ComponentLocation:       s.location(c, ref),
		ComponentGarden:         match(ref.HasGarden, c.HasGarden()),
		ComponentRooms:          countProximity(ref.Rooms, c.Rooms()),
		ComponentBedrooms:       countProximity(ref.Bedrooms, c.Bedrooms()),
		ComponentOutdoor:        match(ref.HasOutdoorSpace(), c.HasOutdoorSpace()),
		ComponentEnergy:         energy(ref.EnergyLabel, c.EnergyLabel()),
	}

	w := s.opts.Weights
	weighted := w.StreetName*components[ComponentStreetName] +
		w.StreetGeometry*components[ComponentStreetGeometry] +
		w.Area*components[ComponentArea] +
		w.Location*components[ComponentLocation] +
		w.Garden*components[ComponentGarden] +
		w.Rooms*components[ComponentRooms] +
		w.Bedrooms*components[ComponentBedrooms] +
		w.Outdoor*components[ComponentOutdoor] +
		w.Energy*components[ComponentEnergy]

	bonus := float64(c.MatchType.Priority()) * s.opts.MatchBonus

	return models.SimilarityResult{
		Record:          c,
		SimilarityScore: clamp(weighted * penalty),
		FinalScore:      clamp((weighted + bonus) * penalty),
		Components:      components,
		Penalized:       penalty != 1,
	}
}

// streetGeometry returns the geometry component and the multiplier for the
// whole score. Without lookup data, a canal street compared with a non-canal
// street is penalized.
func (s *Scorer) streetGeometry(refName, candName, ref, cand string) (float64, float64) {
	if s.lookup != nil {
		if v, ok := s.lookup.StreetSimilarity(refName, candName); ok {
			return clamp(v), 1
		}
	}

	if ref == "" || cand == "" {
		return 0, 1
	}
	if ref == cand {
		return 1, 1
	}

	penalty := 1.0
	if strings.Contains(ref, "gracht") != strings.Contains(cand, "gracht") {
		penalty = s.opts.GrachtPenalty
	}
	if baseName(ref) == baseName(cand) {
		return 0.8, penalty
	}
	return CharSimilarity(ref, cand), penalty
}

func (s *Scorer) location(c models.MergedRecord, ref models.ReferenceProperty) float64 {
	if lat, lon, ok := coordinates(c); ok && ref.HasCoordinates() {
		d := geo.DistanceHaversine(orb.Point{lon, lat}, orb.Point{*ref.Longitude, *ref.Latitude})
		return math.Max(0, 1-d/s.opts.DecayDistance)
	}

	refHood := normalizeName(ref.Neighbourhood)
	candHood := normalizeName(c.Neighbourhood)
	if refHood == "" || candHood == "" {
		return 0
	}
	if refHood == candHood {
		return 1
	}
	return CharSimilarity(refHood, candHood)
}

func coordinates(c models.MergedRecord) (float64, float64, bool) {
	if c.HasCoordinates() {
		return *c.Latitude, *c.Longitude, true
	}
	if c.Secondary != nil && c.Secondary.HasCoordinates() {
		return *c.Secondary.Latitude, *c.Secondary.Longitude, true
	}
	return 0, 0, false
}

func streetName(ref, cand string) float64 {
	if ref == "" || cand == "" {
		return 0
	}
	if ref == cand {
		return 1
	}
	return CharSimilarity(ref, cand)
}

func proximity(ref, cand *float64) float64 {
	if ref == nil || *ref <= 0 || cand == nil || *cand <= 0 {
		return 0
	}
	return math.Max(0, 1-math.Abs(*cand-*ref) / *ref)
}

func countProximity(ref, cand *int) float64 {
	if ref == nil || cand == nil || *cand <= 0 {
		return 0
	}
	diff := math.Abs(float64(*cand - *ref))
	return math.Max(0, 1-diff/math.Max(float64(*ref), 1))
}

func match(a, b bool) float64 {
	if a == b {
		return 1
	}
	return mismatchCredit
}

func energy(ref, cand string) float64 {
	ri, ci := models.EnergyLabelIndex(ref), models.EnergyLabelIndex(cand)
	if ri < 0 || ci < 0 {
		return neutralEnergy
	}
	diff := math.Abs(float64(ri - ci))
	return math.Max(0, 1-diff/float64(len(models.EnergyLabels)))
}

// CharSimilarity counts the characters of a found anywhere in b, divided by
// the longer length.
func CharSimilarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}

	present := make(map[rune]struct{}, len(rb))
	for _, r := range rb {
		present[r] = struct{}{}
	}
	common := 0
	for _, r := range ra {
		if _, ok := present[r]; ok {
			common++
		}
	}

	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	return float64(common) / float64(longest)
}

var genericSuffixes = strings.NewReplacer("gracht", "", "straat", "", "weg", "")

func baseName(name string) string {
	return strings.TrimSpace(genericSuffixes.Replace(name))
}

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
