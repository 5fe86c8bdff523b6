package config

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/caarlos0/env/v6"
)

var ErrWeightsSum = errors.New("score weights must sum to 1.0")

type Config struct {
	// Directory that receives every stage artifact
	OutputDir string `env:"OUTPUT_DIR" envDefault:"outputs"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Optional sqlite database for run history; empty disables persistence
	DatabasePath string `env:"DATABASE_PATH"`

	Parser struct {
		// Segments shorter than this are treated as incomplete write-ups
		MinSegmentLength int `env:"PARSER_MIN_SEGMENT_LENGTH" envDefault:"100"`

		// Minimum Jaro-Winkler similarity for a street to pass the street filter
		StreetFilterSimilarity float64 `env:"PARSER_STREET_FILTER_SIMILARITY" envDefault:"0.95"`
	}

	Linker struct {
		// Token overlap (percent) a fuzzy match must exceed
		FuzzyThreshold float64 `env:"LINKER_FUZZY_THRESHOLD" envDefault:"50"`

		// Keep unmatched records of both sources (both/primary_only/secondary_only)
		Outer bool `env:"LINKER_OUTER" envDefault:"false"`
	}

	Scoring struct {
		Weights Weights

		TopN int `env:"SCORING_TOP_N" envDefault:"15"`

		// Distance in meters at which geographic similarity reaches zero
		DecayDistance float64 `env:"SCORING_DECAY_DISTANCE" envDefault:"2000"`

		// Multiplier applied to the whole score on a gracht/non-gracht mismatch
		GrachtPenalty float64 `env:"SCORING_GRACHT_PENALTY" envDefault:"0.01"`

		// Bonus per match-type priority point
		MatchBonus float64 `env:"SCORING_MATCH_BONUS" envDefault:"0.017"`

		// Only rank records that were linked to a Realworks record
		RequireMatch bool `env:"SCORING_REQUIRE_MATCH" envDefault:"false"`
	}

	StreetSelection struct {
		StrongThreshold float64 `env:"STREETS_STRONG_THRESHOLD" envDefault:"0.60"`
		MediumThreshold float64 `env:"STREETS_MEDIUM_THRESHOLD" envDefault:"0.40"`
		MinEntries      int     `env:"STREETS_MIN_ENTRIES" envDefault:"2"`
		MaxStreets      int     `env:"STREETS_MAX" envDefault:"5"`
	}

	Overpass struct {
		Enabled  bool          `env:"OVERPASS_ENABLED" envDefault:"false"`
		Endpoint string        `env:"OVERPASS_URL" envDefault:"https://overpass-api.de/api/interpreter"`
		Timeout  time.Duration `env:"OVERPASS_TIMEOUT" envDefault:"60s"`

		// Total attempts per query, including the first
		MaxRetries int `env:"OVERPASS_MAX_RETRIES" envDefault:"3"`

		// Base delay for the exponential backoff
		RetryDelay time.Duration `env:"OVERPASS_RETRY_DELAY" envDefault:"1s"`

		RequestsPerSecond float64 `env:"OVERPASS_RPS" envDefault:"1"`

		// Street names per query, keeps requests under the size limit
		BatchSize int `env:"OVERPASS_BATCH_SIZE" envDefault:"25"`

		// min_lon,min_lat,max_lon,max_lat
		BBox []float64 `env:"OVERPASS_BBOX" envDefault:"4.7,52.3,5.0,52.4"`

		HighwayClasses []string `env:"OVERPASS_HIGHWAY_CLASSES" envDefault:"living_street,residential,tertiary,secondary"`

		// Meters between a street node and a waterway node to call it canal-adjacent
		CanalDistance float64 `env:"OVERPASS_CANAL_DISTANCE" envDefault:"20"`

		CacheDir string        `env:"STREET_CACHE_DIR" envDefault:"cache"`
		RedisURL string        `env:"STREET_CACHE_REDIS_URL"`
		CacheTTL time.Duration `env:"STREET_CACHE_TTL" envDefault:"720h"`
	}

	Geocoding struct {
		Enabled  bool   `env:"GEOCODE_ENABLED" envDefault:"false"`
		Endpoint string `env:"GEOCODE_URL" envDefault:"https://nominatim.openstreetmap.org/search"`
		CacheDir string `env:"GEOCODE_CACHE_DIR" envDefault:"cache/geocode"`
	}

	BatchProcessing struct {
		// Maximum number of merged records written per transaction
		MaxBatchSize int `env:"BATCH_MAX_SIZE" envDefault:"100"`

		// Maximum number of retries for failed batches
		MaxRetries int `env:"BATCH_MAX_RETRIES" envDefault:"3"`

		// Delay between retries in seconds
		RetryDelay int `env:"BATCH_RETRY_DELAY" envDefault:"1"`
	}

	Server struct {
		Port string `env:"PORT" envDefault:"5250"`
	}
}

// Weights splits the similarity score over its components.
type Weights struct {
	StreetName     float64 `env:"WEIGHT_STREET_NAME" envDefault:"0.05" json:"street_name"`
	StreetGeometry float64 `env:"WEIGHT_STREET_GEOMETRY" envDefault:"0.34" json:"street_geometry"`
	Area           float64 `env:"WEIGHT_AREA" envDefault:"0.25" json:"area"`
	Location       float64 `env:"WEIGHT_LOCATION" envDefault:"0.10" json:"location"`
	Garden         float64 `env:"WEIGHT_GARDEN" envDefault:"0.10" json:"garden"`
	Rooms          float64 `env:"WEIGHT_ROOMS" envDefault:"0.06" json:"rooms"`
	Bedrooms       float64 `env:"WEIGHT_BEDROOMS" envDefault:"0.05" json:"bedrooms"`
	Outdoor        float64 `env:"WEIGHT_OUTDOOR" envDefault:"0.03" json:"outdoor"`
	Energy         float64 `env:"WEIGHT_ENERGY" envDefault:"0.02" json:"energy"`
}

// DefaultWeights is the latest tuned split.
func DefaultWeights() Weights {
	return Weights{
		StreetName:     0.05,
		StreetGeometry: 0.34,
		Area:           0.25,
		Location:       0.10,
		Garden:         0.10,
		Rooms:          0.06,
		Bedrooms:       0.05,
		Outdoor:        0.03,
		Energy:         0.02,
	}
}

func (w Weights) Sum() float64 {
	return w.StreetName + w.StreetGeometry + w.Area + w.Location + w.Garden +
		w.Rooms + w.Bedrooms + w.Outdoor + w.Energy
}

func (w Weights) Validate() error {
	if sum := w.Sum(); math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("%w: got %.4f", ErrWeightsSum, sum)
	}
	return nil
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := c.Scoring.Weights.Validate(); err != nil {
		return err
	}
	if len(c.Overpass.BBox) != 4 {
		return fmt.Errorf("invalid bounding box: expected 4 values, got %d", len(c.Overpass.BBox))
	}
	if c.Scoring.TopN <= 0 {
		return fmt.Errorf("invalid top n: %d", c.Scoring.TopN)
	}
	if c.Scoring.DecayDistance <= 0 {
		return fmt.Errorf("invalid decay distance: %v", c.Scoring.DecayDistance)
	}
	return nil
}
