package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/Jntvanlanschot/Vastgoedanalyse/config"
	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/address"
	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/models"
)

var ErrNoResults = errors.New("no geocoding results")

const cacheFileName = "geocode_cache.json"

type Options struct {
	Endpoint string
	CacheDir string
	// Nominatim allows one request per second.
	RequestsPerSecond float64
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Endpoint:          cfg.Geocoding.Endpoint,
		CacheDir:          cfg.Geocoding.CacheDir,
		RequestsPerSecond: 1,
	}
}

type Geocoder struct {
	logger    *logrus.Logger
	opts      Options
	cache     map[string][]float64
	cacheLock sync.RWMutex
	client    *http.Client
	limiter   *rate.Limiter
}

func NewGeocoder(logger *logrus.Logger, opts Options) *Geocoder {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	g := &Geocoder{
		logger:  logger,
		opts:    opts,
		cache:   make(map[string][]float64),
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(limit, 1),
	}

	g.loadCache()

	return g
}

func (g *Geocoder) cacheFile() string {
	return filepath.Join(g.opts.CacheDir, cacheFileName)
}

func (g *Geocoder) loadCache() {
	data, err := os.ReadFile(g.cacheFile())
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			g.logger.WithError(err).Warn("Could not load geocode cache")
		}
		return
	}

	if err := json.Unmarshal(data, &g.cache); err != nil {
		g.logger.WithError(err).Error("Failed to parse geocode cache")
		return
	}

	g.logger.WithField("addresses", len(g.cache)).Debug("Loaded geocode cache")
}

// SaveCache writes the cache to disk.
func (g *Geocoder) SaveCache() error {
	g.cacheLock.RLock()
	data, err := json.Marshal(g.cache)
	g.cacheLock.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal geocode cache: %w", err)
	}

	if err := os.MkdirAll(g.opts.CacheDir, 0755); err != nil {
		return fmt.Errorf("failed to create geocode cache directory: %w", err)
	}
	if err := os.WriteFile(g.cacheFile(), data, 0644); err != nil {
		return fmt.Errorf("failed to save geocode cache: %w", err)
	}
	return nil
}

type nominatimResponse []struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Geocode returns the coordinates of an address as lon/lat.
func (g *Geocoder) Geocode(ctx context.Context, fields address.Fields) (orb.Point, error) {
	cacheKey := address.Key(fields)
	fullAddress := fmt.Sprintf("%s, %s, %s, Netherlands",
		address.Format(address.Fields{Street: fields.Street, HouseNumber: fields.HouseNumber, Suffix: fields.Suffix}),
		fields.PostalCode, fields.City)

	g.cacheLock.RLock()
	coords, ok := g.cache[cacheKey]
	g.cacheLock.RUnlock()
	if ok {
		if len(coords) != 2 {
			return orb.Point{}, fmt.Errorf("invalid cached coordinates for %s", fullAddress)
		}
		g.logger.WithFields(logrus.Fields{
			"address":   fullAddress,
			"latitude":  coords[0],
			"longitude": coords[1],
			"source":    "cache",
		}).Debug("Found coordinates in cache")
		return orb.Point{coords[1], coords[0]}, nil
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return orb.Point{}, fmt.Errorf("failed to wait for rate limiter: %w", err)
	}

	params := url.Values{
		"q":            []string{fullAddress},
		"format":       []string{"json"},
		"limit":        []string{"1"},
		"countrycodes": []string{"nl"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.opts.Endpoint, nil)
	if err != nil {
		return orb.Point{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.URL.RawQuery = params.Encode()
	req.Header.Set("User-Agent", "Vastgoedanalyse/1.0")
	req.Header.Set("Accept-Language", "nl-NL,nl;q=0.9,en-US;q=0.8,en;q=0.7")

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.WithError(err).WithField("address", fullAddress).Error("Geocoding request failed")
		return orb.Point{}, fmt.Errorf("geocoding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return orb.Point{}, fmt.Errorf("geocoding request failed: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return orb.Point{}, fmt.Errorf("failed to read response: %w", err)
	}

	var result nominatimResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return orb.Point{}, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(result) == 0 {
		g.logger.WithField("address", fullAddress).Warn("No results found")
		return orb.Point{}, fmt.Errorf("%w for address: %s", ErrNoResults, fullAddress)
	}

	lat, errLat := strconv.ParseFloat(result[0].Lat, 64)
	lon, errLon := strconv.ParseFloat(result[0].Lon, 64)
	if errLat != nil || errLon != nil {
		return orb.Point{}, fmt.Errorf("invalid coordinates %q, %q", result[0].Lat, result[0].Lon)
	}

	g.logger.WithFields(logrus.Fields{
		"address":   fullAddress,
		"latitude":  lat,
		"longitude": lon,
		"source":    "nominatim",
	}).Info("Successfully geocoded address")

	g.cacheLock.Lock()
	g.cache[cacheKey] = []float64{lat, lon}
	g.cacheLock.Unlock()

	if err := g.SaveCache(); err != nil {
		g.logger.WithError(err).Warn("Failed to save geocode cache")
	}

	return orb.Point{lon, lat}, nil
}

// FillReference adds coordinates to a reference that has none. A failed
// lookup leaves the reference unchanged and is only logged.
func (g *Geocoder) FillReference(ctx context.Context, ref *models.ReferenceProperty) bool {
	if ref.HasCoordinates() {
		return false
	}

	p, err := g.Geocode(ctx, address.Fields{
		Street:      ref.StreetName,
		HouseNumber: ref.HouseNumber,
		Suffix:      ref.HouseNumberSuffix,
		PostalCode:  ref.PostalCode,
		City:        ref.City,
	})
	if err != nil {
		g.logger.WithError(err).WithField("reference", ref.AddressFull).Warn("Could not geocode reference, using neighbourhood instead")
		return false
	}

	lat, lon := p.Lat(), p.Lon()
	ref.Latitude = &lat
	ref.Longitude = &lon
	return true
}
