// Package geometry holds the street and waterway geometry helpers used to
// build street profiles.
package geometry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"

	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/models"
)

// Node is a coordinate as returned by Overpass `out geom`.
type Node struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func LineFromNodes(nodes []Node) orb.LineString {
	line := make(orb.LineString, len(nodes))
	for i, n := range nodes {
		line[i] = orb.Point{n.Lon, n.Lat}
	}
	return line
}

// Length is the haversine length of the line in meters.
func Length(line orb.LineString) float64 {
	if len(line) < 2 {
		return 0
	}
	return geo.LengthHaversine(line)
}

// NearAny reports whether any node of line lies within maxMeters of any node
// of the given waterways.
func NearAny(line orb.LineString, waterways []orb.LineString, maxMeters float64) bool {
	if len(line) == 0 {
		return false
	}

	padded := geo.BoundPad(line.Bound(), maxMeters)
	for _, water := range waterways {
		if len(water) == 0 || !padded.Intersects(water.Bound()) {
			continue
		}
		for _, p := range line {
			for _, w := range water {
				if geo.DistanceHaversine(p, w) <= maxMeters {
					return true
				}
			}
		}
	}
	return false
}

// ProfilesFeatureCollection turns street profiles into GeoJSON features, one
// MultiLineString per street. Streets without geometry are skipped.
func ProfilesFeatureCollection(profiles []models.StreetProfile, lines map[string][]orb.LineString) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	sorted := append([]models.StreetProfile(nil), profiles...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	for _, p := range sorted {
		segments := lines[p.Name]
		if len(segments) == 0 {
			continue
		}

		feature := geojson.NewFeature(orb.MultiLineString(segments))
		feature.Properties = geojson.Properties{
			"name":           p.Name,
			"highway":        p.HighwayClass,
			"max_speed":      p.MaxSpeed,
			"lanes":          p.LaneCount,
			"width_m":        p.WidthM,
			"cycleway":       p.CyclewayType,
			"sidewalk":       p.SidewalkType,
			"oneway":         p.OneWay,
			"length_m":       p.LengthM,
			"canal_adjacent": p.CanalAdjacent,
			"canal_name":     p.NameSuggestsCanal,
			"segments":       p.Segments,
		}
		fc.Append(feature)
	}
	return fc
}

// SaveFeatureCollection writes fc with a small metadata block to path.
func SaveFeatureCollection(path string, fc *geojson.FeatureCollection, description string) error {
	output := map[string]interface{}{
		"type":     "FeatureCollection",
		"features": fc.Features,
		"metadata": map[string]interface{}{
			"generated":   time.Now().Format(time.RFC3339),
			"description": description,
			"streets":     len(fc.Features),
		},
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(output); err != nil {
		return fmt.Errorf("failed to encode GeoJSON: %w", err)
	}
	return nil
}
