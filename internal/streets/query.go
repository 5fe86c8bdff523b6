// Package streets compares streets by their OpenStreetMap road attributes,
// fetched through the Overpass API.
package streets

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Jntvanlanschot/Vastgoedanalyse/config"
)

// QueryOptions shapes the Overpass QL query.
type QueryOptions struct {
	// Anchored matches whole names only.
	Anchored bool
	// Waterways adds canals, rivers and streams to the result.
	Waterways bool
	// BBox is min_lon, min_lat, max_lon, max_lat.
	BBox           [4]float64
	HighwayClasses []string
	TimeoutSeconds int
}

func DefaultQueryOptions() QueryOptions {
	return QueryOptions{
		Anchored:       true,
		Waterways:      true,
		BBox:           [4]float64{4.7, 52.3, 5.0, 52.4},
		HighwayClasses: []string{"living_street", "residential", "tertiary", "secondary"},
		TimeoutSeconds: 60,
	}
}

func QueryOptionsFromConfig(cfg *config.Config) QueryOptions {
	opts := DefaultQueryOptions()
	copy(opts.BBox[:], cfg.Overpass.BBox)
	if len(cfg.Overpass.HighwayClasses) > 0 {
		opts.HighwayClasses = cfg.Overpass.HighwayClasses
	}
	if secs := int(cfg.Overpass.Timeout.Seconds()); secs > 0 {
		opts.TimeoutSeconds = secs
	}
	return opts
}

var qlEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// BuildQuery renders the Overpass QL for the given street names.
func BuildQuery(names []string, opts QueryOptions) string {
	escaped := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		escaped = append(escaped, qlEscaper.Replace(regexp.QuoteMeta(n)))
	}

	nameFilter := "(" + strings.Join(escaped, "|") + ")"
	if opts.Anchored {
		nameFilter = "^" + nameFilter + "$"
	}

	// Overpass takes south,west,north,east.
	bbox := fmt.Sprintf("(%g,%g,%g,%g)", opts.BBox[1], opts.BBox[0], opts.BBox[3], opts.BBox[2])

	var b strings.Builder
	fmt.Fprintf(&b, "[out:json][timeout:%d];\n(\n", opts.TimeoutSeconds)
	fmt.Fprintf(&b, "  way[\"highway\"~\"^(%s)$\"][\"name\"~\"%s\",i]%s;\n",
		strings.Join(opts.HighwayClasses, "|"), nameFilter, bbox)
	if opts.Waterways {
		fmt.Fprintf(&b, "  way[\"waterway\"~\"^(canal|river|stream)$\"]%s;\n", bbox)
	}
	b.WriteString(");\nout geom;\n")
	return b.String()
}
