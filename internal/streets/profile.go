package streets

import (
	"sort"
	"strconv"
	"strings"

	"github.com/mozillazg/go-unidecode"
	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/stat"

	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/geometry"
	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/models"
)

const (
	defaultSpeed   = 50.0
	defaultHighway = "residential"
	minWidth       = 3.0
)

var laneWidths = map[string]float64{
	"living_street": 2.5,
	"residential":   3.0,
	"tertiary":      3.5,
	"secondary":     3.5,
}

var canalWords = []string{"gracht", "singel", "kade", "wal", "dijk"}

// NormalizeName folds a street name for comparison: ASCII, lower case,
// single spaces.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(unidecode.Unidecode(name))), " ")
}

// NameSuggestsCanal reports whether the name is one used for streets along water.
func NameSuggestsCanal(name string) bool {
	name = strings.ToLower(name)
	for _, w := range canalWords {
		if strings.Contains(name, w) {
			return true
		}
	}
	return false
}

func normalizeSpeed(s string) float64 {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || s == "none" {
		return defaultSpeed
	}
	if i := strings.LastIndex(s, ":"); i >= 0 {
		s = s[i+1:]
	}
	if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		return v
	}
	return defaultSpeed
}

func normalizeLanes(s string) int {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseFloat(s, 64); err == nil && v >= 1 {
		return int(v)
	}
	return 1
}

func normalizeWidth(s string, lanes int, highway string) float64 {
	s = strings.TrimSuffix(strings.TrimSpace(strings.ToLower(s)), "m")
	if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil && v > 0 {
		return v
	}

	laneWidth, ok := laneWidths[highway]
	if !ok {
		laneWidth = 3.0
	}
	if w := float64(lanes) * laneWidth; w > minWidth {
		return w
	}
	return minWidth
}

func tagOr(tags map[string]string, key, fallback string) string {
	if v := strings.TrimSpace(tags[key]); v != "" {
		return v
	}
	return fallback
}

// ProfileSet holds the profiles of one Overpass answer.
type ProfileSet struct {
	// Profiles is keyed by NormalizeName.
	Profiles map[string]models.StreetProfile
	// Lines is keyed by profile name.
	Lines map[string][]orb.LineString
}

// Get looks up a profile by any spelling of the name.
func (s ProfileSet) Get(name string) (models.StreetProfile, bool) {
	p, ok := s.Profiles[NormalizeName(name)]
	return p, ok
}

func (s ProfileSet) List() []models.StreetProfile {
	out := make([]models.StreetProfile, 0, len(s.Profiles))
	for _, p := range s.Profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

type segment struct {
	highway  string
	speed    float64
	lanes    float64
	width    float64
	cycleway string
	sidewalk string
	oneway   bool
	length   float64
	canal    bool
}

type aggregate struct {
	name     string
	segments []segment
	lines    []orb.LineString
}

// BuildProfiles turns street ways into one profile per street name. Ways
// sharing a name are aggregated: the median of numeric tags, the most
// frequent value of categorical tags, OR over flags and the summed length.
func BuildProfiles(elements []Element, canalDistance float64) ProfileSet {
	var waterways []orb.LineString
	for _, e := range elements {
		if e.Type == "way" && e.IsWaterway() {
			waterways = append(waterways, geometry.LineFromNodes(e.Geometry))
		}
	}

	var order []string
	groups := make(map[string]*aggregate)
	for _, e := range elements {
		if e.Type != "way" || e.IsWaterway() {
			continue
		}
		name := strings.TrimSpace(e.Tags["name"])
		key := NormalizeName(name)
		if key == "" {
			continue
		}

		line := geometry.LineFromNodes(e.Geometry)
		highway := tagOr(e.Tags, "highway", defaultHighway)
		lanes := normalizeLanes(e.Tags["lanes"])

		g, ok := groups[key]
		if !ok {
			g = &aggregate{name: name}
			groups[key] = g
			order = append(order, key)
		}
		g.lines = append(g.lines, line)
		g.segments = append(g.segments, segment{
			highway:  highway,
			speed:    normalizeSpeed(e.Tags["maxspeed"]),
			lanes:    float64(lanes),
			width:    normalizeWidth(e.Tags["width"], lanes, highway),
			cycleway: tagOr(e.Tags, "cycleway", "none"),
			sidewalk: tagOr(e.Tags, "sidewalk", "none"),
			oneway:   e.Tags["oneway"] == "yes",
			length:   geometry.Length(line),
			canal:    geometry.NearAny(line, waterways, canalDistance),
		})
	}

	set := ProfileSet{
		Profiles: make(map[string]models.StreetProfile, len(groups)),
		Lines:    make(map[string][]orb.LineString, len(groups)),
	}
	for _, key := range order {
		g := groups[key]
		set.Profiles[key] = g.profile()
		set.Lines[g.name] = g.lines
	}
	return set
}

func (g *aggregate) profile() models.StreetProfile {
	n := len(g.segments)
	speeds := make([]float64, n)
	lanes := make([]float64, n)
	widths := make([]float64, n)
	highways := make([]string, n)
	cycleways := make([]string, n)
	sidewalks := make([]string, n)

	p := models.StreetProfile{
		Name:              g.name,
		NameSuggestsCanal: NameSuggestsCanal(g.name),
		Segments:          n,
	}
	for i, s := range g.segments {
		speeds[i] = s.speed
		lanes[i] = s.lanes
		widths[i] = s.width
		highways[i] = s.highway
		cycleways[i] = s.cycleway
		sidewalks[i] = s.sidewalk
		p.LengthM += s.length
		p.OneWay = p.OneWay || s.oneway
		p.CanalAdjacent = p.CanalAdjacent || s.canal
	}

	p.MaxSpeed = median(speeds)
	p.LaneCount = int(median(lanes))
	p.WidthM = median(widths)
	p.HighwayClass = mostFrequent(highways)
	p.CyclewayType = mostFrequent(cycleways)
	p.SidewalkType = mostFrequent(sidewalks)
	return p
}

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	n := len(sorted)
	return stat.Mean(sorted[(n-1)/2:n/2+1], nil)
}

// mostFrequent returns the most common value; ties go to the first seen.
func mostFrequent(values []string) string {
	counts := make(map[string]int, len(values))
	for _, v := range values {
		counts[v]++
	}
	best, bestCount := "", 0
	for _, v := range values {
		if counts[v] > bestCount {
			best, bestCount = v, counts[v]
		}
	}
	return best
}
