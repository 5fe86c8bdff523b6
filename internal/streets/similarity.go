package streets

import (
	"math"

	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/models"
)

// componentOrder fixes the summation order so equal inputs give equal scores.
var componentOrder = []string{"maxspeed", "width", "highway", "lanes", "cycleway", "sidewalk", "gracht", "length"}

var componentWeights = map[string]float64{
	"maxspeed": 0.25,
	"width":    0.20,
	"highway":  0.10,
	"lanes":    0.08,
	"cycleway": 0.12,
	"sidewalk": 0.05,
	"gracht":   0.10,
	"length":   0.10,
}

// Decay scales in km/h and meters.
const (
	speedScale  = 10.0
	widthScale  = 1.2
	lengthScale = 150.0
)

var highwayRank = map[string]int{
	"living_street": 0,
	"residential":   1,
	"tertiary":      2,
	"secondary":     3,
}

// Compare scores how alike two streets are, between 0 and 1, with the
// score of each component.
func Compare(ref, cand models.StreetProfile) (float64, map[string]float64) {
	components := map[string]float64{
		"maxspeed": math.Exp(-math.Abs(ref.MaxSpeed-cand.MaxSpeed) / speedScale),
		"width":    math.Exp(-math.Abs(ref.WidthM-cand.WidthM) / widthScale),
		"highway":  highwaySimilarity(ref.HighwayClass, cand.HighwayClass),
		"lanes":    laneSimilarity(ref.LaneCount, cand.LaneCount),
		"cycleway": cyclewaySimilarity(ref.CyclewayType, cand.CyclewayType),
		"sidewalk": sidewalkSimilarity(ref.SidewalkType, cand.SidewalkType),
		"gracht":   0,
		"length":   math.Exp(-math.Abs(ref.LengthM-cand.LengthM) / lengthScale),
	}
	if ref.Canal() == cand.Canal() {
		components["gracht"] = 1
	}

	score := 0.0
	for _, name := range componentOrder {
		score += componentWeights[name] * components[name]
	}
	return score, components
}

func highwaySimilarity(a, b string) float64 {
	ra, okA := highwayRank[a]
	rb, okB := highwayRank[b]
	if !okA || !okB {
		return 0.5
	}
	switch diff := ra - rb; {
	case diff == 0:
		return 1
	case diff == 1 || diff == -1:
		return 0.7
	default:
		return 0.4
	}
}

func laneSimilarity(a, b int) float64 {
	switch diff := a - b; {
	case diff == 0:
		return 1
	case diff == 1 || diff == -1:
		return 0.7
	default:
		return 0.3
	}
}

func cyclewaySimilarity(a, b string) float64 {
	switch {
	case a == b:
		return 1
	case (a == "track" && b == "lane") || (a == "lane" && b == "track"):
		return 0.7
	case a == "none" || b == "none":
		return 0.2
	default:
		return 0.5
	}
}

func sidewalkSimilarity(a, b string) float64 {
	side := func(s string) bool { return s == "left" || s == "right" }
	switch {
	case a == b:
		return 1
	case (a == "both" && side(b)) || (side(a) && b == "both"):
		return 0.7
	case a == "none" || b == "none":
		return 0.2
	default:
		return 0.5
	}
}
