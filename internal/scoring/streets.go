package scoring

import (
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/Jntvanlanschot/Vastgoedanalyse/config"
	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/address"
	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/models"
)

// Selection controls which streets SelectStreets returns.
type Selection struct {
	StrongThreshold float64
	MediumThreshold float64
	MinEntries      int
	MaxStreets      int
}

func DefaultSelection() Selection {
	return Selection{
		StrongThreshold: 0.60,
		MediumThreshold: 0.40,
		MinEntries:      2,
		MaxStreets:      5,
	}
}

func SelectionFromConfig(cfg *config.Config) Selection {
	return Selection{
		StrongThreshold: cfg.StreetSelection.StrongThreshold,
		MediumThreshold: cfg.StreetSelection.MediumThreshold,
		MinEntries:      cfg.StreetSelection.MinEntries,
		MaxStreets:      cfg.StreetSelection.MaxStreets,
	}
}

type streetGroup struct {
	name   string
	scores []float64
	prices []float64
}

// SelectStreets picks the streets whose listings score best against the
// reference. The reference street comes first when it has listings.
func SelectStreets(results []models.SimilarityResult, referenceStreet string, sel Selection) []models.StreetStats {
	var order []string
	groups := make(map[string]*streetGroup)

	for _, r := range results {
		key := address.NormalizeStreet(r.Record.Street)
		if key == "" {
			continue
		}
		g, ok := groups[key]
		if !ok {
			g = &streetGroup{name: strings.TrimSpace(r.Record.Street)}
			groups[key] = g
			order = append(order, key)
		}
		g.scores = append(g.scores, r.FinalScore)
		if p := r.Record.SalePrice(); p != nil {
			g.prices = append(g.prices, *p)
		}
	}

	refKey := address.NormalizeStreet(referenceStreet)
	var reference *models.StreetStats
	others := make([]models.StreetStats, 0, len(order))

	for _, key := range order {
		stats := streetStats(groups[key], sel)
		if key == refKey && refKey != "" {
			stats.IsReference = true
			reference = &stats
			continue
		}
		if stats.PropertiesCount < sel.MinEntries {
			continue
		}
		others = append(others, stats)
	}

	sort.SliceStable(others, func(i, j int) bool {
		return others[i].Representativity > others[j].Representativity
	})

	selected := make([]models.StreetStats, 0, sel.MaxStreets)
	if reference != nil {
		selected = append(selected, *reference)
	}
	for _, s := range others {
		if len(selected) >= sel.MaxStreets {
			break
		}
		selected = append(selected, s)
	}
	return selected
}

func streetStats(g *streetGroup, sel Selection) models.StreetStats {
	scores := append([]float64(nil), g.scores...)
	sort.Sort(sort.Reverse(sort.Float64Slice(scores)))

	stats := models.StreetStats{
		Street:          g.name,
		Top1:            scores[0],
		Top3Mean:        stat.Mean(scores[:int(math.Min(3, float64(len(scores))))], nil),
		PropertiesCount: len(scores),
	}
	for _, s := range scores {
		switch {
		case s >= sel.StrongThreshold:
			stats.StrongCount++
		case s >= sel.MediumThreshold:
			stats.MediumCount++
		}
	}
	if len(g.prices) > 0 {
		stats.AveragePrice = stat.Mean(g.prices, nil)
	}

	volume := math.Min(0.05, 0.01*float64(stats.PropertiesCount))
	stats.Representativity = stats.Top3Mean + streetTypeBonus(g.name) + volume
	return stats
}

func streetTypeBonus(name string) float64 {
	name = strings.ToLower(name)
	switch {
	case strings.Contains(name, "dwarsstraat"):
		return 0.15
	case strings.Contains(name, "gracht"):
		return 0.10
	case strings.Contains(name, "straat"):
		return 0.05
	default:
		return 0
	}
}
