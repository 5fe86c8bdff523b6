package scoring

import (
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/address"
	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/models"
)

// Rank scores the candidates and returns the best TopN, most similar first.
// The reference dwelling itself and repeated addresses are left out.
func (s *Scorer) Rank(candidates []models.MergedRecord, ref models.ReferenceProperty) []models.SimilarityResult {
	results := s.rank(candidates, ref, s.opts.TopN)

	s.logger.WithFields(logrus.Fields{
		"candidates": len(candidates),
		"ranked":     len(results),
		"reference":  ref.AddressFull,
	}).Info("Ranked comparable properties")

	return results
}

// ScoreAll is Rank without the TopN cut.
func (s *Scorer) ScoreAll(candidates []models.MergedRecord, ref models.ReferenceProperty) []models.SimilarityResult {
	return s.rank(candidates, ref, 0)
}

func (s *Scorer) rank(candidates []models.MergedRecord, ref models.ReferenceProperty, limit int) []models.SimilarityResult {
	refFields := address.Fields{
		Street:      ref.StreetName,
		HouseNumber: ref.HouseNumber,
		Suffix:      ref.HouseNumberSuffix,
	}

	seen := make(map[string]struct{}, len(candidates))
	results := make([]models.SimilarityResult, 0, len(candidates))
	excluded, duplicates := 0, 0

	for _, c := range candidates {
		if address.SameUnit(refFields, candidateFields(c)) {
			excluded++
			continue
		}

		key := dedupKey(c)
		if key != "" {
			if _, ok := seen[key]; ok {
				duplicates++
				continue
			}
			seen[key] = struct{}{}
		}

		if s.opts.RequireMatch && !c.MatchType.Linked() {
			continue
		}

		results = append(results, s.Score(c, ref))
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].FinalScore > results[j].FinalScore
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	for i := range results {
		results[i].Rank = i + 1
	}

	if excluded > 0 || duplicates > 0 {
		s.logger.WithFields(logrus.Fields{
			"excluded_reference": excluded,
			"duplicates":         duplicates,
		}).Debug("Skipped candidates")
	}

	return results
}

func candidateFields(c models.MergedRecord) address.Fields {
	if c.Street != "" {
		return c.AddressFields()
	}
	return address.Split(c.AddressFull)
}

func dedupKey(c models.MergedRecord) string {
	return strings.Join(strings.Fields(strings.ToLower(c.AddressFull)), " ")
}

// ShortlistSummary describes a ranked shortlist.
type ShortlistSummary struct {
	Count             int     `json:"count"`
	AveragePrice      float64 `json:"average_price"`
	AveragePricePerM2 float64 `json:"average_price_per_m2"`
	MinScore          float64 `json:"min_score"`
	MaxScore          float64 `json:"max_score"`
}

func Summary(results []models.SimilarityResult) ShortlistSummary {
	summary := ShortlistSummary{Count: len(results)}
	if len(results) == 0 {
		return summary
	}

	var prices, perM2 []float64
	summary.MinScore = results[0].FinalScore
	summary.MaxScore = results[0].FinalScore
	for _, r := range results {
		if r.FinalScore < summary.MinScore {
			summary.MinScore = r.FinalScore
		}
		if r.FinalScore > summary.MaxScore {
			summary.MaxScore = r.FinalScore
		}

		price := r.Record.SalePrice()
		if price == nil {
			continue
		}
		prices = append(prices, *price)
		if area := r.Record.Area(); area != nil && *area > 0 {
			perM2 = append(perM2, *price / *area)
		}
	}

	if len(prices) > 0 {
		summary.AveragePrice = stat.Mean(prices, nil)
	}
	if len(perM2) > 0 {
		summary.AveragePricePerM2 = stat.Mean(perM2, nil)
	}
	return summary
}
