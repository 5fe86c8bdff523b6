package streets

import (
	"fmt"

	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/models"
	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/tables"
)

// Lookup holds street geometry scores per reference street. It is saved
// between pipeline stages and read back by the scorer.
type Lookup struct {
	Scores map[string]map[string]float64 `json:"scores"`
}

func NewLookup() *Lookup {
	return &Lookup{Scores: make(map[string]map[string]float64)}
}

// Add records the matches found for reference.
func (l *Lookup) Add(reference string, matches []models.StreetMatch) {
	ref := NormalizeName(reference)
	if ref == "" {
		return
	}
	scores, ok := l.Scores[ref]
	if !ok {
		scores = make(map[string]float64, len(matches))
		l.Scores[ref] = scores
	}
	for _, m := range matches {
		scores[NormalizeName(m.StreetName)] = m.Score
	}
}

// StreetSimilarity returns the stored score. A street compared with itself
// scores 1 once the reference has any data.
func (l *Lookup) StreetSimilarity(reference, candidate string) (float64, bool) {
	if l == nil {
		return 0, false
	}
	scores, ok := l.Scores[NormalizeName(reference)]
	if !ok {
		return 0, false
	}
	cand := NormalizeName(candidate)
	if cand == NormalizeName(reference) {
		return 1, true
	}
	v, ok := scores[cand]
	return v, ok
}

func (l *Lookup) Len() int {
	n := 0
	for _, scores := range l.Scores {
		n += len(scores)
	}
	return n
}

func (l *Lookup) Save(path string) error {
	if err := tables.WriteJSON(path, l); err != nil {
		return fmt.Errorf("failed to save street similarity: %w", err)
	}
	return nil
}

func LoadLookup(path string) (*Lookup, error) {
	l := NewLookup()
	if err := tables.ReadJSON(path, l); err != nil {
		return nil, fmt.Errorf("failed to load street similarity: %w", err)
	}
	if l.Scores == nil {
		l.Scores = make(map[string]map[string]float64)
	}
	return l, nil
}
