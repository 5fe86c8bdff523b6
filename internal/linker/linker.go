// Package linker attaches Realworks records to Funda listings by address.
package linker

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/address"
	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/models"
)

type Linker struct {
	logger         *logrus.Logger
	fuzzyThreshold float64
}

// NewLinker creates a linker. Fuzzy matches must score strictly above
// fuzzyThreshold (a percentage) to be accepted.
func NewLinker(logger *logrus.Logger, fuzzyThreshold float64) *Linker {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	return &Linker{
		logger:         logger,
		fuzzyThreshold: fuzzyThreshold,
	}
}

// Key returns the AddressKey of a record, preferring its discrete fields.
func Key(rec models.PropertyRecord) string {
	if rec.Street != "" {
		return address.Key(rec.AddressFields())
	}
	return address.KeyFromString(rec.AddressFull)
}

// Dedup keeps the first record per AddressKey. Records without an address
// are dropped.
func (l *Linker) Dedup(records []models.PropertyRecord) []models.PropertyRecord {
	seen := make(map[string]struct{}, len(records))
	out := make([]models.PropertyRecord, 0, len(records))

	for _, rec := range records {
		key := Key(rec)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, rec)
	}

	if removed := len(records) - len(out); removed > 0 {
		l.logger.WithFields(logrus.Fields{
			"input":   len(records),
			"removed": removed,
		}).Info("Removed duplicate addresses")
	}
	return out
}

// index holds the precomputed keys of the secondary side.
type index struct {
	records []models.PropertyRecord
	keys    []string
	exact   map[string]int
}

func newIndex(secondary []models.PropertyRecord) *index {
	idx := &index{
		records: secondary,
		keys:    make([]string, len(secondary)),
		exact:   make(map[string]int, len(secondary)),
	}
	for i, rec := range secondary {
		key := Key(rec)
		idx.keys[i] = key
		if key == "" {
			continue
		}
		if _, ok := idx.exact[key]; !ok {
			idx.exact[key] = i
		}
	}
	return idx
}

// Link returns one merged record per primary record, in input order.
func (l *Linker) Link(primary, secondary []models.PropertyRecord) []models.MergedRecord {
	merged, _ := l.link(primary, secondary)
	l.logSummary(merged)
	return merged
}

// LinkOuter is the full outer variant: linked rows become "both", unlinked
// primary rows "primary_only", and secondary rows that were never linked are
// appended as "secondary_only".
func (l *Linker) LinkOuter(primary, secondary []models.PropertyRecord) []models.MergedRecord {
	merged, used := l.link(primary, secondary)

	for i := range merged {
		if merged[i].MatchType.Linked() {
			merged[i].MatchType = models.MatchBoth
		} else {
			merged[i].MatchType = models.MatchPrimaryOnly
		}
	}

	for i, rec := range secondary {
		if used[i] || !rec.Valid() {
			continue
		}
		detail := rec.Clone()
		base := models.NewPropertyRecord()
		base.AddressFull = rec.AddressFull
		base.Street = rec.Street
		base.HouseNumber = rec.HouseNumber
		base.HouseNumberSuffix = rec.HouseNumberSuffix
		base.PostalCode = rec.PostalCode
		base.City = rec.City

		merged = append(merged, models.MergedRecord{
			PropertyRecord: base,
			Secondary:      &detail,
			MatchType:      models.MatchSecondaryOnly,
			MatchNotes:     "Only in Realworks",
		})
	}

	l.logSummary(merged)
	return merged
}

func (l *Linker) link(primary, secondary []models.PropertyRecord) ([]models.MergedRecord, []bool) {
	idx := newIndex(secondary)
	used := make([]bool, len(secondary))
	merged := make([]models.MergedRecord, 0, len(primary))

	for _, rec := range primary {
		m, at := l.match(rec, idx)
		if at >= 0 {
			used[at] = true
		}
		merged = append(merged, m)
	}
	return merged, used
}

// match links one primary record. It returns the index of the secondary
// record used, or -1.
func (l *Linker) match(rec models.PropertyRecord, idx *index) (models.MergedRecord, int) {
	out := models.MergedRecord{
		PropertyRecord: rec,
		MatchType:      models.MatchNone,
	}

	key := Key(rec)
	if key == "" {
		out.MatchNotes = "No address"
		return out, -1
	}

	if at, ok := idx.exact[key]; ok {
		return l.attach(out, idx.records[at], at, models.MatchExact, 100,
			fmt.Sprintf("Exact match: %s", idx.records[at].AddressFull))
	}

	best, bestScore := -1, 0.0
	for i, candidate := range idx.keys {
		if candidate == "" {
			continue
		}
		if score := address.TokenOverlap(key, candidate); score > bestScore {
			best, bestScore = i, score
		}
	}

	if best >= 0 && bestScore > l.fuzzyThreshold {
		return l.attach(out, idx.records[best], best, models.MatchFuzzy, bestScore,
			fmt.Sprintf("Fuzzy match (%.1f%%): %s", bestScore, idx.records[best].AddressFull))
	}

	out.MatchNotes = "No match found"
	return out, -1
}

// attach copies the secondary record at position at into out. A record that
// fails validation leaves out unlinked with a note and returns -1.
func (l *Linker) attach(out models.MergedRecord, secondary models.PropertyRecord, at int, matchType models.MatchType, score float64, notes string) (models.MergedRecord, int) {
	if err := validate(secondary); err != nil {
		l.logger.WithFields(logrus.Fields{
			"address":   out.AddressFull,
			"secondary": secondary.AddressFull,
		}).WithError(err).Warn("Rejected linked record")
		out.MatchNotes = fmt.Sprintf("Rejected %s: %v", secondary.AddressFull, err)
		return out, -1
	}

	detail := secondary.Clone()
	out.Secondary = &detail
	out.MatchType = matchType
	out.MatchScore = score
	out.MatchNotes = notes
	return out, at
}

func validate(rec models.PropertyRecord) error {
	if rec.AreaM2 != nil && *rec.AreaM2 <= 0 {
		return fmt.Errorf("invalid area %.1f", *rec.AreaM2)
	}
	for name, v := range map[string]*int{
		"rooms":     rec.Rooms,
		"bedrooms":  rec.Bedrooms,
		"bathrooms": rec.Bathrooms,
		"toilets":   rec.Toilets,
	} {
		if v != nil && *v < 0 {
			return fmt.Errorf("negative %s %d", name, *v)
		}
	}
	if rec.YearBuilt != nil && (*rec.YearBuilt < 1200 || *rec.YearBuilt > time.Now().Year()+10) {
		return fmt.Errorf("implausible year built %d", *rec.YearBuilt)
	}
	return nil
}

// Summary counts merged records per match type.
func Summary(merged []models.MergedRecord) map[models.MatchType]int {
	counts := make(map[models.MatchType]int)
	for _, m := range merged {
		counts[m.MatchType]++
	}
	return counts
}

func (l *Linker) logSummary(merged []models.MergedRecord) {
	fields := logrus.Fields{"total": len(merged)}
	for matchType, n := range Summary(merged) {
		fields[string(matchType)] = n
	}
	l.logger.WithFields(fields).Info("Linked records")
}
