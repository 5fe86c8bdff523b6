// Package realworks turns the plain text of Realworks RTF exports into
// property records.
package realworks

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/xrash/smetrics"

	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/address"
	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/models"
	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/rtf"
)

var ErrNoAddress = errors.New("segment has no address")

// addressPattern anchors each property in an export: street, house number
// with optional suffix, postal code and city.
var addressPattern = regexp.MustCompile(`([A-Za-zÀ-ÿ.' -]+)\s+(\d+(?:(?:[ \t]+|-)[A-Za-z0-9]+)?)\s*,\s*(\d{4}\s?[A-Z]{2})\s+([A-Za-z ]+)`)

// ParseError describes a segment or file that produced no record.
type ParseError struct {
	Source string
	Offset int
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s at offset %d: %v", e.Source, e.Offset, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Result is the outcome for one segment. Exactly one of Record and Err is set.
type Result struct {
	Record *models.PropertyRecord
	Err    error
}

type Parser struct {
	logger           *logrus.Logger
	minSegmentLength int
}

func NewParser(logger *logrus.Logger, minSegmentLength int) *Parser {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	return &Parser{
		logger:           logger,
		minSegmentLength: minSegmentLength,
	}
}

// Segment splits text at every address match. Each segment runs up to the
// next address; segments shorter than the minimum length are dropped.
func (p *Parser) Segment(text string) []string {
	matches := addressPattern.FindAllStringIndex(text, -1)
	segments := make([]string, 0, len(matches))

	for i, m := range matches {
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		seg := strings.TrimSpace(text[m[0]:end])
		if utf8.RuneCountInString(seg) < p.minSegmentLength {
			p.logger.WithFields(logrus.Fields{
				"offset": m[0],
				"length": utf8.RuneCountInString(seg),
			}).Debug("Skipping short segment")
			continue
		}
		segments = append(segments, seg)
	}
	return segments
}

// ParseSegment extracts one record from a segment that starts with an address.
// Fields whose text cannot be converted are left empty and logged.
func (p *Parser) ParseSegment(segment, source string) (models.PropertyRecord, error) {
	m := addressPattern.FindStringSubmatch(segment)
	if m == nil {
		return models.PropertyRecord{}, ErrNoAddress
	}

	rec := models.NewPropertyRecord()
	rec.SourceFile = source

	street := strings.Join(strings.Fields(m[1]), " ")
	unit := strings.FieldsFunc(m[2], func(r rune) bool {
		return r == ' ' || r == '\t' || r == '-'
	})
	postal := strings.ToUpper(strings.Join(strings.Fields(m[3]), " "))
	city := strings.TrimSpace(m[4])

	rec.Street = street
	rec.HouseNumber = unit[0]
	if len(unit) > 1 {
		rec.HouseNumberSuffix = unit[1]
	}
	rec.PostalCode = strings.ReplaceAll(postal, " ", "")
	rec.City = city
	rec.AddressFull = fmt.Sprintf("%s %s, %s %s", street, strings.Join(unit, " "), postal, city)

	applyKeywords(&rec, segment)

	for _, rule := range fieldRules {
		for _, pattern := range rule.patterns {
			sub := pattern.FindStringSubmatch(segment)
			if sub == nil {
				continue
			}
			if err := rule.assign(&rec, sub[1]); err != nil {
				p.logger.WithFields(logrus.Fields{
					"field":   rule.name,
					"value":   sub[1],
					"address": rec.AddressFull,
				}).WithError(err).Warn("Failed to convert field value")
				continue
			}
			break
		}
	}

	return rec, nil
}

// ParseText parses every segment of an extracted document.
func (p *Parser) ParseText(text, source string) []Result {
	var results []Result
	offset := 0
	for _, seg := range p.Segment(text) {
		if idx := strings.Index(text[offset:], seg); idx >= 0 {
			offset += idx
		}
		rec, err := p.ParseSegment(seg, source)
		if err != nil {
			results = append(results, Result{Err: &ParseError{Source: source, Offset: offset, Err: err}})
			continue
		}
		results = append(results, Result{Record: &rec})
	}
	return results
}

// ParseFile extracts and parses one RTF export.
func (p *Parser) ParseFile(path string) []Result {
	text, err := rtf.ExtractFile(path)
	if err != nil {
		return []Result{{Err: &ParseError{Source: path, Err: err}}}
	}

	results := p.ParseText(text, filepath.Base(path))
	p.logger.WithFields(logrus.Fields{
		"file":     filepath.Base(path),
		"segments": len(results),
	}).Info("Parsed Realworks export")
	return results
}

// ParseFiles parses every file in order. One broken file does not stop the rest.
func (p *Parser) ParseFiles(paths []string) []Result {
	var results []Result
	for _, path := range paths {
		results = append(results, p.ParseFile(path)...)
	}
	return results
}

// Collect separates records from failures.
func Collect(results []Result) ([]models.PropertyRecord, []error) {
	var records []models.PropertyRecord
	var failures []error
	for _, r := range results {
		if r.Err != nil {
			failures = append(failures, r.Err)
			continue
		}
		if r.Record != nil {
			records = append(records, *r.Record)
		}
	}
	return records, failures
}

// FindRTFFiles lists the .rtf files directly inside dir, sorted by name.
func FindRTFFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read export directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".rtf") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	return paths, nil
}

// FilterByStreets keeps records on one of the given streets, comparing
// normalized names with Jaro-Winkler. It also reports which requested streets
// had records and which had none.
func FilterByStreets(records []models.PropertyRecord, streets []string, minSimilarity float64) (kept []models.PropertyRecord, found, missing []string) {
	wanted := make([]string, len(streets))
	for i, s := range streets {
		wanted[i] = address.NormalizeStreet(s)
	}

	hits := make([]bool, len(streets))
	for _, rec := range records {
		name := address.NormalizeStreet(rec.Street)
		for i, w := range wanted {
			if w == "" {
				continue
			}
			if name == w || smetrics.JaroWinkler(name, w, 0.7, 4) >= minSimilarity {
				kept = append(kept, rec)
				hits[i] = true
				break
			}
		}
	}

	for i, s := range streets {
		if hits[i] {
			found = append(found, s)
		} else {
			missing = append(missing, s)
		}
	}
	return kept, found, missing
}
