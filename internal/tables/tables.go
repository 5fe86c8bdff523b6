// Package tables reads and writes the CSV and JSON files passed between
// pipeline stages.
package tables

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/models"
)

var (
	matchColumns     = []string{"match_type", "match_score", "match_notes"}
	shortlistColumns = []string{"rank", "similarity_score", "final_score"}
)

// RecordHeader is the column set of the Realworks parse output.
func RecordHeader() []string {
	return recordHeader("")
}

// MergedHeader is primary columns, secondary columns, then match columns.
func MergedHeader() []string {
	h := append(recordHeader(""), recordHeader(SecondaryPrefix)...)
	return append(h, matchColumns...)
}

// ShortlistHeader is the merged header followed by the ranking columns.
func ShortlistHeader() []string {
	return append(MergedHeader(), shortlistColumns...)
}

func WriteRecords(w io.Writer, records []models.PropertyRecord) error {
	rows := make([][]string, len(records))
	for i := range records {
		rows[i] = recordRow(&records[i])
	}
	return writeCSV(w, RecordHeader(), rows)
}

func ReadRecords(r io.Reader) ([]models.PropertyRecord, error) {
	h, rows, err := readCSV(r)
	if err != nil {
		return nil, err
	}

	records := make([]models.PropertyRecord, 0, len(rows))
	for i, row := range rows {
		rec, _, err := readRecord(h, row, "")
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func WriteMerged(w io.Writer, merged []models.MergedRecord) error {
	rows := make([][]string, len(merged))
	for i := range merged {
		rows[i] = mergedRow(&merged[i])
	}
	return writeCSV(w, MergedHeader(), rows)
}

func ReadMerged(r io.Reader) ([]models.MergedRecord, error) {
	h, rows, err := readCSV(r)
	if err != nil {
		return nil, err
	}

	merged := make([]models.MergedRecord, 0, len(rows))
	for i, row := range rows {
		m, err := readMerged(h, row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		merged = append(merged, m)
	}
	return merged, nil
}

func WriteShortlist(w io.Writer, results []models.SimilarityResult) error {
	rows := make([][]string, len(results))
	for i := range results {
		r := &results[i]
		rows[i] = append(mergedRow(&r.Record),
			strconv.Itoa(r.Rank),
			strconv.FormatFloat(r.SimilarityScore, 'f', -1, 64),
			strconv.FormatFloat(r.FinalScore, 'f', -1, 64),
		)
	}
	return writeCSV(w, ShortlistHeader(), rows)
}

func ReadShortlist(r io.Reader) ([]models.SimilarityResult, error) {
	h, rows, err := readCSV(r)
	if err != nil {
		return nil, err
	}

	results := make([]models.SimilarityResult, 0, len(rows))
	for i, row := range rows {
		m, err := readMerged(h, row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}

		res := models.SimilarityResult{Record: m, Rank: i + 1}
		if v, ok := h.value(row, "rank"); ok && v != "" {
			if res.Rank, err = strconv.Atoi(v); err != nil {
				return nil, fmt.Errorf("row %d: invalid rank %q", i+2, v)
			}
		}
		if res.SimilarityScore, err = h.float(row, "similarity_score"); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		if res.FinalScore, err = h.float(row, "final_score"); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		results = append(results, res)
	}
	return results, nil
}

func mergedRow(m *models.MergedRecord) []string {
	row := append(recordRow(&m.PropertyRecord), recordRow(m.Secondary)...)
	return append(row,
		string(m.MatchType),
		strconv.FormatFloat(m.MatchScore, 'f', -1, 64),
		m.MatchNotes,
	)
}

func readMerged(h header, row []string) (models.MergedRecord, error) {
	primary, _, err := readRecord(h, row, "")
	if err != nil {
		return models.MergedRecord{}, err
	}
	m := models.MergedRecord{PropertyRecord: primary}

	v, _ := h.value(row, "match_type")
	m.MatchType = models.ParseMatchType(v)
	m.MatchNotes, _ = h.value(row, "match_notes")
	if m.MatchScore, err = h.float(row, "match_score"); err != nil {
		return m, err
	}

	secondary, present, err := readRecord(h, row, SecondaryPrefix)
	if err != nil {
		return m, err
	}
	if present && m.MatchType != models.MatchNone {
		m.Secondary = &secondary
	}
	return m, nil
}

// header maps column names to positions.
type header map[string]int

func (h header) value(row []string, name string) (string, bool) {
	i, ok := h[name]
	if !ok || i >= len(row) {
		return "", false
	}
	return strings.TrimSpace(row[i]), true
}

func (h header) float(row []string, name string) (float64, error) {
	v, ok := h.value(row, name)
	if !ok || v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("column %s: invalid number %q", name, v)
	}
	return f, nil
}

func writeCSV(w io.Writer, head []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(head); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write rows: %w", err)
	}
	return nil
}

func readCSV(r io.Reader) (header, [][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	head, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read header: %w", err)
	}
	h := make(header, len(head))
	for i, name := range head {
		h[strings.TrimSpace(strings.TrimPrefix(name, "\uFEFF"))] = i
	}

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return h, rows, nil
}

// WriteFile creates path and its directory and hands the file to write.
func WriteFile(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// ReadFile opens path and hands the file to read.
func ReadFile[T any](path string, read func(io.Reader) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(path)
	if err != nil {
		return zero, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	v, err := read(f)
	if err != nil {
		return zero, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return v, nil
}

// WriteJSON writes v as indented JSON, creating the parent directory.
func WriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	return WriteFile(path, func(w io.Writer) error {
		_, err := w.Write(append(data, '\n'))
		return err
	})
}

// ReadJSON decodes the JSON file at path into v.
func ReadJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}
