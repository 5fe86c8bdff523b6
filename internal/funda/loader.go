// Package funda reads Funda scraper exports into property records.
package funda

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/models"
)

var ErrNoStreetColumn = errors.New("listing export has no street column")

// Field names a logical listing attribute.
type Field string

const (
	FieldAddressFull   Field = "address_full"
	FieldStreet        Field = "street"
	FieldHouseNumber   Field = "house_number"
	FieldSuffix        Field = "house_number_suffix"
	FieldPostalCode    Field = "postal_code"
	FieldCity          Field = "city"
	FieldNeighbourhood Field = "neighbourhood"
	FieldPrice         Field = "price"
	FieldArea          Field = "area"
	FieldRooms         Field = "rooms"
	FieldBedrooms      Field = "bedrooms"
	FieldEnergyLabel   Field = "energy_label"
	FieldYearBuilt     Field = "year_built"
	FieldURL           Field = "url"
	FieldLatitude      Field = "latitude"
	FieldLongitude     Field = "longitude"
)

// Schema lists candidate column names per field, most specific first.
type Schema map[Field][]string

// DefaultSchema covers the scraper export and the flattened column names
// written by earlier pipeline runs.
var DefaultSchema = Schema{
	FieldAddressFull:   {"address_full"},
	FieldStreet:        {"address/street_name", "street_name", "address_street_name", "street"},
	FieldHouseNumber:   {"address/house_number", "house_number"},
	FieldSuffix:        {"address/house_number_suffix", "house_number_suffix"},
	FieldPostalCode:    {"address/postal_code", "postal_code", "zip"},
	FieldCity:          {"address/city", "city"},
	FieldNeighbourhood: {"address/neighbourhood", "neighbourhood"},
	FieldPrice:         {"price/selling_price/0", "selling_price", "price"},
	FieldArea:          {"floor_area/0", "floor_area", "area", "living_area"},
	FieldRooms:         {"number_of_rooms", "rooms"},
	FieldBedrooms:      {"number_of_bedrooms", "bedrooms"},
	FieldEnergyLabel:   {"energy_label"},
	FieldYearBuilt:     {"construction_year", "year_built"},
	FieldURL:           {"object_detail_page_relative_url", "url"},
	FieldLatitude:      {"coordinates/lat", "latitude", "lat"},
	FieldLongitude:     {"coordinates/lng", "coordinates/lon", "longitude", "lon", "lng"},
}

// Mapping is a schema resolved against one header: field -> column index.
type Mapping map[Field]int

// Resolve picks the first candidate column present in header for each field.
func (s Schema) Resolve(header []string) (Mapping, error) {
	positions := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF")))
		if _, ok := positions[h]; !ok {
			positions[h] = i
		}
	}

	m := make(Mapping)
	for field, candidates := range s {
		for _, c := range candidates {
			if i, ok := positions[c]; ok {
				m[field] = i
				break
			}
		}
	}

	if _, ok := m[FieldStreet]; !ok {
		return nil, ErrNoStreetColumn
	}
	return m, nil
}

func (m Mapping) get(row []string, field Field) string {
	i, ok := m[field]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

type Loader struct {
	logger *logrus.Logger
	schema Schema
}

func NewLoader(logger *logrus.Logger) *Loader {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	return &Loader{logger: logger, schema: DefaultSchema}
}

// Load reads a listing export from disk.
func (l *Loader) Load(path string) ([]models.PropertyRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open listing export: %w", err)
	}
	defer f.Close()

	records, err := l.Read(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return records, nil
}

// Read parses a listing export. Rows without a street are dropped.
func (l *Loader) Read(r io.Reader) ([]models.PropertyRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	mapping, err := l.schema.Resolve(header)
	if err != nil {
		return nil, err
	}

	var records []models.PropertyRecord
	dropped := 0
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", line, err)
		}

		rec, ok := l.record(mapping, row)
		if !ok {
			dropped++
			continue
		}
		records = append(records, rec)
	}

	l.logger.WithFields(logrus.Fields{
		"records": len(records),
		"dropped": dropped,
	}).Info("Loaded listing export")
	return records, nil
}

func (l *Loader) record(m Mapping, row []string) (models.PropertyRecord, bool) {
	rec := models.NewPropertyRecord()
	rec.Street = m.get(row, FieldStreet)
	if rec.Street == "" {
		return rec, false
	}

	rec.HouseNumber = integerText(m.get(row, FieldHouseNumber))
	rec.HouseNumberSuffix = strings.TrimLeft(m.get(row, FieldSuffix), "-")
	rec.PostalCode = strings.ToUpper(strings.ReplaceAll(m.get(row, FieldPostalCode), " ", ""))
	rec.City = m.get(row, FieldCity)
	rec.Neighbourhood = m.get(row, FieldNeighbourhood)
	rec.URL = m.get(row, FieldURL)

	rec.AddressFull = m.get(row, FieldAddressFull)
	if rec.AddressFull == "" {
		rec.AddressFull = displayAddress(rec)
	}

	rec.SalePrice = parseFloat(m.get(row, FieldPrice))
	rec.AreaM2 = parseFloat(m.get(row, FieldArea))
	rec.Rooms = parseInt(m.get(row, FieldRooms))
	rec.Bedrooms = parseInt(m.get(row, FieldBedrooms))
	rec.YearBuilt = parseInt(m.get(row, FieldYearBuilt))
	rec.Latitude = parseFloat(m.get(row, FieldLatitude))
	rec.Longitude = parseFloat(m.get(row, FieldLongitude))

	if label := strings.ToUpper(m.get(row, FieldEnergyLabel)); models.EnergyLabelIndex(label) >= 0 {
		rec.EnergyLabel = label
	}
	return rec, true
}

// displayAddress renders "Street 10A, 1015CJ, Amsterdam" like the scraper does.
func displayAddress(rec models.PropertyRecord) string {
	street := strings.TrimSpace(rec.Street + " " + rec.HouseNumber + rec.HouseNumberSuffix)
	parts := []string{street}
	for _, p := range []string{rec.PostalCode, rec.City} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// integerText turns "10.0" into "10" and leaves other text alone.
func integerText(s string) string {
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) {
		return strconv.FormatInt(int64(f), 10)
	}
	return s
}

func parseFloat(s string) *float64 {
	s = strings.NewReplacer("€", "", " ", "").Replace(s)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return nil
	}
	return &f
}

func parseInt(s string) *int {
	f := parseFloat(s)
	if f == nil {
		return nil
	}
	n := int(math.Round(*f))
	return &n
}
