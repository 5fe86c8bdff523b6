package tables

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/models"
)

// column maps one CSV column onto a PropertyRecord field.
type column struct {
	name string
	get  func(r *models.PropertyRecord) string
	set  func(r *models.PropertyRecord, v string) error
}

func stringCol(name string, field func(r *models.PropertyRecord) *string) column {
	return column{
		name: name,
		get:  func(r *models.PropertyRecord) string { return *field(r) },
		set: func(r *models.PropertyRecord, v string) error {
			*field(r) = v
			return nil
		},
	}
}

func optionalStringCol(name string, field func(r *models.PropertyRecord) **string) column {
	return column{
		name: name,
		get: func(r *models.PropertyRecord) string {
			if p := *field(r); p != nil {
				return *p
			}
			return ""
		},
		set: func(r *models.PropertyRecord, v string) error {
			if v == "" {
				*field(r) = nil
				return nil
			}
			*field(r) = &v
			return nil
		},
	}
}

func floatCol(name string, field func(r *models.PropertyRecord) **float64) column {
	return column{
		name: name,
		get: func(r *models.PropertyRecord) string {
			return formatFloat(*field(r))
		},
		set: func(r *models.PropertyRecord, v string) error {
			f, err := parseFloat(v)
			if err != nil {
				return err
			}
			*field(r) = f
			return nil
		},
	}
}

func intCol(name string, field func(r *models.PropertyRecord) **int) column {
	return column{
		name: name,
		get: func(r *models.PropertyRecord) string {
			if p := *field(r); p != nil {
				return strconv.Itoa(*p)
			}
			return ""
		},
		set: func(r *models.PropertyRecord, v string) error {
			f, err := parseFloat(v)
			if err != nil || f == nil {
				*field(r) = nil
				return err
			}
			n := int(*f)
			*field(r) = &n
			return nil
		},
	}
}

func boolCol(name string, field func(r *models.PropertyRecord) *bool) column {
	return column{
		name: name,
		get: func(r *models.PropertyRecord) string {
			return strconv.FormatBool(*field(r))
		},
		set: func(r *models.PropertyRecord, v string) error {
			if v == "" {
				*field(r) = false
				return nil
			}
			b, err := strconv.ParseBool(strings.ToLower(v))
			if err != nil {
				return fmt.Errorf("invalid boolean %q", v)
			}
			*field(r) = b
			return nil
		},
	}
}

var recordColumns = []column{
	stringCol("address_full", func(r *models.PropertyRecord) *string { return &r.AddressFull }),
	stringCol("street", func(r *models.PropertyRecord) *string { return &r.Street }),
	stringCol("house_number", func(r *models.PropertyRecord) *string { return &r.HouseNumber }),
	stringCol("house_number_suffix", func(r *models.PropertyRecord) *string { return &r.HouseNumberSuffix }),
	stringCol("postal_code", func(r *models.PropertyRecord) *string { return &r.PostalCode }),
	stringCol("city", func(r *models.PropertyRecord) *string { return &r.City }),
	stringCol("neighbourhood", func(r *models.PropertyRecord) *string { return &r.Neighbourhood }),
	stringCol("url", func(r *models.PropertyRecord) *string { return &r.URL }),
	floatCol("sale_price", func(r *models.PropertyRecord) **float64 { return &r.SalePrice }),
	floatCol("ask_price", func(r *models.PropertyRecord) **float64 { return &r.AskPrice }),
	optionalStringCol("sale_date", func(r *models.PropertyRecord) **string { return &r.SaleDate }),
	optionalStringCol("list_date", func(r *models.PropertyRecord) **string { return &r.ListDate }),
	optionalStringCol("delist_date", func(r *models.PropertyRecord) **string { return &r.DelistDate }),
	optionalStringCol("transport_date", func(r *models.PropertyRecord) **string { return &r.TransportDate }),
	intCol("days_on_market", func(r *models.PropertyRecord) **int { return &r.DaysOnMarket }),
	floatCol("area_m2", func(r *models.PropertyRecord) **float64 { return &r.AreaM2 }),
	intCol("rooms", func(r *models.PropertyRecord) **int { return &r.Rooms }),
	intCol("bedrooms", func(r *models.PropertyRecord) **int { return &r.Bedrooms }),
	intCol("bathrooms", func(r *models.PropertyRecord) **int { return &r.Bathrooms }),
	intCol("toilets", func(r *models.PropertyRecord) **int { return &r.Toilets }),
	intCol("year_built", func(r *models.PropertyRecord) **int { return &r.YearBuilt }),
	stringCol("type", func(r *models.PropertyRecord) *string { return &r.Type }),
	stringCol("subtype", func(r *models.PropertyRecord) *string { return &r.Subtype }),
	stringCol("energy_label", func(r *models.PropertyRecord) *string { return &r.EnergyLabel }),
	stringCol("maintenance_inside", func(r *models.PropertyRecord) *string { return &r.MaintenanceInside }),
	stringCol("maintenance_outside", func(r *models.PropertyRecord) *string { return &r.MaintenanceOutside }),
	boolCol("has_garden", func(r *models.PropertyRecord) *bool { return &r.HasGarden }),
	boolCol("has_balcony", func(r *models.PropertyRecord) *bool { return &r.HasBalcony }),
	boolCol("has_terrace", func(r *models.PropertyRecord) *bool { return &r.HasTerrace }),
	boolCol("has_lift", func(r *models.PropertyRecord) *bool { return &r.HasLift }),
	boolCol("has_storage", func(r *models.PropertyRecord) *bool { return &r.HasStorage }),
	boolCol("has_parking", func(r *models.PropertyRecord) *bool { return &r.HasParking }),
	boolCol("has_garage", func(r *models.PropertyRecord) *bool { return &r.HasGarage }),
	floatCol("garden_area_m2", func(r *models.PropertyRecord) **float64 { return &r.GardenAreaM2 }),
	floatCol("vve_monthly_fee", func(r *models.PropertyRecord) **float64 { return &r.VVEMonthlyFee }),
	stringCol("garden_type", func(r *models.PropertyRecord) *string { return &r.GardenType }),
	stringCol("heating", func(r *models.PropertyRecord) *string { return &r.Heating }),
	stringCol("hot_water", func(r *models.PropertyRecord) *string { return &r.HotWater }),
	stringCol("garage_type", func(r *models.PropertyRecord) *string { return &r.GarageType }),
	stringCol("floor", func(r *models.PropertyRecord) *string { return &r.Floor }),
	stringCol("outdoor_text", func(r *models.PropertyRecord) *string { return &r.OutdoorText }),
	stringCol("notes", func(r *models.PropertyRecord) *string { return &r.Notes }),
	floatCol("latitude", func(r *models.PropertyRecord) **float64 { return &r.Latitude }),
	floatCol("longitude", func(r *models.PropertyRecord) **float64 { return &r.Longitude }),
	stringCol("source_file", func(r *models.PropertyRecord) *string { return &r.SourceFile }),
}

// SecondaryPrefix marks the linked Realworks columns in merged tables.
const SecondaryPrefix = "rw_"

func recordHeader(prefix string) []string {
	names := make([]string, len(recordColumns))
	for i, c := range recordColumns {
		names[i] = prefix + c.name
	}
	return names
}

func recordRow(r *models.PropertyRecord) []string {
	row := make([]string, len(recordColumns))
	if r == nil {
		return row
	}
	for i, c := range recordColumns {
		row[i] = c.get(r)
	}
	return row
}

// readRecord fills a record from the columns carrying prefix. It reports
// whether any of those columns held a value.
func readRecord(h header, row []string, prefix string) (models.PropertyRecord, bool, error) {
	rec := models.NewPropertyRecord()
	present := false
	for _, c := range recordColumns {
		v, ok := h.value(row, prefix+c.name)
		if !ok {
			continue
		}
		if v != "" {
			present = true
		}
		if err := c.set(&rec, v); err != nil {
			return rec, present, fmt.Errorf("column %s%s: %w", prefix, c.name, err)
		}
	}
	if rec.EnergyLabel == "" {
		rec.EnergyLabel = models.UnknownEnergyLabel
	}
	return rec, present, nil
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func parseFloat(v string) (*float64, error) {
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q", v)
	}
	return &f, nil
}
