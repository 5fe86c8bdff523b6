package realworks

import (
	"regexp"
	"strings"

	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/models"
)

// fieldRule extracts one field. Patterns are tried in order and the first one
// whose capture converts cleanly wins.
type fieldRule struct {
	name     string
	patterns []*regexp.Regexp
	assign   func(rec *models.PropertyRecord, value string) error
}

const amount = `€?\s*([\d.,]+)`
const date = `(\d{1,2}[-/]\d{1,2}[-/]\d{2,4})`

func rx(pattern string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + pattern)
}

var fieldRules = []fieldRule{
	{
		// sale price comes from the transaction price and nothing else
		name:     "sale_price",
		patterns: []*regexp.Regexp{rx(`Transactie\s*prijs\s*:?[\s\-–]*` + amount)},
		assign: func(rec *models.PropertyRecord, v string) error {
			return setFloat(&rec.SalePrice, v, ParseEuro)
		},
	},
	{
		name: "ask_price",
		patterns: []*regexp.Regexp{
			rx(`Vraag\s*prijs[^\d€]*` + amount),
			rx(`Vraagprijs[^\d€]*` + amount),
			rx(`Bieden\s*va?n?af[^\d€]*` + amount),
			rx(`Vraagprijs\s*bieden\s*va?n?af[^\d€]*` + amount),
		},
		assign: func(rec *models.PropertyRecord, v string) error {
			return setFloat(&rec.AskPrice, v, ParseEuro)
		},
	},
	{
		// the transport date is the legal transfer and doubles as sale date
		name:     "transport_date",
		patterns: []*regexp.Regexp{rx(`Transport\s*datum.*?` + date)},
		assign: func(rec *models.PropertyRecord, v string) error {
			if err := setDate(&rec.TransportDate, v); err != nil {
				return err
			}
			rec.SaleDate = rec.TransportDate
			return nil
		},
	},
	{
		name:     "list_date",
		patterns: []*regexp.Regexp{rx(`Aangemeld.*?` + date)},
		assign: func(rec *models.PropertyRecord, v string) error {
			return setDate(&rec.ListDate, v)
		},
	},
	{
		name:     "delist_date",
		patterns: []*regexp.Regexp{rx(`Afgemeld.*?` + date)},
		assign: func(rec *models.PropertyRecord, v string) error {
			return setDate(&rec.DelistDate, v)
		},
	},
	{
		name:     "days_on_market",
		patterns: []*regexp.Regexp{rx(`Dagen\s+op\s+de\s+markt.*?(\d+)`)},
		assign: func(rec *models.PropertyRecord, v string) error {
			return setInt(&rec.DaysOnMarket, v, parseCount)
		},
	},
	{
		name:     "area_m2",
		patterns: []*regexp.Regexp{rx(`Woonoppervlakte.*?(\d+(?:[.,]\d+)?)\s*m`)},
		assign: func(rec *models.PropertyRecord, v string) error {
			return setFloat(&rec.AreaM2, v, ParseDecimal)
		},
	},
	{
		name:     "rooms",
		patterns: []*regexp.Regexp{rx(`Aantal\s+kamers.*?(\d+)`)},
		assign: func(rec *models.PropertyRecord, v string) error {
			return setInt(&rec.Rooms, v, parseCount)
		},
	},
	{
		name:     "bedrooms",
		patterns: []*regexp.Regexp{rx(`\((\d+)\s+slaapkamer`)},
		assign: func(rec *models.PropertyRecord, v string) error {
			return setInt(&rec.Bedrooms, v, parseCount)
		},
	},
	{
		name:     "bathrooms",
		patterns: []*regexp.Regexp{rx(`Aantal\s+badkamers.*?(\d+)`)},
		assign: func(rec *models.PropertyRecord, v string) error {
			return setInt(&rec.Bathrooms, v, parseCount)
		},
	},
	{
		name:     "toilets",
		patterns: []*regexp.Regexp{rx(`(\d+)\s+Toilet`)},
		assign: func(rec *models.PropertyRecord, v string) error {
			return setInt(&rec.Toilets, v, parseCount)
		},
	},
	{
		// the label must follow the keyword directly, so "onbekend" is no "B"
		name:     "energy_label",
		patterns: []*regexp.Regexp{rx(`Energielabel[^A-Za-z\n]*([A-G]\+{0,4})(?:[^A-Za-z+]|$)`)},
		assign: func(rec *models.PropertyRecord, v string) error {
			rec.EnergyLabel = strings.ToUpper(v)
			return nil
		},
	},
	{
		name:     "maintenance_inside",
		patterns: []*regexp.Regexp{rx(`Binnen.*?(Uitstekend|Goed|Redelijk|Matig)`)},
		assign: func(rec *models.PropertyRecord, v string) error {
			rec.MaintenanceInside = titleCase(v)
			return nil
		},
	},
	{
		name:     "maintenance_outside",
		patterns: []*regexp.Regexp{rx(`Buiten.*?(Uitstekend|Goed|Redelijk|Matig)`)},
		assign: func(rec *models.PropertyRecord, v string) error {
			rec.MaintenanceOutside = titleCase(v)
			return nil
		},
	},
	{
		name:     "garden_type",
		patterns: []*regexp.Regexp{rx(`Tuin.*?(Geen tuin|Achtertuin|Voortuin|Plaats|Patio)`)},
		assign: func(rec *models.PropertyRecord, v string) error {
			rec.GardenType = titleCase(v)
			rec.HasGarden = !strings.EqualFold(v, "geen tuin")
			return nil
		},
	},
	{
		name:     "garden_area_m2",
		patterns: []*regexp.Regexp{rx(`Achtertuin.*?(\d+)\s*m²`)},
		assign: func(rec *models.PropertyRecord, v string) error {
			return setFloat(&rec.GardenAreaM2, v, ParseDecimal)
		},
	},
	{
		name:     "type",
		patterns: []*regexp.Regexp{rx(`Type.*?(Appartement|Woonhuis)`)},
		assign: func(rec *models.PropertyRecord, v string) error {
			rec.Type = titleCase(v)
			return nil
		},
	},
	{
		name:     "subtype",
		patterns: []*regexp.Regexp{rx(`Soort.*?(Bovenwoning|Benedenwoning|Portiek|Maisonnette)`)},
		assign: func(rec *models.PropertyRecord, v string) error {
			rec.Subtype = titleCase(v)
			return nil
		},
	},
	{
		// a construction period beats a single construction year
		name: "year_built",
		patterns: []*regexp.Regexp{
			rx(`Bouwperiode.*?-\s*(\d{4})`),
			rx(`Bouwjaar.*?(\d{4})`),
		},
		assign: func(rec *models.PropertyRecord, v string) error {
			return setInt(&rec.YearBuilt, v, parseYear)
		},
	},
	{
		name:     "vve_monthly_fee",
		patterns: []*regexp.Regexp{rx(`VvE\s+bijdrage.*?€\s?([\d.,]+)`)},
		assign: func(rec *models.PropertyRecord, v string) error {
			return setFloat(&rec.VVEMonthlyFee, v, ParseEuro)
		},
	},
	{
		name:     "heating",
		patterns: []*regexp.Regexp{rx(`Verwarming.*?(C\.V\.-Ketel|Elektrisch|Warmtepomp|Stadsverwarming)`)},
		assign: func(rec *models.PropertyRecord, v string) error {
			rec.Heating = v
			return nil
		},
	},
	{
		name:     "hot_water",
		patterns: []*regexp.Regexp{rx(`Warm\s+water.*?(C\.V\.-Ketel|Elektrische boiler|Geiser|Warmtepomp|Stadsverwarming)`)},
		assign: func(rec *models.PropertyRecord, v string) error {
			rec.HotWater = v
			return nil
		},
	},
	{
		name:     "garage_type",
		patterns: []*regexp.Regexp{rx(`Soort\s+garage.*?(Geen garage|Garagebox|Parkeergarage|Inpandig|Parkeerkelder)`)},
		assign: func(rec *models.PropertyRecord, v string) error {
			rec.GarageType = titleCase(v)
			rec.HasGarage = !strings.EqualFold(v, "geen garage")
			return nil
		},
	},
	{
		name:     "floor",
		patterns: []*regexp.Regexp{rx(`(?:Woonlaag|Gelegen\s+op)[ \t]*:?[ \t]*([^\n]+)`)},
		assign: func(rec *models.PropertyRecord, v string) error {
			rec.Floor = strings.TrimSpace(v)
			return nil
		},
	},
	{
		name:     "outdoor_text",
		patterns: []*regexp.Regexp{rx(`Ligging\s+(?:tuin|buitenruimte)[ \t]*:?[ \t]*([^\n]+)`)},
		assign: func(rec *models.PropertyRecord, v string) error {
			rec.OutdoorText = strings.TrimSpace(v)
			return nil
		},
	},
	{
		name:     "notes",
		patterns: []*regexp.Regexp{rx(`Bijzonderheden[ \t]*:?[ \t]*([^\n]+)`)},
		assign: func(rec *models.PropertyRecord, v string) error {
			rec.Notes = strings.TrimSpace(v)
			return nil
		},
	},
}

// keywordFlags are set by presence of any keyword in the lower-cased text.
// A negation phrase clears the flag again.
var keywordFlags = []struct {
	keywords []string
	negation string
	flag     func(rec *models.PropertyRecord) *bool
}{
	{[]string{"tuin"}, "geen tuin", func(r *models.PropertyRecord) *bool { return &r.HasGarden }},
	{[]string{"balkon"}, "geen balkon", func(r *models.PropertyRecord) *bool { return &r.HasBalcony }},
	{[]string{"terras"}, "geen terras", func(r *models.PropertyRecord) *bool { return &r.HasTerrace }},
	{[]string{"lift"}, "geen lift", func(r *models.PropertyRecord) *bool { return &r.HasLift }},
	{[]string{"bergruimte", "berging"}, "geen berging", func(r *models.PropertyRecord) *bool { return &r.HasStorage }},
	{[]string{"parkeergelegenheid", "parkeren"}, "", func(r *models.PropertyRecord) *bool { return &r.HasParking }},
	{[]string{"garage"}, "geen garage", func(r *models.PropertyRecord) *bool { return &r.HasGarage }},
}

func applyKeywords(rec *models.PropertyRecord, text string) {
	lower := strings.ToLower(text)
	for _, kf := range keywordFlags {
		found := false
		for _, kw := range kf.keywords {
			if strings.Contains(lower, kw) {
				found = true
				break
			}
		}
		if kf.negation != "" && strings.Contains(lower, kf.negation) {
			found = false
		}
		*kf.flag(rec) = found
	}
}

func setFloat(dst **float64, v string, parse func(string) (float64, error)) error {
	f, err := parse(v)
	if err != nil {
		return err
	}
	*dst = &f
	return nil
}

func setInt(dst **int, v string, parse func(string) (int, error)) error {
	n, err := parse(v)
	if err != nil {
		return err
	}
	*dst = &n
	return nil
}

func setDate(dst **string, v string) error {
	d, err := ParseDate(v)
	if err != nil {
		return err
	}
	*dst = &d
	return nil
}
