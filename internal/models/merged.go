package models

// MatchType classifies how a primary record was linked to a secondary record.
type MatchType string

const (
	MatchExact         MatchType = "exact"
	MatchFuzzy         MatchType = "fuzzy"
	MatchBoth          MatchType = "both"
	MatchPrimaryOnly   MatchType = "primary_only"
	MatchSecondaryOnly MatchType = "secondary_only"
	MatchNone          MatchType = "no_match"
)

// Priority is the weight of the match type in the final ranking bonus.
func (m MatchType) Priority() int {
	switch m {
	case MatchExact, MatchBoth:
		return 3
	case MatchFuzzy, MatchPrimaryOnly:
		return 2
	case MatchSecondaryOnly:
		return 1
	default:
		return 0
	}
}

// Linked reports whether secondary data was attached to the record.
func (m MatchType) Linked() bool {
	return m == MatchExact || m == MatchFuzzy || m == MatchBoth
}

// ParseMatchType converts a stored string, defaulting to no_match.
func ParseMatchType(s string) MatchType {
	switch MatchType(s) {
	case MatchExact, MatchFuzzy, MatchBoth, MatchPrimaryOnly, MatchSecondaryOnly:
		return MatchType(s)
	default:
		return MatchNone
	}
}

// MergedRecord is a primary-source record with the linked secondary record, if any.
// Secondary is nil whenever MatchType is no_match.
type MergedRecord struct {
	PropertyRecord
	Secondary  *PropertyRecord `json:"secondary,omitempty"`
	MatchType  MatchType       `json:"match_type"`
	MatchScore float64         `json:"match_score"`
	MatchNotes string          `json:"match_notes"`
}

// Area prefers the Realworks area over the listing area.
func (m MergedRecord) Area() *float64 {
	if m.Secondary != nil && m.Secondary.AreaM2 != nil {
		return m.Secondary.AreaM2
	}
	return m.AreaM2
}

func (m MergedRecord) Rooms() *int {
	if m.Secondary != nil && m.Secondary.Rooms != nil {
		return m.Secondary.Rooms
	}
	return m.PropertyRecord.Rooms
}

func (m MergedRecord) Bedrooms() *int {
	if m.Secondary != nil && m.Secondary.Bedrooms != nil {
		return m.Secondary.Bedrooms
	}
	return m.PropertyRecord.Bedrooms
}

func (m MergedRecord) Bathrooms() *int {
	if m.Secondary != nil && m.Secondary.Bathrooms != nil {
		return m.Secondary.Bathrooms
	}
	return m.PropertyRecord.Bathrooms
}

func (m MergedRecord) YearBuilt() *int {
	if m.Secondary != nil && m.Secondary.YearBuilt != nil {
		return m.Secondary.YearBuilt
	}
	return m.PropertyRecord.YearBuilt
}

// SalePrice prefers the transaction price from Realworks.
func (m MergedRecord) SalePrice() *float64 {
	if m.Secondary != nil && m.Secondary.SalePrice != nil {
		return m.Secondary.SalePrice
	}
	return m.PropertyRecord.SalePrice
}

func (m MergedRecord) EnergyLabel() string {
	if m.Secondary != nil && EnergyLabelIndex(m.Secondary.EnergyLabel) >= 0 {
		return m.Secondary.EnergyLabel
	}
	if EnergyLabelIndex(m.PropertyRecord.EnergyLabel) >= 0 {
		return m.PropertyRecord.EnergyLabel
	}
	return UnknownEnergyLabel
}

// HasGarden uses the Realworks facts when linked; listings carry no garden data.
func (m MergedRecord) HasGarden() bool {
	if m.Secondary != nil {
		return m.Secondary.HasGarden
	}
	return m.PropertyRecord.HasGarden
}

func (m MergedRecord) HasOutdoorSpace() bool {
	if m.Secondary != nil {
		return m.Secondary.HasOutdoorSpace()
	}
	return m.PropertyRecord.HasOutdoorSpace()
}

// Detail returns the record with the richest facts for display.
func (m MergedRecord) Detail() PropertyRecord {
	if m.Secondary != nil {
		return *m.Secondary
	}
	return m.PropertyRecord
}

// ReferenceProperty is the subject property comparables are ranked against.
type ReferenceProperty struct {
	AddressFull       string   `json:"address_full"`
	StreetName        string   `json:"street_name"`
	HouseNumber       string   `json:"house_number"`
	HouseNumberSuffix string   `json:"house_number_suffix,omitempty"`
	PostalCode        string   `json:"postal_code"`
	City              string   `json:"city"`
	Neighbourhood     string   `json:"neighbourhood,omitempty"`
	Latitude          *float64 `json:"latitude,omitempty"`
	Longitude         *float64 `json:"longitude,omitempty"`

	AreaM2      *float64 `json:"area_m2,omitempty"`
	Rooms       *int     `json:"rooms,omitempty"`
	Bedrooms    *int     `json:"bedrooms,omitempty"`
	EnergyLabel string   `json:"energy_label,omitempty"`
	HasGarden   bool     `json:"has_garden"`
	HasBalcony  bool     `json:"has_balcony"`
	HasTerrace  bool     `json:"has_terrace"`
	YearBuilt   *int     `json:"year_built,omitempty"`
	SalePrice   *float64 `json:"sale_price,omitempty"`
}

func (r ReferenceProperty) HasCoordinates() bool {
	return r.Latitude != nil && r.Longitude != nil
}

func (r ReferenceProperty) HasOutdoorSpace() bool {
	return r.HasBalcony || r.HasTerrace
}

// SimilarityResult is a scored candidate for one reference property.
type SimilarityResult struct {
	Record          MergedRecord       `json:"record"`
	Rank            int                `json:"rank"`
	SimilarityScore float64            `json:"similarity_score"`
	FinalScore      float64            `json:"final_score"`
	Components      map[string]float64 `json:"components,omitempty"`
	Penalized       bool               `json:"penalized,omitempty"`
}
