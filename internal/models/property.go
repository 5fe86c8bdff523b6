package models

import (
	"strings"

	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/address"
)

// UnknownEnergyLabel is stored when a record carries no recognised energy label.
const UnknownEnergyLabel = "unknown"

// EnergyLabels lists the energy labels from best to worst.
var EnergyLabels = []string{"A++++", "A+++", "A++", "A+", "A", "B", "C", "D", "E", "F", "G"}

// EnergyLabelIndex returns the position of label in EnergyLabels, or -1 when unknown.
func EnergyLabelIndex(label string) int {
	label = strings.ToUpper(strings.TrimSpace(label))
	for i, l := range EnergyLabels {
		if l == label {
			return i
		}
	}
	return -1
}

// PropertyRecord is one physical dwelling as extracted from a Realworks write-up
// or a Funda listing row.
type PropertyRecord struct {
	AddressFull       string `json:"address_full"`
	Street            string `json:"street"`
	HouseNumber       string `json:"house_number"`
	HouseNumberSuffix string `json:"house_number_suffix,omitempty"`
	PostalCode        string `json:"postal_code"`
	City              string `json:"city"`
	Neighbourhood     string `json:"neighbourhood,omitempty"`
	URL               string `json:"url,omitempty"`

	SalePrice *float64 `json:"sale_price"`
	AskPrice  *float64 `json:"ask_price"`

	SaleDate      *string `json:"sale_date"`
	ListDate      *string `json:"list_date"`
	DelistDate    *string `json:"delist_date"`
	TransportDate *string `json:"transport_date"`
	DaysOnMarket  *int    `json:"days_on_market"`

	AreaM2    *float64 `json:"area_m2"`
	Rooms     *int     `json:"rooms"`
	Bedrooms  *int     `json:"bedrooms"`
	Bathrooms *int     `json:"bathrooms"`
	Toilets   *int     `json:"toilets"`
	YearBuilt *int     `json:"year_built"`

	Type               string `json:"type,omitempty"`
	Subtype            string `json:"subtype,omitempty"`
	EnergyLabel        string `json:"energy_label"`
	MaintenanceInside  string `json:"maintenance_inside,omitempty"`
	MaintenanceOutside string `json:"maintenance_outside,omitempty"`

	HasGarden  bool `json:"has_garden"`
	HasBalcony bool `json:"has_balcony"`
	HasTerrace bool `json:"has_terrace"`
	HasLift    bool `json:"has_lift"`
	HasStorage bool `json:"has_storage"`
	HasParking bool `json:"has_parking"`
	HasGarage  bool `json:"has_garage"`

	GardenAreaM2  *float64 `json:"garden_area_m2"`
	VVEMonthlyFee *float64 `json:"vve_monthly_fee"`

	GardenType  string `json:"garden_type,omitempty"`
	Heating     string `json:"heating,omitempty"`
	HotWater    string `json:"hot_water,omitempty"`
	GarageType  string `json:"garage_type,omitempty"`
	Floor       string `json:"floor,omitempty"`
	OutdoorText string `json:"outdoor_text,omitempty"`
	Notes       string `json:"notes,omitempty"`

	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	SourceFile string `json:"source_file,omitempty"`
}

// NewPropertyRecord returns a record with the documented defaults applied.
func NewPropertyRecord() PropertyRecord {
	return PropertyRecord{EnergyLabel: UnknownEnergyLabel}
}

// Valid reports whether the record can be used downstream.
func (p PropertyRecord) Valid() bool {
	return strings.TrimSpace(p.AddressFull) != ""
}

// AddressFields returns the discrete address parts.
func (p PropertyRecord) AddressFields() address.Fields {
	return address.Fields{
		Street:      p.Street,
		HouseNumber: p.HouseNumber,
		Suffix:      p.HouseNumberSuffix,
		PostalCode:  p.PostalCode,
		City:        p.City,
	}
}

// HasCoordinates reports whether both latitude and longitude are known.
func (p PropertyRecord) HasCoordinates() bool {
	return p.Latitude != nil && p.Longitude != nil
}

// HasOutdoorSpace is true when the dwelling has a balcony or a terrace.
func (p PropertyRecord) HasOutdoorSpace() bool {
	return p.HasBalcony || p.HasTerrace
}

// HouseUnit joins house number and suffix the way they are displayed.
func (p PropertyRecord) HouseUnit() string {
	unit := strings.TrimSpace(p.HouseNumber)
	if s := strings.TrimSpace(p.HouseNumberSuffix); s != "" {
		unit += " " + s
	}
	return unit
}

// PricePerSquareMeter returns sale price divided by area when both are known.
func (p PropertyRecord) PricePerSquareMeter() *float64 {
	if p.SalePrice == nil || p.AreaM2 == nil || *p.AreaM2 <= 0 {
		return nil
	}
	v := *p.SalePrice / *p.AreaM2
	return &v
}

// Clone returns a copy that shares no pointers with p.
func (p PropertyRecord) Clone() PropertyRecord {
	c := p
	c.SalePrice = cloneFloat(p.SalePrice)
	c.AskPrice = cloneFloat(p.AskPrice)
	c.SaleDate = cloneString(p.SaleDate)
	c.ListDate = cloneString(p.ListDate)
	c.DelistDate = cloneString(p.DelistDate)
	c.TransportDate = cloneString(p.TransportDate)
	c.DaysOnMarket = cloneInt(p.DaysOnMarket)
	c.AreaM2 = cloneFloat(p.AreaM2)
	c.Rooms = cloneInt(p.Rooms)
	c.Bedrooms = cloneInt(p.Bedrooms)
	c.Bathrooms = cloneInt(p.Bathrooms)
	c.Toilets = cloneInt(p.Toilets)
	c.YearBuilt = cloneInt(p.YearBuilt)
	c.GardenAreaM2 = cloneFloat(p.GardenAreaM2)
	c.VVEMonthlyFee = cloneFloat(p.VVEMonthlyFee)
	c.Latitude = cloneFloat(p.Latitude)
	c.Longitude = cloneFloat(p.Longitude)
	return c
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
