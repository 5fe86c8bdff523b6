package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/address"
	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/models"
)

var ErrNoReferenceStreet = errors.New("reference has no street name")

// LoadReference reads the reference property from a JSON file.
func LoadReference(path string) (*models.ReferenceProperty, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read reference file: %w", err)
	}

	return ParseReference(data)
}

// ParseReference decodes a reference property and fills address parts that
// are only present in address_full.
func ParseReference(data []byte) (*models.ReferenceProperty, error) {
	var ref models.ReferenceProperty
	if err := json.Unmarshal(data, &ref); err != nil {
		return nil, fmt.Errorf("failed to parse reference: %w", err)
	}

	if ref.AddressFull != "" {
		parts := address.Split(ref.AddressFull)
		if ref.StreetName == "" {
			ref.StreetName = parts.Street
		}
		if ref.HouseNumber == "" {
			ref.HouseNumber = parts.HouseNumber
			ref.HouseNumberSuffix = parts.Suffix
		}
		if ref.PostalCode == "" {
			ref.PostalCode = parts.PostalCode
		}
		if ref.City == "" {
			ref.City = parts.City
		}
	}
	if strings.TrimSpace(ref.StreetName) == "" {
		return nil, ErrNoReferenceStreet
	}
	if ref.AddressFull == "" {
		ref.AddressFull = address.Format(address.Fields{
			Street:      ref.StreetName,
			HouseNumber: ref.HouseNumber,
			Suffix:      ref.HouseNumberSuffix,
			PostalCode:  ref.PostalCode,
			City:        ref.City,
		})
	}
	ref.EnergyLabel = strings.ToUpper(strings.TrimSpace(ref.EnergyLabel))

	return &ref, nil
}
