package geo

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Categories with special meaning in the pipeline. Other categories are
// free-form metadata.
const (
	CategoryHome = "home"
	CategoryWork = "work"
)

// Place is a registered location: a label, some metadata and a geographic
// footprint.
type Place struct {
	Label    string `json:"label"`
	Category string `json:"category"`
	Address  string `json:"address"`
	TimeZone string `json:"time_zone"`
	Box      Box    `json:"bounding_box"`
}

// ReadPlace loads a single place definition from a JSON file and validates
// its footprint.
func ReadPlace(path string) (Place, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Place{}, err
	}
	var place Place
	if err := json.Unmarshal(data, &place); err != nil {
		return Place{}, fmt.Errorf("parsing place definition: %w", err)
	}
	if place.Label == "" {
		return Place{}, fmt.Errorf("place definition has no label")
	}
	if _, err := place.Location(); err != nil {
		return Place{}, err
	}
	if err := place.Box.Validate(place.Label); err != nil {
		return Place{}, err
	}
	return place, nil
}

// Location resolves the place's IANA time zone.
func (p Place) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(p.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("place %q has invalid time zone %q: %w", p.Label, p.TimeZone, err)
	}
	return loc, nil
}
