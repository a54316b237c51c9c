package geo

import (
	"encoding/json"
	"fmt"
	"os"
)

// Registry holds the known places, loaded once per run. Lookups are by label;
// iteration preserves file order so re-persisting is stable.
type Registry struct {
	path   string
	order  []string
	places map[string]Place
}

// LoadRegistry reads a registry file and validates every footprint. A place
// with a degenerate quadrilateral is a configuration error, not something to
// discover mid-resolution.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read place registry: %w", err)
	}

	var places []Place
	if err := json.Unmarshal(data, &places); err != nil {
		return nil, fmt.Errorf("failed to parse place registry %s: %w", path, err)
	}

	r := &Registry{path: path, places: make(map[string]Place, len(places))}
	for _, place := range places {
		if err := r.add(place); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) add(place Place) error {
	if place.Label == "" {
		return fmt.Errorf("place registry entry without a label")
	}
	if _, exists := r.places[place.Label]; exists {
		return fmt.Errorf("duplicate place label %q", place.Label)
	}
	if err := place.Box.Validate(place.Label); err != nil {
		return err
	}
	r.order = append(r.order, place.Label)
	r.places[place.Label] = place
	return nil
}

// Get returns the place registered under label.
func (r *Registry) Get(label string) (Place, bool) {
	place, ok := r.places[label]
	return place, ok
}

// Places returns all places in registration order.
func (r *Registry) Places() []Place {
	out := make([]Place, 0, len(r.order))
	for _, label := range r.order {
		out = append(out, r.places[label])
	}
	return out
}

// Len returns the number of registered places.
func (r *Registry) Len() int { return len(r.order) }

// Add validates a new place, appends it to the registry and re-persists the
// registry file.
func (r *Registry) Add(place Place) error {
	if err := r.add(place); err != nil {
		return err
	}
	return r.save()
}

func (r *Registry) save() error {
	data, err := json.MarshalIndent(r.Places(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal place registry: %w", err)
	}
	return os.WriteFile(r.path, data, 0644)
}
