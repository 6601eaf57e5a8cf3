package booking

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Restaurant is one entry of the menu catalog.
type Restaurant struct {
	Name    string     `yaml:"name"`
	Cuisine string     `yaml:"cuisine"`
	Items   []MenuItem `yaml:"items"`
}

// Catalog lists the restaurants food orders and menus are served from.
type Catalog struct {
	Restaurants []Restaurant `yaml:"restaurants"`
}

// DefaultCatalog parses the catalog bundled with the binary.
func DefaultCatalog() (Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// ParseCatalog decodes a YAML catalog.
func ParseCatalog(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("parsing catalog: %w", err)
	}
	return c, nil
}

// Restaurant finds a restaurant by case-insensitive name or cuisine match.
func (c Catalog) Restaurant(query string) (Restaurant, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return Restaurant{}, false
	}
	for _, r := range c.Restaurants {
		name := strings.ToLower(r.Name)
		if name == q || strings.Contains(name, q) || strings.Contains(q, name) || strings.EqualFold(r.Cuisine, q) {
			return r, true
		}
	}
	return Restaurant{}, false
}

// Item finds a menu item by case-insensitive substring match, searching
// only r when r is non-nil.
func (c Catalog) Item(r *Restaurant, query string) (Restaurant, MenuItem, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return Restaurant{}, MenuItem{}, false
	}
	search := c.Restaurants
	if r != nil {
		search = []Restaurant{*r}
	}
	for _, rest := range search {
		for _, it := range rest.Items {
			name := strings.ToLower(it.Name)
			if name == q || strings.Contains(name, q) || strings.Contains(q, name) {
				return rest, it, true
			}
		}
	}
	return Restaurant{}, MenuItem{}, false
}
