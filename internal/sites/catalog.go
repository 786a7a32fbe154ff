package sites

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/IshaanNene/pressgoat/internal/types"
)

//go:embed sites.yaml
var defaultCatalogYAML []byte

// Catalog is the ordered set of known newsrooms.
type Catalog struct {
	sites  []*Site
	byName map[string]*Site
}

// Default returns the embedded catalog of thirteen newsrooms.
func Default() (*Catalog, error) {
	return Parse(defaultCatalogYAML)
}

// LoadFile reads a catalog from a YAML file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read site catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML list of site records.
func Parse(data []byte) (*Catalog, error) {
	var list []*Site
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decode site catalog: %w", err)
	}
	return New(list...)
}

// New builds a catalog from site records, preserving their order.
func New(list ...*Site) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]*Site, len(list))}
	for _, s := range list {
		s.applyDefaults()
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.byName[s.Name]; dup {
			return nil, fmt.Errorf("duplicate site %q", s.Name)
		}
		c.byName[s.Name] = s
		c.sites = append(c.sites, s)
	}
	return c, nil
}

// Lookup finds a site by name, ignoring case and extra whitespace.
func (c *Catalog) Lookup(name string) (*Site, bool) {
	s, ok := c.byName[types.NormalizeName(name)]
	return s, ok
}

// Names returns the province names in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.sites))
	for i, s := range c.sites {
		names[i] = s.Name
	}
	return names
}

// Sites returns the records in catalog order.
func (c *Catalog) Sites() []*Site {
	return append([]*Site(nil), c.sites...)
}

// Len returns the number of sites.
func (c *Catalog) Len() int { return len(c.sites) }
