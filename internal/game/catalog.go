package game

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// ProducerSpec is one immutable row of the producer catalogue.
type ProducerSpec struct {
	ID             string  `yaml:"id"`
	Name           string  `yaml:"name"`
	Description    string  `yaml:"description"`
	BaseProduction float64 `yaml:"production"`
	BaseCost       float64 `yaml:"cost"`
}

// BlessingReward is one band of the ritual reward table.
type BlessingReward struct {
	ID     string  `yaml:"id"`
	Name   string  `yaml:"name"`
	Chance float64 `yaml:"chance"`
	Bonus  float64 `yaml:"bonus"`
}

// Catalog holds the producer and blessing tables. A Catalog is never
// mutated after it has been parsed.
type Catalog struct {
	Producers []ProducerSpec   `yaml:"producers"`
	Blessings []BlessingReward `yaml:"blessings"`
}

var defaultCatalog = sync.OnceValue(func() *Catalog {
	c, err := ParseCatalog(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog: %v", err))
	}
	return c
})

// DefaultCatalog returns the catalogue compiled into the binary.
func DefaultCatalog() *Catalog {
	return defaultCatalog()
}

// LoadCatalog reads and validates a YAML catalogue from disk.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes a YAML catalogue and checks that every producer has
// a unique id and positive production/cost, and that blessing chances fit
// in [0,1].
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(c.Producers) == 0 {
		return nil, errors.New("catalog has no producers")
	}

	seen := make(map[string]struct{}, len(c.Producers))
	for _, p := range c.Producers {
		if p.ID == "" {
			return nil, errors.New("producer with empty id")
		}
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("duplicate producer id %q", p.ID)
		}
		seen[p.ID] = struct{}{}
		if !(p.BaseProduction > 0) || !(p.BaseCost > 0) {
			return nil, fmt.Errorf("producer %q: production and cost must be positive", p.ID)
		}
	}

	total := 0.0
	for _, b := range c.Blessings {
		if b.ID == "" {
			return nil, errors.New("blessing with empty id")
		}
		if b.Chance < 0 || b.Bonus < 0 || math.IsNaN(b.Chance) || math.IsNaN(b.Bonus) {
			return nil, fmt.Errorf("blessing %q: chance and bonus must be non-negative", b.ID)
		}
		total += b.Chance
	}
	if total > 1+1e-9 {
		return nil, fmt.Errorf("blessing chances sum to %.4f, more than 1", total)
	}

	return &c, nil
}

// Producer looks a catalogue entry up by id.
func (c *Catalog) Producer(id string) (ProducerSpec, bool) {
	for _, p := range c.Producers {
		if p.ID == id {
			return p, true
		}
	}
	return ProducerSpec{}, false
}
