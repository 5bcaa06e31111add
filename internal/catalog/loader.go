package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultCatalog []byte

type catalogFile struct {
	Services []catalogEntry `yaml:"services"`
}

type catalogEntry struct {
	Name            string   `yaml:"name"`
	Description     string   `yaml:"description"`
	BasePrice       string   `yaml:"base_price"`
	DurationMinutes int      `yaml:"duration_minutes"`
	SortOrder       int      `yaml:"sort_order"`
	Features        []string `yaml:"features"`
	Inactive        bool     `yaml:"inactive"`
}

// DefaultServices is the catalog the business launched with.
func DefaultServices() ([]ServicePackage, error) {
	return ParseCatalog(defaultCatalog)
}

// LoadCatalogFile reads a catalog in the same YAML layout as the defaults.
func LoadCatalogFile(path string) ([]ServicePackage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) ([]ServicePackage, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	out := make([]ServicePackage, 0, len(f.Services))
	for i, e := range f.Services {
		price, err := decimal.NewFromString(e.BasePrice)
		if err != nil {
			return nil, fmt.Errorf("catalog entry %d (%s): base_price %q: %w", i, e.Name, e.BasePrice, err)
		}
		features := e.Features
		if features == nil {
			features = []string{}
		}
		p := ServicePackage{
			Name:            e.Name,
			Description:     e.Description,
			BasePrice:       price,
			DurationMinutes: e.DurationMinutes,
			Features:        features,
			Active:          !e.Inactive,
			SortOrder:       e.SortOrder,
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("catalog entry %d (%s): %w", i, e.Name, err)
		}
		out = append(out, p)
	}
	return out, nil
}
