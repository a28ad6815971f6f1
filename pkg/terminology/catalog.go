// Package terminology holds the drug names offered to reporters answering a
// drug_search question.
package terminology

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultLimit is the number of suggestions returned when none is requested.
const DefaultLimit = 8

type Drug struct {
	Name  string `yaml:"name" json:"name"`
	Class string `yaml:"class,omitempty" json:"class,omitempty"`
}

type Catalog struct {
	Drugs []Drug `yaml:"drugs" json:"drugs"`
}

// Load reads a YAML catalog. An empty path yields the default catalog.
func Load(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Catalog{}, fmt.Errorf("read drug catalog: %w", err)
	}
	var cat Catalog
	if err := yaml.Unmarshal(content, &cat); err != nil {
		return Catalog{}, fmt.Errorf("parse drug catalog: %w", err)
	}
	if len(cat.Drugs) == 0 {
		return Catalog{}, fmt.Errorf("drug catalog empty")
	}
	for i, d := range cat.Drugs {
		if strings.TrimSpace(d.Name) == "" {
			return Catalog{}, fmt.Errorf("drug catalog entry %d has no name", i)
		}
	}
	return cat, nil
}

// Search returns drugs whose name contains query, case-insensitively, in
// catalog order. A blank query matches nothing.
func (c Catalog) Search(query string, limit int) []Drug {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []Drug{}
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	out := []Drug{}
	for _, d := range c.Drugs {
		if strings.Contains(strings.ToLower(d.Name), q) {
			out = append(out, d)
			if len(out) == limit {
				break
			}
		}
	}
	return out
}

func DefaultCatalog() Catalog {
	drugs := func(class string, names ...string) []Drug {
		out := make([]Drug, len(names))
		for i, n := range names {
			out[i] = Drug{Name: n, Class: class}
		}
		return out
	}

	var cat Catalog
	cat.Drugs = append(cat.Drugs, drugs("checkpoint inhibitor", "Pembrolizumab", "Nivolumab", "Atezolizumab", "Ipilimumab")...)
	cat.Drugs = append(cat.Drugs, drugs("biologic", "Adalimumab", "Infliximab", "Etanercept", "Rituximab")...)
	cat.Drugs = append(cat.Drugs, drugs("monoclonal antibody", "Trastuzumab", "Bevacizumab", "Cetuximab")...)
	cat.Drugs = append(cat.Drugs, drugs("", "Metformin", "Lisinopril", "Atorvastatin", "Omeprazole",
		"Amlodipine", "Metoprolol", "Losartan", "Gabapentin",
		"Sertraline", "Escitalopram", "Duloxetine", "Venlafaxine")...)
	return cat
}
