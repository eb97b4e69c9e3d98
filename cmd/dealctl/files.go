package main

import (
	"fmt"
	"os"

	"github.com/aristath/dealflow/internal/domain"
	"gopkg.in/yaml.v3"
)

// dealsFile is the YAML layout accepted by seed and view.
type dealsFile struct {
	Deals []domain.Deal `yaml:"deals"`
}

// filtersFile is the YAML layout accepted by validate and view.
type filtersFile struct {
	FilterSets []*domain.InvestorFilterSet `yaml:"filter_sets"`
}

func loadDeals(path string) ([]domain.Deal, error) {
	var f dealsFile
	if err := decodeFile(path, &f); err != nil {
		return nil, err
	}
	for i := range f.Deals {
		if f.Deals[i].Status == "" {
			f.Deals[i].Status = domain.StatusPending
		}
	}
	return f.Deals, nil
}

func loadFilterSets(path string) ([]*domain.InvestorFilterSet, error) {
	var f filtersFile
	if err := decodeFile(path, &f); err != nil {
		return nil, err
	}
	return f.FilterSets, nil
}

func decodeFile(path string, out interface{}) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	dec := yaml.NewDecoder(file)
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}
