package router

import (
	"errors"
	"fmt"
	"strings"
)

// Dataset is one knowledge base the router may choose from.
type Dataset struct {
	// Name is the collection name the pipeline retrieves from.
	Name string `yaml:"name" toml:"name" json:"name"`
	// Description tells the model when to pick this dataset.
	Description string `yaml:"description" toml:"description" json:"description"`
	// Locale is the language the dataset is written in (en, pt-br).
	Locale string `yaml:"locale" toml:"locale" json:"locale"`
}

// DefaultDatasets is the catalog used when no datasets are configured.
func DefaultDatasets() []Dataset {
	return []Dataset{
		{
			Name:        "synthetic_dataset_papers",
			Description: "A construção, utilização ou detecção usando datasets sintéticos",
			Locale:      "en",
		},
		{
			Name:        "direito_constitucional",
			Description: "Se a consulta envolver direito, leis, processos ou jurisprudência",
			Locale:      "pt-br",
		},
	}
}

// Config configures the dataset router.
type Config struct {
	// Datasets is the routing catalog.
	Datasets []Dataset `yaml:"datasets" toml:"datasets"`
}

// DefaultConfig returns the built-in catalog.
func DefaultConfig() Config {
	return Config{Datasets: DefaultDatasets()}
}

// Validate checks the catalog is non-empty with unique, complete entries.
func (c Config) Validate() error {
	if len(c.Datasets) == 0 {
		return errors.New("router: at least one dataset is required")
	}
	seen := make(map[string]bool, len(c.Datasets))
	var errs []error
	for i, d := range c.Datasets {
		switch {
		case strings.TrimSpace(d.Name) == "":
			errs = append(errs, fmt.Errorf("router: dataset %d has no name", i))
		case seen[d.Name]:
			errs = append(errs, fmt.Errorf("router: duplicate dataset %q", d.Name))
		case strings.TrimSpace(d.Locale) == "":
			errs = append(errs, fmt.Errorf("router: dataset %q has no locale", d.Name))
		}
		seen[d.Name] = true
	}
	return errors.Join(errs...)
}

// describe renders the catalog as the bullet list shown to the model.
func describe(datasets []Dataset) string {
	var b strings.Builder
	for _, d := range datasets {
		fmt.Fprintf(&b, "- %s escreva -> %s. Dataset Locale: %s\n", d.Description, d.Name, d.Locale)
	}
	return b.String()
}
