package ingest

import (
	"embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed config/sources.yaml
var sourcesYAML embed.FS

// Registry holds the configuration for all data sources.
type Registry struct {
	Sources []SourceConfig `yaml:"sources"`
}

// SourceConfig defines a single tender data source.
type SourceConfig struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Kind        string `yaml:"kind"` // "ocds", "csv"
	BaseURL     string `yaml:"base_url"`
	Description string `yaml:"description,omitempty"`

	// Freshness window for cached results from this source, in minutes.
	CacheTTLMinutes int `yaml:"cache_ttl_minutes,omitempty"`

	Fetch FetchConfig `yaml:"fetch,omitempty"`
}

// Parser returns the record parser matching the source's payload kind.
func (c SourceConfig) Parser() (RecordParser, error) {
	switch c.Kind {
	case "ocds":
		return NewOCDSParser(), nil
	case "csv":
		return NewCSVParser(), nil
	}
	return nil, fmt.Errorf("unknown source kind %q for source %q", c.Kind, c.ID)
}

// registryPath is the filesystem fallback for local development.
const registryPath = "internal/ingest/config/sources.yaml"

// LoadRegistry reads the embedded sources.yaml.
func LoadRegistry() (*Registry, error) {
	data, err := sourcesYAML.ReadFile("config/sources.yaml")
	if err != nil {
		data, err = os.ReadFile(registryPath)
		if err != nil {
			return nil, err
		}
	}

	// Expand environment variables within the YAML content (e.g. ${API_KEY})
	expanded := os.ExpandEnv(string(data))

	var reg Registry
	if err := yaml.Unmarshal([]byte(expanded), &reg); err != nil {
		return nil, err
	}

	return &reg, nil
}

// Find returns the source with the given ID.
func (r *Registry) Find(id string) (*SourceConfig, error) {
	for i := range r.Sources {
		if r.Sources[i].ID == id {
			return &r.Sources[i], nil
		}
	}
	return nil, fmt.Errorf("source id %q not found in registry", id)
}
