package document

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Dataset is one available dataset declared by a city manifest.
type Dataset struct {
	Name         string
	Path         string // storage path relative to the manifest directory
	SemanticType string
	Format       string
}

// Manifest is a parsed city manifest. Only datasets marked available are
// exposed; everything else is invisible to reference resolution.
type Manifest struct {
	CityName   string
	CityID     string
	WorkingCRS string
	Datasets   map[string]Dataset
	DataDir    string // directory of the manifest file
}

// DatasetNames returns declared dataset names, unordered.
func (m *Manifest) DatasetNames() []string {
	names := make([]string, 0, len(m.Datasets))
	for name := range m.Datasets {
		names = append(names, name)
	}
	return names
}

type manifestDoc struct {
	City struct {
		Name string `yaml:"name"`
		ID   string `yaml:"id"`
	} `yaml:"city"`
	CRS struct {
		Working string `yaml:"working"`
	} `yaml:"crs"`
	Datasets map[string]struct {
		Available *bool `yaml:"available"`
		Cache     struct {
			Path string `yaml:"path"`
		} `yaml:"cache"`
		SemanticType string `yaml:"semantic_type"`
		Format       string `yaml:"format"`
	} `yaml:"datasets"`
}

// ParseManifest reads a city manifest YAML document. Datasets default to
// available; cache path, semantic type, and format each have conventional
// defaults derived from the dataset name.
func ParseManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var doc manifestDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, &ParseError{Path: path, Reason: err.Error()}
	}
	if doc.City.Name == "" || doc.City.ID == "" {
		return nil, &ParseError{Path: path, Reason: "missing required city name/id"}
	}

	m := &Manifest{
		CityName:   doc.City.Name,
		CityID:     doc.City.ID,
		WorkingCRS: doc.CRS.Working,
		Datasets:   make(map[string]Dataset, len(doc.Datasets)),
		DataDir:    filepath.Dir(path),
	}

	for name, ds := range doc.Datasets {
		if ds.Available != nil && !*ds.Available {
			continue
		}
		cachePath := ds.Cache.Path
		if cachePath == "" {
			cachePath = filepath.Join(".data", name+".geojson")
		}
		semanticType := ds.SemanticType
		if semanticType == "" {
			semanticType = name
		}
		format := ds.Format
		if format == "" {
			format = "geojson"
		}
		m.Datasets[name] = Dataset{
			Name:         name,
			Path:         cachePath,
			SemanticType: semanticType,
			Format:       format,
		}
	}

	return m, nil
}
