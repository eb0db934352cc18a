package registry

import (
	"fmt"
	"os"
	"path/filepath"

	"context"

	"gopkg.in/yaml.v3"

	"github.com/verdantlab/greenhouse/internal/ctxlog"
)

// registryFileName is the per-layer registry document, e.g. prep/registry.yml.
const registryFileName = "registry.yml"

type registryDoc struct {
	Primitives map[string]struct {
		Path        string            `yaml:"path"`
		Version     string            `yaml:"version"`
		Inputs      []InputDecl       `yaml:"inputs"`
		Outputs     map[string]string `yaml:"outputs"`
		Params      map[string]string `yaml:"params"`
		Passthrough bool              `yaml:"passthrough"`
	} `yaml:"primitives"`
}

// loadLayerRegistry parses one layer's registry document into specs.
func loadLayerRegistry(ctx context.Context, projectRoot, layer string) (map[string]PrimitiveSpec, error) {
	logger := ctxlog.FromContext(ctx)
	path := filepath.Join(projectRoot, layer, registryFileName)

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s registry: %w", layer, err)
	}

	var doc registryDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	specs := make(map[string]PrimitiveSpec, len(doc.Primitives))
	for name, p := range doc.Primitives {
		if p.Path == "" {
			return nil, fmt.Errorf("parsing %s: primitive %q is missing a path", path, name)
		}
		version := p.Version
		if version == "" {
			version = "1.0.0"
		}
		specs[name] = PrimitiveSpec{
			Name:        name,
			Path:        p.Path,
			Version:     version,
			Inputs:      p.Inputs,
			Outputs:     p.Outputs,
			Params:      p.Params,
			Passthrough: p.Passthrough,
		}
	}

	logger.Debug("Layer registry loaded.", "layer", layer, "primitives", len(specs))
	return specs, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
