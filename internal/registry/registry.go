// Package registry maps logical primitive references of the form
// "layer/name" to executable specs and on-disk paths. Each layer has its own
// registry document, loaded at most once per Manager and cached explicitly —
// there is no hidden package-level state.
package registry

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/verdantlab/greenhouse/internal/ctxlog"
	"github.com/verdantlab/greenhouse/internal/document"
)

// The closed set of layers primitives can be registered under.
const (
	LayerPrep     = "prep"     // ingestion and validation primitives
	LayerAnalysis = "analysis" // computation primitives
)

// Layers lists the valid layer names in a stable order.
var Layers = []string{LayerAnalysis, LayerPrep}

// InputDecl is a declared input of a primitive.
type InputDecl struct {
	Name         string `yaml:"name"`
	SemanticType string `yaml:"semantic_type"`
}

// PrimitiveSpec is a primitive's declaration from a layer registry document.
type PrimitiveSpec struct {
	Name        string
	Path        string // relative path within the layer directory
	Version     string
	Inputs      []InputDecl
	Outputs     map[string]string
	Params      map[string]string
	Passthrough bool // primitive may skip normal output construction
}

// ShortName returns the bare primitive name from a "layer/name" reference or
// a primitive file path, without directories or extension.
func ShortName(ref string) string {
	base := ref
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[i+1:]
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Manager resolves primitive references against per-layer registries.
type Manager struct {
	projectRoot string
	cache       map[string]map[string]PrimitiveSpec
}

// NewManager returns a Manager rooted at projectRoot. Registry documents are
// loaded lazily, once per layer.
func NewManager(projectRoot string) *Manager {
	return &Manager{
		projectRoot: projectRoot,
		cache:       make(map[string]map[string]PrimitiveSpec),
	}
}

func (m *Manager) layerRegistry(ctx context.Context, layer string) (map[string]PrimitiveSpec, error) {
	if reg, ok := m.cache[layer]; ok {
		return reg, nil
	}
	reg, err := loadLayerRegistry(ctx, m.projectRoot, layer)
	if err != nil {
		return nil, err
	}
	m.cache[layer] = reg
	return reg, nil
}

// ResolvePrimitive resolves a "layer/name" reference to the primitive's path
// relative to the project root, plus its spec. When validateExists is true
// the referenced file must exist on disk; dry validation runs may skip that.
func (m *Manager) ResolvePrimitive(ctx context.Context, ref string, validateExists bool) (string, PrimitiveSpec, error) {
	layer, name, found := strings.Cut(ref, "/")
	if !found || layer == "" || name == "" || strings.Contains(name, "/") {
		return "", PrimitiveSpec{}, &ResolveError{Kind: ErrBadReference, Ref: ref}
	}

	if !validLayer(layer) {
		return "", PrimitiveSpec{}, &ResolveError{Kind: ErrUnknownLayer, Ref: ref, Layer: layer}
	}

	reg, err := m.layerRegistry(ctx, layer)
	if err != nil {
		return "", PrimitiveSpec{}, err
	}

	spec, ok := reg[name]
	if !ok {
		return "", PrimitiveSpec{}, &ResolveError{
			Kind:      ErrUnknownPrimitive,
			Ref:       ref,
			Layer:     layer,
			Name:      name,
			Available: specNames(reg),
		}
	}

	fullPath := filepath.Join(layer, spec.Path)
	if validateExists {
		absolute := filepath.Join(m.projectRoot, fullPath)
		if !fileExists(absolute) {
			return "", PrimitiveSpec{}, &ResolveError{
				Kind:  ErrFileMissing,
				Ref:   ref,
				Layer: layer,
				Name:  name,
				Path:  absolute,
			}
		}
	}

	return fullPath, spec, nil
}

// Spec returns just the spec for a primitive reference.
func (m *Manager) Spec(ctx context.Context, ref string) (PrimitiveSpec, error) {
	_, spec, err := m.ResolvePrimitive(ctx, ref, true)
	return spec, err
}

// Path returns just the resolved path for a primitive reference.
func (m *Manager) Path(ctx context.Context, ref string) (string, error) {
	path, _, err := m.ResolvePrimitive(ctx, ref, true)
	return path, err
}

// ValidateAllPrimitives resolves every step's primitive reference and
// returns the complete list of failures. Validation is exhaustive rather
// than fail-fast so one pass surfaces every broken reference.
func (m *Manager) ValidateAllPrimitives(ctx context.Context, exp *document.Experiment) []error {
	logger := ctxlog.FromContext(ctx)
	var errs []error
	for _, step := range exp.Steps {
		if _, _, err := m.ResolvePrimitive(ctx, step.Primitive, true); err != nil {
			errs = append(errs, fmt.Errorf("step %q: %w", step.ID, err))
		}
	}
	logger.Debug("Primitive validation complete.", "steps", len(exp.Steps), "failures", len(errs))
	return errs
}

func validLayer(layer string) bool {
	for _, l := range Layers {
		if l == layer {
			return true
		}
	}
	return false
}

func specNames(reg map[string]PrimitiveSpec) []string {
	names := make([]string, 0, len(reg))
	for name := range reg {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
