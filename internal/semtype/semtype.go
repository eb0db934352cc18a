// Package semtype loads the semantic type vocabulary: the mapping from a
// semantic type name to its storage format and broad data category.
package semtype

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/agext/levenshtein"
	"gopkg.in/yaml.v3"

	"github.com/verdantlab/greenhouse/internal/value"
)

// suggestionDistance is the maximum edit distance for "did you mean" hints.
const suggestionDistance = 2

// Type is one semantic type definition.
type Type struct {
	Name        string
	Category    string // "vector", "raster", "tabular"
	Format      string // "geojson", "tif", "parquet", ...
	Description string
	Extra       map[string]value.Dynamic // typical_units, value_range, ...
}

// UnknownTypeError reports a lookup for an undeclared semantic type,
// carrying close matches so callers can surface actionable diagnostics.
type UnknownTypeError struct {
	Name        string
	Suggestions []string
	Known       []string
}

func (e *UnknownTypeError) Error() string {
	msg := fmt.Sprintf("unknown semantic type %q", e.Name)
	if len(e.Suggestions) > 0 {
		msg += fmt.Sprintf(" (did you mean: %s?)", strings.Join(e.Suggestions, ", "))
	}
	return msg + fmt.Sprintf("; valid types: %s", strings.Join(e.Known, ", "))
}

// Registry is the loaded vocabulary. It is immutable after Load.
type Registry struct {
	path  string
	types map[string]Type
}

type vocabularyDoc struct {
	Types map[string]map[string]value.Dynamic `yaml:"types"`
}

// Load reads the vocabulary document. Every type must declare a category and
// a format; remaining fields are kept verbatim under Extra.
func Load(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading semantic types: %w", err)
	}

	var doc vocabularyDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing semantic types %s: %w", path, err)
	}

	reg := &Registry{path: path, types: make(map[string]Type, len(doc.Types))}
	for name, fields := range doc.Types {
		t := Type{Name: name, Extra: map[string]value.Dynamic{}}
		for k, v := range fields {
			switch k {
			case "category":
				if v.IsString() {
					t.Category = v.AsString()
				}
			case "format":
				if v.IsString() {
					t.Format = v.AsString()
				}
			case "description":
				if v.IsString() {
					t.Description = v.AsString()
				}
			default:
				t.Extra[k] = v
			}
		}
		if t.Category == "" {
			return nil, fmt.Errorf("semantic type %q missing required field 'category'", name)
		}
		if t.Format == "" {
			return nil, fmt.Errorf("semantic type %q missing required field 'format'", name)
		}
		reg.types[name] = t
	}

	return reg, nil
}

// Get returns a semantic type by name.
func (r *Registry) Get(name string) (Type, error) {
	if t, ok := r.types[name]; ok {
		return t, nil
	}
	return Type{}, &UnknownTypeError{
		Name:        name,
		Suggestions: r.similar(name),
		Known:       r.Names(),
	}
}

// Format returns the file format for a semantic type.
func (r *Registry) Format(name string) (string, error) {
	t, err := r.Get(name)
	if err != nil {
		return "", err
	}
	return t.Format, nil
}

// Category returns the data category for a semantic type.
func (r *Registry) Category(name string) (string, error) {
	t, err := r.Get(name)
	if err != nil {
		return "", err
	}
	return t.Category, nil
}

// IsValid reports whether a semantic type is declared.
func (r *Registry) IsValid(name string) bool {
	_, ok := r.types[name]
	return ok
}

// Names returns all declared type names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) similar(name string) []string {
	var close []string
	for _, known := range r.Names() {
		if levenshtein.Distance(strings.ToLower(name), strings.ToLower(known), nil) <= suggestionDistance {
			close = append(close, known)
		}
	}
	return close
}
