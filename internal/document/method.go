package document

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/verdantlab/greenhouse/internal/value"
)

// MethodChoice is one choice declared by a method document, with the set of
// values the method considers in-vocabulary.
type MethodChoice struct {
	Name        string
	Options     []value.Dynamic
	Description string
}

// Method is a parsed method document: the declared vocabulary an experiment's
// choices are cross-checked against.
type Method struct {
	ID      string
	Name    string
	Choices map[string]MethodChoice
}

type methodDoc struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Choices map[string]struct {
		Options     []value.Dynamic `yaml:"options"`
		Description string          `yaml:"description"`
	} `yaml:"choices"`
}

// ParseMethod reads a method YAML document. Missing id/name fall back to the
// file stem; a method is advisory, so parsing is deliberately lenient.
func ParseMethod(path string) (*Method, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading method: %w", err)
	}

	var doc methodDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, &ParseError{Path: path, Reason: err.Error()}
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	m := &Method{
		ID:      doc.ID,
		Name:    doc.Name,
		Choices: make(map[string]MethodChoice, len(doc.Choices)),
	}
	if m.ID == "" {
		m.ID = stem
	}
	if m.Name == "" {
		m.Name = stem
	}

	for name, c := range doc.Choices {
		m.Choices[name] = MethodChoice{
			Name:        name,
			Options:     c.Options,
			Description: c.Description,
		}
	}

	return m, nil
}

// ResolveMethodPath maps a method reference like "$methods/thermal/gradient"
// to a file path under methodsDir, defaulting the .yml extension.
func ResolveMethodPath(methodsDir, ref string) string {
	ref = strings.TrimPrefix(ref, "$methods/")
	if filepath.Ext(ref) == "" {
		ref += ".yml"
	}
	return filepath.Join(methodsDir, ref)
}
