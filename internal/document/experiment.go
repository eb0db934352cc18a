package document

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/verdantlab/greenhouse/internal/value"
)

// StepDefinition is one computation step in an experiment.
type StepDefinition struct {
	ID          string
	Primitive   string // "layer/name" reference into a primitive registry
	Version     string
	Description string
	Inputs      map[string]string // input name -> reference string
	Outputs     map[string]string // output name -> semantic type
	Params      map[string]value.Dynamic
}

// Lineage records where an experiment comes from: the curiosity it serves,
// the method it instantiates, and the choices it fixes.
type Lineage struct {
	CuriosityRef string
	SubQuestion  string
	MethodRef    string
	Choices      map[string]value.Dynamic
}

// Experiment is a parsed, immutable pipeline definition.
type Experiment struct {
	ID           string
	Name         string
	Description  string
	Lineage      Lineage
	City         string
	ManifestPath string
	Choices      map[string]value.Dynamic
	Parameters   map[string]value.Dynamic
	Steps        []StepDefinition
	Path         string // source file, for diagnostics
}

// Step returns the step with the given id, or nil if it is not declared.
func (e *Experiment) Step(id string) *StepDefinition {
	for i := range e.Steps {
		if e.Steps[i].ID == id {
			return &e.Steps[i]
		}
	}
	return nil
}

// StepIDs returns all declared step ids in declaration order.
func (e *Experiment) StepIDs() []string {
	ids := make([]string, len(e.Steps))
	for i, s := range e.Steps {
		ids[i] = s.ID
	}
	return ids
}

type experimentDoc struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Curiosity   struct {
		Ref         string `yaml:"ref"`
		SubQuestion string `yaml:"sub_question"`
	} `yaml:"curiosity"`
	Method struct {
		Ref string `yaml:"ref"`
	} `yaml:"method"`
	City       string                   `yaml:"city"`
	Manifest   string                   `yaml:"manifest"`
	Choices    map[string]value.Dynamic `yaml:"choices"`
	Parameters map[string]value.Dynamic `yaml:"parameters"`
	Steps      []struct {
		ID          string                   `yaml:"id"`
		Primitive   string                   `yaml:"primitive"`
		Version     string                   `yaml:"version"`
		Description string                   `yaml:"description"`
		Inputs      map[string]string        `yaml:"inputs"`
		Outputs     map[string]string        `yaml:"outputs"`
		Params      map[string]value.Dynamic `yaml:"params"`
	} `yaml:"steps"`
}

// ParseExperiment reads and validates an experiment YAML document.
// Step ids must be unique; that invariant is enforced here so every
// downstream component can rely on it.
func ParseExperiment(path string) (*Experiment, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading experiment: %w", err)
	}

	var doc experimentDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, &ParseError{Path: path, Reason: err.Error()}
	}

	if doc.ID == "" {
		return nil, &ParseError{Path: path, Reason: "missing required field 'id'"}
	}
	if doc.Name == "" {
		return nil, &ParseError{Path: path, Reason: "missing required field 'name'"}
	}
	if doc.City == "" {
		return nil, &ParseError{Path: path, Reason: "missing required field 'city'"}
	}
	if doc.Manifest == "" {
		return nil, &ParseError{Path: path, Reason: "missing required field 'manifest'"}
	}

	exp := &Experiment{
		ID:          doc.ID,
		Name:        doc.Name,
		Description: doc.Description,
		Lineage: Lineage{
			CuriosityRef: doc.Curiosity.Ref,
			SubQuestion:  doc.Curiosity.SubQuestion,
			MethodRef:    doc.Method.Ref,
			Choices:      orEmpty(doc.Choices),
		},
		City:         doc.City,
		ManifestPath: doc.Manifest,
		Choices:      orEmpty(doc.Choices),
		Parameters:   orEmpty(doc.Parameters),
		Path:         path,
	}

	seen := make(map[string]bool, len(doc.Steps))
	for i, s := range doc.Steps {
		if s.ID == "" {
			return nil, &ParseError{Path: path, Reason: fmt.Sprintf("step %d is missing an id", i)}
		}
		if seen[s.ID] {
			return nil, &ParseError{Path: path, Reason: fmt.Sprintf("duplicate step id %q", s.ID)}
		}
		seen[s.ID] = true

		if s.Primitive == "" {
			return nil, &ParseError{Path: path, Reason: fmt.Sprintf("step %q is missing a primitive reference", s.ID)}
		}

		version := s.Version
		if version == "" {
			version = "1.0.0"
		}

		step := StepDefinition{
			ID:          s.ID,
			Primitive:   s.Primitive,
			Version:     version,
			Description: s.Description,
			Inputs:      s.Inputs,
			Outputs:     s.Outputs,
			Params:      s.Params,
		}
		if step.Inputs == nil {
			step.Inputs = map[string]string{}
		}
		if step.Outputs == nil {
			step.Outputs = map[string]string{}
		}
		if step.Params == nil {
			step.Params = map[string]value.Dynamic{}
		}
		exp.Steps = append(exp.Steps, step)
	}

	return exp, nil
}

func orEmpty(m map[string]value.Dynamic) map[string]value.Dynamic {
	if m == nil {
		return map[string]value.Dynamic{}
	}
	return m
}
