// Package envelope implements the provenance sidecar written next to every
// step output: what the data is, which primitives produced it, with which
// params and input hashes, and every warning raised along the way. Envelopes
// are validated against a JSON Schema, hard on write and soft on read.
package envelope

import (
	"encoding/json"

	"github.com/verdantlab/greenhouse/internal/value"
)

// Data locates the artifact the envelope describes. Secondary carries
// auxiliary files that travel with the main one (a shapefile's .dbf, .prj).
type Data struct {
	Path      string            `json:"path"`
	Format    string            `json:"format"`
	Secondary map[string]string `json:"secondary"`
}

// InputRecord is the hash-stamped identity of one input at execution time.
type InputRecord struct {
	Name         string   `json:"name"`
	SemanticType string   `json:"semantic_type"`
	Path         string   `json:"path"`
	Hash         HashInfo `json:"hash"`
}

// ProvenanceEntry records one primitive execution in the output's history.
// LineageBranch names which input of a multi-input step an inherited entry
// arrived through; it is empty on the entry for the step itself.
type ProvenanceEntry struct {
	Primitive       string                   `json:"primitive"`
	Version         string                   `json:"version"`
	Timestamp       string                   `json:"timestamp"`
	Params          map[string]value.Dynamic `json:"params"`
	Inputs          []InputRecord            `json:"inputs"`
	DurationSeconds float64                  `json:"duration_seconds"`
	LineageBranch   string                   `json:"lineage_branch,omitempty"`
}

// Warning is a primitive-reported warning, tagged with the primitive that
// raised it so the origin survives merging across steps.
type Warning struct {
	Level     string `json:"level"`
	Primitive string `json:"primitive"`
	Message   string `json:"message"`
}

// Envelope is the full provenance document for one output artifact.
type Envelope struct {
	Data       Data                     `json:"data"`
	Metadata   map[string]value.Dynamic `json:"metadata"`
	Provenance []ProvenanceEntry        `json:"provenance"`
	Warnings   []Warning                `json:"warnings"`
}

// SemanticType returns metadata.semantic_type, or "" when absent.
func (e *Envelope) SemanticType() string {
	return e.metaString("semantic_type")
}

// DataCategory returns metadata.data_category, or "" when absent.
func (e *Envelope) DataCategory() string {
	return e.metaString("data_category")
}

func (e *Envelope) metaString(key string) string {
	v, ok := e.Metadata[key]
	if !ok || !v.IsString() {
		return ""
	}
	return v.AsString()
}

// MarshalJSON normalizes nil collections to empty ones so the serialized
// document always satisfies the schema's required shapes.
func (e Envelope) MarshalJSON() ([]byte, error) {
	type plain Envelope
	n := plain(e)
	if n.Data.Secondary == nil {
		n.Data.Secondary = map[string]string{}
	}
	if n.Metadata == nil {
		n.Metadata = map[string]value.Dynamic{}
	}
	if n.Warnings == nil {
		n.Warnings = []Warning{}
	}

	entries := make([]ProvenanceEntry, len(n.Provenance))
	for i, entry := range n.Provenance {
		if entry.Params == nil {
			entry.Params = map[string]value.Dynamic{}
		}
		if entry.Inputs == nil {
			entry.Inputs = []InputRecord{}
		}
		entries[i] = entry
	}
	n.Provenance = entries

	return json.Marshal(n)
}
