package envelope

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/verdantlab/greenhouse/internal/ctxlog"
)

// ValidationError reports an envelope that failed schema validation on
// write. Writing an invalid envelope is always a bug in this program, so it
// is never papered over.
type ValidationError struct {
	Path     string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("envelope %s fails schema validation: %s", e.Path, strings.Join(e.Problems, "; "))
}

// Write serializes an envelope to path, validating it against the schema
// first. A validation failure aborts the write.
func Write(env *Envelope, path string, cache *SchemaCache) error {
	payload, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding envelope: %w", err)
	}

	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("re-decoding envelope for validation: %w", err)
	}
	if problems := cache.Validate(doc); len(problems) > 0 {
		return &ValidationError{Path: path, Problems: problems}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating envelope dir: %w", err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("writing envelope: %w", err)
	}
	return nil
}

// Read loads an envelope from path. Schema violations are logged as warnings
// but the envelope still loads: old runs must stay readable after the schema
// tightens.
func Read(ctx context.Context, path string, cache *SchemaCache) (*Envelope, error) {
	logger := ctxlog.FromContext(ctx)

	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading envelope: %w", err)
	}

	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("envelope %s is not valid JSON: %w", path, err)
	}
	for _, problem := range cache.Validate(doc) {
		logger.Warn("envelope fails schema validation", "path", path, "problem", problem)
	}

	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("decoding envelope %s: %w", path, err)
	}
	return &env, nil
}
