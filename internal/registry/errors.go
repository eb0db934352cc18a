package registry

import (
	"fmt"
	"strings"
)

// ResolveErrorKind classifies primitive resolution failures.
type ResolveErrorKind int

const (
	// ErrBadReference: the reference is not of the form "layer/name".
	ErrBadReference ResolveErrorKind = iota
	// ErrUnknownLayer: the layer is outside the closed enumeration.
	ErrUnknownLayer
	// ErrUnknownPrimitive: the layer registry has no such primitive.
	ErrUnknownPrimitive
	// ErrFileMissing: the registry entry points at a file that does not exist.
	ErrFileMissing
)

// ResolveError is a structured primitive-resolution failure.
type ResolveError struct {
	Kind      ResolveErrorKind
	Ref       string
	Layer     string
	Name      string
	Path      string
	Available []string
}

func (e *ResolveError) Error() string {
	switch e.Kind {
	case ErrBadReference:
		return fmt.Sprintf("invalid primitive reference %q: expected 'layer/name' (e.g. 'analysis/generate_buffers')", e.Ref)
	case ErrUnknownLayer:
		return fmt.Sprintf("unknown layer %q in %q: must be one of %s", e.Layer, e.Ref, strings.Join(Layers, ", "))
	case ErrUnknownPrimitive:
		available := strings.Join(e.Available, ", ")
		if available == "" {
			available = "(none)"
		}
		return fmt.Sprintf("primitive %q not found in %s/%s; available: %s", e.Name, e.Layer, registryFileName, available)
	case ErrFileMissing:
		return fmt.Sprintf("primitive file not found: %s (registry entry %q in %s/%s points at a missing file)", e.Path, e.Name, e.Layer, registryFileName)
	default:
		return fmt.Sprintf("primitive resolution failed for %q", e.Ref)
	}
}
