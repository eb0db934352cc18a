package refs

import (
	"fmt"
	"strings"
)

// ErrorKind classifies reference failures.
type ErrorKind int

const (
	// ErrMalformed: starts with $ but matches no valid reference form.
	ErrMalformed ErrorKind = iota
	// ErrEmbedded: a reference appears inside a larger string.
	ErrEmbedded
	// ErrWrongKind: a valid reference used in the wrong position
	// (e.g. $choices in an input, $manifest in a param).
	ErrWrongKind
	// ErrUnknownDataset: $manifest names an undeclared dataset.
	ErrUnknownDataset
	// ErrDatasetFileMissing: the dataset is declared but its file is absent.
	ErrDatasetFileMissing
	// ErrUnknownChoice: $choices names an undeclared choice.
	ErrUnknownChoice
	// ErrUnknownParameter: $parameters names an undeclared parameter.
	ErrUnknownParameter
	// ErrUnknownStep: $steps names a step the experiment never declares.
	ErrUnknownStep
	// ErrStepNotExecuted: the step is declared but has not completed yet.
	ErrStepNotExecuted
	// ErrUnknownOutput: the completed step has no output by that name.
	ErrUnknownOutput
)

// Error is a structured reference failure. Context is the field path the
// offending value appeared at, Available lists the known names for the
// failing namespace, and Suggestions carries close matches or syntax hints.
type Error struct {
	Kind        ErrorKind
	Ref         string
	Context     string
	Detail      string
	Available   []string
	Suggestions []string
}

func (e *Error) Error() string {
	var b strings.Builder
	switch e.Kind {
	case ErrMalformed:
		fmt.Fprintf(&b, "invalid reference %q: starts with '$' but matches no valid form", e.Ref)
	case ErrEmbedded:
		fmt.Fprintf(&b, "embedded reference in %q: references must be the entire value, not interpolated", e.Ref)
	case ErrWrongKind:
		fmt.Fprintf(&b, "invalid reference %q: %s", e.Ref, e.Detail)
	case ErrUnknownDataset:
		fmt.Fprintf(&b, "manifest has no dataset %q", e.Ref)
	case ErrDatasetFileMissing:
		fmt.Fprintf(&b, "dataset declared in manifest but file not found: %s", e.Detail)
	case ErrUnknownChoice:
		fmt.Fprintf(&b, "unknown choice %q", e.Ref)
	case ErrUnknownParameter:
		fmt.Fprintf(&b, "unknown parameter %q", e.Ref)
	case ErrUnknownStep:
		fmt.Fprintf(&b, "unknown step %q", e.Ref)
	case ErrStepNotExecuted:
		fmt.Fprintf(&b, "step %q has not been executed yet; steps must be ordered so dependencies run first", e.Ref)
	case ErrUnknownOutput:
		fmt.Fprintf(&b, "step has no output named %q", e.Ref)
	default:
		fmt.Fprintf(&b, "cannot resolve reference %q", e.Ref)
	}

	if e.Context != "" {
		fmt.Fprintf(&b, " (in %s)", e.Context)
	}
	if len(e.Available) > 0 {
		fmt.Fprintf(&b, "; available: %s", strings.Join(e.Available, ", "))
	}
	if len(e.Suggestions) > 0 {
		fmt.Fprintf(&b, "; %s", strings.Join(e.Suggestions, "; "))
	}
	return b.String()
}
