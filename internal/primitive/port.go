// Package primitive defines the execution boundary for the opaque external
// computation units driven by the orchestrator, plus the subprocess-backed
// implementation of that boundary.
package primitive

import (
	"context"
	"fmt"

	"github.com/verdantlab/greenhouse/internal/value"
)

// Input is a named input handed to a primitive.
type Input struct {
	Name         string
	Path         string
	SemanticType string
}

// ReportedWarning is a warning emitted by a primitive in its JSON response.
type ReportedWarning struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Result is the outcome of one primitive invocation. Metadata carries the
// primitive's entire JSON response; transport-only fields are stripped later
// when envelope metadata is assembled.
type Result struct {
	Success  bool
	Metadata map[string]value.Dynamic
	Warnings []ReportedWarning
	Error    string
	Message  string
}

// ExecError reports a violated execution contract: the process could not be
// driven, or its response was unreadable. Distinct from a primitive that ran
// and reported failure, which comes back as a Result.
type ExecError struct {
	PrimitivePath string
	Reason        string
	Err           error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("primitive %s %s: %v", e.PrimitivePath, e.Reason, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

// Port is the narrow capability the orchestration core needs to run a
// primitive. The production implementation spawns a subprocess; tests
// substitute a deterministic in-memory double.
type Port interface {
	Execute(ctx context.Context, primitivePath string, inputs []Input, outputPath string, params map[string]value.Dynamic) (*Result, error)
}
