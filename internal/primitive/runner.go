package primitive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/verdantlab/greenhouse/internal/ctxlog"
	"github.com/verdantlab/greenhouse/internal/value"
)

// Runner executes primitives as subprocesses. The interpreter command comes
// from configuration (for example ["Rscript", "--vanilla"]); each invocation
// passes the primitive an inputs file, the output path, and a params file,
// and expects a single JSON object on stdout.
type Runner struct {
	projectRoot string
	command     []string
}

// NewRunner returns a Runner rooted at projectRoot. command must name the
// interpreter and any fixed arguments; the primitive path and the three
// invocation arguments are appended per invocation.
func NewRunner(projectRoot string, command []string) (*Runner, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("runner command must not be empty")
	}
	return &Runner{projectRoot: projectRoot, command: command}, nil
}

// Execute runs one primitive invocation. The inputs file (a name to path
// map) and the params file live in a per-invocation temp directory that is
// removed when the call returns.
func (r *Runner) Execute(ctx context.Context, primitivePath string, inputs []Input, outputPath string, params map[string]value.Dynamic) (*Result, error) {
	logger := ctxlog.FromContext(ctx)

	inputPaths := make(map[string]string, len(inputs))
	for _, in := range inputs {
		inputPaths[in.Name] = in.Path
	}
	if params == nil {
		params = map[string]value.Dynamic{}
	}

	invocation := uuid.NewString()
	dir, err := os.MkdirTemp("", "greenhouse-"+invocation)
	if err != nil {
		return nil, fmt.Errorf("creating invocation dir: %w", err)
	}
	defer os.RemoveAll(dir)

	inputsPath := filepath.Join(dir, "inputs.json")
	if err := writeJSON(inputsPath, inputPaths); err != nil {
		return nil, fmt.Errorf("writing inputs file: %w", err)
	}
	paramsPath := filepath.Join(dir, "params.json")
	if err := writeJSON(paramsPath, params); err != nil {
		return nil, fmt.Errorf("writing params file: %w", err)
	}

	args := append(append([]string{}, r.command[1:]...), primitivePath, inputsPath, outputPath, paramsPath)
	cmd := exec.CommandContext(ctx, r.command[0], args...)
	cmd.Dir = r.projectRoot

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Debug("invoking primitive",
		"primitive", primitivePath,
		"invocation", invocation,
		"command", r.command[0],
	)

	runErr := cmd.Run()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	res, parseErr := ParseResponse(stdout.Bytes(), runErr == nil)
	if parseErr != nil {
		reason := "produced unparseable output"
		if runErr != nil {
			reason = fmt.Sprintf("failed (%v) with unparseable output; stderr: %s", runErr, tail(stderr.String()))
		}
		return nil, &ExecError{PrimitivePath: primitivePath, Reason: reason, Err: parseErr}
	}

	if runErr != nil {
		if res.Error == "" {
			res.Error = "primitive exited non-zero"
		}
		if res.Message == "" {
			res.Message = tail(stderr.String())
		}
	}
	return res, nil
}

func writeJSON(path string, v any) error {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o644)
}

// ParseResponse decodes a primitive's stdout into a Result. Success is the
// exit code's alone to decide; exitedOK carries it, and any status field in
// the response is kept only as metadata. The entire stdout must be one JSON
// object; anything else is a contract violation, not a soft failure, because
// an unreadable response leaves the output unverifiable.
func ParseResponse(stdout []byte, exitedOK bool) (*Result, error) {
	trimmed := bytes.TrimSpace(stdout)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty response")
	}

	var raw map[string]any
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %w", err)
	}

	res := &Result{Success: exitedOK}
	if msg, ok := raw["error"].(string); ok {
		res.Error = msg
	}
	if msg, ok := raw["message"].(string); ok {
		res.Message = msg
	}

	if ws, ok := raw["warnings"].([]any); ok {
		for _, w := range ws {
			entry, ok := w.(map[string]any)
			if !ok {
				continue
			}
			rw := ReportedWarning{Level: "warning"}
			if lvl, ok := entry["level"].(string); ok && lvl != "" {
				rw.Level = lvl
			}
			if msg, ok := entry["message"].(string); ok {
				rw.Message = msg
			}
			res.Warnings = append(res.Warnings, rw)
		}
	}

	res.Metadata = make(map[string]value.Dynamic, len(raw))
	for k, v := range raw {
		dv, err := value.FromGo(v)
		if err != nil {
			return nil, fmt.Errorf("response field %q: %w", k, err)
		}
		res.Metadata[k] = dv
	}
	return res, nil
}

// tail keeps the last few lines of interpreter noise for error messages.
func tail(s string) string {
	s = strings.TrimSpace(s)
	lines := strings.Split(s, "\n")
	if len(lines) > 5 {
		lines = lines[len(lines)-5:]
	}
	return strings.Join(lines, "\n")
}
