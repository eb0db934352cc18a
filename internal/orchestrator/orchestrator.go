// Package orchestrator drives a full experiment run: validate everything
// up front, order the steps, execute each primitive with just-in-time
// reference resolution, and leave behind envelopes and a run log.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/verdantlab/greenhouse/internal/ctxlog"
	"github.com/verdantlab/greenhouse/internal/document"
	"github.com/verdantlab/greenhouse/internal/envelope"
	"github.com/verdantlab/greenhouse/internal/graph"
	"github.com/verdantlab/greenhouse/internal/primitive"
	"github.com/verdantlab/greenhouse/internal/refs"
	"github.com/verdantlab/greenhouse/internal/registry"
	"github.com/verdantlab/greenhouse/internal/semtype"
	"github.com/verdantlab/greenhouse/internal/value"
)

// Options configures a run. Port overrides the subprocess runner; tests use
// that to execute without spawning anything.
type Options struct {
	ProjectRoot   string
	OutputDir     string
	EnvelopeDir   string
	MethodsDir    string
	LogsDir       string
	Profile       envelope.Profile
	RunnerCommand []string
	Port          primitive.Port
}

// StepResult summarizes one executed step.
type StepResult struct {
	StepID          string
	Primitive       string
	Success         bool
	DurationSeconds float64
	Outputs         map[string]string // output name -> data path
	Envelopes       map[string]string // output name -> envelope path
	Warnings        int
	Error           string
	Message         string
}

// Result is the outcome of a whole run.
type Result struct {
	Success        bool
	RunID          string
	CompletedSteps []string
	FailedStep     string
	StepResults    []StepResult
	FinalEnvelopes map[string]string // "step.output" -> envelope path, sinks only
	Warnings       []string          // validation warnings
	Error          string
}

// Orchestrator executes one experiment against one manifest.
type Orchestrator struct {
	exp      *document.Experiment
	manifest *document.Manifest
	types    *semtype.Registry
	registry *registry.Manager
	opts     Options
	port     primitive.Port
	schemas  *envelope.SchemaCache
}

// New wires an Orchestrator from parsed documents. The primitive port comes
// from Options.Port when set, otherwise a subprocess runner is built from
// Options.RunnerCommand.
func New(exp *document.Experiment, manifest *document.Manifest, types *semtype.Registry, reg *registry.Manager, opts Options) (*Orchestrator, error) {
	port := opts.Port
	if port == nil {
		runner, err := primitive.NewRunner(opts.ProjectRoot, opts.RunnerCommand)
		if err != nil {
			return nil, err
		}
		port = runner
	}
	return &Orchestrator{
		exp:      exp,
		manifest: manifest,
		types:    types,
		registry: reg,
		opts:     opts,
		port:     port,
		schemas:  &envelope.SchemaCache{},
	}, nil
}

// InvalidStepError reports a step declaration the orchestrator cannot
// execute, found after document parsing succeeded.
type InvalidStepError struct {
	StepID string
	Reason string
}

func (e *InvalidStepError) Error() string {
	return fmt.Sprintf("step %q: %s", e.StepID, e.Reason)
}

// Plan builds and returns the execution plan without running anything.
func (o *Orchestrator) Plan() (*graph.Plan, error) {
	return graph.Build(o.exp)
}

// Visualize renders the execution plan as human-readable text.
func (o *Orchestrator) Visualize() (string, error) {
	plan, err := o.Plan()
	if err != nil {
		return "", err
	}
	return plan.Visualize(o.exp), nil
}

// Run validates, then executes the experiment step by step in plan order.
// The first failing step stops the run; everything completed before it keeps
// its outputs and envelopes. A run log is written regardless of outcome.
func (o *Orchestrator) Run(ctx context.Context) *Result {
	logger := ctxlog.FromContext(ctx)
	started := time.Now().UTC()
	runID := fmt.Sprintf("%s_%s", o.exp.ID, started.Format("20060102T150405Z"))

	res := &Result{
		RunID:          runID,
		FinalEnvelopes: map[string]string{},
	}

	errs, warns := o.Validate(ctx)
	res.Warnings = warns
	for _, w := range warns {
		logger.Warn("validation warning", "experiment", o.exp.ID, "warning", w)
	}
	if len(errs) > 0 {
		res.Error = "validation failed: " + strings.Join(errs, "; ")
		o.persistRunLog(ctx, res, started)
		return res
	}

	plan, err := graph.Build(o.exp)
	if err != nil {
		// Unreachable after validation, kept for safety.
		res.Error = err.Error()
		o.persistRunLog(ctx, res, started)
		return res
	}

	for _, dir := range []string{o.opts.OutputDir, o.opts.EnvelopeDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			res.Error = fmt.Sprintf("creating %s: %v", dir, err)
			o.persistRunLog(ctx, res, started)
			return res
		}
	}

	sinks := make(map[string]bool)
	for _, s := range plan.Sinks() {
		sinks[s] = true
	}

	resolver := refs.NewResolver(o.manifest, o.exp)
	builder := envelope.NewBuilder(o.opts.Profile, o.port)

	logger.Info("starting run",
		"run_id", runID,
		"experiment", o.exp.ID,
		"steps", len(plan.StepsInOrder),
	)

	for _, stepID := range plan.StepsInOrder {
		step := o.exp.Step(stepID)
		sr := o.executeStep(ctx, builder, resolver, step, sinks[stepID])
		res.StepResults = append(res.StepResults, sr)

		if !sr.Success {
			res.FailedStep = stepID
			res.Error = sr.Error
			logger.Error("step failed",
				"run_id", runID,
				"step", stepID,
				"error", sr.Error,
				"message", sr.Message,
			)
			o.persistRunLog(ctx, res, started)
			return res
		}

		res.CompletedSteps = append(res.CompletedSteps, stepID)
		if sinks[stepID] {
			for name, path := range sr.Envelopes {
				res.FinalEnvelopes[stepID+"."+name] = path
			}
		}
		logger.Info("step completed",
			"run_id", runID,
			"step", stepID,
			"duration_s", sr.DurationSeconds,
			"warnings", sr.Warnings,
		)
	}

	res.Success = true
	logger.Info("run completed", "run_id", runID, "steps", len(res.CompletedSteps))
	o.persistRunLog(ctx, res, started)
	return res
}

// executeStep resolves a step's inputs and params, runs its primitive, and
// writes the output's envelope.
func (o *Orchestrator) executeStep(ctx context.Context, builder *envelope.Builder, resolver *refs.Resolver, step *document.StepDefinition, sink bool) StepResult {
	sr := StepResult{
		StepID:    step.ID,
		Primitive: step.Primitive,
		Outputs:   map[string]string{},
		Envelopes: map[string]string{},
	}
	fail := func(err error) StepResult {
		sr.Error = err.Error()
		return sr
	}

	primPath, spec, err := o.registry.ResolvePrimitive(ctx, step.Primitive, true)
	if err != nil {
		return fail(err)
	}

	resolvedInputs, err := resolver.ResolveStepInputs(step)
	if err != nil {
		return fail(err)
	}
	params, err := resolver.ResolveStepParams(step)
	if err != nil {
		return fail(err)
	}

	outName, outSem, err := stepOutput(step, spec)
	if err != nil {
		return fail(err)
	}
	format, err := o.types.Format(outSem)
	if err != nil {
		return fail(err)
	}
	category, err := o.types.Category(outSem)
	if err != nil {
		return fail(err)
	}

	builderInputs := make([]envelope.Input, 0, len(resolvedInputs))
	for _, name := range sortedKeys(resolvedInputs) {
		in := resolvedInputs[name]
		builderInputs = append(builderInputs, envelope.Input{
			Name:         name,
			Path:         in.Path,
			SemanticType: in.SemanticType,
			Envelope:     in.Envelope,
		})
	}

	outputPath := filepath.Join(o.opts.OutputDir, fmt.Sprintf("%s_%s.%s", step.ID, outName, format))
	version := spec.Version
	if version == "" {
		version = step.Version
	}

	build, err := builder.Run(ctx, envelope.BuildRequest{
		PrimitivePath:      primPath,
		Version:            version,
		Inputs:             builderInputs,
		OutputPath:         outputPath,
		OutputFormat:       format,
		OutputSemanticType: outSem,
		OutputDataCategory: category,
		Params:             params,
		Passthrough:        spec.Passthrough,
	})
	if err != nil {
		return fail(err)
	}
	if !build.Success {
		sr.Error = build.Error
		sr.Message = build.Message
		return sr
	}
	if n := len(build.Envelope.Provenance); n > 0 {
		sr.DurationSeconds = build.Envelope.Provenance[n-1].DurationSeconds
	}

	env := build.Envelope
	if sink {
		env.Metadata["lineage"] = o.lineageMetadata()
	}

	envPath := filepath.Join(o.opts.EnvelopeDir, fmt.Sprintf("%s_%s.envelope.json", step.ID, outName))
	if err := envelope.Write(env, envPath, o.schemas); err != nil {
		return fail(err)
	}

	resolver.RegisterStepOutput(step.ID, outName, outputPath, env)
	sr.Outputs[outName] = outputPath
	sr.Envelopes[outName] = envPath
	sr.Success = true
	sr.Warnings = len(env.Warnings)
	return sr
}

// lineageMetadata is the enrichment block written onto sink envelopes: the
// full research context a terminal artifact descends from.
func (o *Orchestrator) lineageMetadata() value.Dynamic {
	lin := o.exp.Lineage
	return value.Map(map[string]value.Dynamic{
		"curiosity":    value.String(lin.CuriosityRef),
		"sub_question": value.String(lin.SubQuestion),
		"method":       value.String(lin.MethodRef),
		"choices":      value.Map(o.exp.Choices),
		"parameters":   value.Map(o.exp.Parameters),
	})
}

// stepOutput returns the effective single output of a step: the step's own
// declaration wins, the registry's declaration is the fallback. Exactly one
// output is supported per step.
func stepOutput(step *document.StepDefinition, spec registry.PrimitiveSpec) (name, semanticType string, err error) {
	outputs := step.Outputs
	if len(outputs) == 0 {
		outputs = spec.Outputs
	}
	switch len(outputs) {
	case 0:
		return "", "", &InvalidStepError{StepID: step.ID, Reason: "declares no outputs"}
	case 1:
		for n, s := range outputs {
			return n, s, nil
		}
	}
	return "", "", &InvalidStepError{StepID: step.ID,
		Reason: fmt.Sprintf("declares %d outputs; exactly one is supported", len(outputs))}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
