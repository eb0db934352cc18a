package refs

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/agext/levenshtein"

	"github.com/verdantlab/greenhouse/internal/document"
	"github.com/verdantlab/greenhouse/internal/envelope"
	"github.com/verdantlab/greenhouse/internal/value"
)

// suggestionDistance bounds the edit distance for typo suggestions.
const suggestionDistance = 2

// ResolvedInput is the resolution of an input reference: a data path, its
// semantic type, and the producing Envelope for step outputs (nil for
// manifest datasets).
type ResolvedInput struct {
	Path         string
	SemanticType string
	Envelope     *envelope.Envelope
}

type stepOutput struct {
	path string
	env  *envelope.Envelope
}

// Resolver resolves references against a manifest, an experiment, and the
// accumulating table of completed step outputs. The table is written only by
// the orchestrator, immediately after each step succeeds.
type Resolver struct {
	manifest   *document.Manifest
	experiment *document.Experiment
	outputs    map[string]map[string]stepOutput
}

// NewResolver returns a Resolver with an empty step-output table.
func NewResolver(manifest *document.Manifest, experiment *document.Experiment) *Resolver {
	return &Resolver{
		manifest:   manifest,
		experiment: experiment,
		outputs:    make(map[string]map[string]stepOutput),
	}
}

// RegisterStepOutput records a completed step's output so later steps can
// reference it via $steps.{step}.{output}.
func (r *Resolver) RegisterStepOutput(stepID, outputName, path string, env *envelope.Envelope) {
	if _, ok := r.outputs[stepID]; !ok {
		r.outputs[stepID] = make(map[string]stepOutput)
	}
	r.outputs[stepID][outputName] = stepOutput{path: path, env: env}
}

// ResolveInput resolves an input reference. Inputs may only reference data:
// $manifest.{dataset} or $steps.{step}.{output}.
func (r *Resolver) ResolveInput(raw, context string) (ResolvedInput, error) {
	ref, err := Parse(raw)
	if err != nil {
		withContext(err, context)
		return ResolvedInput{}, err
	}

	switch ref.Kind {
	case KindStep:
		return r.resolveStepRef(ref, context)
	case KindManifest:
		return r.resolveManifestRef(ref, context)
	case KindChoice:
		return ResolvedInput{}, &Error{
			Kind: ErrWrongKind, Ref: raw, Context: context,
			Detail: "$choices is for params, not inputs; inputs must reference data via $manifest.{dataset} or $steps.{step}.{output}",
		}
	case KindParameter:
		return ResolvedInput{}, &Error{
			Kind: ErrWrongKind, Ref: raw, Context: context,
			Detail: "$parameters is for params, not inputs; inputs must reference data via $manifest.{dataset} or $steps.{step}.{output}",
		}
	default:
		return ResolvedInput{}, &Error{
			Kind: ErrWrongKind, Ref: raw, Context: context,
			Detail: "inputs must be references: $manifest.{dataset} or $steps.{step}.{output}",
		}
	}
}

func (r *Resolver) resolveStepRef(ref Ref, context string) (ResolvedInput, error) {
	byOutput, ok := r.outputs[ref.Step]
	if !ok {
		if r.experiment.Step(ref.Step) != nil {
			return ResolvedInput{}, &Error{Kind: ErrStepNotExecuted, Ref: ref.Step, Context: context}
		}
		return ResolvedInput{}, &Error{
			Kind: ErrUnknownStep, Ref: ref.Step, Context: context,
			Available: sorted(r.experiment.StepIDs()),
		}
	}

	out, ok := byOutput[ref.Output]
	if !ok {
		return ResolvedInput{}, &Error{
			Kind: ErrUnknownOutput, Ref: ref.Output, Context: context,
			Available: outputNames(byOutput),
		}
	}

	return ResolvedInput{
		Path:         out.path,
		SemanticType: out.env.SemanticType(),
		Envelope:     out.env,
	}, nil
}

func (r *Resolver) resolveManifestRef(ref Ref, context string) (ResolvedInput, error) {
	ds, ok := r.manifest.Datasets[ref.Name]
	if !ok {
		return ResolvedInput{}, &Error{
			Kind: ErrUnknownDataset, Ref: ref.Name, Context: context,
			Available: sorted(r.manifest.DatasetNames()),
		}
	}

	path := filepath.Join(r.manifest.DataDir, ds.Path)
	if _, err := os.Stat(path); err != nil {
		// Declared but absent on disk is a distinct failure from undeclared:
		// the manifest is right, the data fetch has not happened.
		return ResolvedInput{}, &Error{
			Kind: ErrDatasetFileMissing, Ref: ref.Name, Context: context, Detail: path,
		}
	}

	return ResolvedInput{Path: path, SemanticType: ds.SemanticType}, nil
}

// ResolveParamValue resolves a parameter value. Lists and maps are walked
// recursively, each leaf string resolved independently; literals of any kind
// pass through unchanged. Params may only reference $choices and $parameters.
func (r *Resolver) ResolveParamValue(v value.Dynamic, context string) (value.Dynamic, error) {
	switch v.Kind() {
	case value.KindList:
		elems := v.Elements()
		resolved := make([]value.Dynamic, len(elems))
		for i, e := range elems {
			rv, err := r.ResolveParamValue(e, indexContext(context, i))
			if err != nil {
				return value.Null(), err
			}
			resolved[i] = rv
		}
		return value.List(resolved), nil

	case value.KindMap:
		resolved := make(map[string]value.Dynamic)
		for _, k := range v.Keys() {
			rv, err := r.ResolveParamValue(v.Index(k), context+"."+k)
			if err != nil {
				return value.Null(), err
			}
			resolved[k] = rv
		}
		return value.Map(resolved), nil

	case value.KindString:
		// fallthrough to reference handling below
	default:
		return v, nil
	}

	raw := v.AsString()
	ref, err := Parse(raw)
	if err != nil {
		withContext(err, context)
		return value.Null(), err
	}

	switch ref.Kind {
	case KindLiteral:
		return v, nil
	case KindChoice:
		return r.resolveChoice(ref, context)
	case KindParameter:
		return r.resolveParameter(ref, context)
	case KindManifest:
		return value.Null(), &Error{
			Kind: ErrWrongKind, Ref: raw, Context: context,
			Detail: "$manifest references data files, not param values; use $choices.{name} or $parameters.{name}",
		}
	case KindStep:
		return value.Null(), &Error{
			Kind: ErrWrongKind, Ref: raw, Context: context,
			Detail: "$steps references data outputs, not param values; use $choices.{name} or $parameters.{name}",
		}
	default:
		return value.Null(), &Error{Kind: ErrMalformed, Ref: raw, Context: context}
	}
}

func (r *Resolver) resolveChoice(ref Ref, context string) (value.Dynamic, error) {
	if v, ok := r.experiment.Choices[ref.Name]; ok {
		return v, nil
	}
	known := keysOf(r.experiment.Choices)
	return value.Null(), &Error{
		Kind: ErrUnknownChoice, Ref: ref.Name, Context: context,
		Available:   known,
		Suggestions: closeMatches(ref.Name, known),
	}
}

func (r *Resolver) resolveParameter(ref Ref, context string) (value.Dynamic, error) {
	if v, ok := r.experiment.Parameters[ref.Name]; ok {
		return v, nil
	}
	known := keysOf(r.experiment.Parameters)
	return value.Null(), &Error{
		Kind: ErrUnknownParameter, Ref: ref.Name, Context: context,
		Available:   known,
		Suggestions: closeMatches(ref.Name, known),
	}
}

// ResolveStepInputs resolves every input reference of a step, keyed by input
// name. Names are visited in sorted order so the first error is stable.
func (r *Resolver) ResolveStepInputs(step *document.StepDefinition) (map[string]ResolvedInput, error) {
	resolved := make(map[string]ResolvedInput, len(step.Inputs))
	context := "step '" + step.ID + "' inputs"
	for _, name := range sortedKeys(step.Inputs) {
		in, err := r.ResolveInput(step.Inputs[name], context+"."+name)
		if err != nil {
			return nil, err
		}
		resolved[name] = in
	}
	return resolved, nil
}

// ResolveStepParams resolves every reference in a step's params map.
func (r *Resolver) ResolveStepParams(step *document.StepDefinition) (map[string]value.Dynamic, error) {
	resolved := make(map[string]value.Dynamic, len(step.Params))
	context := "step '" + step.ID + "' params"
	for _, name := range sortedKeys(step.Params) {
		v, err := r.ResolveParamValue(step.Params[name], context+"."+name)
		if err != nil {
			return nil, err
		}
		resolved[name] = v
	}
	return resolved, nil
}

// closeMatches returns every candidate within edit distance 2 of name.
func closeMatches(name string, candidates []string) []string {
	var close []string
	for _, c := range candidates {
		if levenshtein.Distance(name, c, nil) <= suggestionDistance {
			close = append(close, c)
		}
	}
	return close
}

func withContext(err error, context string) {
	if re, ok := err.(*Error); ok && re.Context == "" {
		re.Context = context
	}
}

func indexContext(context string, i int) string {
	return context + "[" + strconv.Itoa(i) + "]"
}

func sorted(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func keysOf[V any](m map[string]V) []string {
	return sortedKeys(m)
}

func outputNames(m map[string]stepOutput) []string {
	return sortedKeys(m)
}
