package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/verdantlab/greenhouse/internal/document"
	"github.com/verdantlab/greenhouse/internal/graph"
	"github.com/verdantlab/greenhouse/internal/refs"
	"github.com/verdantlab/greenhouse/internal/value"
)

// Validate checks the whole experiment without executing anything and
// reports every problem it can find, not just the first. Errors block the
// run; warnings do not. The method cross-check is advisory only, so all of
// its findings are warnings.
func (o *Orchestrator) Validate(ctx context.Context) (errors, warnings []string) {
	for _, err := range o.registry.ValidateAllPrimitives(ctx, o.exp) {
		errors = append(errors, err.Error())
	}

	if _, err := graph.Build(o.exp); err != nil {
		errors = append(errors, err.Error())
	}

	for i := range o.exp.Steps {
		step := &o.exp.Steps[i]
		errors = append(errors, o.validateStepOutputs(step)...)
		errors = append(errors, o.validateStepInputs(ctx, step)...)
		errors = append(errors, o.validateStepParams(step)...)

		if _, spec, err := o.registry.ResolvePrimitive(ctx, step.Primitive, false); err == nil {
			if _, _, err := stepOutput(step, spec); err != nil {
				errors = append(errors, err.Error())
			}
		}
	}

	warnings = append(warnings, o.crossCheckMethod()...)
	return errors, warnings
}

func (o *Orchestrator) validateStepOutputs(step *document.StepDefinition) []string {
	var errs []string
	for _, name := range sortedKeys(step.Outputs) {
		if semType := step.Outputs[name]; !o.types.IsValid(semType) {
			_, err := o.types.Get(semType)
			errs = append(errs, fmt.Sprintf("step %q output %q: %v", step.ID, name, err))
		}
	}
	return errs
}

func (o *Orchestrator) validateStepInputs(ctx context.Context, step *document.StepDefinition) []string {
	var errs []string
	for _, name := range sortedKeys(step.Inputs) {
		where := fmt.Sprintf("step '%s' inputs.%s", step.ID, name)
		ref, err := refs.Parse(step.Inputs[name])
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", where, err))
			continue
		}

		switch ref.Kind {
		case refs.KindManifest:
			errs = append(errs, o.validateManifestRef(ref, where)...)
		case refs.KindStep:
			errs = append(errs, o.validateStepRef(ctx, ref, where)...)
		default:
			errs = append(errs, fmt.Sprintf(
				"%s: inputs must reference data via $manifest.{dataset} or $steps.{step}.{output}, got %q",
				where, ref.Raw))
		}
	}
	return errs
}

func (o *Orchestrator) validateManifestRef(ref refs.Ref, where string) []string {
	ds, ok := o.manifest.Datasets[ref.Name]
	if !ok {
		return []string{fmt.Sprintf("%s: manifest has no dataset %q (available: %s)",
			where, ref.Name, joinSorted(o.manifest.DatasetNames()))}
	}
	path := filepath.Join(o.manifest.DataDir, ds.Path)
	if _, err := os.Stat(path); err != nil {
		return []string{fmt.Sprintf("%s: dataset %q declared but file not found: %s",
			where, ref.Name, path)}
	}
	return nil
}

// validateStepRef checks a $steps reference statically: the target must be a
// declared step and the output must be something that step will produce.
func (o *Orchestrator) validateStepRef(ctx context.Context, ref refs.Ref, where string) []string {
	target := o.exp.Step(ref.Step)
	if target == nil {
		return []string{fmt.Sprintf("%s: unknown step %q", where, ref.Step)}
	}

	outputs := target.Outputs
	if len(outputs) == 0 {
		if _, spec, err := o.registry.ResolvePrimitive(ctx, target.Primitive, false); err == nil {
			outputs = spec.Outputs
		}
	}
	if len(outputs) > 0 {
		if _, ok := outputs[ref.Output]; !ok {
			return []string{fmt.Sprintf("%s: step %q has no output named %q (available: %s)",
				where, ref.Step, ref.Output, joinSorted(sortedKeys(outputs)))}
		}
	}
	return nil
}

func (o *Orchestrator) validateStepParams(step *document.StepDefinition) []string {
	var errs []string
	for _, name := range sortedKeys(step.Params) {
		where := fmt.Sprintf("step '%s' params.%s", step.ID, name)
		errs = append(errs, o.validateParamValue(step.Params[name], where)...)
	}
	return errs
}

func (o *Orchestrator) validateParamValue(v value.Dynamic, where string) []string {
	var errs []string
	switch v.Kind() {
	case value.KindList:
		for i, e := range v.Elements() {
			errs = append(errs, o.validateParamValue(e, fmt.Sprintf("%s[%d]", where, i))...)
		}
	case value.KindMap:
		for _, k := range v.Keys() {
			errs = append(errs, o.validateParamValue(v.Index(k), where+"."+k)...)
		}
	case value.KindString:
		ref, err := refs.Parse(v.AsString())
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", where, err))
			break
		}
		switch ref.Kind {
		case refs.KindChoice:
			if _, ok := o.exp.Choices[ref.Name]; !ok {
				errs = append(errs, fmt.Sprintf("%s: unknown choice %q (available: %s)",
					where, ref.Name, joinSorted(sortedKeys(o.exp.Choices))))
			}
		case refs.KindParameter:
			if _, ok := o.exp.Parameters[ref.Name]; !ok {
				errs = append(errs, fmt.Sprintf("%s: unknown parameter %q (available: %s)",
					where, ref.Name, joinSorted(sortedKeys(o.exp.Parameters))))
			}
		case refs.KindManifest, refs.KindStep:
			errs = append(errs, fmt.Sprintf(
				"%s: %q references data; params may only use $choices.{name} or $parameters.{name}",
				where, ref.Raw))
		}
	}
	return errs
}

// crossCheckMethod compares the experiment's choices against its method's
// declared vocabulary. A choice outside the vocabulary is interesting, not
// wrong: experiments are allowed to explore past their method.
func (o *Orchestrator) crossCheckMethod() []string {
	methodRef := o.exp.Lineage.MethodRef
	if methodRef == "" {
		return nil
	}

	path := document.ResolveMethodPath(o.opts.MethodsDir, methodRef)
	method, err := document.ParseMethod(path)
	if err != nil {
		return []string{fmt.Sprintf("method %q could not be loaded for cross-check: %v", methodRef, err)}
	}

	var warns []string
	for _, name := range sortedKeys(o.exp.Choices) {
		decl, ok := method.Choices[name]
		if !ok {
			warns = append(warns, fmt.Sprintf(
				"choice %q is not declared by method %q", name, method.ID))
			continue
		}
		if len(decl.Options) == 0 {
			continue
		}

		chosen := o.exp.Choices[name]
		found := false
		for _, opt := range decl.Options {
			if chosen.Equal(opt) {
				found = true
				break
			}
		}
		if !found {
			warns = append(warns, fmt.Sprintf(
				"choice %q value is outside the options declared by method %q", name, method.ID))
		}
	}

	for _, name := range sortedKeys(method.Choices) {
		if _, ok := o.exp.Choices[name]; !ok {
			warns = append(warns, fmt.Sprintf(
				"method %q declares choice %q but the experiment does not provide it", method.ID, name))
		}
	}
	return warns
}

func joinSorted(names []string) string {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	out := ""
	for i, n := range sorted {
		if i > 0 {
			out += ", "
		}
		out += n
	}
	return out
}
