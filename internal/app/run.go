package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/verdantlab/greenhouse/internal/cli"
	"github.com/verdantlab/greenhouse/internal/ctxlog"
	"github.com/verdantlab/greenhouse/internal/document"
	"github.com/verdantlab/greenhouse/internal/fsutil"
	"github.com/verdantlab/greenhouse/internal/orchestrator"
	"github.com/verdantlab/greenhouse/internal/registry"
	"github.com/verdantlab/greenhouse/internal/semtype"
)

// Run executes the invocation the App was built with.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	switch a.inv.Mode {
	case cli.ModeValidate:
		return a.validate(ctx)
	case cli.ModeVisualize:
		return a.visualize(ctx)
	default:
		return a.runExperiment(ctx)
	}
}

// runExperiment executes a single experiment end to end.
func (a *App) runExperiment(ctx context.Context) error {
	o, err := a.orchestratorFor(a.inv.ExperimentPath)
	if err != nil {
		return err
	}

	res := o.Run(ctx)
	if !res.Success {
		if res.FailedStep != "" {
			return &cli.ExitError{Code: 1, Message: fmt.Sprintf(
				"run %s failed at step %q: %s", res.RunID, res.FailedStep, res.Error)}
		}
		return &cli.ExitError{Code: 1, Message: fmt.Sprintf("run %s failed: %s", res.RunID, res.Error)}
	}

	a.printf("run %s completed: %d steps\n", res.RunID, len(res.CompletedSteps))
	for ref, path := range res.FinalEnvelopes {
		a.printf("  %s -> %s\n", ref, path)
	}
	return nil
}

// validate checks one experiment file, or every experiment under a
// directory, and executes nothing.
func (a *App) validate(ctx context.Context) error {
	paths, err := a.experimentPaths()
	if err != nil {
		return err
	}

	failed := 0
	for _, path := range paths {
		o, err := a.orchestratorFor(path)
		if err != nil {
			a.printf("%s: INVALID\n  %v\n", path, err)
			failed++
			continue
		}

		errs, warns := o.Validate(ctx)
		for _, w := range warns {
			a.printf("%s: warning: %s\n", path, w)
		}
		if len(errs) > 0 {
			a.printf("%s: INVALID\n", path)
			for _, e := range errs {
				a.printf("  %s\n", e)
			}
			failed++
			continue
		}
		a.printf("%s: ok\n", path)
	}

	if failed > 0 {
		return &cli.ExitError{Code: 1, Message: fmt.Sprintf("%d of %d experiments invalid", failed, len(paths))}
	}
	return nil
}

// visualize prints the execution plan without running anything.
func (a *App) visualize(ctx context.Context) error {
	o, err := a.orchestratorFor(a.inv.ExperimentPath)
	if err != nil {
		return err
	}
	rendered, err := o.Visualize()
	if err != nil {
		return err
	}
	a.printf("%s", rendered)
	return nil
}

// experimentPaths expands the invocation path: a directory means every YAML
// document under it, a file means just itself.
func (a *App) experimentPaths() ([]string, error) {
	info, err := os.Stat(a.inv.ExperimentPath)
	if err != nil {
		return nil, fmt.Errorf("experiment path: %w", err)
	}
	if info.IsDir() {
		paths, err := fsutil.FindDocuments(a.inv.ExperimentPath)
		if err != nil {
			return nil, err
		}
		if len(paths) == 0 {
			return nil, fmt.Errorf("no experiment documents under %s", a.inv.ExperimentPath)
		}
		return paths, nil
	}
	return []string{a.inv.ExperimentPath}, nil
}

// orchestratorFor parses all documents an experiment needs and wires an
// orchestrator around them.
func (a *App) orchestratorFor(experimentPath string) (*orchestrator.Orchestrator, error) {
	info, err := os.Stat(experimentPath)
	if err != nil {
		return nil, fmt.Errorf("experiment path: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory; running requires a single experiment file", experimentPath)
	}

	exp, err := document.ParseExperiment(experimentPath)
	if err != nil {
		return nil, err
	}

	manifestPath := exp.ManifestPath
	if !filepath.IsAbs(manifestPath) {
		manifestPath = filepath.Join(a.cfg.ProjectRoot, manifestPath)
	}
	man, err := document.ParseManifest(manifestPath)
	if err != nil {
		return nil, err
	}

	types, err := semtype.Load(a.resolve(a.cfg.TypesPath))
	if err != nil {
		return nil, err
	}

	reg := registry.NewManager(a.cfg.ProjectRoot)
	o, err := orchestrator.New(exp, man, types, reg, a.options())
	if err != nil {
		return nil, err
	}

	a.logger.Debug("orchestrator wired",
		"experiment", exp.ID,
		"city", man.CityName,
		"steps", len(exp.Steps),
	)
	return o, nil
}
