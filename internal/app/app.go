// Package app is the composition root: it loads configuration, wires the
// documents, registries, and orchestrator together, and drives the requested
// mode (run, validate, visualize).
package app

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/verdantlab/greenhouse/internal/cli"
	"github.com/verdantlab/greenhouse/internal/config"
	"github.com/verdantlab/greenhouse/internal/envelope"
	"github.com/verdantlab/greenhouse/internal/orchestrator"
)

// App encapsulates the application's dependencies, configuration, and
// lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	cfg    *config.Config
	inv    *cli.Invocation
}

// New builds an App from a parsed invocation: configuration file first,
// CLI overrides on top, then an isolated logger.
func New(outW io.Writer, logW io.Writer, inv *cli.Invocation) (*App, error) {
	cfg, err := config.Load(inv.ConfigPath)
	if err != nil {
		return nil, err
	}

	if inv.Profile != "" {
		cfg.Profile = inv.Profile
	}
	if inv.LogLevel != "" {
		cfg.Log.Level = inv.LogLevel
	}
	if inv.LogFormat != "" {
		cfg.Log.Format = inv.LogFormat
	}
	if _, err := envelope.ParseProfile(cfg.Profile); err != nil {
		return nil, err
	}

	return &App{
		outW:   outW,
		logger: newLogger(cfg.Log.Level, cfg.Log.Format, logW),
		cfg:    cfg,
		inv:    inv,
	}, nil
}

// options maps configuration onto orchestrator options.
func (a *App) options() orchestrator.Options {
	root := a.cfg.ProjectRoot
	return orchestrator.Options{
		ProjectRoot:   root,
		OutputDir:     a.resolve(a.cfg.OutputDir),
		EnvelopeDir:   a.resolve(a.cfg.EnvelopeDir),
		MethodsDir:    a.resolve(a.cfg.MethodsDir),
		LogsDir:       a.resolve(a.cfg.LogsDir),
		Profile:       envelope.Profile(a.cfg.Profile),
		RunnerCommand: a.cfg.Runner.Command,
	}
}

// resolve anchors a relative configured path at the project root.
func (a *App) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(a.cfg.ProjectRoot, path)
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.outW, format, args...)
}
