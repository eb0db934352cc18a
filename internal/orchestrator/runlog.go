package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/verdantlab/greenhouse/internal/ctxlog"
)

// runLog is the YAML summary persisted for every run, successful or not.
// It is the human-facing record; envelopes carry the machine-facing one.
type runLog struct {
	RunID      string       `yaml:"run_id"`
	Experiment string       `yaml:"experiment"`
	Name       string       `yaml:"name"`
	City       string       `yaml:"city"`
	Profile    string       `yaml:"profile"`
	StartedAt  string       `yaml:"started_at"`
	FinishedAt string       `yaml:"finished_at"`
	Success    bool         `yaml:"success"`
	Error      string       `yaml:"error,omitempty"`
	FailedStep string       `yaml:"failed_step,omitempty"`
	Warnings   []string     `yaml:"validation_warnings,omitempty"`
	Steps      []runLogStep `yaml:"steps"`
	Totals     runLogTotals `yaml:"totals"`
}

type runLogStep struct {
	ID              string            `yaml:"id"`
	Primitive       string            `yaml:"primitive"`
	Success         bool              `yaml:"success"`
	DurationSeconds float64           `yaml:"duration_seconds"`
	Warnings        int               `yaml:"warnings"`
	Outputs         map[string]string `yaml:"outputs,omitempty"`
	Error           string            `yaml:"error,omitempty"`
}

type runLogTotals struct {
	Steps          int `yaml:"steps"`
	CompletedSteps int `yaml:"completed_steps"`
	Warnings       int `yaml:"warnings"`
}

// persistRunLog writes the run log under LogsDir. Failing to write it is
// logged but never fails the run: the log is a record, not a dependency.
func (o *Orchestrator) persistRunLog(ctx context.Context, res *Result, started time.Time) {
	logger := ctxlog.FromContext(ctx)

	log := runLog{
		RunID:      res.RunID,
		Experiment: o.exp.ID,
		Name:       o.exp.Name,
		City:       o.exp.City,
		Profile:    string(o.opts.Profile),
		StartedAt:  started.Format(time.RFC3339),
		FinishedAt: time.Now().UTC().Format(time.RFC3339),
		Success:    res.Success,
		Error:      res.Error,
		FailedStep: res.FailedStep,
		Warnings:   res.Warnings,
		Totals: runLogTotals{
			Steps:          len(o.exp.Steps),
			CompletedSteps: len(res.CompletedSteps),
		},
	}
	for _, sr := range res.StepResults {
		log.Steps = append(log.Steps, runLogStep{
			ID:              sr.StepID,
			Primitive:       sr.Primitive,
			Success:         sr.Success,
			DurationSeconds: sr.DurationSeconds,
			Warnings:        sr.Warnings,
			Outputs:         sr.Outputs,
			Error:           sr.Error,
		})
		log.Totals.Warnings += sr.Warnings
	}

	payload, err := yaml.Marshal(&log)
	if err != nil {
		logger.Error("encoding run log", "run_id", res.RunID, "error", err)
		return
	}

	dir := filepath.Join(o.opts.LogsDir, "runs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Error("creating run log dir", "dir", dir, "error", err)
		return
	}

	path := filepath.Join(dir, res.RunID+".yml")
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		logger.Error("writing run log", "path", path, "error", err)
		return
	}
	logger.Debug("run log written", "path", path)
}
