package envelope

import (
	"context"
	"math"
	"time"

	"github.com/verdantlab/greenhouse/internal/ctxlog"
	"github.com/verdantlab/greenhouse/internal/primitive"
	"github.com/verdantlab/greenhouse/internal/registry"
	"github.com/verdantlab/greenhouse/internal/value"
)

// Input is one resolved step input handed to the Builder: where the data is,
// what it claims to be, and its producing envelope when it came from an
// earlier step (nil for manifest datasets).
type Input struct {
	Name         string
	Path         string
	SemanticType string
	Envelope     *Envelope
}

// BuildRequest describes one step execution: which primitive to run, on what,
// and how to stamp the resulting envelope.
type BuildRequest struct {
	PrimitivePath      string
	Version            string
	Inputs             []Input
	OutputPath         string
	OutputFormat       string
	OutputSemanticType string
	OutputDataCategory string
	Params             map[string]value.Dynamic
	Passthrough        bool
}

// BuildResult is the outcome of Run. On success Envelope is the fully merged
// provenance document, not yet written to disk. On failure Error and Message
// carry what the primitive (or the transport) reported.
type BuildResult struct {
	Success  bool
	Envelope *Envelope
	Error    string
	Message  string
}

// Builder executes primitives and assembles their output envelopes: input
// hashing, provenance merging, warning accumulation, metadata reconstruction.
type Builder struct {
	hasher *Hasher
	port   primitive.Port
}

// NewBuilder returns a Builder that hashes per profile and executes through
// port.
func NewBuilder(profile Profile, port primitive.Port) *Builder {
	return &Builder{hasher: NewHasher(profile), port: port}
}

// Run executes one primitive and, on success, builds the output's envelope.
// Inputs are hashed before execution so the records reflect what the
// primitive actually read.
func (b *Builder) Run(ctx context.Context, req BuildRequest) (*BuildResult, error) {
	logger := ctxlog.FromContext(ctx)

	records := make([]InputRecord, 0, len(req.Inputs))
	portInputs := make([]primitive.Input, 0, len(req.Inputs))
	for _, in := range req.Inputs {
		hash, err := b.hasher.HashFile(in.Path)
		if err != nil {
			return nil, err
		}
		records = append(records, InputRecord{Name: in.Name, SemanticType: in.SemanticType, Path: in.Path, Hash: hash})
		portInputs = append(portInputs, primitive.Input{
			Name:         in.Name,
			Path:         in.Path,
			SemanticType: in.SemanticType,
		})
	}

	start := time.Now()
	res, err := b.port.Execute(ctx, req.PrimitivePath, portInputs, req.OutputPath, req.Params)
	if err != nil {
		return nil, err
	}
	if !res.Success {
		return &BuildResult{Success: false, Error: res.Error, Message: res.Message}, nil
	}

	short := registry.ShortName(req.PrimitivePath)
	entry := ProvenanceEntry{
		Primitive:       short,
		Version:         req.Version,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		Params:          req.Params,
		Inputs:          records,
		DurationSeconds: roundSeconds(time.Since(start)),
	}

	reported := make([]Warning, 0, len(res.Warnings))
	for _, w := range res.Warnings {
		reported = append(reported, Warning{Level: w.Level, Primitive: short, Message: w.Message})
	}

	env := &Envelope{
		Data: Data{
			Path:      req.OutputPath,
			Format:    req.OutputFormat,
			Secondary: map[string]string{},
		},
		Metadata:   buildMetadata(res.Metadata, req),
		Provenance: MergeProvenance(req.Inputs, entry),
		Warnings:   MergeWarnings(req.Inputs, reported),
	}

	logger.Debug("envelope assembled",
		"primitive", short,
		"provenance_entries", len(env.Provenance),
		"warnings", len(env.Warnings),
	)
	return &BuildResult{Success: true, Envelope: env}, nil
}

// transport-only response fields that never belong in envelope metadata.
var responseOnlyKeys = []string{"status", "error", "message", "warnings"}

// buildMetadata turns the primitive's response into envelope metadata. For
// ordinary primitives the orchestrator's registry knowledge wins: the
// semantic type and category come from the declared output. Passthrough
// primitives forward data they do not understand, so their self-reported
// fields are kept and declared values only fill gaps.
func buildMetadata(reported map[string]value.Dynamic, req BuildRequest) map[string]value.Dynamic {
	meta := make(map[string]value.Dynamic, len(reported)+2)
	for k, v := range reported {
		meta[k] = v
	}
	for _, k := range responseOnlyKeys {
		delete(meta, k)
	}

	if req.Passthrough {
		setIfAbsent(meta, "semantic_type", req.OutputSemanticType)
		setIfAbsent(meta, "data_category", req.OutputDataCategory)
	} else {
		meta["semantic_type"] = value.String(req.OutputSemanticType)
		meta["data_category"] = value.String(req.OutputDataCategory)
	}
	return meta
}

func setIfAbsent(meta map[string]value.Dynamic, key, val string) {
	if _, ok := meta[key]; !ok && val != "" {
		meta[key] = value.String(val)
	}
}

// roundSeconds keeps durations to millisecond precision in the record.
func roundSeconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*1000) / 1000
}
