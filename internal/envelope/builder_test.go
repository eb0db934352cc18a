package envelope

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdantlab/greenhouse/internal/primitive"
	"github.com/verdantlab/greenhouse/internal/value"
)

// scriptedPort returns a canned result for every invocation and records what
// it was called with.
type scriptedPort struct {
	result    *primitive.Result
	err       error
	gotPath   string
	gotInputs []primitive.Input
	gotParams map[string]value.Dynamic
}

func (p *scriptedPort) Execute(_ context.Context, primitivePath string, inputs []primitive.Input, _ string, params map[string]value.Dynamic) (*primitive.Result, error) {
	p.gotPath = primitivePath
	p.gotInputs = inputs
	p.gotParams = params
	return p.result, p.err
}

func TestBuilder_Run_Success(t *testing.T) {
	ctx := context.Background()
	dataPath := filepath.Join(t.TempDir(), "parks.geojson")
	require.NoError(t, os.WriteFile(dataPath, []byte("{}"), 0o644))

	port := &scriptedPort{result: &primitive.Result{
		Success: true,
		Metadata: map[string]value.Dynamic{
			"status":        value.String("success"),
			"feature_count": value.Int(9),
			"semantic_type": value.String("self_reported"),
		},
		Warnings: []primitive.ReportedWarning{{Level: "info", Message: "reprojected"}},
	}}

	b := NewBuilder(ProfileFull, port)
	res, err := b.Run(ctx, BuildRequest{
		PrimitivePath:      "analysis/geometry/generate_buffers.R",
		Version:            "2.1.0",
		Inputs:             []Input{{Name: "parks", Path: dataPath, SemanticType: "park_boundaries"}},
		OutputPath:         "output/zones.geojson",
		OutputFormat:       "geojson",
		OutputSemanticType: "park_buffers",
		OutputDataCategory: "vector",
		Params:             map[string]value.Dynamic{"distance_m": value.Int(400)},
	})
	require.NoError(t, err)
	require.True(t, res.Success)

	env := res.Envelope
	require.Len(t, env.Provenance, 1)
	entry := env.Provenance[0]
	assert.Equal(t, "generate_buffers", entry.Primitive, "provenance uses the short name")
	assert.Equal(t, "2.1.0", entry.Version)
	require.Len(t, entry.Inputs, 1)
	assert.Equal(t, "park_boundaries", entry.Inputs[0].SemanticType)
	assert.Equal(t, "full_file", entry.Inputs[0].Hash.Method)

	// Declared output identity overrides the primitive's self-report, and
	// transport fields never leak into metadata.
	assert.Equal(t, "park_buffers", env.SemanticType())
	assert.Equal(t, "vector", env.DataCategory())
	_, hasStatus := env.Metadata["status"]
	assert.False(t, hasStatus)
	assert.True(t, env.Metadata["feature_count"].Equal(value.Int(9)))

	require.Len(t, env.Warnings, 1)
	assert.Equal(t, "generate_buffers", env.Warnings[0].Primitive)

	assert.Equal(t, "park_boundaries", port.gotInputs[0].SemanticType)
}

func TestBuilder_Run_PassthroughKeepsSelfReport(t *testing.T) {
	ctx := context.Background()

	port := &scriptedPort{result: &primitive.Result{
		Success: true,
		Metadata: map[string]value.Dynamic{
			"semantic_type": value.String("whatever_came_in"),
		},
	}}

	b := NewBuilder(ProfileTest, port)
	res, err := b.Run(ctx, BuildRequest{
		PrimitivePath:      "prep/cache/stash.R",
		Version:            "1.0.0",
		OutputPath:         "output/stash.geojson",
		OutputFormat:       "geojson",
		OutputSemanticType: "declared_type",
		OutputDataCategory: "vector",
		Passthrough:        true,
	})
	require.NoError(t, err)
	require.True(t, res.Success)

	assert.Equal(t, "whatever_came_in", res.Envelope.SemanticType(),
		"a passthrough primitive's self-reported type is preserved")
	assert.Equal(t, "vector", res.Envelope.DataCategory(),
		"declared values still fill gaps the primitive left")
}

func TestBuilder_Run_PrimitiveFailure(t *testing.T) {
	ctx := context.Background()

	port := &scriptedPort{result: &primitive.Result{
		Success: false,
		Error:   "crs_mismatch",
		Message: "expected EPSG:32633",
	}}

	b := NewBuilder(ProfileTest, port)
	res, err := b.Run(ctx, BuildRequest{
		PrimitivePath: "analysis/geometry/generate_buffers.R",
		Version:       "2.1.0",
		OutputPath:    "output/zones.geojson",
		OutputFormat:  "geojson",
	})
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Nil(t, res.Envelope)
	assert.Equal(t, "crs_mismatch", res.Error)
}

func TestBuilder_Run_HashFailureAbortsBeforeExecution(t *testing.T) {
	ctx := context.Background()
	port := &scriptedPort{result: &primitive.Result{Success: true}}

	b := NewBuilder(ProfileFull, port)
	_, err := b.Run(ctx, BuildRequest{
		PrimitivePath: "analysis/geometry/generate_buffers.R",
		Inputs:        []Input{{Name: "parks", Path: filepath.Join(t.TempDir(), "absent.geojson")}},
	})
	require.Error(t, err)
	assert.Empty(t, port.gotPath, "the primitive must not run when input hashing fails")
}
