package envelope

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdantlab/greenhouse/internal/value"
)

// dynamicComparer lets go-cmp compare Dynamic values by semantic equality.
var dynamicComparer = cmp.Comparer(func(a, b value.Dynamic) bool {
	return a.Equal(b)
})

func sampleEnvelope() *Envelope {
	return &Envelope{
		Data: Data{
			Path:      "output/parks_zones.geojson",
			Format:    "geojson",
			Secondary: map[string]string{},
		},
		Metadata: map[string]value.Dynamic{
			"semantic_type": value.String("park_buffers"),
			"data_category": value.String("vector"),
			"feature_count": value.Int(17),
		},
		Provenance: []ProvenanceEntry{{
			Primitive: "generate_buffers",
			Version:   "2.1.0",
			Timestamp: "2026-08-25T10:00:00Z",
			Params: map[string]value.Dynamic{
				"distance_m": value.Int(400),
			},
			Inputs: []InputRecord{{
				Name:         "parks",
				SemanticType: "park_boundaries",
				Path:         ".data/parks.geojson",
				Hash:         HashInfo{Method: "skipped", Reason: "test profile"},
			}},
			DurationSeconds: 1.234,
		}},
		Warnings: []Warning{{
			Level:     "info",
			Primitive: "generate_buffers",
			Message:   "reprojected on the fly",
		}},
	}
}

func TestWriteRead_RoundTrip(t *testing.T) {
	ctx := context.Background()
	cache := &SchemaCache{}
	path := filepath.Join(t.TempDir(), "envelopes", "parks_zones.envelope.json")

	original := sampleEnvelope()
	require.NoError(t, Write(original, path, cache))

	loaded, err := Read(ctx, path, cache)
	require.NoError(t, err)

	if diff := cmp.Diff(original, loaded, dynamicComparer); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "park_buffers", loaded.SemanticType())
	assert.Equal(t, "vector", loaded.DataCategory())
}

func TestWrite_InvalidEnvelopeRejected(t *testing.T) {
	cache := &SchemaCache{}
	path := filepath.Join(t.TempDir(), "bad.envelope.json")

	env := sampleEnvelope()
	env.Warnings[0].Level = "fatal" // not in the schema's enum

	err := Write(env, path, cache)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.NotEmpty(t, verr.Problems)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "an invalid envelope must not reach disk")
}

func TestRead_InvalidEnvelopeStillLoads(t *testing.T) {
	ctx := context.Background()
	cache := &SchemaCache{}
	path := filepath.Join(t.TempDir(), "legacy.envelope.json")

	// A legacy document missing required sections: warn, do not refuse.
	legacy := `{"data": {"path": "x.geojson", "format": "geojson"}, "metadata": {}}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	env, err := Read(ctx, path, cache)
	require.NoError(t, err)
	assert.Equal(t, "x.geojson", env.Data.Path)
}

func TestRead_NotJSON(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "garbage.envelope.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	_, err := Read(ctx, path, &SchemaCache{})
	assert.Error(t, err)
}
