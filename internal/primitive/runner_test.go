package primitive

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdantlab/greenhouse/internal/value"
)

func TestParseResponse_Success(t *testing.T) {
	stdout := []byte(`{
		"feature_count": 42,
		"crs": "EPSG:32633",
		"warnings": [
			{"level": "info", "message": "reprojected on the fly"},
			{"message": "3 empty geometries dropped"}
		]
	}`)

	res, err := ParseResponse(stdout, true)
	require.NoError(t, err)

	assert.True(t, res.Success)
	require.Len(t, res.Warnings, 2)
	assert.Equal(t, "info", res.Warnings[0].Level)
	assert.Equal(t, "warning", res.Warnings[1].Level, "missing level should default to warning")

	assert.Equal(t, "EPSG:32633", res.Metadata["crs"].AsString())
	assert.Equal(t, int64(42), res.Metadata["feature_count"].ToGo())
}

func TestParseResponse_MinimalResponse(t *testing.T) {
	// The smallest conforming response: an empty warnings array and a clean
	// exit must come back as success.
	res, err := ParseResponse([]byte(`{"warnings": []}`), true)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Empty(t, res.Warnings)
	assert.Empty(t, res.Error)
}

func TestParseResponse_ExitCodeDecidesSuccess(t *testing.T) {
	stdout := []byte(`{"status": "error", "error": "crs_mismatch", "message": "input is EPSG:4326, expected EPSG:32633", "warnings": []}`)

	res, err := ParseResponse(stdout, false)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "crs_mismatch", res.Error)
	assert.Contains(t, res.Message, "EPSG:4326")

	// A status field on a clean exit is metadata, not a verdict.
	res, err = ParseResponse([]byte(`{"status": "error", "warnings": []}`), true)
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestParseResponse_Unparseable(t *testing.T) {
	cases := []struct {
		name   string
		stdout string
	}{
		{"empty", ""},
		{"plain text", "Loading required package: sf\n"},
		{"json array", `["not", "an", "object"]`},
		{"truncated", `{"status": "succ`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseResponse([]byte(tc.stdout), true)
			assert.Error(t, err)
		})
	}
}

// shRunner writes a shell script standing in for a primitive and returns a
// Runner that executes it through sh.
func shRunner(t *testing.T, script string) (*Runner, string) {
	t.Helper()
	root := t.TempDir()
	primPath := filepath.Join(root, "primitive.sh")
	require.NoError(t, os.WriteFile(primPath, []byte(script), 0o755))
	r, err := NewRunner(root, []string{"sh"})
	require.NoError(t, err)
	return r, root
}

func TestRunner_Execute(t *testing.T) {
	ctx := context.Background()
	// The primitive receives its inputs file, the output path, and its
	// params file as arguments; it copies the files aside so the test can
	// inspect what was handed over.
	r, root := shRunner(t, `
cp "$1" inputs_seen.json
cp "$3" params_seen.json
echo '{"feature_count": 7, "warnings": []}'
`)

	inputs := []Input{{Name: "raw", Path: "cities/oslo/parks.geojson", SemanticType: "park_boundaries"}}
	params := map[string]value.Dynamic{"distance_m": value.Int(400)}

	res, err := r.Execute(ctx, filepath.Join(root, "primitive.sh"), inputs, "output/fetch_raw.geojson", params)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Empty(t, res.Error)
	assert.Equal(t, int64(7), res.Metadata["feature_count"].ToGo())

	seen, err := os.ReadFile(filepath.Join(root, "inputs_seen.json"))
	require.NoError(t, err)
	var inputPaths map[string]string
	require.NoError(t, json.Unmarshal(seen, &inputPaths))
	assert.Equal(t, map[string]string{"raw": "cities/oslo/parks.geojson"}, inputPaths)

	seen, err = os.ReadFile(filepath.Join(root, "params_seen.json"))
	require.NoError(t, err)
	var sentParams map[string]any
	require.NoError(t, json.Unmarshal(seen, &sentParams))
	assert.Equal(t, float64(400), sentParams["distance_m"])
}

func TestRunner_Execute_NonZeroExit(t *testing.T) {
	ctx := context.Background()
	r, root := shRunner(t, `
echo '{"error": "crs_mismatch", "message": "wrong projection", "warnings": []}'
exit 3
`)

	res, err := r.Execute(ctx, filepath.Join(root, "primitive.sh"), nil, "out.geojson", nil)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "crs_mismatch", res.Error)
	assert.Equal(t, "wrong projection", res.Message)
}

func TestRunner_Execute_NonZeroWithoutFields(t *testing.T) {
	ctx := context.Background()
	r, root := shRunner(t, `
echo '{"warnings": []}'
echo "segfault in sf::st_buffer" >&2
exit 1
`)

	res, err := r.Execute(ctx, filepath.Join(root, "primitive.sh"), nil, "out.geojson", nil)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "primitive exited non-zero", res.Error)
	assert.Contains(t, res.Message, "segfault")
}

func TestRunner_Execute_UnparseableOutput(t *testing.T) {
	ctx := context.Background()
	r, root := shRunner(t, `echo "Loading required package: sf"`)

	_, err := r.Execute(ctx, filepath.Join(root, "primitive.sh"), nil, "out.geojson", nil)
	var execErr *ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Contains(t, execErr.Reason, "unparseable")
}
