package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "full", cfg.Profile)
	assert.Equal(t, "output", cfg.OutputDir)
	assert.Equal(t, []string{"Rscript", "--vanilla"}, cfg.Runner.Command)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "greenhouse.yml")
	doc := `
profile: dev
output_dir: /tmp/out
runner:
  command: ["python3", "runner.py"]
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Profile)
	assert.Equal(t, "/tmp/out", cfg.OutputDir)
	assert.Equal(t, []string{"python3", "runner.py"}, cfg.Runner.Command)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "methods", cfg.MethodsDir, "untouched keys keep their defaults")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "greenhouse.yml")
	require.NoError(t, os.WriteFile(path, []byte("profile: dev\n"), 0o644))

	t.Setenv("GREENHOUSE_PROFILE", "test")
	t.Setenv("GREENHOUSE_ENVELOPE_DIR", "/elsewhere/envelopes")
	t.Setenv("GREENHOUSE_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.Profile)
	assert.Equal(t, "/elsewhere/envelopes", cfg.EnvelopeDir)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_Failures(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
		assert.Error(t, err)
	})

	t.Run("invalid profile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "greenhouse.yml")
		require.NoError(t, os.WriteFile(path, []byte("profile: production\n"), 0o644))
		_, err := Load(path)
		assert.ErrorContains(t, err, "unknown hashing profile")
	})

	t.Run("invalid log format", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "greenhouse.yml")
		require.NoError(t, os.WriteFile(path, []byte("log:\n  format: xml\n"), 0o644))
		_, err := Load(path)
		assert.ErrorContains(t, err, "unknown log format")
	})
}
