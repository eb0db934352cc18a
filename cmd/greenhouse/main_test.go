package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdantlab/greenhouse/internal/cli"
)

func TestRun_NoArgsPrintsUsage(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(&out, nil))
	assert.Contains(t, out.String(), "Usage:")
}

func TestRun_InvalidFlagValue(t *testing.T) {
	var out bytes.Buffer
	err := run(&out, []string{"-log-format", "xml", "exp.yml"})

	exitErr, ok := err.(*cli.ExitError)
	require.True(t, ok)
	assert.Equal(t, 2, exitErr.Code)
}

func TestRun_MissingConfigFile(t *testing.T) {
	var out bytes.Buffer
	err := run(&out, []string{"-config", "does/not/exist.yml", "exp.yml"})
	assert.Error(t, err)
}
