package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindDocuments(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "nested"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".hidden"), 0o755))

	for _, name := range []string{
		"b.yml",
		"a.yaml",
		filepath.Join("nested", "c.yml"),
		filepath.Join(".hidden", "skipped.yml"),
		"readme.md",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte("x: 1\n"), 0o644))
	}

	files, err := FindDocuments(root)
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(root, "a.yaml"),
		filepath.Join(root, "b.yml"),
		filepath.Join(root, "nested", "c.yml"),
	}, files, "sorted, hidden dirs skipped, non-YAML ignored")
}

func TestFindDocuments_MissingRoot(t *testing.T) {
	_, err := FindDocuments(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}
