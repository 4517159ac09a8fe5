// Package testutil holds helpers shared by package tests.
package testutil

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Update rewrites golden files instead of comparing against them.
var Update = flag.Bool("update", false, "update golden files")

// GoldenPath is testdata/<name>.golden relative to the calling package.
func GoldenPath(name string) string {
	return filepath.Join("testdata", name+".golden")
}

// CompareWithGolden checks got byte for byte against testdata/<name>.golden.
// Run the tests with -update to record got as the new golden file.
func CompareWithGolden(t *testing.T, name string, got []byte) {
	t.Helper()
	path := GoldenPath(name)

	if *Update {
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, got, 0o644), "writing %s", path)
		return
	}

	want, err := os.ReadFile(path)
	require.NoError(t, err, "reading %s (run with -update to create it)", path)
	assert.Equal(t, string(want), string(got), "golden mismatch for %s", name)
}

// CompareFileWithGolden reads the artifact at path and compares it with
// testdata/<name>.golden.
func CompareFileWithGolden(t *testing.T, name, path string) {
	t.Helper()
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	CompareWithGolden(t, name, got)
}
