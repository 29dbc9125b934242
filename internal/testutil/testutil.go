// Package testutil provides shared test helpers for creating config files
// and data directories.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// SetupTestConfig creates the data directories the pipeline needs and a
// config file pointing at them. Returns the path to the generated config
// file.
func SetupTestConfig(t *testing.T, tmpDir string) string {
	t.Helper()

	dirs := []string{"scratch", "cache", "exports"}
	for _, d := range dirs {
		require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, d), 0755))
	}

	configContent := fmt.Sprintf(`pipeline:
  scratch_directory: %s
cache:
  directory: %s
exports:
  directory: %s
`,
		filepath.Join(tmpDir, "scratch"),
		filepath.Join(tmpDir, "cache"),
		filepath.Join(tmpDir, "exports"),
	)

	configPath := filepath.Join(tmpDir, "config.yml")
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))
	return configPath
}
