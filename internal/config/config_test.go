package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigLoader_Load(t *testing.T) {
	t.Run("missing config file falls back to defaults", func(t *testing.T) {
		loader, err := NewConfigLoader("")
		require.NoError(t, err)

		cfg, err := loader.Load()
		require.NoError(t, err)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)
		assert.Equal(t, "pdftotext", cfg.Pipeline.ExtractorCommand)
		assert.Equal(t, 4000, cfg.Pipeline.MaxChunkSize)
	})

	t.Run("reads values from a yaml file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yml")
		require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
database:
  host: db.internal
  database: kardu_prod
pipeline:
  max_chunk_size: 2500
exports:
  directory: /var/lib/kardu/exports
`), 0o644))

		loader, err := NewConfigLoader(path)
		require.NoError(t, err)

		cfg, err := loader.Load()
		require.NoError(t, err)
		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, "db.internal", cfg.Database.Host)
		assert.Equal(t, "kardu_prod", cfg.Database.Database)
		assert.Equal(t, 2500, cfg.Pipeline.MaxChunkSize)
		assert.Equal(t, "/var/lib/kardu/exports", cfg.Exports.Directory)
		// Untouched sections keep their defaults.
		assert.Equal(t, 3306, cfg.Database.Port)
	})

	t.Run("environment variables override secrets", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "sk-test-key")
		t.Setenv("DB_PASSWORD", "hunter2")

		loader, err := NewConfigLoader("")
		require.NoError(t, err)

		cfg, err := loader.Load()
		require.NoError(t, err)
		assert.Equal(t, "sk-test-key", cfg.OpenAI.APIKey)
		assert.Equal(t, "hunter2", cfg.Database.Password)
	})

	t.Run("rejects values outside validation bounds", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yml")
		require.NoError(t, os.WriteFile(path, []byte(`
pipeline:
  max_chunk_size: 10
`), 0o644))

		loader, err := NewConfigLoader(path)
		require.NoError(t, err)

		_, err = loader.Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_chunk_size")
	})
}
