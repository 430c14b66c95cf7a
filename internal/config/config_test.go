package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const minimalConfig = `{
	"port": 8080,
	"database": {"host": "localhost", "user": "papers", "dbname": "papers"},
	"ai": {
		"providers": [{"name": "gemini", "type": "gemini", "data": {"api_key": "k"}}],
		"expand": [{"provider": "gemini", "model": "gemini-2.0-flash-lite-001"}],
		"embed": [{"provider": "gemini", "model": "text-embedding-004"}]
	}
}`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, 5432, cfg.Database.Port)
	require.Equal(t, "info", cfg.LogConfig.Level)
	require.Equal(t, 768, cfg.AI.Dimension)
	require.Equal(t, 9, cfg.Search.VariantCount)
	require.Equal(t, 20, cfg.Search.WorkshopLimit)
	require.Equal(t, 50, cfg.Search.PaperLimit)
	require.InDelta(t, 0.6, cfg.Search.WorkshopThreshold, 1e-9)
	require.InDelta(t, 0.5, cfg.Search.PaperThreshold, 1e-9)
	require.Equal(t, 20, cfg.Search.MaxResults)
	require.Equal(t, "local", cfg.FileStore.Type)
	require.False(t, cfg.Tracing.Enabled)
	require.InDelta(t, 1.0, cfg.Tracing.SampleRatio, 1e-9)
	require.Equal(t, "gemini", cfg.AI.Providers[0].Name)
	require.Equal(t, "k", cfg.AI.Providers[0].Data["api_key"])
}

func TestLoadEnvOverridesSecrets(t *testing.T) {
	t.Setenv("PAPERSEARCH_ADMIN_JWT_SECRET", "from-env")
	t.Setenv("PAPERSEARCH_DATABASE_PASSWORD", "pw")
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.Admin.JWTSecret)
	require.Equal(t, "pw", cfg.Database.Password)
}

func TestLoadRejectsMixedEmbeddingModels(t *testing.T) {
	body := `{
		"port": 8080,
		"database": {"dsn": "postgres://x"},
		"ai": {
			"providers": [{"name": "gemini", "type": "gemini"}],
			"embed": [
				{"provider": "gemini", "model": "text-embedding-004"},
				{"provider": "gemini", "model": "gemini-embedding-001"}
			]
		}
	}`
	_, err := Load(writeConfig(t, body))
	require.Error(t, err)
}

func TestLoadRequiresPort(t *testing.T) {
	_, err := Load(writeConfig(t, `{"database": {"dsn": "postgres://x"}}`))
	require.Error(t, err)
}
