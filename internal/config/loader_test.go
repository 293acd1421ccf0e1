package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightclass/knowledged/internal/tenant"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadWithFileDefaults(t *testing.T) {
	cfg, err := LoadWithFile("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 512, cfg.Embeddings.Dimensions)
	assert.Equal(t, tenant.ModeSingle, cfg.Router.Mode)
	assert.Equal(t, 20, cfg.Knowledge.BatchSize)
}

func TestLoadWithFileYAML(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
logging:
  level: debug
embeddings:
  base_url: http://embedder:8081
  dimensions: 512
router:
  mode: multi
  endpoints:
    default:
      host: qdrant-default
    eu:
      host: qdrant-eu
  assignments:
    springfield: eu
`)

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "http://embedder:8081", cfg.Embeddings.BaseURL)
	assert.Equal(t, tenant.ModeMulti, cfg.Router.Mode)
	assert.Equal(t, "qdrant-eu", cfg.Router.Endpoints["eu"].Host)
	assert.Equal(t, "eu", cfg.Router.Assignments["springfield"])
}

func TestLoadWithFileEnvOverride(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
`)
	t.Setenv("KNOWLEDGED_SERVER_PORT", "7070")
	t.Setenv("KNOWLEDGED_EMBEDDINGS_BASE_URL", "http://env-embedder:8081")

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "http://env-embedder:8081", cfg.Embeddings.BaseURL)
}

func TestLoadWithFileMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadWithFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadWithFileInvalidValues(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: shouting
`)
	_, err := LoadWithFile(path)
	assert.Error(t, err)
}
