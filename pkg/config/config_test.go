package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"freelaw.courtlistener.cl-update-index/pkg/cache"
	"freelaw.courtlistener.cl-update-index/pkg/dispatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cl-update-index.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, EXECUTOR_LOCAL, cfg.Executor.Type)
	assert.Equal(t, dispatch.DEFAULT_BUNDLE_SIZE, cfg.Dispatch.BundleSize)
	assert.Equal(t, dispatch.DEFAULT_CHUNK_SIZE, cfg.Dispatch.ChunkSize)
	assert.Equal(t, dispatch.DEFAULT_WAVE_TIMEOUT, cfg.Dispatch.Timeout())
	assert.Equal(t, cache.CACHE_LOCAL, cfg.Executor.Results.Type)
	assert.Equal(t, 500*time.Millisecond, cfg.Executor.Poll())
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
index:
  engine: elasticsearch
  url: http://localhost:9200/default
  urls:
    audio: http://localhost:9200/audio
    people: http://localhost:9200/people
store:
  driver: mongodb
  dsn: mongodb://localhost:27017
  database_name: courtlistener
dispatch:
  bundle_size: 100
  chunk_size: 10
  wave_timeout: 120
executor:
  type: broker
  concurrency: 8
  results:
    type: redis
    addr: localhost:6379
pipeline:
  storage_provider: redis
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "elasticsearch", cfg.Index.Engine)
	assert.Equal(t, "http://localhost:9200/audio", cfg.Index.URLFor("audio", ""))
	assert.Equal(t, "http://localhost:9200/default", cfg.Index.URLFor("opinions", ""))
	assert.Equal(t, "mongodb", cfg.Store.Driver)
	assert.Equal(t, "courtlistener", cfg.Store.DatabaseName)
	assert.Equal(t, 100, cfg.Dispatch.BundleSize)
	assert.Equal(t, 2*time.Minute, cfg.Dispatch.Timeout())
	assert.Equal(t, EXECUTOR_BROKER, cfg.Executor.Type)
	assert.Equal(t, 8, cfg.Executor.Concurrency)
	assert.Equal(t, "localhost:6379", cfg.Executor.Results.Addr)

	// untouched keys keep their defaults
	assert.Equal(t, DEFAULT_JOB, cfg.Monitoring.Job)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "index:\n  url: http://from-file/solr/core\n")
	t.Setenv("CLU_INDEX_URL", "http://from-env/solr/core")
	t.Setenv("CLU_STORE_DSN", "file:test.db")
	t.Setenv("CLU_CONCURRENCY", "16")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://from-env/solr/core", cfg.Index.URL)
	assert.Equal(t, "file:test.db", cfg.Store.DSN)
	assert.Equal(t, 16, cfg.Executor.Concurrency)
}

func TestDefaultsAreNotShared(t *testing.T) {
	path := writeConfig(t, "index:\n  urls:\n    audio: http://a\n")
	_, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, DefaultConfigYaml.Index.URLs)
}

func TestInvalidConfig(t *testing.T) {
	for name, content := range map[string]string{
		"yaml":     "index: [unclosed",
		"executor": "executor:\n  type: celery\n",
		"bundle":   "dispatch:\n  bundle_size: -1\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			assert.Error(t, err)
		})
	}

	t.Setenv("CLU_CONCURRENCY", "many")
	_, err := Load(writeConfig(t, ""))
	assert.Error(t, err)
}
