package pipeline_test

import (
	"os"
	"path/filepath"
	"testing"

	"freelaw.courtlistener.cl-update-index/pkg/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsWithoutFile(t *testing.T) {
	yml, err := pipeline.LoadPipelineConfigFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, pipeline.PROVIDER_EMBEDDED, yml.Pipeline.StorageProvider)
	require.NotNil(t, yml.Pipeline.Producer.Writer)
	require.NotNil(t, yml.Pipeline.Consumer.Reader)
	assert.Equal(t, *yml.Pipeline.Producer.Writer.Path, *yml.Pipeline.Consumer.Reader.Path)
}

func TestLoadFromFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
index:
  url: http://127.0.0.1:8983/solr/collection1
pipeline:
  storage_provider: redis
  producer:
    writer:
      host: localhost:6379
      channel: tasks
      compress: true
  consumer:
    reader:
      host: localhost:6379
      channel: tasks
      operation_timeout: 2
`), 0o600))

	yml, err := pipeline.LoadPipelineConfigFromFile(file)
	require.NoError(t, err)
	assert.Equal(t, pipeline.PROVIDER_REDIS, yml.Pipeline.StorageProvider)
	assert.Equal(t, "localhost:6379", *yml.Pipeline.Producer.Writer.Host)
	assert.True(t, yml.Pipeline.Producer.Writer.Compress)
	assert.Equal(t, 2, yml.Pipeline.Consumer.Reader.OperationTimeout)
}

func TestInvalidYaml(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte("pipeline: [unterminated"), 0o600))
	_, err := pipeline.LoadPipelineConfigFromFile(file)
	assert.Error(t, err)
}
