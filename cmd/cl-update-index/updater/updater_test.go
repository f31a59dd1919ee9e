package updater

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"freelaw.courtlistener.cl-update-index/pkg/records/sqlstore"
	"freelaw.courtlistener.cl-update-index/pkg/search"
	"freelaw.courtlistener.cl-update-index/pkg/search/bleve"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type env struct {
	config string
	index  string
	stderr bytes.Buffer
}

// setup creates a sqlite store with n audio files and a config pointing at an on-disk bleve index
func setup(t *testing.T, n int) *env {
	t.Helper()
	dir := t.TempDir()
	dsn := filepath.Join(dir, "courtlistener.db")

	db, err := sql.Open(sqlstore.DRIVER_SQLITE, dsn)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, sqlstore.CreateSchema(context.Background(), db))
	for i := 1; i <= n; i++ {
		_, err := db.Exec(`INSERT INTO audio_audio (id, date_created, case_name) VALUES (?, ?, ?)`,
			i, fmt.Sprintf("2020-01-%02d 00:00:00", i), fmt.Sprintf("Case %d", i))
		require.NoError(t, err)
	}

	e := &env{
		config: filepath.Join(dir, "cl-update-index.yaml"),
		index:  "bleve://" + filepath.Join(dir, "audio.bleve"),
	}
	yml := fmt.Sprintf(`
index:
  urls:
    audio: %s
store:
  driver: sqlite
  dsn: %s
dispatch:
  bundle_size: 2
  chunk_size: 2
`, e.index, dsn)
	require.NoError(t, os.WriteFile(e.config, []byte(yml), 0o600))
	return e
}

func (e *env) run(args ...string) int {
	argv := append([]string{"--config", e.config, "--verbosity", "0", "--noinput"}, args...)
	return Run(argv, Streams{In: strings.NewReader(""), Out: &bytes.Buffer{}, Err: &e.stderr})
}

func (e *env) count(t *testing.T) int {
	t.Helper()
	idx, err := bleve.Open(context.Background(), e.index, search.Config{})
	require.NoError(t, err)
	defer bleve.CloseAll()
	n, err := idx.Count(context.Background(), search.All())
	require.NoError(t, err)
	return n
}

func TestUpdateEverything(t *testing.T) {
	e := setup(t, 5)
	require.Equal(t, EXIT_SUCCESS, e.run("--type", "audio", "--update", "--everything", "--do-commit"))
	assert.Equal(t, 5, e.count(t))
}

func TestUpdateThenDeleteItems(t *testing.T) {
	e := setup(t, 3)
	require.Equal(t, EXIT_SUCCESS, e.run("--type", "audio", "--update", "--items", "1", "2"))
	assert.Equal(t, 2, e.count(t))

	require.Equal(t, EXIT_SUCCESS, e.run("--type", "audio", "--delete", "--items", "2", "--do-commit"))
	assert.Equal(t, 1, e.count(t))
}

func TestDeleteEverything(t *testing.T) {
	e := setup(t, 4)
	require.Equal(t, EXIT_SUCCESS, e.run("--type", "audio", "--update", "--everything"))
	require.Equal(t, EXIT_SUCCESS, e.run("--type", "audio", "--delete", "--everything"))
	assert.Equal(t, 0, e.count(t))
}

func TestUsageErrorsExitOne(t *testing.T) {
	for _, args := range [][]string{
		{"--type", "audio", "--update", "--query", "{'court_id': 'haw'}"},
		{"--type", "audio", "--update", "--delete", "--everything"},
		{"--update", "--everything"},
		{"--type", "audio"},
		{"--type", "audio", "--update", "--items", "one"},
	} {
		e := setup(t, 1)
		assert.Equal(t, EXIT_FAILURE, e.run(args...), args)
		assert.Contains(t, e.stderr.String(), "error:", args)
	}
}

func TestUpdateByQueryIsNotImplemented(t *testing.T) {
	e := setup(t, 1)
	assert.Equal(t, EXIT_FAILURE, e.run("--type", "audio", "--update", "--query", "{'court_id': 'haw'}"))
	assert.Contains(t, e.stderr.String(), "Updating by query not implemented.")
}

func TestStoreFailureExitsOne(t *testing.T) {
	e := setup(t, 1)
	t.Setenv("CLU_STORE_DRIVER", "oracle")
	assert.Equal(t, EXIT_FAILURE, e.run("--type", "audio", "--update", "--everything"))
}

func TestOptimizeEverythingNeedsNoStore(t *testing.T) {
	e := setup(t, 0)
	t.Setenv("CLU_INDEX_URL", e.index)
	t.Setenv("CLU_STORE_DRIVER", "oracle")
	assert.Equal(t, EXIT_SUCCESS, e.run("--optimize-everything"))
}
