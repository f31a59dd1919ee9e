package cli

import (
	"testing"
	"time"

	"freelaw.courtlistener.cl-update-index/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	a, err := Parse([]string{"--type", "people", "--update", "--items", "4", "5", "--noinput", "--solr-url", "http://127.0.0.1:8983/solr/swap_core"})
	require.NoError(t, err)
	assert.Equal(t, "people", a.Type)
	assert.True(t, a.Update)
	assert.Equal(t, []int64{4, 5}, a.Items)
	assert.True(t, a.NoInput)
	assert.Equal(t, "http://127.0.0.1:8983/solr/swap_core", a.SolrURL)
	assert.Equal(t, 1, a.Verbosity)
	assert.Equal(t, "configs/cl-update-index.yaml", a.Config)
}

func TestParseRejectsUnknownFlags(t *testing.T) {
	_, err := Parse([]string{"--type", "audio", "--frobnicate"})
	assert.True(t, types.IsUsageError(err))
}

func TestEnvFallback(t *testing.T) {
	t.Setenv("CLU_TYPE", "recap")
	t.Setenv("CLU_NOINPUT", "true")
	a, err := Parse([]string{"--delete", "--everything"})
	require.NoError(t, err)
	assert.Equal(t, "recap", a.Type)
	assert.True(t, a.NoInput)
}

func TestValidate(t *testing.T) {
	for name, tc := range map[string]struct {
		args Arguments
		ok   bool
	}{
		"update everything":     {Arguments{Type: "audio", Update: true, Everything: true}, true},
		"commit only":           {Arguments{Type: "audio", DoCommit: true}, true},
		"optimize everything":   {Arguments{OptimizeEverything: true}, true},
		"update and delete":     {Arguments{Type: "audio", Update: true, Delete: true}, false},
		"two scopes":            {Arguments{Type: "audio", Delete: true, Everything: true, Query: "{'a': 1}"}, false},
		"missing type":          {Arguments{Delete: true, Everything: true}, false},
		"bad datetime":          {Arguments{Type: "audio", Update: true, Datetime: "01/02/2020"}, false},
		"datetime with seconds": {Arguments{Type: "audio", Update: true, Datetime: "2020-01-02 03:04:05"}, true},
	} {
		t.Run(name, func(t *testing.T) {
			err := tc.args.Validate()
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, types.IsUsageError(err), "%v", err)
		})
	}
}

func TestParseDatetime(t *testing.T) {
	ts, err := ParseDatetime("2021-03-04")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2021, 3, 4, 0, 0, 0, 0, time.UTC), ts)

	ts, err = ParseDatetime(" 2021-03-04 05:06:07 ")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC), ts)

	_, err = ParseDatetime("2021-13-01")
	assert.Error(t, err)
}

func TestParseWorker(t *testing.T) {
	a, err := ParseWorker([]string{"--concurrency", "8", "--port", "9090"})
	require.NoError(t, err)
	assert.Equal(t, 8, a.Concurrency)
	assert.Equal(t, 9090, a.MonitoringPort)

	_, err = ParseWorker([]string{"--concurrency", "-1"})
	assert.True(t, types.IsUsageError(err))
}
