package solr_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"freelaw.courtlistener.cl-update-index/pkg/search"
	"freelaw.courtlistener.cl-update-index/pkg/search/solr"
	"freelaw.courtlistener.cl-update-index/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSolr records the update commands posted to a single core
type fakeSolr struct {
	mu           sync.Mutex
	updates      []json.RawMessage
	queries      []string
	numFound     int
	schemaStatus int
	unavailable  int
}

func (f *fakeSolr) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/solr/core/schema", func(w http.ResponseWriter, r *http.Request) {
		if f.schemaStatus != 0 {
			w.WriteHeader(f.schemaStatus)
			_, _ = w.Write([]byte(`{"error":{"msg":"no such core","code":404}}`))
			return
		}
		_, _ = w.Write([]byte(`{"schema":{"name":"opinions","uniqueKey":"id","fields":[{"name":"id","type":"string"}]}}`))
	})
	mux.HandleFunc("/solr/core/update", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.unavailable > 0 {
			f.unavailable--
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		f.updates = append(f.updates, body)
		_, _ = w.Write([]byte(`{"responseHeader":{"status":0,"QTime":1}}`))
	})
	mux.HandleFunc("/solr/core/select", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		assert.Equal(t, "0", r.URL.Query().Get("rows"))
		f.queries = append(f.queries, r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(`{"response":{"numFound":` + jsonInt(f.numFound) + `,"start":0,"docs":[]}}`))
	})
	return mux
}

func jsonInt(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func open(t *testing.T, f *fakeSolr) search.Index {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	idx, err := solr.Open(context.Background(), srv.URL+"/solr/core", search.Config{MaxRetries: 1, Delay: 0})
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestOpenLoadsSchema(t *testing.T) {
	idx := open(t, &fakeSolr{})
	s := idx.(*solr.Index).Schema()
	assert.Equal(t, "opinions", s.Name)
	assert.Equal(t, "id", s.UniqueKey)
}

func TestOpenSchemaFailure(t *testing.T) {
	f := &fakeSolr{schemaStatus: http.StatusNotFound}
	srv := httptest.NewServer(f.handler(t))
	defer srv.Close()

	_, err := solr.Open(context.Background(), srv.URL+"/solr/core", search.Config{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrSchemaLoad))
}

func TestOpenUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := solr.Open(context.Background(), addr+"/solr/core", search.Config{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrSchemaLoad))
	assert.True(t, errors.Is(err, types.ErrIndexUnavailable))
}

func TestAddPostsDocumentArray(t *testing.T) {
	f := &fakeSolr{}
	idx := open(t, f)

	err := idx.Add(context.Background(), []search.Document{{"id": int64(1), "case_name": "Roe"}, {"id": int64(2)}})
	require.NoError(t, err)
	require.Len(t, f.updates, 1)

	var docs []map[string]interface{}
	require.NoError(t, json.Unmarshal(f.updates[0], &docs))
	assert.Len(t, docs, 2)
	assert.Equal(t, "Roe", docs[0]["case_name"])
}

func TestDeleteCommands(t *testing.T) {
	f := &fakeSolr{}
	idx := open(t, f)
	ctx := context.Background()

	require.NoError(t, idx.Delete(ctx, []int64{3, 4}))
	q, err := search.ParseQuery(`{'court_id': 'haw'}`)
	require.NoError(t, err)
	require.NoError(t, idx.DeleteByQuery(ctx, q))
	require.NoError(t, idx.DeleteAll(ctx))
	require.NoError(t, idx.Commit(ctx))
	require.NoError(t, idx.Optimize(ctx))

	require.Len(t, f.updates, 5)
	assert.JSONEq(t, `{"delete":["3","4"]}`, string(f.updates[0]))
	assert.JSONEq(t, `{"delete":{"query":"court_id:\"haw\""}}`, string(f.updates[1]))
	assert.JSONEq(t, `{"delete":{"query":"*:*"}}`, string(f.updates[2]))
	assert.JSONEq(t, `{"commit":{}}`, string(f.updates[3]))
	assert.JSONEq(t, `{"optimize":{}}`, string(f.updates[4]))
}

func TestEmptyBatchesSendNothing(t *testing.T) {
	f := &fakeSolr{}
	idx := open(t, f)

	require.NoError(t, idx.Add(context.Background(), nil))
	require.NoError(t, idx.Delete(context.Background(), nil))
	assert.Empty(t, f.updates)
}

func TestCount(t *testing.T) {
	f := &fakeSolr{numFound: 12345}
	idx := open(t, f)

	n, err := idx.Count(context.Background(), search.All())
	require.NoError(t, err)
	assert.Equal(t, 12345, n)
	assert.Equal(t, []string{"*:*"}, f.queries)
}

func TestRetriesUnavailable(t *testing.T) {
	f := &fakeSolr{unavailable: 1}
	idx := open(t, f)

	require.NoError(t, idx.Commit(context.Background()))
	assert.Len(t, f.updates, 1)
}

func TestRetriesExhausted(t *testing.T) {
	f := &fakeSolr{unavailable: 2}
	idx := open(t, f)

	err := idx.Commit(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrIndexUnavailable))
}
