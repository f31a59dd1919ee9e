package bleve

/*
 * bleve implements a search index embedded in the process. Indexes are addressed as
 *   bleve://memory/<name>   an in-memory index shared by everything in the process
 *   bleve:///<path>         an on-disk index, created on first use
 * Opened indexes stay open until CloseAll so the updater and in-process workers share them.
 */

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "freelaw.courtlistener.cl-update-index/pkg/logging"
	"freelaw.courtlistener.cl-update-index/pkg/search"
	"freelaw.courtlistener.cl-update-index/pkg/types"
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

const (
	SCHEME      = "bleve"
	MEMORY_HOST = "memory"

	// documents are deleted by query in pages of this size
	DELETE_PAGE_SIZE = 1000
)

var (
	mu      sync.Mutex
	indexes = map[string]bleve.Index{}
)

type Index struct {
	url   string
	index bleve.Index
}

var _ search.Index = (*Index)(nil)

// Open returns the index registered for url, creating it if needed
func Open(_ context.Context, rawURL string, _ search.Config) (search.Index, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme != SCHEME {
		return nil, fmt.Errorf("invalid bleve url %q: %w", rawURL, types.ErrIndexUnavailable)
	}

	mu.Lock()
	defer mu.Unlock()
	if idx, ok := indexes[rawURL]; ok {
		return &Index{url: rawURL, index: idx}, nil
	}

	var idx bleve.Index
	switch {
	case u.Host == MEMORY_HOST && u.Path != "" && u.Path != "/":
		idx, err = bleve.NewMemOnly(bleve.NewIndexMapping())
	case u.Host == "" && u.Path != "":
		idx, err = openOnDisk(filepath.Clean(u.Path))
	default:
		return nil, fmt.Errorf("invalid bleve url %q: expected bleve://memory/<name> or bleve:///<path>: %w", rawURL, types.ErrIndexUnavailable)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w: %v", rawURL, types.ErrSchemaLoad, err)
	}
	indexes[rawURL] = idx
	log.Debugf("opened bleve index %s", rawURL)
	return &Index{url: rawURL, index: idx}, nil
}

func openOnDisk(path string) (bleve.Index, error) {
	idx, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		return bleve.New(path, bleve.NewIndexMapping())
	}
	return idx, err
}

// CloseAll closes every index opened in the process
func CloseAll() error {
	mu.Lock()
	defer mu.Unlock()
	var errs []error
	for u, idx := range indexes {
		if err := idx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", u, err))
		}
		delete(indexes, u)
	}
	return errors.Join(errs...)
}

func (b *Index) URL() string {
	return b.url
}

// Close is a no-op, the index stays registered until CloseAll
func (b *Index) Close() error {
	return nil
}

func (b *Index) Add(ctx context.Context, docs []search.Document) error {
	if len(docs) == 0 {
		return nil
	}
	start := time.Now()
	batch := b.index.NewBatch()
	for _, d := range docs {
		if err := batch.Index(d.ID(), map[string]interface{}(d)); err != nil {
			return search.Observe(search.ENGINE_BLEVE, "add", start, 0, fmt.Errorf("indexing document %s: %w", d.ID(), err))
		}
	}
	err := b.index.Batch(batch)
	return search.Observe(search.ENGINE_BLEVE, "add", start, len(docs), err)
}

func (b *Index) Delete(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	start := time.Now()
	batch := b.index.NewBatch()
	for _, id := range search.DocumentIDs(ids) {
		batch.Delete(id)
	}
	err := b.index.Batch(batch)
	return search.Observe(search.ENGINE_BLEVE, "delete", start, len(ids), err)
}

func (b *Index) DeleteByQuery(ctx context.Context, q search.Query) error {
	start := time.Now()
	deleted := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		req := bleve.NewSearchRequestOptions(Render(q), DELETE_PAGE_SIZE, 0, false)
		res, err := b.index.SearchInContext(ctx, req)
		if err != nil {
			return search.Observe(search.ENGINE_BLEVE, "delete_by_query", start, deleted, err)
		}
		if len(res.Hits) == 0 {
			break
		}
		batch := b.index.NewBatch()
		for _, hit := range res.Hits {
			batch.Delete(hit.ID)
		}
		if err := b.index.Batch(batch); err != nil {
			return search.Observe(search.ENGINE_BLEVE, "delete_by_query", start, deleted, err)
		}
		deleted += len(res.Hits)
	}
	log.Debugf("deleted %d documents matching %s from %s", deleted, q, b.url)
	return search.Observe(search.ENGINE_BLEVE, "delete_by_query", start, deleted, nil)
}

func (b *Index) DeleteAll(ctx context.Context) error {
	return b.DeleteByQuery(ctx, search.All())
}

func (b *Index) Count(ctx context.Context, q search.Query) (int, error) {
	start := time.Now()
	req := bleve.NewSearchRequestOptions(Render(q), 0, 0, false)
	res, err := b.index.SearchInContext(ctx, req)
	if err := search.Observe(search.ENGINE_BLEVE, "count", start, 0, err); err != nil {
		return 0, err
	}
	return int(res.Total), nil
}

// Commit is a no-op, batches are searchable as soon as they are applied
func (b *Index) Commit(context.Context) error {
	return nil
}

// Optimize is a no-op, bleve merges segments in the background
func (b *Index) Optimize(context.Context) error {
	log.Debugf("optimize requested for %s, bleve merges in the background", b.url)
	return nil
}

// Render converts a query into a bleve query
func Render(q search.Query) query.Query {
	if q.IsAll() {
		return bleve.NewMatchAllQuery()
	}
	parts := make([]query.Query, 0, len(q.Terms))
	for _, t := range q.Terms {
		parts = append(parts, termQuery(t.Field, t.Value))
	}
	return bleve.NewConjunctionQuery(parts...)
}

func termQuery(field string, value interface{}) query.Query {
	switch v := value.(type) {
	case nil:
		// documents without any term in the field
		exists := bleve.NewWildcardQuery("*")
		exists.SetField(field)
		return query.NewBooleanQuery([]query.Query{bleve.NewMatchAllQuery()}, nil, []query.Query{exists})
	case []interface{}:
		alts := make([]query.Query, len(v))
		for i, a := range v {
			alts[i] = termQuery(field, a)
		}
		return bleve.NewDisjunctionQuery(alts...)
	case bool:
		bq := bleve.NewBoolFieldQuery(v)
		bq.SetField(field)
		return bq
	case int:
		return numberQuery(field, float64(v))
	case int64:
		return numberQuery(field, float64(v))
	case float64:
		return numberQuery(field, v)
	}
	mq := bleve.NewMatchPhraseQuery(fmt.Sprint(value))
	mq.SetField(field)
	return mq
}

func numberQuery(field string, n float64) query.Query {
	inclusive := true
	nq := bleve.NewNumericRangeInclusiveQuery(&n, &n, &inclusive, &inclusive)
	nq.SetField(field)
	return nq
}
