package engines

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	log "freelaw.courtlistener.cl-update-index/pkg/logging"
	"freelaw.courtlistener.cl-update-index/pkg/search"
	"freelaw.courtlistener.cl-update-index/pkg/search/bleve"
	"freelaw.courtlistener.cl-update-index/pkg/search/elasticsearch"
	"freelaw.courtlistener.cl-update-index/pkg/search/opensearch"
	"freelaw.courtlistener.cl-update-index/pkg/search/solr"
)

func init() {
	Register(search.ENGINE_SOLR, solr.Open)
	Register(search.ENGINE_ELASTICSEARCH, elasticsearch.Open)
	Register(search.ENGINE_OPENSEARCH, opensearch.Open)
	Register(search.ENGINE_BLEVE, bleve.Open)
}

var openers = make(map[string]search.Opener)

// Each engine must Register itself
func Register(name string, opener search.Opener) {
	log.Debugf("Registering search engine %s", name)
	if opener == nil {
		log.Panicf("Search engine %s does not exist.", name)
	}
	if _, registered := openers[name]; registered {
		log.Infof("Search engine %s already registered. Ignoring.", name)
		return
	}
	openers[name] = opener
}

// EngineFor picks the engine of an index url. bleve:// urls always use the embedded engine,
// everything else uses the configured engine (solr by default).
func EngineFor(url string, config search.Config) string {
	if strings.HasPrefix(url, bleve.SCHEME+"://") {
		return search.ENGINE_BLEVE
	}
	if config.Engine == "" {
		return search.ENGINE_SOLR
	}
	return config.Engine
}

// Open opens the index at url with the engine EngineFor selects
func Open(ctx context.Context, url string, config search.Config) (search.Index, error) {
	name := EngineFor(url, config)
	opener, ok := openers[name]
	if !ok {
		available := make([]string, 0, len(openers))
		for k := range openers {
			available = append(available, k)
		}
		sort.Strings(available)
		return nil, fmt.Errorf("invalid search engine %q. must be one of: %s", name, strings.Join(available, ", "))
	}
	return opener(ctx, url, config)
}

// Cache opens each index url once and hands out the same connection afterwards
type Cache struct {
	config search.Config
	open   search.Opener

	mu      sync.Mutex
	indexes map[string]search.Index
}

func NewCache(config search.Config) *Cache {
	return &Cache{config: config, open: Open, indexes: map[string]search.Index{}}
}

// NewCacheWithOpener is NewCache with a custom opener
func NewCacheWithOpener(config search.Config, open search.Opener) *Cache {
	return &Cache{config: config, open: open, indexes: map[string]search.Index{}}
}

func (c *Cache) Open(ctx context.Context, url string) (search.Index, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if idx, ok := c.indexes[url]; ok {
		return idx, nil
	}
	idx, err := c.open(ctx, url, c.config)
	if err != nil {
		return nil, err
	}
	c.indexes[url] = idx
	return idx, nil
}

// Close closes every cached index
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for url, idx := range c.indexes {
		if err := idx.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing %s: %w", url, err)
		}
		delete(c.indexes, url)
	}
	return firstErr
}
