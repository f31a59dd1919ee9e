package search

/*
 * search defines the narrow interface the indexer and maintenance controller use to talk to a
 * full-text index, regardless of the engine behind it. Engines live in sub-packages and are
 * selected by name through the engines registry.
 */

import (
	"context"
	"time"

	"freelaw.courtlistener.cl-update-index/pkg/ratelimiter"
)

const (
	ENGINE_SOLR          = "solr"
	ENGINE_ELASTICSEARCH = "elasticsearch"
	ENGINE_OPENSEARCH    = "opensearch"
	ENGINE_BLEVE         = "bleve"

	DEFAULT_TIMEOUT     = 60
	DEFAULT_MAX_RETRIES = 3
	DEFAULT_DELAY       = 2
)

// Index is a single search index (a Solr core, an elasticsearch index, a bleve index) addressed by URL
type Index interface {
	// URL returns the address the index was opened with
	URL() string

	// Add adds documents, replacing any document with the same id
	Add(ctx context.Context, docs []Document) error

	// Delete removes the documents with the given ids. Unknown ids are ignored.
	Delete(ctx context.Context, ids []int64) error

	// DeleteByQuery removes every document matching q
	DeleteByQuery(ctx context.Context, q Query) error

	// DeleteAll removes every document
	DeleteAll(ctx context.Context) error

	// Count returns the number of documents matching q
	Count(ctx context.Context, q Query) (int, error)

	// Commit makes pending changes visible to searchers
	Commit(ctx context.Context) error

	// Optimize merges index segments
	Optimize(ctx context.Context) error

	Close() error
}

// Config is the index section of the configuration
type Config struct {
	// Engine is one of solr, elasticsearch, opensearch or bleve
	Engine string `json:"engine" yaml:"engine"`

	// URL is the default index. URLs maps index names (and record types) to index URLs.
	URL  string            `json:"url" yaml:"url" mask:"url"`
	URLs map[string]string `json:"urls" yaml:"urls"`

	Username string `json:"username,omitempty" yaml:"username"`
	Password string `json:"password,omitempty" yaml:"password" mask:"password"`

	RateLimit  ratelimiter.RateLimit `json:"rate_limit" yaml:"rate_limit"`
	Timeout    int                   `json:"timeout" yaml:"timeout"`
	MaxRetries int                   `json:"max_retries" yaml:"max_retries"`
	Delay      int                   `json:"delay" yaml:"delay"`
}

// RequestTimeout returns the per request timeout
func (c Config) RequestTimeout() time.Duration {
	if c.Timeout <= 0 {
		return DEFAULT_TIMEOUT * time.Second
	}
	return time.Duration(c.Timeout) * time.Second
}

// RetryDelay returns the pause between retries of a failed request
func (c Config) RetryDelay() time.Duration {
	if c.Delay < 0 {
		return 0
	}
	return time.Duration(c.Delay) * time.Second
}

// URLFor resolves the index of a record type: an explicit url wins, then urls[name], then url
func (c Config) URLFor(name string, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if u, ok := c.URLs[name]; ok && u != "" {
		return u
	}
	return c.URL
}

// Opener opens (and loads the schema of) the index at url. Implementations wrap failures to
// reach the index with types.ErrIndexUnavailable and schema failures with types.ErrSchemaLoad.
type Opener func(ctx context.Context, url string, config Config) (Index, error)
