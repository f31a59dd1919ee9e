package elasticsearch

/*
 * elasticsearch implements a search index on an elasticsearch index. The index is addressed as
 * http(s)://host:port/<index name>.
 */

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	log "freelaw.courtlistener.cl-update-index/pkg/logging"
	"freelaw.courtlistener.cl-update-index/pkg/search"
	"freelaw.courtlistener.cl-update-index/pkg/types"
	es "github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	REMOTE_SERVICE_NAME = "ElasticSearch"
)

// InfoResponse represents the elasticsearch restful API Info response object
type InfoResponse struct {
	Name        string `json:"name"`
	ClusterName string `json:"cluster_name"`
	ClusterUUID string `json:"cluster_uuid"`
	Version     struct {
		Number                    string `json:"number"`
		MinimumWireCompatibility  string `json:"minimum_wire_compatibility_version"`
		MinimumIndexCompatibility string `json:"minimum_index_compatibility_version"`
	}
}

type countResponse struct {
	Count int `json:"count"`
}

// Index manages reads and writes of one elasticsearch index
type Index struct {
	url                 string
	index               string
	client              *es.Client
	ElasticMajorVersion int

	retrier *search.Retrier
}

var _ search.Index = (*Index)(nil)

// SplitURL separates the cluster address from the index name
func SplitURL(rawURL string) (address string, index string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", err
	}
	index = strings.Trim(u.Path, "/")
	if u.Host == "" || index == "" || strings.Contains(index, "/") {
		return "", "", fmt.Errorf("expected <scheme>://<host>/<index>, got %q", rawURL)
	}
	u.Path = ""
	u.RawQuery = ""
	return u.String(), index, nil
}

// Open connects to the cluster, checks its version and loads the index mapping
func Open(ctx context.Context, rawURL string, config search.Config) (search.Index, error) {
	address, index, err := SplitURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid elasticsearch url: %w: %v", types.ErrIndexUnavailable, err)
	}

	esConfig := es.Config{
		Addresses: []string{address},
		Username:  config.Username,
		Password:  config.Password,
		Transport: &http.Transport{ResponseHeaderTimeout: config.RequestTimeout()},
	}
	log.Debugf("elasticsearch config: %+v", log.MaskSensitiveData(esConfig))

	// create elasticsearch client
	client, err := es.NewClient(esConfig)
	if err != nil {
		return nil, fmt.Errorf("creating elasticsearch client: %w: %v", types.ErrIndexUnavailable, err)
	}

	e := &Index{
		url:     rawURL,
		index:   index,
		client:  client,
		retrier: search.NewRetrier(REMOTE_SERVICE_NAME, config),
	}
	if err := e.checkVersion(ctx); err != nil {
		return nil, err
	}
	if err := e.loadMapping(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// checkVersion gets elasticsearch info to determine the major version
func (e *Index) checkVersion(ctx context.Context) error {
	res, err := e.client.Info(e.client.Info.WithContext(ctx))
	switch {
	case err != nil:
		return fmt.Errorf("getting elasticsearch info: %w: %v", types.ErrIndexUnavailable, err)
	case res.IsError():
		defer res.Body.Close()
		return fmt.Errorf("getting elasticsearch info: %w: %s", types.ErrIndexUnavailable, res.Status())
	}
	defer res.Body.Close()

	var info InfoResponse
	if err := json.NewDecoder(res.Body).Decode(&info); err != nil {
		return fmt.Errorf("decoding elasticsearch info response: %w", err)
	}
	log.Infof("elasticsearch version: %v", info.Version.Number)
	e.ElasticMajorVersion, err = strconv.Atoi(strings.Split(info.Version.Number, ".")[0])
	if err != nil {
		return fmt.Errorf("parsing elasticsearch version %q: %w", info.Version.Number, err)
	}
	return nil
}

// loadMapping is the elasticsearch analogue of loading a Solr schema
func (e *Index) loadMapping(ctx context.Context) error {
	res, err := e.client.Indices.GetMapping(
		e.client.Indices.GetMapping.WithContext(ctx),
		e.client.Indices.GetMapping.WithIndex(e.index),
	)
	if err != nil {
		return fmt.Errorf("loading mapping of %s: %w: %w", e.url, types.ErrSchemaLoad, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("loading mapping of %s: %w: %s", e.url, types.ErrSchemaLoad, res.Status())
	}
	return nil
}

func (e *Index) URL() string {
	return e.url
}

func (e *Index) Close() error {
	return nil
}

// call runs one api request through the retrier and decodes a successful response into out
func (e *Index) call(ctx context.Context, op string, do func() (*esapi.Response, error), out interface{}) error {
	return e.retrier.Do(ctx, op, func() (bool, error) {
		res, err := do()
		if err != nil || res == nil {
			if err == nil {
				err = errors.New("empty response")
			}
			return true, err
		}
		defer res.Body.Close()

		var body bytes.Buffer
		_, _ = body.ReadFrom(res.Body)
		if res.IsError() {
			err := fmt.Errorf("%s %s on %s: %s", REMOTE_SERVICE_NAME, op, e.index, search.DecodeError(res.StatusCode, body.Bytes()))
			return res.StatusCode == http.StatusServiceUnavailable || res.StatusCode == http.StatusTooManyRequests, err
		}
		if out == nil {
			return false, nil
		}
		if err := json.Unmarshal(body.Bytes(), out); err != nil {
			return false, fmt.Errorf("decoding %s %s response: %w", REMOTE_SERVICE_NAME, op, err)
		}
		return false, nil
	})
}

// bulk sends a bulk body and reports per item failures
func (e *Index) bulk(ctx context.Context, op string, body *search.BulkBody) error {
	// Observe write duration in seconds
	timer := prometheus.NewTimer(search.RequestDurationHistogram.WithLabelValues(search.ENGINE_ELASTICSEARCH, "bulk"))
	defer timer.ObserveDuration()

	var blk search.BulkResponse
	err := e.call(ctx, op, func() (*esapi.Response, error) {
		return e.client.Bulk(bytes.NewReader(body.Bytes()),
			e.client.Bulk.WithContext(ctx),
			e.client.Bulk.WithIndex(e.index),
		)
	}, &blk)
	if err != nil {
		return err
	}
	if failed, err := blk.Failures(); err != nil {
		log.Errorf("%s: %d of %d actions failed", e.url, failed, body.Length())
		return err
	}
	return nil
}

func (e *Index) Add(ctx context.Context, docs []search.Document) error {
	if len(docs) == 0 {
		return nil
	}
	start := time.Now()
	var body search.BulkBody
	for _, d := range docs {
		if err := body.Index(d); err != nil {
			return err
		}
	}
	err := e.bulk(ctx, "add", &body)
	return search.Observe(search.ENGINE_ELASTICSEARCH, "add", start, len(docs), err)
}

func (e *Index) Delete(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	start := time.Now()
	var body search.BulkBody
	for _, id := range ids {
		body.Delete(id)
	}
	err := e.bulk(ctx, "delete", &body)
	return search.Observe(search.ENGINE_ELASTICSEARCH, "delete", start, len(ids), err)
}

// QueryBody renders the request body of a query based api call
func QueryBody(q search.Query) []byte {
	b, _ := json.Marshal(map[string]interface{}{"query": q.DSL()})
	return b
}

func (e *Index) DeleteByQuery(ctx context.Context, q search.Query) error {
	start := time.Now()
	body := QueryBody(q)
	err := e.call(ctx, "delete_by_query", func() (*esapi.Response, error) {
		return e.client.DeleteByQuery([]string{e.index}, bytes.NewReader(body),
			e.client.DeleteByQuery.WithContext(ctx),
			e.client.DeleteByQuery.WithConflicts("proceed"),
		)
	}, nil)
	return search.Observe(search.ENGINE_ELASTICSEARCH, "delete_by_query", start, 0, err)
}

func (e *Index) DeleteAll(ctx context.Context) error {
	return e.DeleteByQuery(ctx, search.All())
}

func (e *Index) Count(ctx context.Context, q search.Query) (int, error) {
	start := time.Now()
	body := QueryBody(q)
	var cr countResponse
	err := e.call(ctx, "count", func() (*esapi.Response, error) {
		return e.client.Count(
			e.client.Count.WithContext(ctx),
			e.client.Count.WithIndex(e.index),
			e.client.Count.WithBody(bytes.NewReader(body)),
		)
	}, &cr)
	if err := search.Observe(search.ENGINE_ELASTICSEARCH, "count", start, 0, err); err != nil {
		return 0, err
	}
	return cr.Count, nil
}

// Commit refreshes the index so pending writes become searchable
func (e *Index) Commit(ctx context.Context) error {
	start := time.Now()
	err := e.call(ctx, "refresh", func() (*esapi.Response, error) {
		return e.client.Indices.Refresh(
			e.client.Indices.Refresh.WithContext(ctx),
			e.client.Indices.Refresh.WithIndex(e.index),
		)
	}, nil)
	return search.Observe(search.ENGINE_ELASTICSEARCH, "commit", start, 0, err)
}

// Optimize force merges the index down to a single segment
func (e *Index) Optimize(ctx context.Context) error {
	start := time.Now()
	err := e.call(ctx, "forcemerge", func() (*esapi.Response, error) {
		return e.client.Indices.Forcemerge(
			e.client.Indices.Forcemerge.WithContext(ctx),
			e.client.Indices.Forcemerge.WithIndex(e.index),
			e.client.Indices.Forcemerge.WithMaxNumSegments(1),
		)
	}, nil)
	return search.Observe(search.ENGINE_ELASTICSEARCH, "optimize", start, 0, err)
}
