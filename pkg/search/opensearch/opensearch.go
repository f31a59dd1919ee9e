package opensearch

/*
 * opensearch implements a search index on an opensearch index, addressed as
 * http(s)://host:port/<index name>.
 */

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	log "freelaw.courtlistener.cl-update-index/pkg/logging"
	"freelaw.courtlistener.cl-update-index/pkg/search"
	"freelaw.courtlistener.cl-update-index/pkg/search/elasticsearch"
	"freelaw.courtlistener.cl-update-index/pkg/types"
	ops "github.com/opensearch-project/opensearch-go"
	"github.com/opensearch-project/opensearch-go/opensearchapi"
)

const (
	REMOTE_SERVICE_NAME = "OpenSearch"
)

type Index struct {
	url    string
	index  string
	client *ops.Client

	retrier *search.Retrier
}

var _ search.Index = (*Index)(nil)

// Open pings the cluster and loads the index mapping
func Open(ctx context.Context, rawURL string, config search.Config) (search.Index, error) {
	address, index, err := elasticsearch.SplitURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid opensearch url: %w: %v", types.ErrIndexUnavailable, err)
	}

	opsConfig := ops.Config{
		Addresses: []string{address},
		Username:  config.Username,
		Password:  config.Password,
		Transport: &http.Transport{ResponseHeaderTimeout: config.RequestTimeout()},
	}
	log.Debugf("opensearch config: %+v", log.MaskSensitiveData(opsConfig))

	// Create the opensearch client
	client, err := ops.NewClient(opsConfig)
	if err != nil {
		return nil, fmt.Errorf("creating opensearch client: %w: %v", types.ErrIndexUnavailable, err)
	}

	// ping opensearch to ensure it is up and running and we can connect to it
	resp, err := client.Ping(client.Ping.WithContext(ctx))
	switch {
	case err != nil:
		return nil, fmt.Errorf("pinging opensearch: %w: %v", types.ErrIndexUnavailable, err)
	case resp.StatusCode >= 400:
		resp.Body.Close()
		return nil, fmt.Errorf("pinging opensearch: %w: %s", types.ErrIndexUnavailable, resp.Status())
	}
	resp.Body.Close()

	o := &Index{
		url:     rawURL,
		index:   index,
		client:  client,
		retrier: search.NewRetrier(REMOTE_SERVICE_NAME, config),
	}

	res, err := client.Indices.GetMapping(
		client.Indices.GetMapping.WithContext(ctx),
		client.Indices.GetMapping.WithIndex(index),
	)
	if err != nil {
		return nil, fmt.Errorf("loading mapping of %s: %w: %w", rawURL, types.ErrSchemaLoad, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("loading mapping of %s: %w: %s", rawURL, types.ErrSchemaLoad, res.Status())
	}
	return o, nil
}

func (o *Index) URL() string {
	return o.url
}

func (o *Index) Close() error {
	return nil
}

// call runs one api request through the retrier and decodes a successful response into out
func (o *Index) call(ctx context.Context, op string, do func() (*opensearchapi.Response, error), out interface{}) error {
	return o.retrier.Do(ctx, op, func() (bool, error) {
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
			err := fmt.Errorf("%s %s on %s: %s", REMOTE_SERVICE_NAME, op, o.index, search.DecodeError(res.StatusCode, body.Bytes()))
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

func (o *Index) bulk(ctx context.Context, op string, body *search.BulkBody) error {
	var blk search.BulkResponse
	err := o.call(ctx, op, func() (*opensearchapi.Response, error) {
		return o.client.Bulk(bytes.NewReader(body.Bytes()),
			o.client.Bulk.WithContext(ctx),
			o.client.Bulk.WithIndex(o.index),
		)
	}, &blk)
	if err != nil {
		return err
	}
	if failed, err := blk.Failures(); err != nil {
		log.Errorf("%s: %d of %d actions failed", o.url, failed, body.Length())
		return err
	}
	return nil
}

func (o *Index) Add(ctx context.Context, docs []search.Document) error {
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
	err := o.bulk(ctx, "add", &body)
	return search.Observe(search.ENGINE_OPENSEARCH, "add", start, len(docs), err)
}

func (o *Index) Delete(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	start := time.Now()
	var body search.BulkBody
	for _, id := range ids {
		body.Delete(id)
	}
	err := o.bulk(ctx, "delete", &body)
	return search.Observe(search.ENGINE_OPENSEARCH, "delete", start, len(ids), err)
}

func (o *Index) DeleteByQuery(ctx context.Context, q search.Query) error {
	start := time.Now()
	body := elasticsearch.QueryBody(q)
	err := o.call(ctx, "delete_by_query", func() (*opensearchapi.Response, error) {
		return o.client.DeleteByQuery([]string{o.index}, bytes.NewReader(body),
			o.client.DeleteByQuery.WithContext(ctx),
			o.client.DeleteByQuery.WithConflicts("proceed"),
		)
	}, nil)
	return search.Observe(search.ENGINE_OPENSEARCH, "delete_by_query", start, 0, err)
}

func (o *Index) DeleteAll(ctx context.Context) error {
	return o.DeleteByQuery(ctx, search.All())
}

func (o *Index) Count(ctx context.Context, q search.Query) (int, error) {
	start := time.Now()
	body := elasticsearch.QueryBody(q)
	var cr struct {
		Count int `json:"count"`
	}
	err := o.call(ctx, "count", func() (*opensearchapi.Response, error) {
		return o.client.Count(
			o.client.Count.WithContext(ctx),
			o.client.Count.WithIndex(o.index),
			o.client.Count.WithBody(bytes.NewReader(body)),
		)
	}, &cr)
	if err := search.Observe(search.ENGINE_OPENSEARCH, "count", start, 0, err); err != nil {
		return 0, err
	}
	return cr.Count, nil
}

func (o *Index) Commit(ctx context.Context) error {
	start := time.Now()
	err := o.call(ctx, "refresh", func() (*opensearchapi.Response, error) {
		return o.client.Indices.Refresh(
			o.client.Indices.Refresh.WithContext(ctx),
			o.client.Indices.Refresh.WithIndex(o.index),
		)
	}, nil)
	return search.Observe(search.ENGINE_OPENSEARCH, "commit", start, 0, err)
}

func (o *Index) Optimize(ctx context.Context) error {
	start := time.Now()
	err := o.call(ctx, "forcemerge", func() (*opensearchapi.Response, error) {
		return o.client.Indices.Forcemerge(
			o.client.Indices.Forcemerge.WithContext(ctx),
			o.client.Indices.Forcemerge.WithIndex(o.index),
			o.client.Indices.Forcemerge.WithMaxNumSegments(1),
		)
	}, nil)
	return search.Observe(search.ENGINE_OPENSEARCH, "optimize", start, 0, err)
}
