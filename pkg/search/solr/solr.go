package solr

/*
 * solr talks to a single Solr core over its JSON update and select handlers. The core is
 * addressed by its base URL, e.g. http://127.0.0.1:8983/solr/collection1.
 */

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"freelaw.courtlistener.cl-update-index/pkg/httpclient"
	log "freelaw.courtlistener.cl-update-index/pkg/logging"
	"freelaw.courtlistener.cl-update-index/pkg/search"
	"freelaw.courtlistener.cl-update-index/pkg/types"
)

const (
	REMOTE_SERVICE_NAME = "Solr"
)

// Schema is the part of the schema API response the client checks
type Schema struct {
	Name      string `json:"name"`
	UniqueKey string `json:"uniqueKey"`
	Fields    []struct {
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"fields"`
}

type updateResponse struct {
	ResponseHeader struct {
		Status int `json:"status"`
		QTime  int `json:"QTime"`
	} `json:"responseHeader"`
	Error *struct {
		Msg  string `json:"msg"`
		Code int    `json:"code"`
	} `json:"error,omitempty"`
}

type selectResponse struct {
	Response struct {
		NumFound int `json:"numFound"`
	} `json:"response"`
}

type Index struct {
	url    string
	base   *url.URL
	client *httpclient.Http
	schema Schema

	retrier *search.Retrier
}

var _ search.Index = (*Index)(nil)

// Open connects to the core and loads its schema
func Open(ctx context.Context, rawURL string, config search.Config) (search.Index, error) {
	base, err := url.Parse(strings.TrimSuffix(rawURL, "/"))
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid solr url %q: %w", rawURL, types.ErrIndexUnavailable)
	}

	client := httpclient.NewHttp(config.RequestTimeout())
	if config.Username != "" {
		// net/http sends basic auth for url userinfo
		base.User = url.UserPassword(config.Username, config.Password)
	}

	s := &Index{
		url:     rawURL,
		base:    base,
		client:  client,
		retrier: search.NewRetrier(REMOTE_SERVICE_NAME, config),
	}
	if err := s.loadSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Index) loadSchema(ctx context.Context) error {
	status, body, err := s.request(ctx, http.MethodGet, "schema", url.Values{"wt": {"json"}}, nil)
	switch {
	case err != nil:
		return fmt.Errorf("loading schema of %s: %w: %w", s.url, types.ErrSchemaLoad, err)
	case status >= 400:
		return fmt.Errorf("loading schema of %s: %w: %s", s.url, types.ErrSchemaLoad, search.DecodeError(status, body))
	}

	var resp struct {
		Schema Schema `json:"schema"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("decoding schema of %s: %w: %v", s.url, types.ErrSchemaLoad, err)
	}
	s.schema = resp.Schema
	log.Debugf("loaded schema %q of %s (%d fields)", s.schema.Name, s.url, len(s.schema.Fields))
	return nil
}

func (s *Index) URL() string {
	return s.url
}

// Schema returns the schema loaded when the index was opened
func (s *Index) Schema() Schema {
	return s.schema
}

func (s *Index) Close() error {
	s.client.HttpClient.CloseIdleConnections()
	return nil
}

// request sends one request to the core
func (s *Index) request(ctx context.Context, method, path string, params url.Values, body []byte) (status int, resp []byte, err error) {
	u := *s.base
	u.Path = u.Path + "/" + path
	u.RawQuery = params.Encode()

	header := http.Header{}
	if body != nil {
		header.Set("Content-Type", "application/json")
	}

	err = s.retrier.Do(ctx, path, func() (bool, error) {
		var err error
		if method == http.MethodPost {
			status, resp, err = s.client.Post(ctx, &u, header, body)
		} else {
			status, resp, err = s.client.Get(ctx, &u, header)
		}
		if err != nil {
			return true, err
		}
		if status == http.StatusServiceUnavailable {
			return true, errors.New(search.DecodeError(status, resp))
		}
		return false, nil
	})
	if err != nil {
		return 0, nil, err
	}
	return status, resp, nil
}

// update posts a JSON update command
func (s *Index) update(ctx context.Context, op string, cmd interface{}) error {
	body, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encoding %s command: %w", op, err)
	}
	status, resp, err := s.request(ctx, http.MethodPost, "update", url.Values{"wt": {"json"}}, body)
	if err != nil {
		return err
	}
	if status >= 400 {
		return fmt.Errorf("%s %s on %s: %s", REMOTE_SERVICE_NAME, op, s.url, search.DecodeError(status, resp))
	}
	var ur updateResponse
	if err := json.Unmarshal(resp, &ur); err == nil && ur.ResponseHeader.Status != 0 {
		return fmt.Errorf("%s %s on %s: status %d", REMOTE_SERVICE_NAME, op, s.url, ur.ResponseHeader.Status)
	}
	return nil
}

func (s *Index) Add(ctx context.Context, docs []search.Document) error {
	if len(docs) == 0 {
		return nil
	}
	start := time.Now()
	err := s.update(ctx, "add", docs)
	return search.Observe(search.ENGINE_SOLR, "add", start, len(docs), err)
}

func (s *Index) Delete(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	start := time.Now()
	err := s.update(ctx, "delete", map[string]interface{}{"delete": search.DocumentIDs(ids)})
	return search.Observe(search.ENGINE_SOLR, "delete", start, len(ids), err)
}

func (s *Index) DeleteByQuery(ctx context.Context, q search.Query) error {
	start := time.Now()
	err := s.update(ctx, "delete", map[string]interface{}{"delete": map[string]string{"query": q.Solr()}})
	return search.Observe(search.ENGINE_SOLR, "delete_by_query", start, 0, err)
}

func (s *Index) DeleteAll(ctx context.Context) error {
	return s.DeleteByQuery(ctx, search.All())
}

func (s *Index) Count(ctx context.Context, q search.Query) (int, error) {
	start := time.Now()
	params := url.Values{
		"q":    {q.Solr()},
		"rows": {"0"},
		"wt":   {"json"},
	}
	status, resp, err := s.request(ctx, http.MethodGet, "select", params, nil)
	if err == nil && status >= 400 {
		err = fmt.Errorf("%s count on %s: %s", REMOTE_SERVICE_NAME, s.url, search.DecodeError(status, resp))
	}
	var sr selectResponse
	if err == nil {
		if derr := json.Unmarshal(resp, &sr); derr != nil {
			err = fmt.Errorf("decoding %s count response: %w", REMOTE_SERVICE_NAME, derr)
		}
	}
	if err := search.Observe(search.ENGINE_SOLR, "count", start, 0, err); err != nil {
		return 0, err
	}
	log.Debugf("%s count %q = %d", s.url, q.Solr(), sr.Response.NumFound)
	return sr.Response.NumFound, nil
}

func (s *Index) Commit(ctx context.Context) error {
	start := time.Now()
	err := s.update(ctx, "commit", map[string]interface{}{"commit": map[string]interface{}{}})
	return search.Observe(search.ENGINE_SOLR, "commit", start, 0, err)
}

func (s *Index) Optimize(ctx context.Context) error {
	start := time.Now()
	err := s.update(ctx, "optimize", map[string]interface{}{"optimize": map[string]interface{}{}})
	return search.Observe(search.ENGINE_SOLR, "optimize", start, 0, err)
}
