package httpclient

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	log "freelaw.courtlistener.cl-update-index/pkg/logging"
	"freelaw.courtlistener.cl-update-index/pkg/monitoring"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// request and response bodies are truncated to this many bytes in debug logs
	MAX_LOGGED_BODY = 512
)

type Http struct {
	HttpClient *http.Client
	Header     http.Header
}

func NewHttp(timeout time.Duration) *Http {
	return &Http{
		HttpClient: &http.Client{Timeout: timeout},
		Header:     http.Header{},
	}
}

func truncate(body []byte) string {
	if len(body) > MAX_LOGGED_BODY {
		return string(body[:MAX_LOGGED_BODY]) + "..."
	}
	return string(body)
}

// LogRequest implements a formatted string of the HTTP request that's logged for debug purposes
func (h *Http) LogRequest(url *url.URL, method string, body []byte) {
	log.Debugf(">>>>>>> {\"url\": \"%v\", \"method\": \"%v\", \"body\": %v}", url.Redacted(), method, truncate(body))
}

// LogResponse implements a formatted string of the HTTP response that's logged for debug purposes
func (h *Http) LogResponse(statusCode int, body []byte, err error) {
	log.Debugf("<<<<<<< {\"status_code\": \"%v\", \"error\": \"%v\", \"body\": \"%v\"}", statusCode, err, truncate(body))
}

// Do sends the request and reads the whole response body
func (h *Http) Do(request *http.Request) (statusCode int, responseBody []byte, err error) {
	for k, v := range h.Header {
		if _, set := request.Header[k]; !set {
			request.Header[k] = v
		}
	}

	timer := prometheus.NewTimer(HttpDurationHistogram.WithLabelValues(request.URL.Path))
	resp, err := h.HttpClient.Do(request)
	timer.ObserveDuration()

	if err != nil {
		h.LogResponse(statusCode, responseBody, err)
		monitoring.IncCounter(HttpRequestsTotalCounter, request.URL.Path, "0", err.Error())
		return 0, nil, err
	}
	defer resp.Body.Close()

	responseBody, err = io.ReadAll(resp.Body)
	h.LogResponse(resp.StatusCode, responseBody, err)
	monitoring.IncCounter(HttpRequestsTotalCounter, request.URL.Path, strconv.Itoa(resp.StatusCode), resp.Status)

	return resp.StatusCode, responseBody, err
}

// Post implements an HTTP Post request
func (h *Http) Post(ctx context.Context, url *url.URL, header http.Header, data []byte) (statusCode int, responseBody []byte, err error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, url.String(), bytes.NewReader(data))
	if err != nil {
		return 0, nil, err
	}
	if header != nil {
		request.Header = header.Clone()
	}
	h.LogRequest(request.URL, request.Method, data)

	return h.Do(request)
}

// Get implements an HTTP Get request
func (h *Http) Get(ctx context.Context, url *url.URL, header http.Header) (statusCode int, responseBody []byte, err error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url.String(), nil)
	if err != nil {
		return 0, nil, err
	}
	if header != nil {
		request.Header = header.Clone()
	}
	h.LogRequest(request.URL, request.Method, nil)

	return h.Do(request)
}
