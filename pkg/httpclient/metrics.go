package httpclient

import (
	"freelaw.courtlistener.cl-update-index/pkg/monitoring"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	CLU_HTTP_REQUESTS_TOTAL      = "clu_http_requests_total"
	CLU_HTTP_REQUESTS_TOTAL_HELP = "the number of index requests made with response code and message."

	CLU_HTTP_REQUEST_DURATION_SECONDS      = "clu_http_request_duration_seconds"
	CLU_HTTP_REQUEST_DURATION_SECONDS_HELP = "http request duration in seconds"

	PROM_LABEL_HTTP_PATH             = "path"
	PROM_LABEL_HTTP_RESPONSE_CODE    = "http_response_code"
	PROM_LABEL_HTTP_RESPONSE_MESSAGE = "http_response_message"
)

var (
	HttpRequestsTotalCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: CLU_HTTP_REQUESTS_TOTAL,
		Help: CLU_HTTP_REQUESTS_TOTAL_HELP,
	}, []string{
		PROM_LABEL_HTTP_PATH,
		PROM_LABEL_HTTP_RESPONSE_CODE,
		PROM_LABEL_HTTP_RESPONSE_MESSAGE,
	})

	HttpDurationHistogram = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: CLU_HTTP_REQUEST_DURATION_SECONDS,
			Help: CLU_HTTP_REQUEST_DURATION_SECONDS_HELP,
		}, []string{
			PROM_LABEL_HTTP_PATH,
		})
)

func init() {
	monitoring.Register(HttpRequestsTotalCounter)
	monitoring.Register(HttpDurationHistogram)
}
