package search

import (
	"time"

	"freelaw.courtlistener.cl-update-index/pkg/monitoring"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	CLU_INDEX_REQUESTS_TOTAL      = "clu_index_requests_total"
	CLU_INDEX_REQUESTS_TOTAL_HELP = "the number of index operations by engine, operation and status"

	CLU_INDEX_DOCUMENTS_TOTAL      = "clu_index_documents_total"
	CLU_INDEX_DOCUMENTS_TOTAL_HELP = "the number of documents added or deleted by engine and operation"

	CLU_INDEX_REQUEST_DURATION_SECONDS      = "clu_index_request_duration_seconds"
	CLU_INDEX_REQUEST_DURATION_SECONDS_HELP = "index operation response time in seconds"
)

var (
	RequestsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: CLU_INDEX_REQUESTS_TOTAL,
		Help: CLU_INDEX_REQUESTS_TOTAL_HELP,
	}, []string{
		monitoring.PROM_LABEL_ENGINE,
		monitoring.PROM_LABEL_OPERATION,
		monitoring.PROM_LABEL_STATUS,
	})

	DocumentsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: CLU_INDEX_DOCUMENTS_TOTAL,
		Help: CLU_INDEX_DOCUMENTS_TOTAL_HELP,
	}, []string{
		monitoring.PROM_LABEL_ENGINE,
		monitoring.PROM_LABEL_OPERATION,
	})

	RequestDurationHistogram = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: CLU_INDEX_REQUEST_DURATION_SECONDS,
		Help: CLU_INDEX_REQUEST_DURATION_SECONDS_HELP,
	}, []string{
		monitoring.PROM_LABEL_ENGINE,
		monitoring.PROM_LABEL_OPERATION,
	})
)

func init() {
	monitoring.Register(RequestsCounter)
	monitoring.Register(DocumentsCounter)
	monitoring.Register(RequestDurationHistogram)
}

// Observe records the outcome of one index operation. It returns err unchanged.
func Observe(engine, operation string, start time.Time, docs int, err error) error {
	status := monitoring.PROM_STATUS_SUCCESS
	if err != nil {
		status = monitoring.PROM_STATUS_FAILED
	}
	monitoring.IncCounter(RequestsCounter, engine, operation, status)
	monitoring.ObserveDuration(RequestDurationHistogram, start, engine, operation)
	if err == nil {
		monitoring.AddCounter(DocumentsCounter, float64(docs), engine, operation)
	}
	return err
}
