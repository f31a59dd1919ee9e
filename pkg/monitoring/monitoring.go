package monitoring

/*
 * The monitoring package provides a common set of prometheus labels, collectors, and metric writing methods
 * for a consistent implementation of metrics across the updater and the index workers.
 */

import (
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"freelaw.courtlistener.cl-update-index/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

const (
	//Prometheus Metric Labels
	PROM_LABEL_COMPONENT         = "component"
	PROM_LABEL_COMPONENT_UPDATER = "updater"
	PROM_LABEL_COMPONENT_WORKER  = "worker"

	PROM_LABEL_TYPE      = "type"
	PROM_LABEL_TASK      = "task"
	PROM_LABEL_ENGINE    = "engine"
	PROM_LABEL_OPERATION = "operation"
	PROM_LABEL_STATUS    = "status"
	PROM_LABEL_CODE      = "code"
	PROM_LABEL_MESSAGE   = "message"
	PROM_LABEL_HTTP_URL  = "http_url"

	// Standard status values
	PROM_STATUS_SUCCESS = "success"
	PROM_STATUS_FAILED  = "failed"
	PROM_STATUS_TIMEOUT = "timeout"

	// Prometheus metric names
	CLU_RECORDS_PROCESSED      = "clu_records_processed_total"
	CLU_RECORDS_PROCESSED_HELP = "the number of store records handed to the chunking engine"

	CLU_WAVES      = "clu_waves_total"
	CLU_WAVES_HELP = "the number of task waves submitted and joined"

	CLU_WAVE_DURATION      = "clu_wave_duration_seconds"
	CLU_WAVE_DURATION_HELP = "time from wave submission until every task in the wave reported"

	CLU_TASKS      = "clu_tasks_total"
	CLU_TASKS_HELP = "task outcomes by task name and status"

	CLU_PROGRESS      = "clu_progress_ratio"
	CLU_PROGRESS_HELP = "fraction of the current run's records that have been processed"
)

var (
	// Instantiations of prometheus metric collectors
	RecordsProcessedCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: CLU_RECORDS_PROCESSED,
		Help: CLU_RECORDS_PROCESSED_HELP,
	}, []string{
		PROM_LABEL_TYPE,
	})

	WavesCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: CLU_WAVES,
		Help: CLU_WAVES_HELP,
	}, []string{
		PROM_LABEL_TYPE,
		PROM_LABEL_STATUS,
	})

	WaveDurationHistogram = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    CLU_WAVE_DURATION,
		Help:    CLU_WAVE_DURATION_HELP,
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 14),
	}, []string{
		PROM_LABEL_TYPE,
	})

	TasksCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: CLU_TASKS,
		Help: CLU_TASKS_HELP,
	}, []string{
		PROM_LABEL_COMPONENT,
		PROM_LABEL_TASK,
		PROM_LABEL_STATUS,
	})

	ProgressGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: CLU_PROGRESS,
		Help: CLU_PROGRESS_HELP,
	}, []string{
		PROM_LABEL_TYPE,
	})
)

var once sync.Once
var reg *prometheus.Registry

// Initialize prometheus registry and collectors
func init() {
	// Create a new registry.
	reg = prometheus.NewRegistry()

	Register(RecordsProcessedCounter)
	Register(WavesCounter)
	Register(WaveDurationHistogram)
	Register(TasksCounter)
	Register(ProgressGauge)
}

// Helper methods that wrap / simplify calling methods of underlying collectors
func Register(collector interface{}) {
	if reg != nil {
		reg.Register(collector.(prometheus.Collector))
	}
}

func SetGauge(gauge *prometheus.GaugeVec, val float64, lvs ...string) {
	gauge.WithLabelValues(lvs...).Set(val)
}

func IncCounter(counter *prometheus.CounterVec, lvs ...string) {
	counter.WithLabelValues(lvs...).Inc()
}

func AddCounter(counter *prometheus.CounterVec, increment float64, lvs ...string) {
	if increment > 0 {
		counter.WithLabelValues(lvs...).Add(increment)
	}
}

func ObserveDuration(histogram *prometheus.HistogramVec, since time.Time, lvs ...string) {
	histogram.WithLabelValues(lvs...).Observe(time.Since(since).Seconds())
}

// isMonitoringEnabled checks to see if we're running in k8s or if env var CLU_ENABLE_MONITORING exists
func isMonitoringEnabled() bool {
	if _, found := os.LookupEnv("KUBERNETES_PORT"); found {
		return true
	}

	if _, found := os.LookupEnv("CLU_ENABLE_MONITORING"); found {
		return true
	}
	return false
}

// Start() exposes /metrics and /ping on the given port. Long running components (the index worker) call it once.
func Start(port int) {
	// Ensure we only start the monitor one time...
	once.Do(func() {

		// Monitoring is disabled by default when not running in k8s. To enable monitoring when not running in k8s,
		// be sure to set env var CLU_ENABLE_MONITORING
		if !isMonitoringEnabled() {
			logging.Debugf("Monitoring is disabled")
			return
		}
		logging.Debugf("Initializing monitoring on port %d", port)

		// Add Go module build info.
		reg.MustRegister(collectors.NewBuildInfoCollector())
		reg.MustRegister(collectors.NewGoCollector())

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(
			reg,
			promhttp.HandlerOpts{
				// Opt into OpenMetrics to support exemplars.
				EnableOpenMetrics: true,
			},
		))

		// liveness + readiness probes
		mux.HandleFunc("/ping", func(rw http.ResponseWriter, req *http.Request) {
			rw.WriteHeader(http.StatusOK)
		})

		go func() {
			srv := &http.Server{
				Addr:         fmt.Sprintf(":%v", port),
				Handler:      mux,
				ReadTimeout:  60 * time.Second,
				WriteTimeout: 60 * time.Second,
			}
			logging.Fatal(srv.ListenAndServe())
		}()
	})
}

// Push sends the collected metrics of a batch run to a prometheus pushgateway. A blank url disables pushing.
func Push(url string, job string, grouping map[string]string) error {
	if url == "" {
		return nil
	}
	pusher := push.New(url, job).Gatherer(reg)
	for k, v := range grouping {
		pusher = pusher.Grouping(k, v)
	}
	if err := pusher.Push(); err != nil {
		return fmt.Errorf("pushing metrics to %s: %w", url, err)
	}
	logging.Debugf("pushed metrics for job %s to %s", job, url)
	return nil
}
