package config

/*
 * config loads the yaml configuration shared by cl-update-index and cl-index-worker. Values are
 * read over DefaultConfigYaml, then CLU_* environment variables override the connection settings
 * most often injected by a deployment. The pipeline section of the same file is read by the
 * pipeline package.
 */

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"freelaw.courtlistener.cl-update-index/pkg/audit"
	"freelaw.courtlistener.cl-update-index/pkg/cache"
	"freelaw.courtlistener.cl-update-index/pkg/dispatch"
	log "freelaw.courtlistener.cl-update-index/pkg/logging"
	"freelaw.courtlistener.cl-update-index/pkg/records"
	"freelaw.courtlistener.cl-update-index/pkg/search"
	"gopkg.in/yaml.v3"
)

const (
	EXECUTOR_LOCAL  = "local"
	EXECUTOR_BROKER = "broker"

	DEFAULT_MONITORING_PORT = 8078
	DEFAULT_JOB             = "cl-update-index"
)

var (
	DefaultConfigYaml = Config{
		Index: search.Config{
			Engine:     search.ENGINE_SOLR,
			URL:        "http://127.0.0.1:8983/solr/collection1",
			Timeout:    search.DEFAULT_TIMEOUT,
			MaxRetries: search.DEFAULT_MAX_RETRIES,
			Delay:      search.DEFAULT_DELAY,
		},
		Store: records.Config{
			Driver:   "sqlite",
			DSN:      "courtlistener.db",
			PageSize: records.DEFAULT_PAGE_SIZE,
		},
		Dispatch: dispatch.Config{
			ChunkSize:   dispatch.DEFAULT_CHUNK_SIZE,
			BundleSize:  dispatch.DEFAULT_BUNDLE_SIZE,
			WaveTimeout: int(dispatch.DEFAULT_WAVE_TIMEOUT / time.Second),
		},
		Executor: ExecutorConfig{
			Type:         EXECUTOR_LOCAL,
			Concurrency:  4,
			PollInterval: 500,
			Results: cache.CacheConfig{
				Type:   cache.CACHE_LOCAL,
				Prefix: "cl-update-index:",
			},
		},
		Monitoring: MonitoringConfig{
			Port: DEFAULT_MONITORING_PORT,
			Job:  DEFAULT_JOB,
		},
		Audit: audit.Config{
			Tag:         audit.DEFAULT_TAG,
			BufferLimit: 8 * 1024 * 1024,
		},
	}
)

type Config struct {
	Index      search.Config    `json:"index" yaml:"index"`
	Store      records.Config   `json:"store" yaml:"store"`
	Dispatch   dispatch.Config  `json:"dispatch" yaml:"dispatch"`
	Executor   ExecutorConfig   `json:"executor" yaml:"executor"`
	Monitoring MonitoringConfig `json:"monitoring" yaml:"monitoring"`
	Audit      audit.Config     `json:"audit" yaml:"audit"`
}

// ExecutorConfig selects where tasks run: in process (local) or on cl-index-worker processes (broker)
type ExecutorConfig struct {
	Type        string `json:"type" yaml:"type"`
	Concurrency int    `json:"concurrency" yaml:"concurrency"`

	// PollInterval is how often, in milliseconds, the broker executor looks for results
	PollInterval int               `json:"poll_interval" yaml:"poll_interval"`
	Results      cache.CacheConfig `json:"results" yaml:"results"`
}

// Poll returns the result poll interval
func (c ExecutorConfig) Poll() time.Duration {
	if c.PollInterval <= 0 {
		return 0
	}
	return time.Duration(c.PollInterval) * time.Millisecond
}

type MonitoringConfig struct {
	Port int `json:"port" yaml:"port"`

	// PushgatewayURL receives the metrics of a batch run. Blank disables pushing.
	PushgatewayURL string `json:"pushgateway_url" yaml:"pushgateway_url" mask:"url"`
	Job            string `json:"job" yaml:"job"`
}

// Load reads configFile over the defaults and applies the CLU_* environment overrides. A missing
// file is not an error.
func Load(configFile string) (*Config, error) {
	// Start with defaults
	yml := DefaultConfigYaml
	yml.Index.URLs = map[string]string{}

	// Read config file content
	file, err := os.ReadFile(filepath.Clean(configFile))
	switch {
	case err == nil:
		if err := yaml.Unmarshal(file, &yml); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", configFile, err)
		}
	case os.IsNotExist(err):
		log.Debugf("config file %s not found. using defaults", configFile)
	default:
		return nil, fmt.Errorf("reading %s: %w", configFile, err)
	}

	// Override with values from env
	yml.Index.Engine = getValueFromEnv("CLU_INDEX_ENGINE", yml.Index.Engine)
	yml.Index.URL = getValueFromEnv("CLU_INDEX_URL", yml.Index.URL)
	yml.Index.Username = getValueFromEnv("CLU_INDEX_USERNAME", yml.Index.Username)
	yml.Index.Password = getValueFromEnv("CLU_INDEX_PASSWORD", yml.Index.Password)
	yml.Store.Driver = getValueFromEnv("CLU_STORE_DRIVER", yml.Store.Driver)
	yml.Store.DSN = getValueFromEnv("CLU_STORE_DSN", yml.Store.DSN)
	yml.Store.DatabaseName = getValueFromEnv("CLU_STORE_DATABASE", yml.Store.DatabaseName)
	yml.Executor.Type = getValueFromEnv("CLU_EXECUTOR", yml.Executor.Type)
	yml.Executor.Results.Addr = getValueFromEnv("CLU_RESULTS_ADDR", yml.Executor.Results.Addr)
	yml.Executor.Results.Password = getValueFromEnv("CLU_RESULTS_PASSWORD", yml.Executor.Results.Password)
	yml.Monitoring.PushgatewayURL = getValueFromEnv("CLU_PUSHGATEWAY_URL", yml.Monitoring.PushgatewayURL)
	yml.Audit.Address = getValueFromEnv("CLU_AUDIT_ADDRESS", yml.Audit.Address)
	if v := getValueFromEnv("CLU_CONCURRENCY", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("CLU_CONCURRENCY: %w", err)
		}
		yml.Executor.Concurrency = n
	}

	if err := yml.validate(); err != nil {
		return nil, err
	}

	raw, _ := json.Marshal(log.MaskSensitiveData(yml))
	log.Debugf("%v", string(raw))

	return &yml, nil
}

func (c Config) validate() error {
	switch c.Executor.Type {
	case EXECUTOR_LOCAL, EXECUTOR_BROKER:
	default:
		return fmt.Errorf("invalid executor type %q. must be one of: %s, %s", c.Executor.Type, EXECUTOR_LOCAL, EXECUTOR_BROKER)
	}
	if c.Dispatch.BundleSize < 0 || c.Dispatch.ChunkSize < 0 {
		return fmt.Errorf("dispatch bundle_size and chunk_size must not be negative")
	}
	return nil
}

// getValueFromEnv() returns the value of env var name, or defaultVal when it is not set
func getValueFromEnv(name string, defaultVal string) string {
	if val, found := os.LookupEnv(name); found {
		return val
	}
	return defaultVal
}
