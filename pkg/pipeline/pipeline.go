package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"

	log "freelaw.courtlistener.cl-update-index/pkg/logging"
	"gopkg.in/yaml.v3"
)

type PipelineComponent uint

const (
	// PRODUCER publishes task envelopes (cl-update-index)
	PRODUCER PipelineComponent = iota
	// CONSUMER receives task envelopes (cl-index-worker)
	CONSUMER
)

const (
	PROVIDER_EMBEDDED = "embedded"
	PROVIDER_KAFKA    = "kafka"
	PROVIDER_REDIS    = "redis"
	PROVIDER_PULSAR   = "pulsar"
)

var (
	// Default pipeline config
	DefaultTasksPath    = filepath.Join(os.TempDir(), "cl-update-index", "tasks")
	DefaultPipelineYaml = PipelineYaml{
		Pipeline: PipelineParams{
			StorageProvider: PROVIDER_EMBEDDED,
			Producer: IOParams{
				Writer: &WriterParams{
					Path:             &DefaultTasksPath,
					OperationTimeout: 30,
				},
			},
			Consumer: IOParams{
				Reader: &ReaderParams{
					Path:                    &DefaultTasksPath,
					AutoCommitOffsetEnabled: true,
					OperationTimeout:        5,
				},
			},
		},
	}
)

// The following structs represent a pipeline yaml configuration structure
type PipelineYaml struct {
	Pipeline PipelineParams `yaml:"pipeline,omitempty"`
}

type PipelineParams struct {
	StorageProvider string   `yaml:"storage_provider"`
	Producer        IOParams `yaml:"producer,omitempty"`
	Consumer        IOParams `yaml:"consumer,omitempty"`
}

type IOParams struct {
	Writer *WriterParams `yaml:"writer,omitempty"`
	Reader *ReaderParams `yaml:"reader,omitempty"`
}

type WriterParams struct {
	Path             *string  `yaml:"path,omitempty"`
	Host             *string  `yaml:"host,omitempty"`
	Hosts            []string `yaml:"hosts,omitempty"`
	Topic            *string  `yaml:"topic,omitempty"`
	OperationTimeout int      `yaml:"operation_timeout"`
	Password         string   `yaml:"password" mask:"password"`
	DB               int      `yaml:"DB"`
	Channel          string   `yaml:"channel"`
	Compress         bool     `yaml:"compress"`
}

type ReaderParams struct {
	Path                    *string  `yaml:"path,omitempty"`
	Host                    *string  `yaml:"host,omitempty"`
	Hosts                   []string `yaml:"hosts,omitempty"`
	Group                   *string  `yaml:"group,omitempty"`
	CreateUniqueGroupID     bool     `yaml:"create_unique_group_id"`
	Topic                   *string  `yaml:"topic,omitempty"`
	Offset                  string   `yaml:"offset"`
	OperationTimeout        int      `yaml:"operation_timeout"`
	AutoCommitOffsetEnabled bool     `yaml:"auto_commit_offset_enabled"`
	Password                string   `yaml:"password" mask:"password"`
	DB                      int      `yaml:"DB"`
	Channel                 string   `yaml:"channel"`
}

// LoadPipelineConfigFromFile() loads the pipeline yaml config from file. A missing file yields the defaults.
func LoadPipelineConfigFromFile(configFile string) (*PipelineYaml, error) {
	// Start with defaults
	yml := DefaultPipelineYaml

	// Read config file content
	file, err := os.ReadFile(filepath.Clean(configFile))
	if err == nil {
		// Unmarshall yaml
		err = yaml.Unmarshal(file, &yml)
		if err != nil {
			return nil, err
		}
	}

	raw, _ := json.Marshal(log.MaskSensitiveData(yml))
	log.Debugf("%v", string(raw))

	return &yml, nil
}
