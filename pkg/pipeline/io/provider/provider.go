package provider

import (
	"fmt"

	p "freelaw.courtlistener.cl-update-index/pkg/pipeline"
	"freelaw.courtlistener.cl-update-index/pkg/pipeline/io/provider/embedded"
	"freelaw.courtlistener.cl-update-index/pkg/pipeline/io/provider/kafka"
	"freelaw.courtlistener.cl-update-index/pkg/pipeline/io/provider/pulsar"
	"freelaw.courtlistener.cl-update-index/pkg/pipeline/io/provider/redis"
	io "freelaw.courtlistener.cl-update-index/pkg/pipeline/io/types"
)

// NewReader() creates an instance of a pipeline reader based on the provider name
// (embedded, kafka, redis, pulsar)
func NewReader(provider string, config p.ReaderParams) (io.Reader, error) {
	switch provider {
	case p.PROVIDER_EMBEDDED, "":
		return embedded.NewReader(config)
	case p.PROVIDER_KAFKA:
		return kafka.NewReader(config)
	case p.PROVIDER_REDIS:
		return redis.NewReader(config)
	case p.PROVIDER_PULSAR:
		return pulsar.NewReader(config)
	default:
		return nil, fmt.Errorf("unsupported pipeline storage provider %q", provider)
	}
}

// NewWriter() creates an instance of a pipeline writer based on the provider name
// (embedded, kafka, redis, pulsar)
func NewWriter(provider string, config p.WriterParams) (io.Writer, error) {
	switch provider {
	case p.PROVIDER_EMBEDDED, "":
		return embedded.NewWriter(config)
	case p.PROVIDER_KAFKA:
		return kafka.NewWriter(config)
	case p.PROVIDER_REDIS:
		return redis.NewWriter(config)
	case p.PROVIDER_PULSAR:
		return pulsar.NewWriter(config)
	default:
		return nil, fmt.Errorf("unsupported pipeline storage provider %q", provider)
	}
}
