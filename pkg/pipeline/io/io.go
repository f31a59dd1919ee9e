package io

import (
	"errors"
	"fmt"

	p "freelaw.courtlistener.cl-update-index/pkg/pipeline"
	e "freelaw.courtlistener.cl-update-index/pkg/pipeline/io/provider"
	io "freelaw.courtlistener.cl-update-index/pkg/pipeline/io/types"
)

const (
	ErrLoadConfig         = "could not load pipeline config: %v"
	ErrWriterNotSupported = "error - pipeline writer is not supported with the 'consumer' component"
	ErrReaderNotSupported = "error - pipeline reader is not supported with the 'producer' component"
	ErrMissingParams      = "error - pipeline %s has no %s section"
)

// CreateWriter() creates an instance of a pipeline writer for the target pipeline component
func CreateWriter(component p.PipelineComponent, configFile string) (io.Writer, error) {
	pipeline, err := p.LoadPipelineConfigFromFile(configFile)
	if err != nil {
		return nil, fmt.Errorf(ErrLoadConfig, err)
	}
	switch component {
	case p.PRODUCER:
		if pipeline.Pipeline.Producer.Writer == nil {
			return nil, fmt.Errorf(ErrMissingParams, "producer", "writer")
		}
		return e.NewWriter(pipeline.Pipeline.StorageProvider, *pipeline.Pipeline.Producer.Writer)
	case p.CONSUMER:
		return nil, errors.New(ErrWriterNotSupported)
	}
	return nil, fmt.Errorf("unknown pipeline component %d", component)
}

// CreateReader() creates an instance of a pipeline reader for the target pipeline component
func CreateReader(component p.PipelineComponent, configFile string) (io.Reader, error) {
	pipeline, err := p.LoadPipelineConfigFromFile(configFile)
	if err != nil {
		return nil, fmt.Errorf(ErrLoadConfig, err)
	}
	switch component {
	case p.PRODUCER:
		return nil, errors.New(ErrReaderNotSupported)
	case p.CONSUMER:
		if pipeline.Pipeline.Consumer.Reader == nil {
			return nil, fmt.Errorf(ErrMissingParams, "consumer", "reader")
		}
		return e.NewReader(pipeline.Pipeline.StorageProvider, *pipeline.Pipeline.Consumer.Reader)
	}
	return nil, fmt.Errorf("unknown pipeline component %d", component)
}
