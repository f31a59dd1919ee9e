package pulsar

/*
 * pulsar writer writes task envelopes to a pulsar topic.
 */

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "freelaw.courtlistener.cl-update-index/pkg/logging"
	"freelaw.courtlistener.cl-update-index/pkg/pipeline"
	io "freelaw.courtlistener.cl-update-index/pkg/pipeline/io/types"
	"freelaw.courtlistener.cl-update-index/pkg/pipeline/io/utils"
	"github.com/apache/pulsar-client-go/pulsar"
	extc "github.com/reugn/go-streams/extension"
	"github.com/reugn/go-streams/flow"
	extp "github.com/reugn/go-streams/pulsar"
)

type Writer struct {
	clientOptions   *pulsar.ClientOptions
	producerOptions *pulsar.ProducerOptions
	source          *extc.ChanSource
	mapFlow         *flow.PassThrough
	sink            *extp.PulsarSink
	in              chan interface{}
	compress        bool
}

func NewWriter(config pipeline.WriterParams) (io.Writer, error) {
	if config.Host == nil {
		return nil, errors.New("error: pulsar host cannot be nil")
	}

	topic := DEFAULT_TOPIC
	if config.Topic != nil {
		topic = *config.Topic
	}

	writer := Writer{
		clientOptions:   &pulsar.ClientOptions{URL: fmt.Sprintf("pulsar://%s", *config.Host), OperationTimeout: time.Duration(config.OperationTimeout) * time.Second},
		producerOptions: &pulsar.ProducerOptions{Topic: topic},
		mapFlow:         flow.NewPassThrough(),
		in:              make(chan interface{}),
		compress:        config.Compress,
	}
	writer.source = extc.NewChanSource(writer.in)

	var err error
	writer.sink, err = extp.NewPulsarSink(context.Background(),
		writer.clientOptions,
		writer.producerOptions)
	if err != nil {
		return nil, fmt.Errorf("creating pulsar sink for %v: %w", topic, err)
	}
	return &writer, nil
}

func (w *Writer) Open() (err error) {
	go w.source.
		Via(w.mapFlow).
		To(w.sink)
	return nil
}

func (w *Writer) Close() {
	close(w.in)
}

func (w *Writer) Write(data []byte) error {
	if w.compress {
		compressed, err := utils.Compress(data)
		if err != nil {
			return err
		}
		data = compressed
	}
	log.Debugf("writing %d bytes of data to pulsar", len(data))
	w.in <- string(data)
	return nil
}
