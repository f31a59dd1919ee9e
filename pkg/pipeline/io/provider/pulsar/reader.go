package pulsar

/*
 * pulsar reader reads task envelopes from a pulsar topic on a shared subscription.
 */

import (
	"context"
	"errors"
	"fmt"
	"time"

	"freelaw.courtlistener.cl-update-index/pkg/logging"
	"freelaw.courtlistener.cl-update-index/pkg/pipeline"
	io "freelaw.courtlistener.cl-update-index/pkg/pipeline/io/types"
	"freelaw.courtlistener.cl-update-index/pkg/pipeline/io/utils"
	"github.com/apache/pulsar-client-go/pulsar"
	extc "github.com/reugn/go-streams/extension"
	"github.com/reugn/go-streams/flow"
	extp "github.com/reugn/go-streams/pulsar"
)

const (
	DEFAULT_SUBSCRIPTION = "cl-index-worker"
	DEFAULT_TOPIC        = "cl-update-index-tasks"
)

type Reader struct {
	clientOptions   *pulsar.ClientOptions
	consumerOptions *pulsar.ConsumerOptions
	source          *extp.PulsarSource
	sink            *extc.ChanSink
	mapFlow         *flow.PassThrough
	out             chan interface{}
	timeout         time.Duration
	ctx             context.Context
	cancel          context.CancelFunc
}

func NewReader(config pipeline.ReaderParams) (io.Reader, error) {
	if config.Host == nil {
		return nil, errors.New("error: pulsar host cannot be nil")
	}

	options := &pulsar.ConsumerOptions{
		Topic:            DEFAULT_TOPIC,
		SubscriptionName: DEFAULT_SUBSCRIPTION,
		// workers split the topic between them
		Type: pulsar.Shared,
	}
	if config.Topic != nil {
		options.Topic = *config.Topic
	}
	if config.Group != nil {
		options.SubscriptionName = *config.Group
	}

	switch config.Offset {
	case "earliest":
		options.SubscriptionInitialPosition = pulsar.SubscriptionPositionEarliest
	case "latest":
		options.SubscriptionInitialPosition = pulsar.SubscriptionPositionLatest
	default:
		// none
	}

	reader := Reader{
		mapFlow:         flow.NewPassThrough(),
		clientOptions:   &pulsar.ClientOptions{URL: fmt.Sprintf("pulsar://%s", *config.Host), OperationTimeout: 30 * time.Second},
		consumerOptions: options,
		out:             make(chan interface{}),
		timeout:         time.Duration(config.OperationTimeout) * time.Second,
	}
	if reader.timeout <= 0 {
		reader.timeout = time.Second
	}
	reader.ctx, reader.cancel = context.WithCancel(context.Background())
	reader.sink = extc.NewChanSink(reader.out)

	var err error
	reader.source, err = extp.NewPulsarSource(reader.ctx, reader.clientOptions, reader.consumerOptions)
	if err != nil {
		reader.cancel()
		return nil, fmt.Errorf("creating pulsar source for %v: %w", options.Topic, err)
	}
	return &reader, nil
}

func (r *Reader) Open() (err error) {
	go r.source.
		Via(r.mapFlow).
		To(r.sink)
	return nil
}

func (r *Reader) Close() {
	r.cancel()
	logging.Debugf("pulsar reader closed")
}

func (r *Reader) Read() ([]byte, error) {
	var data interface{}
	var ok bool
	select {
	case data, ok = <-r.out:
		if !ok {
			return nil, io.ErrReaderClosed
		}
	case <-time.After(r.timeout):
		return nil, io.ErrQueueEmpty
	}

	msg, ok := data.(pulsar.Message)
	if !ok {
		return nil, errors.New("unknown payload type")
	}
	logging.Debugf("read %d bytes from pulsar %v", len(msg.Payload()), msg.Topic())
	record, err := utils.CheckPayload(utils.Decompress(msg.Payload()))
	if err != nil {
		return msg.Payload(), fmt.Errorf(io.InvalidPayloadError, err, string(msg.Payload()))
	}
	return record, nil
}
