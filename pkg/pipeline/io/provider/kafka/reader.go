package kafka

/*
 * kafka reader reads task envelopes from a kafka topic. Workers share one consumer group so each
 * envelope is handled once.
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
	"github.com/IBM/sarama"
	"github.com/google/uuid"
	extc "github.com/reugn/go-streams/extension"
	"github.com/reugn/go-streams/flow"
	extk "github.com/reugn/go-streams/kafka"
)

const (
	KAFKA_VERSION = "2.8.1"
	DEFAULT_GROUP = "cl-index-worker"
	DEFAULT_TOPIC = "cl-update-index-tasks"
)

type Reader struct {
	config  *sarama.Config
	source  *extk.KafkaSource
	sink    *extc.ChanSink
	mapFlow *flow.PassThrough
	out     chan interface{}
	timeout time.Duration
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewReader(config pipeline.ReaderParams) (io.Reader, error) {
	reader := Reader{
		mapFlow: flow.NewPassThrough(),
		out:     make(chan interface{}),
		timeout: time.Duration(config.OperationTimeout) * time.Second,
	}
	if reader.timeout <= 0 {
		reader.timeout = time.Second
	}
	reader.ctx, reader.cancel = context.WithCancel(context.Background())
	reader.sink = extc.NewChanSink(reader.out)

	reader.config = sarama.NewConfig()
	reader.config.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	reader.config.Version, _ = sarama.ParseKafkaVersion(KAFKA_VERSION)
	reader.config.Consumer.Offsets.AutoCommit.Enable = config.AutoCommitOffsetEnabled

	switch config.Offset {
	case "latest":
		reader.config.Consumer.Offsets.Initial = sarama.OffsetNewest
	case "earliest":
		reader.config.Consumer.Offsets.Initial = sarama.OffsetOldest
	default:
		// none
	}

	groupID := DEFAULT_GROUP
	if config.Group != nil {
		groupID = *config.Group
	}
	// A unique group id makes every reader see every envelope. Only useful for debugging.
	if config.CreateUniqueGroupID {
		uid, _ := uuid.NewUUID()
		groupID = fmt.Sprintf("%v-%v", groupID, uid.String())
		logging.Infof("kafka pipeline reader group id: %v", groupID)
	}

	topic := DEFAULT_TOPIC
	if config.Topic != nil {
		topic = *config.Topic
	}

	var err error
	reader.source, err = extk.NewKafkaSource(reader.ctx,
		config.Hosts,
		groupID,
		reader.config,
		topic)
	if err != nil {
		reader.cancel()
		return nil, fmt.Errorf("creating kafka source for %v: %w", topic, err)
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
	logging.Debugf("kafka reader closed")
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

	switch msg := data.(type) {
	case nil:
		return nil, io.ErrReaderClosed
	case *sarama.ConsumerMessage:
		logging.Debugf("read %d bytes from kafka %v/%d@%d", len(msg.Value), msg.Topic, msg.Partition, msg.Offset)
		record, err := utils.CheckPayload(utils.Decompress(msg.Value))
		if err != nil {
			return msg.Value, fmt.Errorf(io.InvalidPayloadError, err, string(msg.Value))
		}
		return record, nil
	default:
		return nil, errors.New("unknown payload type")
	}
}
