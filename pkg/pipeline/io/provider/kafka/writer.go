package kafka

/*
 * kafka writer writes task envelopes to a kafka topic.
 */

import (
	"fmt"

	log "freelaw.courtlistener.cl-update-index/pkg/logging"
	"freelaw.courtlistener.cl-update-index/pkg/pipeline"
	io "freelaw.courtlistener.cl-update-index/pkg/pipeline/io/types"
	"freelaw.courtlistener.cl-update-index/pkg/pipeline/io/utils"
	"github.com/IBM/sarama"
	extc "github.com/reugn/go-streams/extension"
	"github.com/reugn/go-streams/flow"
	extk "github.com/reugn/go-streams/kafka"
)

type Writer struct {
	config   *sarama.Config
	source   *extc.ChanSource
	mapFlow  *flow.PassThrough
	sink     *extk.KafkaSink
	in       chan interface{}
	compress bool
}

func NewWriter(config pipeline.WriterParams) (io.Writer, error) {
	writer := Writer{
		mapFlow:  flow.NewPassThrough(),
		in:       make(chan interface{}),
		compress: config.Compress,
	}

	writer.config = sarama.NewConfig()
	writer.config.Producer.Return.Successes = true
	writer.config.Version, _ = sarama.ParseKafkaVersion(KAFKA_VERSION)

	writer.source = extc.NewChanSource(writer.in)

	topic := DEFAULT_TOPIC
	if config.Topic != nil {
		topic = *config.Topic
	}

	var err error
	writer.sink, err = extk.NewKafkaSink(config.Hosts, writer.config, topic)
	if err != nil {
		return nil, fmt.Errorf("creating kafka sink for %v: %w", topic, err)
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
	log.Debugf("writing %d bytes of data to kafka", len(data))
	w.in <- string(data)
	return nil
}
