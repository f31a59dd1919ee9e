package redis

/*
 * redis writer pushes task envelopes onto a redis list.
 */

import (
	"context"
	"errors"
	"time"

	log "freelaw.courtlistener.cl-update-index/pkg/logging"
	"freelaw.courtlistener.cl-update-index/pkg/pipeline"
	io "freelaw.courtlistener.cl-update-index/pkg/pipeline/io/types"
	"freelaw.courtlistener.cl-update-index/pkg/pipeline/io/utils"
	"github.com/redis/go-redis/v9"
)

type Writer struct {
	client   *redis.Client
	list     string
	timeout  time.Duration
	compress bool
}

func NewWriter(config pipeline.WriterParams) (io.Writer, error) {
	if config.Host == nil {
		return nil, errors.New("error: redis host cannot be nil")
	}
	options := &redis.Options{
		Addr:     *config.Host,
		Password: config.Password,
		DB:       config.DB,
	}

	writer := Writer{
		client:   redis.NewClient(options),
		list:     listName(config.Channel),
		timeout:  time.Duration(config.OperationTimeout) * time.Second,
		compress: config.Compress,
	}
	if writer.timeout <= 0 {
		writer.timeout = 30 * time.Second
	}
	return &writer, nil
}

func (w *Writer) Open() (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	return w.client.Ping(ctx).Err()
}

func (w *Writer) Close() {
	_ = w.client.Close()
}

func (w *Writer) Write(data []byte) error {
	if w.compress {
		compressed, err := utils.Compress(data)
		if err != nil {
			return err
		}
		data = compressed
	}
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	log.Debugf("writing %d bytes of data to redis list %v", len(data), w.list)
	return w.client.LPush(ctx, w.list, data).Err()
}
