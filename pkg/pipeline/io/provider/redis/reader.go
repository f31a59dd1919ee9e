package redis

/*
 * redis reader pops task envelopes from a redis list. Unlike pub/sub, a list keeps messages
 * published while no worker is listening.
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
	"github.com/redis/go-redis/v9"
)

const DEFAULT_LIST = "cl-update-index:tasks"

type Reader struct {
	client  *redis.Client
	list    string
	timeout time.Duration
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewReader(config pipeline.ReaderParams) (io.Reader, error) {
	if config.Host == nil {
		return nil, errors.New("error: redis host cannot be nil")
	}
	options := &redis.Options{
		Addr:     *config.Host,
		Password: config.Password,
		DB:       config.DB,
	}
	logging.Debugf("redis options: addr=%v db=%v", options.Addr, options.DB)

	reader := Reader{
		client:  redis.NewClient(options),
		list:    listName(config.Channel),
		timeout: time.Duration(config.OperationTimeout) * time.Second,
	}
	if reader.timeout <= 0 {
		reader.timeout = time.Second
	}
	reader.ctx, reader.cancel = context.WithCancel(context.Background())
	return &reader, nil
}

func listName(channel string) string {
	if channel == "" {
		return DEFAULT_LIST
	}
	return channel
}

func (r *Reader) Open() (err error) {
	ctx, cancel := context.WithTimeout(r.ctx, r.timeout)
	defer cancel()
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *Reader) Close() {
	r.cancel()
	_ = r.client.Close()
	logging.Debugf("redis reader closed")
}

func (r *Reader) Read() ([]byte, error) {
	res, err := r.client.BRPop(r.ctx, r.timeout, r.list).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, io.ErrQueueEmpty
	case r.ctx.Err() != nil:
		return nil, io.ErrReaderClosed
	case err != nil:
		return nil, err
	}
	// BRPOP answers [list, value]
	payload := []byte(res[1])
	logging.Debugf("read %d bytes of data from redis list %v", len(payload), r.list)
	record, err := utils.CheckPayload(utils.Decompress(payload))
	if err != nil {
		return payload, fmt.Errorf(io.InvalidPayloadError, err, string(payload))
	}
	return record, nil
}
