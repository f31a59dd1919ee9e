package broker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"freelaw.courtlistener.cl-update-index/pkg/cache"
	log "freelaw.courtlistener.cl-update-index/pkg/logging"
	"freelaw.courtlistener.cl-update-index/pkg/monitoring"
	pio "freelaw.courtlistener.cl-update-index/pkg/pipeline/io/types"
	"freelaw.courtlistener.cl-update-index/pkg/tasks"
	"freelaw.courtlistener.cl-update-index/pkg/workerpool"
)

const DEFAULT_IDLE = 5 * time.Second

// Consumer runs the tasks read from a pipeline reader on a worker pool
type Consumer struct {
	reader  pio.Reader
	results cache.Cache
	env     tasks.Env
	jobs    chan interface{}
	pool    *workerpool.WorkerPool

	// Idle is the pause after the queue was found empty
	Idle time.Duration
	// ResultsTTL bounds how long an uncollected result is kept
	ResultsTTL time.Duration
}

func NewConsumer(reader pio.Reader, results cache.Cache, env tasks.Env, concurrency int) *Consumer {
	c := &Consumer{
		reader:     reader,
		results:    results,
		env:        env,
		jobs:       make(chan interface{}),
		Idle:       DEFAULT_IDLE,
		ResultsTTL: DEFAULT_RESULTS_TTL,
	}
	c.pool = workerpool.NewWorkerPool("index-worker", c.jobs, concurrency, c.handle)
	return c
}

func (c *Consumer) handle(data interface{}) {
	sig, ok := data.(tasks.Signature)
	if !ok {
		log.Errorf("index worker received unexpected job %T", data)
		return
	}
	// a task that started is allowed to finish during shutdown
	res := tasks.Execute(context.Background(), c.env, sig, monitoring.PROM_LABEL_COMPONENT_WORKER)
	if err := c.results.Set(ResultKey(sig.ID), res, c.ResultsTTL); err != nil {
		log.Errorf("storing result of %v: %v", sig, err)
	}
}

// Run reads and dispatches tasks until ctx is cancelled or the reader is closed. Running tasks
// are waited for before Run returns.
func (c *Consumer) Run(ctx context.Context) error {
	c.pool.Start()
	defer c.pool.Stop()

	for {
		if ctx.Err() != nil {
			return nil
		}

		data, err := c.reader.Read()
		switch {
		case errors.Is(err, pio.ErrQueueEmpty):
			log.Debugf("task queue is empty. sleeping %v...", c.Idle)
			if !sleep(ctx, c.Idle) {
				return nil
			}
			continue
		case errors.Is(err, pio.ErrReaderClosed):
			log.Infof("task reader closed")
			return nil
		case err != nil:
			log.Errorf("reading task: %v. retrying in %v...", err, c.Idle)
			if !sleep(ctx, c.Idle) {
				return nil
			}
			continue
		}

		var sig tasks.Signature
		if err := json.Unmarshal(data, &sig); err != nil || sig.ID == "" || sig.Name == "" {
			log.Errorf("discarding malformed task envelope: %s", string(data))
			c.reject(data)
			continue
		}
		log.Debugf("received %v", sig)

		select {
		case c.jobs <- sig:
		case <-ctx.Done():
			// the envelope was consumed but never run; report it so the publisher doesn't wait for the timeout
			res := tasks.Result{TaskID: sig.ID, Name: sig.Name, Error: "worker shutting down"}
			_ = c.results.Set(ResultKey(sig.ID), res, c.ResultsTTL)
			return nil
		}
	}
}

// reject fails the task of a malformed envelope when its id can still be read, so the publisher
// doesn't wait for the wave timeout
func (c *Consumer) reject(data []byte) {
	var envelope struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil || envelope.ID == "" {
		return
	}
	res := tasks.Result{TaskID: envelope.ID, Name: envelope.Name, Error: "malformed task envelope"}
	if err := c.results.Set(ResultKey(envelope.ID), res, c.ResultsTTL); err != nil {
		log.Errorf("storing result of malformed task %s: %v", envelope.ID, err)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
