package audit

/*
 * FluentSink writes audit records to fluentd's in_forward TCP input
 */

import (
	"context"
	"time"

	log "freelaw.courtlistener.cl-update-index/pkg/logging"
	fluent "github.com/lestrrat-go/fluent-client"
)

type FluentSink struct {
	address string
	client  fluent.Client
	done    chan struct{}
	pingErr chan error
}

// NewFluentSink connects to the fluentd endpoint in config and starts monitoring it
func NewFluentSink(config Config) (*FluentSink, error) {
	client, err := fluent.New(
		fluent.WithAddress(config.Address),
		fluent.WithBuffered(config.Buffered),
		fluent.WithBufferLimit(config.BufferLimit))
	if err != nil {
		return nil, err
	}

	s := &FluentSink{
		address: config.Address,
		client:  client,
		done:    make(chan struct{}),
		pingErr: make(chan error, 1),
	}
	s.monitor()
	return s, nil
}

// monitor() pings the fluentd endpoint once every minute to check for liveness
func (f *FluentSink) monitor() {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		defer cancel()
		for {
			select {
			case <-f.done:
				log.Debugf("stopping fluentd endpoint monitor")
				return
			case e := <-f.pingErr:
				log.Errorf("fluentd %s: %v", f.address, e)
			}
		}
	}()

	go fluent.Ping(ctx, f.client, "ping", "cl-update-index audit monitor", fluent.WithPingInterval(60*time.Second), fluent.WithPingResultChan(f.pingErr))
}

func (f *FluentSink) Post(tag string, record map[string]interface{}) error {
	return f.client.Post(tag, record, fluent.WithSyncAppend(true))
}

// Close flushes pending records, force-closing the client after 5 seconds
func (f *FluentSink) Close() error {
	close(f.done)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := f.client.Shutdown(ctx); err != nil {
		log.Errorf("failed to shutdown fluentd client properly. force-closing it")
		return f.client.Close()
	}
	return nil
}
