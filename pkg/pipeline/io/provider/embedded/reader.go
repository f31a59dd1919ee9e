package embedded

/*
 * embedded reader reads from a filesystem-backed persistent FIFO queue.
 */

import (
	"fmt"
	"os"
	"sync"

	log "freelaw.courtlistener.cl-update-index/pkg/logging"
	p "freelaw.courtlistener.cl-update-index/pkg/pipeline"
	t "freelaw.courtlistener.cl-update-index/pkg/pipeline/io/types"
	"freelaw.courtlistener.cl-update-index/pkg/pipeline/io/utils"
	"heckel.io/pqueue"
)

type Reader struct {
	cfg  p.ReaderParams
	pq   *pqueue.Queue
	once sync.Once
}

func NewReader(config p.ReaderParams) (t.Reader, error) {
	if config.Path == nil || *config.Path == "" {
		return nil, fmt.Errorf("embedded pipeline reader requires a path")
	}
	return &Reader{
		cfg: config,
	}, nil
}

func (r *Reader) Open() (err error) {
	r.once.Do(func() {
		if err = os.MkdirAll(*r.cfg.Path, os.ModePerm); err != nil {
			return
		}
		r.pq, err = pqueue.New(*r.cfg.Path)
	})
	if err == nil && r.pq == nil {
		err = fmt.Errorf("embedded queue %v failed to open", *r.cfg.Path)
	}
	return err
}

func (r *Reader) Close() {
	// Nothing to do...
}

func (r *Reader) Read() ([]byte, error) {
	if err := r.Open(); err != nil {
		return nil, err
	}

	data, err := r.pq.Dequeue()
	if err != nil {
		if err.Error() == t.ErrQueueEmpty.Error() {
			return nil, t.ErrQueueEmpty
		}
		return nil, err
	}
	log.Debugf("read %d bytes of data from queue: %v", len(data), *r.cfg.Path)
	decompressed := utils.Decompress(data)
	record, err := utils.CheckPayload(decompressed)
	if err != nil {
		return decompressed, fmt.Errorf(t.InvalidPayloadError, err, string(decompressed))
	}
	return record, nil
}
