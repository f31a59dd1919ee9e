package embedded

/*
 * embedded writer writes to a filesystem-backed persistent FIFO queue.
 * Records are compressed before being enqueued when compress is set.
 */

import (
	"fmt"
	"os"

	log "freelaw.courtlistener.cl-update-index/pkg/logging"
	p "freelaw.courtlistener.cl-update-index/pkg/pipeline"
	t "freelaw.courtlistener.cl-update-index/pkg/pipeline/io/types"
	"freelaw.courtlistener.cl-update-index/pkg/pipeline/io/utils"
	"heckel.io/pqueue"
)

type Writer struct {
	cfg p.WriterParams
	pq  *pqueue.Queue
}

func NewWriter(config p.WriterParams) (t.Writer, error) {
	if config.Path == nil || *config.Path == "" {
		return nil, fmt.Errorf("embedded pipeline writer requires a path")
	}
	return &Writer{
		cfg: config,
	}, nil
}

func (w *Writer) Open() (err error) {
	err = os.MkdirAll(*w.cfg.Path, os.ModePerm)
	if err != nil {
		return err
	}

	w.pq, err = pqueue.New(*w.cfg.Path)
	return err
}

func (w *Writer) Close() {
	// Nothing to do...
}

func (w *Writer) Write(data []byte) error {
	if w.pq == nil {
		return fmt.Errorf("embedded queue %v is not open", *w.cfg.Path)
	}
	if w.cfg.Compress {
		compressed, err := utils.Compress(data)
		if err != nil {
			return err
		}
		data = compressed
	}
	log.Debugf("writing %d bytes of data to queue: %v", len(data), *w.cfg.Path)
	return w.pq.Enqueue(data)
}
