package workerpool

import (
	"sync"
	"sync/atomic"
	"time"

	log "freelaw.courtlistener.cl-update-index/pkg/logging"
	"github.com/google/uuid"
)

type Handler func(interface{})

// WorkerPool runs handler on everything received from ch using size goroutines
type WorkerPool struct {
	ID            string
	name          string
	size          int
	ch            chan interface{}
	quit          chan struct{}
	handler       Handler
	awaitShutdown *sync.WaitGroup

	started atomic.Bool
	busy    atomic.Int32
}

func NewWorkerPool(name string, ch chan interface{}, size int, handler Handler) *WorkerPool {
	if size < 1 {
		size = 1
	}
	id := uuid.New()
	return &WorkerPool{
		ID:            id.String(),
		name:          name,
		size:          size,
		ch:            ch,
		quit:          make(chan struct{}),
		handler:       handler,
		awaitShutdown: &sync.WaitGroup{},
	}
}

func (w *WorkerPool) runHandler(nbr int) {
	defer w.awaitShutdown.Done()
	for {
		select {
		case data, ok := <-w.ch:
			if !ok {
				log.Debugf("%v [#%v] input closed", w.name, nbr)
				return
			}
			w.busy.Add(1)
			start := time.Now()
			id := uuid.New()
			log.Debugf("%v [#%v] worker [%v] calling handler: [%v]...", w.name, nbr, w.ID, id.String())
			w.handler(data)
			log.Debugf("%v [#%v] handler [%v] finished in %v ms [%v]...", w.name, nbr, w.ID, time.Since(start).Milliseconds(), id.String())
			w.busy.Add(-1)
		case <-w.quit:
			log.Debugf("%v [#%v] received shutdown signal", w.name, nbr)
			return
		}
	}
}

// Size is the number of worker goroutines
func (w *WorkerPool) Size() int {
	return w.size
}

// Busy is the number of handlers currently running
func (w *WorkerPool) Busy() int {
	return int(w.busy.Load())
}

func (w *WorkerPool) Start() {
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	for i := 0; i < w.size; i++ {
		w.awaitShutdown.Add(1)
		go w.runHandler(i)
	}
}

// Stop waits for running handlers to return. Work still queued in ch is left there.
func (w *WorkerPool) Stop() {
	if !w.started.CompareAndSwap(true, false) {
		return
	}
	close(w.quit)
	w.awaitShutdown.Wait()
	log.Debugf("%v done shutting down", w.name)
}
