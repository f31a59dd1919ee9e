package local

/*
 * local runs tasks in process on a worker pool. It is the executor used when no broker is
 * configured and the one the end to end tests exercise.
 */

import (
	"context"
	"sync"
	"time"

	log "freelaw.courtlistener.cl-update-index/pkg/logging"
	"freelaw.courtlistener.cl-update-index/pkg/monitoring"
	"freelaw.courtlistener.cl-update-index/pkg/tasks"
	"freelaw.courtlistener.cl-update-index/pkg/workerpool"
)

const DEFAULT_CONCURRENCY = 4

type job struct {
	ctx   context.Context
	sig   tasks.Signature
	group *group
}

type Executor struct {
	env  tasks.Env
	jobs chan interface{}
	pool *workerpool.WorkerPool

	// done stops feeders of groups that were never joined
	done      chan struct{}
	closeOnce sync.Once
	feeders   sync.WaitGroup
}

var _ tasks.Executor = (*Executor)(nil)

// New starts a pool of concurrency workers running tasks against env
func New(env tasks.Env, concurrency int) *Executor {
	if concurrency <= 0 {
		concurrency = DEFAULT_CONCURRENCY
	}
	e := &Executor{
		env:  env,
		jobs: make(chan interface{}),
		done: make(chan struct{}),
	}
	e.pool = workerpool.NewWorkerPool("local-executor", e.jobs, concurrency, e.handle)
	e.pool.Start()
	return e
}

func (e *Executor) handle(data interface{}) {
	j, ok := data.(job)
	if !ok {
		log.Errorf("local executor received unexpected job %T", data)
		return
	}
	j.group.results <- tasks.Execute(j.ctx, e.env, j.sig, monitoring.PROM_LABEL_COMPONENT_UPDATER)
}

// ApplyAsync queues sigs and returns without waiting for any of them
func (e *Executor) ApplyAsync(ctx context.Context, sigs []tasks.Signature) (tasks.Group, error) {
	g := &group{
		id:      tasks.NewGroupID(),
		size:    len(sigs),
		results: make(chan tasks.Result, len(sigs)),
	}
	// tasks outlive the caller's cancellation; only Close stops them
	taskCtx := context.WithoutCancel(ctx)

	e.feeders.Add(1)
	go func() {
		defer e.feeders.Done()
		for _, sig := range sigs {
			sig.GroupID = g.id
			select {
			case e.jobs <- job{ctx: taskCtx, sig: sig, group: g}:
			case <-e.done:
				return
			}
		}
	}()
	log.Debugf("submitted group %s of %d tasks", g.id, g.size)
	return g, nil
}

// Close stops accepting work and waits for running tasks
func (e *Executor) Close() error {
	e.closeOnce.Do(func() {
		close(e.done)
		e.feeders.Wait()
		e.pool.Stop()
	})
	return nil
}

type group struct {
	id      string
	size    int
	results chan tasks.Result
}

func (g *group) ID() string {
	return g.id
}

func (g *group) Len() int {
	return g.size
}

func (g *group) Join(ctx context.Context, timeout time.Duration) ([]tasks.Result, error) {
	out := make([]tasks.Result, 0, g.size)
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	for len(out) < g.size {
		select {
		case res := <-g.results:
			out = append(out, res)
		case <-expired:
			return out, tasks.ErrJoinTimeout
		case <-ctx.Done():
			return out, ctx.Err()
		}
	}
	return out, nil
}
