package broker

/*
 * broker distributes tasks to cl-index-worker processes. Signatures are published as json envelopes
 * on a pipeline writer; workers consume them with a Consumer, run them and store each Result in the
 * result cache under the task id, where the publishing side polls for it.
 */

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"freelaw.courtlistener.cl-update-index/pkg/cache"
	log "freelaw.courtlistener.cl-update-index/pkg/logging"
	pio "freelaw.courtlistener.cl-update-index/pkg/pipeline/io/types"
	"freelaw.courtlistener.cl-update-index/pkg/tasks"
)

const (
	RESULT_KEY_PREFIX   = "result:"
	DEFAULT_POLL        = 500 * time.Millisecond
	DEFAULT_RESULTS_TTL = 24 * time.Hour
)

// ResultKey is the cache key a task's result is stored under
func ResultKey(taskID string) string {
	return RESULT_KEY_PREFIX + taskID
}

type Executor struct {
	mu      sync.Mutex
	writer  pio.Writer
	results cache.Cache
	poll    time.Duration
}

var _ tasks.Executor = (*Executor)(nil)

// New publishes on an opened writer and reads results from results. poll <= 0 uses DEFAULT_POLL.
func New(writer pio.Writer, results cache.Cache, poll time.Duration) *Executor {
	if poll <= 0 {
		poll = DEFAULT_POLL
	}
	return &Executor{
		writer:  writer,
		results: results,
		poll:    poll,
	}
}

func (e *Executor) ApplyAsync(_ context.Context, sigs []tasks.Signature) (tasks.Group, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	g := &group{
		id:      tasks.NewGroupID(),
		taskIDs: make([]string, 0, len(sigs)),
		results: e.results,
		poll:    e.poll,
	}
	for _, sig := range sigs {
		sig.GroupID = g.id
		data, err := json.Marshal(sig)
		if err != nil {
			return nil, fmt.Errorf("encoding %v: %w", sig, err)
		}
		if err := e.writer.Write(data); err != nil {
			return nil, fmt.Errorf("publishing %v: %w", sig, err)
		}
		g.taskIDs = append(g.taskIDs, sig.ID)
	}
	log.Debugf("published group %s of %d tasks", g.id, len(sigs))
	return g, nil
}

func (e *Executor) Close() error {
	e.writer.Close()
	return e.results.Close()
}

type group struct {
	id      string
	taskIDs []string
	results cache.Cache
	poll    time.Duration
}

func (g *group) ID() string {
	return g.id
}

func (g *group) Len() int {
	return len(g.taskIDs)
}

// Join polls the result cache until every task reported. Collected results are removed from the cache.
func (g *group) Join(ctx context.Context, timeout time.Duration) ([]tasks.Result, error) {
	out := make([]tasks.Result, 0, len(g.taskIDs))
	pending := append([]string(nil), g.taskIDs...)

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	ticker := time.NewTicker(g.poll)
	defer ticker.Stop()

	for {
		remaining := pending[:0]
		for _, id := range pending {
			var res tasks.Result
			if g.results.Get(ResultKey(id), &res) {
				out = append(out, res)
				g.results.Delete(ResultKey(id))
				continue
			}
			remaining = append(remaining, id)
		}
		pending = remaining
		if len(pending) == 0 {
			return out, nil
		}

		select {
		case <-ticker.C:
		case <-expired:
			return out, tasks.ErrJoinTimeout
		case <-ctx.Done():
			return out, ctx.Err()
		}
	}
}
