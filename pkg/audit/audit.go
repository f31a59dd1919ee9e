package audit

/*
 * audit forwards the outcome of every joined task to an external log collector. Executor wraps any
 * tasks.Executor, so the local and broker executors are audited the same way.
 */

import (
	"context"
	"time"

	log "freelaw.courtlistener.cl-update-index/pkg/logging"
	"freelaw.courtlistener.cl-update-index/pkg/tasks"
)

const DEFAULT_TAG = "cl-update-index.task"

// Config is the audit section of the configuration. A blank address disables auditing.
type Config struct {
	Address     string `json:"address" yaml:"address"`
	Tag         string `json:"tag" yaml:"tag"`
	Buffered    bool   `json:"buffered" yaml:"buffered"`
	BufferLimit int    `json:"buffer_limit" yaml:"buffer_limit"`
}

// Sink receives one record per task result
type Sink interface {
	Post(tag string, record map[string]interface{}) error
	Close() error
}

// Executor posts the results of every group it joins to a sink
type Executor struct {
	tasks.Executor
	sink Sink
	tag  string
}

func NewExecutor(executor tasks.Executor, sink Sink, tag string) *Executor {
	if tag == "" {
		tag = DEFAULT_TAG
	}
	return &Executor{Executor: executor, sink: sink, tag: tag}
}

func (e *Executor) ApplyAsync(ctx context.Context, sigs []tasks.Signature) (tasks.Group, error) {
	g, err := e.Executor.ApplyAsync(ctx, sigs)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]tasks.Signature, len(sigs))
	for _, sig := range sigs {
		byID[sig.ID] = sig
	}
	return &group{Group: g, e: e, sigs: byID}, nil
}

// Close closes the wrapped executor, then the sink
func (e *Executor) Close() error {
	err := e.Executor.Close()
	if serr := e.sink.Close(); serr != nil && err == nil {
		err = serr
	}
	return err
}

type group struct {
	tasks.Group
	e    *Executor
	sigs map[string]tasks.Signature
}

func (g *group) Join(ctx context.Context, timeout time.Duration) ([]tasks.Result, error) {
	results, err := g.Group.Join(ctx, timeout)
	for _, res := range results {
		if perr := g.e.sink.Post(g.e.tag, Record(g.ID(), g.sigs[res.TaskID], res)); perr != nil {
			log.Warnf("auditing task %s: %v", res.TaskID, perr)
		}
	}
	return results, err
}

// Record is the audit record of one task
func Record(groupID string, sig tasks.Signature, res tasks.Result) map[string]interface{} {
	status := "success"
	if res.Error != "" {
		status = "failed"
	}
	record := map[string]interface{}{
		"group_id":    groupID,
		"task_id":     res.TaskID,
		"task":        res.Name,
		"type":        sig.Type.String(),
		"index_url":   sig.IndexURL,
		"items":       len(sig.IDs),
		"count":       res.Count,
		"status":      status,
		"duration_ms": res.Duration.Milliseconds(),
	}
	if res.Error != "" {
		record["error"] = res.Error
	}
	return record
}
