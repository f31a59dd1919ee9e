package indexer

/*
 * indexer adds and updates records in a search index. Bulk operations stream the store through the
 * dispatch batcher; explicit id lists go out as a single per-type task.
 */

import (
	"context"
	"fmt"
	"io"
	"time"

	"freelaw.courtlistener.cl-update-index/pkg/dispatch"
	log "freelaw.courtlistener.cl-update-index/pkg/logging"
	"freelaw.courtlistener.cl-update-index/pkg/records"
	"freelaw.courtlistener.cl-update-index/pkg/tasks"
)

// Options are fixed for one invocation
type Options struct {
	Type      records.Type
	IndexURL  string
	Verbosity int
	PageSize  int
	Dispatch  dispatch.Config
}

type Indexer struct {
	store    records.Store
	executor tasks.Executor
	opts     Options
	out      io.Writer
}

// New writes operator messages and progress to out
func New(store records.Store, executor tasks.Executor, opts Options, out io.Writer) *Indexer {
	return &Indexer{store: store, executor: executor, opts: opts, out: out}
}

func (i *Indexer) say(format string, args ...interface{}) {
	if i.opts.Verbosity >= 1 && i.out != nil {
		fmt.Fprintf(i.out, format+"\n", args...)
	}
}

// AddOrUpdateAll indexes every record of the type
func (i *Indexer) AddOrUpdateAll(ctx context.Context) (dispatch.Report, error) {
	i.say("Adding or updating all items...")
	return i.run(ctx, records.All())
}

// AddOrUpdateByDatetime indexes the records created at or after ts
func (i *Indexer) AddOrUpdateByDatetime(ctx context.Context, ts time.Time) (dispatch.Report, error) {
	i.say("Adding items created since %s", ts.Format("2006-01-02 15:04:05"))
	return i.run(ctx, records.Since(ts, true))
}

// AddOrUpdate indexes the given records with one task and waits for it
func (i *Indexer) AddOrUpdate(ctx context.Context, ids []int64) (tasks.Result, error) {
	i.say("Adding or updating item(s): %v", ids)
	sig := tasks.NewSignature(i.opts.Type.UpdateTask(), i.opts.Type, ids, i.opts.IndexURL)
	group, err := i.executor.ApplyAsync(ctx, []tasks.Signature{sig})
	if err != nil {
		return tasks.Result{}, fmt.Errorf("submitting %v: %w", sig, err)
	}
	results, err := group.Join(context.WithoutCancel(ctx), i.opts.Dispatch.Timeout())
	if err != nil {
		return tasks.Result{}, fmt.Errorf("waiting for %v: %w", sig, err)
	}
	if len(results) == 0 {
		return tasks.Result{}, fmt.Errorf("no result for %v", sig)
	}
	return results[0], results[0].Err()
}

func (i *Indexer) run(ctx context.Context, crit records.Criterion) (dispatch.Report, error) {
	seq, err := records.Open(ctx, i.store, i.opts.Type, crit, i.opts.PageSize)
	if err != nil {
		return dispatch.Report{}, err
	}
	log.Infof("indexing %d %s records (%s) into %s", seq.Total(), i.opts.Type, crit, i.opts.IndexURL)

	b := dispatch.NewBatcher(i.executor, i.opts.Type, i.opts.Dispatch)
	b.Verbosity = i.opts.Verbosity
	// the progress line is written at every verbosity
	b.Progress = dispatch.NewProgress(i.out, i.opts.Type)

	newTask := func(ids []int64) tasks.Signature {
		return tasks.NewSignature(tasks.ADD_OR_UPDATE_ITEMS, i.opts.Type, ids, i.opts.IndexURL)
	}
	report, err := b.Run(ctx, seq, newTask)
	if err != nil {
		return report, err
	}
	if failed := report.Failed(); failed > 0 {
		log.Warnf("%d of %d tasks failed", failed, len(report.Results))
	}
	return report, nil
}
