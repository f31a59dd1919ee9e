package maintenance

/*
 * maintenance removes documents from an index and commits or optimizes it. Bulk deletes are
 * confirmed with the operator first; deleting explicit ids is not.
 */

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"freelaw.courtlistener.cl-update-index/pkg/dispatch"
	log "freelaw.courtlistener.cl-update-index/pkg/logging"
	"freelaw.courtlistener.cl-update-index/pkg/records"
	"freelaw.courtlistener.cl-update-index/pkg/search"
	"freelaw.courtlistener.cl-update-index/pkg/tasks"
	"freelaw.courtlistener.cl-update-index/pkg/types"
	"go.uber.org/multierr"
)

// Gate confirms a delete of count documents. confirm.Gate is one.
type Gate interface {
	Proceed(count int) bool
}

// Options are fixed for one invocation
type Options struct {
	Type      records.Type
	IndexURL  string
	Verbosity int
	PageSize  int
	Dispatch  dispatch.Config
}

type Controller struct {
	store     records.Store
	executor  tasks.Executor
	openIndex func(ctx context.Context, url string) (search.Index, error)
	gate      Gate
	opts      Options
	out       io.Writer
}

func New(store records.Store, executor tasks.Executor, openIndex func(ctx context.Context, url string) (search.Index, error), gate Gate, opts Options, out io.Writer) *Controller {
	return &Controller{
		store:     store,
		executor:  executor,
		openIndex: openIndex,
		gate:      gate,
		opts:      opts,
		out:       out,
	}
}

func (c *Controller) say(format string, args ...interface{}) {
	if c.opts.Verbosity >= 1 && c.out != nil {
		fmt.Fprintf(c.out, format+"\n", args...)
	}
}

func (c *Controller) index(ctx context.Context) (search.Index, error) {
	return c.openIndex(ctx, c.opts.IndexURL)
}

// DeleteAll empties the index. It reports false when the operator declined.
func (c *Controller) DeleteAll(ctx context.Context) (bool, error) {
	index, err := c.index(ctx)
	if err != nil {
		return false, err
	}
	count, err := index.Count(ctx, search.All())
	if err != nil {
		return false, err
	}
	if !c.gate.Proceed(count) {
		return false, nil
	}

	c.say("Removing all items from your index because you said so.")
	c.say("  Marking all items as deleted...")
	if err := index.DeleteAll(ctx); err != nil {
		return false, err
	}
	c.say("  Committing the deletion...")
	if err := index.Commit(ctx); err != nil {
		return false, err
	}
	c.say("\nDone. The index located at: %s\nis now empty.", index.URL())
	return true, nil
}

// DeleteByTime removes the documents of the store records created strictly after ts
func (c *Controller) DeleteByTime(ctx context.Context, ts time.Time) (bool, error) {
	seq, err := records.Open(ctx, c.store, c.opts.Type, records.Since(ts, false), c.opts.PageSize)
	if err != nil {
		return false, err
	}
	if !c.gate.Proceed(seq.Total()) {
		return false, nil
	}
	index, err := c.index(ctx)
	if err != nil {
		return false, err
	}

	c.say("Deleting all item(s) newer than %s", ts.Format("2006-01-02 15:04:05"))
	builder := dispatch.NewBuilder(c.opts.Dispatch.BundleSize)
	deleted := 0
	flush := func(ids []int64) error {
		if err := index.Delete(ctx, ids); err != nil {
			return err
		}
		deleted += len(ids)
		return nil
	}
	for {
		rec, ok, err := seq.Next(ctx)
		if err != nil {
			return false, err
		}
		if !ok {
			break
		}
		if bundle, sealed := builder.Add(rec.ID, false); sealed {
			if err := flush(bundle); err != nil {
				return false, err
			}
		}
	}
	if bundle, sealed := builder.Flush(); sealed {
		if err := flush(bundle); err != nil {
			return false, err
		}
	}
	log.Infof("deleted %d documents newer than %s from %s", deleted, ts.Format(time.RFC3339), index.URL())

	if err := index.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteByPredicate removes the documents matching a query expression such as {'court_id': 'haw'}
func (c *Controller) DeleteByPredicate(ctx context.Context, expr string) (bool, error) {
	q, err := search.ParseQuery(expr)
	if err != nil {
		return false, &types.UsageError{Msg: "argument --query", Cause: err}
	}
	index, err := c.index(ctx)
	if err != nil {
		return false, err
	}
	count, err := index.Count(ctx, q)
	if err != nil {
		return false, err
	}
	if !c.gate.Proceed(count) {
		return false, nil
	}

	c.say("Deleting all item(s) that match the query: %s", expr)
	if err := index.DeleteByQuery(ctx, q); err != nil {
		return false, err
	}
	if err := index.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteByIDs removes the given documents with a single task and waits for it. Nothing is confirmed.
func (c *Controller) DeleteByIDs(ctx context.Context, ids []int64) (tasks.Result, error) {
	c.say("Deleting items(s): %v", ids)
	sig := tasks.NewSignature(tasks.DELETE_ITEMS, c.opts.Type, ids, c.opts.IndexURL)
	group, err := c.executor.ApplyAsync(ctx, []tasks.Signature{sig})
	if err != nil {
		return tasks.Result{}, fmt.Errorf("submitting %v: %w", sig, err)
	}
	results, err := group.Join(context.WithoutCancel(ctx), c.opts.Dispatch.Timeout())
	if err != nil {
		return tasks.Result{}, fmt.Errorf("waiting for %v: %w", sig, err)
	}
	if len(results) == 0 {
		return tasks.Result{}, fmt.Errorf("no result for %v", sig)
	}
	return results[0], results[0].Err()
}

// Commit makes pending changes of the index visible
func (c *Controller) Commit(ctx context.Context) error {
	index, err := c.index(ctx)
	if err != nil {
		return err
	}
	c.say("Committing all pending changes in the index at %s", index.URL())
	return index.Commit(ctx)
}

// Optimize merges the segments of the index
func (c *Controller) Optimize(ctx context.Context) error {
	index, err := c.index(ctx)
	if err != nil {
		return err
	}
	c.say("Optimizing the index at %s", index.URL())
	return index.Optimize(ctx)
}

// OptimizeAll optimizes every index in urls. Indexes whose schema can't be loaded are skipped with a
// warning; any other failure is returned once every index was attempted.
func (c *Controller) OptimizeAll(ctx context.Context, urls map[string]string) error {
	c.say("Optimizing all indexes in the config.")

	names := make([]string, 0, len(urls))
	for name := range urls {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs error
	seen := make(map[string]bool, len(urls))
	for _, name := range names {
		url := urls[name]
		if url == "" || seen[url] {
			continue
		}
		seen[url] = true

		index, err := c.openIndex(ctx, url)
		if errors.Is(err, types.ErrSchemaLoad) {
			log.Warnf("Unable to load schema for index %s at %s. Skipping. %v", name, url, err)
			continue
		}
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("opening index %s: %w", name, err))
			continue
		}
		c.say("  Optimizing %s at %s", name, url)
		if err := index.Optimize(ctx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("optimizing index %s: %w", name, err))
		}
	}
	if errs == nil {
		c.say("Done.")
	}
	return errs
}
