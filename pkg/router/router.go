package router

/*
 * router maps the parsed command line onto indexer and maintenance operations:
 *
 *	mode    | everything      | datetime              | items            | query
 *	update  | AddOrUpdateAll  | AddOrUpdateByDatetime | AddOrUpdate(ids) | usage error
 *	delete  | DeleteAll       | DeleteByTime          | DeleteByIDs      | DeleteByPredicate
 *
 * followed by commit, optimize and optimize-everything, in that order.
 */

import (
	"context"
	"fmt"
	"time"

	"freelaw.courtlistener.cl-update-index/pkg/cli"
	"freelaw.courtlistener.cl-update-index/pkg/dispatch"
	log "freelaw.courtlistener.cl-update-index/pkg/logging"
	"freelaw.courtlistener.cl-update-index/pkg/records"
	"freelaw.courtlistener.cl-update-index/pkg/tasks"
	"freelaw.courtlistener.cl-update-index/pkg/types"
	"go.uber.org/multierr"
)

type Mode int

const (
	NoMode Mode = iota
	Update
	Delete
)

func (m Mode) String() string {
	switch m {
	case Update:
		return "update"
	case Delete:
		return "delete"
	}
	return "none"
}

// Plan is what one invocation will do
type Plan struct {
	Type     records.Type
	Mode     Mode
	Scope    records.Criterion
	HasScope bool

	Commit      bool
	Optimize    bool
	OptimizeAll bool
}

// Updater is implemented by indexer.Indexer
type Updater interface {
	AddOrUpdateAll(ctx context.Context) (dispatch.Report, error)
	AddOrUpdateByDatetime(ctx context.Context, ts time.Time) (dispatch.Report, error)
	AddOrUpdate(ctx context.Context, ids []int64) (tasks.Result, error)
}

// Maintainer is implemented by maintenance.Controller
type Maintainer interface {
	DeleteAll(ctx context.Context) (bool, error)
	DeleteByTime(ctx context.Context, ts time.Time) (bool, error)
	DeleteByPredicate(ctx context.Context, expr string) (bool, error)
	DeleteByIDs(ctx context.Context, ids []int64) (tasks.Result, error)
	Commit(ctx context.Context) error
	Optimize(ctx context.Context) error
	OptimizeAll(ctx context.Context, urls map[string]string) error
}

// NewPlan validates the arguments. Every usage error is raised here, before anything is touched.
func NewPlan(a cli.Arguments) (Plan, error) {
	if err := a.Validate(); err != nil {
		return Plan{}, err
	}

	p := Plan{
		Commit:      a.DoCommit,
		Optimize:    a.Optimize,
		OptimizeAll: a.OptimizeEverything,
	}
	switch {
	case a.Update:
		p.Mode = Update
	case a.Delete:
		p.Mode = Delete
	}
	if p.Mode == NoMode && !p.Commit && !p.Optimize && !p.OptimizeAll {
		return Plan{}, types.NewUsageError("nothing to do: use --update, --delete, --do-commit, --optimize or --optimize-everything")
	}

	if a.Type != "" {
		typ, err := records.ParseType(a.Type)
		if err != nil {
			return Plan{}, &types.UsageError{Msg: "argument --type", Cause: err}
		}
		p.Type = typ
	}

	p.HasScope = true
	switch {
	case a.Everything:
		p.Scope = records.All()
	case a.Datetime != "":
		ts, err := cli.ParseDatetime(a.Datetime)
		if err != nil {
			return Plan{}, &types.UsageError{Msg: "argument --datetime", Cause: err}
		}
		p.Scope = records.Since(ts, p.Mode == Update)
	case len(a.Items) > 0:
		p.Scope = records.IDs(a.Items...)
	case a.Query != "":
		p.Scope = records.Query(a.Query)
	default:
		p.HasScope = false
	}

	if p.Mode == Update && p.HasScope && p.Scope.Kind == records.ByQuery {
		return Plan{}, &types.UsageError{Msg: "Updating by query not implemented.", Cause: types.ErrNotImplemented}
	}
	return p, nil
}

type Router struct {
	updater    Updater
	maintainer Maintainer
	indexURLs  map[string]string
}

// New routes to updater and maintainer. indexURLs are the indexes optimized by optimize-everything.
func New(updater Updater, maintainer Maintainer, indexURLs map[string]string) *Router {
	return &Router{updater: updater, maintainer: maintainer, indexURLs: indexURLs}
}

// Run executes the plan. Failed tasks don't stop the post actions; they are returned with any
// other error at the end.
func (r *Router) Run(ctx context.Context, p Plan) error {
	var failures error

	switch {
	case p.Mode == NoMode || !p.HasScope:
		if p.Mode != NoMode {
			log.Warnf("--%s given without --everything, --datetime, --items or --query. Nothing to %s.", p.Mode, p.Mode)
		}
	case p.Mode == Update:
		err := timed("update "+p.Scope.Kind.String(), func() error {
			return r.update(ctx, p, &failures)
		})
		if err != nil {
			return err
		}
	case p.Mode == Delete:
		err := timed("delete "+p.Scope.Kind.String(), func() error {
			return r.delete(ctx, p, &failures)
		})
		if err != nil {
			return err
		}
	}

	if p.Commit {
		if err := timed("commit", func() error { return r.maintainer.Commit(ctx) }); err != nil {
			return err
		}
	}
	if p.Optimize {
		if err := timed("optimize", func() error { return r.maintainer.Optimize(ctx) }); err != nil {
			return err
		}
	}
	if p.OptimizeAll {
		if err := timed("optimize everything", func() error { return r.maintainer.OptimizeAll(ctx, r.indexURLs) }); err != nil {
			return err
		}
	}
	return failures
}

func (r *Router) update(ctx context.Context, p Plan, failures *error) error {
	switch p.Scope.Kind {
	case records.Everything:
		report, err := r.updater.AddOrUpdateAll(ctx)
		*failures = multierr.Append(*failures, report.Err())
		return err
	case records.NewerThan:
		report, err := r.updater.AddOrUpdateByDatetime(ctx, p.Scope.Since)
		*failures = multierr.Append(*failures, report.Err())
		return err
	case records.ByIDs:
		res, err := r.updater.AddOrUpdate(ctx, p.Scope.IDs)
		if err != nil && res.Err() != nil {
			*failures = multierr.Append(*failures, err)
			return nil
		}
		return err
	}
	return fmt.Errorf("update by %s: %w", p.Scope.Kind, types.ErrNotImplemented)
}

func (r *Router) delete(ctx context.Context, p Plan, failures *error) error {
	var err error
	switch p.Scope.Kind {
	case records.Everything:
		_, err = r.maintainer.DeleteAll(ctx)
	case records.NewerThan:
		_, err = r.maintainer.DeleteByTime(ctx, p.Scope.Since)
	case records.ByQuery:
		_, err = r.maintainer.DeleteByPredicate(ctx, p.Scope.Query)
	case records.ByIDs:
		var res tasks.Result
		res, err = r.maintainer.DeleteByIDs(ctx, p.Scope.IDs)
		if err != nil && res.Err() != nil {
			*failures = multierr.Append(*failures, err)
			return nil
		}
	default:
		err = fmt.Errorf("delete by %s: %w", p.Scope.Kind, types.ErrNotImplemented)
	}
	return err
}

// timed logs how long op took
func timed(op string, fn func() error) error {
	start := time.Now()
	err := fn()
	log.Infow("operation finished", "operation", op, "duration", time.Since(start).Round(time.Millisecond), "ok", err == nil)
	return err
}
