package router_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"freelaw.courtlistener.cl-update-index/pkg/cli"
	"freelaw.courtlistener.cl-update-index/pkg/dispatch"
	"freelaw.courtlistener.cl-update-index/pkg/router"
	"freelaw.courtlistener.cl-update-index/pkg/tasks"
	"freelaw.courtlistener.cl-update-index/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// calls records every operation in order
type calls struct {
	log        []string
	failTasks  bool
	commitErr  error
	optimized  map[string]string
	lastTime   time.Time
	lastIDs    []int64
	lastQuery  string
	declineAll bool
}

func (c *calls) report() dispatch.Report {
	if !c.failTasks {
		return dispatch.Report{}
	}
	return dispatch.Report{Results: []tasks.Result{{TaskID: "t1", Name: tasks.ADD_OR_UPDATE_ITEMS, Error: "boom"}}}
}

func (c *calls) AddOrUpdateAll(context.Context) (dispatch.Report, error) {
	c.log = append(c.log, "AddOrUpdateAll")
	return c.report(), nil
}

func (c *calls) AddOrUpdateByDatetime(_ context.Context, ts time.Time) (dispatch.Report, error) {
	c.log = append(c.log, "AddOrUpdateByDatetime")
	c.lastTime = ts
	return c.report(), nil
}

func (c *calls) AddOrUpdate(_ context.Context, ids []int64) (tasks.Result, error) {
	c.log = append(c.log, "AddOrUpdate")
	c.lastIDs = ids
	return tasks.Result{}, nil
}

func (c *calls) DeleteAll(context.Context) (bool, error) {
	c.log = append(c.log, "DeleteAll")
	return !c.declineAll, nil
}

func (c *calls) DeleteByTime(_ context.Context, ts time.Time) (bool, error) {
	c.log = append(c.log, "DeleteByTime")
	c.lastTime = ts
	return true, nil
}

func (c *calls) DeleteByPredicate(_ context.Context, expr string) (bool, error) {
	c.log = append(c.log, "DeleteByPredicate")
	c.lastQuery = expr
	return true, nil
}

func (c *calls) DeleteByIDs(_ context.Context, ids []int64) (tasks.Result, error) {
	c.log = append(c.log, "DeleteByIDs")
	c.lastIDs = ids
	return tasks.Result{}, nil
}

func (c *calls) Commit(context.Context) error {
	c.log = append(c.log, "Commit")
	return c.commitErr
}

func (c *calls) Optimize(context.Context) error {
	c.log = append(c.log, "Optimize")
	return nil
}

func (c *calls) OptimizeAll(_ context.Context, urls map[string]string) error {
	c.log = append(c.log, "OptimizeAll")
	c.optimized = urls
	return nil
}

func run(t *testing.T, a cli.Arguments) (*calls, error) {
	t.Helper()
	c := &calls{}
	err := runWith(t, c, a)
	return c, err
}

func runWith(t *testing.T, c *calls, a cli.Arguments) error {
	t.Helper()
	plan, err := router.NewPlan(a)
	if err != nil {
		return err
	}
	return router.New(c, c, map[string]string{"audio": "http://solr/audio"}).Run(context.Background(), plan)
}

func TestDecisionTable(t *testing.T) {
	for _, tc := range []struct {
		args cli.Arguments
		want string
	}{
		{cli.Arguments{Type: "audio", Update: true, Everything: true}, "AddOrUpdateAll"},
		{cli.Arguments{Type: "audio", Update: true, Datetime: "2020-01-01"}, "AddOrUpdateByDatetime"},
		{cli.Arguments{Type: "audio", Update: true, Items: []int64{1, 2}}, "AddOrUpdate"},
		{cli.Arguments{Type: "audio", Delete: true, Everything: true}, "DeleteAll"},
		{cli.Arguments{Type: "audio", Delete: true, Datetime: "2020-01-01 10:00:00"}, "DeleteByTime"},
		{cli.Arguments{Type: "audio", Delete: true, Items: []int64{3}}, "DeleteByIDs"},
		{cli.Arguments{Type: "audio", Delete: true, Query: "{'court_id': 'haw'}"}, "DeleteByPredicate"},
	} {
		t.Run(tc.want, func(t *testing.T) {
			c, err := run(t, tc.args)
			require.NoError(t, err)
			assert.Equal(t, []string{tc.want}, c.log)
		})
	}
}

func TestDatetimeInclusivity(t *testing.T) {
	plan, err := router.NewPlan(cli.Arguments{Type: "audio", Update: true, Datetime: "2020-01-01"})
	require.NoError(t, err)
	assert.True(t, plan.Scope.Inclusive)
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), plan.Scope.Since)

	plan, err = router.NewPlan(cli.Arguments{Type: "audio", Delete: true, Datetime: "2020-01-01"})
	require.NoError(t, err)
	assert.False(t, plan.Scope.Inclusive)
}

func TestUpdateByQueryIsUsageError(t *testing.T) {
	c, err := run(t, cli.Arguments{Type: "audio", Update: true, Query: "{'court_id': 'haw'}"})
	assert.True(t, types.IsUsageError(err))
	assert.True(t, errors.Is(err, types.ErrNotImplemented))
	assert.Empty(t, c.log)
}

func TestNoActionIsUsageError(t *testing.T) {
	c, err := run(t, cli.Arguments{Type: "audio", Everything: true})
	assert.True(t, types.IsUsageError(err))
	assert.Empty(t, c.log)
}

func TestUsageErrorsBeforeSideEffects(t *testing.T) {
	for _, a := range []cli.Arguments{
		{Update: true, Everything: true},
		{Type: "dockets", Update: true, Everything: true},
		{Type: "audio", Update: true, Delete: true, Everything: true},
		{Type: "audio", Update: true, Everything: true, Items: []int64{1}},
		{Type: "audio", Delete: true, Datetime: "yesterday"},
	} {
		c, err := run(t, a)
		assert.True(t, types.IsUsageError(err), fmt.Sprintf("%+v", a))
		assert.Empty(t, c.log)
	}
}

func TestModeWithoutScopeDoesNothing(t *testing.T) {
	c, err := run(t, cli.Arguments{Type: "audio", Update: true})
	require.NoError(t, err)
	assert.Empty(t, c.log)
}

func TestPostActionsInOrder(t *testing.T) {
	c, err := run(t, cli.Arguments{Type: "audio", Update: true, Everything: true, DoCommit: true, Optimize: true, OptimizeEverything: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"AddOrUpdateAll", "Commit", "Optimize", "OptimizeAll"}, c.log)
	assert.Equal(t, map[string]string{"audio": "http://solr/audio"}, c.optimized)
}

func TestOptimizeEverythingNeedsNoType(t *testing.T) {
	c, err := run(t, cli.Arguments{OptimizeEverything: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"OptimizeAll"}, c.log)
}

func TestDeclinedDeleteStillRunsPostActions(t *testing.T) {
	c := &calls{declineAll: true}
	err := runWith(t, c, cli.Arguments{Type: "audio", Delete: true, Everything: true, DoCommit: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"DeleteAll", "Commit"}, c.log)
}

func TestTaskFailuresReportedAfterPostActions(t *testing.T) {
	c := &calls{failTasks: true}
	err := runWith(t, c, cli.Arguments{Type: "audio", Update: true, Everything: true, Optimize: true})
	var taskErr *tasks.TaskError
	require.True(t, errors.As(err, &taskErr))
	assert.Equal(t, []string{"AddOrUpdateAll", "Optimize"}, c.log)
}

func TestPostActionFailureStops(t *testing.T) {
	c := &calls{commitErr: types.ErrIndexUnavailable}
	err := runWith(t, c, cli.Arguments{Type: "audio", DoCommit: true, Optimize: true})
	assert.ErrorIs(t, err, types.ErrIndexUnavailable)
	assert.Equal(t, []string{"Commit"}, c.log)
}
