package dispatch_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"freelaw.courtlistener.cl-update-index/pkg/dispatch"
	"freelaw.courtlistener.cl-update-index/pkg/records"
	"freelaw.courtlistener.cl-update-index/pkg/tasks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

// sliceSource yields ids 1..n and claims total records
type sliceSource struct {
	n, total, pos int
}

func (s *sliceSource) Total() int { return s.total }

func (s *sliceSource) Next(context.Context) (records.Record, bool, error) {
	if s.pos >= s.n {
		return records.Record{}, false, nil
	}
	s.pos++
	return records.Record{ID: int64(s.pos), Type: records.Audio}, true, nil
}

func source(n int) *sliceSource {
	return &sliceSource{n: n, total: n}
}

// recordingExecutor logs submissions and joins in order
type recordingExecutor struct {
	events  []string
	bundles [][]int64
	failing int64
	timeout bool
	onJoin  func(wave int)
}

func (e *recordingExecutor) ApplyAsync(_ context.Context, sigs []tasks.Signature) (tasks.Group, error) {
	wave := len(e.events)/2 + 1
	e.events = append(e.events, fmt.Sprintf("submit %d x%d", wave, len(sigs)))
	for _, sig := range sigs {
		e.bundles = append(e.bundles, sig.IDs)
	}
	return &recordingGroup{e: e, wave: wave, sigs: sigs}, nil
}

func (e *recordingExecutor) Close() error { return nil }

type recordingGroup struct {
	e    *recordingExecutor
	wave int
	sigs []tasks.Signature
}

func (g *recordingGroup) ID() string { return fmt.Sprintf("group-%d", g.wave) }
func (g *recordingGroup) Len() int   { return len(g.sigs) }

func (g *recordingGroup) Join(context.Context, time.Duration) ([]tasks.Result, error) {
	g.e.events = append(g.e.events, fmt.Sprintf("join %d", g.wave))
	if g.e.onJoin != nil {
		g.e.onJoin(g.wave)
	}
	if g.e.timeout {
		return nil, tasks.ErrJoinTimeout
	}
	out := make([]tasks.Result, 0, len(g.sigs))
	for _, sig := range g.sigs {
		res := tasks.Result{TaskID: sig.ID, Name: sig.Name, Count: len(sig.IDs)}
		for _, id := range sig.IDs {
			if id == g.e.failing {
				res.Error = "index rejected the bundle"
			}
		}
		out = append(out, res)
	}
	return out, nil
}

func newTask(ids []int64) tasks.Signature {
	return tasks.NewSignature(tasks.ADD_OR_UPDATE_ITEMS, records.Audio, ids, "bleve://memory/test")
}

func newBatcher(e tasks.Executor, bundle, chunk int) *dispatch.Batcher {
	return &dispatch.Batcher{
		Executor:    e,
		Type:        records.Audio,
		BundleSize:  bundle,
		ChunkSize:   chunk,
		WaveTimeout: time.Minute,
	}
}

func TestBuilder(t *testing.T) {
	b := dispatch.NewBuilder(3)
	var sealed [][]int64
	for id := int64(1); id <= 7; id++ {
		if bundle, ok := b.Add(id, false); ok {
			sealed = append(sealed, bundle)
		}
	}
	assert.Equal(t, 1, b.Pending())
	bundle, ok := b.Flush()
	require.True(t, ok)
	sealed = append(sealed, bundle)
	assert.Equal(t, [][]int64{{1, 2, 3}, {4, 5, 6}, {7}}, sealed)

	_, ok = b.Flush()
	assert.False(t, ok)
}

func TestBuilderSealsOnLast(t *testing.T) {
	b := dispatch.NewBuilder(250)
	_, ok := b.Add(1, false)
	assert.False(t, ok)
	bundle, ok := b.Add(2, true)
	require.True(t, ok)
	assert.Equal(t, []int64{1, 2}, bundle)
	assert.Zero(t, b.Pending())
}

func TestBundleAndWaveCounts(t *testing.T) {
	for _, tc := range []struct {
		n, bundle, chunk   int
		wantBundles, waves int
	}{
		{n: 10, bundle: 3, chunk: 2, wantBundles: 4, waves: 2},
		{n: 9, bundle: 3, chunk: 3, wantBundles: 3, waves: 1},
		{n: 1000, bundle: 250, chunk: 50, wantBundles: 4, waves: 1},
		{n: 12501, bundle: 250, chunk: 50, wantBundles: 51, waves: 2},
		{n: 1, bundle: 250, chunk: 50, wantBundles: 1, waves: 1},
	} {
		t.Run(fmt.Sprintf("%d/%d/%d", tc.n, tc.bundle, tc.chunk), func(t *testing.T) {
			e := &recordingExecutor{}
			report, err := newBatcher(e, tc.bundle, tc.chunk).Run(context.Background(), source(tc.n), newTask)
			require.NoError(t, err)

			assert.Equal(t, tc.n, report.Processed)
			assert.Equal(t, tc.wantBundles, report.Bundles)
			assert.Equal(t, tc.waves, report.Waves)
			assert.Len(t, report.Results, tc.wantBundles)

			// every id exactly once, in order, bundles never larger than the bundle size
			var all []int64
			for _, bundle := range e.bundles {
				assert.LessOrEqual(t, len(bundle), tc.bundle)
				all = append(all, bundle...)
			}
			require.Len(t, all, tc.n)
			for i, id := range all {
				assert.Equal(t, int64(i+1), id)
			}

			// each wave is joined right after it was submitted
			for i := 0; i < len(e.events); i += 2 {
				wave := i/2 + 1
				assert.Contains(t, e.events[i], fmt.Sprintf("submit %d ", wave))
				assert.Equal(t, fmt.Sprintf("join %d", wave), e.events[i+1])
			}
		})
	}
}

func TestProgressOneTaskPerWave(t *testing.T) {
	e := &recordingExecutor{}
	var out bytes.Buffer
	b := newBatcher(e, 2, 1)
	b.Progress = dispatch.NewProgress(&out, records.Audio)

	report, err := b.Run(context.Background(), source(3), newTask)
	require.NoError(t, err)

	assert.Equal(t, "\rProcessed 1/3 (33%)\rProcessed 2/3 (67%)\rProcessed 3/3 (100%)\n", out.String())
	assert.Equal(t, [][]int64{{1, 2}, {3}}, e.bundles)
	assert.Equal(t, []string{"submit 1 x1", "join 1", "submit 2 x1", "join 2"}, e.events)
	assert.Equal(t, 2, report.Waves)
}

func TestEmptySource(t *testing.T) {
	e := &recordingExecutor{}
	var out bytes.Buffer
	b := newBatcher(e, 2, 1)
	b.Progress = dispatch.NewProgress(&out, records.Audio)

	report, err := b.Run(context.Background(), source(0), newTask)
	require.NoError(t, err)
	assert.Empty(t, e.events)
	assert.Zero(t, report.Waves)
	assert.Empty(t, out.String())
}

func TestFailedTasksAreCollected(t *testing.T) {
	e := &recordingExecutor{failing: 4}
	report, err := newBatcher(e, 3, 1).Run(context.Background(), source(9), newTask)
	require.NoError(t, err, "task failures do not abort the run")

	assert.Equal(t, 3, report.Waves)
	assert.Equal(t, 1, report.Failed())
	errs := multierr.Errors(report.Err())
	require.Len(t, errs, 1)
	var taskErr *tasks.TaskError
	assert.True(t, errors.As(errs[0], &taskErr))
}

func TestWaveTimeout(t *testing.T) {
	e := &recordingExecutor{timeout: true}
	report, err := newBatcher(e, 2, 2).Run(context.Background(), source(10), newTask)
	assert.ErrorIs(t, err, dispatch.ErrWaveTimeout)
	assert.Equal(t, 1, report.Waves, "no wave is admitted after a timeout")
}

func TestCancellationStopsBetweenWaves(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e := &recordingExecutor{onJoin: func(wave int) {
		if wave == 1 {
			cancel()
		}
	}}

	report, err := newBatcher(e, 2, 2).Run(ctx, source(10), newTask)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, report.Interrupted)
	assert.Equal(t, []string{"submit 1 x2", "join 1"}, e.events)
	assert.Len(t, report.Results, 2, "the wave in flight is still joined")
}

func TestFewerRecordsThanCounted(t *testing.T) {
	e := &recordingExecutor{}
	report, err := newBatcher(e, 10, 5).Run(context.Background(), &sliceSource{n: 3, total: 5}, newTask)
	require.NoError(t, err)
	assert.Equal(t, [][]int64{{1, 2, 3}}, e.bundles)
	assert.Equal(t, 3, report.Processed)
}

func TestMoreRecordsThanCounted(t *testing.T) {
	e := &recordingExecutor{}
	_, err := newBatcher(e, 10, 5).Run(context.Background(), &sliceSource{n: 3, total: 2}, newTask)
	require.NoError(t, err)
	assert.Equal(t, [][]int64{{1, 2}, {3}}, e.bundles)
}

func TestPercent(t *testing.T) {
	assert.Equal(t, float64(100), dispatch.Percent(0, 0))
	assert.InDelta(t, 33.33, dispatch.Percent(1, 3), 0.01)
	assert.Equal(t, float64(50), dispatch.Percent(1, 2))
}

func TestConfigTimeout(t *testing.T) {
	assert.Equal(t, dispatch.DEFAULT_WAVE_TIMEOUT, dispatch.Config{}.Timeout())
	assert.Equal(t, 90*time.Second, dispatch.Config{WaveTimeout: 90}.Timeout())
}
