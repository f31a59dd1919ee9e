package dispatch

/*
 * dispatch turns a stream of records into bundles of ids and submits the bundles as tasks in waves
 * of bounded size. Each wave is joined before the next one is admitted, so at most one wave is ever
 * in flight and an interrupted run leaves no task behind.
 */

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "freelaw.courtlistener.cl-update-index/pkg/logging"
	"freelaw.courtlistener.cl-update-index/pkg/monitoring"
	"freelaw.courtlistener.cl-update-index/pkg/records"
	"freelaw.courtlistener.cl-update-index/pkg/tasks"
	"go.uber.org/multierr"
)

const (
	DEFAULT_CHUNK_SIZE   = 50
	DEFAULT_BUNDLE_SIZE  = 250
	DEFAULT_WAVE_TIMEOUT = time.Hour
)

var ErrWaveTimeout = errors.New("timed out waiting for a wave of tasks")

// Config is the dispatch section of the configuration
type Config struct {
	ChunkSize   int `json:"chunk_size" yaml:"chunk_size"`
	BundleSize  int `json:"bundle_size" yaml:"bundle_size"`
	WaveTimeout int `json:"wave_timeout" yaml:"wave_timeout"`
}

// Timeout returns the wave timeout, in seconds in the config
func (c Config) Timeout() time.Duration {
	if c.WaveTimeout <= 0 {
		return DEFAULT_WAVE_TIMEOUT
	}
	return time.Duration(c.WaveTimeout) * time.Second
}

// Source is a finite sequence of records with a known size. records.Sequence is one.
type Source interface {
	Total() int
	Next(ctx context.Context) (records.Record, bool, error)
}

// TaskFactory turns a sealed bundle into the signature that processes it
type TaskFactory func(ids []int64) tasks.Signature

// Report summarises a run
type Report struct {
	Total       int
	Processed   int
	Bundles     int
	Waves       int
	Results     []tasks.Result
	Interrupted bool
}

// Failed counts the tasks that reported an error
func (r Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Error != "" {
			n++
		}
	}
	return n
}

// Err combines the errors of every failed task
func (r Report) Err() error {
	var err error
	for _, res := range r.Results {
		err = multierr.Append(err, res.Err())
	}
	return err
}

type Batcher struct {
	Executor    tasks.Executor
	Type        records.Type
	ChunkSize   int
	BundleSize  int
	WaveTimeout time.Duration
	Progress    *Progress
	Verbosity   int
}

func NewBatcher(executor tasks.Executor, typ records.Type, config Config) *Batcher {
	return &Batcher{
		Executor:    executor,
		Type:        typ,
		ChunkSize:   config.ChunkSize,
		BundleSize:  config.BundleSize,
		WaveTimeout: config.Timeout(),
	}
}

func (b *Batcher) chunkSize() int {
	if b.ChunkSize <= 0 {
		return DEFAULT_CHUNK_SIZE
	}
	return b.ChunkSize
}

// Run dispatches every record of seq. Task failures do not stop the run; they are collected in the
// report. Cancelling ctx stops admission of further waves once the wave in flight was joined.
func (b *Batcher) Run(ctx context.Context, seq Source, newTask TaskFactory) (Report, error) {
	report := Report{Total: seq.Total()}
	builder := NewBuilder(b.BundleSize)
	chunk := b.chunkSize()
	wave := make([]tasks.Signature, 0, chunk)

	// store reads and joins are not interrupted midway
	work := context.WithoutCancel(ctx)

	admit := func() error {
		if len(wave) == 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			report.Interrupted = true
			return fmt.Errorf("interrupted after %d of %d records: %w", report.Processed, report.Total, err)
		}
		err := b.submit(work, &report, wave)
		wave = make([]tasks.Signature, 0, chunk)
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			report.Interrupted = true
			return report, fmt.Errorf("interrupted after %d of %d records: %w", report.Processed, report.Total, err)
		}
		rec, ok, err := seq.Next(work)
		if err != nil {
			return report, err
		}
		if !ok {
			break
		}
		report.Processed++
		monitoring.IncCounter(monitoring.RecordsProcessedCounter, b.Type.String())
		if b.Verbosity >= 2 {
			log.Infof("Indexing item %d", rec.ID)
		}

		last := report.Processed == report.Total
		if bundle, sealed := builder.Add(rec.ID, last); sealed {
			wave = append(wave, newTask(bundle))
			report.Bundles++
		}
		if len(wave) >= chunk || (last && len(wave) > 0) {
			if err := admit(); err != nil {
				return report, err
			}
		}
		if b.Progress != nil {
			b.Progress.Update(report.Processed, report.Total)
		}
	}

	// the store changed under us: fewer or more rows than counted
	if bundle, sealed := builder.Flush(); sealed {
		wave = append(wave, newTask(bundle))
		report.Bundles++
	}
	if err := admit(); err != nil {
		return report, err
	}
	if report.Processed != report.Total {
		log.Warnf("expected %d %s records, processed %d", report.Total, b.Type, report.Processed)
	}
	if b.Progress != nil && report.Processed > 0 {
		b.Progress.Done()
	}
	return report, nil
}

// submit applies wave as one group and blocks until every task in it reported
func (b *Batcher) submit(ctx context.Context, report *Report, wave []tasks.Signature) error {
	start := time.Now()
	group, err := b.Executor.ApplyAsync(ctx, wave)
	if err != nil {
		monitoring.IncCounter(monitoring.WavesCounter, b.Type.String(), monitoring.PROM_STATUS_FAILED)
		return fmt.Errorf("submitting wave %d: %w", report.Waves+1, err)
	}
	report.Waves++
	log.Debugf("wave %d: submitted group %s of %d tasks", report.Waves, group.ID(), len(wave))

	results, err := group.Join(ctx, b.WaveTimeout)
	report.Results = append(report.Results, results...)
	monitoring.ObserveDuration(monitoring.WaveDurationHistogram, start, b.Type.String())
	switch {
	case errors.Is(err, tasks.ErrJoinTimeout):
		monitoring.IncCounter(monitoring.WavesCounter, b.Type.String(), monitoring.PROM_STATUS_TIMEOUT)
		return fmt.Errorf("%w: wave %d, %d of %d tasks reported within %v", ErrWaveTimeout, report.Waves, len(results), len(wave), b.WaveTimeout)
	case err != nil:
		monitoring.IncCounter(monitoring.WavesCounter, b.Type.String(), monitoring.PROM_STATUS_FAILED)
		return fmt.Errorf("joining wave %d: %w", report.Waves, err)
	}
	monitoring.IncCounter(monitoring.WavesCounter, b.Type.String(), monitoring.PROM_STATUS_SUCCESS)

	for _, res := range results {
		if res.Error != "" {
			log.Warnf("task %s [%s] failed: %s", res.Name, res.TaskID, res.Error)
		}
	}
	return nil
}
