package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"syscall"

	"freelaw.courtlistener.cl-update-index/pkg/cache"
	"freelaw.courtlistener.cl-update-index/pkg/cli"
	"freelaw.courtlistener.cl-update-index/pkg/config"
	log "freelaw.courtlistener.cl-update-index/pkg/logging"
	"freelaw.courtlistener.cl-update-index/pkg/monitoring"
	"freelaw.courtlistener.cl-update-index/pkg/pipeline"
	pio "freelaw.courtlistener.cl-update-index/pkg/pipeline/io"
	"freelaw.courtlistener.cl-update-index/pkg/records/stores"
	"freelaw.courtlistener.cl-update-index/pkg/search/bleve"
	"freelaw.courtlistener.cl-update-index/pkg/search/engines"
	sys "freelaw.courtlistener.cl-update-index/pkg/sys"
	"freelaw.courtlistener.cl-update-index/pkg/tasks"
	"freelaw.courtlistener.cl-update-index/pkg/tasks/broker"
	"github.com/alexflint/go-arg"
	"golang.org/x/sync/errgroup"
)

// Worker is a configured consumer together with everything it opened
type Worker struct {
	consumer *broker.Consumer
	closers  []func()
}

// New opens the record store, the index cache, the task reader and the result backend
func New(ctx context.Context, configFile string, cfg *config.Config, concurrency int) (*Worker, error) {
	w := &Worker{}

	if cfg.Executor.Results.Type == "" || cfg.Executor.Results.Type == cache.CACHE_LOCAL {
		log.Warnf("executor.results.type is %q: results stay in this process and never reach cl-update-index", cache.CACHE_LOCAL)
	}

	store, err := stores.CreateStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	w.closers = append(w.closers, func() { _ = store.Close() })

	indexes := engines.NewCache(cfg.Index)
	w.closers = append(w.closers, func() {
		if err := indexes.Close(); err != nil {
			log.Warnf("closing indexes: %v", err)
		}
		_ = bleve.CloseAll()
	})

	reader, err := pio.CreateReader(pipeline.CONSUMER, configFile)
	if err != nil {
		w.Close()
		return nil, err
	}
	if err := reader.Open(); err != nil {
		w.Close()
		return nil, fmt.Errorf("opening task pipeline: %w", err)
	}
	w.closers = append(w.closers, reader.Close)

	results, err := cache.CreateCache(cfg.Executor.Results)
	if err != nil {
		w.Close()
		return nil, fmt.Errorf("opening result backend: %w", err)
	}
	w.closers = append(w.closers, func() { _ = results.Close() })

	if concurrency <= 0 {
		concurrency = cfg.Executor.Concurrency
	}
	env := tasks.Env{Store: store, OpenIndex: indexes.Open}
	w.consumer = broker.NewConsumer(reader, results, env, concurrency)
	return w, nil
}

// Run consumes tasks until ctx is cancelled or the pipeline is closed
func (w *Worker) Run(ctx context.Context) error {
	return w.consumer.Run(ctx)
}

// Close releases everything New opened, in reverse order
func (w *Worker) Close() {
	for i := len(w.closers) - 1; i >= 0; i-- {
		w.closers[i]()
	}
	w.closers = nil
}

/*
 * Run() is the entry point for execution of cl-index-worker.
 * If using as a library, call worker.Run()
 */
func Run(wg *sync.WaitGroup, argv []string) {
	defer wg.Done()

	args, err := cli.ParseWorker(argv)
	if errors.Is(err, arg.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "cl-index-worker: error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logging and monitoring
	// Monitoring is enabled by default when deployed in k8s, and disabled by default when run locally
	// To force enabling of monitoring, create env var CLU_ENABLE_MONITORING
	log.Setup(log.Options{
		LogToFile: args.LoggingToFileEnabled,
		FilePath:  args.LogfilePath,
		Debug:     args.DebugEnabled,
	})
	defer log.Sync()

	cfg, err := config.Load(args.Config)
	if err != nil {
		log.Fatalf("could not load config: %v", err)
	}
	port := args.MonitoringPort
	if port <= 0 {
		port = cfg.Monitoring.Port
	}
	monitoring.Start(port)

	// Setup signaling to capture program kill events and allow for graceful shutdown
	signal := sys.NewSignal(syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop()

	// context with cancel for graceful shutdown
	ctx, cancelFunc := context.WithCancel(context.Background())
	defer cancelFunc()

	w, err := New(ctx, args.Config, cfg, args.Concurrency)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer w.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancelFunc()
		return w.Run(gctx)
	})
	g.Go(func() error {
		select {
		case s := <-signal.C():
			log.Infof("received %v", s)
		case <-gctx.Done():
		}
		log.Infof("GRACEFUL SHUTDOWN STARTED [ cl-index-worker ]....")
		cancelFunc() // Signal cancellation to context.Context
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Errorf("%v", err)
	}
	log.Infof("GRACEFUL SHUTDOWN COMPLETE [ cl-index-worker ]")
}
