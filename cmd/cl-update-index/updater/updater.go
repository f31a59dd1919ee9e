package updater

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"
	"time"

	"freelaw.courtlistener.cl-update-index/cmd/utils"
	"freelaw.courtlistener.cl-update-index/pkg/audit"
	"freelaw.courtlistener.cl-update-index/pkg/cache"
	"freelaw.courtlistener.cl-update-index/pkg/cli"
	"freelaw.courtlistener.cl-update-index/pkg/config"
	"freelaw.courtlistener.cl-update-index/pkg/confirm"
	"freelaw.courtlistener.cl-update-index/pkg/indexer"
	log "freelaw.courtlistener.cl-update-index/pkg/logging"
	"freelaw.courtlistener.cl-update-index/pkg/maintenance"
	"freelaw.courtlistener.cl-update-index/pkg/monitoring"
	"freelaw.courtlistener.cl-update-index/pkg/pipeline"
	pio "freelaw.courtlistener.cl-update-index/pkg/pipeline/io"
	"freelaw.courtlistener.cl-update-index/pkg/records"
	"freelaw.courtlistener.cl-update-index/pkg/records/stores"
	"freelaw.courtlistener.cl-update-index/pkg/router"
	"freelaw.courtlistener.cl-update-index/pkg/search/bleve"
	"freelaw.courtlistener.cl-update-index/pkg/search/engines"
	sys "freelaw.courtlistener.cl-update-index/pkg/sys"
	"freelaw.courtlistener.cl-update-index/pkg/tasks"
	"freelaw.courtlistener.cl-update-index/pkg/tasks/broker"
	"freelaw.courtlistener.cl-update-index/pkg/tasks/local"
	"freelaw.courtlistener.cl-update-index/pkg/types"
	"github.com/alexflint/go-arg"
)

const (
	EXIT_SUCCESS = 0
	EXIT_FAILURE = 1

	// exit code after a second interrupt
	EXIT_INTERRUPTED = 130
)

// Streams lets tests replace the terminal
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

var DefaultStreams = Streams{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}

/*
 * Run() is the entry point for execution of cl-update-index. It returns the process exit code:
 * 0 on success (a declined confirmation included), 1 on usage errors and on store or index failures.
 */
func Run(argv []string, streams Streams) int {
	args, err := cli.Parse(argv)
	if errors.Is(err, arg.ErrHelp) {
		return EXIT_SUCCESS
	}
	if err != nil {
		fmt.Fprintf(streams.Err, "cl-update-index: error: %v\n", err)
		return EXIT_FAILURE
	}

	log.Setup(log.Options{
		LogToFile: args.LoggingToFileEnabled,
		FilePath:  args.LogfilePath,
		Debug:     args.DebugEnabled,
	})
	defer log.Sync()
	log.Debugf("%+v", args)

	// every usage error is raised before anything is opened
	plan, err := router.NewPlan(args)
	if err != nil {
		fmt.Fprintf(streams.Err, "cl-update-index: error: %v\n", err)
		return EXIT_FAILURE
	}
	if args.Verbosity >= 1 {
		utils.PrintLogo()
	}

	cfg, err := config.Load(args.Config)
	if err != nil {
		log.Errorf("could not load config: %v", err)
		return EXIT_FAILURE
	}

	// first signal stops admitting new waves, a second one exits right away
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	signal := sys.NewSignal(syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop()
	go func() {
		select {
		case <-signal.C():
		case <-ctx.Done():
			return
		}
		log.Warnf("Interrupted. Waiting for the tasks in flight to finish; interrupt again to exit immediately.")
		cancel()
		<-signal.C()
		log.Errorf("Interrupted twice. Exiting.")
		os.Exit(EXIT_INTERRUPTED)
	}()

	start := time.Now()
	err = run(ctx, args, plan, cfg, streams)
	pushMetrics(cfg, plan)

	switch {
	case err == nil:
		log.Infof("cl-update-index finished in %v", time.Since(start))
		return EXIT_SUCCESS
	case types.IsUsageError(err):
		fmt.Fprintf(streams.Err, "cl-update-index: error: %v\n", err)
	case errors.Is(err, types.ErrStoreUnavailable):
		log.Errorf("the record store is unavailable: %v", err)
	case errors.Is(err, types.ErrIndexUnavailable):
		log.Errorf("the search index is unavailable: %v", err)
	case errors.Is(err, context.Canceled):
		log.Warnf("%v", err)
	default:
		log.Errorf("%v", err)
	}
	return EXIT_FAILURE
}

// run opens the store, the index connection cache and the executor, then routes the plan
func run(ctx context.Context, args cli.Arguments, plan router.Plan, cfg *config.Config, streams Streams) error {
	indexes := engines.NewCache(cfg.Index)
	defer func() {
		if err := indexes.Close(); err != nil {
			log.Warnf("closing indexes: %v", err)
		}
		_ = bleve.CloseAll()
	}()

	var store records.Store
	if plan.Mode != router.NoMode {
		var err error
		store, err = stores.CreateStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	env := tasks.Env{Store: store, OpenIndex: indexes.Open}
	executor, err := newExecutor(args.Config, cfg, env)
	if err != nil {
		return err
	}
	executor = withAudit(executor, cfg.Audit)
	defer executor.Close()

	indexURL := cfg.Index.URLFor(plan.Type.String(), args.SolrURL)
	out := streams.Out
	gate := confirm.NewGate(streams.In, out, args.NoInput)

	pageSize := cfg.Store.PageSize
	idx := indexer.New(store, executor, indexer.Options{
		Type:      plan.Type,
		IndexURL:  indexURL,
		Verbosity: args.Verbosity,
		PageSize:  pageSize,
		Dispatch:  cfg.Dispatch,
	}, out)
	ctl := maintenance.New(store, executor, indexes.Open, gate, maintenance.Options{
		Type:      plan.Type,
		IndexURL:  indexURL,
		Verbosity: args.Verbosity,
		PageSize:  pageSize,
		Dispatch:  cfg.Dispatch,
	}, out)

	return router.New(idx, ctl, optimizeTargets(cfg)).Run(ctx, plan)
}

// newExecutor runs tasks in process, or publishes them to cl-index-worker through the pipeline
// section of configFile
func newExecutor(configFile string, cfg *config.Config, env tasks.Env) (tasks.Executor, error) {
	if cfg.Executor.Type != config.EXECUTOR_BROKER {
		return local.New(env, cfg.Executor.Concurrency), nil
	}

	writer, err := pio.CreateWriter(pipeline.PRODUCER, configFile)
	if err != nil {
		return nil, err
	}
	if err := writer.Open(); err != nil {
		return nil, fmt.Errorf("opening task pipeline: %w", err)
	}
	results, err := cache.CreateCache(cfg.Executor.Results)
	if err != nil {
		writer.Close()
		return nil, fmt.Errorf("opening result backend: %w", err)
	}
	log.Infof("publishing tasks to the %s pipeline", cfg.Executor.Type)
	return broker.New(writer, results, cfg.Executor.Poll()), nil
}

// withAudit forwards task results to fluentd when an audit address is configured
func withAudit(executor tasks.Executor, config audit.Config) tasks.Executor {
	if config.Address == "" {
		return executor
	}
	sink, err := audit.NewFluentSink(config)
	if err != nil {
		log.Warnf("task audit disabled: %v", err)
		return executor
	}
	log.Infof("auditing tasks to fluentd at %s", config.Address)
	return audit.NewExecutor(executor, sink, config.Tag)
}

// optimizeTargets is every index named in the config, the default index included
func optimizeTargets(cfg *config.Config) map[string]string {
	urls := make(map[string]string, len(cfg.Index.URLs)+1)
	for name, url := range cfg.Index.URLs {
		urls[name] = url
	}
	if cfg.Index.URL != "" {
		if _, ok := urls["default"]; !ok {
			urls["default"] = cfg.Index.URL
		}
	}
	return urls
}

func pushMetrics(cfg *config.Config, plan router.Plan) {
	grouping := map[string]string{"mode": plan.Mode.String()}
	if plan.Type != "" {
		grouping[monitoring.PROM_LABEL_TYPE] = plan.Type.String()
	}
	if err := monitoring.Push(cfg.Monitoring.PushgatewayURL, cfg.Monitoring.Job, grouping); err != nil {
		log.Warnf("%v", err)
	}
}
