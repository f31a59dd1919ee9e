package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"freelaw.courtlistener.cl-update-index/pkg/types"
	"github.com/alexflint/go-arg"
	"github.com/joho/godotenv"
)

const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04:05"
)

// Arguments is the command line surface of cl-update-index. Every flag can also be set through its CLU_* env var.
type Arguments struct {
	LoggingToFileEnabled bool   `arg:"env:CLU_ENABLE_LOGGING_TO_FILE,-l,--logToFile" default:"false" help:"Enable logging to file"`
	LogfilePath          string `arg:"env:CLU_LOGFILE_PATH,-f,--logfilePath" default:"logs/cl-update-index.log" help:"Location and name of file to log to"`
	DebugEnabled         bool   `arg:"env:CLU_ENABLE_DEBUG_LOGGING,-d,--debug" help:"Specify this flag to enable debug logging level"`
	Config               string `arg:"env:CLU_CONFIG,-c,--config" default:"configs/cl-update-index.yaml" help:"Path to the yaml config file"`
	Verbosity            int    `arg:"env:CLU_VERBOSITY,-v,--verbosity" default:"1" help:"0 = quiet, 1 = normal, 2 = log every item"`

	Type     string `arg:"env:CLU_TYPE,--type" help:"Because the indexes are loosely bound to the database, commands require that the correct model is provided in this argument. Current choices are \"audio\", \"opinions\", \"people\", and \"recap\"."`
	SolrURL  string `arg:"env:CLU_SOLR_URL,--solr-url" help:"When swapping cores, it can be valuable to use a temporary index URL, overriding the default value that's in the config, e.g., http://127.0.0.1:8983/solr/swap_core"`
	NoInput  bool   `arg:"env:CLU_NOINPUT,--noinput" help:"Do NOT prompt the user for input of any kind. Useful in tests, but can disable important warnings."`
	Update   bool   `arg:"--update" help:"Run the command in update mode. Use this to add or update items."`
	Delete   bool   `arg:"--delete" help:"Run the command in delete mode. Use this to remove items from the index. Note that this will not delete items from the index that do not continue to exist in the database."`
	Optimize bool   `arg:"--optimize" help:"Run the optimize command against the current index after any updates or deletions are completed."`

	OptimizeEverything bool `arg:"--optimize-everything" help:"Optimize all indexes that are registered in the config."`
	DoCommit           bool `arg:"--do-commit" help:"Performs a simple commit and nothing more."`

	Everything bool    `arg:"--everything" help:"Take action on everything in the database"`
	Query      string  `arg:"--query" help:"Take action on items fulfilling a query. Queries should be formatted as dicts such as: \"{'court_id':'haw'}\""`
	Items      []int64 `arg:"--items" help:"Take action on a list of items using a single task"`
	Datetime   string  `arg:"--datetime" help:"Take action on items newer than a date (YYYY-MM-DD) or a date and time (YYYY-MM-DD HH:MM:SS)"`
}

// go-args library supports a Description() method on the struct to print out a description of the command
func (Arguments) Description() string {
	return `
Adds, updates, deletes items in an index, committing changes and optimizing it, if requested.

Environment variables prefixed with CLU_ may be placed in a .env file in the working directory.
`
}

// Export Args
var Args Arguments

// Parse loads an optional .env file and parses argv (without the program name) into Args
func Parse(argv []string) (Arguments, error) {
	// A missing .env file is the normal case
	_ = godotenv.Load()

	var a Arguments
	p, err := arg.NewParser(arg.Config{Program: "cl-update-index"}, &a)
	if err != nil {
		return a, err
	}
	err = p.Parse(argv)
	switch {
	case errors.Is(err, arg.ErrHelp):
		p.WriteHelp(os.Stdout)
		return a, err
	case err != nil:
		return a, &types.UsageError{Msg: "invalid arguments", Cause: err}
	}
	Args = a
	return a, nil
}

// Validate checks flag combinations that go-arg cannot express (mutually exclusive groups, required type)
func (a Arguments) Validate() error {
	if a.Update && a.Delete {
		return types.NewUsageError("argument --delete: not allowed with argument --update")
	}

	scopes := make([]string, 0, 4)
	if a.Everything {
		scopes = append(scopes, "--everything")
	}
	if a.Query != "" {
		scopes = append(scopes, "--query")
	}
	if len(a.Items) > 0 {
		scopes = append(scopes, "--items")
	}
	if a.Datetime != "" {
		scopes = append(scopes, "--datetime")
	}
	if len(scopes) > 1 {
		return types.NewUsageError("arguments %s are mutually exclusive", strings.Join(scopes, ", "))
	}

	if a.Datetime != "" {
		if _, err := ParseDatetime(a.Datetime); err != nil {
			return &types.UsageError{Msg: "argument --datetime", Cause: err}
		}
	}

	// the type is needed for everything except a bare optimize-everything
	needsType := a.Update || a.Delete || a.DoCommit || a.Optimize
	if needsType && a.Type == "" {
		return types.NewUsageError("argument --type is required")
	}
	return nil
}

// ParseDatetime accepts YYYY-MM-DD or YYYY-MM-DD HH:MM:SS, interpreted as UTC
func ParseDatetime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateTimeLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("unable to parse %q as YYYY-MM-DD or YYYY-MM-DD HH:MM:SS", s)
	}
	return t, nil
}

// WorkerArguments is the command line surface of cl-index-worker
type WorkerArguments struct {
	LoggingToFileEnabled bool   `arg:"env:CLU_ENABLE_LOGGING_TO_FILE,-l,--logToFile" default:"false" help:"Enable logging to file"`
	LogfilePath          string `arg:"env:CLU_LOGFILE_PATH,-f,--logfilePath" default:"logs/cl-index-worker.log" help:"Location and name of file to log to"`
	DebugEnabled         bool   `arg:"env:CLU_ENABLE_DEBUG_LOGGING,-d,--debug" help:"Specify this flag to enable debug logging level"`
	Config               string `arg:"env:CLU_CONFIG,-c,--config" default:"configs/cl-update-index.yaml" help:"Path to the yaml config file"`
	Concurrency          int    `arg:"env:CLU_WORKER_CONCURRENCY,-n,--concurrency" help:"Number of tasks run at once. Defaults to executor.concurrency from the config"`
	MonitoringPort       int    `arg:"env:CLU_MONITORING_PORT,-p,--port" help:"Port of the /metrics and /ping endpoints. Defaults to monitoring.port from the config"`
}

func (WorkerArguments) Description() string {
	return `
Runs the indexing tasks published by cl-update-index when executor.type is "broker".
`
}

// ParseWorker parses the cl-index-worker argv (without the program name)
func ParseWorker(argv []string) (WorkerArguments, error) {
	_ = godotenv.Load()

	var a WorkerArguments
	p, err := arg.NewParser(arg.Config{Program: "cl-index-worker"}, &a)
	if err != nil {
		return a, err
	}
	err = p.Parse(argv)
	switch {
	case errors.Is(err, arg.ErrHelp):
		p.WriteHelp(os.Stdout)
		return a, err
	case err != nil:
		return a, &types.UsageError{Msg: "invalid arguments", Cause: err}
	}
	if a.Concurrency < 0 {
		return a, types.NewUsageError("argument --concurrency must not be negative")
	}
	return a, nil
}
