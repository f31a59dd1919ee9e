package logging

// Package logging provides a replacement for the default golang log package. It wraps Uber's ZapCore
// logger in support for structured logging and additional logging features (e.g. logging levels)

import (
	"os"
	"sync"

	maskTool "github.com/anu1097/golang-masking-tool"
	"github.com/anu1097/golang-masking-tool/customMasker"
	"github.com/anu1097/golang-masking-tool/filter"
	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls where and how verbosely we log
type Options struct {
	LogToFile bool
	FilePath  string
	Debug     bool
}

var (
	log    *zap.Logger
	once   sync.Once
	masker = maskTool.NewMaskTool(filter.TagFilter(customMasker.MPassword,
		customMasker.MSecret,
		customMasker.MURL),
		filter.FieldFilter("Password"),
		filter.FieldFilter("APIKey"),
		filter.FieldFilter("CloudID"),
		filter.FieldFilter("ServiceToken"),
		filter.FieldFilter("CertificateFingerprint"))
)

// Setup initializes the global zap logger. Only the first call has any effect.
func Setup(opts Options) {
	once.Do(func() {
		// Change default masking label of [filtered] ---> ************
		masker.UpdateFilterLabel("************")

		var ec zapcore.EncoderConfig
		var level zapcore.Level

		// Apply one of the default encoder configs based on run-time environment (prod vs non-prod)
		if !opts.Debug {
			ec = zap.NewProductionEncoderConfig()
			level = zap.NewProductionConfig().Level.Level()
		} else {
			ec = zap.NewDevelopmentEncoderConfig()
			level = zap.NewDevelopmentConfig().Level.Level()
		}
		ec.EncodeTime = zapcore.ISO8601TimeEncoder

		// Console output goes to stderr; stdout belongs to progress and operator prompts
		consoleEncoder := zapcore.NewConsoleEncoder(ec)
		core := zapcore.NewTee(
			zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stderr), level),
		)

		// Initialize logging to file if enabled
		if opts.LogToFile {
			lumberJackLogger := &lumberjack.Logger{
				Filename:   opts.FilePath,
				MaxSize:    10,
				MaxBackups: 5,
				MaxAge:     30,
				Compress:   false,
			}
			core = zapcore.NewTee(core, zapcore.NewCore(zapcore.NewJSONEncoder(ec), zapcore.AddSync(lumberJackLogger), level))
		}

		// Include additional info in the log output
		log = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zap.FatalLevel))
		zap.ReplaceGlobals(log)
	})
}

// Sync flushes any buffered log entries
func Sync() {
	_ = zap.L().Sync()
}

/*
MaskSensitiveData takes a struct and applies masking to any sensitive fields tagged with `mask`
see the following for available mask types and masking behavior
https://github.com/anu1097/golang-masking-tool/tree/v0.0.5#custom-mask-types

e.g.

	type storeConfig struct {
		Driver   string
		Password string `mask:"password"`
	}
*/
func MaskSensitiveData(v interface{}) interface{} {
	return masker.MaskDetails(v)
}

// Logger returns the global sugared logger. Before Setup it discards everything.
func Logger() *zap.SugaredLogger {
	return zap.L().Sugar()
}

// WithTask returns a logger that adds the task id and name to every entry
func WithTask(id string, name string) *zap.SugaredLogger {
	return zap.L().With(zap.String("task_id", id), zap.String("task", name)).Sugar()
}

// Fatal logs args and exits
func Fatal(args ...interface{}) {
	Logger().Fatal(args...)
}

func Debugf(format string, args ...interface{}) {
	Logger().Debugf(format, args...)
}

func Infof(format string, args ...interface{}) {
	Logger().Infof(format, args...)
}

// Infow logs a message with key-value pairs, as zap's With does
func Infow(msg string, keysAndValues ...interface{}) {
	Logger().Infow(msg, keysAndValues...)
}

func Warnf(format string, args ...interface{}) {
	Logger().Warnf(format, args...)
}

func Errorf(format string, args ...interface{}) {
	Logger().Errorf(format, args...)
}

// Fatalf logs a templated message, then calls os.Exit
func Fatalf(format string, args ...interface{}) {
	Logger().Fatalf(format, args...)
}

// Panicf logs a templated message, then panics
func Panicf(format string, args ...interface{}) {
	Logger().Panicf(format, args...)
}
