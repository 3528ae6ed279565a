// Package zaplog builds logr.Logger implementations backed by zap, with
// defaults suited for production JSON output and a mode for deterministic
// example/test output.
package zaplog

import (
	"io"
	"os"
	"strconv"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewZap returns a new *Builder using the default configuration: JSON
// encoding with zap's production encoder settings, the logr verbosity
// rendered into the level name, writing to os.Stdout.
func NewZap() *Builder {
	return &Builder{
		out:       os.Stdout,
		stackFrom: zap.ErrorLevel,
	}
}

// Builder is a builder-pattern struct for building a logr.Logger using
// go.uber.org/zap.
type Builder struct {
	out       io.Writer
	console   bool
	level     zapcore.Level
	omitTime  bool
	humanTime bool
	stackFrom zapcore.Level
	opts      []zap.Option
}

// LogTo specifies where to write logs. To write to multiple destinations,
// use io.MultiWriter or preferably zapcore.NewMultiWriteSyncer. The writer
// is locked using zapcore.Lock at Build() time, so it can be shared safely.
//
// Defaults to os.Stdout.
//
// A call to this function overwrites any previous value.
func (b *Builder) LogTo(w io.Writer) *Builder {
	b.out = w
	return b
}

// Console switches from JSON to the tab-separated console encoding, with
// capitalized level names and human-friendly time formatting.
//
// A call to this function overwrites any previous value.
func (b *Builder) Console() *Builder {
	b.console = true
	return b.HumanFriendlyTime()
}

// Example tunes the output for examples and tests, where the output must
// be deterministic: timestamps are omitted, times and durations are
// human-friendly, and errors carry no stack trace.
//
// A call to this function overwrites any previous value.
func (b *Builder) Example() *Builder {
	return b.HumanFriendlyTime().
		NoTimestamps().
		NoStacktraceOnError()
}

// LogUpto specifies the highest logr verbosity that is still output. All
// log messages with a level _less than or equal to_ logrLevel are written.
//
// logr and zap count levels in opposite directions; logr level N is zap
// level -N. The default of 0 outputs plain Info and Error calls only,
// unless logr.Logger.V() raised the verbosity.
//
// logr disallows negative levels, so negative values count as 0.
//
// A call to this function overwrites any previous value.
func (b *Builder) LogUpto(logrLevel int8) *Builder {
	if logrLevel < 0 {
		logrLevel = 0
	}
	b.level = zapcore.Level(-logrLevel)
	return b
}

// NoTimestamps omits timestamps from the output. It's useful for
// deterministic output in examples and tests.
//
// A call to this function overwrites any previous value.
func (b *Builder) NoTimestamps() *Builder {
	b.omitTime = true
	return b
}

// HumanFriendlyTime serializes a time.Time as an ISO8601 string with
// millisecond precision, and a time.Duration using its String method.
//
// A call to this function overwrites any previous value.
func (b *Builder) HumanFriendlyTime() *Builder {
	b.humanTime = true
	return b
}

// NoStacktraceOnError makes the logger not output a stack trace when an
// error is logged, by moving the stack trace threshold up to the zap
// DPanicLevel.
//
// A call to this function overwrites any previous value.
func (b *Builder) NoStacktraceOnError() *Builder {
	b.stackFrom = zap.DPanicLevel
	return b
}

// WithOptions appends options for configuring zap. The defaults applied in
// Build() are:
//
//	zap.AddStacktrace(zap.ErrorLevel)
//	zap.ErrorOutput(sink)
//
// and can be overridden through this method.
//
// A call to this function appends to the list of previous values.
func (b *Builder) WithOptions(opts ...zap.Option) *Builder {
	b.opts = append(b.opts, opts...)
	return b
}

// Build builds the logger with the configured options.
//
// By default the logger name is an empty string, and the verbosity is 0.
func (b *Builder) Build() logr.Logger {
	// Lock the sink; writers like *os.File are not safe for concurrent use.
	sink := zapcore.Lock(zapcore.AddSync(b.out))

	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeLevel = verbosityLevelEncoder(b.console)
	if b.omitTime {
		cfg.TimeKey = zapcore.OmitKey
	}
	if b.humanTime {
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.EncodeDuration = zapcore.StringDurationEncoder
	}

	newEncoder := zapcore.NewJSONEncoder
	if b.console {
		newEncoder = zapcore.NewConsoleEncoder
	}

	// Internal zap errors go to the same sink. The defaults are listed
	// first so WithOptions can override them.
	opts := append([]zap.Option{
		zap.AddStacktrace(b.stackFrom),
		zap.ErrorOutput(sink),
	}, b.opts...)

	return zapr.NewLogger(
		zap.New(zapcore.NewCore(newEncoder(cfg), sink, b.level), opts...),
	)
}

// verbosityLevelEncoder renders the level name with the logr verbosity
// suffixed, e.g. "info(v=0)", "debug(v=2)" or "ERROR". Everything below
// zap's DebugLevel is a logr verbosity too.
//
// TODO: Once logr v1.x and https://github.com/go-logr/zapr/pull/37 land,
// the verbosity can become a regular field instead.
func verbosityLevelEncoder(capital bool) zapcore.LevelEncoder {
	return func(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		str := l.String()
		if capital {
			str = l.CapitalString()
		}
		if l < zapcore.DebugLevel {
			str = "debug"
			if capital {
				str = "DEBUG"
			}
		}
		if l <= zapcore.InfoLevel {
			str += "(v=" + strconv.Itoa(int(-l)) + ")"
		}
		enc.AppendString(str)
	}
}
