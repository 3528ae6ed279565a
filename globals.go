package httptracer

import (
	"context"
	"net/http"
	"sync"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel"
)

//nolint:gochecknoglobals
var (
	acquireLoggerFunc   AcquireLoggerFunc = DefaultAcquireLoggerFunc
	acquireLoggerFuncMu                   = &sync.Mutex{}

	logger   = logr.Discard()
	loggerMu = &sync.Mutex{}
)

// GetGlobalTracerProvider returns the globally-registered TracerProvider.
// This is a shorthand for otel.GetTracerProvider().
func GetGlobalTracerProvider() TracerProvider { return otel.GetTracerProvider() }

// SetGlobalTracerProvider sets the globally-registered TracerProvider to tp.
// This is a shorthand for otel.SetTracerProvider(tp).
func SetGlobalTracerProvider(tp TracerProvider) { otel.SetTracerProvider(tp) }

// GetGlobalLogger gets the globally-registered Logger in this package.
// The default Logger implementation is logr.Discard().
func GetGlobalLogger() Logger {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	return logger
}

// SetGlobalLogger sets the globally-registered Logger in this package.
func SetGlobalLogger(log Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	logger = log
}

// AcquireLoggerFunc represents a function that can resolve a Logger from
// the given context. Two common implementations are
// DefaultAcquireLoggerFunc and
// "sigs.k8s.io/controller-runtime/pkg/log".FromContext.
type AcquireLoggerFunc func(context.Context) Logger

// DefaultAcquireLoggerFunc is the default AcquireLoggerFunc implementation.
// It tries to resolve a logger from the given context using logr.FromContext,
// but if no Logger is registered, it defaults to GetGlobalLogger().
func DefaultAcquireLoggerFunc(ctx context.Context) Logger {
	if log := logr.FromContext(ctx); log != nil {
		return log
	}
	return GetGlobalLogger()
}

// LoggerFromContext executes the globally-registered AcquireLoggerFunc in
// this package to resolve a Logger from the context.
//
// If you want to customize this behavior, run SetAcquireLoggerFunc().
func LoggerFromContext(ctx context.Context) Logger {
	acquireLoggerFuncMu.Lock()
	defer acquireLoggerFuncMu.Unlock()

	return acquireLoggerFunc(ctx)
}

// SetAcquireLoggerFunc sets the globally-registered AcquireLoggerFunc in
// this package.
func SetAcquireLoggerFunc(fn AcquireLoggerFunc) {
	acquireLoggerFuncMu.Lock()
	defer acquireLoggerFuncMu.Unlock()

	acquireLoggerFunc = fn
}

//nolint:gochecknoglobals
var (
	installMu sync.Mutex
	// installedBase remembers the original http.DefaultTransport reference
	// while an instrumented wrapper is installed, nil otherwise.
	installedBase http.RoundTripper
)

// InstallGlobally wraps http.DefaultTransport with an instrumented
// transport built from this Builder, so that all clients relying on the
// default transport are traced. The original reference is retained as
// explicit process-wide state; a later Uninstall() restores it.
//
// Composition through Builder.Transport at startup is preferred; this
// exists for processes that cannot reach every client construction site.
// Calling InstallGlobally twice replaces the wrapper but keeps the
// originally-saved transport.
func (b *Builder) InstallGlobally() {
	installMu.Lock()
	defer installMu.Unlock()

	base := http.DefaultTransport
	if installedBase != nil {
		base = installedBase
	}
	http.DefaultTransport = b.Transport(base)
	installedBase = base
}

// Uninstall restores the http.DefaultTransport reference that was replaced
// by InstallGlobally. It is a no-op when nothing is installed.
func Uninstall() {
	installMu.Lock()
	defer installMu.Unlock()

	if installedBase == nil {
		return
	}
	http.DefaultTransport = installedBase
	installedBase = nil
}
