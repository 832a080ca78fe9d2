// Package telemetry forwards enhanced errors to Sentry when enabled.
package telemetry

import (
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/fieldrow/companyfix/internal/conf"
	"github.com/fieldrow/companyfix/internal/errors"
)

var enabled atomic.Bool

// Init configures Sentry from settings and registers the error reporter.
// When telemetry is disabled this is a no-op and error building stays on its
// fast path.
func Init(settings *conf.Settings, version string) error {
	if settings == nil || !settings.Sentry.Enabled {
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              settings.Sentry.DSN,
		Environment:      settings.Sentry.Environment,
		Release:          "companyfix@" + version,
		AttachStacktrace: true,
	})
	if err != nil {
		return err
	}

	enabled.Store(true)
	errors.SetReporter(reporterFunc(captureEnhancedError))
	return nil
}

// Flush ensures all buffered events are sent before shutdown.
func Flush(timeout time.Duration) {
	if enabled.Load() {
		sentry.Flush(timeout)
	}
}

type reporterFunc func(*errors.EnhancedError)

func (f reporterFunc) ReportError(ee *errors.EnhancedError) { f(ee) }

func captureEnhancedError(ee *errors.EnhancedError) {
	if !enabled.Load() {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", ee.Component)
		scope.SetTag("category", ee.GetCategory())
		if ee.Priority != "" {
			scope.SetTag("priority", ee.Priority)
		}
		if ctx := ee.GetContext(); ctx != nil {
			scope.SetContext("error", ctx)
		}
		sentry.CaptureException(ee.Err)
	})
}
