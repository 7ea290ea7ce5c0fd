// Package errors - telemetry integration (optional)
package errors

import (
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/getsentry/sentry-go"
)

// TelemetryReporter is an interface for reporting errors to telemetry systems
type TelemetryReporter interface {
	ReportError(err *EnhancedError)
	IsEnabled() bool
}

// ErrorHook is called for every error built while reporting is active.
type ErrorHook func(ee *EnhancedError)

var (
	globalTelemetryReporter atomic.Pointer[TelemetryReporter]
	errorHooks              atomic.Pointer[[]ErrorHook]
	hasActiveReporting      atomic.Bool
)

// SetTelemetryReporter sets the global telemetry reporter; nil disables it
func SetTelemetryReporter(reporter TelemetryReporter) {
	if reporter == nil {
		globalTelemetryReporter.Store(nil)
	} else {
		globalTelemetryReporter.Store(&reporter)
	}
	updateActiveReporting()
}

// GetTelemetryReporter returns the current telemetry reporter
func GetTelemetryReporter() TelemetryReporter {
	if p := globalTelemetryReporter.Load(); p != nil {
		return *p
	}
	return nil
}

// AddErrorHook registers a hook invoked for every reported error
func AddErrorHook(hook ErrorHook) {
	for {
		old := errorHooks.Load()
		var hooks []ErrorHook
		if old != nil {
			hooks = append(hooks, *old...)
		}
		hooks = append(hooks, hook)
		if errorHooks.CompareAndSwap(old, &hooks) {
			break
		}
	}
	updateActiveReporting()
}

// ClearErrorHooks removes all registered hooks
func ClearErrorHooks() {
	errorHooks.Store(nil)
	updateActiveReporting()
}

func updateActiveReporting() {
	active := false
	if r := GetTelemetryReporter(); r != nil && r.IsEnabled() {
		active = true
	}
	if hooks := errorHooks.Load(); hooks != nil && len(*hooks) > 0 {
		active = true
	}
	hasActiveReporting.Store(active)
}

// reportToTelemetry reports an error to the configured telemetry system and hooks
func reportToTelemetry(ee *EnhancedError) {
	if hooks := errorHooks.Load(); hooks != nil {
		for _, hook := range *hooks {
			hook(ee)
		}
	}
	if r := GetTelemetryReporter(); r != nil && r.IsEnabled() {
		r.ReportError(ee)
	}
}

// SentryReporter implements TelemetryReporter for Sentry
type SentryReporter struct {
	enabled bool
}

// NewSentryReporter creates a new Sentry telemetry reporter
func NewSentryReporter(enabled bool) *SentryReporter {
	return &SentryReporter{enabled: enabled}
}

// InitSentry initializes the sentry client and installs a SentryReporter.
// An empty DSN leaves telemetry disabled.
func InitSentry(dsn, release, sessionID string) error {
	if dsn == "" {
		return nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Release:          release,
		AttachStacktrace: true,
	}); err != nil {
		return fmt.Errorf("sentry init: %w", err)
	}
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("session_id", sessionID)
	})
	SetTelemetryReporter(NewSentryReporter(true))
	return nil
}

// FlushSentry waits for queued events to be delivered
func FlushSentry(timeout time.Duration) {
	if GetTelemetryReporter() != nil {
		sentry.Flush(timeout)
	}
}

// IsEnabled returns whether Sentry telemetry is enabled
func (sr *SentryReporter) IsEnabled() bool {
	return sr.enabled
}

// ReportError reports an enhanced error to Sentry
func (sr *SentryReporter) ReportError(ee *EnhancedError) {
	if !sr.enabled || ee.IsReported() {
		return
	}

	message := scrubMessage(fmt.Sprintf("[%s] %s", ee.Category, ee.Error()))

	sentry.WithScope(func(scope *sentry.Scope) {
		title := generateErrorTitle(ee)

		scope.SetTag("error_title", title)
		scope.SetTag("component", ee.GetComponent())
		scope.SetTag("category", string(ee.Category))
		scope.SetTag("error_type", fmt.Sprintf("%T", ee.Err))
		if ee.Priority != "" {
			scope.SetTag("priority", ee.Priority)
		}

		for key, value := range ee.GetContext() {
			if s, ok := value.(string); ok {
				value = scrubMessage(s)
			}
			scope.SetContext(key, map[string]any{"value": value})
		}

		level := getErrorLevel(ee.Category)
		scope.SetLevel(level)
		scope.SetFingerprint([]string{title, ee.GetComponent(), string(ee.Category)})

		event := sentry.NewEvent()
		event.Message = message
		event.Level = level
		event.Exception = []sentry.Exception{{Type: title, Value: message}}
		sentry.CaptureEvent(event)
	})

	ee.MarkReported()
}

// generateErrorTitle builds "Component Category Operation" for grouping
func generateErrorTitle(ee *EnhancedError) string {
	var parts []string
	if c := ee.GetComponent(); c != "" && c != ComponentUnknown {
		parts = append(parts, titleCase(c))
	}
	parts = append(parts, formatCategoryForTitle(ee.Category))
	if op, ok := ee.GetContext()["operation"].(string); ok && op != "" {
		words := strings.Fields(strings.ReplaceAll(op, "_", " "))
		for i, w := range words {
			words[i] = titleCase(w)
		}
		parts = append(parts, strings.Join(words, " "))
	}
	return strings.Join(parts, " ")
}

func formatCategoryForTitle(category ErrorCategory) string {
	switch category {
	case CategoryValidation:
		return "Validation Error"
	case CategoryConfiguration:
		return "Configuration Error"
	case CategoryAudioSource:
		return "Audio Source Error"
	case CategoryBuffer:
		return "Buffer Error"
	case CategorySolver:
		return "Solver Error"
	case CategoryWorker:
		return "Worker Failure"
	case CategoryResample:
		return "Resampling Error"
	default:
		return titleCase(string(category))
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func getErrorLevel(category ErrorCategory) sentry.Level {
	switch category {
	case CategoryAudioSource, CategoryNetwork, CategoryHTTP, CategoryCancellation:
		return sentry.LevelWarning // usually transient
	default:
		return sentry.LevelError
	}
}

var (
	urlQueryRegex = regexp.MustCompile(`(https?://[^?\s]+)\?\S*`)
	dsnRegex      = regexp.MustCompile(`https?://[0-9a-fA-F]{16,}@\S+`)
	homeDirRegex  = regexp.MustCompile(`/home/[^/\s]+`)
)

// scrubMessage removes query strings, DSNs and home directory names
func scrubMessage(message string) string {
	scrubbed := dsnRegex.ReplaceAllString(message, "[DSN_REDACTED]")
	scrubbed = urlQueryRegex.ReplaceAllString(scrubbed, "$1?[REDACTED]")
	return homeDirRegex.ReplaceAllString(scrubbed, "/home/[USER]")
}
