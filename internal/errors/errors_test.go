package errors

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingReporter struct {
	reports atomic.Int32
}

func (r *countingReporter) ReportError(ee *EnhancedError) {
	r.reports.Add(1)
	ee.MarkReported()
}

func (r *countingReporter) IsEnabled() bool { return true }

func TestFastPathNoTelemetry(t *testing.T) {
	SetTelemetryReporter(nil)
	ClearErrorHooks()

	ee := New(fmt.Errorf("test error")).Build()

	assert.Equal(t, "test error", ee.Error())
	assert.Equal(t, ComponentUnknown, ee.GetComponent())
	assert.Equal(t, CategoryGeneric, ee.Category)
	assert.False(t, ee.IsReported())
}

func TestBuilderSetsFields(t *testing.T) {
	t.Parallel()

	ee := Newf("bad rate %d", -1).
		Component("resample").
		Category(CategoryValidation).
		Priority(PriorityHigh).
		Context("rate", -1).
		Build()

	assert.Equal(t, "bad rate -1", ee.Error())
	assert.Equal(t, "resample", ee.GetComponent())
	assert.Equal(t, CategoryValidation, ee.Category)
	assert.Equal(t, PriorityHigh, ee.GetPriority())
	assert.Equal(t, -1, ee.GetContext()["rate"])
}

func TestInvalidPriorityFallsBackToMedium(t *testing.T) {
	t.Parallel()

	ee := New(NewStd("x")).Priority("urgent").Build()
	assert.Equal(t, PriorityMedium, ee.Priority)
}

func TestSentinelMatchingSurvivesRewrap(t *testing.T) {
	t.Parallel()

	sentinel := New(NewStd("pull cancelled")).Component("buffer").Category(CategoryCancellation).Build()
	other := New(NewStd("pull cancelled")).Category(CategoryCancellation).Build()

	wrapped := New(sentinel).Context("stream", "pitch").Build()

	assert.True(t, Is(wrapped, sentinel))
	assert.False(t, Is(wrapped, other), "same category must not be enough to match")
	assert.Equal(t, CategoryCancellation, wrapped.Category, "category is inherited from the wrapped error")
	assert.True(t, IsCategory(wrapped, CategoryCancellation))
	assert.Equal(t, "buffer", wrapped.GetComponent(), "component is inherited from the wrapped error")
}

func TestReporterAndHooks(t *testing.T) {
	reporter := &countingReporter{}
	SetTelemetryReporter(reporter)
	var hooked atomic.Int32
	AddErrorHook(func(*EnhancedError) { hooked.Add(1) })
	t.Cleanup(func() {
		SetTelemetryReporter(nil)
		ClearErrorHooks()
	})

	ee := New(NewStd("worker died")).Category(CategoryWorker).Build()

	require.True(t, ee.IsReported())
	assert.Equal(t, int32(1), reporter.reports.Load())
	assert.Equal(t, int32(1), hooked.Load())
}

func TestComponentFromFunc(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "buffer", componentFromFunc("github.com/tphakala/speechscope/internal/audiocore/buffer.(*SampleBuffer).Pull"))
	assert.Equal(t, "pipeline", componentFromFunc("github.com/tphakala/speechscope/internal/pipeline.New"))
	assert.Equal(t, ComponentUnknown, componentFromFunc("main"))
}

func TestScrubMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		absent  string
		present string
	}{
		{"query string", "GET https://example.com/a?token=abc", "token=abc", "[REDACTED]"},
		{"home dir", "open /home/alice/speech.wav failed", "alice", "/home/[USER]"},
		{"dsn", "dsn https://0123456789abcdef0123@o1.ingest.sentry.io/1", "0123456789abcdef", "[DSN_REDACTED]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out := scrubMessage(tt.in)
			assert.NotContains(t, out, tt.absent)
			assert.Contains(t, out, tt.present)
		})
	}
}

func TestGenerateErrorTitle(t *testing.T) {
	t.Parallel()

	ee := New(NewStd("boom")).
		Component("pipeline").
		Category(CategoryWorker).
		Context("operation", "formant_solve").
		Build()

	assert.Equal(t, "Pipeline Worker Failure Formant Solve", generateErrorTitle(ee))
}
