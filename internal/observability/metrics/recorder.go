// Package metrics provides custom Prometheus metrics for speechscope.
package metrics

// Recorder is what the analysis pipeline reports through. Depending on the
// interface instead of the collectors keeps the pipeline testable without a
// registry.
type Recorder interface {
	// RecordFrame counts one analysed frame written by stream.
	RecordFrame(stream string)

	// RecordStageDuration records how long stream took for one frame.
	RecordStageDuration(stream string, seconds float64)

	// RecordStreamError counts a fatal stream error by error category.
	RecordStreamError(stream, category string)

	// SetStreamAlive reports whether a stream's worker is still analysing.
	SetStreamAlive(stream string, alive bool)

	// SetBlockSize reports the capture block size in samples.
	SetBlockSize(samples int)

	// SetBacklog reports the capture samples waiting to be pulled.
	SetBacklog(samples int)

	// RecordBlockSizeChange counts a controller step, direction "grow" or "shrink".
	RecordBlockSizeChange(direction string)

	// SetDroppedSamples reports the overflow total of a sample buffer.
	SetDroppedSamples(buffer string, total uint64)

	// SetCatchupCount reports the reader catch-up counter of the data store.
	SetCatchupCount(total uint64)

	// RecordRewind counts track entries a stream overwrote after its
	// timestamps moved backwards.
	RecordRewind(stream string, entries uint64)
}

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) RecordFrame(string)                  {}
func (NopRecorder) RecordStageDuration(string, float64) {}
func (NopRecorder) RecordStreamError(string, string)    {}
func (NopRecorder) SetStreamAlive(string, bool)         {}
func (NopRecorder) SetBlockSize(int)                    {}
func (NopRecorder) SetBacklog(int)                      {}
func (NopRecorder) RecordBlockSizeChange(string)        {}
func (NopRecorder) SetDroppedSamples(string, uint64)    {}
func (NopRecorder) SetCatchupCount(uint64)              {}
func (NopRecorder) RecordRewind(string, uint64)         {}

var (
	_ Recorder = NopRecorder{}
	_ Recorder = (*PipelineMetrics)(nil)
)
