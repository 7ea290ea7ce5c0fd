// Package capture defines the boundary between audio producers (sound card,
// WAV file) and the analysis pipeline.
package capture

// Source is what the pipeline pulls capture blocks from.
type Source interface {
	// Pull blocks until len(out) samples are available and returns the number
	// copied. At end of stream it returns the remaining samples with io.EOF.
	Pull(out []float32) (int, error)

	// SampleRate is the rate of the samples currently being delivered.
	SampleRate() float64

	// Length is the number of samples waiting to be pulled.
	Length() int
}

// Writer is implemented by capture targets that device and file sources feed.
type Writer interface {
	Write(samples []float32)
	SetSampleRate(rate float64)
	Finish()
}
