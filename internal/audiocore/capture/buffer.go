package capture

import (
	"io"
	"sync/atomic"

	"github.com/tphakala/speechscope/internal/audiocore/buffer"
	"github.com/tphakala/speechscope/internal/errors"
)

// ComponentCapture identifies capture errors
const ComponentCapture = "audiocore.capture"

// ErrSourceClosed is returned by Pull after Close.
var ErrSourceClosed = errors.New(errors.NewStd("capture source closed")).
	Component(ComponentCapture).
	Category(errors.CategoryAudioSource).
	Build()

// Buffer is the capture ring between a producer and the pipeline. It owns a
// private hub, so closing it never cancels the pipeline's own buffers.
type Buffer struct {
	sb       *buffer.SampleBuffer
	hub      *buffer.Hub
	finished atomic.Bool
}

// NewBuffer creates a capture ring of capacity samples at the given rate.
func NewBuffer(capacity int, rate float64) *Buffer {
	hub := buffer.NewHub()
	return &Buffer{
		sb:  buffer.New(capacity, buffer.WithHub(hub), buffer.WithSampleRate(rate)),
		hub: hub,
	}
}

// Write appends samples at the current rate, dropping the oldest on overflow.
func (b *Buffer) Write(samples []float32) {
	b.sb.Push(samples, 0)
}

// SetSampleRate changes the rate tag of subsequently written samples.
func (b *Buffer) SetSampleRate(rate float64) {
	b.sb.SetSampleRate(rate)
}

// Finish marks the end of the stream. Pending and later pulls drain what is
// left and then report io.EOF.
func (b *Buffer) Finish() {
	b.finished.Store(true)
	b.hub.CancelPulls()
}

// Close wakes a blocked Pull and makes every later Pull fail with ErrSourceClosed.
func (b *Buffer) Close() {
	b.hub.CancelPulls()
	b.sb.Close()
}

// Pull implements Source.
func (b *Buffer) Pull(out []float32) (int, error) {
	if len(out) > b.sb.Capacity() {
		out = out[:b.sb.Capacity()]
	}

	err := b.sb.Pull(out)
	if err == nil {
		return len(out), nil
	}
	if !errors.Is(err, buffer.ErrPullCancelled) {
		return 0, err
	}
	if !b.finished.Load() {
		return 0, ErrSourceClosed
	}

	n := b.sb.Drain(out)
	if n < len(out) {
		return n, io.EOF
	}
	return n, nil
}

// SampleRate implements Source.
func (b *Buffer) SampleRate() float64 {
	return b.sb.SampleRate()
}

// Length implements Source.
func (b *Buffer) Length() int {
	return b.sb.Length()
}

// Capacity returns the ring size in samples.
func (b *Buffer) Capacity() int {
	return b.sb.Capacity()
}

// Free returns the number of samples that can be written without dropping.
func (b *Buffer) Free() int {
	return b.sb.Capacity() - b.sb.Length()
}

// Dropped returns how many samples were lost to overflow.
func (b *Buffer) Dropped() uint64 {
	return b.sb.Dropped()
}

var (
	_ Source = (*Buffer)(nil)
	_ Writer = (*Buffer)(nil)
)
