// Package buffer provides the sample buffers that decouple the capture path
// from the analysis workers.
//
// A SampleBuffer has one producer and one consumer. The producer never
// blocks: when the ring is full the oldest samples are dropped so latency
// stays bounded. The consumer blocks in Pull until enough samples arrive or
// the buffer's Hub is cancelled.
package buffer

import (
	"encoding/binary"
	"math"
	"sync"
	"sync/atomic"

	"github.com/smallnest/ringbuffer"

	"github.com/tphakala/speechscope/internal/errors"
	"github.com/tphakala/speechscope/internal/logger"
)

const (
	bytesPerSample = 4

	// dropLogInterval rate limits the drop warning to every Nth overflowing push
	dropLogInterval = 32
)

// GetLogger returns the sample buffer logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("audiocore.buffer")
}

// SampleBuffer is a float32 ring tagged with the sample rate of the samples
// most recently written.
type SampleBuffer struct {
	mu   sync.Mutex
	cond *sync.Cond

	rb       *ringbuffer.RingBuffer
	capacity int
	rate     float64

	hub    *Hub
	closed bool

	pushScratch []byte
	pullScratch []byte
	discard     []byte

	dropped    atomic.Uint64
	overflowed uint64
}

// Option configures a SampleBuffer.
type Option func(*SampleBuffer)

// WithHub registers the buffer on h instead of the default hub.
func WithHub(h *Hub) Option {
	return func(b *SampleBuffer) {
		if h != nil {
			b.hub = h
		}
	}
}

// WithSampleRate sets the initial sample rate tag.
func WithSampleRate(rate float64) Option {
	return func(b *SampleBuffer) { b.rate = rate }
}

// New creates a buffer holding up to capacity samples. Close detaches it from
// its hub; an unclosed buffer is forgotten by the hub once collected.
func New(capacity int, opts ...Option) *SampleBuffer {
	if capacity < 1 {
		capacity = 1
	}
	b := &SampleBuffer{
		rb:       ringbuffer.New(capacity * bytesPerSample),
		capacity: capacity,
		hub:      defaultHub,
	}
	b.cond = sync.NewCond(&b.mu)
	for _, opt := range opts {
		opt(b)
	}
	b.hub.register(b)
	return b
}

// Push appends samples tagged with rate. When the buffer cannot hold them the
// oldest samples are discarded first. Push never blocks on the consumer.
func (b *SampleBuffer) Push(samples []float32, rate float64) {
	if len(samples) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	if rate > 0 {
		b.rate = rate
	}

	var dropped int
	if len(samples) > b.capacity {
		dropped = len(samples) - b.capacity
		samples = samples[dropped:]
	}

	need := len(samples) * bytesPerSample
	if free := b.rb.Free(); free < need {
		dropped += b.discardLocked(need - free)
	}

	b.pushScratch = encodeSamples(b.pushScratch, samples)
	if _, err := b.rb.Write(b.pushScratch); err != nil {
		// the ring was made room for above, so this is a broken invariant
		GetLogger().Error("sample buffer write failed",
			logger.Error(err),
			logger.Int("samples", len(samples)),
			logger.Int("free_bytes", b.rb.Free()))
	}

	if dropped > 0 {
		b.dropped.Add(uint64(dropped))
		b.overflowed++
		if b.overflowed%dropLogInterval == 1 {
			GetLogger().Warn("sample buffer full, dropping oldest samples",
				logger.Int("dropped", dropped),
				logger.Uint64("dropped_total", b.dropped.Load()),
				logger.Int("capacity", b.capacity))
		}
	}

	b.cond.Broadcast()
}

// discardLocked drops at least n bytes of the oldest samples and returns the
// number of samples dropped.
func (b *SampleBuffer) discardLocked(n int) int {
	if rem := n % bytesPerSample; rem != 0 {
		n += bytesPerSample - rem
	}
	if n > b.rb.Length() {
		n = b.rb.Length()
	}
	if cap(b.discard) < n {
		b.discard = make([]byte, n)
	}
	read, _ := b.rb.Read(b.discard[:n])
	return read / bytesPerSample
}

// Pull blocks until len(out) samples are available and copies them into out.
// It returns ErrPullCancelled, without copying, once the hub is cancelled or
// the buffer is closed.
func (b *SampleBuffer) Pull(out []float32) error {
	n := len(out)
	if n == 0 || n > b.capacity {
		return errors.New(ErrInvalidPullSize).
			Context("requested", n).
			Context("capacity", b.capacity).
			Build()
	}
	need := n * bytesPerSample

	b.mu.Lock()
	defer b.mu.Unlock()

	for {
		if b.closed || b.hub.Cancelled() {
			return ErrPullCancelled
		}
		if b.rb.Length() >= need {
			break
		}
		b.cond.Wait()
	}

	if cap(b.pullScratch) < need {
		b.pullScratch = make([]byte, need)
	}
	buf := b.pullScratch[:need]
	if _, err := b.rb.Read(buf); err != nil {
		return errors.New(err).
			Component(ComponentBuffer).
			Category(errors.CategoryBuffer).
			Context("operation", "pull").
			Build()
	}
	decodeSamples(out, buf)
	return nil
}

// Drain copies up to len(out) buffered samples without blocking and returns
// how many were copied. It ignores cancellation so a finished producer's
// tail can still be consumed.
func (b *SampleBuffer) Drain(out []float32) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := min(len(out), b.rb.Length()/bytesPerSample)
	if n == 0 {
		return 0
	}
	need := n * bytesPerSample
	if cap(b.pullScratch) < need {
		b.pullScratch = make([]byte, need)
	}
	buf := b.pullScratch[:need]
	read, _ := b.rb.Read(buf)
	n = read / bytesPerSample
	decodeSamples(out[:n], buf)
	return n
}

// SetSampleRate retags the buffer. Consumers re-derive frame sizes from
// SampleRate on every pull.
func (b *SampleBuffer) SetSampleRate(rate float64) {
	b.mu.Lock()
	b.rate = rate
	b.mu.Unlock()
}

// SampleRate returns the rate of the most recently written samples.
func (b *SampleBuffer) SampleRate() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rate
}

// Length returns the number of buffered samples.
func (b *SampleBuffer) Length() int {
	return b.rb.Length() / bytesPerSample
}

// Capacity returns the maximum number of buffered samples.
func (b *SampleBuffer) Capacity() int {
	return b.capacity
}

// Dropped returns the total number of samples discarded on overflow.
func (b *SampleBuffer) Dropped() uint64 {
	return b.dropped.Load()
}

// Hub returns the hub the buffer is registered on.
func (b *SampleBuffer) Hub() *Hub {
	return b.hub
}

// Close wakes a blocked pull, makes further pulls fail with ErrPullCancelled
// and detaches the buffer from its hub. It is idempotent.
func (b *SampleBuffer) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.cond.Broadcast()
	b.mu.Unlock()

	b.hub.unregister(b)
}

// wake broadcasts under the lock so a puller that checked the cancel flag
// but has not yet waited cannot miss the signal.
func (b *SampleBuffer) wake() {
	b.mu.Lock()
	b.cond.Broadcast()
	b.mu.Unlock()
}

func encodeSamples(dst []byte, samples []float32) []byte {
	need := len(samples) * bytesPerSample
	if cap(dst) < need {
		dst = make([]byte, need)
	}
	dst = dst[:need]
	for i, s := range samples {
		binary.LittleEndian.PutUint32(dst[i*bytesPerSample:], math.Float32bits(s))
	}
	return dst
}

func decodeSamples(dst []float32, src []byte) {
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*bytesPerSample:]))
	}
}
