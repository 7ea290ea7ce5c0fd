package pipeline

import (
	"time"
)

// StreamStatus describes one analysis stream.
type StreamStatus struct {
	Name      string        `json:"name"`
	State     string        `json:"state"`
	Alive     bool          `json:"alive"`
	Error     string        `json:"error,omitempty"`
	Frames    uint64        `json:"frames"`
	Pending   int           `json:"pendingSamples"`
	Dropped   uint64        `json:"droppedSamples"`
	FrameTime float64       `json:"frameTime"`
	StageTime time.Duration `json:"stageTime"`
}

// Status is a point-in-time snapshot of the pipeline.
type Status struct {
	Streams        []StreamStatus `json:"streams"`
	BlockSize      int            `json:"blockSize"`
	Time           float64        `json:"time"`
	Backlog        int            `json:"backlogSamples"`
	SampleRate     float64        `json:"sampleRate"`
	CaptureLatency float64        `json:"captureLatency"`
	Started        bool           `json:"started"`
	Closed         bool           `json:"closed"`
}

// Status returns a snapshot safe to call from any goroutine.
func (p *Pipeline) Status() Status {
	st := Status{
		Streams:    make([]StreamStatus, 0, len(p.streams)),
		BlockSize:  p.BlockSize(),
		Time:       p.Time(),
		Backlog:    int(p.backlog.Load()),
		SampleRate: p.SampleRate(),
		Started:    p.started.Load(),
		Closed:     p.closed.Load(),
	}
	if st.SampleRate > 0 {
		st.CaptureLatency = float64(st.Backlog) / st.SampleRate
	}

	for _, s := range p.streams {
		ss := StreamStatus{
			Name:      s.name,
			State:     s.life.State().String(),
			Alive:     s.life.Alive(),
			Frames:    s.frames.Load(),
			Pending:   s.buf.Length(),
			Dropped:   s.buf.Dropped(),
			FrameTime: s.frameTime(),
			StageTime: s.timing.Value(),
		}
		if err := s.life.Err(); err != nil {
			ss.Error = err.Error()
		}
		st.Streams = append(st.Streams, ss)
	}
	return st
}

// Stream returns the status of the named stream.
func (st Status) Stream(name string) (StreamStatus, bool) {
	for _, s := range st.Streams {
		if s.Name == name {
			return s, true
		}
	}
	return StreamStatus{}, false
}
