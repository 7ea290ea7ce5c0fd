package pipeline

import (
	"sync"
)

// StreamState is the lifecycle position of one analysis stream.
type StreamState int32

const (
	StateIdle StreamState = iota
	StateRunning
	StateStopping
	StateJoined
)

func (s StreamState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateJoined:
		return "joined"
	}
	return "unknown"
}

// lifecycle owns the transitions of one stream:
//
//	Idle -> Running -> Stopping -> Joined
//	Running -> Joined            (worker failed)
//	Idle -> Stopping -> Joined   (closed before the first tick)
//
// Joined is terminal.
type lifecycle struct {
	mu    sync.Mutex
	state StreamState
	err   error
}

func (l *lifecycle) transition(to StreamState, from ...StreamState) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, f := range from {
		if l.state == f {
			l.state = to
			return true
		}
	}
	return false
}

func (l *lifecycle) start() bool {
	return l.transition(StateRunning, StateIdle)
}

func (l *lifecycle) stop() bool {
	return l.transition(StateStopping, StateIdle, StateRunning)
}

func (l *lifecycle) join() bool {
	return l.transition(StateJoined, StateStopping)
}

// fail records err and ends the stream. It reports false when the stream
// was already joined, in which case err is dropped.
func (l *lifecycle) fail(err error) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateJoined {
		return false
	}
	l.state = StateJoined
	l.err = err
	return true
}

func (l *lifecycle) State() StreamState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Alive reports whether the worker is running and has not failed.
func (l *lifecycle) Alive() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state == StateRunning && l.err == nil
}

func (l *lifecycle) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}
