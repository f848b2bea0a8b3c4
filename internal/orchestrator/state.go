package orchestrator

import "sync/atomic"

type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
)

// RunState is the single-flight guard shared by every trigger path.
type RunState struct {
	running atomic.Bool
}

// TryStart moves Idle to Running and reports whether the caller won.
func (s *RunState) TryStart() bool {
	return s.running.CompareAndSwap(false, true)
}

func (s *RunState) Finish() {
	s.running.Store(false)
}

func (s *RunState) Running() bool {
	return s.running.Load()
}

func (s *RunState) State() State {
	if s.Running() {
		return StateRunning
	}
	return StateIdle
}
