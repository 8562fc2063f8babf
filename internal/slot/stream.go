package slot

import "sync"

// Stream owns the event log of a single slot. Handle makes fold, decide and
// append one atomic step so two concurrent Create commands cannot both see a
// free slot.
type Stream struct {
	mu     sync.Mutex
	env    Env
	events []Event
}

func NewStream(env Env, events ...Event) *Stream {
	log := make([]Event, len(events))
	copy(log, events)
	return &Stream{env: env, events: log}
}

// Handle decides cmd against the current state and appends the result. A
// command the state does not handle returns *UnhandledCommandError and leaves
// the log untouched.
func (s *Stream) Handle(cmd Command) ([]Event, State, error) {
	if err := cmd.Validate(); err != nil {
		return nil, State{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state := Fold(s.events...)
	if err := Allowed(state, cmd); err != nil {
		return nil, state, err
	}

	produced := Decide(state, cmd, s.env)
	s.events = append(s.events, produced...)
	return produced, FoldFrom(state, produced...), nil
}

func (s *Stream) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Fold(s.events...)
}

// Events returns a copy of the log.
func (s *Stream) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

func (s *Stream) Version() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}
