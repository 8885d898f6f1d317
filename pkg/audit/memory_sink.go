package audit

import (
	"sync"

	"github.com/google/uuid"
)

// InMemorySink retains every appended event in process memory, assigning
// sequence numbers atomically. It is the default sink for tests and for
// deployments that forward audit events elsewhere out of band.
type InMemorySink struct {
	mu     sync.Mutex
	seq    uint64
	events []Event
}

// NewInMemorySink returns an empty InMemorySink.
func NewInMemorySink() *InMemorySink {
	return &InMemorySink{}
}

func (s *InMemorySink) Append(e Event) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	e.Sequence = s.seq
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	s.events = append(s.events, e)
	return e, nil
}

// Events returns a copy of every event appended so far, in sequence order.
func (s *InMemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}
