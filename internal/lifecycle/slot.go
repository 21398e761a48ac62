package lifecycle

import (
	"sync"

	"github.com/loykin/cockpit/internal/process"
)

// Slot holds at most one supervised process. Every method locks only for the
// swap or read itself; callers do spawning and killing outside the lock.
type Slot struct {
	mu sync.Mutex
	p  *process.Process
}

// Put stores p and returns whatever was stored before.
func (s *Slot) Put(p *process.Process) *process.Process {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.p
	s.p = p
	return prev
}

// Take removes and returns the stored process. Only the first of several
// concurrent callers gets a non-nil result.
func (s *Slot) Take() *process.Process {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.p
	s.p = nil
	return p
}

// Peek returns the stored process without removing it.
func (s *Slot) Peek() *process.Process {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p
}

func (s *Slot) Occupied() bool { return s.Peek() != nil }
