// Package queue implements the single-producer send queue and its
// cooperative timers (spec §4.3-§4.4), grounded on the teacher's
// usock.go goroutine-plus-mutex shape.
package queue

import (
	"sync"
	"time"

	"github.com/wwolkers/pyvisonic/internal/frame"
)

// minSpacing is the minimum time the sender waits between two sends,
// regardless of ack state (spec §4.3).
const minSpacing = 500 * time.Millisecond

// Entry is one queued outbound frame plus the panel message types that
// would satisfy it (spec §4.3 "expected_responses multiset"). WaitForAck
// marks whether this send's own wait_for_ack gate is armed: most sends
// do, but a handshake control frame with no reply of its own (Exit) can
// leave it false.
type Entry struct {
	Frame      []byte
	Expected   []frame.Type
	WaitForAck bool
}

// Sender owns the FIFO of queued entries and the ack/timing state that
// gates how fast they drain onto the wire (spec §4.3). All fields are
// guarded by mu so the ~100ms tick timer, the dispatcher (on frame
// receipt) and command producers can all touch it concurrently.
type Sender struct {
	mu sync.Mutex

	queue             []Entry
	waitingForAck     bool
	expectedResponses map[frame.Type]int
	lastSentAt        time.Time

	write func([]byte) error
}

// NewSender returns a Sender that writes ready frames via write.
func NewSender(write func([]byte) error) *Sender {
	return &Sender{
		expectedResponses: make(map[frame.Type]int),
		write:             write,
	}
}

// Enqueue appends e to the FIFO. Safe to call concurrently with Tick.
func (s *Sender) Enqueue(e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, e)
}

// Pending reports the number of entries still queued.
func (s *Sender) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// OnFrameReceived updates ack/expected-response bookkeeping for an
// incoming frame of type t (spec §4.3/§6: wait_for_ack is satisfied on
// receipt of a plain ack, type 0x02; a type present in
// expected_responses decrements its count independently of that). It
// must be called by the dispatcher for every validated frame, before
// Tick next runs.
func (s *Sender) OnFrameReceived(t frame.Type) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t == frame.TypeAck {
		s.waitingForAck = false
	}
	if n, ok := s.expectedResponses[t]; ok {
		if n <= 1 {
			delete(s.expectedResponses, t)
		} else {
			s.expectedResponses[t] = n - 1
		}
	}
}

// Tick is driven by the ~100ms timer (spec §4.4). It sends the head of
// the queue when all three gates are open: nothing outstanding is
// waited on, no expected responses remain unsatisfied, and at least
// minSpacing has elapsed since the last send.
func (s *Sender) Tick(now time.Time) error {
	s.mu.Lock()

	if s.waitingForAck || len(s.expectedResponses) != 0 {
		s.mu.Unlock()
		return nil
	}
	if !s.lastSentAt.IsZero() && now.Sub(s.lastSentAt) < minSpacing {
		s.mu.Unlock()
		return nil
	}
	if len(s.queue) == 0 {
		s.mu.Unlock()
		return nil
	}

	next := s.queue[0]
	s.queue = s.queue[1:]
	s.waitingForAck = next.WaitForAck
	for _, t := range next.Expected {
		s.expectedResponses[t]++
	}
	s.lastSentAt = now
	write := s.write
	s.mu.Unlock()

	return write(next.Frame)
}

// Reset clears in-flight ack/expected-response state without touching
// the queue, used when the handshake state machine restarts a session
// after a CommException (spec §4.5).
func (s *Sender) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waitingForAck = false
	s.expectedResponses = make(map[frame.Type]int)
}

// Flush drops all queued-but-unsent entries, used when the handshake
// abandons a session for its one-shot auto-enroll restart (spec §4.5).
func (s *Sender) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = nil
}
