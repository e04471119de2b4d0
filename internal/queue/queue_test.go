package queue

import (
	"testing"
	"time"

	"github.com/wwolkers/pyvisonic/internal/frame"
)

func TestTickRespectsMinimumSpacing(t *testing.T) {
	var sent [][]byte
	s := NewSender(func(f []byte) error {
		sent = append(sent, f)
		return nil
	})
	s.Enqueue(Entry{Frame: []byte{1}})
	s.Enqueue(Entry{Frame: []byte{2}})

	base := time.Unix(0, 0)
	if err := s.Tick(base); err != nil {
		t.Fatal(err)
	}
	if len(sent) != 1 {
		t.Fatalf("expected one send, got %d", len(sent))
	}

	// OnFrameReceived would normally clear waitingForAck; simulate an ack
	// arriving immediately so spacing alone is under test.
	s.OnFrameReceived(frame.TypeAck)

	if err := s.Tick(base.Add(100 * time.Millisecond)); err != nil {
		t.Fatal(err)
	}
	if len(sent) != 1 {
		t.Fatalf("expected send suppressed by spacing, got %d total", len(sent))
	}

	if err := s.Tick(base.Add(600 * time.Millisecond)); err != nil {
		t.Fatal(err)
	}
	if len(sent) != 2 {
		t.Fatalf("expected second send after spacing elapsed, got %d", len(sent))
	}
}

func TestOnlyOneEntryInFlight(t *testing.T) {
	var sent int
	s := NewSender(func(f []byte) error {
		sent++
		return nil
	})
	s.Enqueue(Entry{Frame: []byte{1}, Expected: []frame.Type{frame.TypeStatus}})
	s.Enqueue(Entry{Frame: []byte{2}, Expected: []frame.Type{frame.TypeStatus}})

	base := time.Unix(0, 0)
	s.Tick(base)
	if sent != 1 {
		t.Fatalf("expected first entry sent, got %d", sent)
	}

	// Second entry must not go out even though spacing has elapsed,
	// because the expected response hasn't arrived yet.
	s.Tick(base.Add(time.Second))
	if sent != 1 {
		t.Fatalf("expected send gated on expected response, got %d", sent)
	}

	s.OnFrameReceived(frame.TypeStatus)
	s.Tick(base.Add(2 * time.Second))
	if sent != 2 {
		t.Fatalf("expected second entry sent after response arrived, got %d", sent)
	}
}

func TestWaitForAckGatesOnPlainAckNotArbitraryReply(t *testing.T) {
	var sent int
	s := NewSender(func(f []byte) error {
		sent++
		return nil
	})
	s.Enqueue(Entry{Frame: []byte{1}, WaitForAck: true})
	s.Enqueue(Entry{Frame: []byte{2}, WaitForAck: true})

	base := time.Unix(0, 0)
	s.Tick(base)
	if sent != 1 {
		t.Fatalf("expected first entry sent, got %d", sent)
	}

	// An unrelated status frame must not release wait_for_ack.
	s.OnFrameReceived(frame.TypeStatus)
	s.Tick(base.Add(time.Second))
	if sent != 1 {
		t.Fatalf("expected send still gated on plain ack, got %d", sent)
	}

	s.OnFrameReceived(frame.TypeAck)
	s.Tick(base.Add(2 * time.Second))
	if sent != 2 {
		t.Fatalf("expected second entry sent after plain ack, got %d", sent)
	}
}

func TestResetClearsGatesNotQueue(t *testing.T) {
	s := NewSender(func(f []byte) error { return nil })
	s.Enqueue(Entry{Frame: []byte{1}})
	s.Enqueue(Entry{Frame: []byte{2}})
	s.Tick(time.Unix(0, 0))
	s.waitingForAck = true

	s.Reset()
	if s.waitingForAck {
		t.Fatal("Reset should clear waitingForAck")
	}
	if s.Pending() != 1 {
		t.Fatalf("Reset must leave the unsent entry queued, want 1 pending, got %d", s.Pending())
	}
}
