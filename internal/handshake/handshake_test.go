package handshake

import (
	"testing"
	"time"

	"github.com/wwolkers/pyvisonic/internal/frame"
	"github.com/wwolkers/pyvisonic/internal/panel"
)

func TestForceStandardSkipsDownload(t *testing.T) {
	var sent []SendEntry
	m := New(Config{ForceStandard: true}, func(e SendEntry) { sent = append(sent, e) }, nil)
	m.Start()
	m.HandleFrame(frame.TypeAck, nil, time.Now())

	if m.Mode() != panel.ModeStandard {
		t.Fatalf("Mode() = %v, want Standard", m.Mode())
	}
}

func TestCommExceptionThresholdRestartsSession(t *testing.T) {
	var starts int
	m := New(Config{CommExceptionLimit: 3}, func(e SendEntry) {
		if len(e.Expected) == 1 && e.Expected[0] == frame.TypeAck {
			starts++
		}
	}, nil)
	m.Start() // starts == 1

	if m.HandleCRCError() {
		t.Fatal("expected no restart before threshold")
	}
	if m.HandleCRCError() {
		t.Fatal("expected no restart before threshold")
	}
	if !m.HandleCRCError() {
		t.Fatal("expected restart at threshold")
	}
	if starts != 2 {
		t.Fatalf("expected Start() called twice total, got %d", starts)
	}
}

func TestAccessDeniedFallsBackToStandard(t *testing.T) {
	m := New(Config{}, func(e SendEntry) {}, nil)
	m.Start()
	m.HandleFrame(frame.TypeAck, nil, time.Now())
	m.HandleFrame(frame.TypeAccessDenied, nil, time.Now())

	if m.Mode() != panel.ModeStandard {
		t.Fatalf("Mode() = %v, want Standard after access denied", m.Mode())
	}
}

func TestDownloadFlowReachesEnrolled(t *testing.T) {
	var sent []SendEntry
	m := New(Config{}, func(e SendEntry) { sent = append(sent, e) }, nil)
	m.Start()
	m.HandleFrame(frame.TypeAck, nil, time.Now())
	if m.Mode() != panel.ModeDownload {
		t.Fatalf("Mode() = %v, want Download", m.Mode())
	}

	// PanelInfo for a PowerMax (0x00), non-PowerMaster.
	m.HandleFrame(frame.TypePanelInfo, []byte{0x00, 0x01}, time.Now())

	if len(m.regions) == 0 {
		t.Fatal("expected regions to be populated after PanelInfo")
	}

	// Feed a download-data block for every catalogued region until the
	// machine reports it finished the download.
	for i := 0; i < len(m.regions)+1 && m.state == StateReadingEprom; i++ {
		payload := append([]byte{0x00, 0x40, 0x00}, make([]byte, 64)...)
		m.HandleFrame(frame.TypeDownloadData, payload, time.Now())
	}

	if m.state != StateEnrolled && m.state != StatePowerlink {
		t.Fatalf("state = %v, want Enrolled or Powerlink after download completes", m.state)
	}
}

func TestDownloadRetryReturnsPanelSuppliedDelay(t *testing.T) {
	m := New(Config{}, func(e SendEntry) {}, nil)
	m.Start()
	m.HandleFrame(frame.TypeAck, nil, time.Now())
	m.HandleFrame(frame.TypePanelInfo, []byte{0x00, 0x01}, time.Now())

	delay := m.HandleFrame(frame.TypeDownloadRetry, []byte{7}, time.Now())
	if delay != 7*time.Second {
		t.Fatalf("delay = %v, want 7s", delay)
	}
}

func TestStopTransitionsToPowerlinkAndRequestsRestore(t *testing.T) {
	var sent []SendEntry
	m := New(Config{}, func(e SendEntry) { sent = append(sent, e) }, nil)
	m.Start()
	m.HandleFrame(frame.TypeStop, nil, time.Now())

	if m.Mode() != panel.ModePowerlink {
		t.Fatalf("Mode() = %v, want Powerlink after Stop", m.Mode())
	}
	found := false
	for _, e := range sent {
		for _, exp := range e.Expected {
			if exp == frame.TypeStatus {
				found = true
			}
		}
	}
	if !found {
		t.Fatal("expected Stop to enqueue a Restore expecting a status reply")
	}
}

func TestPowerlinkAutoEnrollSendsEnrollAndRestartsDownload(t *testing.T) {
	var sent []SendEntry
	flushed := false
	m := New(Config{}, func(e SendEntry) { sent = append(sent, e) }, func() { flushed = true })
	m.Start()
	m.HandleFrame(frame.TypeAck, nil, time.Now())
	m.HandleFrame(frame.TypePanelInfo, []byte{0x00, 0x01}, time.Now())
	for i := 0; i < len(m.regions)+1 && m.state == StateReadingEprom; i++ {
		payload := append([]byte{0x00, 0x40, 0x00}, make([]byte, 64)...)
		m.HandleFrame(frame.TypeDownloadData, payload, time.Now())
	}
	if m.state != StateEnrolled {
		t.Fatalf("state = %v, want Enrolled before auto-enroll", m.state)
	}

	m.HandlePowerlinkAutoEnroll()

	if !flushed {
		t.Fatal("expected auto-enroll to flush the queue")
	}
	if m.state != StateDownloading {
		t.Fatalf("state = %v, want Downloading after auto-enroll restarts the download", m.state)
	}

	var sawEnroll bool
	for _, e := range sent {
		if len(e.Frame) > 1 && frame.Type(e.Frame[1]) == frame.TypeEnroll {
			sawEnroll = true
		}
	}
	if !sawEnroll {
		t.Fatal("expected an Enroll frame to be sent")
	}

	// A second auto-enroll action must be a no-op (one-shot guard).
	before := len(sent)
	m.HandlePowerlinkAutoEnroll()
	if len(sent) != before {
		t.Fatal("expected a repeated auto-enroll action to be ignored")
	}
}
