package eprom

import "testing"

func TestUnwrittenBytesReadAsFF(t *testing.T) {
	m := NewMap()
	got := m.Read(0x00, 10, 4)
	for i, b := range got {
		if b != 0xFF {
			t.Fatalf("byte %d = 0x%02X, want 0xFF", i, b)
		}
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	m := NewMap()
	data := []byte{1, 2, 3, 4, 5}
	m.Write(0x02, 250, data)

	got := m.Read(0x02, 250, len(data))
	for i, b := range got {
		if b != data[i] {
			t.Fatalf("byte %d = %d, want %d", i, b, data[i])
		}
	}
}

func TestWriteWrapsAcrossPageBoundary(t *testing.T) {
	m := NewMap()
	data := []byte{0xAA, 0xBB, 0xCC, 0xDD}
	// offset 254 + 4 bytes overruns page 0x05 into page 0x06.
	m.Write(0x05, 254, data)

	tailOfPage5 := m.Read(0x05, 254, 2)
	if tailOfPage5[0] != 0xAA || tailOfPage5[1] != 0xBB {
		t.Fatalf("page 5 tail = % X, want AA BB", tailOfPage5)
	}
	headOfPage6 := m.Read(0x06, 0, 2)
	if headOfPage6[0] != 0xCC || headOfPage6[1] != 0xDD {
		t.Fatalf("page 6 head = % X, want CC DD", headOfPage6)
	}
}

func TestReadSpansMultiplePages(t *testing.T) {
	m := NewMap()
	m.WriteAbsolute(0x01F0, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	got := m.ReadAbsolute(0x01F0, 8)
	want := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestCompleteReportsWhichPagesAreMissing(t *testing.T) {
	m := NewMap()
	if m.Complete([]byte{0x00, 0x01}) {
		t.Fatal("expected incomplete map to report false")
	}
	m.Write(0x00, 0, []byte{1})
	m.Write(0x01, 0, []byte{1})
	if !m.Complete([]byte{0x00, 0x01}) {
		t.Fatal("expected both pages written to report complete")
	}
}
