package live

import (
	"testing"
	"time"

	"github.com/wwolkers/pyvisonic/internal/panel"
)

func TestDecodeStatusArmedDetection(t *testing.T) {
	state := &panel.State{}
	// total-messages=1, sub-type 0x04, sys_status=0x05 (ArmedAway),
	// sys_flags=0x01 (ready), _, event zone, event code.
	payload := []byte{0x01, 0x04, 0x05, 0x01, 0x00, 0x00, 0x00}
	DecodeStatus(payload, state, nil)

	if !state.Armed {
		t.Fatal("expected Armed=true for sys_status 0x05")
	}
	if state.ArmCodeName != "ArmedAway" {
		t.Fatalf("ArmCodeName = %q, want ArmedAway", state.ArmCodeName)
	}
	if !state.Flags.Ready {
		t.Fatal("expected Ready flag set")
	}
}

func TestDecodeStatusArmingOverridesNameWithLast10Seconds(t *testing.T) {
	state := &panel.State{}
	// sys_status=0x01 (ExitDelayArmingHome), sys_flags=0x10 (Last10Seconds).
	payload := []byte{0x01, 0x04, 0x01, 0x10, 0x00, 0x00, 0x00}
	DecodeStatus(payload, state, nil)

	if state.ArmCodeName != "Arming" {
		t.Fatalf("ArmCodeName = %q, want Arming when Last10Seconds is set", state.ArmCodeName)
	}
}

func TestDecodeStatusZoneOpenAndLowBatteryBitmasks(t *testing.T) {
	zones := []*panel.Sensor{{Zone: 1}, {Zone: 9}, {Zone: 17}}
	state := &panel.State{}
	// total-messages, sub-type 0x02, open mask[4], battery mask[4].
	payload := []byte{0x01, 0x02, 0x01, 0x01, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00}
	DecodeStatus(payload, state, zones)

	for _, z := range zones {
		if !z.Open {
			t.Fatalf("zone %d expected Open=true", z.Zone)
		}
		if z.LowBattery {
			t.Fatalf("zone %d expected LowBattery=false", z.Zone)
		}
	}
}

func TestDecodeStatusLowBatteryMaskIsSecondSlot(t *testing.T) {
	zones := []*panel.Sensor{{Zone: 1}}
	state := &panel.State{}
	payload := []byte{0x01, 0x02, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00}
	DecodeStatus(payload, state, zones)

	if zones[0].Open {
		t.Fatal("expected Open=false")
	}
	if !zones[0].LowBattery {
		t.Fatal("expected LowBattery=true from the second mask")
	}
}

func TestDecodeStatusTamperIgnoresFirstMaskUsesSecond(t *testing.T) {
	zones := []*panel.Sensor{{Zone: 1}, {Zone: 2}}
	state := &panel.State{}
	// First mask all-ones (must be ignored); second mask only sets zone 1.
	payload := []byte{0x01, 0x03, 0xFF, 0xFF, 0xFF, 0xFF, 0x01, 0x00, 0x00, 0x00}
	DecodeStatus(payload, state, zones)

	if !zones[0].Tamper {
		t.Fatal("expected zone 1 Tamper=true from the second mask")
	}
	if zones[1].Tamper {
		t.Fatal("expected zone 2 Tamper=false; first mask must be ignored")
	}
}

func TestDecodeStatusEnrolledAndBypassedMasks(t *testing.T) {
	zones := []*panel.Sensor{{Zone: 1}, {Zone: 2}}
	state := &panel.State{}
	payload := []byte{0x01, 0x06, 0x03, 0, 0, 0, 0x01, 0, 0, 0}
	DecodeStatus(payload, state, zones)

	if !zones[0].Enrolled || !zones[1].Enrolled {
		t.Fatal("expected both zones enrolled")
	}
	if !zones[0].Bypassed {
		t.Fatal("expected zone 1 bypassed")
	}
	if zones[1].Bypassed {
		t.Fatal("expected zone 2 not bypassed")
	}
}

func TestDecodePowerlinkAutoEnrollAction(t *testing.T) {
	if got := DecodePowerlink([]byte{0x0A, 0x01}); got != PowerlinkAutoEnroll {
		t.Fatalf("got %v, want PowerlinkAutoEnroll", got)
	}
	if got := DecodePowerlink([]byte{0x01, 0x02}); got != PowerlinkKeepAlive {
		t.Fatalf("got %v, want PowerlinkKeepAlive", got)
	}
}

func TestDecodeEventLogRecordFields(t *testing.T) {
	// sec, min, hour, day, month, year-2000, zone, eventcode.
	payload := []byte{30, 15, 8, 1, 6, 24, 5, 0x03}
	rec := DecodeEventLogRecord(0, payload)
	if rec.Zone != 5 {
		t.Fatalf("Zone = %d, want 5", rec.Zone)
	}
	if rec.EventName != "Zone Open" {
		t.Fatalf("EventName = %q, want Zone Open", rec.EventName)
	}
	if rec.Timestamp.Year() != 2024 || rec.Timestamp.Month() != time.June {
		t.Fatalf("Timestamp = %v, want year 2024 month June", rec.Timestamp)
	}
}

func TestDecodeEventChangeSirenRuleAndAlarmKind(t *testing.T) {
	state := &panel.State{}
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	// total-messages, sub-type, log_event (high bit set, code 0x06 Panic Alarm).
	payload := []byte{0x01, 0x01, 0x86}
	if fresh := DecodeEventChange(payload, state, 4, now); fresh {
		t.Fatal("did not expect a fresh-download request")
	}
	if state.AlarmKind != "Panic Alarm" {
		t.Fatalf("AlarmKind = %q, want Panic Alarm", state.AlarmKind)
	}
	want := now.Add(4 * time.Minute)
	if state.SirenActiveUntil == nil || !state.SirenActiveUntil.Equal(want) {
		t.Fatalf("SirenActiveUntil = %v, want %v", state.SirenActiveUntil, want)
	}
}

func TestDecodeEventChangeSuppressesSirenForZoneClosed(t *testing.T) {
	state := &panel.State{}
	payload := []byte{0x01, 0x01, 0x04}
	DecodeEventChange(payload, state, 4, time.Now())
	if state.SirenActiveUntil != nil {
		t.Fatal("expected event 0x04 (Zone Closed) not to arm the siren timer")
	}
}

func TestDecodeEventChangeCancelClearsSiren(t *testing.T) {
	state := &panel.State{}
	until := time.Now().Add(time.Minute)
	state.SirenActiveUntil = &until
	payload := []byte{0x01, 0x01, 0x1B}
	DecodeEventChange(payload, state, 4, time.Now())
	if state.SirenActiveUntil != nil {
		t.Fatal("expected event 0x1B to clear SirenActiveUntil")
	}
}

func TestDecodeEventChangeSystemResetRequestsDownload(t *testing.T) {
	state := &panel.State{}
	payload := []byte{0x01, 0x01, 0x60}
	if !DecodeEventChange(payload, state, 4, time.Now()) {
		t.Fatal("expected event 0x60 to request a fresh download")
	}
}

func TestDecodeEventChangeTroubleKind(t *testing.T) {
	state := &panel.State{}
	payload := []byte{0x01, 0x01, 0x09}
	DecodeEventChange(payload, state, 4, time.Now())
	if state.TroubleKind != "Communication Failure" {
		t.Fatalf("TroubleKind = %q, want Communication Failure", state.TroubleKind)
	}
	if state.AlarmKind != "" {
		t.Fatal("trouble events must not set AlarmKind")
	}
}
