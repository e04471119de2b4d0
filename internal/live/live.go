// Package live decodes the panel's unsolicited live-state messages —
// A5 status, A7 event change, AB Powerlink keep-alive, A0 event log and
// B0 PowerMaster frames (spec §4.8) — grounded on the dispatch-table
// style of the teacher's usock_handlers.go and the byte tables in the
// original source's handle_msgtypeA5/handle_msgtypeA7.
package live

import (
	"time"

	"github.com/wwolkers/pyvisonic/internal/panel"
)

// eventNames is the zone-event sub-table from the original source's
// handle_msgtypeA5 (packet[6] values), used to label A5 sub-type 0x04
// and A7 frames.
var eventNames = map[byte]string{
	0x00: "None",
	0x01: "Tamper Alarm",
	0x02: "Tamper Restore",
	0x03: "Zone Open",
	0x04: "Zone Closed",
	0x05: "Zone Violated",
	0x06: "Panic Alarm",
	0x07: "RF Jamming",
	0x08: "Tamper Open",
	0x09: "Communication Failure",
	0x0A: "Line Failure",
	0x0B: "Fuse",
	0x0C: "Not Active",
	0x0D: "Emergency",
	0x0E: "Siren Tamper",
	0x0F: "Siren Tamper Restore",
	0x10: "Siren Low Battery",
	0x11: "Siren AC Fail",
	0x12: "RF Jamming Restore",
	0x13: "Fire Alarm",
	0x14: "Fire Restore",
	0x1B: "Cancel Alarm",
	0x60: "System Reset",
}

// EventName resolves an A5/A7 event code to its display label.
func EventName(code byte) string {
	if name, ok := eventNames[code]; ok {
		return name
	}
	return "Unknown Event"
}

// DecodeStatus applies an A5 frame's payload (frame[2:]) to state and
// the zone inventory, per spec §4.8's four sub-types. payload[0] is the
// total-messages count the panel is splitting this status report over;
// the sub-type selector is payload[1], with every sub-type's own data
// starting at payload[2:].
func DecodeStatus(payload []byte, state *panel.State, zones []*panel.Sensor) {
	if len(payload) < 2 {
		return
	}
	switch payload[1] {
	case 0x02:
		// Zone-open and low-battery bitmasks, one bit per zone.
		if len(payload) < 10 {
			return
		}
		applyBitmask(payload[2:6], zones, func(s *panel.Sensor, set bool) { s.Open = set })
		applyBitmask(payload[6:10], zones, func(s *panel.Sensor, set bool) { s.LowBattery = set })
	case 0x03:
		// First mask is unreliable on the panel firmware and ignored;
		// only the second (per-zone tamper) mask is applied.
		if len(payload) < 10 {
			return
		}
		applyBitmask(payload[6:10], zones, func(s *panel.Sensor, set bool) { s.Tamper = set })
	case 0x04:
		// Full status tuple: sys_status, sys_flags, _, event zone, event code.
		if len(payload) < 7 {
			return
		}
		sysStatus := payload[2]
		sysFlags := payload[3]
		code, name := panel.ArmCodeFromSysStatus(sysStatus)
		state.ArmCode = code
		state.ArmCodeName = name
		state.Armed = panel.IsArmed(sysStatus)
		state.Flags = decodeFlags(sysFlags)
		if state.Flags.Last10Seconds {
			state.ArmCodeName = "Arming"
		}
		eventZone := int(payload[5])
		eventType := payload[6]
		state.LastEvent = EventName(eventType)
		if state.Flags.ZoneEvent {
			markZoneEvent(zones, eventZone, eventType)
		}
	case 0x06:
		// Enrolled/bypassed bitmasks.
		if len(payload) < 10 {
			return
		}
		applyBitmask(payload[2:6], zones, func(s *panel.Sensor, set bool) { s.Enrolled = set })
		applyBitmask(payload[6:10], zones, func(s *panel.Sensor, set bool) { s.Bypassed = set })
	}
}

func applyBitmask(mask []byte, zones []*panel.Sensor, apply func(*panel.Sensor, bool)) {
	for _, z := range zones {
		idx := z.Zone - 1
		byteIdx := idx / 8
		if byteIdx >= len(mask) {
			continue
		}
		set := mask[byteIdx]&(1<<uint(idx%8)) != 0
		apply(z, set)
	}
}

func markZoneEvent(zones []*panel.Sensor, zone int, code byte) {
	for _, z := range zones {
		if z.Zone == zone {
			z.Triggered = code == 0x03 || code == 0x05
		}
	}
}

func decodeFlags(b byte) panel.Flags {
	return panel.Flags{
		Ready:         b&0x01 != 0,
		AlertInMemory: b&0x02 != 0,
		Trouble:       b&0x04 != 0,
		BypassOn:      b&0x08 != 0,
		Last10Seconds: b&0x10 != 0,
		ZoneEvent:     b&0x20 != 0,
		StatusChanged: b&0x40 != 0,
		AlarmEvent:    b&0x80 != 0,
	}
}

// alarmKindCodes is the subset of event codes spec §4.8 classifies as
// an alarm condition (state.AlarmKind), as opposed to a trouble
// condition. Grounded on the same 21-entry event table the original
// source's handle_msgtypeA5 zone-event branch reproduces.
var alarmKindCodes = map[byte]bool{
	0x01: true, // Tamper Alarm
	0x06: true, // Panic Alarm
	0x0D: true, // Emergency
	0x13: true, // Fire Alarm
}

// troubleKindCodes is the subset of event codes spec §4.8 classifies as
// a trouble condition (state.TroubleKind).
var troubleKindCodes = map[byte]bool{
	0x07: true, // RF Jamming
	0x09: true, // Communication Failure
	0x0A: true, // Line Failure
	0x0B: true, // Fuse
	0x0C: true, // Not Active
	0x0E: true, // Siren Tamper
	0x10: true, // Siren Low Battery
	0x11: true, // Siren AC Fail
}

// siren-suppressed event codes: events that never arm the siren timer
// (spec §4.8). None of them is in alarmKindCodes.
var sirenSuppressedCodes = map[byte]bool{
	0x04: true,
	0x0B: true,
	0x0C: true,
}

const (
	eventCancel       = 0x1B
	eventSystemReset  = 0x60
)

// DecodeEventChange applies an A7 frame, the unsolicited "something
// changed, here's the event" notification (spec §4.8). The event code
// is the low 7 bits of the log-event byte at payload[2] (bit 7 is a
// per-user/per-system flag carried alongside it, not part of the
// code). bellTimeMinutes comes from the decoded EPROM's comm-defaults
// block; now is used to compute SirenActiveUntil. It returns true when
// the event signals the panel wants a fresh EPROM download (event
// 0x60), which the caller should act on by restarting the handshake.
func DecodeEventChange(payload []byte, state *panel.State, bellTimeMinutes int, now time.Time) (freshDownload bool) {
	if len(payload) < 3 {
		return false
	}
	eventType := payload[2] & 0x7F
	state.LastEvent = EventName(eventType)

	switch {
	case alarmKindCodes[eventType]:
		state.AlarmKind = EventName(eventType)
		if !sirenSuppressedCodes[eventType] {
			until := now.Add(time.Duration(bellTimeMinutes) * time.Minute)
			state.SirenActiveUntil = &until
		}
	case troubleKindCodes[eventType]:
		state.TroubleKind = EventName(eventType)
	}

	if eventType == eventCancel {
		state.SirenActiveUntil = nil
	}
	if eventType == eventSystemReset {
		freshDownload = true
	}
	return freshDownload
}

// PowerlinkAction describes what an AB frame asks the driver to do
// (spec §4.8: keep-alive vs auto-enroll).
type PowerlinkAction int

const (
	PowerlinkNone PowerlinkAction = iota
	PowerlinkKeepAlive
	PowerlinkAutoEnroll
)

// DecodePowerlink classifies an AB frame's sub-type/action pair.
func DecodePowerlink(payload []byte) PowerlinkAction {
	if len(payload) < 2 {
		return PowerlinkNone
	}
	if payload[0] == 0x0A && payload[1] == 0x01 {
		return PowerlinkAutoEnroll
	}
	return PowerlinkKeepAlive
}

// DecodeEventLogRecord decodes one A0 record (spec §4.8): the wire
// layout is (sec, min, hour, day, month, year-2000, event_zone,
// log_event), matching the original source's handle_msgtypeA0 field
// order.
func DecodeEventLogRecord(index int, payload []byte) panel.EventLogRecord {
	rec := panel.EventLogRecord{Index: index}
	if len(payload) < 8 {
		return rec
	}
	sec, min, hour, day, month := payload[0], payload[1], payload[2], payload[3], payload[4]
	year := int(payload[5]) + 2000
	rec.Zone = int(payload[6])
	rec.EventCode = payload[7]
	rec.EventName = EventName(payload[7])
	rec.Timestamp = time.Date(year, time.Month(monthOrDefault(month)), int(day), int(hour), int(min), int(sec), 0, time.Local)
	return rec
}

func monthOrDefault(m byte) int {
	if m < 1 || m > 12 {
		return 1
	}
	return int(m)
}

// DecodePowerMaster handles B0 frames, PowerMaster's richer status
// channel layered on top of the PowerMax A5 family (spec §4.8).
// Sub-types 0x04 (zone state) and 0x24 (wired sensor state) are the
// two this driver understands; others are surfaced as a TroubleKind
// note only, matching the original source's conservative "log and
// move on" treatment of PowerMaster extensions it didn't decode.
func DecodePowerMaster(payload []byte, state *panel.State, zones []*panel.Sensor) {
	if len(payload) < 2 {
		return
	}
	switch payload[1] {
	case 0x04, 0x24:
		if len(payload) < 6 {
			return
		}
		applyBitmask(payload[2:6], zones, func(s *panel.Sensor, set bool) { s.Open = set })
	default:
		state.TroubleKind = "Unhandled PowerMaster sub-message"
	}
}
