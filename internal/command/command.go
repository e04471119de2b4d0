// Package command builds the outbound frame payloads for every panel
// operation the driver exposes (spec §4.9) plus the handshake's
// internal control frames, grounded on the original source's VMSG_*
// byte-array templates.
package command

import (
	"time"

	"github.com/wwolkers/pyvisonic/internal/frame"
)

// build wraps a payload with the preamble, type byte and CRC/terminator
// trailer that internal/frame.Valid expects.
func build(t frame.Type, payload []byte) []byte {
	body := append([]byte{byte(t)}, payload...)
	out := append([]byte{frame.Preamble}, body...)
	out = append(out, frame.CRC(body), frame.Terminator)
	return out
}

// Ack builds the two-frame ack handshake's reply, VMSG_ACK1/ACK2 in the
// original source.
func Ack() []byte { return build(frame.TypeAck, nil) }

// Init builds the initial handshake frame (VMSG_INIT).
func Init() []byte {
	return build(frame.TypeInit, []byte{0x0A})
}

// Exit builds the download-session exit frame (VMSG_DL_EXIT).
func Exit() []byte { return build(frame.TypeExit, nil) }

// DownloadStart builds the frame that begins an EPROM download session
// (VMSG_DL_START), carrying the installer download code.
func DownloadStart(downloadCode [2]byte) []byte {
	return build(frame.TypeDLStart, []byte{downloadCode[0], downloadCode[1]})
}

// DownloadGet builds a request for one page/offset/length block of
// EPROM (VMSG_DL_GET), addressed the way eprom.Map's absolute
// addressing expects.
func DownloadGet(address, length int) []byte {
	return build(frame.TypeDLGet, []byte{
		byte(address), byte(address >> 8),
		byte(length), byte(length >> 8),
	})
}

// Restore re-requests the panel's current status, used both as an
// ordinary status poll and as the Powerlink watchdog's recovery action
// (spec §4.4, §4.8).
func Restore() []byte {
	return build(frame.TypeStatusReq, nil)
}

// ArmMode selects which arm state ArmDisarm requests (spec §4.9).
type ArmMode byte

const (
	ArmDisarm0 ArmMode = 0x00
	ArmHome    ArmMode = 0x04
	ArmAway    ArmMode = 0x05
	ArmHomeInstant ArmMode = 0x14
	ArmAwayInstant ArmMode = 0x15
)

// ArmDisarm builds an arm/disarm command carrying the user PIN (spec
// §4.9/§8 scenario 6, VMSG_ARMDISARM = A1 00 00 00 00 ...): the arm
// code sits at offset 3 and the PIN at offset 4, behind two zero
// padding bytes the panel firmware expects at offsets 1-2.
func ArmDisarm(mode ArmMode, pin [2]byte) []byte {
	return build(frame.TypeArmDisarm, []byte{0, 0, byte(mode), pin[0], pin[1]})
}

// Bypass builds a zone-bypass command for a single zone (spec §4.9):
// the PIN sits at offset 1 and mask = 1 << (zone-1) as 4 big-endian
// bytes is placed at offset 3 to enable the bypass or offset 7 to
// disable it (the other half of the 11-byte payload stays zero).
// Offsets count the type byte as offset 0, as in ArmDisarm.
func Bypass(zone int, set bool, pin [2]byte) []byte {
	payload := make([]byte, 11)
	payload[0], payload[1] = pin[0], pin[1]

	mask := uint32(1) << uint(zone-1)
	be := []byte{byte(mask >> 24), byte(mask >> 16), byte(mask >> 8), byte(mask)}
	offset := 6 // frame offset 7
	if set {
		offset = 2 // frame offset 3
	}
	copy(payload[offset:offset+4], be)

	return build(frame.TypeBypass, payload)
}

// BypassStatusRequest asks the panel to report its current bypass mask,
// the follow-up spec §4.9 requires after every Bypass command so the
// driver's zone inventory reflects the panel's acceptance (or
// rejection) of the request rather than assuming it took effect.
func BypassStatusRequest() []byte {
	return build(frame.TypeStatusReq, nil)
}

// GetEventLog builds the request for the panel's stored event log
// (spec §4.9 GetEventLog operation, VMSG_EVENTLOG = A0 00 00 00 00 ...
// with the PIN at offset 4).
func GetEventLog(pin [2]byte) []byte {
	return build(frame.TypeEventLogReq, []byte{0, 0, 0, pin[0], pin[1]})
}

// StatusPoll requests a full A5 status frame; the driver's tick
// keep-alive sends it after the "I'm Alive" frame (spec §4.4).
func StatusPoll() []byte {
	return build(frame.TypeStatusReq, nil)
}

// Enroll builds the one-shot auto-enroll frame the handshake sends in
// response to an AB/0x0A/0x01 auto-enroll action (spec §4.5/§8
// scenario 5), carrying the installer download code the same way
// DownloadStart does.
func Enroll(downloadCode [2]byte) []byte {
	return build(frame.TypeEnroll, []byte{downloadCode[0], downloadCode[1]})
}

// SetTime builds the clock-sync frame sent once after PanelInfo when
// AutoSyncTime is enabled (spec §4.5), encoding seconds/minutes/hours
// and day/month/year(-2000) the way the original source's VMSG_SETTIME
// template lays them out.
func SetTime(t time.Time) []byte {
	return build(frame.TypeSetTime, []byte{
		byte(t.Second()), byte(t.Minute()), byte(t.Hour()),
		byte(t.Day()), byte(t.Month()), byte(t.Year() - 2000),
	})
}

// KeepAlive builds the "I'm Alive" frame the tick timer sends after the
// link has been idle for a while (spec §4.4).
func KeepAlive() []byte {
	return build(frame.TypeKeepAlive, nil)
}
