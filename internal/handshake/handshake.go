// Package handshake drives the session state machine that takes a
// freshly opened transport from Starting through Download to either
// Powerlink or Standard mode (spec §4.5), grounded on the original
// source's ProtocolBase/PacketHandling connection-sequence methods and
// the teacher's sequential-command style in nrf_commands.go.
package handshake

import (
	"time"

	"github.com/wwolkers/pyvisonic/internal/command"
	"github.com/wwolkers/pyvisonic/internal/eprom"
	"github.com/wwolkers/pyvisonic/internal/frame"
	"github.com/wwolkers/pyvisonic/internal/panel"
)

// State is the handshake's own position in the session lifecycle (spec
// §4.5), distinct from panel.Mode which is the caller-visible summary
// the rest of the driver sees.
type State int

const (
	StateStarting State = iota
	StateInit
	StateDownloading
	StateAwaitingPanelInfo
	StateReadingEprom
	StateEnrolled
	StatePowerlink
	StateStandard
)

func (s State) mode() panel.Mode {
	switch s {
	case StateStarting, StateInit, StateDownloading, StateAwaitingPanelInfo, StateReadingEprom:
		return panel.ModeDownload
	case StateEnrolled, StatePowerlink:
		return panel.ModePowerlink
	case StateStandard:
		return panel.ModeStandard
	default:
		return panel.ModeStarting
	}
}

// Config are the handshake-relevant driver options (spec §6).
type Config struct {
	DownloadCode       [2]byte
	ForceStandard      bool
	CommExceptionLimit int
	AutoSyncTime       bool
}

// Machine runs the session state machine. Send is called to push a
// frame onto the outbound queue; it never blocks on acks itself — that
// discipline lives in internal/queue. Flush drops whatever is still
// queued but unsent, used when the machine abandons a session mid-flight
// (the auto-enroll restart).
type Machine struct {
	cfg   Config
	send  func(entry SendEntry)
	flush func()
	state State

	eeprom    *eprom.Map
	panelType byte
	subType   byte
	regions   []eprom.RegionItem
	regionIdx int

	autoEnrolled bool
	crcErrors    int
}

// SendEntry mirrors queue.Entry without importing internal/queue, so
// this package stays free of the sender's concurrency concerns.
// WaitForAck marks whether the queue should gate the following send on
// this frame's plain-ack reply (spec §4.3).
type SendEntry struct {
	Frame      []byte
	Expected   []frame.Type
	WaitForAck bool
}

// New creates a Machine in the Starting state. flush is called to
// discard unsent queue entries when the machine abandons a session.
func New(cfg Config, send func(SendEntry), flush func()) *Machine {
	if cfg.CommExceptionLimit == 0 {
		cfg.CommExceptionLimit = defaultCommExceptionThreshold
	}
	if flush == nil {
		flush = func() {}
	}
	return &Machine{cfg: cfg, send: send, flush: flush, state: StateStarting, eeprom: eprom.NewMap()}
}

const defaultCommExceptionThreshold = 5

// Mode reports the caller-visible session mode.
func (m *Machine) Mode() panel.Mode { return m.state.mode() }

// EPROM exposes the accumulated EPROM mirror, valid once the machine
// reaches StateEnrolled/StatePowerlink/StateStandard.
func (m *Machine) EPROM() *eprom.Map { return m.eeprom }

// Identity returns the decoded panel identity once known.
func (m *Machine) Identity() panel.Identity {
	return eprom.Identity(m.eeprom, m.panelType, m.subType)
}

// Zones returns the zone inventory decoded from the downloaded EPROM,
// or nil if the session never downloaded one (Standard mode, or still
// mid-handshake).
func (m *Machine) Zones() []*panel.Sensor {
	if m.state != StateEnrolled && m.state != StatePowerlink {
		return nil
	}
	return eprom.Zones(m.eeprom, m.panelType)
}

// Start kicks off the handshake by sending the initial frame (spec
// §4.5 Starting -> Init).
func (m *Machine) Start() {
	m.state = StateInit
	m.regions = nil
	m.regionIdx = 0
	m.autoEnrolled = false
	m.send(SendEntry{Frame: command.Init(), Expected: []frame.Type{frame.TypeAck}, WaitForAck: true})
}

// HandleCRCError increments the CRC-error counter and restarts the
// session if it crosses the configured threshold (spec §4.5
// CommException handling). It returns true when a restart was
// triggered.
func (m *Machine) HandleCRCError() bool {
	m.crcErrors++
	if m.crcErrors >= m.cfg.CommExceptionLimit {
		m.crcErrors = 0
		m.state = StateStarting
		m.Start()
		return true
	}
	return false
}

// HandleFrame advances the state machine in response to a validated
// received frame. payload excludes the preamble/type/crc/terminator
// bytes. now is the clock value sent by AutoSyncTime's SetTime frame.
// The return value is nonzero exactly when the
// caller should re-arm its download-retry timer for that long (spec
// §4.4/§4.5's panel-supplied retry delay).
func (m *Machine) HandleFrame(t frame.Type, payload []byte, now time.Time) time.Duration {
	switch t {
	case frame.TypeAccessDenied:
		// Access denied during download: fall back to Standard mode
		// rather than retrying forever (spec §4.5).
		m.state = StateStandard
		return 0
	case frame.TypeStop:
		// The panel is ending the download session on its own terms;
		// spec §4.5 treats this as "good enough to call Powerlink" once
		// whatever EPROM was read so far is in hand, not a failure.
		m.state = StatePowerlink
		m.send(SendEntry{Frame: command.Restore(), Expected: []frame.Type{frame.TypeStatus}, WaitForAck: true})
		return 0
	case frame.TypeDownloadRetry:
		if len(payload) < 1 {
			return 0
		}
		return time.Duration(payload[0]) * time.Second
	}

	switch m.state {
	case StateInit:
		if t == frame.TypeAck {
			m.beginDownload()
		}
	case StateDownloading:
		if t == frame.TypePanelInfo {
			m.handlePanelInfo(payload, now)
		}
	case StateAwaitingPanelInfo:
		if t == frame.TypePanelInfo {
			m.handlePanelInfo(payload, now)
		}
	case StateReadingEprom:
		if t == frame.TypeDownloadData {
			m.handleEpromBlock(payload)
		}
	}
	return 0
}

func (m *Machine) beginDownload() {
	if m.cfg.ForceStandard {
		m.state = StateStandard
		m.send(SendEntry{Frame: command.Exit(), Expected: nil})
		return
	}
	m.state = StateDownloading
	m.send(SendEntry{
		Frame:      command.DownloadStart(m.cfg.DownloadCode),
		Expected:   []frame.Type{frame.TypePanelInfo},
		WaitForAck: true,
	})
}

func (m *Machine) handlePanelInfo(payload []byte, now time.Time) {
	if len(payload) < 2 {
		return
	}
	m.panelType = payload[0]
	m.subType = payload[1]
	m.regions = eprom.Regions(m.panelType)
	m.regionIdx = 0
	m.state = StateReadingEprom

	if m.cfg.AutoSyncTime {
		m.send(SendEntry{Frame: command.SetTime(now), Expected: []frame.Type{frame.TypeAck}, WaitForAck: true})
	}

	m.requestNextBlock()
}

func (m *Machine) requestNextBlock() {
	if m.regionIdx >= len(m.regions) {
		m.finishDownload()
		return
	}
	region := m.regions[m.regionIdx]
	m.send(SendEntry{
		Frame:      command.DownloadGet(region.Address, region.Length),
		Expected:   []frame.Type{frame.TypeDownloadData},
		WaitForAck: true,
	})
}

func (m *Machine) handleEpromBlock(payload []byte) {
	// DownloadData payload: [blockIndexLo, blockLen, subType, data...]
	// per §4.2 rule 4 / the variable-length wire type.
	if len(payload) < 3 || m.regionIdx >= len(m.regions) {
		return
	}
	dataLen := int(payload[1])
	if len(payload) < 3+dataLen {
		return
	}
	data := payload[3 : 3+dataLen]
	m.eeprom.WriteAbsolute(m.regions[m.regionIdx].Address, data)
	m.regionIdx++
	m.requestNextBlock()
}

func (m *Machine) finishDownload() {
	m.send(SendEntry{Frame: command.Exit(), Expected: nil})
	if eprom.Identity(m.eeprom, m.panelType, m.subType).PowerMaster {
		m.state = StatePowerlink
	} else {
		m.state = StateEnrolled
	}
}

// HandlePowerlinkAutoEnroll runs the one-shot auto-enroll sequence a
// Powerlink-capable panel triggers via an AB/0x0A/0x01 action (spec
// §4.5/§8 scenario 5): abandon whatever is still queued, send the
// enrollment frame, and restart the download so the freshly enrolled
// EPROM gets re-read. Guarded by autoEnrolled so a panel that keeps
// repeating the action doesn't restart the download forever.
func (m *Machine) HandlePowerlinkAutoEnroll() {
	if m.state != StateEnrolled || m.autoEnrolled {
		return
	}
	m.autoEnrolled = true
	m.flush()
	m.send(SendEntry{Frame: command.Enroll(m.cfg.DownloadCode), Expected: []frame.Type{frame.TypeAck}, WaitForAck: true})
	m.beginDownload()
}
