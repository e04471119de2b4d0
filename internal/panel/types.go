// Package panel holds the data model mirrored from the alarm panel:
// its identity, zone/sensor inventory, and live state (spec §3).
package panel

import "time"

// Mode is the panel session mode (spec §3, monotonic within a session:
// Starting -> (Download -> Powerlink) | Standard; Download may be
// re-entered after a communication reset).
type Mode int

const (
	ModeStarting Mode = iota
	ModeDownload
	ModeStandard
	ModePowerlink
)

func (m Mode) String() string {
	switch m {
	case ModeStarting:
		return "Starting"
	case ModeDownload:
		return "Download"
	case ModeStandard:
		return "Standard"
	case ModePowerlink:
		return "Powerlink"
	default:
		return "Unknown"
	}
}

// ArmCode is the detailed arm/disarm state reported by A5 sub-type 0x04
// (spec §4.8, 22-entry table).
type ArmCode int

const (
	ArmDisarmed ArmCode = iota
	ArmExitDelayArmingHome
	ArmExitDelayArmingAway
	ArmEntryDelay
	ArmArmedHome
	ArmArmedAway
	ArmUserTest
	ArmDownloading
	ArmProgramming
	ArmInstaller
	ArmHomeBypass
	ArmAwayBypass
	ArmReady
	ArmNotReady
	_reserved1
	_reserved2
	ArmDisarm16
	ArmExitDelay17
	ArmExitDelay18
	ArmEntryDelay19
	ArmArmedHomeInstant
	ArmArmedAwayInstant
)

var armCodeNames = map[ArmCode]string{
	ArmDisarmed:            "Disarmed",
	ArmExitDelayArmingHome: "ExitDelayArmingHome",
	ArmExitDelayArmingAway: "ExitDelayArmingAway",
	ArmEntryDelay:          "EntryDelay",
	ArmArmedHome:           "ArmedHome",
	ArmArmedAway:           "ArmedAway",
	ArmUserTest:            "UserTest",
	ArmDownloading:         "Downloading",
	ArmProgramming:         "Programming",
	ArmInstaller:           "Installer",
	ArmHomeBypass:          "HomeBypass",
	ArmAwayBypass:          "AwayBypass",
	ArmReady:               "Ready",
	ArmNotReady:            "NotReady",
	ArmDisarm16:            "Disarm",
	ArmExitDelay17:         "ExitDelay",
	ArmExitDelay18:         "ExitDelay",
	ArmEntryDelay19:        "EntryDelay",
	ArmArmedHomeInstant:    "ArmedHomeInstant",
	ArmArmedAwayInstant:    "ArmedAwayInstant",
}

// ArmCodeFromSysStatus decodes the sys_status byte from A5 sub-type 0x04
// into the detailed arm label table (spec §4.8).
func ArmCodeFromSysStatus(sysStatus byte) (ArmCode, string) {
	code := ArmCode(sysStatus)
	name, ok := armCodeNames[code]
	if !ok {
		return code, "Unknown"
	}
	return code, name
}

// armedStatuses lists the sys_status values spec §4.8 considers "Armed".
var armedStatuses = map[byte]bool{
	3: true, 4: true, 5: true, 0x0A: true, 0x0B: true, 0x14: true, 0x15: true,
}

// IsArmed reports whether sysStatus is one of the armed sys_status values.
func IsArmed(sysStatus byte) bool {
	return armedStatuses[sysStatus]
}

// ZoneType enumerates the zone-type table decoded from EPROM (spec §3).
type ZoneType int

const (
	ZoneNonAlarm ZoneType = iota
	ZoneEmergency
	ZoneFlood
	ZoneGas
	ZoneDelay1
	ZoneDelay2
	ZoneInteriorFollow
	ZonePerimeter
	ZonePerimeterFollow
	Zone24HSilent
	Zone24HAudible
	ZoneFire
	ZoneInterior
	ZoneHomeDelay
	ZoneTemperature
	ZoneOutdoor
)

// zoneTypeNamesEN / zoneTypeNamesNL are the language-specific zone-type
// tables named in spec §4.7 (PluginLanguage config option, §6).
var zoneTypeNamesEN = map[ZoneType]string{
	ZoneNonAlarm:        "Non-Alarm",
	ZoneEmergency:        "Emergency",
	ZoneFlood:            "Flood",
	ZoneGas:              "Gas",
	ZoneDelay1:           "Delay 1",
	ZoneDelay2:           "Delay 2",
	ZoneInteriorFollow:   "Interior Follow",
	ZonePerimeter:        "Perimeter",
	ZonePerimeterFollow:  "Perimeter Follow",
	Zone24HSilent:        "24 Hours Silent",
	Zone24HAudible:       "24 Hours Audible",
	ZoneFire:             "Fire",
	ZoneInterior:         "Interior",
	ZoneHomeDelay:        "Home Delay",
	ZoneTemperature:      "Temperature",
	ZoneOutdoor:          "Outdoor",
}

var zoneTypeNamesNL = map[ZoneType]string{
	ZoneNonAlarm:        "Geen Alarm",
	ZoneEmergency:        "Noodgeval",
	ZoneFlood:            "Overstroming",
	ZoneGas:              "Gas",
	ZoneDelay1:           "Vertraging 1",
	ZoneDelay2:           "Vertraging 2",
	ZoneInteriorFollow:   "Interieur Volgend",
	ZonePerimeter:        "Omtrek",
	ZonePerimeterFollow:  "Omtrek Volgend",
	Zone24HSilent:        "24 Uur Stil",
	Zone24HAudible:       "24 Uur Hoorbaar",
	ZoneFire:             "Brand",
	ZoneInterior:         "Interieur",
	ZoneHomeDelay:        "Thuis Vertraging",
	ZoneTemperature:      "Temperatuur",
	ZoneOutdoor:          "Buiten",
}

// ZoneTypeName resolves a zone type to its display string in the
// requested language, falling back to English.
func ZoneTypeName(t ZoneType, language string) string {
	table := zoneTypeNamesEN
	if language == "NL" {
		table = zoneTypeNamesNL
	}
	if name, ok := table[t]; ok {
		return name
	}
	return "Unknown"
}

// ChimeMode is the per-zone audible notification mode when disarmed.
type ChimeMode int

const (
	ChimeOff ChimeMode = iota
	ChimeMelody
	ChimeZone
)

func (c ChimeMode) String() string {
	switch c {
	case ChimeOff:
		return "Off"
	case ChimeMelody:
		return "Melody"
	case ChimeZone:
		return "Zone"
	default:
		return "Unknown"
	}
}

// SensorKind tags the physical sensor technology behind a zone.
type SensorKind int

const (
	SensorUnknown SensorKind = iota
	SensorMotion
	SensorMagnet
	SensorSmoke
	SensorGas
	SensorCamera
	SensorTemperature
	SensorWired
)

func (s SensorKind) String() string {
	switch s {
	case SensorMotion:
		return "Motion"
	case SensorMagnet:
		return "Magnet"
	case SensorSmoke:
		return "Smoke"
	case SensorGas:
		return "Gas"
	case SensorCamera:
		return "Camera"
	case SensorTemperature:
		return "Temperature"
	case SensorWired:
		return "Wired"
	default:
		return "Unknown"
	}
}

// Sensor is a zone/sensor entry in the inventory (spec §3). A Sensor
// exists iff its enrolled bit was set in the most recent EPROM decode;
// runtime messages update the live booleans but never create or delete
// entries (spec invariant).
type Sensor struct {
	Zone        int
	Name        string
	ZoneType    ZoneType
	ZoneTypeStr string
	Chime       ChimeMode
	Kind        SensorKind
	Partitions  []int

	Enrolled   bool
	Bypassed   bool
	Open       bool
	Tamper     bool
	LowBattery bool
	Triggered  bool
	LastTrigger time.Time
}

// Clone returns a deep copy, used by GetSensor/GetSensorChanges (spec
// §4.9) so callers can't mutate the live inventory through the returned
// value.
func (s *Sensor) Clone() *Sensor {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Partitions = append([]int(nil), s.Partitions...)
	return &clone
}

// Equal reports whether two sensor snapshots carry the same observable
// fields, used by GetSensorChanges (spec §4.9, §8) to detect deltas.
func (s *Sensor) Equal(other *Sensor) bool {
	if s == nil || other == nil {
		return s == other
	}
	if s.Enrolled != other.Enrolled || s.Bypassed != other.Bypassed ||
		s.Open != other.Open || s.Tamper != other.Tamper ||
		s.LowBattery != other.LowBattery || s.Triggered != other.Triggered {
		return false
	}
	return s.LastTrigger.Equal(other.LastTrigger)
}

// Identity is the panel identity block decoded from EPROM (spec §3).
type Identity struct {
	ModelID      byte
	SubModelID   byte
	ModelName    string
	Serial       string
	Firmware     string
	EPROMLabel   string
	PowerMaster  bool
}

// Flags are the sys_flags bits decoded from A5 sub-type 0x04 (spec §3, §4.8).
type Flags struct {
	Ready          bool
	AlertInMemory  bool
	Trouble        bool
	BypassOn       bool
	Last10Seconds  bool
	ZoneEvent      bool
	StatusChanged  bool
	AlarmEvent     bool
}

// State is the live mirror of panel status (spec §3).
type State struct {
	Mode               Mode
	ArmCode            ArmCode
	ArmCodeName        string
	Armed              bool
	Flags              Flags
	LastEvent          string
	AlarmKind          string
	TroubleKind        string
	SirenActiveUntil   *time.Time
	CommExceptions     int
}

// EventLogRecord is one decoded A0 record (spec §4.8).
type EventLogRecord struct {
	Index     int
	Timestamp time.Time
	Zone      int
	ZoneName  string
	EventCode byte
	EventName string
	Partition string
}
