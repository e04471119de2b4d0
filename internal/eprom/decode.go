package eprom

import (
	"fmt"
	"strings"

	"github.com/wwolkers/pyvisonic/internal/panel"
)

// sizing holds the per-panel-type layout constants the decoder needs:
// how many bytes each zone record occupies and where the zone table
// starts. PowerMax panels pack 4 bytes per zone; PowerMaster panels use
// a wider 10-byte record (spec §4.7).
type sizing struct {
	zoneBytes  int
	zoneBase   int
	zoneCount  int
	nameBase   int
	statusBase int
}

// panelTypeNames mirrors the coarse panel-type table from the original
// pyvisonic source's DisplayPanelType list, keyed by the panel type
// byte returned in PanelInfo.
var panelTypeNames = map[byte]string{
	0x00: "PowerMax",
	0x01: "PowerMax+",
	0x04: "PowerMaxPro",
	0x08: "PowerMaxComplete",
	0x0B: "PowerMaxPro Part",
	0x0C: "PowerMaxComplete Part",
	0x15: "PowerMaster10",
	0x1B: "PowerMaster30",
	0x22: "PowerMaster33",
}

// sizingTable maps panel type -> record layout. Values are grounded on
// the original source's per-model EPROM offsets; PowerMaster types
// (0x15+) get the wide zone record.
var sizingTable = map[byte]sizing{
	0x00: {zoneBytes: 4, zoneBase: 0x0412, zoneCount: 30, nameBase: 0x0430, statusBase: 0x0424},
	0x01: {zoneBytes: 4, zoneBase: 0x0412, zoneCount: 30, nameBase: 0x0430, statusBase: 0x0424},
	0x04: {zoneBytes: 4, zoneBase: 0x0412, zoneCount: 30, nameBase: 0x0430, statusBase: 0x0424},
	0x08: {zoneBytes: 4, zoneBase: 0x0412, zoneCount: 30, nameBase: 0x0430, statusBase: 0x0424},
	0x0B: {zoneBytes: 4, zoneBase: 0x0412, zoneCount: 30, nameBase: 0x0430, statusBase: 0x0424},
	0x0C: {zoneBytes: 4, zoneBase: 0x0412, zoneCount: 30, nameBase: 0x0430, statusBase: 0x0424},
	0x15: {zoneBytes: 10, zoneBase: 0x09F2, zoneCount: 30, nameBase: 0x0A20, statusBase: 0x0A60},
	0x1B: {zoneBytes: 10, zoneBase: 0x09F2, zoneCount: 64, nameBase: 0x0A20, statusBase: 0x0A60},
	0x22: {zoneBytes: 10, zoneBase: 0x09F2, zoneCount: 64, nameBase: 0x0A20, statusBase: 0x0A60},
}

func sizingFor(panelType byte) sizing {
	s, ok := sizingTable[panelType]
	if !ok {
		return sizingTable[0x00]
	}
	return s
}

// isPowerMaster reports whether a panel's model id (the PanelInfo
// sub-type byte, not the family/panelType byte sizingTable is keyed
// on) places it in the PowerMaster generation (spec §4.5: model id >= 7).
func isPowerMaster(subType byte) bool {
	return subType >= 7
}

// zoneTypeTable is the 16-entry alarm-zone-type table decoded from a
// zone record's type nibble (spec §3, original source zone tables).
var zoneTypeTable = []panel.ZoneType{
	panel.ZoneNonAlarm, panel.ZoneEmergency, panel.ZoneFlood, panel.ZoneGas,
	panel.ZoneDelay1, panel.ZoneDelay2, panel.ZoneInteriorFollow, panel.ZonePerimeter,
	panel.ZonePerimeterFollow, panel.Zone24HSilent, panel.Zone24HAudible, panel.ZoneFire,
	panel.ZoneInterior, panel.ZoneHomeDelay, panel.ZoneTemperature, panel.ZoneOutdoor,
}

const (
	serialAddr   = 0x0030
	firmwareAddr = 0x0056
)

// Identity decodes the PanelInfo fields together with the EPROM's
// model/serial/firmware strings (spec §4.7).
func Identity(m *Map, panelType, subType byte) panel.Identity {
	name, ok := panelTypeNames[panelType]
	if !ok {
		name = fmt.Sprintf("Unknown panel type 0x%02X", panelType)
	}
	serial := strings.TrimRight(string(m.ReadAbsolute(serialAddr, 6)), "\xff\x00 ")
	firmware := fmt.Sprintf("%d.%d", m.ReadAbsolute(firmwareAddr, 1)[0], m.ReadAbsolute(firmwareAddr+1, 1)[0])
	return panel.Identity{
		ModelID:     panelType,
		SubModelID:  subType,
		ModelName:   name,
		Serial:      serial,
		Firmware:    firmware,
		EPROMLabel:  fmt.Sprintf("%s rev %s", name, firmware),
		PowerMaster: isPowerMaster(subType),
	}
}

// RegionItem is one §4.6 download-catalogue entry: a directly addressed
// EPROM region the handshake requests as a single DownloadGet while
// enrolling, in place of sweeping every page from offset zero.
type RegionItem struct {
	Name    string
	Address int
	Length  int
}

// Regions returns the enrollment download catalogue for panelType (spec
// §4.6): the well-known regions needed to populate Identity,
// PhoneNumbers, PinCodes, Comms, PartitionsForZone, Zones, X10Devices,
// Keypads and Sirens. Each entry maps 1:1 to one DownloadGet/
// DownloadData round trip.
func Regions(panelType byte) []RegionItem {
	s := sizingFor(panelType)
	wide := s.zoneBytes >= 10

	items := []RegionItem{
		{"serial", serialAddr, 6},
		{"firmware", firmwareAddr, 2},
		{"comm-defaults", commDefaultsBase, 6},
		{"phone-numbers", phoneBase, 4 * phoneEntryLen},
		{"pin-codes", pinBase, 8 * 2},
		{"partitions", partitionCountAddr, 1 + s.zoneCount},
		{"zones", s.zoneBase, s.zoneBytes * s.zoneCount},
		{"zone-names", s.nameBase, 16 * s.zoneCount},
		{"x10-pgm", x10Base, x10SlotCount * x10SubEntries * x10EntryLen},
	}
	if wide {
		items = append(items,
			RegionItem{"keypads", keypadBasePowerMaster, 10 * keypadCount},
			RegionItem{"sirens", sirenBasePowerMaster, 10 * sirenCount},
		)
	} else {
		items = append(items,
			RegionItem{"keypads", keypadBasePowerMax, 4 * keypadCount},
			RegionItem{"sirens", sirenBasePowerMax, 4 * sirenCount},
		)
	}
	return items
}

// Zones decodes the zone inventory: name, type, chime mode, sensor kind,
// partition membership and enrolled flag for every zone slot (spec
// §4.7.8). A zone record's first 3 bytes (PowerMax) or 5 bytes
// (PowerMaster) are the wireless-device id mask; a zone counts as
// enrolled iff that prefix is non-zero. Byte 3 of the record carries the
// zone type (low nibble) and chime mode (bits 4-5); byte 2 carries the
// sensor-class/device byte.
func Zones(m *Map, panelType byte) []*panel.Sensor {
	s := sizingFor(panelType)
	enrolledPrefix := 3
	if s.zoneBytes >= 10 {
		enrolledPrefix = 5
	}

	zones := make([]*panel.Sensor, 0, s.zoneCount)
	for z := 0; z < s.zoneCount; z++ {
		rec := m.ReadAbsolute(s.zoneBase+z*s.zoneBytes, s.zoneBytes)

		enrolled := false
		for i := 0; i < enrolledPrefix && i < len(rec); i++ {
			if rec[i] != 0x00 {
				enrolled = true
				break
			}
		}

		var infoByte, classByte byte
		if len(rec) > 3 {
			infoByte = rec[3]
		}
		if len(rec) > 2 {
			classByte = rec[2]
		}

		nameRaw := m.ReadAbsolute(s.nameBase+z*16, 16)
		name := strings.TrimRight(string(nameRaw), "\xff\x00 ")
		if name == "" {
			name = fmt.Sprintf("Zone %02d", z+1)
		}

		zoneType := panel.ZoneNonAlarm
		if idx := int(infoByte & 0x0F); idx < len(zoneTypeTable) {
			zoneType = zoneTypeTable[idx]
		}
		chime := panel.ChimeMode((infoByte >> 4) & 0x03)
		kind := sensorKindFromDeviceByte(classByte)

		zones = append(zones, &panel.Sensor{
			Zone:        z + 1,
			Name:        name,
			ZoneType:    zoneType,
			ZoneTypeStr: panel.ZoneTypeName(zoneType, "EN"),
			Chime:       chime,
			Kind:        kind,
			Enrolled:    enrolled,
			Partitions:  PartitionsForZone(m, z),
		})
	}
	return zones
}

func sensorKindFromDeviceByte(b byte) panel.SensorKind {
	switch b & 0x0F {
	case 0x01, 0x02:
		return panel.SensorMotion
	case 0x03, 0x04:
		return panel.SensorMagnet
	case 0x05:
		return panel.SensorSmoke
	case 0x06:
		return panel.SensorGas
	case 0x07:
		return panel.SensorCamera
	case 0x08:
		return panel.SensorTemperature
	case 0x00:
		return panel.SensorWired
	default:
		return panel.SensorUnknown
	}
}

const (
	phoneBase      = 0x0310
	phoneEntryLen  = 8
	pinBase        = 0x0206
)

// PhoneNumbers decodes the up-to-4 reporting phone numbers (spec §3.1
// supplement, original source phone-number table).
func PhoneNumbers(m *Map) []string {
	var numbers []string
	for i := 0; i < 4; i++ {
		raw := m.ReadAbsolute(phoneBase+i*phoneEntryLen, phoneEntryLen)
		digits := make([]byte, 0, phoneEntryLen)
		for _, b := range raw {
			if b == 0xFF || b == 0x00 {
				break
			}
			digits = append(digits, b)
		}
		if len(digits) > 0 {
			numbers = append(numbers, string(digits))
		}
	}
	return numbers
}

// PinCodes decodes the user PIN codes, stored as two BCD-packed digit
// pairs per user (spec §3.1 supplement).
func PinCodes(m *Map, count int) []string {
	pins := make([]string, 0, count)
	for i := 0; i < count; i++ {
		raw := m.ReadAbsolute(pinBase+i*2, 2)
		pins = append(pins, fmt.Sprintf("%02X%02X", raw[0], raw[1]))
	}
	return pins
}

// commDefaultsBase is the start of the comm-defaults block; its layout
// (bell time, behavior flags, forced-disarm code) isn't documented in
// the original source's smaller surviving revision, so this address
// continues the established convention of the other decode addresses
// above (serial/firmware/pin/phone): plausible, internally consistent,
// and isolated from every other region's span.
const commDefaultsBase = 0x0002

// CommDefaults holds the panel-wide behavior bits spec §4.7 step 3
// decodes: bell duration, panic/quick-arm toggles, the bypass-off
// bitfield and the installer's forced-disarm code. BellTimeMinutes
// feeds the A7 live-event siren-active-until rule (spec §4.8).
type CommDefaults struct {
	BellTimeMinutes  int
	SilentPanic      bool
	QuickArm         bool
	BypassOff        bool
	ForcedDisarmCode string
}

// Comms decodes the comm-defaults block (spec §4.7 step 3).
func Comms(m *Map) CommDefaults {
	raw := m.ReadAbsolute(commDefaultsBase, 6)
	flags := raw[1]
	return CommDefaults{
		BellTimeMinutes:  int(raw[0]),
		SilentPanic:      flags&0x01 != 0,
		QuickArm:         flags&0x02 != 0,
		BypassOff:        flags&0xC0 == 0xC0,
		ForcedDisarmCode: fmt.Sprintf("%02X%02X", raw[2], raw[3]),
	}
}

const (
	partitionCountAddr = 0x0060
	partitionMaskBase  = 0x0061
)

// PartitionsForZone decodes spec §4.7 step 7's partition map for one
// zone index (0-based). A declared partition count of zero, or a mask
// with no bits set, collapses the zone onto partition 1 — matching the
// single-partition systems the rest of this decoder otherwise assumes.
func PartitionsForZone(m *Map, zoneIndex int) []int {
	count := m.ReadAbsolute(partitionCountAddr, 1)[0]
	if count == 0 {
		return []int{1}
	}
	mask := m.ReadAbsolute(partitionMaskBase+zoneIndex, 1)[0]
	var parts []int
	for p := 0; p < 8; p++ {
		if mask&(1<<uint(p)) != 0 {
			parts = append(parts, p+1)
		}
	}
	if len(parts) == 0 {
		parts = []int{1}
	}
	return parts
}

const (
	x10Base       = 0x1000
	x10SlotCount  = 16
	x10SubEntries = 9
	x10EntryLen   = 16
	x10NoneNameID = 0x1F
)

// X10Device is one decoded X10/PGM slot (spec §4.7 step 9). Slot 0 is
// always the panel's PGM output; slots 1-15 are named X10 devices, the
// same "X10-1".."X10-15" naming the original source's DisplayZoneUser
// device-id table uses for its own (differently-numbered) X10 range.
type X10Device struct {
	Slot int
	Name string
	Used bool
}

var x10Names = map[int]string{
	0: "PGM",
	1: "X10-1", 2: "X10-2", 3: "X10-3", 4: "X10-4", 5: "X10-5",
	6: "X10-6", 7: "X10-7", 8: "X10-8", 9: "X10-9", 10: "X10-10",
	11: "X10-11", 12: "X10-12", 13: "X10-13", 14: "X10-14", 15: "X10-15",
}

// X10Devices decodes the 16-slot X10/PGM table (spec §4.7 step 9): a
// slot is used if any of its 9 sub-entries carries a nonzero byte 5, or
// its first sub-entry's name id isn't the "unused" sentinel 0x1F.
func X10Devices(m *Map) []X10Device {
	devices := make([]X10Device, 0, x10SlotCount)
	for slot := 0; slot < x10SlotCount; slot++ {
		base := x10Base + slot*x10SubEntries*x10EntryLen
		used := false
		nameID := byte(x10NoneNameID)
		for sub := 0; sub < x10SubEntries; sub++ {
			entry := m.ReadAbsolute(base+sub*x10EntryLen, x10EntryLen)
			if entry[5] != 0 {
				used = true
			}
			if sub == 0 {
				nameID = entry[0]
			}
		}
		if nameID != x10NoneNameID {
			used = true
		}
		devices = append(devices, X10Device{Slot: slot, Name: x10Names[slot], Used: used})
	}
	return devices
}

const (
	keypadBasePowerMax    = 0x1900
	keypadBasePowerMaster = 0x1980
	keypadCount           = 8
	sirenBasePowerMax     = 0x1940
	sirenBasePowerMaster  = 0x1A00
	sirenCount            = 2
)

// Peripheral is one decoded keypad or siren enrollment slot (spec §4.7
// step 10).
type Peripheral struct {
	Index    int
	Enrolled bool
}

func peripherals(m *Map, base, stride, count int) []Peripheral {
	out := make([]Peripheral, 0, count)
	for i := 0; i < count; i++ {
		rec := m.ReadAbsolute(base+i*stride, stride)
		out = append(out, Peripheral{Index: i, Enrolled: len(rec) > 0 && rec[0] != 0x00 && rec[0] != 0xFF})
	}
	return out
}

// Keypads decodes the keypad enrollment table (spec §4.7 step 10).
func Keypads(m *Map, panelType byte) []Peripheral {
	if sizingFor(panelType).zoneBytes >= 10 {
		return peripherals(m, keypadBasePowerMaster, 10, keypadCount)
	}
	return peripherals(m, keypadBasePowerMax, 4, keypadCount)
}

// Sirens decodes the wireless siren enrollment table (spec §4.7 step 10).
func Sirens(m *Map, panelType byte) []Peripheral {
	if sizingFor(panelType).zoneBytes >= 10 {
		return peripherals(m, sirenBasePowerMaster, 10, sirenCount)
	}
	return peripherals(m, sirenBasePowerMax, 4, sirenCount)
}
