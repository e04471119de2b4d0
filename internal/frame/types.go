package frame

// Type is a panel message type byte (the second wire byte, right after
// the 0x0D preamble).
type Type byte

// Receive types named in spec §6.
const (
	TypeAck          Type = 0x02
	TypeTimeout      Type = 0x06
	TypeAccessDenied Type = 0x08
	TypeStop         Type = 0x0B
	TypeDownloadRetry Type = 0x25
	TypeSettings     Type = 0x33
	TypePanelInfo    Type = 0x3C
	TypeDownloadData Type = 0x3F
	TypeEventLog     Type = 0xA0
	TypeStatus       Type = 0xA5
	TypeEventChange  Type = 0xA7
	TypePowerlink    Type = 0xAB
	TypePowerMaster  Type = 0xB0
	TypeKeepAliveF1  Type = 0xF1
)

// Send types, named in the original source's VMSG_* constants.
const (
	TypeExit        Type = 0x0F
	TypeDLStart     Type = 0x24
	TypeDLGet       Type = 0x0A
	TypeEventLogReq Type = 0xA0
	TypeArmDisarm   Type = 0xA1
	TypeStatusReq   Type = 0xA2
	TypeBypass      Type = 0xA3 // host-side numbering; panel accepts it framed like A1/A2
	TypeInit        Type = 0xAB
	TypeKeepAlive   Type = 0xF7 // "I'm Alive" keep-alive, spec §4.4
	TypeEnroll      Type = 0xAC // one-shot auto-enroll frame, spec §4.5/§8 scenario 5
	TypeSetTime     Type = 0x46 // clock sync, spec §4.5 AutoSyncTime
)

type typeInfo struct {
	requiresAck bool
	variable    bool
}

// receiveTable enumerates the receive types' ack discipline (§6) and marks
// the single wire-variable-length type (§4.2, §6: "Variable-length: 0x3F").
var receiveTable = map[Type]typeInfo{
	TypeAck:           {requiresAck: false},
	TypeTimeout:       {requiresAck: false},
	TypeAccessDenied:  {requiresAck: true},
	TypeStop:          {requiresAck: true},
	TypeDownloadRetry: {requiresAck: true},
	TypeSettings:      {requiresAck: true},
	TypePanelInfo:     {requiresAck: true},
	TypeDownloadData:  {requiresAck: true, variable: true},
	TypeEventLog:      {requiresAck: true},
	TypeStatus:        {requiresAck: true},
	TypeEventChange:   {requiresAck: true},
	TypePowerlink:     {requiresAck: true},
	TypePowerMaster:   {requiresAck: true},
	TypeKeepAliveF1:   {requiresAck: false},
}

// RequiresAck reports whether a received frame of type t is one of the
// types §6 lists as needing an acknowledgement from the driver. Unknown
// types default to false.
func RequiresAck(t Type) bool {
	return receiveTable[t].requiresAck
}

// Variable reports whether t is the wire-variable-length type (0x3F).
func Variable(t Type) bool {
	return receiveTable[t].variable
}

// Known reports whether t appears in the receive table at all.
func Known(t Type) bool {
	_, ok := receiveTable[t]
	return ok
}
