package protocol

import "bytes"

// AecpMessageType is the AECP message_type field.
type AecpMessageType uint8

const (
	AecpAemCommand        AecpMessageType = 0
	AecpAemResponse       AecpMessageType = 1
	AecpAddressAccessCmd  AecpMessageType = 2
	AecpAddressAccessResp AecpMessageType = 3
	AecpAvcCommand        AecpMessageType = 4
	AecpAvcResponse       AecpMessageType = 5
	AecpVendorUniqueCmd   AecpMessageType = 6
	AecpVendorUniqueResp  AecpMessageType = 7
	AecpExtendedCommand   AecpMessageType = 14
	AecpExtendedResponse  AecpMessageType = 15
)

// IsResponse returns true for the odd (response) message types.
func (t AecpMessageType) IsResponse() bool {
	return t&0x01 != 0
}

// Response returns the response type matching a command type.
func (t AecpMessageType) Response() AecpMessageType {
	return t | 0x01
}

// String returns the message type name.
func (t AecpMessageType) String() string {
	switch t {
	case AecpAemCommand:
		return "AEM_COMMAND"
	case AecpAemResponse:
		return "AEM_RESPONSE"
	case AecpAddressAccessCmd:
		return "ADDRESS_ACCESS_COMMAND"
	case AecpAddressAccessResp:
		return "ADDRESS_ACCESS_RESPONSE"
	case AecpAvcCommand:
		return "AVC_COMMAND"
	case AecpAvcResponse:
		return "AVC_RESPONSE"
	case AecpVendorUniqueCmd:
		return "VENDOR_UNIQUE_COMMAND"
	case AecpVendorUniqueResp:
		return "VENDOR_UNIQUE_RESPONSE"
	case AecpExtendedCommand:
		return "EXTENDED_COMMAND"
	case AecpExtendedResponse:
		return "EXTENDED_RESPONSE"
	default:
		return "UNKNOWN"
	}
}

// AecpStatus is the AECP status field. Values below 0x0D are common to
// every AECP message type; AemStatus* names match the AEM table.
type AecpStatus uint8

const (
	AemStatusSuccess                AecpStatus = 0
	AemStatusNotImplemented         AecpStatus = 1
	AemStatusNoSuchDescriptor       AecpStatus = 2
	AemStatusEntityLocked           AecpStatus = 3
	AemStatusEntityAcquired         AecpStatus = 4
	AemStatusNotAuthenticated       AecpStatus = 5
	AemStatusAuthenticationDisabled AecpStatus = 6
	AemStatusBadArguments           AecpStatus = 7
	AemStatusNoResources            AecpStatus = 8
	// AemStatusInProgress asks the controller to extend its deadline.
	AemStatusInProgress        AecpStatus = 9
	AemStatusEntityMisbehaving AecpStatus = 10
	AemStatusNotSupported      AecpStatus = 11
	AemStatusStreamIsRunning   AecpStatus = 12
)

// String returns the status name.
func (s AecpStatus) String() string {
	switch s {
	case AemStatusSuccess:
		return "SUCCESS"
	case AemStatusNotImplemented:
		return "NOT_IMPLEMENTED"
	case AemStatusNoSuchDescriptor:
		return "NO_SUCH_DESCRIPTOR"
	case AemStatusEntityLocked:
		return "ENTITY_LOCKED"
	case AemStatusEntityAcquired:
		return "ENTITY_ACQUIRED"
	case AemStatusNotAuthenticated:
		return "NOT_AUTHENTICATED"
	case AemStatusAuthenticationDisabled:
		return "AUTHENTICATION_DISABLED"
	case AemStatusBadArguments:
		return "BAD_ARGUMENTS"
	case AemStatusNoResources:
		return "NO_RESOURCES"
	case AemStatusInProgress:
		return "IN_PROGRESS"
	case AemStatusEntityMisbehaving:
		return "ENTITY_MISBEHAVING"
	case AemStatusNotSupported:
		return "NOT_SUPPORTED"
	case AemStatusStreamIsRunning:
		return "STREAM_IS_RUNNING"
	default:
		return "UNKNOWN"
	}
}

// AemCommandType is the AEM command_type field. Only the commands this
// module emits or answers itself are named.
type AemCommandType uint16

const (
	AemAcquireEntity        AemCommandType = 0x0000
	AemLockEntity           AemCommandType = 0x0001
	AemEntityAvailable      AemCommandType = 0x0002
	AemControllerAvailable  AemCommandType = 0x0003
	AemReadDescriptor       AemCommandType = 0x0004
	AemSetConfiguration     AemCommandType = 0x0006
	AemGetConfiguration     AemCommandType = 0x0007
	AemSetName              AemCommandType = 0x0010
	AemGetName              AemCommandType = 0x0011
	AemSetControl           AemCommandType = 0x0018
	AemGetControl           AemCommandType = 0x0019
	AemRegisterUnsolNotif   AemCommandType = 0x0024
	AemDeregisterUnsolNotif AemCommandType = 0x0025
	AemGetAvbInfo           AemCommandType = 0x0027
	AemGetCounters          AemCommandType = 0x0029
	AemGetDynamicInfo       AemCommandType = 0x004b
	AemInvalidCommandType   AemCommandType = 0xffff
)

// String returns the command type name.
func (c AemCommandType) String() string {
	switch c {
	case AemAcquireEntity:
		return "ACQUIRE_ENTITY"
	case AemLockEntity:
		return "LOCK_ENTITY"
	case AemEntityAvailable:
		return "ENTITY_AVAILABLE"
	case AemControllerAvailable:
		return "CONTROLLER_AVAILABLE"
	case AemReadDescriptor:
		return "READ_DESCRIPTOR"
	case AemSetConfiguration:
		return "SET_CONFIGURATION"
	case AemGetConfiguration:
		return "GET_CONFIGURATION"
	case AemSetName:
		return "SET_NAME"
	case AemGetName:
		return "GET_NAME"
	case AemSetControl:
		return "SET_CONTROL"
	case AemGetControl:
		return "GET_CONTROL"
	case AemRegisterUnsolNotif:
		return "REGISTER_UNSOLICITED_NOTIFICATION"
	case AemDeregisterUnsolNotif:
		return "DEREGISTER_UNSOLICITED_NOTIFICATION"
	case AemGetAvbInfo:
		return "GET_AVB_INFO"
	case AemGetCounters:
		return "GET_COUNTERS"
	case AemGetDynamicInfo:
		return "GET_DYNAMIC_INFO"
	default:
		return "UNKNOWN"
	}
}

// Aecpdu is a decoded AECP frame.
//
// Unsolicited and CommandType are only meaningful for AEM messages;
// ProtocolIdentifier only for Vendor Unique messages. Payload holds the
// command specific data and is never interpreted by the engine.
type Aecpdu struct {
	SrcAddress         MacAddress           `cbor:"1,keyasint"`
	DestAddress        MacAddress           `cbor:"2,keyasint"`
	MessageType        AecpMessageType      `cbor:"3,keyasint"`
	Status             AecpStatus           `cbor:"4,keyasint"`
	TargetEntityID     UniqueIdentifier     `cbor:"5,keyasint"`
	ControllerEntityID UniqueIdentifier     `cbor:"6,keyasint"`
	SequenceID         AecpSequenceID       `cbor:"7,keyasint"`
	Unsolicited        bool                 `cbor:"8,keyasint,omitempty"`
	CommandType        AemCommandType       `cbor:"9,keyasint,omitempty"`
	ProtocolIdentifier VuProtocolIdentifier `cbor:"10,keyasint,omitempty"`
	Payload            []byte               `cbor:"11,keyasint,omitempty"`
}

// IsResponse returns true if the frame carries a response message type.
func (a *Aecpdu) IsResponse() bool {
	return a.MessageType.IsResponse()
}

// Clone returns a deep copy of the frame.
func (a *Aecpdu) Clone() *Aecpdu {
	c := *a
	if a.Payload != nil {
		c.Payload = bytes.Clone(a.Payload)
	}
	return &c
}

// MakeResponse returns a response frame addressed back to the sender of a,
// with the same identifiers and sequence ID.
func (a *Aecpdu) MakeResponse(status AecpStatus) *Aecpdu {
	r := a.Clone()
	r.SrcAddress, r.DestAddress = a.DestAddress, a.SrcAddress
	r.MessageType = a.MessageType.Response()
	r.Status = status
	return r
}
