package protocol

import "bytes"

// AcmpMessageType is the ACMP message_type field.
type AcmpMessageType uint8

const (
	AcmpConnectTxCommand        AcmpMessageType = 0
	AcmpConnectTxResponse       AcmpMessageType = 1
	AcmpDisconnectTxCommand     AcmpMessageType = 2
	AcmpDisconnectTxResponse    AcmpMessageType = 3
	AcmpGetTxStateCommand       AcmpMessageType = 4
	AcmpGetTxStateResponse      AcmpMessageType = 5
	AcmpConnectRxCommand        AcmpMessageType = 6
	AcmpConnectRxResponse       AcmpMessageType = 7
	AcmpDisconnectRxCommand     AcmpMessageType = 8
	AcmpDisconnectRxResponse    AcmpMessageType = 9
	AcmpGetRxStateCommand       AcmpMessageType = 10
	AcmpGetRxStateResponse      AcmpMessageType = 11
	AcmpGetTxConnectionCommand  AcmpMessageType = 12
	AcmpGetTxConnectionResponse AcmpMessageType = 13
)

// IsResponse returns true for the odd (response) message types.
func (t AcmpMessageType) IsResponse() bool {
	return t&0x01 != 0
}

// Response returns the response type matching a command type.
func (t AcmpMessageType) Response() AcmpMessageType {
	return t | 0x01
}

// String returns the message type name.
func (t AcmpMessageType) String() string {
	switch t {
	case AcmpConnectTxCommand:
		return "CONNECT_TX_COMMAND"
	case AcmpConnectTxResponse:
		return "CONNECT_TX_RESPONSE"
	case AcmpDisconnectTxCommand:
		return "DISCONNECT_TX_COMMAND"
	case AcmpDisconnectTxResponse:
		return "DISCONNECT_TX_RESPONSE"
	case AcmpGetTxStateCommand:
		return "GET_TX_STATE_COMMAND"
	case AcmpGetTxStateResponse:
		return "GET_TX_STATE_RESPONSE"
	case AcmpConnectRxCommand:
		return "CONNECT_RX_COMMAND"
	case AcmpConnectRxResponse:
		return "CONNECT_RX_RESPONSE"
	case AcmpDisconnectRxCommand:
		return "DISCONNECT_RX_COMMAND"
	case AcmpDisconnectRxResponse:
		return "DISCONNECT_RX_RESPONSE"
	case AcmpGetRxStateCommand:
		return "GET_RX_STATE_COMMAND"
	case AcmpGetRxStateResponse:
		return "GET_RX_STATE_RESPONSE"
	case AcmpGetTxConnectionCommand:
		return "GET_TX_CONNECTION_COMMAND"
	case AcmpGetTxConnectionResponse:
		return "GET_TX_CONNECTION_RESPONSE"
	default:
		return "UNKNOWN"
	}
}

// AcmpStatus is the ACMP status field.
type AcmpStatus uint8

const (
	AcmpStatusSuccess                 AcmpStatus = 0
	AcmpStatusListenerUnknownID       AcmpStatus = 1
	AcmpStatusTalkerUnknownID         AcmpStatus = 2
	AcmpStatusTalkerDestMacFail       AcmpStatus = 3
	AcmpStatusTalkerNoStreamIndex     AcmpStatus = 4
	AcmpStatusTalkerNoBandwidth       AcmpStatus = 5
	AcmpStatusTalkerExclusive         AcmpStatus = 6
	AcmpStatusListenerTalkerTimeout   AcmpStatus = 7
	AcmpStatusListenerExclusive       AcmpStatus = 8
	AcmpStatusStateUnavailable        AcmpStatus = 9
	AcmpStatusNotConnected            AcmpStatus = 10
	AcmpStatusNoSuchConnection        AcmpStatus = 11
	AcmpStatusCouldNotSendMessage     AcmpStatus = 12
	AcmpStatusTalkerMisbehaving       AcmpStatus = 13
	AcmpStatusListenerMisbehaving     AcmpStatus = 14
	AcmpStatusControllerNotAuthorized AcmpStatus = 16
	AcmpStatusIncompatibleRequest     AcmpStatus = 17
	AcmpStatusNotSupported            AcmpStatus = 31
)

// String returns the status name.
func (s AcmpStatus) String() string {
	switch s {
	case AcmpStatusSuccess:
		return "SUCCESS"
	case AcmpStatusListenerUnknownID:
		return "LISTENER_UNKNOWN_ID"
	case AcmpStatusTalkerUnknownID:
		return "TALKER_UNKNOWN_ID"
	case AcmpStatusTalkerDestMacFail:
		return "TALKER_DEST_MAC_FAIL"
	case AcmpStatusTalkerNoStreamIndex:
		return "TALKER_NO_STREAM_INDEX"
	case AcmpStatusTalkerNoBandwidth:
		return "TALKER_NO_BANDWIDTH"
	case AcmpStatusTalkerExclusive:
		return "TALKER_EXCLUSIVE"
	case AcmpStatusListenerTalkerTimeout:
		return "LISTENER_TALKER_TIMEOUT"
	case AcmpStatusListenerExclusive:
		return "LISTENER_EXCLUSIVE"
	case AcmpStatusStateUnavailable:
		return "STATE_UNAVAILABLE"
	case AcmpStatusNotConnected:
		return "NOT_CONNECTED"
	case AcmpStatusNoSuchConnection:
		return "NO_SUCH_CONNECTION"
	case AcmpStatusCouldNotSendMessage:
		return "COULD_NOT_SEND_MESSAGE"
	case AcmpStatusTalkerMisbehaving:
		return "TALKER_MISBEHAVING"
	case AcmpStatusListenerMisbehaving:
		return "LISTENER_MISBEHAVING"
	case AcmpStatusControllerNotAuthorized:
		return "CONTROLLER_NOT_AUTHORIZED"
	case AcmpStatusIncompatibleRequest:
		return "INCOMPATIBLE_REQUEST"
	case AcmpStatusNotSupported:
		return "NOT_SUPPORTED"
	default:
		return "UNKNOWN"
	}
}

// Acmpdu is a decoded ACMP frame. ACMP is multicast on the wire; the
// destination MAC is what the engine keys its per-destination windows on.
type Acmpdu struct {
	SrcAddress         MacAddress       `cbor:"1,keyasint"`
	DestAddress        MacAddress       `cbor:"2,keyasint"`
	MessageType        AcmpMessageType  `cbor:"3,keyasint"`
	Status             AcmpStatus       `cbor:"4,keyasint"`
	StreamID           UniqueIdentifier `cbor:"5,keyasint"`
	ControllerEntityID UniqueIdentifier `cbor:"6,keyasint"`
	TalkerEntityID     UniqueIdentifier `cbor:"7,keyasint"`
	ListenerEntityID   UniqueIdentifier `cbor:"8,keyasint"`
	TalkerUniqueID     uint16           `cbor:"9,keyasint"`
	ListenerUniqueID   uint16           `cbor:"10,keyasint"`
	StreamDestAddress  MacAddress       `cbor:"11,keyasint"`
	ConnectionCount    uint16           `cbor:"12,keyasint"`
	SequenceID         AcmpSequenceID   `cbor:"13,keyasint"`
	Flags              uint16           `cbor:"14,keyasint"`
	StreamVlanID       uint16           `cbor:"15,keyasint"`
	Payload            []byte           `cbor:"16,keyasint,omitempty"`
}

// IsResponse returns true if the frame carries a response message type.
func (a *Acmpdu) IsResponse() bool {
	return a.MessageType.IsResponse()
}

// Clone returns a deep copy of the frame.
func (a *Acmpdu) Clone() *Acmpdu {
	c := *a
	if a.Payload != nil {
		c.Payload = bytes.Clone(a.Payload)
	}
	return &c
}

// MakeResponse returns the response to a command frame. ACMP responses are
// multicast like the commands.
func (a *Acmpdu) MakeResponse(src MacAddress, status AcmpStatus) *Acmpdu {
	r := a.Clone()
	r.SrcAddress = src
	r.DestAddress = MulticastMacAddress
	r.MessageType = a.MessageType.Response()
	r.Status = status
	return r
}
