package log

import (
	"time"

	"github.com/avbridge/avdecc-go/pkg/protocol"
)

// MaxFrameData is the maximum number of encoded frame bytes kept in a
// FrameEvent.
const MaxFrameData = 512

// Event represents a protocol capture event.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID identifies the engine instance that produced the event (UUID).
	SessionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Protocol is the AVDECC sub-protocol the event relates to.
	Protocol Protocol `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// LocalEntityID is the hosted entity involved, if any.
	LocalEntityID protocol.UniqueIdentifier `cbor:"6,keyasint,omitempty"`

	// RemoteEntityID is the peer entity involved, if any.
	RemoteEntityID protocol.UniqueIdentifier `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"11,keyasint,omitempty"`
	Statistic   *StatisticEvent   `cbor:"12,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"13,keyasint,omitempty"`
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming frame or an event caused by one.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing frame.
	DirectionOut Direction = 1
	// DirectionInternal indicates an event raised by the engine itself.
	DirectionInternal Direction = 2
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	case DirectionInternal:
		return "INTERNAL"
	default:
		return "UNKNOWN"
	}
}

// Protocol identifies an AVDECC sub-protocol.
type Protocol uint8

const (
	ProtocolADP  Protocol = 0
	ProtocolAECP Protocol = 1
	ProtocolACMP Protocol = 2
	// ProtocolNone is used for engine events not tied to a sub-protocol.
	ProtocolNone Protocol = 3
)

// String returns the protocol name.
func (p Protocol) String() string {
	switch p {
	case ProtocolADP:
		return "ADP"
	case ProtocolAECP:
		return "AECP"
	case ProtocolACMP:
		return "ACMP"
	case ProtocolNone:
		return "NONE"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a frame.
	CategoryMessage Category = 0
	// CategoryState indicates a state change.
	CategoryState Category = 1
	// CategoryStatistic indicates a command statistic.
	CategoryStatistic Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryState:
		return "STATE"
	case CategoryStatistic:
		return "STATISTIC"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures a frame sent or received.
type FrameEvent struct {
	// MessageType is the sub-protocol message type name.
	MessageType string `cbor:"1,keyasint"`

	// SequenceID is set for AECP and ACMP frames.
	SequenceID *uint16 `cbor:"2,keyasint,omitempty"`

	// Status is the status name of a response frame.
	Status string `cbor:"3,keyasint,omitempty"`

	// Source and destination MAC addresses.
	SrcAddress  string `cbor:"4,keyasint"`
	DestAddress string `cbor:"5,keyasint"`

	// Data is the CBOR encoding of the decoded frame (may be truncated).
	Data []byte `cbor:"6,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"7,keyasint,omitempty"`
}

// StateChangeEvent captures discovery and advertising lifecycle events.
type StateChangeEvent struct {
	// Entity kind being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what changed state.
type StateEntity uint8

const (
	// StateEntityRemote indicates a discovered remote entity.
	StateEntityRemote StateEntity = 0
	// StateEntityLocal indicates a hosted local entity.
	StateEntityLocal StateEntity = 1
	// StateEntityAdvertising indicates an advertising schedule.
	StateEntityAdvertising StateEntity = 2
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityRemote:
		return "REMOTE_ENTITY"
	case StateEntityLocal:
		return "LOCAL_ENTITY"
	case StateEntityAdvertising:
		return "ADVERTISING"
	default:
		return "UNKNOWN"
	}
}

// StatisticEvent captures command pipeline statistics.
type StatisticEvent struct {
	Kind StatisticKind `cbor:"1,keyasint"`

	// SequenceID of the command concerned.
	SequenceID uint16 `cbor:"2,keyasint"`

	// ResponseTime is set for StatisticResponseTime. Stored as nanoseconds.
	ResponseTime *time.Duration `cbor:"3,keyasint,omitempty"`
}

// StatisticKind identifies a command statistic.
type StatisticKind uint8

const (
	StatisticRetry              StatisticKind = 0
	StatisticTimeout            StatisticKind = 1
	StatisticUnexpectedResponse StatisticKind = 2
	StatisticResponseTime       StatisticKind = 3
)

// String returns the statistic name.
func (s StatisticKind) String() string {
	switch s {
	case StatisticRetry:
		return "RETRY"
	case StatisticTimeout:
		return "TIMEOUT"
	case StatisticUnexpectedResponse:
		return "UNEXPECTED_RESPONSE"
	case StatisticResponseTime:
		return "RESPONSE_TIME"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors raised by the engine or the transport.
type ErrorEventData struct {
	// Message is the error message.
	Message string `cbor:"1,keyasint"`

	// Code is the error code (if applicable).
	Code *int `cbor:"2,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"3,keyasint,omitempty"`
}
