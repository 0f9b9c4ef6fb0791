package protocol

// AdpMessageType is the ADP message_type field.
type AdpMessageType uint8

const (
	// AdpEntityAvailable announces an entity (periodically and on change).
	AdpEntityAvailable AdpMessageType = 0

	// AdpEntityDeparting announces that an entity is leaving the network.
	AdpEntityDeparting AdpMessageType = 1

	// AdpEntityDiscover asks one (or all) entities to announce themselves.
	AdpEntityDiscover AdpMessageType = 2
)

// String returns the message type name.
func (t AdpMessageType) String() string {
	switch t {
	case AdpEntityAvailable:
		return "ENTITY_AVAILABLE"
	case AdpEntityDeparting:
		return "ENTITY_DEPARTING"
	case AdpEntityDiscover:
		return "ENTITY_DISCOVER"
	default:
		return "UNKNOWN"
	}
}

// Adpdu is a decoded ADP frame.
//
// ValidTime is carried as in the frame; an announcement stays valid for
// 2*ValidTime seconds.
type Adpdu struct {
	SrcAddress  MacAddress     `cbor:"1,keyasint"`
	DestAddress MacAddress     `cbor:"2,keyasint"`
	MessageType AdpMessageType `cbor:"3,keyasint"`
	ValidTime   uint8          `cbor:"4,keyasint"`

	EntityID               UniqueIdentifier       `cbor:"5,keyasint"`
	EntityModelID          UniqueIdentifier       `cbor:"6,keyasint"`
	EntityCapabilities     EntityCapabilities     `cbor:"7,keyasint"`
	TalkerStreamSources    uint16                 `cbor:"8,keyasint"`
	TalkerCapabilities     TalkerCapabilities     `cbor:"9,keyasint"`
	ListenerStreamSinks    uint16                 `cbor:"10,keyasint"`
	ListenerCapabilities   ListenerCapabilities   `cbor:"11,keyasint"`
	ControllerCapabilities ControllerCapabilities `cbor:"12,keyasint"`
	AvailableIndex         uint32                 `cbor:"13,keyasint"`
	GptpGrandmasterID      UniqueIdentifier       `cbor:"14,keyasint"`
	GptpDomainNumber       uint8                  `cbor:"15,keyasint"`
	IdentifyControlIndex   ControlIndex           `cbor:"16,keyasint"`
	InterfaceIndex         AvbInterfaceIndex      `cbor:"17,keyasint"`
	AssociationID          UniqueIdentifier       `cbor:"18,keyasint"`
}

// Clone returns a copy of the frame.
func (a *Adpdu) Clone() *Adpdu {
	c := *a
	return &c
}
