package entity

import (
	"maps"
	"slices"

	"github.com/avbridge/avdecc-go/pkg/protocol"
)

// CommonInformation holds the ADP fields shared by all interfaces of an
// entity.
type CommonInformation struct {
	EntityID               protocol.UniqueIdentifier
	EntityModelID          protocol.UniqueIdentifier
	EntityCapabilities     protocol.EntityCapabilities
	TalkerStreamSources    uint16
	TalkerCapabilities     protocol.TalkerCapabilities
	ListenerStreamSinks    uint16
	ListenerCapabilities   protocol.ListenerCapabilities
	ControllerCapabilities protocol.ControllerCapabilities
	IdentifyControlIndex   *protocol.ControlIndex
	AssociationID          *protocol.UniqueIdentifier
}

// InterfaceInformation holds the ADP fields specific to one AVB interface.
type InterfaceInformation struct {
	MacAddress protocol.MacAddress

	// ValidTime is in 2 second units (1-31).
	ValidTime         uint8
	AvailableIndex    uint32
	GptpGrandmasterID *protocol.UniqueIdentifier
	GptpDomainNumber  *uint8
}

// Entity is an AVDECC entity with one or more AVB interfaces.
type Entity struct {
	Common     CommonInformation
	Interfaces map[protocol.AvbInterfaceIndex]InterfaceInformation
}

// EntityID returns the entity's unique identifier.
func (e *Entity) EntityID() protocol.UniqueIdentifier {
	return e.Common.EntityID
}

// InterfaceIndexes returns the entity's interface indexes in ascending order.
func (e *Entity) InterfaceIndexes() []protocol.AvbInterfaceIndex {
	return slices.Sorted(maps.Keys(e.Interfaces))
}

// IsController returns true if the entity implements a controller.
func (e *Entity) IsController() bool {
	return e.Common.ControllerCapabilities&protocol.ControllerCapImplemented != 0
}

// IsTalker returns true if the entity implements a talker.
func (e *Entity) IsTalker() bool {
	return e.Common.TalkerCapabilities&protocol.TalkerCapImplemented != 0
}

// IsListener returns true if the entity implements a listener.
func (e *Entity) IsListener() bool {
	return e.Common.ListenerCapabilities&protocol.ListenerCapImplemented != 0
}

// Clone returns a deep copy of the entity.
func (e *Entity) Clone() Entity {
	c := Entity{
		Common:     e.Common.Clone(),
		Interfaces: make(map[protocol.AvbInterfaceIndex]InterfaceInformation, len(e.Interfaces)),
	}
	for idx, intf := range e.Interfaces {
		c.Interfaces[idx] = intf.Clone()
	}
	return c
}

// Clone returns a deep copy of the common information.
func (c CommonInformation) Clone() CommonInformation {
	c.IdentifyControlIndex = clonePtr(c.IdentifyControlIndex)
	c.AssociationID = clonePtr(c.AssociationID)
	return c
}

// Clone returns a deep copy of the interface information.
func (i InterfaceInformation) Clone() InterfaceInformation {
	i.GptpGrandmasterID = clonePtr(i.GptpGrandmasterID)
	i.GptpDomainNumber = clonePtr(i.GptpDomainNumber)
	return i
}

// Ptr returns a pointer to a copy of v.
func Ptr[T any](v T) *T {
	return &v
}

// EqualPtr reports whether a and b are both nil or point to equal values.
func EqualPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
