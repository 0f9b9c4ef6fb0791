package entity

import (
	"errors"
	"sync"

	"github.com/avbridge/avdecc-go/pkg/protocol"
	"github.com/avbridge/avdecc-go/pkg/reentrant"
)

// Valid time bounds for ENTITY_AVAILABLE, in 2 second units.
const (
	MinValidTime uint8 = 1
	MaxValidTime uint8 = 31

	// DefaultValidTime gives a 62 second liveness window.
	DefaultValidTime uint8 = 31
)

// Errors returned by NewLocal.
var (
	ErrInvalidEntityID    = errors.New("entity: invalid entity id")
	ErrNoInterface        = errors.New("entity: at least one interface is required")
	ErrUnknownInterface   = errors.New("entity: unknown interface index")
	ErrGptpDomainRequired = errors.New("entity: gptp domain number required with grandmaster id")
)

// LocalEntity is an entity hosted by this process.
//
// The lock serializes changes to discovery fields against construction of
// ENTITY_AVAILABLE frames. It is re-entrant so that accessors may be
// called while it is held.
type LocalEntity interface {
	sync.Locker

	EntityID() protocol.UniqueIdentifier
	CommonInformation() CommonInformation
	InterfacesInformation() map[protocol.AvbInterfaceIndex]InterfaceInformation

	// NextAvailableIndex returns the interface's current available index
	// and increments it. ok is false for an unknown interface.
	NextAvailableIndex(idx protocol.AvbInterfaceIndex) (index uint32, ok bool)
}

// Local is the standard LocalEntity implementation.
type Local struct {
	mu     reentrant.Mutex
	entity Entity
}

var _ LocalEntity = (*Local)(nil)

// NewLocal creates a local entity. Valid times are clamped to 1-31 and a
// zero valid time is replaced by DefaultValidTime.
func NewLocal(common CommonInformation, interfaces map[protocol.AvbInterfaceIndex]InterfaceInformation) (*Local, error) {
	if !common.EntityID.IsValid() {
		return nil, ErrInvalidEntityID
	}
	if len(interfaces) == 0 {
		return nil, ErrNoInterface
	}
	e := Entity{
		Common:     common.Clone(),
		Interfaces: make(map[protocol.AvbInterfaceIndex]InterfaceInformation, len(interfaces)),
	}
	for idx, intf := range interfaces {
		if intf.GptpGrandmasterID != nil && intf.GptpDomainNumber == nil {
			return nil, ErrGptpDomainRequired
		}
		intf = intf.Clone()
		if intf.ValidTime == 0 {
			intf.ValidTime = DefaultValidTime
		}
		intf.ValidTime = clampValidTime(intf.ValidTime)
		e.Interfaces[idx] = intf
	}
	return &Local{entity: e}, nil
}

// Lock acquires the entity lock.
func (l *Local) Lock() { l.mu.Lock() }

// Unlock releases the entity lock.
func (l *Local) Unlock() { l.mu.Unlock() }

// EntityID returns the entity's unique identifier.
func (l *Local) EntityID() protocol.UniqueIdentifier {
	return l.entity.Common.EntityID
}

// CommonInformation returns a copy of the common information.
func (l *Local) CommonInformation() CommonInformation {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entity.Common.Clone()
}

// InterfacesInformation returns a copy of all interface information.
func (l *Local) InterfacesInformation() map[protocol.AvbInterfaceIndex]InterfaceInformation {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entity.Clone().Interfaces
}

// Snapshot returns a deep copy of the entity.
func (l *Local) Snapshot() Entity {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entity.Clone()
}

// NextAvailableIndex implements LocalEntity.
func (l *Local) NextAvailableIndex(idx protocol.AvbInterfaceIndex) (uint32, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	intf, ok := l.entity.Interfaces[idx]
	if !ok {
		return 0, false
	}
	current := intf.AvailableIndex
	intf.AvailableIndex++
	l.entity.Interfaces[idx] = intf
	return current, true
}

// SetEntityCapabilities replaces the entity capabilities.
func (l *Local) SetEntityCapabilities(caps protocol.EntityCapabilities) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entity.Common.EntityCapabilities = caps
}

// SetAssociationID sets or, with nil, clears the association ID.
func (l *Local) SetAssociationID(id *protocol.UniqueIdentifier) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entity.Common.AssociationID = clonePtr(id)
}

// SetValidTime changes an interface's valid time, clamped to 1-31.
func (l *Local) SetValidTime(idx protocol.AvbInterfaceIndex, validTime uint8) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	intf, ok := l.entity.Interfaces[idx]
	if !ok {
		return ErrUnknownInterface
	}
	intf.ValidTime = clampValidTime(validTime)
	l.entity.Interfaces[idx] = intf
	return nil
}

// SetGptp changes an interface's gPTP grandmaster and domain. A nil
// grandmaster clears both.
func (l *Local) SetGptp(idx protocol.AvbInterfaceIndex, grandmasterID *protocol.UniqueIdentifier, domainNumber uint8) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	intf, ok := l.entity.Interfaces[idx]
	if !ok {
		return ErrUnknownInterface
	}
	if grandmasterID == nil {
		intf.GptpGrandmasterID = nil
		intf.GptpDomainNumber = nil
	} else {
		intf.GptpGrandmasterID = clonePtr(grandmasterID)
		intf.GptpDomainNumber = Ptr(domainNumber)
	}
	l.entity.Interfaces[idx] = intf
	return nil
}

func clampValidTime(v uint8) uint8 {
	return min(MaxValidTime, max(MinValidTime, v))
}
