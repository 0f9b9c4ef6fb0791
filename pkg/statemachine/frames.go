package statemachine

import (
	"github.com/avbridge/avdecc-go/pkg/entity"
	"github.com/avbridge/avdecc-go/pkg/protocol"
)

// makeDiscoveryMessage builds an ENTITY_DISCOVER frame. A null target asks
// every entity to announce itself.
func makeDiscoveryMessage(src protocol.MacAddress, target protocol.UniqueIdentifier) *protocol.Adpdu {
	return &protocol.Adpdu{
		SrcAddress:  src,
		DestAddress: protocol.MulticastMacAddress,
		MessageType: protocol.AdpEntityDiscover,
		EntityID:    target,
	}
}

// makeEntityAvailableMessage builds an ENTITY_AVAILABLE frame for one
// interface of a local entity and consumes its available index. The caller
// holds the entity lock.
func makeEntityAvailableMessage(e entity.LocalEntity, idx protocol.AvbInterfaceIndex) (*protocol.Adpdu, bool) {
	intf, ok := e.InterfacesInformation()[idx]
	if !ok {
		return nil, false
	}
	common := e.CommonInformation()
	caps := common.EntityCapabilities

	pdu := &protocol.Adpdu{
		SrcAddress:             intf.MacAddress,
		DestAddress:            protocol.MulticastMacAddress,
		MessageType:            protocol.AdpEntityAvailable,
		ValidTime:              intf.ValidTime,
		EntityID:               common.EntityID,
		EntityModelID:          common.EntityModelID,
		TalkerStreamSources:    common.TalkerStreamSources,
		TalkerCapabilities:     common.TalkerCapabilities,
		ListenerStreamSinks:    common.ListenerStreamSinks,
		ListenerCapabilities:   common.ListenerCapabilities,
		ControllerCapabilities: common.ControllerCapabilities,
	}

	if common.IdentifyControlIndex != nil {
		caps = caps.With(protocol.EntityCapAemIdentifyControlIndexValid)
		pdu.IdentifyControlIndex = *common.IdentifyControlIndex
	} else {
		caps = caps.Without(protocol.EntityCapAemIdentifyControlIndexValid)
	}

	if idx != protocol.GlobalAvbInterfaceIndex {
		caps = caps.With(protocol.EntityCapAemInterfaceIndexValid)
		pdu.InterfaceIndex = idx
	} else {
		caps = caps.Without(protocol.EntityCapAemInterfaceIndexValid)
	}

	if common.AssociationID != nil {
		caps = caps.With(protocol.EntityCapAssociationIDValid)
		pdu.AssociationID = *common.AssociationID
	} else {
		caps = caps.Without(protocol.EntityCapAssociationIDValid)
	}

	if intf.GptpGrandmasterID != nil {
		caps = caps.With(protocol.EntityCapGptpSupported)
		pdu.GptpGrandmasterID = *intf.GptpGrandmasterID
		if intf.GptpDomainNumber != nil {
			pdu.GptpDomainNumber = *intf.GptpDomainNumber
		}
	} else {
		caps = caps.Without(protocol.EntityCapGptpSupported)
	}

	pdu.EntityCapabilities = caps
	pdu.AvailableIndex, _ = e.NextAvailableIndex(idx)
	return pdu, true
}

// makeEntityDepartingMessage builds an ENTITY_DEPARTING frame.
func makeEntityDepartingMessage(e entity.LocalEntity, idx protocol.AvbInterfaceIndex) (*protocol.Adpdu, bool) {
	intf, ok := e.InterfacesInformation()[idx]
	if !ok {
		return nil, false
	}
	pdu := &protocol.Adpdu{
		SrcAddress:  intf.MacAddress,
		DestAddress: protocol.MulticastMacAddress,
		MessageType: protocol.AdpEntityDeparting,
		EntityID:    e.EntityID(),
	}
	if idx != protocol.GlobalAvbInterfaceIndex {
		pdu.EntityCapabilities = protocol.EntityCapAemInterfaceIndexValid
		pdu.InterfaceIndex = idx
	}
	return pdu, true
}

// makeEntity reconstructs a single interface entity from an ADP frame.
// Optional fields are only read when their capability bit is set.
func makeEntity(pdu *protocol.Adpdu) (entity.Entity, protocol.AvbInterfaceIndex) {
	caps := pdu.EntityCapabilities
	common := entity.CommonInformation{
		EntityID:               pdu.EntityID,
		EntityModelID:          pdu.EntityModelID,
		EntityCapabilities:     caps,
		TalkerStreamSources:    pdu.TalkerStreamSources,
		TalkerCapabilities:     pdu.TalkerCapabilities,
		ListenerStreamSinks:    pdu.ListenerStreamSinks,
		ListenerCapabilities:   pdu.ListenerCapabilities,
		ControllerCapabilities: pdu.ControllerCapabilities,
	}
	intf := entity.InterfaceInformation{
		MacAddress:     pdu.SrcAddress,
		ValidTime:      pdu.ValidTime,
		AvailableIndex: pdu.AvailableIndex,
	}
	idx := protocol.GlobalAvbInterfaceIndex

	if caps.Has(protocol.EntityCapAemIdentifyControlIndexValid) {
		common.IdentifyControlIndex = entity.Ptr(pdu.IdentifyControlIndex)
	}
	if caps.Has(protocol.EntityCapAssociationIDValid) {
		common.AssociationID = entity.Ptr(pdu.AssociationID)
	}
	if caps.Has(protocol.EntityCapAemInterfaceIndexValid) {
		idx = pdu.InterfaceIndex
	}
	if caps.Has(protocol.EntityCapGptpSupported) {
		intf.GptpGrandmasterID = entity.Ptr(pdu.GptpGrandmasterID)
		intf.GptpDomainNumber = entity.Ptr(pdu.GptpDomainNumber)
	}

	return entity.Entity{
		Common:     common,
		Interfaces: map[protocol.AvbInterfaceIndex]entity.InterfaceInformation{idx: intf},
	}, idx
}
