package statemachine

import (
	"time"

	"github.com/avbridge/avdecc-go/pkg/entity"
	"github.com/avbridge/avdecc-go/pkg/protocol"
)

// Transport sends frames on behalf of the Manager. Send methods must not
// block on network I/O; a returned error completes the affected command
// immediately.
type Transport interface {
	// MacAddress returns the address of the network interface in use.
	MacAddress() protocol.MacAddress

	SendAdpMessage(pdu *protocol.Adpdu) error
	SendAecpMessage(pdu *protocol.Aecpdu) error
	SendAcmpMessage(pdu *protocol.Acmpdu) error

	// VendorCommandTimeout returns the response timeout of a Vendor Unique
	// command.
	VendorCommandTimeout(protocolID protocol.VuProtocolIdentifier, pdu *protocol.Aecpdu) time.Duration
}

// VendorUniqueHandler is implemented by transports that understand
// unsolicited Vendor Unique responses. Such responses bypass command
// correlation.
type VendorUniqueHandler interface {
	IsVuUnsolicitedResponse(protocolID protocol.VuProtocolIdentifier, pdu *protocol.Aecpdu) bool
	OnVuUnsolicitedResponse(protocolID protocol.VuProtocolIdentifier, pdu *protocol.Aecpdu)
}

// DiscoveryDelegate receives entity online/offline/updated notifications.
// Remote entities are passed as snapshots the delegate may keep.
type DiscoveryDelegate interface {
	OnLocalEntityOnline(e entity.LocalEntity)
	OnLocalEntityOffline(entityID protocol.UniqueIdentifier)
	OnLocalEntityUpdated(e entity.LocalEntity)
	OnRemoteEntityOnline(e entity.Entity)
	OnRemoteEntityOffline(entityID protocol.UniqueIdentifier)
	OnRemoteEntityUpdated(e entity.Entity)
}

// CommandDelegate receives AECP notifications that are not tied to a
// command, and command statistics.
type CommandDelegate interface {
	OnAecpAemUnsolicitedResponse(pdu *protocol.Aecpdu)
	OnAecpAemIdentifyNotification(pdu *protocol.Aecpdu)

	OnAecpRetry(entityID protocol.UniqueIdentifier)
	OnAecpTimeout(entityID protocol.UniqueIdentifier)
	OnAecpUnexpectedResponse(entityID protocol.UniqueIdentifier)
	OnAecpResponseTime(entityID protocol.UniqueIdentifier, responseTime time.Duration)
}

// InboundDelegate receives commands addressed to local entities, and ACMP
// responses after correlation.
type InboundDelegate interface {
	OnAecpCommand(pdu *protocol.Aecpdu)
	OnAcmpCommand(pdu *protocol.Acmpdu)
	OnAcmpResponse(pdu *protocol.Acmpdu)
}

// AecpResultHandler receives the response to an AECP command, or an error.
type AecpResultHandler func(response *protocol.Aecpdu, err error)

// AcmpResultHandler receives the response to an ACMP command, or an error.
type AcmpResultHandler func(response *protocol.Acmpdu, err error)

// NoopDiscoveryDelegate ignores all notifications. Embed it to implement
// part of DiscoveryDelegate.
type NoopDiscoveryDelegate struct{}

func (NoopDiscoveryDelegate) OnLocalEntityOnline(entity.LocalEntity)          {}
func (NoopDiscoveryDelegate) OnLocalEntityOffline(protocol.UniqueIdentifier)  {}
func (NoopDiscoveryDelegate) OnLocalEntityUpdated(entity.LocalEntity)         {}
func (NoopDiscoveryDelegate) OnRemoteEntityOnline(entity.Entity)              {}
func (NoopDiscoveryDelegate) OnRemoteEntityOffline(protocol.UniqueIdentifier) {}
func (NoopDiscoveryDelegate) OnRemoteEntityUpdated(entity.Entity)             {}

// NoopCommandDelegate ignores all notifications. Embed it to implement
// part of CommandDelegate.
type NoopCommandDelegate struct{}

func (NoopCommandDelegate) OnAecpAemUnsolicitedResponse(*protocol.Aecpdu)               {}
func (NoopCommandDelegate) OnAecpAemIdentifyNotification(*protocol.Aecpdu)              {}
func (NoopCommandDelegate) OnAecpRetry(protocol.UniqueIdentifier)                       {}
func (NoopCommandDelegate) OnAecpTimeout(protocol.UniqueIdentifier)                     {}
func (NoopCommandDelegate) OnAecpUnexpectedResponse(protocol.UniqueIdentifier)          {}
func (NoopCommandDelegate) OnAecpResponseTime(protocol.UniqueIdentifier, time.Duration) {}

// NoopInboundDelegate ignores all inbound commands.
type NoopInboundDelegate struct{}

func (NoopInboundDelegate) OnAecpCommand(*protocol.Aecpdu)  {}
func (NoopInboundDelegate) OnAcmpCommand(*protocol.Acmpdu)  {}
func (NoopInboundDelegate) OnAcmpResponse(*protocol.Acmpdu) {}

var (
	_ DiscoveryDelegate = NoopDiscoveryDelegate{}
	_ CommandDelegate   = NoopCommandDelegate{}
	_ InboundDelegate   = NoopInboundDelegate{}
)
