package protocol

import "strings"

// EntityCapabilities is the ADP entity_capabilities bitfield.
type EntityCapabilities uint32

// Entity capability flags (IEEE 1722.1-2013 Table 6.2).
const (
	EntityCapEfuMode                       EntityCapabilities = 0x00000001
	EntityCapAddressAccessSupported        EntityCapabilities = 0x00000002
	EntityCapGatewayEntity                 EntityCapabilities = 0x00000004
	EntityCapAemSupported                  EntityCapabilities = 0x00000008
	EntityCapLegacyAvc                     EntityCapabilities = 0x00000010
	EntityCapAssociationIDSupported        EntityCapabilities = 0x00000020
	EntityCapAssociationIDValid            EntityCapabilities = 0x00000040
	EntityCapVendorUniqueSupported         EntityCapabilities = 0x00000080
	EntityCapClassASupported               EntityCapabilities = 0x00000100
	EntityCapClassBSupported               EntityCapabilities = 0x00000200
	EntityCapGptpSupported                 EntityCapabilities = 0x00000400
	EntityCapAemAuthenticationSupported    EntityCapabilities = 0x00000800
	EntityCapAemAuthenticationRequired     EntityCapabilities = 0x00001000
	EntityCapAemPersistentAcquireSupported EntityCapabilities = 0x00002000
	EntityCapAemIdentifyControlIndexValid  EntityCapabilities = 0x00004000
	EntityCapAemInterfaceIndexValid        EntityCapabilities = 0x00008000
	EntityCapGeneralControllerIgnore       EntityCapabilities = 0x00010000
	EntityCapEntityNotReady                EntityCapabilities = 0x00020000
)

var entityCapNames = []struct {
	flag EntityCapabilities
	name string
}{
	{EntityCapEfuMode, "EFU_MODE"},
	{EntityCapAddressAccessSupported, "ADDRESS_ACCESS_SUPPORTED"},
	{EntityCapGatewayEntity, "GATEWAY_ENTITY"},
	{EntityCapAemSupported, "AEM_SUPPORTED"},
	{EntityCapLegacyAvc, "LEGACY_AVC"},
	{EntityCapAssociationIDSupported, "ASSOCIATION_ID_SUPPORTED"},
	{EntityCapAssociationIDValid, "ASSOCIATION_ID_VALID"},
	{EntityCapVendorUniqueSupported, "VENDOR_UNIQUE_SUPPORTED"},
	{EntityCapClassASupported, "CLASS_A_SUPPORTED"},
	{EntityCapClassBSupported, "CLASS_B_SUPPORTED"},
	{EntityCapGptpSupported, "GPTP_SUPPORTED"},
	{EntityCapAemAuthenticationSupported, "AEM_AUTHENTICATION_SUPPORTED"},
	{EntityCapAemAuthenticationRequired, "AEM_AUTHENTICATION_REQUIRED"},
	{EntityCapAemPersistentAcquireSupported, "AEM_PERSISTENT_ACQUIRE_SUPPORTED"},
	{EntityCapAemIdentifyControlIndexValid, "AEM_IDENTIFY_CONTROL_INDEX_VALID"},
	{EntityCapAemInterfaceIndexValid, "AEM_INTERFACE_INDEX_VALID"},
	{EntityCapGeneralControllerIgnore, "GENERAL_CONTROLLER_IGNORE"},
	{EntityCapEntityNotReady, "ENTITY_NOT_READY"},
}

// Has returns true if all bits of flag are set.
func (c EntityCapabilities) Has(flag EntityCapabilities) bool {
	return c&flag == flag
}

// With returns c with flag set.
func (c EntityCapabilities) With(flag EntityCapabilities) EntityCapabilities {
	return c | flag
}

// Without returns c with flag cleared.
func (c EntityCapabilities) Without(flag EntityCapabilities) EntityCapabilities {
	return c &^ flag
}

// String returns the set flags joined with '|'.
func (c EntityCapabilities) String() string {
	if c == 0 {
		return "NONE"
	}
	var names []string
	for _, n := range entityCapNames {
		if c.Has(n.flag) {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, "|")
}

// TalkerCapabilities is the ADP talker_capabilities bitfield.
type TalkerCapabilities uint16

// Talker capability flags.
const (
	TalkerCapImplemented      TalkerCapabilities = 0x0001
	TalkerCapOtherSource      TalkerCapabilities = 0x0200
	TalkerCapControlSource    TalkerCapabilities = 0x0400
	TalkerCapMediaClockSource TalkerCapabilities = 0x0800
	TalkerCapSmpteSource      TalkerCapabilities = 0x1000
	TalkerCapMidiSource       TalkerCapabilities = 0x2000
	TalkerCapAudioSource      TalkerCapabilities = 0x4000
	TalkerCapVideoSource      TalkerCapabilities = 0x8000
)

// ListenerCapabilities is the ADP listener_capabilities bitfield.
type ListenerCapabilities uint16

// Listener capability flags.
const (
	ListenerCapImplemented    ListenerCapabilities = 0x0001
	ListenerCapOtherSink      ListenerCapabilities = 0x0200
	ListenerCapControlSink    ListenerCapabilities = 0x0400
	ListenerCapMediaClockSink ListenerCapabilities = 0x0800
	ListenerCapSmpteSink      ListenerCapabilities = 0x1000
	ListenerCapMidiSink       ListenerCapabilities = 0x2000
	ListenerCapAudioSink      ListenerCapabilities = 0x4000
	ListenerCapVideoSink      ListenerCapabilities = 0x8000
)

// ControllerCapabilities is the ADP controller_capabilities bitfield.
type ControllerCapabilities uint32

// ControllerCapImplemented marks an entity that implements a controller.
const ControllerCapImplemented ControllerCapabilities = 0x00000001
