package endstation

import (
	"github.com/avbridge/avdecc-go/pkg/protocol"
)

// OnAecpCommand answers commands addressed to a hosted entity. Only
// ENTITY_AVAILABLE is implemented; every other command gets
// NOT_IMPLEMENTED.
func (es *EndStation) OnAecpCommand(pdu *protocol.Aecpdu) {
	if es.config.DisableResponder {
		return
	}
	status := protocol.AemStatusNotImplemented
	if pdu.MessageType == protocol.AecpAemCommand && pdu.CommandType == protocol.AemEntityAvailable {
		status = protocol.AemStatusSuccess
	}
	resp := pdu.MakeResponse(status)
	resp.SrcAddress = es.iface.MacAddress()
	if err := es.manager.SendAecpResponse(resp); err != nil {
		es.logger.Debug("aecp response failed", "entity_id", pdu.TargetEntityID, "error", err)
	}
}

// OnAcmpCommand answers commands whose talker or listener is hosted here.
// State queries succeed; connection management is not supported.
func (es *EndStation) OnAcmpCommand(pdu *protocol.Acmpdu) {
	if es.config.DisableResponder || !es.hostsAcmpTarget(pdu) {
		return
	}
	status := protocol.AcmpStatusNotSupported
	switch pdu.MessageType {
	case protocol.AcmpGetTxStateCommand, protocol.AcmpGetRxStateCommand:
		status = protocol.AcmpStatusSuccess
	}
	resp := pdu.MakeResponse(es.iface.MacAddress(), status)
	if err := es.manager.SendAcmpResponse(resp); err != nil {
		es.logger.Debug("acmp response failed", "message_type", pdu.MessageType, "error", err)
	}
}

// OnAcmpResponse surfaces ACMP responses seen on the network.
func (es *EndStation) OnAcmpResponse(pdu *protocol.Acmpdu) {
	es.emit(Event{Type: EventAcmpResponse, EntityID: pdu.ListenerEntityID, Acmp: pdu})
}

// hostsAcmpTarget reports whether the talker (for TX commands) or listener
// (for RX commands) of pdu is a hosted entity with that role.
func (es *EndStation) hostsAcmpTarget(pdu *protocol.Acmpdu) bool {
	switch pdu.MessageType {
	case protocol.AcmpConnectTxCommand, protocol.AcmpDisconnectTxCommand,
		protocol.AcmpGetTxStateCommand, protocol.AcmpGetTxConnectionCommand:
		e, ok := es.LocalEntity(pdu.TalkerEntityID)
		return ok && e.CommonInformation().TalkerCapabilities&protocol.TalkerCapImplemented != 0
	case protocol.AcmpConnectRxCommand, protocol.AcmpDisconnectRxCommand, protocol.AcmpGetRxStateCommand:
		e, ok := es.LocalEntity(pdu.ListenerEntityID)
		return ok && e.CommonInformation().ListenerCapabilities&protocol.ListenerCapImplemented != 0
	default:
		return false
	}
}
