package statemachine

import (
	"time"

	"github.com/avbridge/avdecc-go/pkg/protocol"
)

// AECP command timeouts (IEEE 1722.1-2013 Clause 9.2.1).
const (
	AecpAemCommandTimeout = 250 * time.Millisecond
	AecpAaCommandTimeout  = 250 * time.Millisecond
)

// ACMP command timeouts (IEEE 1722.1-2013 Clause 8.2.2).
const (
	AcmpConnectTxCommandTimeout       = 2000 * time.Millisecond
	AcmpDisconnectTxCommandTimeout    = 200 * time.Millisecond
	AcmpGetTxStateCommandTimeout      = 200 * time.Millisecond
	AcmpConnectRxCommandTimeout       = 4500 * time.Millisecond
	AcmpDisconnectRxCommandTimeout    = 500 * time.Millisecond
	AcmpGetRxStateCommandTimeout      = 200 * time.Millisecond
	AcmpGetTxConnectionCommandTimeout = 200 * time.Millisecond
)

// DefaultCommandTimeout applies to message types without a table entry.
const DefaultCommandTimeout = 250 * time.Millisecond

var aecpCommandTimeouts = map[protocol.AecpMessageType]time.Duration{
	protocol.AecpAemCommand:       AecpAemCommandTimeout,
	protocol.AecpAddressAccessCmd: AecpAaCommandTimeout,
}

var acmpCommandTimeouts = map[protocol.AcmpMessageType]time.Duration{
	protocol.AcmpConnectTxCommand:       AcmpConnectTxCommandTimeout,
	protocol.AcmpDisconnectTxCommand:    AcmpDisconnectTxCommandTimeout,
	protocol.AcmpGetTxStateCommand:      AcmpGetTxStateCommandTimeout,
	protocol.AcmpConnectRxCommand:       AcmpConnectRxCommandTimeout,
	protocol.AcmpDisconnectRxCommand:    AcmpDisconnectRxCommandTimeout,
	protocol.AcmpGetRxStateCommand:      AcmpGetRxStateCommandTimeout,
	protocol.AcmpGetTxConnectionCommand: AcmpGetTxConnectionCommandTimeout,
}

// aecpCommandTimeout returns the response timeout of an AECP command.
// Vendor Unique commands ask the transport.
func (m *Manager) aecpCommandTimeout(pdu *protocol.Aecpdu) time.Duration {
	if pdu.MessageType == protocol.AecpVendorUniqueCmd {
		if d := m.transport.VendorCommandTimeout(pdu.ProtocolIdentifier, pdu); d > 0 {
			return d
		}
		return DefaultCommandTimeout
	}
	d, ok := aecpCommandTimeouts[pdu.MessageType]
	if !m.contract(ok, "no timeout defined for AECP message", "message_type", pdu.MessageType) {
		return DefaultCommandTimeout
	}
	return d
}

// acmpCommandTimeout returns the response timeout of an ACMP command.
func (m *Manager) acmpCommandTimeout(pdu *protocol.Acmpdu) time.Duration {
	d, ok := acmpCommandTimeouts[pdu.MessageType]
	if !m.contract(ok, "no timeout defined for ACMP message", "message_type", pdu.MessageType) {
		return DefaultCommandTimeout
	}
	return d
}
