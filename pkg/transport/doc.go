// Package transport attaches a statemachine.Manager to a network.
//
// Frames are carried as decoded PDUs inside a CBOR Envelope rather than as
// raw IEEE 1722 Ethernet frames, so the engine can run without raw socket
// privileges. Two attachments are provided:
//
//   - Bus: an in-process virtual network. Every BusInterface has its own MAC
//     address; multicast destinations reach every other interface and unicast
//     destinations reach the interface owning the address.
//   - UDPInterface: tunnels envelopes over an IPv4 UDP multicast group so
//     engines in separate processes or hosts can see each other.
//
// # Delivery
//
//	┌────────────────────────────────┐
//	│   ADPDU / AECPDU / ACMPDU      │
//	├────────────────────────────────┤
//	│   CBOR Envelope (sender, kind) │
//	├────────────────────────────────┤
//	│   Bus queue  |  UDP multicast  │
//	└────────────────────────────────┘
//
// Sends never block. A full receive queue drops the frame, which the engine
// tolerates like any lost frame on a real network.
package transport
