// Package protocol defines the decoded frame types of the IEEE 1722.1
// AVDECC sub-protocols handled by the state machines.
//
// Byte-level encoding of the IEEE frames is done by the transport layer;
// the types here are the decoded view it hands over.
//
// # Sub-protocols
//
//   - ADP: advertisement and discovery (ENTITY_AVAILABLE, ENTITY_DEPARTING,
//     ENTITY_DISCOVER)
//   - AECP: enumeration and control commands/responses, addressed by
//     entity ID (AEM, Address Access and Vendor Unique variants)
//   - ACMP: stream connection management commands/responses, addressed
//     by MAC address
//
// # Commands and Responses
//
// For both AECP and ACMP, odd message type values are responses and the
// response to a command always has the command's message type + 1.
//
// # CBOR Integer Keys
//
// Frame structs carry integer CBOR keys so tunnelling transports can
// encode them compactly.
package protocol
