// Package endstation runs a protocol engine on one network interface.
//
// An EndStation hosts local entities, advertises them, tracks remote
// entities and answers the minimum set of inbound commands a well-behaved
// AVDECC entity must answer:
//
//   - AEM ENTITY_AVAILABLE is acknowledged with SUCCESS; any other AECP
//     command gets NOT_IMPLEMENTED.
//   - ACMP GET_TX_STATE and GET_RX_STATE addressed to a hosted talker or
//     listener succeed; other ACMP commands for a hosted entity get
//     NOT_SUPPORTED. Commands for entities hosted elsewhere are ignored.
//
// Engine notifications are turned into Events delivered to handlers
// registered with OnEvent. SendAecpCommand and SendAcmpCommand wrap the
// engine's asynchronous result handlers in blocking calls.
package endstation
