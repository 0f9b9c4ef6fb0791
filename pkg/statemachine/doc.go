// Package statemachine implements the AVDECC protocol engine: discovery
// and liveness tracking of remote entities (ADP), periodic advertising of
// local entities (ADP), and reliable command/response exchange for AECP
// and ACMP.
//
// A Manager owns the three state machines and a single re-entrant lock.
// Transports feed decoded frames into ProcessAdp, ProcessAecp and
// ProcessAcmp; a background task started with Start drives timeouts,
// advertising and automatic discovery through Tick.
//
// # Command pipeline
//
// Commands are queued per destination (entity ID for AECP, MAC address for
// ACMP) and admitted while the destination has fewer than its window of
// commands in flight and its minimum send interval has elapsed. A command
// that gets no response before its deadline is sent once more; a second
// expiry completes it with ErrTimeout. Every result handler is called
// exactly once.
//
// # Re-entrancy
//
// Delegates and result handlers are called with the Manager lock held, from
// the goroutine that holds it. They may call back into the Manager (for
// instance to submit a follow-up command) but must not block on another
// goroutine that needs the lock.
package statemachine
