package transport

import (
	"context"

	"github.com/avbridge/avdecc-go/pkg/protocol"
	"github.com/avbridge/avdecc-go/pkg/statemachine"
)

// Receiver consumes decoded inbound frames.
// Implemented by statemachine.Manager.
type Receiver interface {
	ProcessAdp(pdu *protocol.Adpdu)
	ProcessAecp(pdu *protocol.Aecpdu)
	ProcessAcmp(pdu *protocol.Acmpdu)
}

// Interface is a network attachment that sends frames for a Manager and
// feeds received frames back into it.
// Implemented by BusInterface and UDPInterface.
type Interface interface {
	statemachine.Transport

	// Run delivers inbound frames to r until ctx is cancelled or the
	// interface is closed. It returns nil on Close.
	Run(ctx context.Context, r Receiver) error

	// Close releases the interface. Sends after Close fail with ErrClosed.
	Close() error
}

// Compile-time interface satisfaction checks.
var (
	_ Receiver  = (*statemachine.Manager)(nil)
	_ Interface = (*BusInterface)(nil)
	_ Interface = (*UDPInterface)(nil)
)
