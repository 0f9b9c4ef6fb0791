package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/avbridge/avdecc-go/pkg/protocol"
)

// DefaultQueueSize is the default receive queue length of a BusInterface.
const DefaultQueueSize = 256

// BusOptions configures a Bus.
type BusOptions struct {
	// QueueSize is the receive queue length of each interface.
	QueueSize int

	// Logger is the optional logger for debug output.
	Logger *slog.Logger

	// OnDrop is called when a frame could not be queued for an interface.
	OnDrop func(to protocol.MacAddress, env *Envelope)
}

// Bus is an in-process virtual network.
//
// A frame sent to a multicast address is delivered to every other
// interface on the bus. A frame sent to a unicast address is delivered to
// the interface owning that address, if any.
type Bus struct {
	opts   BusOptions
	logger *slog.Logger

	mu     sync.RWMutex
	ifaces map[protocol.MacAddress]*BusInterface

	dropped atomic.Uint64
}

// NewBus creates an empty bus.
func NewBus(opts BusOptions) *Bus {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Bus{
		opts:   opts,
		logger: logger,
		ifaces: make(map[protocol.MacAddress]*BusInterface),
	}
}

// NewInterface attaches a new interface with the given address.
func (b *Bus) NewInterface(mac protocol.MacAddress) (*BusInterface, error) {
	if mac.IsZero() || mac.IsMulticast() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMac, mac)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.ifaces[mac]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateMac, mac)
	}
	i := &BusInterface{
		bus:   b,
		mac:   mac,
		id:    uuid.NewString(),
		queue: make(chan *Envelope, b.opts.QueueSize),
		done:  make(chan struct{}),
	}
	b.ifaces[mac] = i
	b.logger.Debug("bus interface attached", "mac", mac, "id", i.id)
	return i, nil
}

// Dropped returns the number of frames dropped on full queues.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// InterfaceCount returns the number of attached interfaces.
func (b *Bus) InterfaceCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.ifaces)
}

func (b *Bus) detach(i *BusInterface) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ifaces[i.mac] == i {
		delete(b.ifaces, i.mac)
		b.logger.Debug("bus interface detached", "mac", i.mac, "id", i.id)
	}
}

// deliver queues a copy of env for every matching interface. It never
// blocks.
func (b *Bus) deliver(env *Envelope) {
	dest := env.DestAddress()

	b.mu.RLock()
	var targets []*BusInterface
	if dest.IsMulticast() {
		targets = make([]*BusInterface, 0, len(b.ifaces))
		for _, i := range b.ifaces {
			if i.id != env.Sender {
				targets = append(targets, i)
			}
		}
	} else if i, ok := b.ifaces[dest]; ok {
		targets = []*BusInterface{i}
	}
	b.mu.RUnlock()

	for _, i := range targets {
		select {
		case i.queue <- env.clone():
		default:
			b.dropped.Add(1)
			b.logger.Debug("bus queue full, frame dropped", "to", i.mac, "kind", env.Kind)
			if b.opts.OnDrop != nil {
				b.opts.OnDrop(i.mac, env)
			}
		}
	}
}

// BusInterface is one attachment to a Bus.
type BusInterface struct {
	bus *Bus
	mac protocol.MacAddress
	id  string

	queue chan *Envelope

	closeOnce sync.Once
	done      chan struct{}

	vuTimeout atomic.Int64
}

// MacAddress returns the address of the interface.
func (i *BusInterface) MacAddress() protocol.MacAddress {
	return i.mac
}

// ID returns the instance ID stamped on sent envelopes.
func (i *BusInterface) ID() string {
	return i.id
}

// SendAdpMessage implements statemachine.Transport.
func (i *BusInterface) SendAdpMessage(pdu *protocol.Adpdu) error {
	return i.send(&Envelope{Kind: KindAdp, Adp: pdu})
}

// SendAecpMessage implements statemachine.Transport.
func (i *BusInterface) SendAecpMessage(pdu *protocol.Aecpdu) error {
	return i.send(&Envelope{Kind: KindAecp, Aecp: pdu})
}

// SendAcmpMessage implements statemachine.Transport.
func (i *BusInterface) SendAcmpMessage(pdu *protocol.Acmpdu) error {
	return i.send(&Envelope{Kind: KindAcmp, Acmp: pdu})
}

func (i *BusInterface) send(env *Envelope) error {
	select {
	case <-i.done:
		return ErrClosed
	default:
	}
	if err := env.validate(); err != nil {
		return err
	}
	env.Sender = i.id
	i.bus.deliver(env)
	return nil
}

// SetVendorCommandTimeout sets the response timeout reported for Vendor
// Unique commands. Zero lets the engine use its default.
func (i *BusInterface) SetVendorCommandTimeout(d time.Duration) {
	i.vuTimeout.Store(int64(d))
}

// VendorCommandTimeout implements statemachine.Transport.
func (i *BusInterface) VendorCommandTimeout(protocol.VuProtocolIdentifier, *protocol.Aecpdu) time.Duration {
	return time.Duration(i.vuTimeout.Load())
}

// Run delivers queued frames to r until ctx is done or the interface is
// closed.
func (i *BusInterface) Run(ctx context.Context, r Receiver) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-i.done:
			return nil
		case env := <-i.queue:
			env.dispatch(r)
		}
	}
}

// Close detaches the interface from the bus. It is safe to call more than
// once.
func (i *BusInterface) Close() error {
	i.closeOnce.Do(func() {
		close(i.done)
		i.bus.detach(i)
	})
	return nil
}
