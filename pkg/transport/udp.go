package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/ipv4"

	"github.com/avbridge/avdecc-go/pkg/protocol"
)

// UDP tunnel defaults.
const (
	// DefaultGroup is the multicast group envelopes are exchanged on.
	DefaultGroup = "239.255.17.22:17221"

	// DefaultTTL keeps datagrams on the local link.
	DefaultTTL = 1

	// readPollInterval bounds how long Run blocks before checking ctx.
	readPollInterval = 100 * time.Millisecond
)

// UDPConfig configures a UDPInterface.
type UDPConfig struct {
	// Group is the IPv4 multicast group and port (default DefaultGroup).
	Group string

	// InterfaceName selects the network interface to join the group on.
	// Empty uses the system default.
	InterfaceName string

	// MacAddress is the virtual address of this attachment. A zero value
	// derives a locally administered address from the instance ID.
	MacAddress protocol.MacAddress

	// TTL is the multicast TTL (default DefaultTTL).
	TTL int

	// DisableLoopback stops datagrams from reaching other sockets on this
	// host. Leave it unset to run several engines on one host.
	DisableLoopback bool

	// MaxMessageSize bounds encoded envelopes (default DefaultMaxMessageSize).
	MaxMessageSize int

	// Logger is the optional logger for debug output.
	Logger *slog.Logger
}

// UDPInterface tunnels envelopes over an IPv4 UDP multicast group.
type UDPInterface struct {
	cfg    UDPConfig
	logger *slog.Logger

	id    string
	mac   protocol.MacAddress
	group *net.UDPAddr

	recv *net.UDPConn
	send *net.UDPConn
	pc   *ipv4.PacketConn

	closeOnce sync.Once
	closed    atomic.Bool

	vuTimeout atomic.Int64
	received  atomic.Uint64
	invalid   atomic.Uint64
}

// NewUDPInterface joins the multicast group and returns a ready interface.
func NewUDPInterface(cfg UDPConfig) (*UDPInterface, error) {
	if cfg.Group == "" {
		cfg.Group = DefaultGroup
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = DefaultMaxMessageSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	group, err := net.ResolveUDPAddr("udp4", cfg.Group)
	if err != nil {
		return nil, fmt.Errorf("resolve group: %w", err)
	}
	if !group.IP.IsMulticast() {
		return nil, fmt.Errorf("group %s is not a multicast address", group.IP)
	}

	var ifi *net.Interface
	if cfg.InterfaceName != "" {
		ifi, err = net.InterfaceByName(cfg.InterfaceName)
		if err != nil {
			return nil, fmt.Errorf("lookup interface: %w", err)
		}
	}

	id := uuid.New()
	mac := cfg.MacAddress
	if mac.IsZero() {
		mac = macFromInstance(id)
	}
	if mac.IsMulticast() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMac, mac)
	}

	recv, err := net.ListenMulticastUDP("udp4", ifi, group)
	if err != nil {
		return nil, fmt.Errorf("join group: %w", err)
	}
	send, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero})
	if err != nil {
		recv.Close()
		return nil, fmt.Errorf("open send socket: %w", err)
	}

	pc := ipv4.NewPacketConn(send)
	if err := configureMulticast(pc, ifi, cfg); err != nil {
		recv.Close()
		send.Close()
		return nil, err
	}

	u := &UDPInterface{
		cfg:    cfg,
		logger: logger,
		id:     id.String(),
		mac:    mac,
		group:  group,
		recv:   recv,
		send:   send,
		pc:     pc,
	}
	logger.Debug("udp interface joined group", "group", group, "mac", mac, "id", u.id)
	return u, nil
}

func configureMulticast(pc *ipv4.PacketConn, ifi *net.Interface, cfg UDPConfig) error {
	if err := pc.SetMulticastLoopback(!cfg.DisableLoopback); err != nil {
		return fmt.Errorf("set multicast loopback: %w", err)
	}
	if err := pc.SetMulticastTTL(cfg.TTL); err != nil {
		return fmt.Errorf("set multicast ttl: %w", err)
	}
	if ifi != nil {
		if err := pc.SetMulticastInterface(ifi); err != nil {
			return fmt.Errorf("set multicast interface: %w", err)
		}
	}
	return nil
}

// macFromInstance builds a unicast, locally administered address.
func macFromInstance(id uuid.UUID) protocol.MacAddress {
	var mac protocol.MacAddress
	copy(mac[:], id[10:16])
	mac[0] = (mac[0] | 0x02) &^ 0x01
	return mac
}

// MacAddress returns the virtual address of the interface.
func (u *UDPInterface) MacAddress() protocol.MacAddress {
	return u.mac
}

// ID returns the instance ID stamped on sent envelopes.
func (u *UDPInterface) ID() string {
	return u.id
}

// Group returns the multicast group address.
func (u *UDPInterface) Group() *net.UDPAddr {
	return u.group
}

// Stats returns the number of accepted and undecodable datagrams.
func (u *UDPInterface) Stats() (received, invalid uint64) {
	return u.received.Load(), u.invalid.Load()
}

// SendAdpMessage implements statemachine.Transport.
func (u *UDPInterface) SendAdpMessage(pdu *protocol.Adpdu) error {
	return u.write(&Envelope{Kind: KindAdp, Adp: pdu})
}

// SendAecpMessage implements statemachine.Transport.
func (u *UDPInterface) SendAecpMessage(pdu *protocol.Aecpdu) error {
	return u.write(&Envelope{Kind: KindAecp, Aecp: pdu})
}

// SendAcmpMessage implements statemachine.Transport.
func (u *UDPInterface) SendAcmpMessage(pdu *protocol.Acmpdu) error {
	return u.write(&Envelope{Kind: KindAcmp, Acmp: pdu})
}

func (u *UDPInterface) write(env *Envelope) error {
	if u.closed.Load() {
		return ErrClosed
	}
	env.Sender = u.id
	data, err := EncodeEnvelope(env, u.cfg.MaxMessageSize)
	if err != nil {
		return err
	}
	if _, err := u.send.WriteToUDP(data, u.group); err != nil {
		return fmt.Errorf("write datagram: %w", err)
	}
	return nil
}

// SetVendorCommandTimeout sets the response timeout reported for Vendor
// Unique commands. Zero lets the engine use its default.
func (u *UDPInterface) SetVendorCommandTimeout(d time.Duration) {
	u.vuTimeout.Store(int64(d))
}

// VendorCommandTimeout implements statemachine.Transport.
func (u *UDPInterface) VendorCommandTimeout(protocol.VuProtocolIdentifier, *protocol.Aecpdu) time.Duration {
	return time.Duration(u.vuTimeout.Load())
}

// Run reads datagrams and delivers the frames addressed to this interface
// until ctx is done or the interface is closed.
func (u *UDPInterface) Run(ctx context.Context, r Receiver) error {
	buf := make([]byte, u.cfg.MaxMessageSize+1)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := u.recv.SetReadDeadline(time.Now().Add(readPollInterval)); err != nil {
			if u.closed.Load() {
				return nil
			}
			return fmt.Errorf("set read deadline: %w", err)
		}
		n, src, err := u.recv.ReadFromUDP(buf)
		if err != nil {
			if u.closed.Load() {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return fmt.Errorf("read datagram: %w", err)
		}

		env, err := DecodeEnvelope(buf[:n], u.cfg.MaxMessageSize)
		if err != nil {
			u.invalid.Add(1)
			u.logger.Debug("dropping undecodable datagram", "from", src, "size", n, "error", err)
			continue
		}
		if !u.accepts(env) {
			continue
		}
		u.received.Add(1)
		env.dispatch(r)
	}
}

// accepts drops looped-back multicast and unicast for other addresses.
func (u *UDPInterface) accepts(env *Envelope) bool {
	dest := env.DestAddress()
	if dest.IsMulticast() {
		return env.Sender != u.id
	}
	return dest == u.mac
}

// Close leaves the group and closes both sockets. It is safe to call more
// than once.
func (u *UDPInterface) Close() error {
	var err error
	u.closeOnce.Do(func() {
		u.closed.Store(true)
		err = errors.Join(u.recv.Close(), u.send.Close())
		u.logger.Debug("udp interface closed", "mac", u.mac, "id", u.id)
	})
	return err
}
