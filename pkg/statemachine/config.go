package statemachine

import (
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/avbridge/avdecc-go/pkg/log"
	"github.com/avbridge/avdecc-go/pkg/protocol"
)

// Default engine parameters.
const (
	DefaultTickInterval = 5 * time.Millisecond

	DefaultAecpWindow       = 10
	DefaultAecpSendInterval = 1 * time.Millisecond

	DefaultAcmpMulticastWindow       = 10
	DefaultAcmpMulticastSendInterval = 1 * time.Millisecond
	DefaultAcmpUnicastWindow         = 10
	DefaultAcmpUnicastSendInterval   = 1 * time.Millisecond
)

// Config configures a Manager.
type Config struct {
	// Transport sends frames. Required.
	Transport Transport

	// DiscoveryDelegate receives entity notifications (optional).
	DiscoveryDelegate DiscoveryDelegate

	// CommandDelegate receives unsolicited AECP notifications and command
	// statistics (optional).
	CommandDelegate CommandDelegate

	// InboundDelegate receives commands addressed to local entities
	// (optional).
	InboundDelegate InboundDelegate

	// Clock drives every deadline. Defaults to the real clock.
	Clock clockwork.Clock

	// Rand is the source of advertising jitter. Defaults to a randomly
	// seeded PCG.
	Rand *rand.Rand

	// TickInterval is the cadence of the background task (default 5ms).
	TickInterval time.Duration

	// DiscoveryDelay is the automatic ENTITY_DISCOVER period. Zero disables
	// automatic discovery.
	DiscoveryDelay time.Duration

	// Command configures the command pipeline windows.
	Command CommandConfig

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger

	// ProtocolLogger captures frames and engine events (optional).
	ProtocolLogger log.Logger
}

// Window limits commands toward one destination.
type Window struct {
	// MaxInflight is the maximum number of unanswered commands.
	MaxInflight int

	// SendInterval is the minimum time between two sends. A command is
	// admitted only once strictly more than SendInterval has passed.
	SendInterval time.Duration
}

// CommandConfig configures per-destination admission.
type CommandConfig struct {
	// Aecp applies to every AECP destination entity.
	Aecp Window

	// AcmpMulticast applies to ACMP commands sent to the ACMP multicast
	// address, AcmpUnicast to any other destination address.
	AcmpMulticast Window
	AcmpUnicast   Window

	// AecpOverrides and AcmpOverrides replace the defaults for specific
	// destinations.
	AecpOverrides map[protocol.UniqueIdentifier]Window
	AcmpOverrides map[protocol.MacAddress]Window
}

// DefaultConfig returns a Config with sensible defaults. Transport must
// still be set.
func DefaultConfig() Config {
	return Config{
		TickInterval: DefaultTickInterval,
		Command:      DefaultCommandConfig(),
	}
}

// DefaultCommandConfig returns the default command windows.
func DefaultCommandConfig() CommandConfig {
	return CommandConfig{
		Aecp:          Window{MaxInflight: DefaultAecpWindow, SendInterval: DefaultAecpSendInterval},
		AcmpMulticast: Window{MaxInflight: DefaultAcmpMulticastWindow, SendInterval: DefaultAcmpMulticastSendInterval},
		AcmpUnicast:   Window{MaxInflight: DefaultAcmpUnicastWindow, SendInterval: DefaultAcmpUnicastSendInterval},
	}
}

// Validate checks the config and fills unset fields with defaults.
func (c *Config) Validate() error {
	if c.Transport == nil {
		return ErrInvalidConfig
	}
	if c.TickInterval < 0 || c.DiscoveryDelay < 0 {
		return ErrInvalidConfig
	}
	if c.Command.Aecp.SendInterval < 0 || c.Command.AcmpMulticast.SendInterval < 0 || c.Command.AcmpUnicast.SendInterval < 0 {
		return ErrInvalidConfig
	}
	if c.TickInterval == 0 {
		c.TickInterval = DefaultTickInterval
	}
	def := DefaultCommandConfig()
	c.Command.Aecp = c.Command.Aecp.orDefault(def.Aecp)
	c.Command.AcmpMulticast = c.Command.AcmpMulticast.orDefault(def.AcmpMulticast)
	c.Command.AcmpUnicast = c.Command.AcmpUnicast.orDefault(def.AcmpUnicast)
	for _, w := range c.Command.AecpOverrides {
		if w.MaxInflight <= 0 || w.SendInterval < 0 {
			return ErrInvalidConfig
		}
	}
	for _, w := range c.Command.AcmpOverrides {
		if w.MaxInflight <= 0 || w.SendInterval < 0 {
			return ErrInvalidConfig
		}
	}
	return nil
}

// orDefault replaces an unset window with def. A set window with no
// MaxInflight takes def's.
func (w Window) orDefault(def Window) Window {
	if w == (Window{}) {
		return def
	}
	if w.MaxInflight <= 0 {
		w.MaxInflight = def.MaxInflight
	}
	return w
}

func (c *CommandConfig) aecpWindow(target protocol.UniqueIdentifier) Window {
	if w, ok := c.AecpOverrides[target]; ok {
		return w
	}
	return c.Aecp
}

func (c *CommandConfig) acmpWindow(dest protocol.MacAddress) Window {
	if w, ok := c.AcmpOverrides[dest]; ok {
		return w
	}
	if dest == protocol.MulticastMacAddress {
		return c.AcmpMulticast
	}
	return c.AcmpUnicast
}
