package endstation

import (
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/avbridge/avdecc-go/pkg/entity"
	"github.com/avbridge/avdecc-go/pkg/log"
	"github.com/avbridge/avdecc-go/pkg/protocol"
	"github.com/avbridge/avdecc-go/pkg/statemachine"
	"github.com/avbridge/avdecc-go/pkg/transport"
)

// End station errors.
var (
	ErrNotStarted     = errors.New("end station not started")
	ErrAlreadyStarted = errors.New("end station already started")
	ErrInvalidConfig  = errors.New("invalid configuration")

	// ErrCalledFromHandler is returned by the blocking command helpers when
	// called from a delegate or result handler, where waiting for the
	// response would deadlock the engine.
	ErrCalledFromHandler = errors.New("blocking call from engine handler")
)

// DefaultDiscoveryDelay is the default automatic ENTITY_DISCOVER period.
const DefaultDiscoveryDelay = 10 * time.Second

// State represents the end station state.
type State uint8

const (
	// StateIdle - created but not started.
	StateIdle State = iota

	// StateRunning - engine and transport running.
	StateRunning

	// StateStopped - stopped; hosted entities were withdrawn.
	StateStopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Config configures an EndStation.
type Config struct {
	// Interface is the network attachment. Required. The end station closes
	// it on Stop.
	Interface transport.Interface

	// TickInterval is the engine's periodic task cadence.
	TickInterval time.Duration

	// DiscoveryDelay is the automatic ENTITY_DISCOVER period. Zero disables
	// automatic discovery.
	DiscoveryDelay time.Duration

	// Command configures the command pipeline windows.
	Command statemachine.CommandConfig

	// Clock drives the engine. Defaults to the real clock.
	Clock clockwork.Clock

	// DisableResponder stops the end station from answering inbound AECP
	// and ACMP commands addressed to its hosted entities.
	DisableResponder bool

	// ProtocolLogger captures frames and engine events (optional).
	ProtocolLogger log.Logger

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults. Interface must
// still be set.
func DefaultConfig() Config {
	return Config{
		TickInterval:   statemachine.DefaultTickInterval,
		DiscoveryDelay: DefaultDiscoveryDelay,
		Command:        statemachine.DefaultCommandConfig(),
	}
}

// Validate checks if the config is valid.
func (c *Config) Validate() error {
	if c.Interface == nil {
		return ErrInvalidConfig
	}
	if c.TickInterval < 0 || c.DiscoveryDelay < 0 {
		return ErrInvalidConfig
	}
	return nil
}

// EventType identifies an end station event.
type EventType uint8

const (
	// EventEntityOnline - a remote entity was discovered.
	EventEntityOnline EventType = iota

	// EventEntityOffline - a remote entity departed or timed out.
	EventEntityOffline

	// EventEntityUpdated - a remote entity's discovery fields changed.
	EventEntityUpdated

	// EventLocalEntityOnline - a hosted entity was added.
	EventLocalEntityOnline

	// EventLocalEntityOffline - a hosted entity was removed.
	EventLocalEntityOffline

	// EventUnsolicitedResponse - an AEM unsolicited notification arrived.
	EventUnsolicitedResponse

	// EventIdentify - an IDENTIFY notification arrived.
	EventIdentify

	// EventAcmpResponse - an ACMP response was seen on the network.
	EventAcmpResponse
)

// String returns the event type name.
func (e EventType) String() string {
	switch e {
	case EventEntityOnline:
		return "ENTITY_ONLINE"
	case EventEntityOffline:
		return "ENTITY_OFFLINE"
	case EventEntityUpdated:
		return "ENTITY_UPDATED"
	case EventLocalEntityOnline:
		return "LOCAL_ENTITY_ONLINE"
	case EventLocalEntityOffline:
		return "LOCAL_ENTITY_OFFLINE"
	case EventUnsolicitedResponse:
		return "UNSOLICITED_RESPONSE"
	case EventIdentify:
		return "IDENTIFY"
	case EventAcmpResponse:
		return "ACMP_RESPONSE"
	default:
		return "UNKNOWN"
	}
}

// Event represents an end station event.
type Event struct {
	// Type is the event type.
	Type EventType

	// EntityID is the entity concerned.
	EntityID protocol.UniqueIdentifier

	// Entity is set for online and updated events.
	Entity *entity.Entity

	// Aecp is set for unsolicited and identify events.
	Aecp *protocol.Aecpdu

	// Acmp is set for ACMP response events.
	Acmp *protocol.Acmpdu
}

// EventHandler handles end station events. Handlers run on the engine's
// goroutine with the engine lock held and must not block.
type EventHandler func(Event)

// Statistics counts AECP command outcomes reported by the engine.
type Statistics struct {
	Retries             uint64
	Timeouts            uint64
	UnexpectedResponses uint64
	Responses           uint64

	// TotalResponseTime sums the round trip of every answered command.
	TotalResponseTime time.Duration
}

// AverageResponseTime returns the mean round trip, or zero.
func (s Statistics) AverageResponseTime() time.Duration {
	if s.Responses == 0 {
		return 0
	}
	return s.TotalResponseTime / time.Duration(s.Responses)
}
