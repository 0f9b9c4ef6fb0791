package endstation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/avbridge/avdecc-go/pkg/entity"
	"github.com/avbridge/avdecc-go/pkg/protocol"
	"github.com/avbridge/avdecc-go/pkg/statemachine"
	"github.com/avbridge/avdecc-go/pkg/transport"
)

// EndStation binds a protocol engine to one network interface and hosts
// local entities on it.
type EndStation struct {
	mu sync.RWMutex

	config  Config
	state   State
	logger  *slog.Logger
	iface   transport.Interface
	manager *statemachine.Manager

	// Hosted entities, keyed by entity ID.
	entities map[protocol.UniqueIdentifier]entity.LocalEntity

	eventHandlers []EventHandler
	stats         Statistics

	cancel  context.CancelFunc
	runDone chan error
}

// New creates an end station. The engine is not started.
func New(config Config) (*EndStation, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	es := &EndStation{
		config:   config,
		state:    StateIdle,
		logger:   logger,
		iface:    config.Interface,
		entities: make(map[protocol.UniqueIdentifier]entity.LocalEntity),
	}

	mcfg := statemachine.DefaultConfig()
	mcfg.Transport = config.Interface
	mcfg.DiscoveryDelegate = es
	mcfg.CommandDelegate = es
	mcfg.InboundDelegate = es
	mcfg.Clock = config.Clock
	mcfg.TickInterval = config.TickInterval
	mcfg.DiscoveryDelay = config.DiscoveryDelay
	mcfg.Command = config.Command
	mcfg.Logger = config.Logger
	mcfg.ProtocolLogger = config.ProtocolLogger

	m, err := statemachine.NewManager(mcfg)
	if err != nil {
		return nil, err
	}
	es.manager = m
	return es, nil
}

// Manager returns the underlying engine.
func (es *EndStation) Manager() *statemachine.Manager {
	return es.manager
}

// MacAddress returns the address of the network interface.
func (es *EndStation) MacAddress() protocol.MacAddress {
	return es.iface.MacAddress()
}

// State returns the current state.
func (es *EndStation) State() State {
	es.mu.RLock()
	defer es.mu.RUnlock()
	return es.state
}

// OnEvent registers an event handler.
func (es *EndStation) OnEvent(handler EventHandler) {
	es.mu.Lock()
	defer es.mu.Unlock()
	es.eventHandlers = append(es.eventHandlers, handler)
}

// Statistics returns a snapshot of the command statistics.
func (es *EndStation) Statistics() Statistics {
	es.mu.RLock()
	defer es.mu.RUnlock()
	return es.stats
}

// Start starts the engine and the receive loop.
func (es *EndStation) Start(ctx context.Context) error {
	es.mu.Lock()
	if es.state != StateIdle {
		es.mu.Unlock()
		return ErrAlreadyStarted
	}
	ctx, cancel := context.WithCancel(ctx)
	es.cancel = cancel
	es.runDone = make(chan error, 1)
	es.state = StateRunning
	es.mu.Unlock()

	if err := es.manager.Start(ctx); err != nil {
		cancel()
		return err
	}
	go func() {
		es.runDone <- es.iface.Run(ctx, es.manager)
	}()
	es.logger.Debug("end station started", "mac", es.iface.MacAddress())
	return nil
}

// Stop withdraws every hosted entity, completes its outstanding commands
// with statemachine.ErrUnknownLocalEntity, then stops the engine and closes
// the interface.
func (es *EndStation) Stop() error {
	es.mu.Lock()
	if es.state != StateRunning {
		es.mu.Unlock()
		return ErrNotStarted
	}
	es.state = StateStopped
	ids := slices.Sorted(maps.Keys(es.entities))
	es.mu.Unlock()

	for _, id := range ids {
		if err := es.RemoveEntity(id); err != nil {
			es.logger.Debug("remove entity on stop failed", "entity_id", id, "error", err)
		}
	}

	// Also runs the completions deferred by the removals above.
	stopErr := es.manager.Stop()

	es.cancel()
	closeErr := es.iface.Close()
	runErr := <-es.runDone
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}
	es.logger.Debug("end station stopped", "mac", es.iface.MacAddress())
	return errors.Join(stopErr, closeErr, runErr)
}

// AddEntity registers a hosted entity and, if advertise is set, starts
// advertising it.
func (es *EndStation) AddEntity(e entity.LocalEntity, advertise bool) error {
	if err := es.manager.RegisterLocalEntity(e); err != nil {
		return err
	}
	es.mu.Lock()
	es.entities[e.EntityID()] = e
	es.mu.Unlock()

	if advertise {
		if err := es.manager.EnableEntityAdvertising(e.EntityID()); err != nil {
			es.RemoveEntity(e.EntityID())
			return err
		}
	}
	return nil
}

// RemoveEntity sends ENTITY_DEPARTING if the entity was advertised and
// unregisters it.
func (es *EndStation) RemoveEntity(id protocol.UniqueIdentifier) error {
	if err := es.manager.UnregisterLocalEntity(id); err != nil {
		return err
	}
	es.mu.Lock()
	delete(es.entities, id)
	es.mu.Unlock()
	return nil
}

// LocalEntity returns a hosted entity.
func (es *EndStation) LocalEntity(id protocol.UniqueIdentifier) (entity.LocalEntity, bool) {
	es.mu.RLock()
	defer es.mu.RUnlock()
	e, ok := es.entities[id]
	return e, ok
}

// LocalEntityIDs returns the hosted entity IDs in ascending order.
func (es *EndStation) LocalEntityIDs() []protocol.UniqueIdentifier {
	es.mu.RLock()
	defer es.mu.RUnlock()
	return slices.Sorted(maps.Keys(es.entities))
}

// Discover sends a global ENTITY_DISCOVER.
func (es *EndStation) Discover() error {
	return es.manager.DiscoverRemoteEntities()
}

// SendAecpCommand sends an AECP command and waits for its result. If ctx
// ends first, ctx.Err() is returned and the command still runs to
// completion in the engine.
func (es *EndStation) SendAecpCommand(ctx context.Context, pdu *protocol.Aecpdu) (*protocol.Aecpdu, error) {
	if es.manager.IsSelfLocked() {
		return nil, ErrCalledFromHandler
	}
	type result struct {
		resp *protocol.Aecpdu
		err  error
	}
	ch := make(chan result, 1)
	if err := es.manager.SendAecpCommand(pdu, func(resp *protocol.Aecpdu, err error) {
		ch <- result{resp, err}
	}); err != nil {
		return nil, err
	}
	select {
	case r := <-ch:
		return r.resp, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SendAcmpCommand sends an ACMP command and waits for its result. A
// response with a non-success status is returned with a nil error.
func (es *EndStation) SendAcmpCommand(ctx context.Context, pdu *protocol.Acmpdu) (*protocol.Acmpdu, error) {
	if es.manager.IsSelfLocked() {
		return nil, ErrCalledFromHandler
	}
	type result struct {
		resp *protocol.Acmpdu
		err  error
	}
	ch := make(chan result, 1)
	if err := es.manager.SendAcmpCommand(pdu, func(resp *protocol.Acmpdu, err error) {
		ch <- result{resp, err}
	}); err != nil {
		return nil, err
	}
	select {
	case r := <-ch:
		return r.resp, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (es *EndStation) emit(event Event) {
	es.mu.RLock()
	handlers := slices.Clone(es.eventHandlers)
	es.mu.RUnlock()
	for _, h := range handlers {
		h(event)
	}
}
