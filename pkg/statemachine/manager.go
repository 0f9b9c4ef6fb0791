package statemachine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/avbridge/avdecc-go/pkg/entity"
	"github.com/avbridge/avdecc-go/pkg/log"
	"github.com/avbridge/avdecc-go/pkg/protocol"
	"github.com/avbridge/avdecc-go/pkg/reentrant"
)

// Manager owns the discovery, advertise and command state machines and
// the single re-entrant lock they share. Every entry point takes the lock,
// so delegates and result handlers run with it held and may call back into
// the Manager from the same goroutine.
type Manager struct {
	mu reentrant.Mutex

	cfg       Config
	transport Transport
	clock     clockwork.Clock
	rand      *rand.Rand
	logger    *slog.Logger
	capture   *log.Session

	discoveryDelegate DiscoveryDelegate
	commandDelegate   CommandDelegate
	inbound           InboundDelegate

	localEntities map[protocol.UniqueIdentifier]entity.LocalEntity

	discovery *discoveryMachine
	advertise *advertiseMachine
	commands  *commandMachine

	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a Manager. The background task is not started.
func NewManager(cfg Config) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:               cfg,
		transport:         cfg.Transport,
		clock:             cfg.Clock,
		rand:              cfg.Rand,
		logger:            cfg.Logger,
		discoveryDelegate: cfg.DiscoveryDelegate,
		commandDelegate:   cfg.CommandDelegate,
		inbound:           cfg.InboundDelegate,
		localEntities:     make(map[protocol.UniqueIdentifier]entity.LocalEntity),
	}
	if m.clock == nil {
		m.clock = clockwork.NewRealClock()
	}
	if m.rand == nil {
		m.rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if m.logger == nil {
		m.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.ProtocolLogger != nil {
		m.capture = log.NewSession(cfg.ProtocolLogger, m.clock.Now)
	}
	if m.discoveryDelegate == nil {
		m.discoveryDelegate = NoopDiscoveryDelegate{}
	}
	if m.commandDelegate == nil {
		m.commandDelegate = NoopCommandDelegate{}
	}
	if m.inbound == nil {
		m.inbound = NoopInboundDelegate{}
	}

	m.discovery = newDiscoveryMachine(m, cfg.DiscoveryDelay)
	m.advertise = newAdvertiseMachine(m)
	m.commands = newCommandMachine(m)
	return m, nil
}

// SessionID returns the ID stamped on captured protocol events, or "" when
// capture is disabled.
func (m *Manager) SessionID() string {
	if m.capture == nil {
		return ""
	}
	return m.capture.ID()
}

// Lock acquires the Manager lock. It may be taken again by the goroutine
// that holds it.
func (m *Manager) Lock() { m.mu.Lock() }

// Unlock releases one level of the Manager lock.
func (m *Manager) Unlock() { m.mu.Unlock() }

// IsSelfLocked reports whether the calling goroutine holds the lock.
func (m *Manager) IsSelfLocked() bool { return m.mu.HeldByCurrent() }

// Start runs the periodic task until ctx is done or Stop is called.
func (m *Manager) Start(ctx context.Context) error {
	m.Lock()
	if m.cancel != nil {
		m.Unlock()
		return ErrAlreadyStarted
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done
	m.Unlock()

	ticker := m.clock.NewTicker(m.cfg.TickInterval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				m.Tick()
			}
		}
	}()
	m.logger.Debug("manager started", "tick_interval", m.cfg.TickInterval)
	return nil
}

// Stop halts the periodic task and waits for it to exit. Outstanding
// commands complete with ErrUnknownLocalEntity before Stop returns; local
// entities stay registered. It must not be called with the Manager lock
// held.
func (m *Manager) Stop() error {
	m.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.Unlock()
	if cancel == nil {
		return ErrNotStarted
	}
	cancel()
	<-done

	m.Lock()
	m.protect("stop", func() { m.commands.discardAll(ErrUnknownLocalEntity) })
	m.Unlock()
	m.logger.Debug("manager stopped")
	return nil
}

// Tick runs one periodic pass: announcements, automatic discovery, remote
// entity expiry, command timeouts and deferred completions.
func (m *Manager) Tick() {
	m.Lock()
	defer m.Unlock()
	m.protect("tick", func() {
		now := m.clock.Now()
		m.advertise.checkAnnouncements(now)
		m.discovery.checkDiscovery(now)
		m.discovery.checkTimeouts(now)
		m.commands.checkTimeouts(now)
	})
}

// RegisterLocalEntity makes e known to the engine so it can send commands
// and be advertised.
func (m *Manager) RegisterLocalEntity(e entity.LocalEntity) error {
	m.Lock()
	defer m.Unlock()

	id := e.EntityID()
	if _, ok := m.localEntities[id]; ok {
		return ErrDuplicateLocalEntityID
	}
	m.localEntities[id] = e
	m.commands.register(e)
	m.logState(log.StateEntityLocal, id, "OFFLINE", "ONLINE", "registered")
	m.protect("OnLocalEntityOnline", func() { m.discoveryDelegate.OnLocalEntityOnline(e) })
	return nil
}

// UnregisterLocalEntity stops advertising the entity and fails all of its
// outstanding commands with ErrUnknownLocalEntity on the next tick.
func (m *Manager) UnregisterLocalEntity(id protocol.UniqueIdentifier) error {
	m.Lock()
	defer m.Unlock()

	if _, ok := m.localEntities[id]; !ok {
		return ErrUnknownLocalEntity
	}
	m.advertise.disable(id)
	m.commands.unregister(id)
	delete(m.localEntities, id)
	m.logState(log.StateEntityLocal, id, "ONLINE", "OFFLINE", "unregistered")
	m.protect("OnLocalEntityOffline", func() { m.discoveryDelegate.OnLocalEntityOffline(id) })
	return nil
}

// IsLocalEntity reports whether id is registered.
func (m *Manager) IsLocalEntity(id protocol.UniqueIdentifier) bool {
	m.Lock()
	defer m.Unlock()
	return m.isLocalEntity(id)
}

func (m *Manager) isLocalEntity(id protocol.UniqueIdentifier) bool {
	_, ok := m.localEntities[id]
	return ok
}

// matchingInterfaceIndex returns the interface of e bound to the
// transport's MAC address.
func (m *Manager) matchingInterfaceIndex(e entity.LocalEntity) (protocol.AvbInterfaceIndex, bool) {
	mac := m.transport.MacAddress()
	intfs := e.InterfacesInformation()
	idxs := make([]protocol.AvbInterfaceIndex, 0, len(intfs))
	for idx := range intfs {
		idxs = append(idxs, idx)
	}
	slices.Sort(idxs)
	for _, idx := range idxs {
		if intfs[idx].MacAddress == mac {
			return idx, true
		}
	}
	return 0, false
}

// EnableEntityAdvertising starts periodic ENTITY_AVAILABLE for a registered
// entity on the interface matching the transport.
func (m *Manager) EnableEntityAdvertising(id protocol.UniqueIdentifier) error {
	m.Lock()
	defer m.Unlock()

	e, ok := m.localEntities[id]
	if !ok {
		return ErrUnknownLocalEntity
	}
	idx, ok := m.matchingInterfaceIndex(e)
	if !ok {
		return fmt.Errorf("%w: entity %s has no interface on %s", ErrInvalidParameters, id, m.transport.MacAddress())
	}
	m.advertise.enable(e, idx)
	return nil
}

// DisableEntityAdvertising sends ENTITY_DEPARTING and stops advertising.
func (m *Manager) DisableEntityAdvertising(id protocol.UniqueIdentifier) error {
	m.Lock()
	defer m.Unlock()

	if _, ok := m.localEntities[id]; !ok {
		return ErrUnknownLocalEntity
	}
	m.advertise.disable(id)
	return nil
}

// SetEntityNeedsAdvertise schedules a near-term ENTITY_AVAILABLE after the
// entity's discovery fields changed.
func (m *Manager) SetEntityNeedsAdvertise(id protocol.UniqueIdentifier) error {
	m.Lock()
	defer m.Unlock()

	e, ok := m.localEntities[id]
	if !ok {
		return ErrUnknownLocalEntity
	}
	if m.advertise.setNeedsAdvertise(id) {
		m.protect("OnLocalEntityUpdated", func() { m.discoveryDelegate.OnLocalEntityUpdated(e) })
	}
	return nil
}

// SetAutomaticDiscoveryDelay changes the global ENTITY_DISCOVER period.
// Zero disables automatic discovery.
func (m *Manager) SetAutomaticDiscoveryDelay(delay time.Duration) error {
	if delay < 0 {
		return ErrInvalidParameters
	}
	m.Lock()
	defer m.Unlock()
	m.discovery.setDelay(m.clock.Now(), delay)
	return nil
}

// DiscoverRemoteEntities sends a global ENTITY_DISCOVER.
func (m *Manager) DiscoverRemoteEntities() error {
	m.Lock()
	defer m.Unlock()
	return m.discovery.discover(protocol.NullUniqueIdentifier)
}

// DiscoverRemoteEntity sends an ENTITY_DISCOVER targeting id.
func (m *Manager) DiscoverRemoteEntity(id protocol.UniqueIdentifier) error {
	if !id.IsValid() {
		return ErrInvalidParameters
	}
	m.Lock()
	defer m.Unlock()
	return m.discovery.discover(id)
}

// ForgetRemoteEntity drops a remote entity as if it departed. It returns
// ErrUnknownRemoteEntity when id is not tracked.
func (m *Manager) ForgetRemoteEntity(id protocol.UniqueIdentifier) error {
	m.Lock()
	defer m.Unlock()
	return m.discovery.forget(id, "forgotten")
}

// RemoteEntity returns a snapshot of a discovered entity.
func (m *Manager) RemoteEntity(id protocol.UniqueIdentifier) (entity.Entity, bool) {
	m.Lock()
	defer m.Unlock()
	return m.discovery.remote(id)
}

// RemoteEntities returns snapshots of all discovered entities ordered by
// entity ID.
func (m *Manager) RemoteEntities() []entity.Entity {
	m.Lock()
	defer m.Unlock()
	return m.discovery.remotes()
}

// NotifyDiscoveredEntities replays registered local entities, then
// discovered remote entities, as online notifications to delegate.
func (m *Manager) NotifyDiscoveredEntities(delegate DiscoveryDelegate) {
	m.Lock()
	defer m.Unlock()

	ids := make([]protocol.UniqueIdentifier, 0, len(m.localEntities))
	for id := range m.localEntities {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		e := m.localEntities[id]
		m.protect("OnLocalEntityOnline", func() { delegate.OnLocalEntityOnline(e) })
	}
	m.discovery.notifyDiscovered(delegate)
}

// ProcessAdp dispatches an inbound ADP frame.
func (m *Manager) ProcessAdp(pdu *protocol.Adpdu) {
	m.Lock()
	defer m.Unlock()

	m.logFrame(log.DirectionIn, log.ProtocolADP, 0, pdu.EntityID, func() *log.FrameEvent { return log.AdpFrame(pdu) })
	m.protect("process ADP", func() {
		switch pdu.MessageType {
		case protocol.AdpEntityAvailable:
			m.discovery.handleEntityAvailable(pdu)
		case protocol.AdpEntityDeparting:
			m.discovery.handleEntityDeparting(pdu)
		case protocol.AdpEntityDiscover:
			m.advertise.handleEntityDiscover(pdu)
		default:
			m.logger.Debug("ignoring ADP frame", "message_type", pdu.MessageType)
		}
	})
}

// ProcessAecp dispatches an inbound AECP frame. Responses are correlated
// with outstanding commands; commands targeting a local entity go to the
// InboundDelegate.
func (m *Manager) ProcessAecp(pdu *protocol.Aecpdu) {
	m.Lock()
	defer m.Unlock()

	m.logFrame(log.DirectionIn, log.ProtocolAECP, pdu.ControllerEntityID, pdu.TargetEntityID, func() *log.FrameEvent { return log.AecpFrame(pdu) })
	m.protect("process AECP", func() {
		if pdu.IsResponse() {
			m.commands.handleAecpResponse(pdu)
			return
		}
		if m.isLocalEntity(pdu.TargetEntityID) {
			m.inbound.OnAecpCommand(pdu)
		}
	})
}

// ProcessAcmp dispatches an inbound ACMP frame. Responses are correlated
// and then forwarded to the InboundDelegate, as are all commands.
func (m *Manager) ProcessAcmp(pdu *protocol.Acmpdu) {
	m.Lock()
	defer m.Unlock()

	m.logFrame(log.DirectionIn, log.ProtocolACMP, pdu.ControllerEntityID, 0, func() *log.FrameEvent { return log.AcmpFrame(pdu) })
	m.protect("process ACMP", func() {
		if pdu.IsResponse() {
			m.commands.handleAcmpResponse(pdu)
			m.inbound.OnAcmpResponse(pdu)
			return
		}
		m.inbound.OnAcmpCommand(pdu)
	})
}

// SendAecpCommand submits an AECP command on behalf of the local entity
// named by pdu.ControllerEntityID. The frame is copied and its sequence ID
// assigned. handler, if not nil, is called exactly once with the response
// or an error.
func (m *Manager) SendAecpCommand(pdu *protocol.Aecpdu, handler AecpResultHandler) (err error) {
	if pdu == nil || pdu.IsResponse() || pdu.DestAddress.IsZero() {
		return ErrInvalidParameters
	}
	m.Lock()
	defer m.Unlock()
	defer m.recoverSubmit(&err)

	cmd := pdu.Clone()
	if cmd.SrcAddress.IsZero() {
		cmd.SrcAddress = m.transport.MacAddress()
	}
	return m.commands.sendAecpCommand(cmd, handler)
}

// SendAcmpCommand submits an ACMP command on behalf of the local entity
// named by pdu.ControllerEntityID. A zero destination address defaults to
// the ACMP multicast address.
func (m *Manager) SendAcmpCommand(pdu *protocol.Acmpdu, handler AcmpResultHandler) (err error) {
	if pdu == nil || pdu.IsResponse() {
		return ErrInvalidParameters
	}
	m.Lock()
	defer m.Unlock()
	defer m.recoverSubmit(&err)

	cmd := pdu.Clone()
	if cmd.SrcAddress.IsZero() {
		cmd.SrcAddress = m.transport.MacAddress()
	}
	if cmd.DestAddress.IsZero() {
		cmd.DestAddress = protocol.MulticastMacAddress
	}
	return m.commands.sendAcmpCommand(cmd, handler)
}

// SendAecpResponse sends a response to an inbound AECP command. Responses
// are not tracked; a send failure is returned wrapped in ErrNetworkError.
func (m *Manager) SendAecpResponse(pdu *protocol.Aecpdu) error {
	if pdu == nil || !pdu.IsResponse() || pdu.DestAddress.IsZero() {
		return ErrInvalidParameters
	}
	m.Lock()
	defer m.Unlock()

	resp := pdu.Clone()
	if resp.SrcAddress.IsZero() {
		resp.SrcAddress = m.transport.MacAddress()
	}
	if err := m.sendAecp(resp); err != nil {
		return networkError(err)
	}
	return nil
}

// SendAcmpResponse sends a response to an inbound ACMP command. A zero
// destination address defaults to the ACMP multicast address.
func (m *Manager) SendAcmpResponse(pdu *protocol.Acmpdu) error {
	if pdu == nil || !pdu.IsResponse() {
		return ErrInvalidParameters
	}
	m.Lock()
	defer m.Unlock()

	resp := pdu.Clone()
	if resp.SrcAddress.IsZero() {
		resp.SrcAddress = m.transport.MacAddress()
	}
	if resp.DestAddress.IsZero() {
		resp.DestAddress = protocol.MulticastMacAddress
	}
	if err := m.sendAcmp(resp); err != nil {
		return networkError(err)
	}
	return nil
}

func (m *Manager) recoverSubmit(err *error) {
	if r := recover(); r != nil {
		m.logger.Error("recovered panic while queuing command", "panic", r)
		m.logError(log.ProtocolNone, "submit command", fmt.Errorf("panic: %v", r))
		*err = ErrInternalError
	}
}

func (m *Manager) notifyRemoteOnline(e entity.Entity) {
	m.protect("OnRemoteEntityOnline", func() { m.discoveryDelegate.OnRemoteEntityOnline(e) })
}

func (m *Manager) notifyRemoteUpdated(e entity.Entity) {
	m.protect("OnRemoteEntityUpdated", func() { m.discoveryDelegate.OnRemoteEntityUpdated(e) })
}

// onRemoteOffline purges commands addressed to id before telling the
// delegate.
func (m *Manager) onRemoteOffline(id protocol.UniqueIdentifier) {
	m.commands.discardEntityMessages(id)
	m.protect("OnRemoteEntityOffline", func() { m.discoveryDelegate.OnRemoteEntityOffline(id) })
}
