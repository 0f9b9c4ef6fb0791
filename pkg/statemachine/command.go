package statemachine

import (
	"slices"
	"time"

	"github.com/avbridge/avdecc-go/pkg/entity"
	"github.com/avbridge/avdecc-go/pkg/log"
	"github.com/avbridge/avdecc-go/pkg/protocol"
)

type commandState uint8

const (
	commandQueued commandState = iota
	commandInflight
	commandScheduled
	commandDone
)

// command is one submitted frame. It lives in exactly one container at a
// time: a destination queue, a destination inflight list or the scheduled
// error list.
type command[F any] struct {
	sequenceID  uint16
	frame       F
	handler     func(F, error)
	state       commandState
	retried     bool
	sendTime    time.Time
	timeoutTime time.Time
}

type destination[F any] struct {
	lastSend time.Time
	inflight []*command[F]
	queue    []*command[F]
}

func (d *destination[F]) find(seq uint16) (int, *command[F]) {
	for i, c := range d.inflight {
		if c.sequenceID == seq {
			return i, c
		}
	}
	return -1, nil
}

func (d *destination[F]) removeInflight(i int) {
	d.inflight = slices.Delete(d.inflight, i, i+1)
}

// pipeline carries the commands of one local entity for one sub-protocol,
// keyed by destination.
type pipeline[K comparable, F any] struct {
	cm *commandMachine

	nextSequenceID uint16
	destinations   map[K]*destination[F]

	window  func(K) Window
	timeout func(F) time.Duration
	send    func(F) error

	onRetry   func(K, *command[F])
	onTimeout func(K, *command[F])
}

func (p *pipeline[K, F]) sequenceID() uint16 {
	id := p.nextSequenceID
	p.nextSequenceID++
	return id
}

func (p *pipeline[K, F]) destination(key K) *destination[F] {
	d, ok := p.destinations[key]
	if !ok {
		d = &destination[F]{}
		p.destinations[key] = d
	}
	return d
}

// submit appends c to the destination queue and tries to admit it.
func (p *pipeline[K, F]) submit(key K, c *command[F]) {
	d := p.destination(key)
	c.state = commandQueued
	d.queue = append(d.queue, c)
	p.checkQueue(key)
}

// checkQueue promotes the head of the queue when the destination has a
// free inflight slot and its send interval has strictly elapsed. At most
// one command is promoted per call.
func (p *pipeline[K, F]) checkQueue(key K) {
	d, ok := p.destinations[key]
	if !ok || len(d.queue) == 0 {
		return
	}
	w := p.window(key)
	now := p.cm.m.clock.Now()
	if len(d.inflight) >= w.MaxInflight || !d.lastSend.Add(w.SendInterval).Before(now) {
		return
	}
	c := d.queue[0]
	d.queue[0] = nil
	d.queue = d.queue[1:]
	p.setInflight(d, c, now)
}

func (p *pipeline[K, F]) setInflight(d *destination[F], c *command[F], now time.Time) {
	d.lastSend = now
	if err := p.send(c.frame); err != nil {
		p.cm.schedule(func() { p.complete(c, *new(F), networkError(err)) })
		c.state = commandScheduled
		return
	}
	p.resetTimeout(c, now)
	c.state = commandInflight
	d.inflight = append(d.inflight, c)
}

func (p *pipeline[K, F]) resetTimeout(c *command[F], now time.Time) {
	c.sendTime = now
	c.timeoutTime = now.Add(p.timeout(c.frame))
}

// complete invokes the handler unless the command already completed.
func (p *pipeline[K, F]) complete(c *command[F], resp F, err error) {
	if c.state == commandDone {
		return
	}
	c.state = commandDone
	if c.handler != nil {
		p.cm.m.protect("command result handler", func() { c.handler(resp, err) })
	}
}

// checkTimeouts retries every inflight command whose deadline passed once,
// and fails it with ErrTimeout the second time.
func (p *pipeline[K, F]) checkTimeouts(now time.Time) {
	keys := make([]K, 0, len(p.destinations))
	for key := range p.destinations {
		keys = append(keys, key)
	}
	for _, key := range keys {
		d, ok := p.destinations[key]
		if !ok {
			continue
		}
		for _, c := range slices.Clone(d.inflight) {
			if c.state != commandInflight || !now.After(c.timeoutTime) {
				continue
			}
			var err error
			if !c.retried {
				c.retried = true
				d.lastSend = now
				if sendErr := p.send(c.frame); sendErr != nil {
					err = networkError(sendErr)
				} else {
					p.resetTimeout(c, now)
					p.onRetry(key, c)
				}
			} else {
				err = ErrTimeout
				p.onTimeout(key, c)
			}
			if err != nil {
				if i, _ := d.find(c.sequenceID); i >= 0 {
					d.removeInflight(i)
				}
				p.complete(c, *new(F), err)
			}
		}
		p.checkQueue(key)
	}
}

// discard fails every queued and inflight command toward key with err.
// Completions are deferred to the end of the current or next tick.
func (p *pipeline[K, F]) discard(key K, err error) {
	d, ok := p.destinations[key]
	if !ok {
		return
	}
	delete(p.destinations, key)
	p.scheduleAll(d, err)
}

func (p *pipeline[K, F]) discardAll(err error) {
	for key, d := range p.destinations {
		delete(p.destinations, key)
		p.scheduleAll(d, err)
	}
}

func (p *pipeline[K, F]) scheduleAll(d *destination[F], err error) {
	for _, c := range slices.Concat(d.inflight, d.queue) {
		if c.state == commandDone || c.state == commandScheduled {
			continue
		}
		c.state = commandScheduled
		p.cm.schedule(func() { p.complete(c, *new(F), err) })
	}
}

// commandEntity holds the command state of one registered local entity.
type commandEntity struct {
	entity entity.LocalEntity
	aecp   *pipeline[protocol.UniqueIdentifier, *protocol.Aecpdu]
	acmp   *pipeline[protocol.MacAddress, *protocol.Acmpdu]
}

// commandMachine runs AECP and ACMP commands for registered local
// entities. All methods run with the Manager lock held.
type commandMachine struct {
	m         *Manager
	entities  map[protocol.UniqueIdentifier]*commandEntity
	scheduled []func()
}

func newCommandMachine(m *Manager) *commandMachine {
	return &commandMachine{
		m:        m,
		entities: make(map[protocol.UniqueIdentifier]*commandEntity),
	}
}

func (cm *commandMachine) schedule(fn func()) {
	cm.scheduled = append(cm.scheduled, fn)
}

// flushScheduled runs deferred completions, including any scheduled while
// flushing.
func (cm *commandMachine) flushScheduled() {
	for len(cm.scheduled) > 0 {
		pending := cm.scheduled
		cm.scheduled = nil
		for _, fn := range pending {
			fn()
		}
	}
}

func (cm *commandMachine) register(e entity.LocalEntity) {
	id := e.EntityID()
	if _, ok := cm.entities[id]; ok {
		return
	}
	m := cm.m
	ce := &commandEntity{entity: e}
	ce.aecp = &pipeline[protocol.UniqueIdentifier, *protocol.Aecpdu]{
		cm:           cm,
		destinations: make(map[protocol.UniqueIdentifier]*destination[*protocol.Aecpdu]),
		window:       m.cfg.Command.aecpWindow,
		timeout:      m.aecpCommandTimeout,
		send:         m.sendAecp,
		onRetry: func(target protocol.UniqueIdentifier, c *command[*protocol.Aecpdu]) {
			m.logger.Debug("AECP command timed out, retrying", "target", target, "seq", c.sequenceID)
			m.logStatistic(log.ProtocolAECP, id, target, log.StatisticRetry, c.sequenceID, nil)
			m.protect("OnAecpRetry", func() { m.commandDelegate.OnAecpRetry(target) })
		},
		onTimeout: func(target protocol.UniqueIdentifier, c *command[*protocol.Aecpdu]) {
			m.logger.Debug("AECP command timed out twice", "target", target, "seq", c.sequenceID)
			m.logStatistic(log.ProtocolAECP, id, target, log.StatisticTimeout, c.sequenceID, nil)
			m.protect("OnAecpTimeout", func() { m.commandDelegate.OnAecpTimeout(target) })
		},
	}
	ce.acmp = &pipeline[protocol.MacAddress, *protocol.Acmpdu]{
		cm:           cm,
		destinations: make(map[protocol.MacAddress]*destination[*protocol.Acmpdu]),
		window:       m.cfg.Command.acmpWindow,
		timeout:      m.acmpCommandTimeout,
		send:         m.sendAcmp,
		onRetry: func(dest protocol.MacAddress, c *command[*protocol.Acmpdu]) {
			m.logger.Debug("ACMP command timed out, retrying", "dest", dest, "seq", c.sequenceID)
			m.logStatistic(log.ProtocolACMP, id, 0, log.StatisticRetry, c.sequenceID, nil)
		},
		onTimeout: func(dest protocol.MacAddress, c *command[*protocol.Acmpdu]) {
			m.logger.Debug("ACMP command timed out twice", "dest", dest, "seq", c.sequenceID)
			m.logStatistic(log.ProtocolACMP, id, 0, log.StatisticTimeout, c.sequenceID, nil)
		},
	}
	cm.entities[id] = ce
}

// unregister drops the entity and fails its outstanding commands with
// ErrUnknownLocalEntity.
func (cm *commandMachine) unregister(id protocol.UniqueIdentifier) {
	ce, ok := cm.entities[id]
	if !ok {
		return
	}
	delete(cm.entities, id)
	ce.aecp.discardAll(ErrUnknownLocalEntity)
	ce.acmp.discardAll(ErrUnknownLocalEntity)
}

// discardAll fails every outstanding command of every entity with err and
// runs the completions.
func (cm *commandMachine) discardAll(err error) {
	for _, id := range cm.sortedIDs() {
		ce := cm.entities[id]
		ce.aecp.discardAll(err)
		ce.acmp.discardAll(err)
	}
	cm.flushScheduled()
}

// discardEntityMessages fails AECP commands addressed to a remote entity
// that went offline.
func (cm *commandMachine) discardEntityMessages(target protocol.UniqueIdentifier) {
	for _, ce := range cm.entities {
		ce.aecp.discard(target, ErrUnknownRemoteEntity)
	}
}

func (cm *commandMachine) sendAecpCommand(pdu *protocol.Aecpdu, handler AecpResultHandler) error {
	ce, ok := cm.entities[pdu.ControllerEntityID]
	if !ok {
		return ErrInvalidEntityType
	}
	pdu.SequenceID = protocol.AecpSequenceID(ce.aecp.sequenceID())
	ce.aecp.submit(pdu.TargetEntityID, &command[*protocol.Aecpdu]{
		sequenceID: uint16(pdu.SequenceID),
		frame:      pdu,
		handler:    handler,
	})
	return nil
}

func (cm *commandMachine) sendAcmpCommand(pdu *protocol.Acmpdu, handler AcmpResultHandler) error {
	ce, ok := cm.entities[pdu.ControllerEntityID]
	if !ok {
		return ErrInvalidEntityType
	}
	pdu.SequenceID = protocol.AcmpSequenceID(ce.acmp.sequenceID())
	ce.acmp.submit(pdu.DestAddress, &command[*protocol.Acmpdu]{
		sequenceID: uint16(pdu.SequenceID),
		frame:      pdu,
		handler:    handler,
	})
	return nil
}

func isAemUnsolicitedResponse(pdu *protocol.Aecpdu) bool {
	return pdu.MessageType == protocol.AecpAemResponse && pdu.Unsolicited
}

func shouldRearmTimer(pdu *protocol.Aecpdu) bool {
	return pdu.MessageType == protocol.AecpAemResponse && pdu.Status == protocol.AemStatusInProgress
}

func (cm *commandMachine) handleAecpResponse(pdu *protocol.Aecpdu) {
	m := cm.m
	now := m.clock.Now()
	controllerID := pdu.ControllerEntityID

	if controllerID == protocol.IdentifyControllerEntityID {
		if isAemUnsolicitedResponse(pdu) {
			m.protect("OnAecpAemIdentifyNotification", func() { m.commandDelegate.OnAecpAemIdentifyNotification(pdu) })
		} else {
			m.logger.Warn("AECP response carries the IDENTIFY controller id but is not an unsolicited AEM response",
				"src", pdu.SrcAddress, "dest", pdu.DestAddress)
		}
	}

	ce, ok := cm.entities[controllerID]
	if !ok {
		return
	}

	if isAemUnsolicitedResponse(pdu) {
		m.protect("OnAecpAemUnsolicitedResponse", func() { m.commandDelegate.OnAecpAemUnsolicitedResponse(pdu) })
		return
	}
	if pdu.MessageType == protocol.AecpVendorUniqueResp {
		if vu, ok := m.transport.(VendorUniqueHandler); ok && vu.IsVuUnsolicitedResponse(pdu.ProtocolIdentifier, pdu) {
			m.protect("OnVuUnsolicitedResponse", func() { vu.OnVuUnsolicitedResponse(pdu.ProtocolIdentifier, pdu) })
			return
		}
	}

	target := pdu.TargetEntityID
	d, ok := ce.aecp.destinations[target]
	if !ok {
		return
	}
	i, c := d.find(uint16(pdu.SequenceID))
	if c == nil {
		m.logger.Debug("unexpected AECP response (timed out already?)", "target", target, "seq", pdu.SequenceID)
		m.logStatistic(log.ProtocolAECP, controllerID, target, log.StatisticUnexpectedResponse, uint16(pdu.SequenceID), nil)
		m.protect("OnAecpUnexpectedResponse", func() { m.commandDelegate.OnAecpUnexpectedResponse(target) })
		return
	}
	if c.frame.DestAddress != pdu.SrcAddress {
		m.logger.Warn("AECP response received from a different sender than recipient, ignoring",
			"target", target, "seq", pdu.SequenceID, "expected", c.frame.DestAddress, "src", pdu.SrcAddress)
		return
	}
	if shouldRearmTimer(pdu) {
		ce.aecp.resetTimeout(c, now)
		return
	}

	d.removeInflight(i)
	ce.aecp.complete(c, pdu, nil)

	rt := now.Sub(c.sendTime)
	m.logStatistic(log.ProtocolAECP, controllerID, target, log.StatisticResponseTime, uint16(pdu.SequenceID), &rt)
	m.protect("OnAecpResponseTime", func() { m.commandDelegate.OnAecpResponseTime(target, rt) })

	ce.aecp.checkQueue(target)
}

func (cm *commandMachine) handleAcmpResponse(pdu *protocol.Acmpdu) {
	ce, ok := cm.entities[pdu.ControllerEntityID]
	if !ok {
		return
	}
	key, d, i, c := ce.findAcmpCommand(pdu)
	if c == nil {
		return
	}
	d.removeInflight(i)
	ce.acmp.complete(c, pdu, nil)
	ce.acmp.checkQueue(key)
}

// findAcmpCommand locates the inflight command answered by pdu. Responses
// are multicast, so a command sent to a unicast address is not keyed under
// the response's destination; those are searched by sequence id.
// Talker and listener exchange responses carrying our controller id and
// possibly our sequence id; only the matching response type is ours.
func (ce *commandEntity) findAcmpCommand(pdu *protocol.Acmpdu) (protocol.MacAddress, *destination[*protocol.Acmpdu], int, *command[*protocol.Acmpdu]) {
	seq := uint16(pdu.SequenceID)
	matches := func(d *destination[*protocol.Acmpdu]) (int, *command[*protocol.Acmpdu]) {
		i, c := d.find(seq)
		if c == nil || pdu.MessageType != c.frame.MessageType+1 {
			return -1, nil
		}
		return i, c
	}
	if d, ok := ce.acmp.destinations[pdu.DestAddress]; ok {
		if i, c := matches(d); c != nil {
			return pdu.DestAddress, d, i, c
		}
	}
	for key, d := range ce.acmp.destinations {
		if key == pdu.DestAddress {
			continue
		}
		if i, c := matches(d); c != nil {
			return key, d, i, c
		}
	}
	return protocol.MacAddress{}, nil, -1, nil
}

func (cm *commandMachine) checkTimeouts(now time.Time) {
	for _, id := range cm.sortedIDs() {
		ce, ok := cm.entities[id]
		if !ok {
			continue
		}
		ce.aecp.checkTimeouts(now)
		ce.acmp.checkTimeouts(now)
	}
	cm.flushScheduled()
}

func (cm *commandMachine) sortedIDs() []protocol.UniqueIdentifier {
	ids := make([]protocol.UniqueIdentifier, 0, len(cm.entities))
	for id := range cm.entities {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// aecpLoad returns the number of inflight and queued AECP commands
// from a local entity to target.
func (cm *commandMachine) aecpLoad(controller, target protocol.UniqueIdentifier) (inflight, queued int) {
	ce, ok := cm.entities[controller]
	if !ok {
		return 0, 0
	}
	d, ok := ce.aecp.destinations[target]
	if !ok {
		return 0, 0
	}
	return len(d.inflight), len(d.queue)
}
