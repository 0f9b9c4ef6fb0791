package statemachine

import (
	"slices"
	"time"

	"github.com/avbridge/avdecc-go/pkg/entity"
	"github.com/avbridge/avdecc-go/pkg/log"
	"github.com/avbridge/avdecc-go/pkg/protocol"
)

// remoteEntity is the snapshot of a discovered entity plus the expiry of
// each of its interfaces.
type remoteEntity struct {
	entity  entity.Entity
	expires map[protocol.AvbInterfaceIndex]time.Time
}

// discoveryMachine tracks remote entities from ENTITY_AVAILABLE frames and
// periodically broadcasts ENTITY_DISCOVER. All methods run with the Manager
// lock held.
type discoveryMachine struct {
	m *Manager

	delay         time.Duration
	lastDiscovery time.Time

	entities map[protocol.UniqueIdentifier]*remoteEntity
}

func newDiscoveryMachine(m *Manager, delay time.Duration) *discoveryMachine {
	return &discoveryMachine{
		m:        m,
		delay:    delay,
		entities: make(map[protocol.UniqueIdentifier]*remoteEntity),
	}
}

// expiry returns the deadline after which an interface announcing
// validTime (in 2 second units) is considered gone.
func expiry(now time.Time, validTime uint8) time.Time {
	return now.Add(2 * time.Duration(validTime) * time.Second)
}

func (d *discoveryMachine) handleEntityAvailable(pdu *protocol.Adpdu) {
	if d.m.isLocalEntity(pdu.EntityID) {
		return
	}
	if pdu.EntityCapabilities.Has(protocol.EntityCapEntityNotReady) {
		return
	}

	now := d.m.clock.Now()
	announced, idx := makeEntity(pdu)
	id := announced.EntityID()
	deadline := expiry(now, pdu.ValidTime)

	known, ok := d.entities[id]
	if !ok {
		d.add(announced, idx, deadline, "available")
		return
	}

	if immutableChanged(&known.entity.Common, &announced.Common) {
		d.replace(announced, idx, deadline, "immutable field changed")
		return
	}

	intf := announced.Interfaces[idx]
	updated := false

	if prev, ok := known.entity.Interfaces[idx]; ok {
		if prev.MacAddress != intf.MacAddress {
			d.replace(announced, idx, deadline, "mac address changed")
			return
		}
		if prev.AvailableIndex >= intf.AvailableIndex {
			d.replace(announced, idx, deadline, "available index not increasing")
			return
		}
		if !entity.EqualPtr(prev.GptpGrandmasterID, intf.GptpGrandmasterID) ||
			!entity.EqualPtr(prev.GptpDomainNumber, intf.GptpDomainNumber) {
			updated = true
		}
	} else {
		updated = true
	}
	known.entity.Interfaces[idx] = intf
	known.expires[idx] = deadline

	common := &known.entity.Common
	if common.EntityCapabilities != announced.Common.EntityCapabilities {
		common.EntityCapabilities = announced.Common.EntityCapabilities
		updated = true
	}
	if !entity.EqualPtr(common.AssociationID, announced.Common.AssociationID) {
		common.AssociationID = announced.Common.AssociationID
		updated = true
	}

	if updated {
		d.notifyUpdated(known)
	}
}

// immutableChanged reports whether two announcements from the same entity
// ID describe a logically different entity.
func immutableChanged(a, b *entity.CommonInformation) bool {
	return a.EntityModelID != b.EntityModelID ||
		a.TalkerStreamSources != b.TalkerStreamSources ||
		a.TalkerCapabilities != b.TalkerCapabilities ||
		a.ListenerStreamSinks != b.ListenerStreamSinks ||
		a.ListenerCapabilities != b.ListenerCapabilities ||
		a.ControllerCapabilities != b.ControllerCapabilities ||
		!entity.EqualPtr(a.IdentifyControlIndex, b.IdentifyControlIndex)
}

func (d *discoveryMachine) add(e entity.Entity, idx protocol.AvbInterfaceIndex, deadline time.Time, reason string) {
	id := e.EntityID()
	d.entities[id] = &remoteEntity{
		entity:  e,
		expires: map[protocol.AvbInterfaceIndex]time.Time{idx: deadline},
	}
	d.m.logState(log.StateEntityRemote, id, "OFFLINE", "ONLINE", reason)
	d.m.notifyRemoteOnline(e.Clone())
}

// replace drops the known snapshot and starts over from e, reported as
// offline followed by online.
func (d *discoveryMachine) replace(e entity.Entity, idx protocol.AvbInterfaceIndex, deadline time.Time, reason string) {
	id := e.EntityID()
	delete(d.entities, id)
	d.m.logState(log.StateEntityRemote, id, "ONLINE", "OFFLINE", reason)
	d.m.onRemoteOffline(id)
	d.add(e, idx, deadline, reason)
}

func (d *discoveryMachine) notifyUpdated(r *remoteEntity) {
	d.m.logState(log.StateEntityRemote, r.entity.EntityID(), "ONLINE", "ONLINE", "updated")
	d.m.notifyRemoteUpdated(r.entity.Clone())
}

func (d *discoveryMachine) handleEntityDeparting(pdu *protocol.Adpdu) {
	if d.m.isLocalEntity(pdu.EntityID) {
		return
	}
	_ = d.forget(pdu.EntityID, "departing")
}

// forget removes a remote entity immediately.
func (d *discoveryMachine) forget(id protocol.UniqueIdentifier, reason string) error {
	if _, ok := d.entities[id]; !ok {
		return ErrUnknownRemoteEntity
	}
	delete(d.entities, id)
	d.m.logState(log.StateEntityRemote, id, "ONLINE", "OFFLINE", reason)
	d.m.onRemoteOffline(id)
	return nil
}

// checkTimeouts removes interfaces whose expiry is strictly in the past.
func (d *discoveryMachine) checkTimeouts(now time.Time) {
	for _, id := range d.sortedIDs() {
		r, ok := d.entities[id]
		if !ok {
			continue
		}
		removed := false
		for idx, deadline := range r.expires {
			if now.After(deadline) {
				delete(r.expires, idx)
				delete(r.entity.Interfaces, idx)
				removed = true
			}
		}
		if !removed {
			continue
		}
		if len(r.entity.Interfaces) == 0 {
			delete(d.entities, id)
			d.m.logState(log.StateEntityRemote, id, "ONLINE", "OFFLINE", "timeout")
			d.m.onRemoteOffline(id)
			continue
		}
		d.notifyUpdated(r)
	}
}

// checkDiscovery sends a global ENTITY_DISCOVER when the automatic
// discovery delay has elapsed.
func (d *discoveryMachine) checkDiscovery(now time.Time) {
	if d.delay == 0 {
		return
	}
	if now.Sub(d.lastDiscovery) >= d.delay {
		d.lastDiscovery = now
		_ = d.discover(protocol.NullUniqueIdentifier)
	}
}

// setDelay changes the automatic discovery period, counted from now.
func (d *discoveryMachine) setDelay(now time.Time, delay time.Duration) {
	d.delay = delay
	d.lastDiscovery = now
}

// discover sends ENTITY_DISCOVER for target, or for every entity when
// target is null.
func (d *discoveryMachine) discover(target protocol.UniqueIdentifier) error {
	pdu := makeDiscoveryMessage(d.m.transport.MacAddress(), target)
	if err := d.m.sendAdp(pdu); err != nil {
		return networkError(err)
	}
	if target == protocol.NullUniqueIdentifier {
		d.lastDiscovery = d.m.clock.Now()
	}
	return nil
}

// notifyDiscovered replays every known remote entity as online.
func (d *discoveryMachine) notifyDiscovered(delegate DiscoveryDelegate) {
	for _, id := range d.sortedIDs() {
		if r, ok := d.entities[id]; ok {
			e := r.entity.Clone()
			d.m.protect("OnRemoteEntityOnline", func() { delegate.OnRemoteEntityOnline(e) })
		}
	}
}

func (d *discoveryMachine) remote(id protocol.UniqueIdentifier) (entity.Entity, bool) {
	r, ok := d.entities[id]
	if !ok {
		return entity.Entity{}, false
	}
	return r.entity.Clone(), true
}

func (d *discoveryMachine) remotes() []entity.Entity {
	out := make([]entity.Entity, 0, len(d.entities))
	for _, id := range d.sortedIDs() {
		out = append(out, d.entities[id].entity.Clone())
	}
	return out
}

// sortedIDs returns a stable iteration order that survives delegates
// mutating the table.
func (d *discoveryMachine) sortedIDs() []protocol.UniqueIdentifier {
	ids := make([]protocol.UniqueIdentifier, 0, len(d.entities))
	for id := range d.entities {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
