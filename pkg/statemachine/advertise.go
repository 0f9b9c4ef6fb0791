package statemachine

import (
	"slices"
	"time"

	"github.com/avbridge/avdecc-go/pkg/entity"
	"github.com/avbridge/avdecc-go/pkg/log"
	"github.com/avbridge/avdecc-go/pkg/protocol"
)

type advertisedEntity struct {
	entity entity.LocalEntity
	intf   protocol.AvbInterfaceIndex
	next   time.Time
}

// advertiseMachine sends ENTITY_AVAILABLE for local entities at half
// their valid time, with jitter. All methods run with the Manager lock
// held.
type advertiseMachine struct {
	m        *Manager
	entities map[protocol.UniqueIdentifier]*advertisedEntity
}

func newAdvertiseMachine(m *Manager) *advertiseMachine {
	return &advertiseMachine{
		m:        m,
		entities: make(map[protocol.UniqueIdentifier]*advertisedEntity),
	}
}

// enable starts advertising e on idx. The first frame goes out on the next
// check.
func (a *advertiseMachine) enable(e entity.LocalEntity, idx protocol.AvbInterfaceIndex) {
	id := e.EntityID()
	if _, ok := a.entities[id]; ok {
		return
	}
	a.entities[id] = &advertisedEntity{entity: e, intf: idx}
	a.m.logState(log.StateEntityAdvertising, id, "DISABLED", "ENABLED", "")
}

// disable sends ENTITY_DEPARTING and stops advertising.
func (a *advertiseMachine) disable(id protocol.UniqueIdentifier) {
	adv, ok := a.entities[id]
	if !ok {
		return
	}
	adv.entity.Lock()
	pdu, ok := makeEntityDepartingMessage(adv.entity, adv.intf)
	adv.entity.Unlock()
	if a.m.contract(ok, "advertised interface vanished", "entity_id", id, "interface", adv.intf) {
		_ = a.m.sendAdp(pdu)
	}
	delete(a.entities, id)
	a.m.logState(log.StateEntityAdvertising, id, "ENABLED", "DISABLED", "")
}

func (a *advertiseMachine) isAdvertising(id protocol.UniqueIdentifier) bool {
	_, ok := a.entities[id]
	return ok
}

// setNeedsAdvertise schedules a jittered announcement for id.
func (a *advertiseMachine) setNeedsAdvertise(id protocol.UniqueIdentifier) bool {
	adv, ok := a.entities[id]
	if !ok {
		return false
	}
	adv.next = a.delayedTime(adv)
	return true
}

// handleEntityDiscover schedules a jittered announcement for every entity
// matched by the request. Requests from this host are not filtered: another
// controller may run on it.
func (a *advertiseMachine) handleEntityDiscover(pdu *protocol.Adpdu) {
	target := pdu.EntityID
	for _, adv := range a.entities {
		if !target.IsValid() || target == adv.entity.EntityID() {
			adv.next = a.delayedTime(adv)
		}
	}
}

// checkAnnouncements sends ENTITY_AVAILABLE for every entity whose time has
// come. The frame is built under the entity's own lock.
func (a *advertiseMachine) checkAnnouncements(now time.Time) {
	for _, id := range a.sortedIDs() {
		adv, ok := a.entities[id]
		if !ok || now.Before(adv.next) {
			continue
		}
		a.announce(adv)
	}
}

func (a *advertiseMachine) announce(adv *advertisedEntity) {
	adv.entity.Lock()
	defer adv.entity.Unlock()

	pdu, ok := makeEntityAvailableMessage(adv.entity, adv.intf)
	adv.next = a.nextTime(adv)
	if !a.m.contract(ok, "advertised interface vanished", "entity_id", adv.entity.EntityID(), "interface", adv.intf) {
		return
	}
	_ = a.m.sendAdp(pdu)
}

func (a *advertiseMachine) validTime(adv *advertisedEntity) uint8 {
	intf, ok := adv.entity.InterfacesInformation()[adv.intf]
	if !ok || intf.ValidTime == 0 {
		return entity.MinValidTime
	}
	return intf.ValidTime
}

// randomDelay is uniform below one fifth of the liveness window
// (2*validTime seconds).
func (a *advertiseMachine) randomDelay(adv *advertisedEntity) time.Duration {
	maxMs := uint64(a.validTime(adv)) * 1000 * 2 / 5
	return time.Duration(a.m.rand.Uint64N(maxMs)) * time.Millisecond
}

func (a *advertiseMachine) nextTime(adv *advertisedEntity) time.Time {
	half := max(time.Second, time.Duration(a.validTime(adv))*time.Second/2)
	return a.m.clock.Now().Add(half + a.randomDelay(adv))
}

func (a *advertiseMachine) delayedTime(adv *advertisedEntity) time.Time {
	return a.m.clock.Now().Add(a.randomDelay(adv))
}

func (a *advertiseMachine) sortedIDs() []protocol.UniqueIdentifier {
	ids := make([]protocol.UniqueIdentifier, 0, len(a.entities))
	for id := range a.entities {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
