package endstation

import (
	"time"

	"github.com/avbridge/avdecc-go/pkg/entity"
	"github.com/avbridge/avdecc-go/pkg/protocol"
	"github.com/avbridge/avdecc-go/pkg/statemachine"
)

// The end station is the engine's delegate for discovery and command
// notifications; they are turned into Events and Statistics.
var (
	_ statemachine.DiscoveryDelegate = (*EndStation)(nil)
	_ statemachine.CommandDelegate   = (*EndStation)(nil)
	_ statemachine.InboundDelegate   = (*EndStation)(nil)
)

func (es *EndStation) OnLocalEntityOnline(e entity.LocalEntity) {
	es.emit(Event{Type: EventLocalEntityOnline, EntityID: e.EntityID()})
}

func (es *EndStation) OnLocalEntityOffline(id protocol.UniqueIdentifier) {
	es.emit(Event{Type: EventLocalEntityOffline, EntityID: id})
}

// OnLocalEntityUpdated is not surfaced as an event.
func (es *EndStation) OnLocalEntityUpdated(entity.LocalEntity) {}

func (es *EndStation) OnRemoteEntityOnline(e entity.Entity) {
	es.logger.Debug("entity online", "entity_id", e.EntityID())
	es.emit(Event{Type: EventEntityOnline, EntityID: e.EntityID(), Entity: &e})
}

func (es *EndStation) OnRemoteEntityOffline(id protocol.UniqueIdentifier) {
	es.logger.Debug("entity offline", "entity_id", id)
	es.emit(Event{Type: EventEntityOffline, EntityID: id})
}

func (es *EndStation) OnRemoteEntityUpdated(e entity.Entity) {
	es.emit(Event{Type: EventEntityUpdated, EntityID: e.EntityID(), Entity: &e})
}

func (es *EndStation) OnAecpAemUnsolicitedResponse(pdu *protocol.Aecpdu) {
	es.emit(Event{Type: EventUnsolicitedResponse, EntityID: pdu.TargetEntityID, Aecp: pdu})
}

func (es *EndStation) OnAecpAemIdentifyNotification(pdu *protocol.Aecpdu) {
	es.emit(Event{Type: EventIdentify, EntityID: pdu.TargetEntityID, Aecp: pdu})
}

func (es *EndStation) OnAecpRetry(protocol.UniqueIdentifier) {
	es.mu.Lock()
	defer es.mu.Unlock()
	es.stats.Retries++
}

func (es *EndStation) OnAecpTimeout(id protocol.UniqueIdentifier) {
	es.mu.Lock()
	es.stats.Timeouts++
	es.mu.Unlock()
	es.logger.Debug("aecp command timed out", "entity_id", id)
}

func (es *EndStation) OnAecpUnexpectedResponse(protocol.UniqueIdentifier) {
	es.mu.Lock()
	defer es.mu.Unlock()
	es.stats.UnexpectedResponses++
}

func (es *EndStation) OnAecpResponseTime(_ protocol.UniqueIdentifier, d time.Duration) {
	es.mu.Lock()
	defer es.mu.Unlock()
	es.stats.Responses++
	es.stats.TotalResponseTime += d
}
