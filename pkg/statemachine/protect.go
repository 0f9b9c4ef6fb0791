package statemachine

import (
	"fmt"
	"runtime/debug"
	"time"

	"github.com/avbridge/avdecc-go/pkg/log"
	"github.com/avbridge/avdecc-go/pkg/protocol"
)

// protect runs fn and recovers any panic, logging it with what.
func (m *Manager) protect(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("recovered panic", "context", what, "panic", r, "stack", string(debug.Stack()))
			m.logError(log.ProtocolNone, what, fmt.Errorf("panic: %v", r))
		}
	}()
	fn()
}

// contract logs a warning when ok is false and returns ok. It is used for
// conditions that cannot happen unless the engine or a caller is broken.
func (m *Manager) contract(ok bool, msg string, args ...any) bool {
	if !ok {
		m.logger.Warn("contract check failed: "+msg, args...)
	}
	return ok
}

func (m *Manager) capturing() bool {
	return m.capture != nil
}

func (m *Manager) logFrame(dir log.Direction, proto log.Protocol, local, remote protocol.UniqueIdentifier, frame func() *log.FrameEvent) {
	if !m.capturing() {
		return
	}
	m.capture.Log(log.Event{
		Timestamp:      m.clock.Now(),
		Direction:      dir,
		Protocol:       proto,
		Category:       log.CategoryMessage,
		LocalEntityID:  local,
		RemoteEntityID: remote,
		Frame:          frame(),
	})
}

func (m *Manager) logState(kind log.StateEntity, id protocol.UniqueIdentifier, oldState, newState, reason string) {
	m.logger.Debug("entity state", "kind", kind, "entity_id", id, "old", oldState, "new", newState, "reason", reason)
	if !m.capturing() {
		return
	}
	ev := log.Event{
		Timestamp: m.clock.Now(),
		Direction: log.DirectionInternal,
		Protocol:  log.ProtocolADP,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   kind,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	}
	if kind == log.StateEntityRemote {
		ev.RemoteEntityID = id
	} else {
		ev.LocalEntityID = id
	}
	m.capture.Log(ev)
}

func (m *Manager) logStatistic(proto log.Protocol, local, remote protocol.UniqueIdentifier, kind log.StatisticKind, seq uint16, responseTime *time.Duration) {
	if !m.capturing() {
		return
	}
	m.capture.Log(log.Event{
		Timestamp:      m.clock.Now(),
		Direction:      log.DirectionInternal,
		Protocol:       proto,
		Category:       log.CategoryStatistic,
		LocalEntityID:  local,
		RemoteEntityID: remote,
		Statistic: &log.StatisticEvent{
			Kind:         kind,
			SequenceID:   seq,
			ResponseTime: responseTime,
		},
	})
}

func (m *Manager) logError(proto log.Protocol, what string, err error) {
	if !m.capturing() {
		return
	}
	m.capture.Log(log.Event{
		Timestamp: m.clock.Now(),
		Direction: log.DirectionInternal,
		Protocol:  proto,
		Category:  log.CategoryError,
		Error: &log.ErrorEventData{
			Message: err.Error(),
			Context: what,
		},
	})
}

// sendAdp, sendAecp and sendAcmp send through the transport and capture
// the frame.
func (m *Manager) sendAdp(pdu *protocol.Adpdu) error {
	err := m.transport.SendAdpMessage(pdu)
	m.logFrame(log.DirectionOut, log.ProtocolADP, pdu.EntityID, 0, func() *log.FrameEvent { return log.AdpFrame(pdu) })
	if err != nil {
		m.logger.Debug("send failed", "protocol", "ADP", "message_type", pdu.MessageType, "error", err)
		m.logError(log.ProtocolADP, "send "+pdu.MessageType.String(), err)
	}
	return err
}

func (m *Manager) sendAecp(pdu *protocol.Aecpdu) error {
	err := m.transport.SendAecpMessage(pdu)
	m.logFrame(log.DirectionOut, log.ProtocolAECP, pdu.ControllerEntityID, pdu.TargetEntityID, func() *log.FrameEvent { return log.AecpFrame(pdu) })
	if err != nil {
		m.logger.Debug("send failed", "protocol", "AECP", "message_type", pdu.MessageType, "seq", pdu.SequenceID, "error", err)
		m.logError(log.ProtocolAECP, "send "+pdu.MessageType.String(), err)
	}
	return err
}

func (m *Manager) sendAcmp(pdu *protocol.Acmpdu) error {
	err := m.transport.SendAcmpMessage(pdu)
	m.logFrame(log.DirectionOut, log.ProtocolACMP, pdu.ControllerEntityID, 0, func() *log.FrameEvent { return log.AcmpFrame(pdu) })
	if err != nil {
		m.logger.Debug("send failed", "protocol", "ACMP", "message_type", pdu.MessageType, "seq", pdu.SequenceID, "error", err)
		m.logError(log.ProtocolACMP, "send "+pdu.MessageType.String(), err)
	}
	return err
}
