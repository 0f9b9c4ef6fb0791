package statemachine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avbridge/avdecc-go/pkg/log"
	"github.com/avbridge/avdecc-go/pkg/protocol"
)

func TestNewManagerValidation(t *testing.T) {
	_, err := NewManager(Config{})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewManager(Config{Transport: &fakeTransport{}, TickInterval: -time.Second})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewManager(Config{
		Transport: &fakeTransport{},
		Command: CommandConfig{
			AecpOverrides: map[protocol.UniqueIdentifier]Window{remoteID: {}},
		},
	})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	m, err := NewManager(Config{Transport: &fakeTransport{}})
	require.NoError(t, err)
	assert.Equal(t, DefaultTickInterval, m.cfg.TickInterval)
	assert.Equal(t, DefaultCommandConfig().Aecp, m.cfg.Command.Aecp)
	assert.Empty(t, m.SessionID())
}

func TestConfigWindows(t *testing.T) {
	c := DefaultCommandConfig()
	c.AcmpOverrides = map[protocol.MacAddress]Window{remoteMac: {MaxInflight: 2}}

	assert.Equal(t, c.AcmpMulticast, c.acmpWindow(protocol.MulticastMacAddress))
	assert.Equal(t, c.AcmpUnicast, c.acmpWindow(otherMac))
	assert.Equal(t, 2, c.acmpWindow(remoteMac).MaxInflight)
	assert.Equal(t, c.Aecp, c.aecpWindow(remoteID))
}

func TestRegisterLocalEntity(t *testing.T) {
	env := newTestEnv(t)
	l := newLocalEntity(t, controllerID, localMac, 10)

	require.NoError(t, env.m.RegisterLocalEntity(l))
	assert.ErrorIs(t, env.m.RegisterLocalEntity(l), ErrDuplicateLocalEntityID)
	assert.True(t, env.m.IsLocalEntity(controllerID))

	require.NoError(t, env.m.UnregisterLocalEntity(controllerID))
	assert.ErrorIs(t, env.m.UnregisterLocalEntity(controllerID), ErrUnknownLocalEntity)

	assert.Equal(t, []string{
		ev("local online", controllerID),
		ev("local offline", controllerID),
	}, env.rec.Events())
}

func TestReentrantLock(t *testing.T) {
	env := newTestEnv(t)
	assert.False(t, env.m.IsSelfLocked())

	env.m.Lock()
	env.m.Lock()
	assert.True(t, env.m.IsSelfLocked())

	// Public calls work while the lock is held by this goroutine.
	env.registerController(t)

	env.m.Unlock()
	assert.True(t, env.m.IsSelfLocked())
	env.m.Unlock()
	assert.False(t, env.m.IsSelfLocked())
}

func TestLockExcludesOtherGoroutines(t *testing.T) {
	env := newTestEnv(t)
	env.m.Lock()

	done := make(chan struct{})
	go func() {
		env.m.Tick()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Tick ran while another goroutine held the lock")
	case <-time.After(50 * time.Millisecond):
	}
	env.m.Unlock()
	<-done
}

func TestInboundCommandsRouting(t *testing.T) {
	env := newTestEnv(t)
	env.registerController(t)

	toLocal := &protocol.Aecpdu{
		SrcAddress:         remoteMac,
		DestAddress:        localMac,
		MessageType:        protocol.AecpAemCommand,
		TargetEntityID:     controllerID,
		ControllerEntityID: remoteID,
		CommandType:        protocol.AemEntityAvailable,
	}
	env.m.ProcessAecp(toLocal)

	toOther := toLocal.Clone()
	toOther.TargetEntityID = otherID
	env.m.ProcessAecp(toOther)

	require.Len(t, env.rec.aecpCmds, 1)
	assert.Equal(t, controllerID, env.rec.aecpCmds[0].TargetEntityID)

	env.m.ProcessAcmp(&protocol.Acmpdu{
		SrcAddress:       remoteMac,
		DestAddress:      protocol.MulticastMacAddress,
		MessageType:      protocol.AcmpConnectTxCommand,
		TalkerEntityID:   controllerID,
		ListenerEntityID: remoteID,
	})
	assert.Len(t, env.rec.acmpCmds, 1)
}

type panickingInbound struct {
	NoopInboundDelegate
}

func (panickingInbound) OnAecpCommand(*protocol.Aecpdu) { panic("inbound bug") }

func TestProcessRecoversPanics(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.InboundDelegate = panickingInbound{} })
	env.registerController(t)

	assert.NotPanics(t, func() {
		env.m.ProcessAecp(&protocol.Aecpdu{
			MessageType:    protocol.AecpAemCommand,
			TargetEntityID: controllerID,
		})
	})
	assert.False(t, env.m.IsSelfLocked())
}

func TestStartStop(t *testing.T) {
	env := newTestEnv(t)
	l := newLocalEntity(t, controllerID, localMac, 10)
	require.NoError(t, env.m.RegisterLocalEntity(l))
	require.NoError(t, env.m.EnableEntityAdvertising(controllerID))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, env.m.Start(ctx))
	assert.ErrorIs(t, env.m.Start(ctx), ErrAlreadyStarted)

	require.NoError(t, env.clock.BlockUntilContext(ctx, 1))
	env.clock.Advance(DefaultTickInterval)

	assert.Eventually(t, func() bool {
		return len(availableFrames(env.tr)) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, env.m.Stop())
	assert.ErrorIs(t, env.m.Stop(), ErrNotStarted)

	// Restartable.
	require.NoError(t, env.m.Start(ctx))
	require.NoError(t, env.m.Stop())
}

func TestStopCompletesOutstandingCommands(t *testing.T) {
	env := newTestEnv(t)
	env.registerController(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, env.m.Start(ctx))

	var inflight, queued result[*protocol.Aecpdu]
	require.NoError(t, env.m.SendAecpCommand(aemCommand(remoteID, remoteMac), inflight.handle))
	require.NoError(t, env.m.SendAecpCommand(aemCommand(remoteID, remoteMac), queued.handle))

	require.NoError(t, env.m.Stop())

	for _, res := range []*result[*protocol.Aecpdu]{&inflight, &queued} {
		calls, _, err := res.get()
		assert.Equal(t, 1, calls)
		assert.ErrorIs(t, err, ErrUnknownLocalEntity)
	}

	// Entities stay registered; nothing fires twice.
	assert.True(t, env.m.IsLocalEntity(controllerID))
	env.clock.Advance(10 * time.Second)
	calls, _, _ := inflight.get()
	assert.Equal(t, 1, calls)
}

// memLogger keeps captured events in memory.
type memLogger struct {
	mu     sync.Mutex
	events []log.Event
}

func (l *memLogger) Log(e log.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *memLogger) find(fn func(log.Event) bool) []log.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []log.Event
	for _, e := range l.events {
		if fn(e) {
			out = append(out, e)
		}
	}
	return out
}

func TestProtocolCapture(t *testing.T) {
	capture := &memLogger{}
	env := newTestEnv(t, func(c *Config) { c.ProtocolLogger = capture })
	env.registerController(t)
	require.NotEmpty(t, env.m.SessionID())

	env.m.ProcessAdp(availableFrame(remoteID, remoteMac, 0, 1, 10))
	require.NoError(t, env.m.SendAecpCommand(aemCommand(remoteID, remoteMac), nil))
	env.advance(AecpAemCommandTimeout + time.Millisecond)

	inbound := capture.find(func(e log.Event) bool {
		return e.Direction == log.DirectionIn && e.Protocol == log.ProtocolADP
	})
	require.Len(t, inbound, 1)
	assert.Equal(t, "ENTITY_AVAILABLE", inbound[0].Frame.MessageType)
	assert.Equal(t, env.m.SessionID(), inbound[0].SessionID)

	online := capture.find(func(e log.Event) bool {
		return e.Category == log.CategoryState && e.RemoteEntityID == remoteID
	})
	require.Len(t, online, 1)
	assert.Equal(t, "ONLINE", online[0].StateChange.NewState)

	outbound := capture.find(func(e log.Event) bool {
		return e.Direction == log.DirectionOut && e.Protocol == log.ProtocolAECP
	})
	assert.Len(t, outbound, 2, "command and its retry")

	retries := capture.find(func(e log.Event) bool {
		return e.Statistic != nil && e.Statistic.Kind == log.StatisticRetry
	})
	assert.Len(t, retries, 1)
}

func TestContractDoesNotPanic(t *testing.T) {
	env := newTestEnv(t)
	assert.False(t, env.m.contract(false, "impossible", "key", 1))
	assert.True(t, env.m.contract(true, "fine"))
	assert.Equal(t, DefaultCommandTimeout, env.m.acmpCommandTimeout(&protocol.Acmpdu{MessageType: protocol.AcmpConnectTxResponse}))
}

func TestSendResponses(t *testing.T) {
	env := newTestEnv(t)

	cmd := aemCommand(controllerID, localMac)
	cmd.SrcAddress = remoteMac
	resp := cmd.MakeResponse(protocol.AemStatusSuccess)
	resp.SrcAddress = protocol.MacAddress{}
	require.NoError(t, env.m.SendAecpResponse(resp))

	sent := env.tr.sentAecp()
	require.Len(t, sent, 1)
	assert.Equal(t, localMac, sent[0].SrcAddress, "source filled from transport")
	assert.Equal(t, remoteMac, sent[0].DestAddress)
	assert.Empty(t, env.rec.Events(), "responses are not tracked")

	assert.ErrorIs(t, env.m.SendAecpResponse(cmd), ErrInvalidParameters)
	assert.ErrorIs(t, env.m.SendAecpResponse(nil), ErrInvalidParameters)

	acmp := &protocol.Acmpdu{MessageType: protocol.AcmpGetRxStateResponse, ListenerEntityID: controllerID}
	require.NoError(t, env.m.SendAcmpResponse(acmp))
	sentAcmp := env.tr.sentAcmp()
	require.Len(t, sentAcmp, 1)
	assert.Equal(t, protocol.MulticastMacAddress, sentAcmp[0].DestAddress)
	assert.ErrorIs(t, env.m.SendAcmpResponse(&protocol.Acmpdu{MessageType: protocol.AcmpGetRxStateCommand}), ErrInvalidParameters)

	env.tr.failAecp = errors.New("link down")
	assert.ErrorIs(t, env.m.SendAecpResponse(resp), ErrNetworkError)
}
