package statemachine

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/avbridge/avdecc-go/pkg/protocol"
)

func TestAecpCommandResponse(t *testing.T) {
	env := newTestEnv(t)
	env.registerController(t)

	var res result[*protocol.Aecpdu]
	require.NoError(t, env.m.SendAecpCommand(aemCommand(remoteID, remoteMac), res.handle))

	sent := env.tr.sentAecp()
	require.Len(t, sent, 1)
	assert.Equal(t, protocol.AecpSequenceID(0), sent[0].SequenceID)
	assert.Equal(t, localMac, sent[0].SrcAddress)

	env.clock.Advance(20 * time.Millisecond)
	env.m.ProcessAecp(sent[0].MakeResponse(protocol.AemStatusSuccess))

	calls, resp, err := res.get()
	assert.Equal(t, 1, calls)
	require.NoError(t, err)
	assert.Equal(t, protocol.AecpAemResponse, resp.MessageType)
	assert.Equal(t, []string{ev("response time", remoteID)}, env.rec.Events())

	// A duplicate response is unexpected and does not call the handler again.
	env.m.ProcessAecp(sent[0].MakeResponse(protocol.AemStatusSuccess))
	calls, _, _ = res.get()
	assert.Equal(t, 1, calls)
	assert.Equal(t, ev("unexpected", remoteID), env.rec.Events()[1])
}

func TestAecpSequenceIDsIncrement(t *testing.T) {
	env := newTestEnv(t)
	env.registerController(t)

	for range 3 {
		require.NoError(t, env.m.SendAecpCommand(aemCommand(remoteID, remoteMac), nil))
		env.advance(2 * time.Millisecond)
	}
	sent := env.tr.sentAecp()
	require.Len(t, sent, 3)
	for i, pdu := range sent {
		assert.Equal(t, protocol.AecpSequenceID(i), pdu.SequenceID)
	}
}

func TestAecpSubmitDoesNotModifyCallerFrame(t *testing.T) {
	env := newTestEnv(t)
	env.registerController(t)

	cmd := aemCommand(remoteID, remoteMac)
	cmd.SequenceID = 77
	require.NoError(t, env.m.SendAecpCommand(cmd, nil))
	assert.Equal(t, protocol.AecpSequenceID(77), cmd.SequenceID)
	assert.True(t, cmd.SrcAddress.IsZero())
}

func TestAecpRetryThenTimeout(t *testing.T) {
	env := newTestEnv(t)
	env.registerController(t)

	var res result[*protocol.Aecpdu]
	require.NoError(t, env.m.SendAecpCommand(aemCommand(remoteID, remoteMac), res.handle))

	env.advance(AecpAemCommandTimeout)
	assert.Len(t, env.tr.sentAecp(), 1, "deadline not yet passed")

	env.advance(time.Millisecond)
	sent := env.tr.sentAecp()
	require.Len(t, sent, 2)
	assert.Equal(t, sent[0], sent[1], "resend must be the identical frame")
	calls, _, _ := res.get()
	assert.Equal(t, 0, calls)

	env.advance(AecpAemCommandTimeout + time.Millisecond)
	calls, _, err := res.get()
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, ErrTimeout)

	env.advance(time.Second)
	calls, _, _ = res.get()
	assert.Equal(t, 1, calls)
	assert.Len(t, env.tr.sentAecp(), 2)
	assert.Equal(t, []string{ev("retry", remoteID), ev("timeout", remoteID)}, env.rec.Events())

	// The late response is only a statistic.
	env.m.ProcessAecp(sent[0].MakeResponse(protocol.AemStatusSuccess))
	calls, _, _ = res.get()
	assert.Equal(t, 1, calls)
	assert.Equal(t, ev("unexpected", remoteID), env.rec.Events()[2])
}

func TestAecpResponseAfterRetry(t *testing.T) {
	env := newTestEnv(t)
	env.registerController(t)

	var res result[*protocol.Aecpdu]
	require.NoError(t, env.m.SendAecpCommand(aemCommand(remoteID, remoteMac), res.handle))
	env.advance(AecpAemCommandTimeout + time.Millisecond)

	env.m.ProcessAecp(env.tr.sentAecp()[1].MakeResponse(protocol.AemStatusSuccess))
	calls, _, err := res.get()
	assert.Equal(t, 1, calls)
	assert.NoError(t, err)
}

func TestAecpInProgressRearmsTimeout(t *testing.T) {
	env := newTestEnv(t)
	env.registerController(t)

	var res result[*protocol.Aecpdu]
	require.NoError(t, env.m.SendAecpCommand(aemCommand(remoteID, remoteMac), res.handle))
	cmd := env.tr.sentAecp()[0]

	env.advance(200 * time.Millisecond)
	env.m.ProcessAecp(cmd.MakeResponse(protocol.AemStatusInProgress))
	calls, _, _ := res.get()
	assert.Equal(t, 0, calls)

	// Past the original deadline but within the re-armed one.
	env.advance(200 * time.Millisecond)
	assert.Len(t, env.tr.sentAecp(), 1)

	env.m.ProcessAecp(cmd.MakeResponse(protocol.AemStatusSuccess))
	calls, resp, err := res.get()
	assert.Equal(t, 1, calls)
	require.NoError(t, err)
	assert.Equal(t, protocol.AemStatusSuccess, resp.Status)
}

func TestAecpMisdirectedResponseIgnored(t *testing.T) {
	env := newTestEnv(t)
	env.registerController(t)

	var res result[*protocol.Aecpdu]
	require.NoError(t, env.m.SendAecpCommand(aemCommand(remoteID, remoteMac), res.handle))
	cmd := env.tr.sentAecp()[0]

	bogus := cmd.MakeResponse(protocol.AemStatusSuccess)
	bogus.SrcAddress = otherMac
	env.m.ProcessAecp(bogus)
	calls, _, _ := res.get()
	assert.Equal(t, 0, calls)
	assert.Empty(t, env.rec.Events())

	env.m.ProcessAecp(cmd.MakeResponse(protocol.AemStatusSuccess))
	calls, _, _ = res.get()
	assert.Equal(t, 1, calls)
}

func TestAecpWindowOfOnePreservesOrder(t *testing.T) {
	env := newTestEnv(t, func(c *Config) {
		c.Command.Aecp = Window{MaxInflight: 1, SendInterval: time.Millisecond}
	})
	env.registerController(t)

	var order []string
	first := aemCommand(remoteID, remoteMac)
	first.CommandType = protocol.AemAcquireEntity
	second := aemCommand(remoteID, remoteMac)
	second.CommandType = protocol.AemLockEntity

	require.NoError(t, env.m.SendAecpCommand(first, func(*protocol.Aecpdu, error) { order = append(order, "first") }))
	require.NoError(t, env.m.SendAecpCommand(second, func(*protocol.Aecpdu, error) { order = append(order, "second") }))

	env.advance(10 * time.Millisecond)
	sent := env.tr.sentAecp()
	require.Len(t, sent, 1)
	assert.Equal(t, protocol.AemAcquireEntity, sent[0].CommandType)

	env.m.ProcessAecp(sent[0].MakeResponse(protocol.AemStatusSuccess))
	sent = env.tr.sentAecp()
	require.Len(t, sent, 2)
	assert.Equal(t, protocol.AemLockEntity, sent[1].CommandType)

	env.m.ProcessAecp(sent[1].MakeResponse(protocol.AemStatusSuccess))
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestAecpWindowAdmitsAfterTimeout(t *testing.T) {
	env := newTestEnv(t, func(c *Config) {
		c.Command.AecpOverrides = map[protocol.UniqueIdentifier]Window{remoteID: {MaxInflight: 1}}
	})
	env.registerController(t)

	var a, b result[*protocol.Aecpdu]
	require.NoError(t, env.m.SendAecpCommand(aemCommand(remoteID, remoteMac), a.handle))
	require.NoError(t, env.m.SendAecpCommand(aemCommand(remoteID, remoteMac), b.handle))

	env.advance(AecpAemCommandTimeout + time.Millisecond) // retry of a
	env.advance(AecpAemCommandTimeout + time.Millisecond) // timeout of a, b admitted

	calls, _, err := a.get()
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, ErrTimeout)

	sent := env.tr.sentAecp()
	require.Len(t, sent, 3)
	assert.Equal(t, protocol.AecpSequenceID(1), sent[2].SequenceID)
}

func TestAecpWindowsAreIndependentPerDestination(t *testing.T) {
	env := newTestEnv(t, func(c *Config) {
		c.Command.Aecp = Window{MaxInflight: 1, SendInterval: 0}
	})
	env.registerController(t)

	env.clock.Advance(time.Millisecond)
	require.NoError(t, env.m.SendAecpCommand(aemCommand(remoteID, remoteMac), nil))
	require.NoError(t, env.m.SendAecpCommand(aemCommand(remoteID, remoteMac), nil))
	require.NoError(t, env.m.SendAecpCommand(aemCommand(otherID, otherMac), nil))

	sent := env.tr.sentAecp()
	require.Len(t, sent, 2)
	assert.Equal(t, remoteID, sent[0].TargetEntityID)
	assert.Equal(t, otherID, sent[1].TargetEntityID)

	inflight, queued := env.m.commands.aecpLoad(controllerID, remoteID)
	assert.Equal(t, 1, inflight)
	assert.Equal(t, 1, queued)
}

func TestAecpSendIntervalIsStrict(t *testing.T) {
	env := newTestEnv(t, func(c *Config) {
		c.Command.Aecp = Window{MaxInflight: 10, SendInterval: 5 * time.Millisecond}
	})
	env.registerController(t)

	require.NoError(t, env.m.SendAecpCommand(aemCommand(remoteID, remoteMac), nil))
	require.NoError(t, env.m.SendAecpCommand(aemCommand(remoteID, remoteMac), nil))
	assert.Len(t, env.tr.sentAecp(), 1)

	env.advance(5 * time.Millisecond)
	assert.Len(t, env.tr.sentAecp(), 1)

	env.advance(time.Millisecond)
	assert.Len(t, env.tr.sentAecp(), 2)
}

func TestAecpSendFailureIsDeferred(t *testing.T) {
	env := newTestEnv(t)
	env.registerController(t)
	boom := errors.New("boom")
	env.tr.failAecp = boom

	var res result[*protocol.Aecpdu]
	require.NoError(t, env.m.SendAecpCommand(aemCommand(remoteID, remoteMac), res.handle))
	calls, _, _ := res.get()
	assert.Equal(t, 0, calls, "errors are not reported from inside submission")

	env.m.Tick()
	calls, _, err := res.get()
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, ErrNetworkError)
	assert.ErrorIs(t, err, boom)

	env.advance(time.Second)
	calls, _, _ = res.get()
	assert.Equal(t, 1, calls)
}

func TestAecpResendFailureIsTerminal(t *testing.T) {
	env := newTestEnv(t)
	env.registerController(t)

	var res result[*protocol.Aecpdu]
	require.NoError(t, env.m.SendAecpCommand(aemCommand(remoteID, remoteMac), res.handle))
	env.tr.failAecp = errors.New("cable unplugged")

	env.advance(AecpAemCommandTimeout + time.Millisecond)
	calls, _, err := res.get()
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, ErrNetworkError)

	env.advance(time.Second)
	calls, _, _ = res.get()
	assert.Equal(t, 1, calls)
	assert.NotContains(t, env.rec.Events(), ev("retry", remoteID), "a failed resend is not a retry")
}

func TestAecpUnknownController(t *testing.T) {
	env := newTestEnv(t)

	err := env.m.SendAecpCommand(aemCommand(remoteID, remoteMac), nil)
	assert.ErrorIs(t, err, ErrInvalidEntityType)
	assert.Empty(t, env.tr.sentAecp())
}

func TestAecpInvalidParameters(t *testing.T) {
	env := newTestEnv(t)
	env.registerController(t)

	assert.ErrorIs(t, env.m.SendAecpCommand(nil, nil), ErrInvalidParameters)
	assert.ErrorIs(t, env.m.SendAecpCommand(aemCommand(remoteID, protocol.MacAddress{}), nil), ErrInvalidParameters)

	resp := aemCommand(remoteID, remoteMac)
	resp.MessageType = protocol.AecpAemResponse
	assert.ErrorIs(t, env.m.SendAecpCommand(resp, nil), ErrInvalidParameters)
}

func TestUnregisterPurgesCommands(t *testing.T) {
	env := newTestEnv(t)
	env.registerController(t)

	var inflight, queued result[*protocol.Aecpdu]
	var acmp result[*protocol.Acmpdu]
	require.NoError(t, env.m.SendAecpCommand(aemCommand(remoteID, remoteMac), inflight.handle))
	require.NoError(t, env.m.SendAecpCommand(aemCommand(remoteID, remoteMac), queued.handle))
	require.NoError(t, env.m.SendAcmpCommand(&protocol.Acmpdu{
		MessageType:        protocol.AcmpGetRxStateCommand,
		ControllerEntityID: controllerID,
		ListenerEntityID:   remoteID,
	}, acmp.handle))

	require.NoError(t, env.m.UnregisterLocalEntity(controllerID))
	calls, _, _ := inflight.get()
	assert.Equal(t, 0, calls)

	env.m.Tick()
	for _, r := range []*result[*protocol.Aecpdu]{&inflight, &queued} {
		calls, _, err := r.get()
		assert.Equal(t, 1, calls)
		assert.ErrorIs(t, err, ErrUnknownLocalEntity)
	}
	calls, _, err := acmp.get()
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, ErrUnknownLocalEntity)

	// Nothing fires twice, even on a late response.
	env.m.ProcessAecp(env.tr.sentAecp()[0].MakeResponse(protocol.AemStatusSuccess))
	env.advance(time.Second)
	calls, _, _ = inflight.get()
	assert.Equal(t, 1, calls)
	assert.Equal(t, []string{ev("local offline", controllerID)}, env.rec.Events())

	assert.ErrorIs(t, env.m.SendAecpCommand(aemCommand(remoteID, remoteMac), nil), ErrInvalidEntityType)
}

func TestRemoteOfflinePurgesCommands(t *testing.T) {
	env := newTestEnv(t)
	env.registerController(t)
	env.m.ProcessAdp(availableFrame(remoteID, remoteMac, 0, 1, 10))

	var toRemote, toOther result[*protocol.Aecpdu]
	require.NoError(t, env.m.SendAecpCommand(aemCommand(remoteID, remoteMac), toRemote.handle))
	require.NoError(t, env.m.SendAecpCommand(aemCommand(otherID, otherMac), toOther.handle))

	require.NoError(t, env.m.ForgetRemoteEntity(remoteID))
	env.m.Tick()

	calls, _, err := toRemote.get()
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, ErrUnknownRemoteEntity)

	calls, _, _ = toOther.get()
	assert.Equal(t, 0, calls)
}

func TestAecpUnsolicitedResponses(t *testing.T) {
	env := newTestEnv(t)
	env.registerController(t)

	unsolicited := &protocol.Aecpdu{
		SrcAddress:         remoteMac,
		DestAddress:        localMac,
		MessageType:        protocol.AecpAemResponse,
		TargetEntityID:     remoteID,
		ControllerEntityID: controllerID,
		SequenceID:         12,
		Unsolicited:        true,
	}
	env.m.ProcessAecp(unsolicited)

	identify := unsolicited.Clone()
	identify.ControllerEntityID = protocol.IdentifyControllerEntityID
	identify.DestAddress = protocol.IdentifyMacAddress
	env.m.ProcessAecp(identify)

	assert.Len(t, env.rec.unsolicited, 1)
	assert.Len(t, env.rec.identify, 1)
	assert.Empty(t, env.rec.Events(), "unsolicited responses are not unexpected")
}

func TestVendorUniqueUnsolicitedResponse(t *testing.T) {
	env := newTestEnv(t)
	env.registerController(t)
	env.tr.vuUnsolicited = true

	env.m.ProcessAecp(&protocol.Aecpdu{
		SrcAddress:         remoteMac,
		MessageType:        protocol.AecpVendorUniqueResp,
		TargetEntityID:     remoteID,
		ControllerEntityID: controllerID,
		ProtocolIdentifier: 0x001B92FFFF01,
	})
	assert.Len(t, env.tr.vuReceived, 1)
}

func TestVendorUniqueCommandTimeout(t *testing.T) {
	env := newTestEnv(t)
	env.registerController(t)
	env.tr.vuTimeout = time.Second

	var res result[*protocol.Aecpdu]
	require.NoError(t, env.m.SendAecpCommand(&protocol.Aecpdu{
		DestAddress:        remoteMac,
		MessageType:        protocol.AecpVendorUniqueCmd,
		TargetEntityID:     remoteID,
		ControllerEntityID: controllerID,
		ProtocolIdentifier: 0x001B92FFFF01,
	}, res.handle))

	env.advance(500 * time.Millisecond)
	assert.Len(t, env.tr.sentAecp(), 1)
	env.advance(501 * time.Millisecond)
	assert.Len(t, env.tr.sentAecp(), 2)
}

func TestAcmpCommandResponse(t *testing.T) {
	env := newTestEnv(t)
	env.registerController(t)

	var res result[*protocol.Acmpdu]
	require.NoError(t, env.m.SendAcmpCommand(&protocol.Acmpdu{
		MessageType:        protocol.AcmpConnectRxCommand,
		ControllerEntityID: controllerID,
		TalkerEntityID:     otherID,
		ListenerEntityID:   remoteID,
	}, res.handle))

	sent := env.tr.sentAcmp()
	require.Len(t, sent, 1)
	assert.Equal(t, protocol.MulticastMacAddress, sent[0].DestAddress)

	// The talker's answer to the listener carries our controller id and
	// sequence id but is not our response.
	txResp := sent[0].Clone()
	txResp.MessageType = protocol.AcmpConnectTxResponse
	txResp.SrcAddress = otherMac
	env.m.ProcessAcmp(txResp)
	calls, _, _ := res.get()
	assert.Equal(t, 0, calls)

	env.m.ProcessAcmp(sent[0].MakeResponse(remoteMac, protocol.AcmpStatusSuccess))
	calls, resp, err := res.get()
	assert.Equal(t, 1, calls)
	require.NoError(t, err)
	assert.Equal(t, protocol.AcmpConnectRxResponse, resp.MessageType)
	assert.Len(t, env.rec.acmpResps, 2, "all ACMP responses are forwarded")
}

func TestAcmpUnicastCommandMatchesMulticastResponse(t *testing.T) {
	env := newTestEnv(t)
	env.registerController(t)

	var res result[*protocol.Acmpdu]
	require.NoError(t, env.m.SendAcmpCommand(&protocol.Acmpdu{
		DestAddress:        remoteMac,
		MessageType:        protocol.AcmpGetRxStateCommand,
		ControllerEntityID: controllerID,
		ListenerEntityID:   remoteID,
	}, res.handle))

	sent := env.tr.sentAcmp()
	require.Len(t, sent, 1)
	assert.Equal(t, remoteMac, sent[0].DestAddress)

	resp := sent[0].MakeResponse(remoteMac, protocol.AcmpStatusSuccess)
	require.Equal(t, protocol.MulticastMacAddress, resp.DestAddress)
	env.m.ProcessAcmp(resp)

	calls, got, err := res.get()
	assert.Equal(t, 1, calls)
	require.NoError(t, err)
	assert.Equal(t, protocol.AcmpGetRxStateResponse, got.MessageType)

	// Nothing left inflight: no resend, no late timeout.
	env.advance(AcmpGetRxStateCommandTimeout + time.Millisecond)
	env.advance(AcmpGetRxStateCommandTimeout + time.Millisecond)
	assert.Len(t, env.tr.sentAcmp(), 1)
	calls, _, _ = res.get()
	assert.Equal(t, 1, calls)
}

func TestAcmpTimeoutUsesTable(t *testing.T) {
	env := newTestEnv(t)
	env.registerController(t)

	var res result[*protocol.Acmpdu]
	require.NoError(t, env.m.SendAcmpCommand(&protocol.Acmpdu{
		MessageType:        protocol.AcmpConnectRxCommand,
		ControllerEntityID: controllerID,
	}, res.handle))

	env.advance(AcmpConnectRxCommandTimeout)
	assert.Len(t, env.tr.sentAcmp(), 1)
	env.advance(time.Millisecond)
	assert.Len(t, env.tr.sentAcmp(), 2)
	env.advance(AcmpConnectRxCommandTimeout + time.Millisecond)

	calls, _, err := res.get()
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Empty(t, env.rec.Events(), "ACMP has no AECP statistics")
}

func TestHandlerMayResubmit(t *testing.T) {
	env := newTestEnv(t)
	env.registerController(t)

	var follow result[*protocol.Aecpdu]
	var locked bool
	require.NoError(t, env.m.SendAecpCommand(aemCommand(remoteID, remoteMac), func(*protocol.Aecpdu, error) {
		locked = env.m.IsSelfLocked()
		_ = env.m.SendAecpCommand(aemCommand(remoteID, remoteMac), follow.handle)
	}))

	env.clock.Advance(5 * time.Millisecond)
	env.m.ProcessAecp(env.tr.sentAecp()[0].MakeResponse(protocol.AemStatusSuccess))

	assert.True(t, locked)
	sent := env.tr.sentAecp()
	require.Len(t, sent, 2)
	assert.Equal(t, protocol.AecpSequenceID(1), sent[1].SequenceID)

	env.m.ProcessAecp(sent[1].MakeResponse(protocol.AemStatusSuccess))
	calls, _, _ := follow.get()
	assert.Equal(t, 1, calls)
}

func TestHandlerPanicIsContained(t *testing.T) {
	env := newTestEnv(t)
	env.registerController(t)

	require.NoError(t, env.m.SendAecpCommand(aemCommand(remoteID, remoteMac), func(*protocol.Aecpdu, error) {
		panic("handler bug")
	}))
	assert.NotPanics(t, func() {
		env.m.ProcessAecp(env.tr.sentAecp()[0].MakeResponse(protocol.AemStatusSuccess))
	})
	assert.False(t, env.m.IsSelfLocked())

	// The engine keeps working.
	var res result[*protocol.Aecpdu]
	require.NoError(t, env.m.SendAecpCommand(aemCommand(remoteID, remoteMac), res.handle))
	env.advance(2 * time.Millisecond)
	env.m.ProcessAecp(env.tr.sentAecp()[1].MakeResponse(protocol.AemStatusSuccess))
	calls, _, _ := res.get()
	assert.Equal(t, 1, calls)
}

type mockCommandDelegate struct {
	NoopCommandDelegate
	mock.Mock
}

func (m *mockCommandDelegate) OnAecpRetry(id protocol.UniqueIdentifier)   { m.Called(id) }
func (m *mockCommandDelegate) OnAecpTimeout(id protocol.UniqueIdentifier) { m.Called(id) }

func TestCommandStatisticsDelegate(t *testing.T) {
	stats := &mockCommandDelegate{}
	stats.On("OnAecpRetry", remoteID).Once()
	stats.On("OnAecpTimeout", remoteID).Once()

	env := newTestEnv(t, func(c *Config) { c.CommandDelegate = stats })
	env.registerController(t)

	require.NoError(t, env.m.SendAecpCommand(aemCommand(remoteID, remoteMac), nil))
	for range 4 {
		env.advance(AecpAemCommandTimeout + time.Millisecond)
	}
	stats.AssertExpectations(t)
}
