package statemachine

import (
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/avbridge/avdecc-go/pkg/entity"
	"github.com/avbridge/avdecc-go/pkg/protocol"
)

var (
	localMac  = protocol.MacAddress{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	remoteMac = protocol.MacAddress{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}
	otherMac  = protocol.MacAddress{0x02, 0x00, 0x00, 0x00, 0x00, 0x03}

	controllerID protocol.UniqueIdentifier = 0x0011223344550001
	remoteID     protocol.UniqueIdentifier = 0x0011223344550002
	otherID      protocol.UniqueIdentifier = 0x0011223344550003

	testEpoch = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
)

// fakeTransport records every frame sent through it.
type fakeTransport struct {
	mu   sync.Mutex
	mac  protocol.MacAddress
	adp  []*protocol.Adpdu
	aecp []*protocol.Aecpdu
	acmp []*protocol.Acmpdu

	failAdp  error
	failAecp error
	failAcmp error

	vuTimeout     time.Duration
	vuUnsolicited bool
	vuReceived    []*protocol.Aecpdu
}

func (t *fakeTransport) MacAddress() protocol.MacAddress { return t.mac }

func (t *fakeTransport) SendAdpMessage(pdu *protocol.Adpdu) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failAdp != nil {
		return t.failAdp
	}
	t.adp = append(t.adp, pdu.Clone())
	return nil
}

func (t *fakeTransport) SendAecpMessage(pdu *protocol.Aecpdu) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failAecp != nil {
		return t.failAecp
	}
	t.aecp = append(t.aecp, pdu.Clone())
	return nil
}

func (t *fakeTransport) SendAcmpMessage(pdu *protocol.Acmpdu) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failAcmp != nil {
		return t.failAcmp
	}
	t.acmp = append(t.acmp, pdu.Clone())
	return nil
}

func (t *fakeTransport) VendorCommandTimeout(protocol.VuProtocolIdentifier, *protocol.Aecpdu) time.Duration {
	return t.vuTimeout
}

func (t *fakeTransport) IsVuUnsolicitedResponse(protocol.VuProtocolIdentifier, *protocol.Aecpdu) bool {
	return t.vuUnsolicited
}

func (t *fakeTransport) OnVuUnsolicitedResponse(_ protocol.VuProtocolIdentifier, pdu *protocol.Aecpdu) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.vuReceived = append(t.vuReceived, pdu)
}

func (t *fakeTransport) sentAdp() []*protocol.Adpdu {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*protocol.Adpdu(nil), t.adp...)
}

func (t *fakeTransport) sentAecp() []*protocol.Aecpdu {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*protocol.Aecpdu(nil), t.aecp...)
}

func (t *fakeTransport) sentAcmp() []*protocol.Acmpdu {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*protocol.Acmpdu(nil), t.acmp...)
}

// recorder implements DiscoveryDelegate, CommandDelegate and
// InboundDelegate and records calls as short strings.
type recorder struct {
	mu      sync.Mutex
	events  []string
	remotes map[protocol.UniqueIdentifier]entity.Entity

	unsolicited []*protocol.Aecpdu
	identify    []*protocol.Aecpdu
	aecpCmds    []*protocol.Aecpdu
	acmpCmds    []*protocol.Acmpdu
	acmpResps   []*protocol.Acmpdu
}

func newRecorder() *recorder {
	return &recorder{remotes: make(map[protocol.UniqueIdentifier]entity.Entity)}
}

func ev(kind string, id protocol.UniqueIdentifier) string {
	return kind + " " + id.String()
}

func (r *recorder) add(kind string, id protocol.UniqueIdentifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev(kind, id))
}

func (r *recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

func (r *recorder) remote(id protocol.UniqueIdentifier) entity.Entity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remotes[id]
}

func (r *recorder) OnLocalEntityOnline(e entity.LocalEntity) { r.add("local online", e.EntityID()) }
func (r *recorder) OnLocalEntityOffline(id protocol.UniqueIdentifier) {
	r.add("local offline", id)
}
func (r *recorder) OnLocalEntityUpdated(e entity.LocalEntity) { r.add("local updated", e.EntityID()) }

func (r *recorder) OnRemoteEntityOnline(e entity.Entity) {
	r.mu.Lock()
	r.remotes[e.EntityID()] = e
	r.mu.Unlock()
	r.add("online", e.EntityID())
}

func (r *recorder) OnRemoteEntityOffline(id protocol.UniqueIdentifier) {
	r.mu.Lock()
	delete(r.remotes, id)
	r.mu.Unlock()
	r.add("offline", id)
}

func (r *recorder) OnRemoteEntityUpdated(e entity.Entity) {
	r.mu.Lock()
	r.remotes[e.EntityID()] = e
	r.mu.Unlock()
	r.add("updated", e.EntityID())
}

func (r *recorder) OnAecpAemUnsolicitedResponse(pdu *protocol.Aecpdu) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unsolicited = append(r.unsolicited, pdu)
}

func (r *recorder) OnAecpAemIdentifyNotification(pdu *protocol.Aecpdu) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.identify = append(r.identify, pdu)
}

func (r *recorder) OnAecpRetry(id protocol.UniqueIdentifier)   { r.add("retry", id) }
func (r *recorder) OnAecpTimeout(id protocol.UniqueIdentifier) { r.add("timeout", id) }
func (r *recorder) OnAecpUnexpectedResponse(id protocol.UniqueIdentifier) {
	r.add("unexpected", id)
}
func (r *recorder) OnAecpResponseTime(id protocol.UniqueIdentifier, _ time.Duration) {
	r.add("response time", id)
}

func (r *recorder) OnAecpCommand(pdu *protocol.Aecpdu) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aecpCmds = append(r.aecpCmds, pdu)
}

func (r *recorder) OnAcmpCommand(pdu *protocol.Acmpdu) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.acmpCmds = append(r.acmpCmds, pdu)
}

func (r *recorder) OnAcmpResponse(pdu *protocol.Acmpdu) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.acmpResps = append(r.acmpResps, pdu)
}

var (
	_ DiscoveryDelegate = (*recorder)(nil)
	_ CommandDelegate   = (*recorder)(nil)
	_ InboundDelegate   = (*recorder)(nil)
	_ Transport         = (*fakeTransport)(nil)
)

type testEnv struct {
	m     *Manager
	tr    *fakeTransport
	rec   *recorder
	clock *clockwork.FakeClock
}

func newTestEnv(t *testing.T, mutate ...func(*Config)) *testEnv {
	t.Helper()
	env := &testEnv{
		tr:    &fakeTransport{mac: localMac},
		rec:   newRecorder(),
		clock: clockwork.NewFakeClockAt(testEpoch),
	}
	cfg := DefaultConfig()
	cfg.Transport = env.tr
	cfg.Clock = env.clock
	cfg.Rand = rand.New(rand.NewPCG(1, 2))
	cfg.DiscoveryDelegate = env.rec
	cfg.CommandDelegate = env.rec
	cfg.InboundDelegate = env.rec
	for _, fn := range mutate {
		fn(&cfg)
	}
	m, err := NewManager(cfg)
	require.NoError(t, err)
	env.m = m
	return env
}

// advance moves the fake clock and runs one periodic pass.
func (e *testEnv) advance(d time.Duration) {
	e.clock.Advance(d)
	e.m.Tick()
}

func newLocalEntity(t *testing.T, id protocol.UniqueIdentifier, mac protocol.MacAddress, validTime uint8) *entity.Local {
	t.Helper()
	l, err := entity.NewLocal(entity.CommonInformation{
		EntityID:               id,
		EntityModelID:          0x0011220000000001,
		EntityCapabilities:     protocol.EntityCapAemSupported,
		ControllerCapabilities: protocol.ControllerCapImplemented,
	}, map[protocol.AvbInterfaceIndex]entity.InterfaceInformation{
		0: {MacAddress: mac, ValidTime: validTime},
	})
	require.NoError(t, err)
	return l
}

func (e *testEnv) registerController(t *testing.T) *entity.Local {
	t.Helper()
	l := newLocalEntity(t, controllerID, localMac, 10)
	require.NoError(t, e.m.RegisterLocalEntity(l))
	e.rec.reset()
	return l
}

func availableFrame(id protocol.UniqueIdentifier, mac protocol.MacAddress, idx protocol.AvbInterfaceIndex, availableIndex uint32, validTime uint8) *protocol.Adpdu {
	return &protocol.Adpdu{
		SrcAddress:          mac,
		DestAddress:         protocol.MulticastMacAddress,
		MessageType:         protocol.AdpEntityAvailable,
		ValidTime:           validTime,
		EntityID:            id,
		EntityModelID:       0x0011220000000002,
		EntityCapabilities:  protocol.EntityCapAemSupported | protocol.EntityCapAemInterfaceIndexValid,
		TalkerStreamSources: 2,
		TalkerCapabilities:  protocol.TalkerCapImplemented,
		AvailableIndex:      availableIndex,
		InterfaceIndex:      idx,
	}
}

func aemCommand(target protocol.UniqueIdentifier, dest protocol.MacAddress) *protocol.Aecpdu {
	return &protocol.Aecpdu{
		DestAddress:        dest,
		MessageType:        protocol.AecpAemCommand,
		TargetEntityID:     target,
		ControllerEntityID: controllerID,
		CommandType:        protocol.AemReadDescriptor,
	}
}

// result collects handler invocations.
type result[F any] struct {
	mu    sync.Mutex
	calls int
	resp  F
	err   error
}

func (r *result[F]) handle(resp F, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.resp = resp
	r.err = err
}

func (r *result[F]) get() (int, F, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls, r.resp, r.err
}
