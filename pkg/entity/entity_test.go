package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avbridge/avdecc-go/pkg/protocol"
)

var testMac = protocol.MacAddress{0x02, 0, 0, 0, 0, 0x01}

func newTestLocal(t *testing.T) *Local {
	t.Helper()
	l, err := NewLocal(CommonInformation{
		EntityID:               0x0001020304050607,
		EntityModelID:          0x0001020304050000,
		ControllerCapabilities: protocol.ControllerCapImplemented,
		IdentifyControlIndex:   Ptr(protocol.ControlIndex(3)),
	}, map[protocol.AvbInterfaceIndex]InterfaceInformation{
		0: {MacAddress: testMac, ValidTime: 10},
	})
	require.NoError(t, err)
	return l
}

func TestNewLocalValidation(t *testing.T) {
	_, err := NewLocal(CommonInformation{}, map[protocol.AvbInterfaceIndex]InterfaceInformation{0: {}})
	assert.ErrorIs(t, err, ErrInvalidEntityID)

	_, err = NewLocal(CommonInformation{EntityID: 1}, nil)
	assert.ErrorIs(t, err, ErrNoInterface)

	_, err = NewLocal(CommonInformation{EntityID: 1}, map[protocol.AvbInterfaceIndex]InterfaceInformation{
		0: {GptpGrandmasterID: Ptr(protocol.UniqueIdentifier(5))},
	})
	assert.ErrorIs(t, err, ErrGptpDomainRequired)
}

func TestNewLocalValidTimeDefaults(t *testing.T) {
	l, err := NewLocal(CommonInformation{EntityID: 1}, map[protocol.AvbInterfaceIndex]InterfaceInformation{
		0: {ValidTime: 0},
		1: {ValidTime: 200},
	})
	require.NoError(t, err)

	intfs := l.InterfacesInformation()
	assert.Equal(t, DefaultValidTime, intfs[0].ValidTime)
	assert.Equal(t, MaxValidTime, intfs[1].ValidTime)
}

func TestLocalNextAvailableIndex(t *testing.T) {
	l := newTestLocal(t)

	for want := uint32(0); want < 3; want++ {
		got, ok := l.NextAvailableIndex(0)
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
	_, ok := l.NextAvailableIndex(7)
	assert.False(t, ok)
	assert.Equal(t, uint32(3), l.InterfacesInformation()[0].AvailableIndex)
}

func TestLocalLockIsReentrant(t *testing.T) {
	l := newTestLocal(t)

	l.Lock()
	defer l.Unlock()
	// Accessors take the lock again from the same goroutine.
	_ = l.CommonInformation()
	_, ok := l.NextAvailableIndex(0)
	assert.True(t, ok)
}

func TestLocalSetters(t *testing.T) {
	l := newTestLocal(t)

	l.SetEntityCapabilities(protocol.EntityCapAemSupported)
	l.SetAssociationID(Ptr(protocol.UniqueIdentifier(0x42)))
	require.NoError(t, l.SetValidTime(0, 0))
	require.NoError(t, l.SetGptp(0, Ptr(protocol.UniqueIdentifier(0x99)), 4))
	assert.ErrorIs(t, l.SetValidTime(1, 5), ErrUnknownInterface)
	assert.ErrorIs(t, l.SetGptp(1, nil, 0), ErrUnknownInterface)

	snap := l.Snapshot()
	assert.Equal(t, protocol.EntityCapAemSupported, snap.Common.EntityCapabilities)
	assert.Equal(t, protocol.UniqueIdentifier(0x42), *snap.Common.AssociationID)
	assert.Equal(t, MinValidTime, snap.Interfaces[0].ValidTime)
	assert.Equal(t, protocol.UniqueIdentifier(0x99), *snap.Interfaces[0].GptpGrandmasterID)
	assert.Equal(t, uint8(4), *snap.Interfaces[0].GptpDomainNumber)

	require.NoError(t, l.SetGptp(0, nil, 0))
	snap = l.Snapshot()
	assert.Nil(t, snap.Interfaces[0].GptpGrandmasterID)
	assert.Nil(t, snap.Interfaces[0].GptpDomainNumber)
}

func TestEntityCloneIsDeep(t *testing.T) {
	e := Entity{
		Common: CommonInformation{
			EntityID:      1,
			AssociationID: Ptr(protocol.UniqueIdentifier(2)),
		},
		Interfaces: map[protocol.AvbInterfaceIndex]InterfaceInformation{
			0: {GptpGrandmasterID: Ptr(protocol.UniqueIdentifier(3)), GptpDomainNumber: Ptr(uint8(0))},
		},
	}
	c := e.Clone()
	*c.Common.AssociationID = 20
	*c.Interfaces[0].GptpGrandmasterID = 30
	c.Interfaces[1] = InterfaceInformation{}

	assert.Equal(t, protocol.UniqueIdentifier(2), *e.Common.AssociationID)
	assert.Equal(t, protocol.UniqueIdentifier(3), *e.Interfaces[0].GptpGrandmasterID)
	assert.Len(t, e.Interfaces, 1)
	assert.Equal(t, []protocol.AvbInterfaceIndex{0, 1}, c.InterfaceIndexes())
}

func TestEntityRoles(t *testing.T) {
	e := Entity{Common: CommonInformation{
		TalkerCapabilities:   protocol.TalkerCapImplemented | protocol.TalkerCapAudioSource,
		ListenerCapabilities: 0,
	}}
	assert.True(t, e.IsTalker())
	assert.False(t, e.IsListener())
	assert.False(t, e.IsController())
}

func TestEqualPtr(t *testing.T) {
	assert.True(t, EqualPtr[int](nil, nil))
	assert.False(t, EqualPtr(Ptr(1), nil))
	assert.False(t, EqualPtr(nil, Ptr(1)))
	assert.True(t, EqualPtr(Ptr(1), Ptr(1)))
	assert.False(t, EqualPtr(Ptr(1), Ptr(2)))
}
