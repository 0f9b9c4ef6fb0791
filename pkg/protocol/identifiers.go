package protocol

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// UniqueIdentifier is an EUI-64 used for entity IDs, entity model IDs,
// association IDs, stream IDs and gPTP grandmaster IDs.
type UniqueIdentifier uint64

const (
	// NullUniqueIdentifier is the all-zero identifier. A global
	// ENTITY_DISCOVER carries it as target.
	NullUniqueIdentifier UniqueIdentifier = 0

	// UninitializedUniqueIdentifier is the all-ones identifier.
	UninitializedUniqueIdentifier UniqueIdentifier = 0xFFFFFFFFFFFFFFFF

	// IdentifyControllerEntityID is the controller_entity_id carried by
	// multicast IDENTIFY notifications (IEEE 1722.1-2021 Clause 7.5.1).
	IdentifyControllerEntityID UniqueIdentifier = 0x90E0F0FFFE010001
)

// IsValid returns true if the identifier is neither all zeros nor all ones.
func (u UniqueIdentifier) IsValid() bool {
	return u != UninitializedUniqueIdentifier && u != NullUniqueIdentifier
}

// String returns the identifier as 0x-prefixed 16 hex digits.
func (u UniqueIdentifier) String() string {
	return fmt.Sprintf("0x%016X", uint64(u))
}

// ParseUniqueIdentifier parses a hex identifier, with or without 0x prefix.
func ParseUniqueIdentifier(s string) (UniqueIdentifier, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid unique identifier %q: %w", s, err)
	}
	return UniqueIdentifier(v), nil
}

// MacAddress is a 48-bit Ethernet address.
type MacAddress [6]byte

// Well-known AVDECC destination addresses.
var (
	// MulticastMacAddress is the ADP/ACMP multicast destination (91:E0:F0:01:00:00).
	MulticastMacAddress = MacAddress{0x91, 0xe0, 0xf0, 0x01, 0x00, 0x00}

	// IdentifyMacAddress is the IDENTIFY notification destination (91:E0:F0:01:00:01).
	IdentifyMacAddress = MacAddress{0x91, 0xe0, 0xf0, 0x01, 0x00, 0x01}
)

// IsMulticast returns true if the group bit is set.
func (m MacAddress) IsMulticast() bool {
	return m[0]&0x01 != 0
}

// IsZero returns true for 00:00:00:00:00:00.
func (m MacAddress) IsZero() bool {
	return m == MacAddress{}
}

// String returns the address in colon-separated lower-case hex.
func (m MacAddress) String() string {
	return net.HardwareAddr(m[:]).String()
}

// ParseMacAddress parses a 48-bit address in any format accepted by net.ParseMAC.
func ParseMacAddress(s string) (MacAddress, error) {
	hw, err := net.ParseMAC(s)
	if err != nil {
		return MacAddress{}, err
	}
	if len(hw) != 6 {
		return MacAddress{}, fmt.Errorf("invalid mac address %q: want 48 bits, got %d", s, len(hw)*8)
	}
	var m MacAddress
	copy(m[:], hw)
	return m, nil
}

// AvbInterfaceIndex identifies an AVB_INTERFACE descriptor of an entity.
type AvbInterfaceIndex uint16

// GlobalAvbInterfaceIndex is used when an entity does not announce an
// interface index (AemInterfaceIndexValid not set).
const GlobalAvbInterfaceIndex AvbInterfaceIndex = 0xFFFF

// ControlIndex identifies a CONTROL descriptor of an entity.
type ControlIndex uint16

// AecpSequenceID is the AECP sequence_id field.
type AecpSequenceID uint16

// AcmpSequenceID is the ACMP sequence_id field.
type AcmpSequenceID uint16

// VuProtocolIdentifier is the 48-bit protocol_id of a Vendor Unique AECPDU.
type VuProtocolIdentifier uint64

// String returns the identifier as 12 hex digits.
func (p VuProtocolIdentifier) String() string {
	return fmt.Sprintf("0x%012X", uint64(p)&0xFFFFFFFFFFFF)
}
