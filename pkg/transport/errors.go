package transport

import "errors"

var (
	// ErrClosed is returned when sending on a closed interface.
	ErrClosed = errors.New("interface closed")

	// ErrDuplicateMac is returned when a bus already has an interface with
	// the requested MAC address.
	ErrDuplicateMac = errors.New("duplicate mac address")

	// ErrInvalidMac is returned for a zero or multicast interface address.
	ErrInvalidMac = errors.New("invalid interface mac address")
)
