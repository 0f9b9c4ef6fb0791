package transport

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/avbridge/avdecc-go/pkg/protocol"
)

// Envelope limits.
const (
	// DefaultMaxMessageSize is the default maximum encoded envelope size.
	// It fits a single UDP datagram without IP fragmentation on most links.
	DefaultMaxMessageSize = 1400

	// MinMessageSize is the minimum valid envelope size.
	MinMessageSize = 1
)

// Envelope errors.
var (
	// ErrMessageTooLarge indicates the envelope exceeds the maximum size.
	ErrMessageTooLarge = errors.New("message too large")

	// ErrMessageEmpty indicates an empty datagram.
	ErrMessageEmpty = errors.New("message is empty")

	// ErrMalformedEnvelope indicates an envelope whose kind does not match
	// its payload.
	ErrMalformedEnvelope = errors.New("malformed envelope")
)

// FrameKind identifies the sub-protocol carried by an Envelope.
type FrameKind uint8

const (
	KindAdp  FrameKind = 1
	KindAecp FrameKind = 2
	KindAcmp FrameKind = 3
)

// String returns the kind name.
func (k FrameKind) String() string {
	switch k {
	case KindAdp:
		return "ADP"
	case KindAecp:
		return "AECP"
	case KindAcmp:
		return "ACMP"
	default:
		return fmt.Sprintf("FrameKind(%d)", uint8(k))
	}
}

// Envelope carries one decoded AVDECC frame between interfaces. Exactly one
// of Adp, Aecp and Acmp is set, matching Kind.
type Envelope struct {
	// Sender is the instance ID of the sending interface. Receivers use it
	// to drop their own looped-back datagrams.
	Sender string `cbor:"1,keyasint"`

	Kind FrameKind        `cbor:"2,keyasint"`
	Adp  *protocol.Adpdu  `cbor:"3,keyasint,omitempty"`
	Aecp *protocol.Aecpdu `cbor:"4,keyasint,omitempty"`
	Acmp *protocol.Acmpdu `cbor:"5,keyasint,omitempty"`
}

var (
	envEncMode cbor.EncMode
	envDecMode cbor.DecMode
)

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:        cbor.SortCanonical,
		IndefLength: cbor.IndefLengthForbidden,
	}
	envEncMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create envelope CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthForbidden,
		MaxMapPairs: 64,
	}
	envDecMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create envelope CBOR decoder mode: %v", err))
	}
}

// DestAddress returns the destination MAC of the carried frame.
func (e *Envelope) DestAddress() protocol.MacAddress {
	switch e.Kind {
	case KindAdp:
		return e.Adp.DestAddress
	case KindAecp:
		return e.Aecp.DestAddress
	default:
		return e.Acmp.DestAddress
	}
}

// validate checks that exactly the payload named by Kind is set.
func (e *Envelope) validate() error {
	n := 0
	for _, set := range []bool{e.Adp != nil, e.Aecp != nil, e.Acmp != nil} {
		if set {
			n++
		}
	}
	ok := n == 1
	switch e.Kind {
	case KindAdp:
		ok = ok && e.Adp != nil
	case KindAecp:
		ok = ok && e.Aecp != nil
	case KindAcmp:
		ok = ok && e.Acmp != nil
	default:
		ok = false
	}
	if !ok {
		return fmt.Errorf("%w: kind %s", ErrMalformedEnvelope, e.Kind)
	}
	return nil
}

// clone returns a deep copy of the envelope.
func (e *Envelope) clone() *Envelope {
	c := &Envelope{Sender: e.Sender, Kind: e.Kind}
	switch e.Kind {
	case KindAdp:
		c.Adp = e.Adp.Clone()
	case KindAecp:
		c.Aecp = e.Aecp.Clone()
	case KindAcmp:
		c.Acmp = e.Acmp.Clone()
	}
	return c
}

// dispatch hands the carried frame to r.
func (e *Envelope) dispatch(r Receiver) {
	switch e.Kind {
	case KindAdp:
		r.ProcessAdp(e.Adp)
	case KindAecp:
		r.ProcessAecp(e.Aecp)
	case KindAcmp:
		r.ProcessAcmp(e.Acmp)
	}
}

// EncodeEnvelope encodes env. A maxSize of zero means DefaultMaxMessageSize.
func EncodeEnvelope(env *Envelope, maxSize int) ([]byte, error) {
	if err := env.validate(); err != nil {
		return nil, err
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxMessageSize
	}
	data, err := envEncMode.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	if len(data) > maxSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, len(data), maxSize)
	}
	return data, nil
}

// DecodeEnvelope decodes a datagram. A maxSize of zero means
// DefaultMaxMessageSize.
func DecodeEnvelope(data []byte, maxSize int) (*Envelope, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxMessageSize
	}
	if len(data) < MinMessageSize {
		return nil, ErrMessageEmpty
	}
	if len(data) > maxSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, len(data), maxSize)
	}
	var env Envelope
	if err := envDecMode.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
	}
	if err := env.validate(); err != nil {
		return nil, err
	}
	return &env, nil
}
