// Package types holds the data model shared across the simulator and the
// NAT-traversal peer: addresses, NAT classification, peer bookkeeping and
// the small Logger contract every other package is constructed with.
package types

import (
	"encoding/hex"
	"errors"
	"fmt"
)

var (
	// ErrBindFailed is returned when a Peer cannot bind its local or test port.
	ErrBindFailed = errors.New("bind failed")

	// ErrHardToHard marks a traversal attempt between two Hard NATs, which
	// cannot succeed by hole-punching alone.
	ErrHardToHard = errors.New("hard-to-hard traversal is not supported")

	// ErrUnknownMessage is returned by the wire codec for an unrecognized tag.
	ErrUnknownMessage = errors.New("unknown message type")
)

// Address is a 32-bit IPv4 value. It is compared and hashed as a plain
// integer; dotted-decimal form is only used at the boundary (String).
type Address uint32

// NewAddress builds an Address from four octets, matching the dotted
// decimal order a.b.c.d.
func NewAddress(a, b, c, d byte) Address {
	return Address(uint32(a)<<24 | uint32(b)<<16 | uint32(c)<<8 | uint32(d))
}

func (a Address) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", byte(a>>24), byte(a>>16), byte(a>>8), byte(a))
}

// Port is a UDP port number.
type Port uint16

// Endpoint is an (Address, Port) pair.
type Endpoint struct {
	Address Address
	Port    Port
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s:%d", e.Address, e.Port)
}

// NatType classifies how a NAT maps outbound traffic.
type NatType int

const (
	// Unknown means the peer has not yet completed NAT evaluation.
	Unknown NatType = iota
	// Static means the endpoint is publicly reachable without translation.
	Static
	// Easy means the NAT assigns one external port per internal
	// (address, port), independent of destination.
	Easy
	// Hard means the external port also depends on the destination.
	Hard
)

func (n NatType) String() string {
	switch n {
	case Static:
		return "static"
	case Easy:
		return "easy"
	case Hard:
		return "hard"
	default:
		return "unknown"
	}
}

// ID is opaque high-entropy peer identity, printed as hex on the wire.
type ID string

func (id ID) String() string {
	return string(id)
}

// IDFromBytes hex-encodes raw identity bytes into an ID.
func IDFromBytes(b []byte) ID {
	return ID(hex.EncodeToString(b))
}

// PeerIdentity is the self-description a peer presents to others.
type PeerIdentity struct {
	ID      ID
	Address Address
	Port    Port
}

// PongState is the most recently observed self-view via any pong.
type PongState struct {
	Timestamp int64
	Address   Address
	Port      Port
}

// Liveness classifies a PeerRecord by elapsed time since last receipt.
type Liveness int

const (
	Active Liveness = iota
	Inactive
	Missing
	Forgotten
)

func (l Liveness) String() string {
	switch l {
	case Active:
		return "active"
	case Inactive:
		return "inactive"
	case Missing:
		return "missing"
	default:
		return "forgotten"
	}
}

// Classify implements the liveness formula from spec.md §3, given the
// keep-alive timeout T and elapsed time delta since last receipt.
func Classify(delta, keepAliveTimeout int64) Liveness {
	t := keepAliveTimeout
	switch {
	case delta < (3*t)/2:
		return Active
	case delta < 3*t:
		return Inactive
	case delta < 5*t:
		return Missing
	default:
		return Forgotten
	}
}

// PeerRecord is the bookkeeping kept for one known remote peer.
type PeerRecord struct {
	ID        ID
	Address   Address
	Port      Port
	Nat       NatType
	Outport   Port
	RestartTS int64
	LastSent  int64
	LastRecv  int64
	Pong      *PongState

	// Notified records that the keepalive tick has already sent its one
	// retry ping for this peer's current non-Active spell; it is cleared
	// when the peer is Active again and on a detected wakeup. Kept per-peer
	// per SPEC_FULL.md §9 (a single global flag would suppress the retry
	// for every peer after the first).
	Notified bool
}

func (p *PeerRecord) Endpoint() Endpoint {
	return Endpoint{Address: p.Address, Port: p.Port}
}

// Swarm is a named set of peers that want to be mutually connected.
type Swarm struct {
	ID         string
	Members    map[ID]*PeerRecord
	LastHeard  int64
}

func NewSwarm(id string) *Swarm {
	return &Swarm{ID: id, Members: make(map[ID]*PeerRecord)}
}

// Logger is the logging contract every component is constructed with, kept
// intentionally narrow (Debugf/Infof/Warnf/Errorf/Fatalf) so any backend —
// the bundled logrus-backed DefaultLogger or a caller-supplied one — can
// satisfy it.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
}
