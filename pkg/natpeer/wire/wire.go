// Package wire is the self-describing tagged-record wire protocol from
// spec.md §6: one JSON object per datagram, discriminated by its "type"
// field. Encoding matches the teacher's own choice
// (pkg/mcast/core/transport.go marshals its Message the same way).
package wire

import (
	"encoding/json"

	"github.com/jabolina/natpeer/pkg/natpeer/types"
)

// Message-type discriminants, per spec.md §6.
const (
	TypePing       = "ping"
	TypePong       = "pong"
	TypeTest       = "test"
	TypeIntro      = "intro"
	TypeIntroError = "introError"
	TypeConnect    = "connect"
	TypeLocal      = "local"
	TypeJoin       = "join"
	TypeJoinError  = "joinError"
	TypeRelay      = "relay"
)

var knownTypes = map[string]bool{
	TypePing: true, TypePong: true, TypeTest: true,
	TypeIntro: true, TypeIntroError: true, TypeConnect: true,
	TypeLocal: true, TypeJoin: true, TypeJoinError: true, TypeRelay: true,
}

// Message is the flat envelope carrying every variant's fields; unused
// fields are omitted on the wire and ignored on receipt, matching spec.md
// §6's "unknown fields must be ignored by receivers" rule — any receiver
// simply reads the subset it cares about for its Type.
type Message struct {
	Type string `json:"type"`

	ID      string `json:"id,omitempty"`
	Target  string `json:"target,omitempty"`
	Swarm   string `json:"swarm,omitempty"`
	Call    string `json:"call,omitempty"`
	Address string `json:"address,omitempty"`
	Port    uint16 `json:"port,omitempty"`
	Nat     string `json:"nat,omitempty"`

	Restart   int64 `json:"restart,omitempty"`
	Timestamp int64 `json:"timestamp,omitempty"`
	Peers     int   `json:"peers,omitempty"`

	Content json.RawMessage `json:"content,omitempty"`
}

// Encode serializes a Message to its wire bytes.
func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

// Decode parses wire bytes into a Message. A malformed payload or an
// unrecognized type is reported as types.ErrUnknownMessage — a transient,
// silently-dropped condition per spec.md §7, never a panic.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, types.ErrUnknownMessage
	}
	if !knownTypes[m.Type] {
		return Message{}, types.ErrUnknownMessage
	}
	return m, nil
}

func NatString(n types.NatType) string { return n.String() }

func ParseNat(s string) types.NatType {
	switch s {
	case "static":
		return types.Static
	case "easy":
		return types.Easy
	case "hard":
		return types.Hard
	default:
		return types.Unknown
	}
}

func EndpointOf(m Message) types.Endpoint {
	return types.Endpoint{Address: parseAddress(m.Address), Port: types.Port(m.Port)}
}

func parseAddress(s string) types.Address {
	var a, b, c, d byte
	// Dotted-decimal parse without pulling in net.ParseIP — the wire value
	// is always produced by types.Address.String(), never external input.
	fields := [4]*byte{&a, &b, &c, &d}
	idx := 0
	var cur int
	has := false
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == '.' {
			if has && idx < 4 {
				*fields[idx] = byte(cur)
			}
			idx++
			cur = 0
			has = false
			continue
		}
		cur = cur*10 + int(s[i]-'0')
		has = true
	}
	return types.NewAddress(a, b, c, d)
}

// NewPing builds a ping message (spec.md §6).
func NewPing(id types.ID, nat types.NatType, restart int64) Message {
	return Message{Type: TypePing, ID: string(id), Nat: nat.String(), Restart: restart}
}

// NewPong builds a pong message echoing the receiver's view of the sender.
func NewPong(id types.ID, src types.Endpoint, nat types.NatType, restart, timestamp int64) Message {
	return Message{
		Type: TypePong, ID: string(id), Address: src.Address.String(), Port: uint16(src.Port),
		Nat: nat.String(), Restart: restart, Timestamp: timestamp,
	}
}

// NewTest builds a test message (arrives on TEST_PORT to signal a Static NAT).
func NewTest(id types.ID, src types.Endpoint, nat types.NatType) Message {
	return Message{Type: TypeTest, ID: string(id), Address: src.Address.String(), Port: uint16(src.Port), Nat: nat.String()}
}

// NewIntro builds an intro request to an introducer.
func NewIntro(id types.ID, target types.ID, swarm string) Message {
	return Message{Type: TypeIntro, ID: string(id), Target: string(target), Swarm: swarm}
}

// NewIntroError builds the introError reply.
func NewIntroError(id, target types.ID, call string) Message {
	return Message{Type: TypeIntroError, ID: string(id), Target: string(target), Call: call}
}

// NewConnect builds a connect message describing peer `target` (reachable at
// ep, classified nat) to its recipient.
func NewConnect(id types.ID, target types.ID, ep types.Endpoint, nat types.NatType, swarm string) Message {
	return Message{
		Type: TypeConnect, ID: string(id), Target: string(target),
		Address: ep.Address.String(), Port: uint16(ep.Port), Nat: nat.String(), Swarm: swarm,
	}
}

// NewLocal builds a local-endpoint hint for same-NAT peers.
func NewLocal(id types.ID, ep types.Endpoint) Message {
	return Message{Type: TypeLocal, ID: string(id), Address: ep.Address.String(), Port: uint16(ep.Port)}
}

// NewJoin builds a swarm-join announcement.
func NewJoin(id types.ID, swarm string, nat types.NatType, peers int) Message {
	return Message{Type: TypeJoin, ID: string(id), Swarm: swarm, Nat: nat.String(), Peers: peers}
}

// NewJoinError builds the joinError reply.
func NewJoinError(id types.ID, swarm string, peers int, call string) Message {
	return Message{Type: TypeJoinError, ID: string(id), Swarm: swarm, Peers: peers, Call: call}
}

// NewRelay wraps content to forward to target.
func NewRelay(target types.ID, content []byte) Message {
	return Message{Type: TypeRelay, Target: string(target), Content: content}
}
