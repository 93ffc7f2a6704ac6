package core

import (
	"crypto/rand"

	"github.com/jabolina/natpeer/pkg/natpeer/definition"
	"github.com/jabolina/natpeer/pkg/natpeer/types"
)

// Config carries everything a Peer needs at construction, standing in for
// the CLI/flags layer the original spec explicitly keeps out of scope — a
// caller builds one by hand or from whatever configuration source it likes.
type Config struct {
	// LocalPort and TestPort are bound at construction; zero falls back to
	// definition.LocalPort/TestPort.
	LocalPort types.Port
	TestPort  types.Port

	// KeepAliveMs is the keepalive interval; zero disables the periodic
	// tick entirely (no re-ping, no liveness reclassification).
	KeepAliveMs int64

	// Introducers are the two statically-reachable peers a Peer pings to
	// discover its own NAT class (spec.md §4.F "NAT evaluation"). Exactly
	// two are expected; a third is tolerated but only the first two
	// responses are consulted when deciding Easy vs Hard.
	Introducers []types.Endpoint

	// IsIntroducer marks this Peer as a statically-reachable rendezvous
	// point: it answers MsgPing with both MsgPong and MsgTest (spec.md §4.G).
	IsIntroducer bool
}

func (c Config) localPort() types.Port {
	if c.LocalPort == 0 {
		return definition.LocalPort
	}
	return c.LocalPort
}

func (c Config) testPort() types.Port {
	if c.TestPort == 0 {
		return definition.TestPort
	}
	return c.TestPort
}

// NewIdentity mints a fresh high-entropy peer id: 16 random bytes, hex
// encoded for the wire (SPEC_FULL.md §3).
func NewIdentity() types.ID {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing means the platform has no entropy source;
		// there is nothing sane left to do but hand back an all-zero id.
		return types.IDFromBytes(b)
	}
	return types.IDFromBytes(b)
}
