// Package transport defines the narrow interface a core.Peer is built
// against (spec.md §4.E) and the two implementations that satisfy it: a
// simulator-backed adapter for tests, and a real net.UDPConn binding for
// production use. The Peer never knows which one it's talking to.
package transport

import (
	"math/rand"

	"github.com/jabolina/natpeer/pkg/natpeer/types"
)

// OnMessageFunc is the inbound hook a Peer installs once at construction.
type OnMessageFunc func(data []byte, from types.Endpoint, recvPort types.Port, ts int64)

// Adapter is the transport contract consumed by core.Peer. Both
// transport.SimAdapter (backed by a simnet.Node) and transport.UDPAdapter
// (backed by a real socket) implement it identically from the Peer's point
// of view.
type Adapter interface {
	// Send transmits data to `to` from local port `fromPort`.
	Send(data []byte, to types.Endpoint, fromPort types.Port) error

	// Timer schedules fn per the Node.Timer contract (spec.md §4.B):
	// delayMs==0 runs synchronously, repeatMs>0 recurs.
	Timer(delayMs int64, repeatMs int64, fn func())

	// Bind claims a local port for inbound delivery. Binding the same port
	// twice is a no-op.
	Bind(port types.Port) error

	// LocalAddress returns this adapter's own address.
	LocalAddress() types.Address

	// SetOnMessage installs the single inbound hook. Called once, before
	// any Bind.
	SetOnMessage(fn OnMessageFunc)

	// Now returns the adapter's current notion of time (Queue.Now() for the
	// simulator, wall-clock milliseconds for the real binding).
	Now() int64

	// Rand returns the source of randomness a Peer must use for anything
	// that needs to be reproducible under the simulator (BDP port choice,
	// chiefly) — the simulator hands back its shared seeded queue.Queue
	// PRNG; the real binding hands back a process-local one seeded from the
	// wall clock.
	Rand() *rand.Rand
}
