package transport

import (
	"math/rand"

	"github.com/jabolina/natpeer/pkg/natpeer/queue"
	"github.com/jabolina/natpeer/pkg/natpeer/simnet"
	"github.com/jabolina/natpeer/pkg/natpeer/types"
)

// SimAdapter adapts a single simnet.Node — one logical host address — to
// the transport.Adapter contract a core.Peer consumes. A host can bind many
// local ports on the same simnet.Node; delivery demultiplexes by the
// recvPort the simnet.Network routed the packet to (spec.md §4.E).
type SimAdapter struct {
	node      *simnet.Node
	onMessage OnMessageFunc
	bound     map[types.Port]bool
}

// NewSimAdapterNode builds a fresh simnet.Node at addr together with the
// SimAdapter wrapping it, wiring the node's inbound dispatch to the
// adapter's bound-port filter in one step. Callers Add() the returned node
// into a simnet.Network/NAT subnet and construct core.Peer with the
// returned adapter.
func NewSimAdapterNode(addr types.Address, q *queue.Queue, log types.Logger) (*SimAdapter, *simnet.Node) {
	a := &SimAdapter{bound: make(map[types.Port]bool)}
	a.node = simnet.NewNode(addr, q, log, a.dispatch)
	return a, a.node
}

func (a *SimAdapter) SetOnMessage(fn OnMessageFunc) {
	a.onMessage = fn
}

// Node exposes the underlying simnet.Node, e.g. so test harnesses can
// Sleep()/Wake() it directly to drive spec.md's sleep/wake scenarios.
func (a *SimAdapter) Node() *simnet.Node { return a.node }

func (a *SimAdapter) Bind(port types.Port) error {
	a.bound[port] = true
	return nil
}

func (a *SimAdapter) LocalAddress() types.Address { return a.node.Address() }

func (a *SimAdapter) Now() int64 { return a.node.Queue().Now() }

func (a *SimAdapter) Rand() *rand.Rand { return a.node.Queue().Rand() }

func (a *SimAdapter) Send(data []byte, to types.Endpoint, fromPort types.Port) error {
	return a.node.Send(data, to, fromPort)
}

func (a *SimAdapter) Timer(delayMs int64, repeatMs int64, fn func()) {
	a.node.Timer(delayMs, repeatMs, fn)
}

// dispatch is wired as the simnet.Node's onMessage callback: only datagrams
// addressed to a bound port reach the Peer, mirroring a real UDP socket
// only accepting traffic on ports it opened.
func (a *SimAdapter) dispatch(data []byte, from types.Endpoint, toPort types.Port, ts int64) {
	if !a.bound[toPort] {
		return
	}
	if a.onMessage != nil {
		a.onMessage(data, from, toPort, ts)
	}
}
