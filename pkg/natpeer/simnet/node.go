// Package simnet is the deterministic network simulator: Node, Network and
// NAT model IPv4 addresses, UDP ports, NATs and sleeping devices driven by a
// single shared queue.Queue (spec.md §4.B/C/D).
package simnet

import (
	"errors"

	"github.com/jabolina/natpeer/pkg/natpeer/queue"
	"github.com/jabolina/natpeer/pkg/natpeer/types"
)

// ErrNoRoute is returned by Node.Send when the node has no parent Network
// to route through, or the parent cannot reach the destination.
var ErrNoRoute = errors.New("no route to destination")

// Router is the capability a Node's parent must provide: deliver an
// outbound packet originating from `from`, addressed to `to`. It returns
// false when the destination is unreachable from this Router (the base
// Network's behavior on a non-local destination, per spec.md §4.C).
type Router interface {
	route(data []byte, to types.Endpoint, from types.Endpoint) bool
}

// Child is the capability a Network needs from anything registered in its
// subnet: it can be initialized and can receive an inbound delivery.
type Child interface {
	Init(ts int64)
	Receive(data []byte, from types.Endpoint, toPort types.Port, ts int64)
}

// Node is the base simulator endpoint: addressable, can sleep, can schedule
// timers through the shared Queue, and sends/receives messages via its
// parent Router. Network and NAT embed *Node and override Receive/route as
// needed — plain embedding-based polymorphism rather than deep inheritance,
// per spec.md §9's design note.
type Node struct {
	address Address
	parent  Router
	queue   *queue.Queue
	log     types.Logger

	sleeping bool
	awaken   []func()

	onMessage func(data []byte, from types.Endpoint, toPort types.Port, ts int64)
	onInit    func(ts int64)
}

// Address is a local-to-parent identifier a Node is reachable at. It is
// typically the same types.Address used for the node's public IPv4 value,
// but nested subnets (inside a NAT) reuse the private range independently.
type Address = types.Address

// NewNode constructs a leaf simulator Node bound to address `addr`. The
// onMessage callback is invoked for every delivered, non-sleeping receipt;
// it is how transport.SimAdapter wires a core.Peer to the simulator.
func NewNode(addr Address, q *queue.Queue, log types.Logger, onMessage func([]byte, types.Endpoint, types.Port, int64)) *Node {
	return &Node{
		address:   addr,
		queue:     q,
		log:       log,
		onMessage: onMessage,
	}
}

func (n *Node) Address() Address { return n.address }
func (n *Node) Queue() *queue.Queue { return n.queue }

// SetParent attaches this node under a Router; called by Network.Add.
func (n *Node) SetParent(r Router) { n.parent = r }

// SetOnInit installs a callback invoked the first time this node becomes
// initialized (immediately by Add, or later when its own parent initializes).
func (n *Node) SetOnInit(fn func(ts int64)) { n.onInit = fn }

// Init marks the node ready. Network overrides this to also cascade to its
// subnet.
func (n *Node) Init(ts int64) {
	if n.onInit != nil {
		n.onInit(ts)
	}
}

// IsSleeping reports whether the node is currently suspended.
func (n *Node) IsSleeping() bool { return n.sleeping }

// Sleep suspends the node: subsequent Receive calls and timer firings are
// redirected into the awaken queue instead of running immediately.
func (n *Node) Sleep() { n.sleeping = true }

// Wake resumes the node, draining the awaken queue FIFO until it is empty
// or the node sleeps again from within a drained callback.
func (n *Node) Wake() {
	n.sleeping = false
	for len(n.awaken) > 0 && !n.sleeping {
		next := n.awaken[0]
		n.awaken = n.awaken[1:]
		next()
	}
}

// Receive delivers an inbound packet. While sleeping, delivery is deferred
// into the awaken queue rather than dropped.
func (n *Node) Receive(data []byte, from types.Endpoint, toPort types.Port, ts int64) {
	if n.sleeping {
		n.awaken = append(n.awaken, func() { n.dispatch(data, from, toPort, ts) })
		return
	}
	n.dispatch(data, from, toPort, ts)
}

func (n *Node) dispatch(data []byte, from types.Endpoint, toPort types.Port, ts int64) {
	if n.onMessage != nil {
		n.onMessage(data, from, toPort, ts)
	}
}

// Send delegates to the parent Router, rewriting the source endpoint to
// (this node's address, fromPort) as spec.md §4.B describes.
func (n *Node) Send(data []byte, to types.Endpoint, fromPort types.Port) error {
	if n.parent == nil {
		return ErrNoRoute
	}
	from := types.Endpoint{Address: n.address, Port: fromPort}
	if !n.parent.route(data, to, from) {
		return ErrNoRoute
	}
	return nil
}

// Timer schedules fn through the shared Queue. If delay == 0, fn runs
// synchronously before Timer returns; if repeat > 0 a recurring entry is
// scheduled at Queue.Now()+repeat each time it fires. A one-shot firing that
// comes due while the node is asleep is deferred into the awaken queue;
// recurring firings collapse into a single pending catch-up (spec.md §4.B)
// rather than piling up multiple awaken entries.
func (n *Node) Timer(delayMs int64, repeatMs int64, fn func()) {
	if delayMs == 0 {
		fn()
		if repeatMs > 0 {
			n.scheduleRepeating(n.queue.Now()+repeatMs, repeatMs, fn)
		}
		return
	}
	if repeatMs > 0 {
		n.scheduleRepeating(n.queue.Now()+delayMs, repeatMs, fn)
		return
	}
	n.queue.Add(n.queue.Now()+delayMs, func() {
		if n.sleeping {
			n.awaken = append(n.awaken, fn)
			return
		}
		fn()
	})
}

func (n *Node) scheduleRepeating(firstTS int64, repeatMs int64, fn func()) {
	pending := new(bool)
	var tick func()
	tick = func() {
		if n.sleeping {
			if !*pending {
				*pending = true
				n.awaken = append(n.awaken, func() {
					*pending = false
					fn()
				})
			}
		} else {
			fn()
		}
		n.queue.Add(n.queue.Now()+repeatMs, tick)
	}
	n.queue.Add(firstTS, tick)
}
