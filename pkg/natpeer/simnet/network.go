package simnet

import (
	"math/rand"

	"github.com/jabolina/natpeer/pkg/natpeer/queue"
	"github.com/jabolina/natpeer/pkg/natpeer/types"
)

// LatencyFunc draws a delivery latency in milliseconds from the queue's
// seeded PRNG so a given seed reproduces an identical trace (spec.md §4.C).
type LatencyFunc func(r *rand.Rand) int64

// DefaultLatency returns a uniform 1-5ms delay, a reasonable default for
// same-subnet delivery in tests.
func DefaultLatency(r *rand.Rand) int64 {
	return 1 + r.Int63n(5)
}

// Network is a Node that owns a subnet mapping Address -> Child and routes
// packets addressed to one of its children, per spec.md §4.C.
type Network struct {
	*Node

	subnet      map[Address]Child
	initialized bool

	latency  LatencyFunc
	dropProb float64
}

// NewNetwork constructs a root or nested Network. addr is this network's
// own address within ITS parent (irrelevant for a root network).
func NewNetwork(addr Address, q *queue.Queue, log types.Logger) *Network {
	net := &Network{
		subnet:  make(map[Address]Child),
		latency: DefaultLatency,
	}
	net.Node = NewNode(addr, q, log, nil)
	return net
}

// SetLatency overrides the per-delivery latency function.
func (n *Network) SetLatency(f LatencyFunc) { n.latency = f }

// SetDropProbability sets the fraction of local deliveries silently dropped
// in transit, in [0,1].
func (n *Network) SetDropProbability(p float64) { n.dropProb = p }

// Add registers a child at `addr`. If the Network is already initialized,
// the child is initialized immediately; otherwise it will be initialized
// when this Network itself becomes initialized (spec.md §4.C).
func (n *Network) Add(addr Address, child Child) {
	n.subnet[addr] = child
	if cs, ok := child.(interface{ SetParent(Router) }); ok {
		cs.SetParent(n)
	}
	if n.initialized {
		child.Init(n.queue.Now())
	}
}

// Remove detaches a child from the subnet without notifying it.
func (n *Network) Remove(addr Address) {
	delete(n.subnet, addr)
}

// Init marks the Network initialized and cascades initialization to every
// child not yet initialized (those added before this call).
func (n *Network) Init(ts int64) {
	n.initialized = true
	n.Node.Init(ts)
	for _, c := range n.subnet {
		c.Init(ts)
	}
}

// route implements Router: local delivery within the subnet, or failure for
// a non-local destination. NAT overrides this to escalate to its own parent.
func (n *Network) route(data []byte, to types.Endpoint, from types.Endpoint) bool {
	child, ok := n.subnet[to.Address]
	if !ok {
		return false
	}
	n.deliver(child, data, from, to.Port)
	return true
}

// deliver schedules delivery to `child` at Queue.Now()+latency, subject to
// the configured drop probability. Both are drawn from the queue's seeded
// PRNG so delivery order is reproducible for a given seed.
func (n *Network) deliver(child Child, data []byte, from types.Endpoint, toPort types.Port) {
	rng := n.queue.Rand()
	if n.dropProb > 0 && rng.Float64() < n.dropProb {
		return
	}
	lat := n.latency(rng)
	n.queue.Add(n.queue.Now()+lat, func() {
		child.Receive(data, from, toPort, n.queue.Now())
	})
}
