package simnet

import (
	"math/rand"

	"github.com/jabolina/natpeer/pkg/natpeer/queue"
	"github.com/jabolina/natpeer/pkg/natpeer/types"
)

// KeyFunc computes a NAT mapping-table key for an outbound flow. Easy NATs
// key on source alone (endpoint-independent mapping); Hard NATs fold the
// destination in too (address-and-port-dependent mapping) — spec.md §3/§4.D.
type KeyFunc func(dest, source types.Endpoint) string

// EasyKey implements endpoint-independent mapping.
func EasyKey(dest, source types.Endpoint) string {
	return source.String()
}

// HardKey implements address-and-port-dependent mapping.
func HardKey(dest, source types.Endpoint) string {
	return source.String() + "->" + dest.String()
}

// PortAllocator picks a fresh external port given a predicate reporting
// whether a candidate port is already in use.
type PortAllocator func(taken func(types.Port) bool, rng *rand.Rand) types.Port

// UniformRandomPort allocates uniformly over [lo, hi], retrying on
// collision. This is the default — and the policy spec.md's Easy/Hard BDP
// scenarios assume when they talk about "random port allocation".
func UniformRandomPort(lo, hi types.Port) PortAllocator {
	return func(taken func(types.Port) bool, rng *rand.Rand) types.Port {
		span := int(hi) - int(lo) + 1
		for {
			p := types.Port(lo) + types.Port(rng.Intn(span))
			if !taken(p) {
				return p
			}
		}
	}
}

// SequentialPort allocates ports starting at `start`, wrapping at 65535,
// skipping any already in use.
func SequentialPort(start types.Port) PortAllocator {
	next := start
	return func(taken func(types.Port) bool, rng *rand.Rand) types.Port {
		for {
			p := next
			if next == 65535 {
				next = 1024
			} else {
				next++
			}
			if !taken(p) {
				return p
			}
		}
	}
}

type mapEntry struct {
	port    types.Port
	expires int64
}

type unmapEntry struct {
	addr    types.Address
	port    types.Port
	expires int64
}

// NAT is a Network with a port-translation table sitting between its
// private subnet and its parent (spec.md §4.D). Its own address (as seen by
// its parent) is its PublicAddress.
type NAT struct {
	*Network

	publicAddress types.Address
	kind          types.NatType
	ttlMs         int64
	hairpinning   bool

	keyOf        KeyFunc
	allocatePort PortAllocator

	mapTable map[string]mapEntry
	unmap    map[types.Port]unmapEntry
}

// NewNAT constructs a NAT reachable at publicAddress, with mapping lifetime
// ttlMs and the given classification/key/port policies.
func NewNAT(publicAddress types.Address, kind types.NatType, q *queue.Queue, log types.Logger, ttlMs int64, hairpinning bool, keyOf KeyFunc, allocatePort PortAllocator) *NAT {
	nat := &NAT{
		Network:       NewNetwork(publicAddress, q, log),
		publicAddress: publicAddress,
		kind:          kind,
		ttlMs:         ttlMs,
		hairpinning:   hairpinning,
		keyOf:         keyOf,
		allocatePort:  allocatePort,
		mapTable:      make(map[string]mapEntry),
		unmap:         make(map[types.Port]unmapEntry),
	}
	return nat
}

// Add registers a child in the NAT's private subnet with the NAT itself as
// the child's Router, so the child's outbound traffic goes through NAT.route
// (translation, hairpin) rather than the embedded Network's plain routing.
func (nat *NAT) Add(addr Address, child Child) {
	nat.Network.Add(addr, child)
	if cs, ok := child.(interface{ SetParent(Router) }); ok {
		cs.SetParent(nat)
	}
}

func (nat *NAT) PublicAddress() types.Address { return nat.publicAddress }
func (nat *NAT) Kind() types.NatType           { return nat.kind }

// MappingCount reports the number of live (unexpired) mapping entries, used
// by the metrics package's nat-table-size gauge.
func (nat *NAT) MappingCount() int {
	now := nat.queue.Now()
	n := 0
	for _, e := range nat.unmap {
		if e.expires > now {
			n++
		}
	}
	return n
}

// route overrides Network.route: local subnet delivery is unchanged, a
// hairpin addressed at the NAT's own public address loops back internally
// when enabled, and everything else is translated and escalated to the
// parent Router.
func (nat *NAT) route(data []byte, to types.Endpoint, from types.Endpoint) bool {
	if _, ok := nat.subnet[to.Address]; ok {
		return nat.Network.route(data, to, from)
	}
	if nat.hairpinning && to.Address == nat.publicAddress {
		return nat.hairpinDeliver(data, to, from)
	}
	return nat.outbound(data, to, from)
}

func (nat *NAT) outbound(data []byte, to, from types.Endpoint) bool {
	if nat.parent == nil {
		return false
	}
	port := nat.allocateOrReuse(to, from)
	translated := types.Endpoint{Address: nat.publicAddress, Port: port}
	nat.log.Debugf("nat %s: outbound %s -> %s via %s", nat.publicAddress, from, to, translated)
	return nat.parent.route(data, to, translated)
}

func (nat *NAT) hairpinDeliver(data []byte, to, from types.Endpoint) bool {
	// Establish/refresh the sender's own outbound mapping, as any outbound
	// flow through this NAT would, then resolve the loopback destination
	// from the unmap table exactly as an inbound packet from outside would.
	port := nat.allocateOrReuse(to, from)
	translated := types.Endpoint{Address: nat.publicAddress, Port: port}

	now := nat.queue.Now()
	u, ok := nat.unmap[to.Port]
	if !ok || u.expires <= now {
		return true // handled: no live mapping for that public port, silently dropped
	}
	u.expires = now + nat.ttlMs
	nat.unmap[to.Port] = u

	target := types.Endpoint{Address: u.addr, Port: u.port}
	if child, ok2 := nat.subnet[target.Address]; ok2 {
		nat.deliver(child, data, translated, target.Port)
	}
	return true
}

func (nat *NAT) allocateOrReuse(to, from types.Endpoint) types.Port {
	key := nat.keyOf(to, from)
	now := nat.queue.Now()
	if e, ok := nat.mapTable[key]; ok && e.expires > now {
		e.expires = now + nat.ttlMs
		nat.mapTable[key] = e
		if u, ok2 := nat.unmap[e.port]; ok2 {
			u.expires = e.expires
			nat.unmap[e.port] = u
		}
		return e.port
	}

	taken := func(p types.Port) bool {
		u, used := nat.unmap[p]
		return used && u.expires > now
	}
	p := nat.allocatePort(taken, nat.queue.Rand())
	exp := now + nat.ttlMs
	nat.mapTable[key] = mapEntry{port: p, expires: exp}
	nat.unmap[p] = unmapEntry{addr: from.Address, port: from.Port, expires: exp}
	return p
}

// Receive implements inbound delivery arriving at the NAT's public address
// from its parent: look up the external port in unmap and forward
// internally, preserving the external source endpoint (spec.md §4.D). A
// miss (expired or never-mapped port) is a silent, transient drop.
func (nat *NAT) Receive(data []byte, from types.Endpoint, toPort types.Port, ts int64) {
	u, ok := nat.unmap[toPort]
	if !ok || u.expires <= ts {
		nat.log.Debugf("nat %s: inbound miss on port %d", nat.publicAddress, toPort)
		return
	}
	u.expires = ts + nat.ttlMs
	nat.unmap[toPort] = u

	target := types.Endpoint{Address: u.addr, Port: u.port}
	if child, ok2 := nat.subnet[target.Address]; ok2 {
		nat.deliver(child, data, from, target.Port)
	}
}
