// Package test holds reusable scenario-construction helpers for driving
// core.Peer against the simulator, mirroring the teacher's own test/
// package split (test/testing.go's CreateCluster/CreateUnity helpers) —
// here a Scenario plays the role the teacher's UnityCluster does.
package test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jabolina/natpeer/pkg/natpeer/core"
	"github.com/jabolina/natpeer/pkg/natpeer/definition"
	"github.com/jabolina/natpeer/pkg/natpeer/metrics"
	"github.com/jabolina/natpeer/pkg/natpeer/queue"
	"github.com/jabolina/natpeer/pkg/natpeer/simnet"
	"github.com/jabolina/natpeer/pkg/natpeer/transport"
	"github.com/jabolina/natpeer/pkg/natpeer/types"
)

// Scenario is a public-internet simnet.Network (the "Root") with
// introducers and NAT-ed peers registered under it, sharing one seeded
// queue.Queue. Tests build a topology, call Run to advance simulated time,
// and assert on the resulting Peer state.
type Scenario struct {
	T       *testing.T
	Queue   *queue.Queue
	Root    *simnet.Network
	Log     types.Logger
	Intros  []types.Endpoint
	Metrics *metrics.Collector

	nats []*simnet.NAT
}

// NewScenario seeds a fresh Queue, an initialized Root network, and a
// metrics.Collector registered against a private registry — every Peer and
// NAT the Scenario builds shares it, and Run samples the gauges Peer
// construction alone can't drive (spec.md §4.I's table-size/queue-depth
// series).
func NewScenario(t *testing.T, seed int64) *Scenario {
	log := definition.NewDefaultLogger()
	log.ToggleDebug(false)

	q := queue.New(seed)
	root := simnet.NewNetwork(types.NewAddress(0, 0, 0, 0), q, log)
	root.Init(q.Now())

	collector := metrics.NewCollector(prometheus.NewRegistry())

	return &Scenario{T: t, Queue: q, Root: root, Log: log, Metrics: collector}
}

// NewIntroducer adds a statically-reachable introducer Peer directly on
// Root at addr, and records its endpoint so later peers' NAT evaluation
// targets it.
func (s *Scenario) NewIntroducer(addr types.Address) *core.Peer {
	adapter, node := transport.NewSimAdapterNode(addr, s.Queue, s.Log)
	s.Root.Add(addr, node)

	config := core.Config{IsIntroducer: true}
	peer, err := core.NewPeer(core.NewIdentity(), config, adapter, s.Log, s.Metrics)
	if err != nil {
		s.T.Fatalf("new introducer at %s: %v", addr, err)
	}
	s.Intros = append(s.Intros, types.Endpoint{Address: addr, Port: definition.LocalPort})
	return peer
}

// NewStaticPeer adds a publicly-reachable, non-introducer Peer directly on
// Root — used for the Static↔Easy scenario's Static side.
func (s *Scenario) NewStaticPeer(addr types.Address, keepAliveMs int64) *core.Peer {
	adapter, node := transport.NewSimAdapterNode(addr, s.Queue, s.Log)
	s.Root.Add(addr, node)

	config := core.Config{KeepAliveMs: keepAliveMs, Introducers: s.Intros}
	peer, err := core.NewPeer(core.NewIdentity(), config, adapter, s.Log, s.Metrics)
	if err != nil {
		s.T.Fatalf("new static peer at %s: %v", addr, err)
	}
	return peer
}

// NewEasyNAT adds an Easy-classified NAT at publicAddr under Root and
// returns it, so multiple internal peers can share it (same-NAT scenarios).
func (s *Scenario) NewEasyNAT(publicAddr types.Address) *simnet.NAT {
	return s.newNAT(publicAddr, types.Easy, simnet.EasyKey)
}

// NewHardNAT adds a Hard-classified NAT at publicAddr under Root.
func (s *Scenario) NewHardNAT(publicAddr types.Address) *simnet.NAT {
	return s.newNAT(publicAddr, types.Hard, simnet.HardKey)
}

func (s *Scenario) newNAT(publicAddr types.Address, kind types.NatType, keyOf simnet.KeyFunc) *simnet.NAT {
	nat := simnet.NewNAT(publicAddr, kind, s.Queue, s.Log, definition.NATMappingTTLMs, false, keyOf, simnet.UniformRandomPort(20000, 60000))
	s.Root.Add(publicAddr, nat)
	s.nats = append(s.nats, nat)
	return nat
}

// NewPeerBehindNAT adds an internal host at hostAddr inside nat's subnet and
// constructs a Peer on it, returning the SimAdapter too so tests can drive
// Sleep()/Wake() on its underlying Node directly (scenario 6).
func (s *Scenario) NewPeerBehindNAT(nat *simnet.NAT, hostAddr types.Address, keepAliveMs int64) (*core.Peer, *transport.SimAdapter) {
	adapter, node := transport.NewSimAdapterNode(hostAddr, s.Queue, s.Log)
	nat.Add(hostAddr, node)

	config := core.Config{KeepAliveMs: keepAliveMs, Introducers: s.Intros}
	peer, err := core.NewPeer(core.NewIdentity(), config, adapter, s.Log, s.Metrics)
	if err != nil {
		s.T.Fatalf("new peer behind nat %s: %v", hostAddr, err)
	}
	return peer, adapter
}

// Run drains the Queue by durationMs of simulated time, then samples the
// queue-depth and per-NAT mapping-table-size gauges (spec.md §4.I) — the
// driver loop is the one place that knows both "the queue just settled" and
// "here are all the NATs this topology built".
func (s *Scenario) Run(durationMs int64) {
	s.Queue.Drain(s.Queue.Now() + durationMs)

	s.Metrics.SetQueueDepth(s.Queue.Len())
	for _, nat := range s.nats {
		s.Metrics.SetNatTableSize(nat.PublicAddress().String(), nat.MappingCount())
	}
}
