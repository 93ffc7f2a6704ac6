package core

import (
	"github.com/jabolina/natpeer/pkg/natpeer/definition"
	"github.com/jabolina/natpeer/pkg/natpeer/types"
	"github.com/jabolina/natpeer/pkg/natpeer/wire"
)

// handlePing replies with a MsgPong echoing the observed source endpoint
// and, for an introducer, also fires a MsgTest to the sender's address on
// TEST_PORT (spec.md §4.F/§4.G).
func (p *Peer) handlePing(m wire.Message, from types.Endpoint, recvPort types.Port) {
	if id := types.ID(m.ID); id != "" && id != p.id {
		r := p.ensurePeer(id, from, wire.ParseNat(m.Nat))
		r.LastRecv = p.adapter.Now()
		if m.Restart != 0 {
			r.RestartTS = m.Restart
		}
	}

	pong := wire.NewPong(p.id, from, p.nat, p.restart, p.adapter.Now())
	p.sendTo(pong, from, recvPort)

	if p.config.IsIntroducer {
		test := wire.NewTest(p.id, from, p.nat)
		p.sendTo(test, types.Endpoint{Address: from.Address, Port: p.config.testPort()}, p.config.testPort())
	}
}

// handlePong updates the sender's PeerRecord, refreshes this Peer's
// self-view when the reply came from a trusted introducer, feeds an
// active NAT-evaluation round, and completes any in-flight BDP attempt
// targeting the sender (spec.md §4.F).
func (p *Peer) handlePong(m wire.Message, from types.Endpoint, recvPort types.Port, ts int64) {
	ep := wire.EndpointOf(m)
	selfView := types.PongState{Timestamp: m.Timestamp, Address: ep.Address, Port: ep.Port}

	if p.isIntroducerEndpoint(from) {
		p.pong = &selfView
		if p.eval.active {
			if p.eval.responses == 0 {
				p.publicAddress = ep.Address
				p.publicPort = ep.Port
			}
			p.eval.pongPorts = append(p.eval.pongPorts, ep.Port)
			p.eval.responses++
			if p.eval.responses >= len(p.config.Introducers) {
				p.decideNat()
			}
		}
	}

	id := types.ID(m.ID)
	if id == "" || id == p.id {
		return
	}
	record := p.ensurePeer(id, from, wire.ParseNat(m.Nat))
	record.LastRecv = ts
	record.Pong = &selfView
	if m.Restart != 0 {
		record.RestartTS = m.Restart
	}
	p.observeBdpPong(id, recvPort)
}

// handleTest is conclusive proof of a Static NAT: the packet reached
// TEST_PORT unsolicited, which only a publicly reachable endpoint allows.
func (p *Peer) handleTest(m wire.Message, from types.Endpoint, recvPort types.Port, ts int64) {
	if recvPort != p.config.testPort() {
		return
	}
	ep := wire.EndpointOf(m)
	p.pong = &types.PongState{Timestamp: ts, Address: ep.Address, Port: ep.Port}
	p.eval.testSeen = true
	p.nat = types.Static
	p.publicAddress = ep.Address
	p.publicPort = ep.Port
	if p.eval.active {
		p.decideNat()
	}
	if p.metric != nil {
		p.metric.SetNatType(p.nat)
	}
}

// handleIntro services a rendezvous request: if both the requester and the
// named target are known to this (introducer) peer, it sends each a
// MsgConnect describing the other; otherwise it replies MsgIntroError
// (spec.md §4.F "Introduction and connection").
func (p *Peer) handleIntro(m wire.Message, from types.Endpoint) {
	senderID := types.ID(m.ID)
	targetID := types.ID(m.Target)

	sender, ok := p.peers[senderID]
	target, ok2 := p.peers[targetID]
	if !ok || !ok2 {
		p.sendTo(wire.NewIntroError(senderID, targetID, "intro"), from, p.config.localPort())
		return
	}

	p.sendTo(wire.NewConnect(p.id, targetID, target.Endpoint(), target.Nat, m.Swarm), sender.Endpoint(), p.config.localPort())
	p.sendTo(wire.NewConnect(p.id, senderID, sender.Endpoint(), sender.Nat, m.Swarm), target.Endpoint(), p.config.localPort())
}

func (p *Peer) handleIntroError(m wire.Message) {
	p.log.Warnf("peer %s: introduction to %s failed (%s)", p.id, m.Target, m.Call)
	delete(p.connecting, types.ID(m.Target))
}

// handleConnect is the heart of spec.md §4.F's dispatch table: given self's
// and the target's classified NAT kinds, pick retryPing, the Easy-side
// scan, the Hard-side fan-out, same-NAT relay, or outright failure.
func (p *Peer) handleConnect(m wire.Message, from types.Endpoint, ts int64) {
	target := types.ID(m.Target)
	if target == "" || target == p.id {
		return
	}
	ep := wire.EndpointOf(m)
	nat := wire.ParseNat(m.Nat)
	record := p.ensurePeer(target, ep, nat)

	if m.Swarm != "" {
		if s, ok := p.swarms[m.Swarm]; ok {
			s.Members[target] = record
		}
	}

	if start, ok := p.connecting[target]; ok && ts-start < definition.ConnectingMax {
		p.retryPing(record)
		return
	}
	if record.LastRecv != 0 && ts-record.LastRecv < definition.KeepAliveTimeoutMs {
		p.retryPing(record)
		return
	}
	p.connecting[target] = ts

	if p.publicAddress != 0 && ep.Address == p.publicAddress {
		p.relayLocal(target, from)
		return
	}

	switch {
	case (p.nat == types.Easy || p.nat == types.Static) && (nat == types.Easy || nat == types.Static):
		p.retryPing(record)
	case p.nat == types.Easy && nat == types.Hard:
		p.startEasyBDP(record, ts)
	case p.nat == types.Hard && (nat == types.Easy || nat == types.Static):
		p.startHardBDP(record, ts)
	case p.nat == types.Hard && nat == types.Hard:
		p.log.Warnf("peer %s: cannot traverse to %s, both sides are Hard NAT", p.id, target)
	default:
		// Remaining pairings (either side still Unknown, or a Static self
		// facing a Hard target) get a single ping.
		p.retryPing(record)
	}
}

// relayLocal handles same-NAT peers (spec.md §4.F): both sides share a
// public address, so direct local connectivity is advertised by relaying a
// MsgLocal through the introducer that issued the MsgConnect, naming this
// peer's own internal endpoint.
func (p *Peer) relayLocal(target types.ID, introducer types.Endpoint) {
	localEp := types.Endpoint{Address: p.adapter.LocalAddress(), Port: p.config.localPort()}
	localMsg := wire.NewLocal(p.id, localEp)
	content, err := wire.Encode(localMsg)
	if err != nil {
		p.log.Errorf("peer %s: encode local: %v", p.id, err)
		return
	}
	p.sendTo(wire.NewRelay(target, content), introducer, p.config.localPort())
}

// handleLocal retries a ping to the sender's advertised internal endpoint
// (spec.md §4.F).
func (p *Peer) handleLocal(m wire.Message) {
	id := types.ID(m.ID)
	if id == "" || id == p.id {
		return
	}
	ep := wire.EndpointOf(m)
	record := p.ensurePeer(id, ep, types.Unknown)
	p.retryPing(record)
}

// handleRelay forwards opaque content to a known target's endpoint
// (spec.md §4.F). An unknown target is a silent, transient drop.
func (p *Peer) handleRelay(m wire.Message) {
	target, ok := p.peers[types.ID(m.Target)]
	if !ok {
		p.log.Debugf("peer %s: relay to unknown target %s dropped", p.id, m.Target)
		return
	}
	if err := p.adapter.Send(m.Content, target.Endpoint(), p.config.localPort()); err != nil {
		p.log.Debugf("peer %s: relay forward to %s: %v", p.id, target.ID, err)
	}
}
