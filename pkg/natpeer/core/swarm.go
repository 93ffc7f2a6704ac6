package core

import (
	"github.com/jabolina/natpeer/pkg/natpeer/definition"
	"github.com/jabolina/natpeer/pkg/natpeer/types"
	"github.com/jabolina/natpeer/pkg/natpeer/wire"
)

// Join announces this peer to the swarm `swarmID` via `coordinator` (an
// introducer that already tracks that swarm), requesting a fan-out of
// `peers` connections. peers <= 0 falls back to
// definition.DefaultJoinFanout (SPEC_FULL.md §3).
func (p *Peer) Join(swarmID string, coordinator types.Endpoint, peers int) {
	if peers <= 0 {
		peers = definition.DefaultJoinFanout
	}
	if _, ok := p.swarms[swarmID]; !ok {
		p.swarms[swarmID] = types.NewSwarm(swarmID)
	}
	p.coordinators[swarmID] = coordinator
	p.sendTo(wire.NewJoin(p.id, swarmID, p.nat, peers), coordinator, p.config.localPort())
}

func (p *Peer) sendJoin(s *types.Swarm) {
	coordinator, ok := p.coordinators[s.ID]
	if !ok {
		return
	}
	p.sendTo(wire.NewJoin(p.id, s.ID, p.nat, definition.DefaultJoinFanout), coordinator, p.config.localPort())
}

// handleJoin is the swarm-coordinator side of membership (spec.md §4.F):
// register the sender, and either report the swarm as empty or fan out
// MsgConnect to a shuffled, NAT-filtered, same-NAT-preferring subset of the
// other known members.
func (p *Peer) handleJoin(m wire.Message, from types.Endpoint, ts int64) {
	senderID := types.ID(m.ID)
	sender := p.ensurePeer(senderID, from, wire.ParseNat(m.Nat))
	sender.LastRecv = ts

	s, ok := p.swarms[m.Swarm]
	if !ok {
		s = types.NewSwarm(m.Swarm)
		p.swarms[m.Swarm] = s
	}
	s.Members[senderID] = sender
	s.LastHeard = ts

	others := make([]*types.PeerRecord, 0, len(s.Members))
	for id, r := range s.Members {
		if id != senderID {
			others = append(others, r)
		}
	}
	if len(others) == 0 {
		p.sendTo(wire.NewJoinError(senderID, m.Swarm, 1, "join"), from, p.config.localPort())
		return
	}

	rng := p.adapter.Rand()
	rng.Shuffle(len(others), func(i, j int) { others[i], others[j] = others[j], others[i] })

	if sender.Nat == types.Hard {
		filtered := others[:0:0]
		for _, r := range others {
			if r.Nat == types.Hard && r.Address != sender.Address {
				continue
			}
			filtered = append(filtered, r)
		}
		others = filtered
	}

	// Same-NAT candidates sort first: they're cheapest to connect (the
	// MsgLocal path), resolving the tie-break Open Question in
	// SPEC_FULL.md §9.
	sameNat := make([]*types.PeerRecord, 0, len(others))
	rest := make([]*types.PeerRecord, 0, len(others))
	for _, r := range others {
		if r.Address == sender.Address {
			sameNat = append(sameNat, r)
		} else {
			rest = append(rest, r)
		}
	}
	ordered := append(sameNat, rest...)

	fanout := m.Peers
	if fanout <= 0 {
		fanout = definition.DefaultJoinFanout
	}
	if fanout > len(ordered) {
		fanout = len(ordered)
	}

	for _, peerRec := range ordered[:fanout] {
		p.sendTo(wire.NewConnect(p.id, senderID, sender.Endpoint(), sender.Nat, m.Swarm), peerRec.Endpoint(), p.config.localPort())
		p.sendTo(wire.NewConnect(p.id, peerRec.ID, peerRec.Endpoint(), peerRec.Nat, m.Swarm), sender.Endpoint(), p.config.localPort())
	}
}

func (p *Peer) handleJoinError(m wire.Message) {
	p.log.Debugf("peer %s: joinError for swarm %s (%d peers, call %s)", p.id, m.Swarm, m.Peers, m.Call)
}
