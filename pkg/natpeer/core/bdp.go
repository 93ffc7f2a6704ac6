package core

import (
	"github.com/jabolina/natpeer/pkg/natpeer/definition"
	"github.com/jabolina/natpeer/pkg/natpeer/types"
	"github.com/jabolina/natpeer/pkg/natpeer/wire"
)

// bdpAttempt tracks one in-flight birthday-paradox hole-punch, either the
// Easy-side random-port scan or the Hard-side fresh-port fan-out
// (spec.md §4.F "Introduction and connection").
type bdpAttempt struct {
	target  types.ID
	role    string
	startTS int64
	sent    int
	tried   map[types.Port]bool
	done    bool
}

// startEasyBDP implements the Easy→Hard pairing: ping T.address on
// unique random destination ports at BDP ms cadence, up to BDP_MAX_PACKETS
// or until a pong arrives.
func (p *Peer) startEasyBDP(record *types.PeerRecord, ts int64) {
	attempt := &bdpAttempt{target: record.ID, role: "easy-scan", startTS: ts, tried: make(map[types.Port]bool)}
	p.bdp[record.ID] = attempt
	if p.metric != nil {
		p.metric.IncBDPAttempt()
	}

	var fire func()
	fire = func() {
		if attempt.done {
			return
		}
		now := p.adapter.Now()
		if now-attempt.startTS >= definition.ConnectingMax || attempt.sent >= definition.BDPMaxPackets {
			attempt.done = true
			p.log.Warnf("peer %s: easy-side BDP to %s exhausted after %d packets", p.id, record.ID, attempt.sent)
			return
		}
		port := p.randomBdpPort(attempt)
		to := types.Endpoint{Address: record.Address, Port: port}
		p.sendTo(wire.NewPing(p.id, p.nat, p.restart), to, p.config.localPort())
		attempt.sent++
		p.adapter.Timer(definition.BDPIntervalMs, 0, fire)
	}
	fire()
}

// startHardBDP implements the Hard→Easy pairing: open up to 256 fresh
// local ports, sending exactly one ping from each toward T's known
// endpoint, with no inter-packet delay.
func (p *Peer) startHardBDP(record *types.PeerRecord, ts int64) {
	attempt := &bdpAttempt{target: record.ID, role: "hard-scan", startTS: ts, tried: make(map[types.Port]bool)}
	p.bdp[record.ID] = attempt
	if p.metric != nil {
		p.metric.IncBDPAttempt()
	}

	to := record.Endpoint()
	for i := 0; i < definition.HardBDPPorts; i++ {
		port := p.randomBdpPort(attempt)
		if err := p.adapter.Bind(port); err != nil {
			p.log.Warnf("peer %s: hard-side BDP bind port %d: %v", p.id, port, err)
			continue
		}
		p.sendTo(wire.NewPing(p.id, p.nat, p.restart), to, port)
		attempt.sent++
	}
}

// randomBdpPort picks a fresh ephemeral port not yet used by this attempt
// and distinct from the two reserved ports, via the adapter's seeded PRNG
// so a simulator run stays reproducible (spec.md §4.A "Determinism").
func (p *Peer) randomBdpPort(attempt *bdpAttempt) types.Port {
	rng := p.adapter.Rand()
	for {
		port := types.Port(1024 + rng.Intn(65535-1024))
		if port == p.config.localPort() || port == p.config.testPort() || attempt.tried[port] {
			continue
		}
		attempt.tried[port] = true
		return port
	}
}

// observeBdpPong completes an in-flight attempt to id, if any, recording
// the local port the winning pong arrived on as the PeerRecord's outport.
func (p *Peer) observeBdpPong(id types.ID, recvPort types.Port) {
	attempt, ok := p.bdp[id]
	if !ok || attempt.done {
		return
	}
	attempt.done = true
	if p.metric != nil {
		p.metric.IncBDPSuccess()
	}
	p.log.Infof("peer %s: BDP to %s succeeded via local port %d", p.id, id, recvPort)
	if record, ok2 := p.peers[id]; ok2 {
		record.Outport = recvPort
	}
}
