// Package core implements the NAT-traversal state machine: NAT class
// discovery, introduction/connection handling, birthday-paradox
// hole-punching and swarm membership (spec.md §4.F/G/H). A Peer is built
// against the narrow transport.Adapter contract, so the same state machine
// runs unmodified against the deterministic simulator or a real UDP socket.
package core

import (
	"github.com/pkg/errors"

	"github.com/jabolina/natpeer/pkg/natpeer/definition"
	"github.com/jabolina/natpeer/pkg/natpeer/metrics"
	"github.com/jabolina/natpeer/pkg/natpeer/transport"
	"github.com/jabolina/natpeer/pkg/natpeer/types"
	"github.com/jabolina/natpeer/pkg/natpeer/wire"
)

// natEvalState tracks the partial results of one NAT-evaluation round. The
// source description reads imperatively ("wait for two pongs then decide")
// but the Peer is reactive: each inbound pong/test just updates this state
// and re-checks whether a decision can already be made (spec.md §9).
type natEvalState struct {
	active     bool
	startTS    int64
	pongPorts  []types.Port
	responses  int
	testSeen   bool
}

// Peer is the NAT-traversal state machine. Exported fields are avoided
// entirely — every mutation flows through a message handler or the
// keepalive tick, matching the single-owner, run-to-completion model
// spec.md §5 requires.
type Peer struct {
	id     types.ID
	config Config
	adapter transport.Adapter
	log    types.Logger
	metric *metrics.Collector

	restart int64

	nat           types.NatType
	publicAddress types.Address
	publicPort    types.Port
	pong          *types.PongState
	eval          natEvalState

	peers        map[types.ID]*types.PeerRecord
	swarms       map[string]*types.Swarm
	coordinators map[string]types.Endpoint
	connecting   map[types.ID]int64
	// pinged marks peers retryPing has already sent to, so a zero LastSent
	// is not mistaken for a ping sent at time 0.
	pinged       map[types.ID]bool

	bdp map[types.ID]*bdpAttempt

	lastTick int64
}

// NewPeer binds the local and test ports and begins NAT evaluation. A bind
// failure is the one fatal, first-class error the Peer surfaces (spec.md
// §7) — wrapped the way the retrieval pack wraps construction failures
// (github.com/pkg/errors, as c6ai-hlf-easy and daglabs-dnsseeder do).
func NewPeer(id types.ID, config Config, adapter transport.Adapter, log types.Logger, metric *metrics.Collector) (*Peer, error) {
	now := adapter.Now()
	p := &Peer{
		id:         id,
		config:     config,
		adapter:    adapter,
		log:        log,
		metric:     metric,
		restart:    now,
		nat:        types.Unknown,
		peers:        make(map[types.ID]*types.PeerRecord),
		swarms:       make(map[string]*types.Swarm),
		coordinators: make(map[string]types.Endpoint),
		connecting:   make(map[types.ID]int64),
		pinged:       make(map[types.ID]bool),
		bdp:        make(map[types.ID]*bdpAttempt),
	}

	adapter.SetOnMessage(p.onMessage)

	if err := adapter.Bind(config.localPort()); err != nil {
		return nil, errors.Wrapf(err, "bind local port %d", config.localPort())
	}
	if err := adapter.Bind(config.testPort()); err != nil {
		return nil, errors.Wrapf(err, "bind test port %d", config.testPort())
	}

	if config.KeepAliveMs > 0 {
		p.lastTick = now
		adapter.Timer(config.KeepAliveMs, config.KeepAliveMs, p.keepAliveTick)
	}

	p.evaluateNat()
	return p, nil
}

// ID reports this peer's own identity.
func (p *Peer) ID() types.ID { return p.id }

// NAT reports the currently classified NAT type, Unknown until evaluation
// completes.
func (p *Peer) NAT() types.NatType { return p.nat }

// PublicEndpoint reports the most recently learned public endpoint.
func (p *Peer) PublicEndpoint() types.Endpoint {
	return types.Endpoint{Address: p.publicAddress, Port: p.publicPort}
}

// PeerRecord exposes bookkeeping for a known remote peer, for tests and
// metrics collection.
func (p *Peer) PeerRecord(id types.ID) (*types.PeerRecord, bool) {
	r, ok := p.peers[id]
	return r, ok
}

// Liveness classifies a known peer by the spec.md §3 formula, or reports
// types.Forgotten if the peer is entirely unknown or nothing has been
// received from it yet.
func (p *Peer) Liveness(id types.ID) types.Liveness {
	r, ok := p.peers[id]
	if !ok || r.LastRecv == 0 {
		return types.Forgotten
	}
	return types.Classify(p.adapter.Now()-r.LastRecv, definition.KeepAliveTimeoutMs)
}

// Intro requests that introducer rendezvous this peer with target,
// optionally naming a swarm the connection should be recorded against
// (spec.md §4.F "Introduction and connection").
func (p *Peer) Intro(target types.ID, swarm string, introducer types.Endpoint) {
	p.sendTo(wire.NewIntro(p.id, target, swarm), introducer, p.config.localPort())
}

// keepAliveTick fires every KeepAliveMs. It detects a suspended-then-resumed
// device by comparing the elapsed time against the configured period,
// reclassifies every known peer's liveness, and on a detected wakeup
// re-pings every peer and re-joins every swarm (spec.md §4.F "Initial
// sequence").
func (p *Peer) keepAliveTick() {
	now := p.adapter.Now()
	elapsed := now - p.lastTick
	p.lastTick = now

	wokeUp := elapsed > p.config.KeepAliveMs
	if wokeUp {
		p.log.Infof("peer %s: wakeup detected after %dms idle, re-pinging %d peers", p.id, elapsed, len(p.peers))
		for _, r := range p.peers {
			r.Notified = false
			p.sendPing(r.Endpoint())
		}
		for _, s := range p.swarms {
			p.sendJoin(s)
		}
	}

	for _, r := range p.peers {
		liveness := types.Classify(now-r.LastRecv, definition.KeepAliveTimeoutMs)
		if liveness == types.Active {
			r.Notified = false
			continue
		}
		if !r.Notified {
			r.Notified = true
			p.retryPing(r)
		}
	}
}

// onMessage is the single inbound hook installed on the transport adapter.
// A malformed payload or unrecognized type is a transient, silently-dropped
// condition (spec.md §7) — never a panic.
func (p *Peer) onMessage(data []byte, from types.Endpoint, recvPort types.Port, ts int64) {
	m, err := wire.Decode(data)
	if err != nil {
		p.log.Warnf("peer %s: dropping malformed datagram from %s: %v", p.id, from, err)
		return
	}
	p.log.Debugf("peer %s: received %s from %s on port %d", p.id, m.Type, from, recvPort)

	switch m.Type {
	case wire.TypePing:
		p.handlePing(m, from, recvPort)
	case wire.TypePong:
		p.handlePong(m, from, recvPort, ts)
	case wire.TypeTest:
		p.handleTest(m, from, recvPort, ts)
	case wire.TypeIntro:
		p.handleIntro(m, from)
	case wire.TypeIntroError:
		p.handleIntroError(m)
	case wire.TypeConnect:
		p.handleConnect(m, from, ts)
	case wire.TypeLocal:
		p.handleLocal(m)
	case wire.TypeJoin:
		p.handleJoin(m, from, ts)
	case wire.TypeJoinError:
		p.handleJoinError(m)
	case wire.TypeRelay:
		p.handleRelay(m)
	default:
		p.log.Warnf("peer %s: unknown message type %q", p.id, m.Type)
	}
}

func (p *Peer) sendTo(msg wire.Message, to types.Endpoint, fromPort types.Port) {
	data, err := wire.Encode(msg)
	if err != nil {
		p.log.Errorf("peer %s: encode %s: %v", p.id, msg.Type, err)
		return
	}
	if err := p.adapter.Send(data, to, fromPort); err != nil {
		p.log.Debugf("peer %s: send %s to %s: %v", p.id, msg.Type, to, err)
	}
}

func (p *Peer) sendPing(to types.Endpoint) {
	p.sendTo(wire.NewPing(p.id, p.nat, p.restart), to, p.config.localPort())
}

// ensurePeer returns the PeerRecord for id, creating it on first contact
// (spec.md §3 "Lifecycles"): a record is created on first learned contact
// and destroyed only by explicit removal.
func (p *Peer) ensurePeer(id types.ID, ep types.Endpoint, nat types.NatType) *types.PeerRecord {
	r, ok := p.peers[id]
	if !ok {
		r = &types.PeerRecord{ID: id, Address: ep.Address, Port: ep.Port, Nat: nat}
		p.peers[id] = r
		return r
	}
	if r.Address != ep.Address || r.Port != ep.Port {
		r.Pong = nil
	}
	r.Address = ep.Address
	r.Port = ep.Port
	if nat != types.Unknown {
		r.Nat = nat
	}
	return r
}

// retryPing is idempotent: a ping sent to `r` within the last
// RetryPingWindowMs is a no-op (spec.md §4.F).
func (p *Peer) retryPing(r *types.PeerRecord) {
	now := p.adapter.Now()
	if p.pinged[r.ID] && now-r.LastSent < definition.RetryPingWindowMs {
		return
	}
	p.pinged[r.ID] = true
	r.LastSent = now
	p.sendPing(r.Endpoint())
}
