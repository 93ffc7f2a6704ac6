package core

import "github.com/jabolina/natpeer/pkg/natpeer/definition"
import "github.com/jabolina/natpeer/pkg/natpeer/types"

// evaluateNat starts (or restarts) NAT evaluation: publicAddress/nat are
// cleared, MsgPing is sent to every configured introducer, and a timeout is
// armed so evaluation still completes if fewer than two pongs arrive
// (spec.md §4.F "NAT evaluation").
func (p *Peer) evaluateNat() {
	p.publicAddress = 0
	p.publicPort = 0
	p.nat = types.Unknown
	p.eval = natEvalState{active: true, startTS: p.adapter.Now()}

	for _, introducer := range p.config.Introducers {
		p.sendPing(introducer)
	}

	p.adapter.Timer(definition.NatEvalTimeoutMs, 0, func() {
		if p.eval.active {
			p.decideNat()
		}
	})
}

func (p *Peer) isIntroducerEndpoint(ep types.Endpoint) bool {
	for _, in := range p.config.Introducers {
		if in == ep {
			return true
		}
	}
	return false
}

// decideNat applies spec.md §4.F's decision table once evaluation has
// enough information (both introducers responded) or the timeout fired.
func (p *Peer) decideNat() {
	p.eval.active = false

	switch {
	case p.eval.testSeen:
		p.nat = types.Static
	case len(p.eval.pongPorts) >= 2 && p.eval.pongPorts[0] == p.eval.pongPorts[1]:
		p.nat = types.Easy
	case len(p.eval.pongPorts) >= 1:
		p.nat = types.Hard
	default:
		// No introducer answered at all; stay Unknown. Evaluation is only
		// started by NewPeer and is not re-entered automatically.
		p.nat = types.Unknown
	}
	p.log.Infof("peer %s: NAT evaluation complete, classified %s", p.id, p.nat)
	if p.metric != nil {
		p.metric.SetNatType(p.nat)
	}
}
