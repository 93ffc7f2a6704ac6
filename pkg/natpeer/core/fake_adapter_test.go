package core

import (
	"math/rand"

	"github.com/jabolina/natpeer/pkg/natpeer/transport"
	"github.com/jabolina/natpeer/pkg/natpeer/types"
)

// sentPacket records one outbound Send call, for assertions in tests that
// don't want to run a whole simnet.Network just to inspect dispatch logic.
type sentPacket struct {
	data []byte
	to   types.Endpoint
	from types.Port
}

// timerEntry is one armed transport.Adapter.Timer call; tests fire it
// manually rather than advancing a real clock.
type timerEntry struct {
	delayMs  int64
	repeatMs int64
	fn       func()
}

// fakeAdapter is a minimal, single-threaded transport.Adapter double: no
// network, no goroutines, a controllable clock, and recorded sends/timers
// a test can assert against or fire directly.
type fakeAdapter struct {
	addr  types.Address
	now   int64
	rng   *rand.Rand
	onMsg transport.OnMessageFunc
	bound map[types.Port]bool
	sent  []sentPacket
	timers []timerEntry
}

func newFakeAdapter(addr types.Address) *fakeAdapter {
	return &fakeAdapter{
		addr:  addr,
		rng:   rand.New(rand.NewSource(1)),
		bound: make(map[types.Port]bool),
	}
}

func (a *fakeAdapter) Send(data []byte, to types.Endpoint, fromPort types.Port) error {
	a.sent = append(a.sent, sentPacket{data: data, to: to, from: fromPort})
	return nil
}

func (a *fakeAdapter) Timer(delayMs int64, repeatMs int64, fn func()) {
	a.timers = append(a.timers, timerEntry{delayMs: delayMs, repeatMs: repeatMs, fn: fn})
}

func (a *fakeAdapter) Bind(port types.Port) error {
	a.bound[port] = true
	return nil
}

func (a *fakeAdapter) LocalAddress() types.Address { return a.addr }

func (a *fakeAdapter) SetOnMessage(fn transport.OnMessageFunc) { a.onMsg = fn }

func (a *fakeAdapter) Now() int64 { return a.now }

func (a *fakeAdapter) Rand() *rand.Rand { return a.rng }

// deliver simulates an inbound datagram, as if it had just arrived on
// recvPort from from.
func (a *fakeAdapter) deliver(data []byte, from types.Endpoint, recvPort types.Port) {
	a.onMsg(data, from, recvPort, a.now)
}

// lastSentTo returns the most recent packet sent to `to`, if any.
func (a *fakeAdapter) lastSentTo(to types.Endpoint) (sentPacket, bool) {
	for i := len(a.sent) - 1; i >= 0; i-- {
		if a.sent[i].to == to {
			return a.sent[i], true
		}
	}
	return sentPacket{}, false
}
