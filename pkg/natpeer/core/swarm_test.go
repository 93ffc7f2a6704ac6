package core

import (
	"testing"

	"github.com/jabolina/natpeer/pkg/natpeer/definition"
	"github.com/jabolina/natpeer/pkg/natpeer/types"
	"github.com/jabolina/natpeer/pkg/natpeer/wire"
)

func TestHandleJoin_EmptySwarmRepliesJoinError(t *testing.T) {
	peer, adapter := newTestPeer(t, nil)

	fromA := types.Endpoint{Address: types.NewAddress(10, 0, 0, 1), Port: definition.LocalPort}
	data, _ := wire.Encode(wire.NewJoin("peer-a", "swarm1", types.Easy, 3))
	adapter.deliver(data, fromA, definition.LocalPort)

	packet, ok := adapter.lastSentTo(fromA)
	if !ok {
		t.Fatalf("expected a reply to the sole member of an otherwise empty swarm")
	}
	reply, err := wire.Decode(packet.data)
	if err != nil || reply.Type != wire.TypeJoinError {
		t.Fatalf("expected a joinError, got %+v (err %v)", reply, err)
	}
	if reply.Peers != 1 {
		t.Fatalf("joinError peers = %d, want 1", reply.Peers)
	}
	if peer.swarms["swarm1"] == nil || peer.swarms["swarm1"].Members["peer-a"] == nil {
		t.Fatalf("expected the sender to be registered in the swarm regardless")
	}
}

// TestHandleJoin_FansOutAndPrefersSameNAT drives three joiners through one
// swarm and checks both the Connect fan-out pairing and the same-NAT-first
// tie-break (SPEC_FULL.md §9) by keeping the requested fanout at 1 so only
// the preferred candidate could possibly be chosen.
func TestHandleJoin_FansOutAndPrefersSameNAT(t *testing.T) {
	_, adapter := newTestPeer(t, nil)

	addrX := types.NewAddress(10, 0, 0, 1)
	addrY := types.NewAddress(10, 0, 0, 2)
	fromA := types.Endpoint{Address: addrX, Port: definition.LocalPort}
	fromB := types.Endpoint{Address: addrY, Port: definition.LocalPort}
	fromC := types.Endpoint{Address: addrX, Port: definition.LocalPort + 1}

	dataA, _ := wire.Encode(wire.NewJoin("peer-a", "swarm1", types.Easy, 1))
	adapter.deliver(dataA, fromA, definition.LocalPort)

	dataB, _ := wire.Encode(wire.NewJoin("peer-b", "swarm1", types.Easy, 1))
	adapter.deliver(dataB, fromB, definition.LocalPort)

	packetToA, ok := adapter.lastSentTo(fromA)
	if !ok {
		t.Fatalf("expected A to be offered a connect to B")
	}
	connectToA, err := wire.Decode(packetToA.data)
	if err != nil || connectToA.Type != wire.TypeConnect || connectToA.Target != "peer-b" {
		t.Fatalf("expected a connect naming peer-b, got %+v (err %v)", connectToA, err)
	}

	sentBeforeC := len(adapter.sent)
	dataC, _ := wire.Encode(wire.NewJoin("peer-c", "swarm1", types.Easy, 1))
	adapter.deliver(dataC, fromC, definition.LocalPort)

	if got := len(adapter.sent) - sentBeforeC; got != 2 {
		t.Fatalf("expected exactly 2 new packets (one connect pair) for C's join, got %d", got)
	}

	packetToC, ok := adapter.lastSentTo(fromC)
	if !ok {
		t.Fatalf("expected a connect reply to C")
	}
	connectToC, err := wire.Decode(packetToC.data)
	if err != nil || connectToC.Type != wire.TypeConnect {
		t.Fatalf("expected a connect message to C, got %+v (err %v)", connectToC, err)
	}
	if connectToC.Target != "peer-a" {
		t.Fatalf("C should be paired with the same-NAT peer-a first, got target %s", connectToC.Target)
	}
}

// TestHandleJoin_HardSenderExcludesOtherHardPeers checks the Hard-peer
// exclusion filter and its same-address exception.
func TestHandleJoin_HardSenderExcludesOtherHardPeers(t *testing.T) {
	peer, adapter := newTestPeer(t, nil)

	addrH1 := types.NewAddress(20, 0, 0, 1)
	addrH2 := types.NewAddress(20, 0, 0, 2)
	fromD := types.Endpoint{Address: addrH1, Port: definition.LocalPort}
	fromE := types.Endpoint{Address: addrH2, Port: definition.LocalPort}
	fromF := types.Endpoint{Address: addrH1, Port: definition.LocalPort + 1}

	dataD, _ := wire.Encode(wire.NewJoin("peer-d", "swarm2", types.Hard, 5))
	adapter.deliver(dataD, fromD, definition.LocalPort)

	sentBeforeE := len(adapter.sent)
	dataE, _ := wire.Encode(wire.NewJoin("peer-e", "swarm2", types.Hard, 5))
	adapter.deliver(dataE, fromE, definition.LocalPort)
	if got := len(adapter.sent) - sentBeforeE; got != 0 {
		t.Fatalf("two distinct-address Hard peers must not be introduced to each other, got %d new packets", got)
	}

	sentBeforeF := len(adapter.sent)
	dataF, _ := wire.Encode(wire.NewJoin("peer-f", "swarm2", types.Hard, 5))
	adapter.deliver(dataF, fromF, definition.LocalPort)
	if got := len(adapter.sent) - sentBeforeF; got != 2 {
		t.Fatalf("expected F to be paired with same-address Hard peer D, got %d new packets", got)
	}

	packetToF, ok := adapter.lastSentTo(fromF)
	if !ok {
		t.Fatalf("expected a connect reply to F")
	}
	connectToF, err := wire.Decode(packetToF.data)
	if err != nil || connectToF.Type != wire.TypeConnect || connectToF.Target != "peer-d" {
		t.Fatalf("expected F paired with peer-d (same address exception), got %+v (err %v)", connectToF, err)
	}
	if peer.swarms["swarm2"].Members["peer-e"] == nil {
		t.Fatalf("fromE should still have its earlier join registered")
	}
}

func TestHandleJoinError_DoesNotPanic(t *testing.T) {
	peer, _ := newTestPeer(t, nil)
	peer.handleJoinError(wire.NewJoinError("peer-a", "swarm1", 1, "join"))
}
