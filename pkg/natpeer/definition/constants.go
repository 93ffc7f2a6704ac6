package definition

import "github.com/jabolina/natpeer/pkg/natpeer/types"

// Protocol constants from spec.md §6. Durations are kept as plain int64
// milliseconds rather than time.Duration, matching the rest of the module —
// queue.Queue and simnet.Node already traffic in millisecond ints, and every
// constant here ends up added to one of their timestamps.
const (
	LocalPort = types.Port(3456)
	TestPort  = types.Port(3457)

	BDPIntervalMs = int64(10)
	BDPMaxPackets = 1000
	HardBDPPorts  = 256

	// ConnectingMax bounds how long an Easy-side BDP attempt keeps sending
	// probes before giving up (spec.md §4.F).
	ConnectingMax = BDPIntervalMs * BDPMaxPackets // 10000ms

	// KeepAliveTimeoutMs is the base period T the liveness formula in
	// types.Classify is expressed in terms of (spec.md §3).
	KeepAliveTimeoutMs = int64(29000)

	// DefaultJoinFanout is the MsgJoin.peers value a Peer requests when it
	// doesn't override it explicitly (SPEC_FULL.md §3).
	DefaultJoinFanout = 3

	// RetryPingWindowMs is the idempotency window for retryPing (spec.md §4.F).
	RetryPingWindowMs = int64(1000)

	// NATMappingTTLMs is the simnet.NAT mapping lifetime test.Scenario
	// builds every NAT with.
	NATMappingTTLMs = int64(30000)

	// NatEvalTimeoutMs bounds how long NAT evaluation waits for both
	// introducers to answer before deciding from whatever responses arrived
	// (spec.md §4.F: "or a timeout elapses").
	NatEvalTimeoutMs = int64(500)
)
