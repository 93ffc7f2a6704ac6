// Package metrics exposes the Prometheus series SPEC_FULL.md §4.I adds on
// top of the original spec: traversal outcomes, NAT table occupancy and
// queue depth. None of the traversal semantics in core or simnet depend on
// these — they are purely additive instrumentation, following the
// collector idiom the retrieval pack's clustering code uses
// around github.com/prometheus/client_golang.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jabolina/natpeer/pkg/natpeer/types"
)

// Collector bundles the natpeer_* series. Callers register it once against a
// prometheus.Registerer and pass it into core.NewPeer; one Collector may be
// shared by several Peers. The NAT table-size and queue-depth gauges are not
// fed by simnet itself: the simulator driver (test.Scenario.Run) samples them.
type Collector struct {
	natTableSize *prometheus.GaugeVec
	peerNatType  *prometheus.GaugeVec
	bdpAttempts  prometheus.Counter
	bdpSuccess   prometheus.Counter
	queueDepth   prometheus.Gauge
}

// NewCollector builds and registers the natpeer_* series on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		natTableSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "natpeer_nat_table_size",
			Help: "Live NAT mapping-table entries, by NAT instance.",
		}, []string{"nat"}),
		peerNatType: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "natpeer_peer_nat_type",
			Help: "1 for the peer's current classified NAT type, 0 otherwise.",
		}, []string{"type"}),
		bdpAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "natpeer_bdp_attempts_total",
			Help: "Birthday-paradox hole-punch attempts started.",
		}),
		bdpSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "natpeer_bdp_success_total",
			Help: "Birthday-paradox hole-punch attempts that reached a pong.",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "natpeer_queue_depth",
			Help: "Pending entries in the simulator's event queue.",
		}),
	}
	reg.MustRegister(c.natTableSize, c.peerNatType, c.bdpAttempts, c.bdpSuccess, c.queueDepth)
	return c
}

// SetNatTableSize records the live mapping count for a named NAT instance.
func (c *Collector) SetNatTableSize(natInstance string, size int) {
	c.natTableSize.WithLabelValues(natInstance).Set(float64(size))
}

// SetNatType marks nat as the peer's current classification, zeroing the
// other three series so exactly one stays at 1.
func (c *Collector) SetNatType(nat types.NatType) {
	for _, t := range []types.NatType{types.Unknown, types.Static, types.Easy, types.Hard} {
		v := 0.0
		if t == nat {
			v = 1.0
		}
		c.peerNatType.WithLabelValues(t.String()).Set(v)
	}
}

func (c *Collector) IncBDPAttempt() { c.bdpAttempts.Inc() }
func (c *Collector) IncBDPSuccess() { c.bdpSuccess.Inc() }

// SetQueueDepth records the simulator driver loop's sampled queue length.
func (c *Collector) SetQueueDepth(n int) { c.queueDepth.Set(float64(n)) }
