// Command natpeerd is a thin illustration of wiring core.Peer to a real
// UDP socket — not a shipped CLI product (no flag-parsing library), per the
// original spec's Non-goals. It exists so the transport.UDPAdapter path has
// somewhere to be exercised outside of tests.
package main

import (
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jabolina/natpeer/pkg/natpeer/core"
	"github.com/jabolina/natpeer/pkg/natpeer/definition"
	"github.com/jabolina/natpeer/pkg/natpeer/metrics"
	"github.com/jabolina/natpeer/pkg/natpeer/transport"
	"github.com/jabolina/natpeer/pkg/natpeer/types"
)

func main() {
	log := definition.NewDefaultLogger()

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	adapter := transport.NewUDPAdapter(types.NewAddress(127, 0, 0, 1))
	defer adapter.Close()

	config := core.Config{
		LocalPort:   definition.LocalPort,
		TestPort:    definition.TestPort,
		KeepAliveMs: definition.KeepAliveTimeoutMs,
		Introducers: []types.Endpoint{
			{Address: types.NewAddress(1, 0, 0, 1), Port: definition.LocalPort},
			{Address: types.NewAddress(1, 0, 0, 2), Port: definition.LocalPort},
		},
	}

	peer, err := core.NewPeer(core.NewIdentity(), config, adapter, log, collector)
	if err != nil {
		log.Errorf("natpeerd: %v", err)
		os.Exit(1)
	}
	log.Infof("natpeerd: peer %s listening on %d/%d", peer.ID(), config.LocalPort, config.TestPort)

	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(":9110", nil); err != nil {
		log.Errorf("natpeerd: metrics server: %v", err)
		os.Exit(1)
	}
}
