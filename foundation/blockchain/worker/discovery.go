package worker

import (
	"fmt"
	"time"

	"github.com/copperchain/blockchain/foundation/blockchain/peer"
	"github.com/copperchain/blockchain/foundation/blockchain/state"
)

// discoveryOperations scans the local port range on a fixed interval
// looking for nodes that came up without a seed peer.
func (w *Worker) discoveryOperations() {
	w.evHandler("worker: discoveryOperations: G started")
	defer w.evHandler("worker: discoveryOperations: G completed")

	if w.cfg.DiscoveryPortStart == 0 || w.cfg.DiscoveryPortEnd < w.cfg.DiscoveryPortStart {
		w.evHandler("worker: discoveryOperations: no port range configured, G idle")
		<-w.shut
		return
	}

	ticker := time.NewTicker(w.cfg.DiscoveryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !w.isShutdown() {
				w.runDiscoveryOperation()
			}
		case <-w.shut:
			w.evHandler("worker: discoveryOperations: received shut signal")
			return
		}
	}
}

// runDiscoveryOperation probes every port in the configured range and
// registers any endpoint that answers.
func (w *Worker) runDiscoveryOperation() {
	host := w.cfg.DiscoveryHost
	if host == "" {
		host = "localhost"
	}

	for port := w.cfg.DiscoveryPortStart; port <= w.cfg.DiscoveryPortEnd; port++ {
		candidate := fmt.Sprintf("http://%s:%d", host, port)

		pr, err := peer.Normalize(candidate)
		if err != nil || pr.Match(w.state.Host()) {
			continue
		}

		if result := w.state.NetProbePeer(pr); result.Status != state.ProbeSuccess {
			continue
		}

		if _, err := w.state.AddPeer(pr.Host); err == nil {
			w.evHandler("worker: runDiscoveryOperation: found active peer[%s]", pr)
		}
	}
}
