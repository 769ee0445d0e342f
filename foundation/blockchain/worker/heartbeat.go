package worker

import (
	"time"

	"github.com/copperchain/blockchain/foundation/blockchain/state"
)

// heartbeatOperations probes every known peer on a fixed interval. A
// successful probe resets the peer's failure counter, a failed one
// increments it; reaching the threshold evicts the peer.
func (w *Worker) heartbeatOperations() {
	w.evHandler("worker: heartbeatOperations: G started")
	defer w.evHandler("worker: heartbeatOperations: G completed")

	ticker := time.NewTicker(w.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !w.isShutdown() {
				w.runHeartbeatOperation()
			}
		case <-w.shut:
			w.evHandler("worker: heartbeatOperations: received shut signal")
			return
		}
	}
}

// runHeartbeatOperation probes each peer once and applies the result to
// the directory bookkeeping.
func (w *Worker) runHeartbeatOperation() {
	for _, pr := range w.state.KnownPeers() {
		result := w.state.NetProbePeer(pr)

		switch result.Status {
		case state.ProbeSuccess:
			w.state.RecordPeerSuccess(pr)

		default:
			w.evHandler("worker: runHeartbeatOperation: peer[%s]: %s", pr, result.Status)
			if evicted := w.state.RecordPeerFailure(pr); evicted {
				w.evHandler("worker: runHeartbeatOperation: evicted unreachable peer[%s]", pr)
			}
		}
	}
}
