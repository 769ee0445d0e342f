package worker

import (
	"time"
)

// pruneOperations removes peers that no longer answer a protocol level
// status request. The heartbeat tolerates transient failures; this loop
// drops peers that cannot serve the sync protocol at all.
func (w *Worker) pruneOperations() {
	w.evHandler("worker: pruneOperations: G started")
	defer w.evHandler("worker: pruneOperations: G completed")

	ticker := time.NewTicker(w.cfg.PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !w.isShutdown() {
				w.runPruneOperation()
			}
		case <-w.shut:
			w.evHandler("worker: pruneOperations: received shut signal")
			return
		}
	}
}

// runPruneOperation asks each peer for its status and removes the ones
// that fail outright.
func (w *Worker) runPruneOperation() {
	for _, pr := range w.state.KnownPeers() {
		if _, err := w.state.NetRequestPeerStatus(pr); err != nil {
			w.state.RemovePeer(pr)
			w.evHandler("worker: runPruneOperation: removed dead peer[%s]: %s", pr, err)
		}
	}
}
