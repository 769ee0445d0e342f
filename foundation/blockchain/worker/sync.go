package worker

// Sync announces this node to the known peers, exchanges peer lists,
// merges their mempools and resolves the chain. It runs once at startup
// before the background loops begin.
func (w *Worker) Sync() {
	w.evHandler("worker: sync: started")
	defer w.evHandler("worker: sync: completed")

	for _, pr := range w.state.KnownPeers() {

		// Retrieve the status of this peer and fold its directory into
		// ours.
		status, err := w.state.NetRequestPeerStatus(pr)
		if err != nil {
			w.evHandler("worker: sync: queryPeerStatus: %s: ERROR: %s", pr, err)
			continue
		}

		hosts := make([]string, len(status.KnownPeers))
		for i, known := range status.KnownPeers {
			hosts[i] = known.Host
		}
		w.state.Gossip(hosts)

		// Let the peer know about us and hand over our directory.
		if err := w.state.NetAnnounceSelf(pr); err != nil {
			w.evHandler("worker: sync: announce: %s: ERROR: %s", pr, err)
		}
		if err := w.state.NetSendPeerList(pr); err != nil {
			w.evHandler("worker: sync: sendPeerList: %s: ERROR: %s", pr, err)
		}

		// Pick up the transactions this peer is holding.
		pool, err := w.state.NetRequestPeerMempool(pr)
		if err != nil {
			w.evHandler("worker: sync: queryPeerMempool: %s: ERROR: %s", pr, err)
			continue
		}
		if merged := w.state.MergeMempool(pool); merged > 0 {
			w.evHandler("worker: sync: mergeMempool: %s: merged[%d]", pr, merged)
		}
	}

	// Adopt the longest valid chain the network has to offer.
	if replaced := w.state.Resolve(); replaced {
		w.evHandler("worker: sync: chain replaced: height[%d]", w.state.LatestBlock().Index+1)
	}
}
