// Package private maintains the group of handlers for node to node access.
package private

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	v1 "github.com/copperchain/blockchain/business/web/v1"
	"github.com/copperchain/blockchain/foundation/blockchain/database"
	"github.com/copperchain/blockchain/foundation/blockchain/peer"
	"github.com/copperchain/blockchain/foundation/blockchain/state"
	"github.com/copperchain/blockchain/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of node to node endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
}

// Ping is the liveness probe used by peer heartbeats.
func (h Handlers) Ping(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	resp := struct {
		Status string `json:"status"`
	}{
		Status: "pong",
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Status returns the current chain head and the known peer list.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	latest := h.State.LatestBlock()

	resp := peer.Status{
		LatestBlockHash:   latest.Hash,
		LatestBlockNumber: latest.Index,
		KnownPeers:        h.State.KnownPeers(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Chain returns the full local chain for peer resolution.
func (h Handlers) Chain(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.Chain(), http.StatusOK)
}

// Mempool returns the set of uncommitted transactions.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.Mempool(), http.StatusOK)
}

// MergeMempool folds a peer's pending transactions into the local mempool,
// skipping anything already confirmed or pending.
func (h Handlers) MergeMempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var txs []database.Tx
	if err := web.Decode(r, &txs); err != nil {
		return err
	}

	merged := h.State.MergeMempool(txs)

	resp := struct {
		Merged int `json:"merged"`
	}{
		Merged: merged,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// ListPeers returns the known peers, excluding this node.
func (h Handlers) ListPeers(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.KnownPeers(), http.StatusOK)
}

// AddPeer registers a new peer endpoint after a successful probe and runs
// the gossip handshake with it.
func (h Handlers) AddPeer(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var req addPeer
	if err := web.Decode(r, &req); err != nil {
		return err
	}

	pr, err := h.State.AddPeer(req.Peer)
	if err != nil {
		return v1.NewRequestError(err, http.StatusBadRequest)
	}

	h.Log.Infow("add peer", "traceid", v.TraceID, "peer", pr)

	resp := struct {
		Peer string `json:"peer"`
	}{
		Peer: pr.Host,
	}

	return web.Respond(ctx, w, resp, http.StatusCreated)
}

// GossipPeers merges a peer list pushed by another node into the local
// directory.
func (h Handlers) GossipPeers(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req gossipPeers
	if err := web.Decode(r, &req); err != nil {
		return err
	}

	added := h.State.Gossip(req.Peers)

	resp := struct {
		Added int `json:"added"`
	}{
		Added: added,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// ProposeBlock accepts a newly mined block from a peer. If the block does
// not extend the local head the handler triggers a full chain resolution
// and reports the conflict back to the sender.
func (h Handlers) ProposeBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var block database.Block
	if err := web.Decode(r, &block); err != nil {
		return err
	}

	h.Log.Infow("propose block", "traceid", v.TraceID, "index", block.Index, "hash", block.Hash)

	if err := h.State.ReceiveBlock(block); err != nil {
		if errors.Is(err, database.ErrChainForked) {
			h.State.Resolve()
			return v1.NewRequestError(err, http.StatusNotAcceptable)
		}

		return v1.NewRequestError(fmt.Errorf("rejecting block: %w", err), http.StatusBadRequest)
	}

	resp := struct {
		Status string `json:"status"`
	}{
		Status: "accepted",
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Resolve forces the longest valid chain rule against the known peers.
func (h Handlers) Resolve(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	replaced := h.State.Resolve()

	resp := struct {
		Replaced bool   `json:"replaced"`
		Height   uint64 `json:"height"`
	}{
		Replaced: replaced,
		Height:   h.State.LatestBlock().Index + 1,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}
