// Package state is the core API for the node and implements the peer
// synchronization protocol on top of the ledger and the peer directory.
package state

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/copperchain/blockchain/foundation/blockchain/database"
	"github.com/copperchain/blockchain/foundation/blockchain/peer"
)

// EventHandler defines a function that is called when events occur in the
// processing of blocks and peers.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by
// any package providing support for the background sync operations.
type Worker interface {
	Shutdown()
}

// =============================================================================

// Config represents the configuration required to start the node state.
type Config struct {
	Host         string
	Ledger       *database.Ledger
	KnownPeers   *peer.Directory
	ProbeTimeout time.Duration
	EvHandler    EventHandler
}

// State manages the node's view of the network and the local ledger.
type State struct {
	host      string
	ledger    *database.Ledger
	peers     *peer.Directory
	evHandler EventHandler
	client    http.Client

	// Worker is not set here. The call to worker.Run will assign itself
	// and start the background operations for the node.
	Worker Worker
}

// New constructs the state for managing the node.
func New(cfg Config) (*State, error) {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	self, err := peer.Normalize(cfg.Host)
	if err != nil {
		return nil, err
	}

	timeout := cfg.ProbeTimeout
	if timeout == 0 {
		timeout = 2 * time.Second
	}

	s := State{
		host:      self.Host,
		ledger:    cfg.Ledger,
		peers:     cfg.KnownPeers,
		evHandler: ev,
		client:    http.Client{Timeout: timeout},
	}

	return &s, nil
}

// Shutdown cleanly brings the node down.
func (s *State) Shutdown() error {
	if s.Worker != nil {
		s.Worker.Shutdown()
	}

	return nil
}

// Host returns this node's normalized endpoint.
func (s *State) Host() string {
	return s.host
}

// =============================================================================
// Ledger access

// Genesis returns the genesis block.
func (s *State) Genesis() database.Block {
	return s.ledger.Genesis()
}

// LatestBlock returns the current head of the local chain.
func (s *State) LatestBlock() database.Block {
	return s.ledger.LatestBlock()
}

// Chain returns a copy of the local chain.
func (s *State) Chain() []database.Block {
	return s.ledger.Chain()
}

// Mempool returns a copy of the pending transactions.
func (s *State) Mempool() []database.Tx {
	return s.ledger.Mempool()
}

// BalanceOf returns the spendable balance of the account.
func (s *State) BalanceOf(account string) float64 {
	return s.ledger.BalanceOf(account)
}

// =============================================================================
// Transactions and mining

// SubmitTransaction verifies the transaction and admits it into the
// mempool, then shares it with the known peers on a best effort basis.
func (s *State) SubmitTransaction(tx database.Tx) error {
	if err := tx.Verify(s.ledger.BalanceOf); err != nil {
		return err
	}

	// Admit re-checks the balance under the admission lock. The Verify
	// above ran unlocked and could race a concurrent admit.
	if err := s.ledger.Admit(tx); err != nil {
		return err
	}

	s.evHandler("state: SubmitTransaction: admitted tx[%s]", tx)
	s.NetShareTx(tx)

	return nil
}

// Mine resolves against the network, mines the next block from the mempool
// and broadcasts the result to the known peers.
func (s *State) Mine(ctx context.Context, beneficiary string) (database.Block, error) {
	if beneficiary == "" {
		return database.Block{}, errors.New("missing beneficiary account")
	}

	// Catch up first so the work is not wasted on a stale parent.
	s.Resolve()

	block, err := s.ledger.MineNext(ctx, beneficiary)
	if err != nil {
		return database.Block{}, err
	}

	s.NetSendBlockToPeers(block)

	return block, nil
}

// MergeMempool admits the incoming peer transactions, skipping duplicates.
// It returns the number merged.
func (s *State) MergeMempool(txs []database.Tx) int {
	return s.ledger.MergeMempool(txs)
}

// ReceiveBlock processes a block received from a peer. A valid one block
// extension is appended; anything else surfaces database.ErrChainForked so
// the caller can trigger a full resolution.
func (s *State) ReceiveBlock(b database.Block) error {
	if err := s.ledger.AcceptBlock(b); err != nil {
		return err
	}

	s.evHandler("state: ReceiveBlock: accepted block[%d] hash[%.12s]", b.Index, b.Hash)

	return nil
}

// =============================================================================
// Peer management

// KnownPeers returns the known peers, excluding this node.
func (s *State) KnownPeers() []peer.Peer {
	return s.peers.Copy(s.host)
}

// AddPeer normalizes and registers a new peer endpoint after a successful
// liveness probe, then performs the bidirectional gossip handshake so both
// directories converge.
func (s *State) AddPeer(raw string) (peer.Peer, error) {
	pr, err := peer.Normalize(raw)
	if err != nil {
		return peer.Peer{}, err
	}

	if pr.Match(s.host) {
		return peer.Peer{}, errors.New("cannot add self as peer")
	}

	status, err := s.NetRequestPeerStatus(pr)
	if err != nil {
		return peer.Peer{}, err
	}

	if s.peers.Add(pr) {
		s.evHandler("state: AddPeer: added peer[%s]", pr)

		// Fold the peer's directory into ours and hand ours back. Both
		// calls are best effort; an unreachable peer is re-probed by the
		// heartbeat later.
		s.gossipPeers(status.KnownPeers)
		if err := s.NetAnnounceSelf(pr); err != nil {
			s.evHandler("state: AddPeer: announce: WARNING: %s", err)
		}
		if err := s.NetSendPeerList(pr); err != nil {
			s.evHandler("state: AddPeer: gossip: WARNING: %s", err)
		}
	}

	return pr, nil
}

// Gossip merges the raw peer endpoints into the directory, skipping this
// node and duplicates. It returns the number of new peers.
func (s *State) Gossip(hosts []string) int {
	var added int
	for _, raw := range hosts {
		pr, err := peer.Normalize(raw)
		if err != nil {
			s.evHandler("state: Gossip: skipping %q: %s", raw, err)
			continue
		}
		if pr.Match(s.host) {
			continue
		}
		if s.peers.Add(pr) {
			s.evHandler("state: Gossip: added peer[%s]", pr)
			added++
		}
	}

	return added
}

// gossipPeers merges already normalized peers into the directory.
func (s *State) gossipPeers(peers []peer.Peer) {
	for _, pr := range peers {
		if pr.Match(s.host) {
			continue
		}
		if s.peers.Add(pr) {
			s.evHandler("state: gossip: added peer[%s]", pr)
		}
	}
}

// RecordPeerSuccess resets the failure counter for the peer.
func (s *State) RecordPeerSuccess(pr peer.Peer) {
	s.peers.RecordSuccess(pr)
}

// RecordPeerFailure increments the failure counter for the peer and
// reports whether the peer reached the threshold and was evicted.
func (s *State) RecordPeerFailure(pr peer.Peer) bool {
	return s.peers.RecordFailure(pr)
}

// RemovePeer drops the peer from the directory.
func (s *State) RemovePeer(pr peer.Peer) {
	s.peers.Remove(pr)
}

// =============================================================================
// Chain resolution

// Resolve applies the longest valid chain rule against every known peer. It
// reports whether the local chain was replaced. Ties keep the local chain.
func (s *State) Resolve() bool {
	s.evHandler("state: Resolve: started")
	defer s.evHandler("state: Resolve: completed")

	var best []database.Block
	bestLen := int(s.ledger.Height())

	for _, pr := range s.KnownPeers() {
		chain, err := s.NetRequestPeerChain(pr)
		if err != nil {
			s.evHandler("state: Resolve: peer[%s]: unreachable: %s", pr, err)
			continue
		}

		if len(chain) > bestLen && s.ledger.Validate(chain) {
			best = chain
			bestLen = len(chain)
		}
	}

	if best == nil {
		return false
	}

	return s.ledger.ReplaceChain(best)
}
