// Package database manages the chain of blocks and the mempool of pending
// transactions, implementing the consensus business rules.
package database

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/copperchain/blockchain/foundation/blockchain/signature"
)

// EventHandler defines a function that is called when events occur in the
// processing of blocks and transactions.
type EventHandler func(v string, args ...any)

// Config represents the configuration required to start the ledger.
type Config struct {
	Difficulty int
	Reward     float64
	EvHandler  EventHandler
}

// Ledger owns the ordered chain of blocks and the pool of admitted, not yet
// confirmed transactions. One mutex guards both so a reader can never
// observe a cleared mempool whose transactions are not yet in the chain.
type Ledger struct {
	mu         sync.Mutex
	chain      []Block
	mempool    []Tx
	difficulty int
	reward     float64
	evHandler  EventHandler
}

// New constructs a ledger seeded with the genesis block.
func New(cfg Config) (*Ledger, error) {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	if cfg.Difficulty < 0 {
		return nil, errors.New("difficulty must not be negative")
	}

	// A malformed genesis is a programming invariant violation and the one
	// unrecoverable condition in this package.
	genesis := newGenesisBlock()
	if genesis.Hash != genesis.ComputeHash() || genesis.PrevBlockHash != signature.ZeroHash {
		return nil, errors.New("genesis block malformed")
	}

	l := Ledger{
		chain:      []Block{genesis},
		difficulty: cfg.Difficulty,
		reward:     cfg.Reward,
		evHandler:  ev,
	}

	return &l, nil
}

// Genesis returns the first block of the chain.
func (l *Ledger) Genesis() Block {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.chain[0]
}

// LatestBlock returns the current head of the chain.
func (l *Ledger) LatestBlock() Block {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.chain[len(l.chain)-1]
}

// Height returns the number of blocks in the chain.
func (l *Ledger) Height() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	return uint64(len(l.chain))
}

// Chain returns a copy of the chain of blocks.
func (l *Ledger) Chain() []Block {
	l.mu.Lock()
	defer l.mu.Unlock()

	return slices.Clone(l.chain)
}

// Mempool returns a copy of the pending transactions in admission order.
func (l *Ledger) Mempool() []Tx {
	l.mu.Lock()
	defer l.mu.Unlock()

	return slices.Clone(l.mempool)
}

// Difficulty returns the required count of leading zero hex digits.
func (l *Ledger) Difficulty() int {
	return l.difficulty
}

// Reward returns the amount minted to the miner of a block.
func (l *Ledger) Reward() float64 {
	return l.reward
}

// =============================================================================

// BalanceOf computes the spendable balance for the account across the chain
// and then the mempool. There is no caching; the cost is linear in the
// total number of transactions.
func (l *Ledger) BalanceOf(account string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.balanceOf(account)
}

// balanceOf must be called with the mutex held.
func (l *Ledger) balanceOf(account string) float64 {
	var balance float64

	for _, block := range l.chain {
		for _, tx := range block.Transactions {
			if tx.Sender == account {
				balance -= tx.Amount
			}
			if tx.Receiver == account {
				balance += tx.Amount
			}
		}
	}

	for _, tx := range l.mempool {
		if tx.Sender == account {
			balance -= tx.Amount
		}
		if tx.Receiver == account {
			balance += tx.Amount
		}
	}

	return balance
}

// Admit appends the transaction to the mempool. The balance is checked
// under the same lock that serializes concurrent admissions so two admits
// from the same sender cannot double spend.
func (l *Ledger) Admit(tx Tx) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.admit(tx)
}

// admit must be called with the mutex held.
func (l *Ledger) admit(tx Tx) error {
	if tx.Sender != NetworkAccount {
		if have := l.balanceOf(tx.Sender); have < tx.Amount {
			return &InsufficientBalanceError{Sender: tx.Sender, Have: have, Need: tx.Amount}
		}
	}

	l.mempool = append(l.mempool, tx)
	return nil
}

// =============================================================================

// MineNext builds a candidate block from the mempool plus one reward
// transaction for the beneficiary, runs the proof of work and commits the
// result. The nonce search operates on a private candidate copy; the lock
// is held only while building the candidate and while committing.
func (l *Ledger) MineNext(ctx context.Context, beneficiary string) (Block, error) {
	l.mu.Lock()
	parent := l.chain[len(l.chain)-1]
	txs := append(slices.Clone(l.mempool), NewTx(NetworkAccount, beneficiary, l.reward))
	nb := NewBlock(parent.Index+1, parent.Hash, txs)
	l.mu.Unlock()

	l.evHandler("database: MineNext: mining block[%d] with txs[%d]", nb.Index, len(nb.Transactions))

	if err := nb.PerformPOW(ctx, l.difficulty, l.evHandler); err != nil {
		return Block{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Another block may have been accepted while the search ran. Appending
	// the stale candidate would break the chain linkage invariant.
	if head := l.chain[len(l.chain)-1]; nb.PrevBlockHash != head.Hash {
		return Block{}, ErrStaleBlock
	}

	// The append and the mempool truncation are atomic together. The
	// truncation drops the whole pool, not just the mined subset.
	l.chain = append(l.chain, nb)
	l.mempool = nil

	return nb, nil
}

// =============================================================================

// Validate reports whether every non genesis block of the specified chain
// has an intact hash, links to its parent and meets the difficulty target.
// It is a pure predicate usable on the local chain or a peer candidate.
func (l *Ledger) Validate(chain []Block) bool {
	for i := 1; i < len(chain); i++ {
		if err := chain[i].ValidateBlock(chain[i-1], l.difficulty); err != nil {
			l.evHandler("database: Validate: block[%d]: %s", i, err)
			return false
		}
	}

	return true
}

// AcceptBlock appends a foreign block iff it is a valid one block extension
// of the local head. Any other linkage returns ErrChainForked so the caller
// can run a full resolution, since the mismatch may mean this node is
// behind rather than the block being bogus.
func (l *Ledger) AcceptBlock(b Block) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	head := l.chain[len(l.chain)-1]
	if b.PrevBlockHash != head.Hash {
		return ErrChainForked
	}

	if err := b.ValidateBlock(head, l.difficulty); err != nil {
		return err
	}

	l.chain = append(l.chain, b)
	l.pruneMempool()

	return nil
}

// ReplaceChain installs the candidate as the new local chain iff it is
// strictly longer than the current one and passes validation. Ties keep the
// incumbent. It reports whether a replacement happened.
func (l *Ledger) ReplaceChain(candidate []Block) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(candidate) <= len(l.chain) {
		return false
	}

	if !l.Validate(candidate) {
		return false
	}

	l.evHandler("database: ReplaceChain: replacing height[%d] with height[%d]", len(l.chain), len(candidate))

	l.chain = slices.Clone(candidate)
	l.pruneMempool()

	return true
}

// MergeMempool admits the incoming transactions one by one, skipping any
// whose triple is already confirmed or already pending. Admission failures
// are dropped silently. It returns the number merged.
func (l *Ledger) MergeMempool(txs []Tx) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	confirmed := l.confirmedTriples()

	pending := make(map[string]struct{}, len(l.mempool))
	for _, tx := range l.mempool {
		pending[tx.tripleKey()] = struct{}{}
	}

	var merged int
	for _, tx := range txs {
		key := tx.tripleKey()
		if _, exists := confirmed[key]; exists {
			continue
		}
		if _, exists := pending[key]; exists {
			continue
		}

		if err := l.admit(tx); err != nil {
			l.evHandler("database: MergeMempool: dropped tx[%s]: %s", tx, err)
			continue
		}

		pending[key] = struct{}{}
		merged++
	}

	return merged
}

// =============================================================================

// confirmedTriples must be called with the mutex held.
func (l *Ledger) confirmedTriples() map[string]struct{} {
	confirmed := make(map[string]struct{})
	for _, block := range l.chain {
		for _, tx := range block.Transactions {
			confirmed[tx.tripleKey()] = struct{}{}
		}
	}

	return confirmed
}

// pruneMempool drops pending transactions whose triple is already confirmed
// in the chain. It must be called with the mutex held.
func (l *Ledger) pruneMempool() {
	confirmed := l.confirmedTriples()

	kept := l.mempool[:0]
	for _, tx := range l.mempool {
		if _, exists := confirmed[tx.tripleKey()]; !exists {
			kept = append(kept, tx)
		}
	}

	l.mempool = kept
}
