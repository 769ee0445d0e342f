package database

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/copperchain/blockchain/foundation/blockchain/signature"
)

// genesisTimeStamp is fixed so every node constructs a byte identical
// genesis block and fresh nodes can exchange blocks immediately.
const genesisTimeStamp = 0

// Block represents a group of transactions batched together with the
// linkage metadata and the nonce discovered by the proof of work.
type Block struct {
	Index         uint64 `json:"index"`
	PrevBlockHash string `json:"previous_hash"`
	TimeStamp     uint64 `json:"timestamp"`
	Transactions  []Tx   `json:"transactions"`
	Nonce         uint64 `json:"nonce"`
	Hash          string `json:"hash"`
}

// NewBlock constructs a block linked to the specified parent hash. The hash
// is computed immediately so a freshly built block is self consistent
// before mining begins.
func NewBlock(index uint64, prevBlockHash string, txs []Tx) Block {
	b := Block{
		Index:         index,
		PrevBlockHash: prevBlockHash,
		TimeStamp:     uint64(time.Now().UTC().Unix()),
		Transactions:  txs,
	}
	b.Hash = b.ComputeHash()

	return b
}

// newGenesisBlock constructs the deterministic first block of the chain.
func newGenesisBlock() Block {
	b := Block{
		Index:         0,
		PrevBlockHash: signature.ZeroHash,
		TimeStamp:     genesisTimeStamp,
		Transactions:  []Tx{NewTx(NetworkAccount, GenesisAccount, 0)},
	}
	b.Hash = b.ComputeHash()

	return b
}

// ComputeHash returns the digest of the block contents. It must be
// recomputed whenever the nonce, timestamp or transactions change.
func (b Block) ComputeHash() string {
	var sb strings.Builder
	sb.WriteString(formatUint(b.Index))
	sb.WriteString(b.PrevBlockHash)
	sb.WriteString(formatUint(b.TimeStamp))
	for _, tx := range b.Transactions {
		sb.WriteString(tx.String())
	}
	sb.WriteString(formatUint(b.Nonce))

	return signature.Hash([]byte(sb.String()))
}

// PerformPOW increments the nonce and recomputes the hash until the hash
// carries the required number of leading zero hex digits. Pointer semantics
// are being used since a nonce is being discovered. The loop is unbounded;
// the context is the only way to stop a search that is not converging.
func (b *Block) PerformPOW(ctx context.Context, difficulty int, ev func(v string, args ...any)) error {
	ev("database: PerformPOW: MINING: started: block[%d]", b.Index)
	defer ev("database: PerformPOW: MINING: completed: block[%d]", b.Index)

	var attempts uint64
	for {
		attempts++
		if attempts%1_000_000 == 0 {
			ev("database: PerformPOW: MINING: attempts[%d]", attempts)
		}

		if ctx.Err() != nil {
			ev("database: PerformPOW: MINING: CANCELLED")
			return ctx.Err()
		}

		if isHashSolved(difficulty, b.Hash) {
			ev("database: PerformPOW: MINING: SOLVED: prevBlk[%.12s]: newBlk[%.12s]: attempts[%d]", b.PrevBlockHash, b.Hash, attempts)
			return nil
		}

		b.Nonce++
		b.Hash = b.ComputeHash()
	}
}

// ValidateBlock checks the block is internally consistent, extends the
// specified parent and meets the difficulty target.
func (b Block) ValidateBlock(parent Block, difficulty int) error {
	if b.Hash != b.ComputeHash() {
		return ErrHashMismatch
	}

	if b.PrevBlockHash != parent.Hash {
		return ErrBrokenLinkage
	}

	if !isHashSolved(difficulty, b.Hash) {
		return ErrDifficultyNotMet
	}

	return nil
}

// =============================================================================

// formatUint renders an unsigned value for the hash input.
func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}

// isHashSolved checks the hash to make sure it complies with
// the POW rules.
func isHashSolved(difficulty int, hash string) bool {
	if difficulty <= 0 {
		return true
	}
	if len(hash) < difficulty {
		return false
	}

	return hash[:difficulty] == strings.Repeat("0", difficulty)
}
