package database_test

import (
	"context"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/copperchain/blockchain/foundation/blockchain/database"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

// Mining in the tests runs at difficulty 1 so a solution is found quickly,
// with a deadline as a safety net.
func newLedger(t *testing.T, difficulty int) *database.Ledger {
	t.Helper()

	ledger, err := database.New(database.Config{
		Difficulty: difficulty,
		Reward:     100,
	})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the ledger: %v", failed, err)
	}

	return ledger
}

func mine(t *testing.T, ledger *database.Ledger, beneficiary string) database.Block {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	block, err := ledger.MineNext(ctx, beneficiary)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to mine a block: %v", failed, err)
	}

	return block
}

// =============================================================================

func Test_Genesis(t *testing.T) {
	t.Log("Given the need to construct a deterministic genesis block.")
	{
		ledger := newLedger(t, 1)
		genesis := ledger.Genesis()

		if genesis.Index != 0 {
			t.Fatalf("\t%s\tShould have index 0, got %d.", failed, genesis.Index)
		}
		t.Logf("\t%s\tShould have index 0.", success)

		if genesis.PrevBlockHash != "0" {
			t.Fatalf("\t%s\tShould have parent hash %q, got %q.", failed, "0", genesis.PrevBlockHash)
		}
		t.Logf("\t%s\tShould have parent hash %q.", success, "0")

		if len(genesis.Transactions) != 1 {
			t.Fatalf("\t%s\tShould carry one mint transaction, got %d.", failed, len(genesis.Transactions))
		}
		tx := genesis.Transactions[0]
		if tx.Sender != database.NetworkAccount || tx.Receiver != database.GenesisAccount || tx.Amount != 0 {
			t.Fatalf("\t%s\tShould mint 0 from the network to the genesis account, got %s.", failed, tx)
		}
		t.Logf("\t%s\tShould carry one zero amount mint transaction.", success)

		other := newLedger(t, 1)
		if other.Genesis().Hash != genesis.Hash {
			t.Logf("\tgot: %s", other.Genesis().Hash)
			t.Logf("\texp: %s", genesis.Hash)
			t.Fatalf("\t%s\tShould produce the same genesis on every node.", failed)
		}
		t.Logf("\t%s\tShould produce the same genesis on every node.", success)
	}
}

func Test_MineAndBalances(t *testing.T) {
	t.Log("Given the need to mine blocks and track balances.")
	{
		ledger := newLedger(t, 1)

		block := mine(t, ledger, "alice")

		if block.Index != 1 {
			t.Fatalf("\t%s\tShould extend the genesis, got index %d.", failed, block.Index)
		}
		if block.PrevBlockHash != ledger.Genesis().Hash {
			t.Fatalf("\t%s\tShould link to the genesis hash.", failed)
		}
		t.Logf("\t%s\tShould extend the genesis.", success)

		if !strings.HasPrefix(block.Hash, "0") {
			t.Logf("\tgot: %s", block.Hash)
			t.Fatalf("\t%s\tShould meet the difficulty target.", failed)
		}
		t.Logf("\t%s\tShould meet the difficulty target.", success)

		if len(ledger.Mempool()) != 0 {
			t.Fatalf("\t%s\tShould clear the mempool after mining.", failed)
		}
		t.Logf("\t%s\tShould clear the mempool after mining.", success)

		if got := ledger.BalanceOf("alice"); got != 100 {
			t.Logf("\tgot: %v", got)
			t.Logf("\texp: %v", 100)
			t.Fatalf("\t%s\tShould credit the mining reward.", failed)
		}
		t.Logf("\t%s\tShould credit the mining reward.", success)

		if err := ledger.Admit(database.NewTx("alice", "bob", 40)); err != nil {
			t.Fatalf("\t%s\tShould admit a funded transaction: %v", failed, err)
		}
		t.Logf("\t%s\tShould admit a funded transaction.", success)

		if got := ledger.BalanceOf("alice"); got != 60 {
			t.Logf("\tgot: %v", got)
			t.Logf("\texp: %v", 60)
			t.Fatalf("\t%s\tShould count pending spends against the sender.", failed)
		}
		if got := ledger.BalanceOf("bob"); got != 40 {
			t.Logf("\tgot: %v", got)
			t.Logf("\texp: %v", 40)
			t.Fatalf("\t%s\tShould count pending credits for the receiver.", failed)
		}
		t.Logf("\t%s\tShould include the mempool in balances.", success)

		block = mine(t, ledger, "bob")
		if len(block.Transactions) != 2 {
			t.Fatalf("\t%s\tShould confirm the pending transaction plus the reward, got %d.", failed, len(block.Transactions))
		}
		if got := ledger.BalanceOf("bob"); got != 140 {
			t.Logf("\tgot: %v", got)
			t.Logf("\texp: %v", 140)
			t.Fatalf("\t%s\tShould settle the transfer and the reward.", failed)
		}
		t.Logf("\t%s\tShould settle the transfer and the reward.", success)
	}
}

func Test_InsufficientBalance(t *testing.T) {
	t.Log("Given the need to reject unfunded transactions.")
	{
		ledger := newLedger(t, 1)

		err := ledger.Admit(database.NewTx("alice", "bob", 10))
		if err == nil {
			t.Fatalf("\t%s\tShould reject a spend from an empty account.", failed)
		}
		if !database.IsInsufficientBalance(err) {
			t.Fatalf("\t%s\tShould report an insufficient balance, got %v.", failed, err)
		}
		t.Logf("\t%s\tShould report an insufficient balance.", success)

		if len(ledger.Mempool()) != 0 {
			t.Fatalf("\t%s\tShould leave the mempool unchanged.", failed)
		}
		t.Logf("\t%s\tShould leave the mempool unchanged.", success)

		// The network account mints and is never balance checked.
		if err := ledger.Admit(database.NewTx(database.NetworkAccount, "bob", 10)); err != nil {
			t.Fatalf("\t%s\tShould admit a mint without a balance check: %v", failed, err)
		}
		t.Logf("\t%s\tShould admit a mint without a balance check.", success)
	}
}

func Test_Validate(t *testing.T) {
	t.Log("Given the need to validate a chain of blocks.")
	{
		ledger := newLedger(t, 1)
		mine(t, ledger, "alice")
		if err := ledger.Admit(database.NewTx("alice", "bob", 25)); err != nil {
			t.Fatalf("\t%s\tShould admit a funded transaction: %v", failed, err)
		}
		mine(t, ledger, "alice")

		chain := ledger.Chain()
		if !ledger.Validate(chain) {
			t.Fatalf("\t%s\tShould validate an untampered chain.", failed)
		}
		t.Logf("\t%s\tShould validate an untampered chain.", success)

		// Chain returns a shallow copy, so the transactions are cloned
		// before tampering to keep the ledger under test intact.
		tampered := ledger.Chain()
		tampered[2].Transactions = slices.Clone(tampered[2].Transactions)
		tampered[2].Transactions[0].Amount = 9000
		if ledger.Validate(tampered) {
			t.Fatalf("\t%s\tShould detect a tampered amount.", failed)
		}
		t.Logf("\t%s\tShould detect a tampered amount.", success)

		restamped := ledger.Chain()
		restamped[1].TimeStamp++
		if ledger.Validate(restamped) {
			t.Fatalf("\t%s\tShould detect a tampered timestamp.", failed)
		}
		t.Logf("\t%s\tShould detect a tampered timestamp.", success)

		relinked := ledger.Chain()
		relinked[2].PrevBlockHash = relinked[0].Hash
		relinked[2].Hash = relinked[2].ComputeHash()
		if ledger.Validate(relinked) {
			t.Fatalf("\t%s\tShould detect broken linkage.", failed)
		}
		t.Logf("\t%s\tShould detect broken linkage.", success)
	}
}

func Test_AcceptBlock(t *testing.T) {
	t.Log("Given the need to accept blocks mined by a peer.")
	{
		local := newLedger(t, 1)
		remote := newLedger(t, 1)

		block := mine(t, remote, "carol")

		if err := local.AcceptBlock(block); err != nil {
			t.Fatalf("\t%s\tShould accept a valid one block extension: %v", failed, err)
		}
		if local.Height() != 2 {
			t.Fatalf("\t%s\tShould grow the chain to height 2, got %d.", failed, local.Height())
		}
		t.Logf("\t%s\tShould accept a valid one block extension.", success)

		if err := local.AcceptBlock(block); err != database.ErrChainForked {
			t.Fatalf("\t%s\tShould report a fork for a non extending block, got %v.", failed, err)
		}
		t.Logf("\t%s\tShould report a fork for a non extending block.", success)

		bogus := mine(t, remote, "carol")
		bogus.Transactions = slices.Clone(bogus.Transactions)
		bogus.Transactions[0].Amount = 9000
		if err := local.AcceptBlock(bogus); err == nil {
			t.Fatalf("\t%s\tShould reject a tampered block.", failed)
		}
		t.Logf("\t%s\tShould reject a tampered block.", success)
	}
}

func Test_ReplaceChain(t *testing.T) {
	t.Log("Given the need to resolve against a longer peer chain.")
	{
		local := newLedger(t, 1)
		remote := newLedger(t, 1)

		mine(t, local, "alice")
		mine(t, remote, "carol")
		mine(t, remote, "carol")

		// A tie must keep the incumbent.
		short := remote.Chain()[:2]
		if local.ReplaceChain(short) {
			t.Fatalf("\t%s\tShould keep the local chain on a tie.", failed)
		}
		t.Logf("\t%s\tShould keep the local chain on a tie.", success)

		if !local.ReplaceChain(remote.Chain()) {
			t.Fatalf("\t%s\tShould adopt a strictly longer valid chain.", failed)
		}
		if local.LatestBlock().Hash != remote.LatestBlock().Hash {
			t.Fatalf("\t%s\tShould share the head with the peer after adoption.", failed)
		}
		t.Logf("\t%s\tShould adopt a strictly longer valid chain.", success)

		bad := remote.Chain()
		mine(t, remote, "carol")
		bad = append(bad, remote.Chain()[3])
		bad[3].Transactions = slices.Clone(bad[3].Transactions)
		bad[3].Transactions[0].Amount = 9000
		if local.ReplaceChain(bad) {
			t.Fatalf("\t%s\tShould reject a longer but invalid chain.", failed)
		}
		t.Logf("\t%s\tShould reject a longer but invalid chain.", success)
	}
}

func Test_ReplaceChainPrunesMempool(t *testing.T) {
	t.Log("Given the need to drop pending transactions confirmed elsewhere.")
	{
		local := newLedger(t, 1)
		remote := newLedger(t, 1)

		// The same mint is pending locally and confirmed on the peer.
		tx := database.NewTx(database.NetworkAccount, "bob", 10)
		if err := local.Admit(tx); err != nil {
			t.Fatalf("\t%s\tShould admit the mint locally: %v", failed, err)
		}
		if err := remote.Admit(tx); err != nil {
			t.Fatalf("\t%s\tShould admit the mint remotely: %v", failed, err)
		}
		mine(t, remote, "carol")
		mine(t, remote, "carol")

		if !local.ReplaceChain(remote.Chain()) {
			t.Fatalf("\t%s\tShould adopt the longer chain.", failed)
		}
		if len(local.Mempool()) != 0 {
			t.Fatalf("\t%s\tShould prune the confirmed transaction, still pending: %v.", failed, local.Mempool())
		}
		t.Logf("\t%s\tShould prune the confirmed transaction.", success)
	}
}

func Test_MergeMempool(t *testing.T) {
	t.Log("Given the need to merge a peer mempool.")
	{
		ledger := newLedger(t, 1)
		mine(t, ledger, "alice")

		pending := database.NewTx("alice", "bob", 10)
		if err := ledger.Admit(pending); err != nil {
			t.Fatalf("\t%s\tShould admit the local transaction: %v", failed, err)
		}

		incoming := []database.Tx{
			pending,                               // already pending
			database.NewTx("alice", "bob", 20),    // new, funded
			database.NewTx("mallory", "bob", 999), // unfunded, dropped silently
		}

		merged := ledger.MergeMempool(incoming)
		if merged != 1 {
			t.Logf("\tgot: %d", merged)
			t.Logf("\texp: %d", 1)
			t.Fatalf("\t%s\tShould merge only the new funded transaction.", failed)
		}
		t.Logf("\t%s\tShould merge only the new funded transaction.", success)

		if len(ledger.Mempool()) != 2 {
			t.Fatalf("\t%s\tShould hold two pending transactions, got %d.", failed, len(ledger.Mempool()))
		}
		t.Logf("\t%s\tShould hold two pending transactions.", success)
	}
}

func Test_ZeroDifficulty(t *testing.T) {
	t.Log("Given the need to accept any nonce at difficulty zero.")
	{
		ledger := newLedger(t, 0)

		block := mine(t, ledger, "alice")
		if block.Nonce != 0 {
			t.Logf("\tgot: %d", block.Nonce)
			t.Logf("\texp: %d", 0)
			t.Fatalf("\t%s\tShould solve without incrementing the nonce.", failed)
		}
		t.Logf("\t%s\tShould solve without incrementing the nonce.", success)
	}
}

func Test_MiningCancel(t *testing.T) {
	t.Log("Given the need to stop a nonce search that is not converging.")
	{
		ledger := newLedger(t, 16)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, err := ledger.MineNext(ctx, "alice"); err == nil {
			t.Fatalf("\t%s\tShould stop the search when the context is cancelled.", failed)
		}
		t.Logf("\t%s\tShould stop the search when the context is cancelled.", success)

		if ledger.Height() != 1 {
			t.Fatalf("\t%s\tShould leave the chain untouched, got height %d.", failed, ledger.Height())
		}
		t.Logf("\t%s\tShould leave the chain untouched.", success)
	}
}
