package state_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/copperchain/blockchain/foundation/blockchain/database"
	"github.com/copperchain/blockchain/foundation/blockchain/peer"
	"github.com/copperchain/blockchain/foundation/blockchain/signature"
	"github.com/copperchain/blockchain/foundation/blockchain/state"
	"github.com/ethereum/go-ethereum/crypto"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

func newLedger(t *testing.T) *database.Ledger {
	t.Helper()

	ledger, err := database.New(database.Config{
		Difficulty: 1,
		Reward:     100,
	})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the ledger: %v", failed, err)
	}

	return ledger
}

func newState(t *testing.T, ledger *database.Ledger, peers *peer.Directory, timeout time.Duration) *state.State {
	t.Helper()

	st, err := state.New(state.Config{
		Host:         "localhost:9080",
		Ledger:       ledger,
		KnownPeers:   peers,
		ProbeTimeout: timeout,
	})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the state: %v", failed, err)
	}

	return st
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

func Test_ProbeClassification(t *testing.T) {
	t.Log("Given the need to classify peer probe outcomes.")
	{
		st := newState(t, newLedger(t), peer.NewDirectory(3), 250*time.Millisecond)

		live := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v1/node/ping" {
				http.NotFound(w, r)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		}))
		defer live.Close()

		pr, err := peer.Normalize(live.URL)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to normalize the test url: %v", failed, err)
		}

		if result := st.NetProbePeer(pr); result.Status != state.ProbeSuccess {
			t.Fatalf("\t%s\tShould classify a live peer as success, got %s: %v.", failed, result.Status, result.Err)
		}
		t.Logf("\t%s\tShould classify a live peer as success.", success)

		slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(time.Second)
		}))
		defer slow.Close()

		slowPr, err := peer.Normalize(slow.URL)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to normalize the test url: %v", failed, err)
		}

		if result := st.NetProbePeer(slowPr); result.Status != state.ProbeTimeout {
			t.Fatalf("\t%s\tShould classify a slow peer as timeout, got %s.", failed, result.Status)
		}
		t.Logf("\t%s\tShould classify a slow peer as timeout.", success)

		dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		deadPr, err := peer.Normalize(dead.URL)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to normalize the test url: %v", failed, err)
		}
		dead.Close()

		if result := st.NetProbePeer(deadPr); result.Status != state.ProbeUnreachable {
			t.Fatalf("\t%s\tShould classify a dead peer as unreachable, got %s.", failed, result.Status)
		}
		t.Logf("\t%s\tShould classify a dead peer as unreachable.", success)
	}
}

func Test_Resolve(t *testing.T) {
	t.Log("Given the need to adopt the longest valid peer chain.")
	{
		remote := newLedger(t)
		mine(t, remote, "carol")
		mine(t, remote, "carol")

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v1/node/chain" {
				http.NotFound(w, r)
				return
			}
			json.NewEncoder(w).Encode(remote.Chain())
		}))
		defer srv.Close()

		pr, err := peer.Normalize(srv.URL)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to normalize the test url: %v", failed, err)
		}

		peers := peer.NewDirectory(3)
		peers.Add(pr)

		local := newLedger(t)
		st := newState(t, local, peers, time.Second)

		if !st.Resolve() {
			t.Fatalf("\t%s\tShould replace the local chain with the longer peer chain.", failed)
		}
		t.Logf("\t%s\tShould replace the local chain with the longer peer chain.", success)

		if st.LatestBlock().Hash != remote.LatestBlock().Hash {
			t.Fatalf("\t%s\tShould share the head with the peer after resolution.", failed)
		}
		t.Logf("\t%s\tShould share the head with the peer after resolution.", success)

		// The chains are now the same length, so a second pass keeps ours.
		if st.Resolve() {
			t.Fatalf("\t%s\tShould keep the local chain on a tie.", failed)
		}
		t.Logf("\t%s\tShould keep the local chain on a tie.", success)
	}
}

func Test_SubmitTransaction(t *testing.T) {
	t.Log("Given the need to gate transactions entering the mempool.")
	{
		ledger := newLedger(t)
		st := newState(t, ledger, peer.NewDirectory(3), time.Second)

		if err := st.SubmitTransaction(database.NewTx(database.NetworkAccount, "bob", 10)); err != nil {
			t.Fatalf("\t%s\tShould admit a mint transaction: %v", failed, err)
		}
		if len(st.Mempool()) != 1 {
			t.Fatalf("\t%s\tShould hold the mint in the mempool.", failed)
		}
		t.Logf("\t%s\tShould admit a mint transaction.", success)

		err := st.SubmitTransaction(database.NewTx("alice", "bob", 10))
		if !errors.Is(err, database.ErrMissingSignature) {
			t.Fatalf("\t%s\tShould reject an unsigned user transaction, got %v.", failed, err)
		}
		if len(st.Mempool()) != 1 {
			t.Fatalf("\t%s\tShould leave the mempool unchanged on rejection.", failed)
		}
		t.Logf("\t%s\tShould reject an unsigned user transaction.", success)
	}
}

func Test_TransferScenario(t *testing.T) {
	t.Log("Given the need to settle signed transfers between two accounts.")
	{
		ledger := newLedger(t)
		st := newState(t, ledger, peer.NewDirectory(3), time.Second)

		keyA, err := crypto.GenerateKey()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to generate key A: %v", failed, err)
		}
		keyB, err := crypto.GenerateKey()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to generate key B: %v", failed, err)
		}
		accountA := signature.PublicKeyToAccount(keyA.PublicKey)
		accountB := signature.PublicKeyToAccount(keyB.PublicKey)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		// Fund A with a mint and confirm it.
		if err := st.SubmitTransaction(database.NewTx(database.NetworkAccount, accountA, 100)); err != nil {
			t.Fatalf("\t%s\tShould admit the mint: %v", failed, err)
		}
		if _, err := st.Mine(ctx, "miner"); err != nil {
			t.Fatalf("\t%s\tShould mine the mint: %v", failed, err)
		}
		if got := st.BalanceOf(accountA); got != 100 {
			t.Fatalf("\t%s\tShould credit A with 100, got %v.", failed, got)
		}
		t.Logf("\t%s\tShould credit A with the confirmed mint.", success)

		aToB, err := database.NewTx("", accountB, 40).Sign(keyA)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to sign the A to B transfer: %v", failed, err)
		}
		if err := st.SubmitTransaction(aToB); err != nil {
			t.Fatalf("\t%s\tShould admit the funded transfer: %v", failed, err)
		}
		t.Logf("\t%s\tShould admit the funded transfer.", success)

		// B holds 40 pending and cannot cover 100.
		overdraft, err := database.NewTx("", accountA, 100).Sign(keyB)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to sign the overdraft: %v", failed, err)
		}
		if err := st.SubmitTransaction(overdraft); !database.IsInsufficientBalance(err) {
			t.Fatalf("\t%s\tShould reject the overdraft, got %v.", failed, err)
		}
		t.Logf("\t%s\tShould reject the overdraft.", success)

		bToA, err := database.NewTx("", accountA, 10).Sign(keyB)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to sign the B to A transfer: %v", failed, err)
		}
		if err := st.SubmitTransaction(bToA); err != nil {
			t.Fatalf("\t%s\tShould admit the covered transfer: %v", failed, err)
		}
		t.Logf("\t%s\tShould admit the covered transfer.", success)

		if _, err := st.Mine(ctx, "miner"); err != nil {
			t.Fatalf("\t%s\tShould mine the transfers: %v", failed, err)
		}

		if got := st.BalanceOf(accountA); got != 70 {
			t.Logf("\tgot: %v", got)
			t.Logf("\texp: %v", 70)
			t.Fatalf("\t%s\tShould settle A at 70.", failed)
		}
		if got := st.BalanceOf(accountB); got != 30 {
			t.Logf("\tgot: %v", got)
			t.Logf("\texp: %v", 30)
			t.Fatalf("\t%s\tShould settle B at 30.", failed)
		}
		t.Logf("\t%s\tShould settle both accounts.", success)
	}
}

func Test_ReceiveBlock(t *testing.T) {
	t.Log("Given the need to process blocks pushed by peers.")
	{
		local := newLedger(t)
		remote := newLedger(t)

		st := newState(t, local, peer.NewDirectory(3), time.Second)

		first := mine(t, remote, "carol")
		second := mine(t, remote, "carol")

		// Receiving the second block first means this node is behind.
		if err := st.ReceiveBlock(second); !errors.Is(err, database.ErrChainForked) {
			t.Fatalf("\t%s\tShould report a fork for a non extending block, got %v.", failed, err)
		}
		t.Logf("\t%s\tShould report a fork for a non extending block.", success)

		if err := st.ReceiveBlock(first); err != nil {
			t.Fatalf("\t%s\tShould accept the in order block: %v", failed, err)
		}
		if err := st.ReceiveBlock(second); err != nil {
			t.Fatalf("\t%s\tShould accept the follow up block: %v", failed, err)
		}
		t.Logf("\t%s\tShould accept in order extensions.", success)
	}
}

func Test_Gossip(t *testing.T) {
	t.Log("Given the need to merge gossiped peer lists.")
	{
		st := newState(t, newLedger(t), peer.NewDirectory(3), time.Second)

		hosts := []string{
			"localhost:9080",     // self, skipped
			"localhost:9081",     // new
			"127.0.0.1:9081",     // loopback alias of the above
			"badhost",            // no port, skipped
			"http://remote:9080", // new
		}

		if added := st.Gossip(hosts); added != 2 {
			t.Logf("\tgot: %d", added)
			t.Logf("\texp: %d", 2)
			t.Fatalf("\t%s\tShould add only the new distinct peers.", failed)
		}
		t.Logf("\t%s\tShould add only the new distinct peers.", success)

		if got := len(st.KnownPeers()); got != 2 {
			t.Fatalf("\t%s\tShould know two peers, got %d.", failed, got)
		}
		t.Logf("\t%s\tShould know two peers.", success)
	}
}
