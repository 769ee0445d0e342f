package peer_test

import (
	"testing"

	"github.com/copperchain/blockchain/foundation/blockchain/peer"
)

func Test_Normalize(t *testing.T) {
	type table struct {
		name string
		raw  string
		exp  string
		fail bool
	}

	tt := []table{
		{name: "bare", raw: "localhost:9080", exp: "http://localhost:9080"},
		{name: "scheme", raw: "http://localhost:9080", exp: "http://localhost:9080"},
		{name: "loopback4", raw: "127.0.0.1:9080", exp: "http://localhost:9080"},
		{name: "loopback6", raw: "http://[::1]:9080", exp: "http://localhost:9080"},
		{name: "trailing", raw: "http://localhost:9080/", exp: "http://localhost:9080"},
		{name: "noport", raw: "localhost", fail: true},
		{name: "nohost", raw: "http://:9080", fail: true},
	}

	for _, tst := range tt {
		f := func(t *testing.T) {
			pr, err := peer.Normalize(tst.raw)

			if tst.fail {
				if err == nil {
					t.Fatalf("Test %s:\tShould reject %q, got %q.", tst.name, tst.raw, pr.Host)
				}
				return
			}

			if err != nil {
				t.Fatalf("Test %s:\tShould normalize %q: %v", tst.name, tst.raw, err)
			}
			if pr.Host != tst.exp {
				t.Logf("Test %s:\tgot: %s", tst.name, pr.Host)
				t.Logf("Test %s:\texp: %s", tst.name, tst.exp)
				t.Fatalf("Test %s:\tShould get back the normalized host.", tst.name)
			}
		}

		t.Run(tst.name, f)
	}
}

func Test_CRUD(t *testing.T) {
	type table struct {
		name  string
		peers []peer.Peer
	}

	tt := []table{
		{
			name:  "basic",
			peers: []peer.Peer{{Host: "http://host1:9080"}, {Host: "http://host2:9080"}, {Host: "http://host3:9080"}},
		},
	}

	for _, tst := range tt {
		f := func(t *testing.T) {
			dir := peer.NewDirectory(3)

			for _, pr := range tst.peers {
				if !dir.Add(pr) {
					t.Fatalf("Test %s:\tShould report a new peer as added.", tst.name)
				}
			}

			if dir.Add(tst.peers[0]) {
				t.Fatalf("Test %s:\tShould not report a known peer as added.", tst.name)
			}

			peers := dir.Copy("")
			if len(peers) != len(tst.peers) {
				t.Logf("Test %s:\tgot: %d", tst.name, len(peers))
				t.Logf("Test %s:\texp: %d", tst.name, len(tst.peers))
				t.Fatalf("Test %s:\tShould get back the right peers.", tst.name)
			}

			peers = dir.Copy("http://host2:9080")
			if len(peers) != len(tst.peers)-1 {
				t.Logf("Test %s:\tgot: %d", tst.name, len(peers))
				t.Logf("Test %s:\texp: %d", tst.name, len(tst.peers)-1)
				t.Fatalf("Test %s:\tShould exclude the specified host.", tst.name)
			}

			dir.Remove(tst.peers[0])
			if dir.Count() != len(tst.peers)-1 {
				t.Fatalf("Test %s:\tShould get back the right count after remove.", tst.name)
			}
		}

		t.Run(tst.name, f)
	}
}

func Test_Eviction(t *testing.T) {
	pr := peer.Peer{Host: "http://host1:9080"}

	dir := peer.NewDirectory(3)
	dir.Add(pr)

	if dir.RecordFailure(pr) {
		t.Fatal("Should not evict after one failure.")
	}
	if dir.RecordFailure(pr) {
		t.Fatal("Should not evict after two failures.")
	}
	if !dir.RecordFailure(pr) {
		t.Fatal("Should evict after three consecutive failures.")
	}
	if dir.Count() != 0 {
		t.Fatal("Should remove the evicted peer from the directory.")
	}

	// A success in between resets the streak.
	dir.Add(pr)
	dir.RecordFailure(pr)
	dir.RecordFailure(pr)
	dir.RecordSuccess(pr)
	if dir.RecordFailure(pr) {
		t.Fatal("Should reset the failure count on success.")
	}
	if dir.Count() != 1 {
		t.Fatal("Should keep the peer after a reset streak.")
	}
}
