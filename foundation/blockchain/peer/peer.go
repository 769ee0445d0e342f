// Package peer maintains the set of known peer endpoints and their
// liveness bookkeeping.
package peer

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// Peer represents information about a node in the network. The host is a
// normalized endpoint URL.
type Peer struct {
	Host string `json:"host"`
}

// New constructs a new peer value without normalization. Use Normalize for
// endpoints received from the outside.
func New(host string) Peer {
	return Peer{
		Host: host,
	}
}

// Match validates if the specified host matches this peer.
func (p Peer) Match(host string) bool {
	return p.Host == host
}

// String implements the fmt.Stringer interface.
func (p Peer) String() string {
	return p.Host
}

// Normalize canonicalizes a raw endpoint to the single http://host:port
// form, folding loopback aliases to one hostname so duplicates collapse.
func Normalize(raw string) (Peer, error) {
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Peer{}, fmt.Errorf("unable to parse peer url: %w", err)
	}

	hostname := u.Hostname()
	if hostname == "" {
		return Peer{}, errors.New("peer url has no host")
	}
	if hostname == "127.0.0.1" || hostname == "::1" {
		hostname = "localhost"
	}

	port := u.Port()
	if port == "" {
		return Peer{}, errors.New("peer url has no port")
	}

	return Peer{Host: fmt.Sprintf("http://%s:%s", hostname, port)}, nil
}

// =============================================================================

// Directory maintains the set of known peers, each with a count of
// consecutive failed probes. A peer reaching the failure threshold is
// evicted.
type Directory struct {
	mu        sync.RWMutex
	set       map[Peer]int
	threshold int
}

// NewDirectory constructs a directory that evicts a peer once its
// consecutive failure count reaches the specified threshold.
func NewDirectory(threshold int) *Directory {
	return &Directory{
		set:       make(map[Peer]int),
		threshold: threshold,
	}
}

// Add adds a new peer to the directory and reports whether it was unknown.
func (d *Directory) Add(p Peer) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.set[p]; exists {
		return false
	}

	d.set[p] = 0
	return true
}

// Remove removes a peer from the directory.
func (d *Directory) Remove(p Peer) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.set, p)
}

// Count returns the number of known peers.
func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return len(d.set)
}

// Copy returns a list of the known peers, excluding the specified host.
func (d *Directory) Copy(host string) []Peer {
	d.mu.RLock()
	defer d.mu.RUnlock()

	peers := make([]Peer, 0, len(d.set))
	for p := range d.set {
		if !p.Match(host) {
			peers = append(peers, p)
		}
	}

	return peers
}

// RecordSuccess resets the consecutive failure count for the peer.
func (d *Directory) RecordSuccess(p Peer) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.set[p]; exists {
		d.set[p] = 0
	}
}

// RecordFailure increments the consecutive failure count for the peer and
// evicts it once the threshold is reached. It reports whether the peer
// was evicted.
func (d *Directory) RecordFailure(p Peer) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.set[p]; !exists {
		return false
	}

	d.set[p]++
	if d.set[p] >= d.threshold {
		delete(d.set, p)
		return true
	}

	return false
}

// =============================================================================

// Status represents information about the state of any given peer. It is
// the payload exchanged during gossip so directories converge without a
// central registry.
type Status struct {
	LatestBlockHash   string `json:"latest_block_hash"`
	LatestBlockNumber uint64 `json:"latest_block_number"`
	KnownPeers        []Peer `json:"known_peers"`
}
