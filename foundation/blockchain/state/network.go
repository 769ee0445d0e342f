package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/copperchain/blockchain/foundation/blockchain/database"
	"github.com/copperchain/blockchain/foundation/blockchain/peer"
)

// baseURL is the route prefix for the node to node protocol.
const baseURL = "%s/v1/node"

// ProbeStatus classifies the outcome of a peer boundary call so heartbeat
// and eviction bookkeeping can be tested deterministically.
type ProbeStatus string

// The set of probe outcomes.
const (
	ProbeSuccess     ProbeStatus = "success"
	ProbeTimeout     ProbeStatus = "timeout"
	ProbeUnreachable ProbeStatus = "unreachable"
)

// ProbeResult carries the classified outcome of probing a single peer.
type ProbeResult struct {
	Peer   peer.Peer
	Status ProbeStatus
	Err    error
}

// NetProbePeer performs a liveness probe against the peer. A failed or
// timed out call degrades to a structured result, never an error to the
// caller.
func (s *State) NetProbePeer(pr peer.Peer) ProbeResult {
	url := fmt.Sprintf("%s/ping", fmt.Sprintf(baseURL, pr.Host))

	if err := s.send(http.MethodGet, url, nil, nil); err != nil {
		return ProbeResult{Peer: pr, Status: classify(err), Err: err}
	}

	return ProbeResult{Peer: pr, Status: ProbeSuccess}
}

// NetRequestPeerStatus asks the peer for its head and its peer list.
func (s *State) NetRequestPeerStatus(pr peer.Peer) (peer.Status, error) {
	url := fmt.Sprintf("%s/status", fmt.Sprintf(baseURL, pr.Host))

	var ps peer.Status
	if err := s.send(http.MethodGet, url, nil, &ps); err != nil {
		return peer.Status{}, err
	}

	return ps, nil
}

// NetRequestPeerChain fetches the peer's full chain for resolution.
func (s *State) NetRequestPeerChain(pr peer.Peer) ([]database.Block, error) {
	url := fmt.Sprintf("%s/chain", fmt.Sprintf(baseURL, pr.Host))

	var chain []database.Block
	if err := s.send(http.MethodGet, url, nil, &chain); err != nil {
		return nil, err
	}

	return chain, nil
}

// NetRequestPeerMempool asks the peer for the transactions in its mempool.
func (s *State) NetRequestPeerMempool(pr peer.Peer) ([]database.Tx, error) {
	url := fmt.Sprintf("%s/mempool", fmt.Sprintf(baseURL, pr.Host))

	var mempool []database.Tx
	if err := s.send(http.MethodGet, url, nil, &mempool); err != nil {
		return nil, err
	}

	return mempool, nil
}

// NetSendBlockToPeers broadcasts a newly mined block to every known peer.
// Delivery is best effort; an unreachable peer is left to the heartbeat.
func (s *State) NetSendBlockToPeers(block database.Block) {
	s.evHandler("state: NetSendBlockToPeers: started")
	defer s.evHandler("state: NetSendBlockToPeers: completed")

	for _, pr := range s.KnownPeers() {
		url := fmt.Sprintf("%s/block/propose", fmt.Sprintf(baseURL, pr.Host))

		if err := s.send(http.MethodPost, url, block, nil); err != nil {
			s.evHandler("state: NetSendBlockToPeers: peer[%s]: WARNING: %s", pr, err)
			continue
		}

		s.evHandler("state: NetSendBlockToPeers: sent to peer[%s]", pr)
	}
}

// NetShareTx shares a newly admitted transaction with every known peer on
// a best effort basis.
func (s *State) NetShareTx(tx database.Tx) {
	for _, pr := range s.KnownPeers() {
		url := fmt.Sprintf("%s/mempool/merge", fmt.Sprintf(baseURL, pr.Host))

		if err := s.send(http.MethodPost, url, []database.Tx{tx}, nil); err != nil {
			s.evHandler("state: NetShareTx: peer[%s]: WARNING: %s", pr, err)
		}
	}
}

// NetAnnounceSelf asks the peer to register this node in its directory.
func (s *State) NetAnnounceSelf(pr peer.Peer) error {
	url := fmt.Sprintf("%s/peers", fmt.Sprintf(baseURL, pr.Host))

	payload := struct {
		Peer string `json:"peer"`
	}{
		Peer: s.host,
	}

	return s.send(http.MethodPost, url, payload, nil)
}

// NetSendPeerList hands our peer list to the peer so both directories
// converge without a central registry.
func (s *State) NetSendPeerList(pr peer.Peer) error {
	url := fmt.Sprintf("%s/peers/gossip", fmt.Sprintf(baseURL, pr.Host))

	hosts := []string{s.host}
	for _, known := range s.KnownPeers() {
		hosts = append(hosts, known.Host)
	}

	payload := struct {
		Peers []string `json:"peers"`
	}{
		Peers: hosts,
	}

	return s.send(http.MethodPost, url, payload, nil)
}

// =============================================================================

// classify maps a transport error to a probe status.
func classify(err error) ProbeStatus {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ProbeTimeout
	}

	return ProbeUnreachable
}

// send is a helper function to send an HTTP request to a peer node.
func (s *State) send(method string, url string, dataSend any, dataRecv any) error {
	var req *http.Request

	switch {
	case dataSend != nil:
		data, err := json.Marshal(dataSend)
		if err != nil {
			return err
		}
		req, err = http.NewRequest(method, url, bytes.NewReader(data))
		if err != nil {
			return err
		}

	default:
		var err error
		req, err = http.NewRequest(method, url, nil)
		if err != nil {
			return err
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if resp.StatusCode != http.StatusOK {
		msg, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		return errors.New(string(msg))
	}

	if dataRecv != nil {
		if err := json.NewDecoder(resp.Body).Decode(dataRecv); err != nil {
			return err
		}
	}

	return nil
}
