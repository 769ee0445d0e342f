package private

// addPeer is the request model for registering a single peer endpoint.
type addPeer struct {
	Peer string `json:"peer" validate:"required"`
}

// gossipPeers is the request model for a pushed peer list.
type gossipPeers struct {
	Peers []string `json:"peers" validate:"required"`
}
