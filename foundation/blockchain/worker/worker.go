// Package worker implements the background operations of the node:
// heartbeat probing, local peer discovery and dead peer pruning.
package worker

import (
	"sync"
	"time"

	"github.com/copperchain/blockchain/foundation/blockchain/state"
)

// Default intervals for the background loops.
const (
	defaultHeartbeatInterval = 10 * time.Second
	defaultDiscoveryInterval = 30 * time.Second
	defaultPruneInterval     = 30 * time.Second
)

// Config tunes the background operations.
type Config struct {
	HeartbeatInterval time.Duration
	DiscoveryInterval time.Duration
	PruneInterval     time.Duration

	// Local discovery probes this host across the port range looking for
	// nodes that were started without a seed peer.
	DiscoveryHost      string
	DiscoveryPortStart int
	DiscoveryPortEnd   int
}

// Worker manages the background workflows for the node.
type Worker struct {
	state     *state.State
	cfg       Config
	wg        sync.WaitGroup
	shut      chan struct{}
	evHandler state.EventHandler
}

// Run creates a worker, registers it with the state package and starts all
// the background operations.
func Run(st *state.State, cfg Config, evHandler state.EventHandler) {
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = defaultHeartbeatInterval
	}
	if cfg.DiscoveryInterval == 0 {
		cfg.DiscoveryInterval = defaultDiscoveryInterval
	}
	if cfg.PruneInterval == 0 {
		cfg.PruneInterval = defaultPruneInterval
	}

	w := Worker{
		state:     st,
		cfg:       cfg,
		shut:      make(chan struct{}),
		evHandler: evHandler,
	}

	// Register this worker with the state package.
	st.Worker = &w

	// Bring this node up to date with the network before starting any
	// support G's.
	w.Sync()

	// Load the set of operations we need to run.
	operations := []func(){
		w.heartbeatOperations,
		w.discoveryOperations,
		w.pruneOperations,
	}

	// Set waitgroup to match the number of G's we need for the set
	// of operations we have.
	g := len(operations)
	w.wg.Add(g)

	// We don't want to return until we know all the G's are up and running.
	hasStarted := make(chan bool)

	for _, op := range operations {
		go func(op func()) {
			defer w.wg.Done()
			hasStarted <- true
			op()
		}(op)
	}

	for i := 0; i < g; i++ {
		<-hasStarted
	}
}

// Shutdown terminates the goroutines performing work.
func (w *Worker) Shutdown() {
	w.evHandler("worker: shutdown: started")
	defer w.evHandler("worker: shutdown: completed")

	close(w.shut)
	w.wg.Wait()
}

// isShutdown is used to test if a shutdown has been signaled.
func (w *Worker) isShutdown() bool {
	select {
	case <-w.shut:
		return true
	default:
		return false
	}
}
