// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"net/http"
	"time"

	v1 "github.com/copperchain/blockchain/business/web/v1"
	"github.com/copperchain/blockchain/foundation/blockchain/database"
	"github.com/copperchain/blockchain/foundation/blockchain/state"
	"github.com/copperchain/blockchain/foundation/events"
	"github.com/copperchain/blockchain/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of public endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Genesis returns the genesis block.
func (h Handlers) Genesis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.Genesis(), http.StatusOK)
}

// Chain returns the full local chain.
func (h Handlers) Chain(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.Chain(), http.StatusOK)
}

// Mempool returns the set of uncommitted transactions.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.Mempool(), http.StatusOK)
}

// Balance returns the spendable balance for the specified account.
func (h Handlers) Balance(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	account := web.Param(r, "account")

	resp := balance{
		Account: account,
		Balance: h.State.BalanceOf(account),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// SubmitTransaction adds a new transaction to the mempool.
func (h Handlers) SubmitTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var req newTx
	if err := web.Decode(r, &req); err != nil {
		return err
	}

	tx := database.Tx{
		Sender:    req.Sender,
		Receiver:  req.Receiver,
		Amount:    req.Amount,
		Signature: req.Signature,
	}

	h.Log.Infow("add tran", "traceid", v.TraceID, "tx", tx.String())
	if err := h.State.SubmitTransaction(tx); err != nil {
		return submitError(err)
	}

	resp := struct {
		Status string `json:"status"`
	}{
		Status: "transaction added to mempool",
	}

	return web.Respond(ctx, w, resp, http.StatusCreated)
}

// SubmitSignedTransaction adds a pre-signed transaction to the mempool.
// The signature is mandatory on this route.
func (h Handlers) SubmitSignedTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var req signedTx
	if err := web.Decode(r, &req); err != nil {
		return err
	}

	tx := database.Tx{
		Sender:    req.Sender,
		Receiver:  req.Receiver,
		Amount:    req.Amount,
		Signature: req.Signature,
	}

	h.Log.Infow("add signed tran", "traceid", v.TraceID, "tx", tx.String())
	if err := h.State.SubmitTransaction(tx); err != nil {
		return submitError(err)
	}

	resp := struct {
		Status      string      `json:"status"`
		Transaction database.Tx `json:"transaction"`
	}{
		Status:      "signed transaction added to mempool",
		Transaction: tx,
	}

	return web.Respond(ctx, w, resp, http.StatusCreated)
}

// Mine produces the next block from the mempool and broadcasts it. The
// nonce search is unbounded; the request runs until a block is found.
func (h Handlers) Mine(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	account := web.Param(r, "account")

	h.Log.Infow("mine", "traceid", v.TraceID, "beneficiary", account)

	// The search keeps running even if the client goes away, so the mined
	// block is not lost mid-way.
	block, err := h.State.Mine(context.Background(), account)
	if err != nil {
		return v1.NewRequestError(err, http.StatusBadRequest)
	}

	return web.Respond(ctx, w, block, http.StatusCreated)
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// =============================================================================

// submitError maps a transaction submission failure to the right status
// code. Signature problems are forbidden, balance problems are bad
// requests.
func submitError(err error) error {
	switch {
	case errors.Is(err, database.ErrInvalidSignature), errors.Is(err, database.ErrMissingSignature):
		return v1.NewRequestError(err, http.StatusForbidden)
	default:
		return v1.NewRequestError(err, http.StatusBadRequest)
	}
}
