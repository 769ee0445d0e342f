package database

import (
	"crypto/ecdsa"
	"fmt"
	"strconv"

	"github.com/copperchain/blockchain/foundation/blockchain/signature"
)

// NetworkAccount is the sender of reward and mint transactions. Transactions
// from this account bypass signature and balance checks.
const NetworkAccount = "network"

// GenesisAccount receives the zero value mint recorded in the genesis block.
const GenesisAccount = "genesis"

// =============================================================================

// Tx represents a transfer of value between two accounts. The sender is the
// hex encoded public key of the paying account, or "network" for a mint.
type Tx struct {
	Sender    string  `json:"sender"`
	Receiver  string  `json:"receiver"`
	Amount    float64 `json:"amount"`
	Signature string  `json:"signature,omitempty"`
}

// NewTx constructs an unsigned transaction.
func NewTx(sender string, receiver string, amount float64) Tx {
	return Tx{
		Sender:   sender,
		Receiver: receiver,
		Amount:   amount,
	}
}

// Sign derives the sender account from the specified private key and returns
// a copy of the transaction carrying the signature over the canonical
// encoding of {sender, receiver, amount}.
func (tx Tx) Sign(privateKey *ecdsa.PrivateKey) (Tx, error) {
	tx.Sender = signature.PublicKeyToAccount(privateKey.PublicKey)

	sig, err := signature.Sign(tx.Sender, tx.Receiver, tx.Amount, privateKey)
	if err != nil {
		return Tx{}, err
	}
	tx.Signature = sig

	return tx, nil
}

// VerifySignature checks the transaction carries a signature that matches
// the sender interpreted as a public key.
func (tx Tx) VerifySignature() error {
	if tx.Signature == "" {
		return ErrMissingSignature
	}

	if err := signature.Verify(tx.Sender, tx.Receiver, tx.Amount, tx.Signature); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidSignature, err)
	}

	return nil
}

// Verify validates the transaction is authorized. Mints from the network
// account pass unconditionally. Any other sender needs a verifiable
// signature and a spendable balance that covers the amount. Failure is an
// error value for the caller to consume, never a panic.
func (tx Tx) Verify(balanceOf func(account string) float64) error {
	if tx.Sender == NetworkAccount {
		return nil
	}

	if err := tx.VerifySignature(); err != nil {
		return err
	}

	if have := balanceOf(tx.Sender); have < tx.Amount {
		return &InsufficientBalanceError{Sender: tx.Sender, Have: have, Need: tx.Amount}
	}

	return nil
}

// String implements the fmt.Stringer interface. It is part of the block
// hashing input, so the format must stay stable across processes.
func (tx Tx) String() string {
	return fmt.Sprintf("%s -> %s: %s", tx.Sender, tx.Receiver, formatAmount(tx.Amount))
}

// =============================================================================

// formatAmount renders an amount with the shortest decimal representation
// that survives a round trip.
func formatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}

// tripleKey identifies a transaction by its (sender, receiver, amount)
// triple. Confirmed-duplicate detection works on this key, so two distinct
// transfers with identical values are indistinguishable.
func (tx Tx) tripleKey() string {
	return fmt.Sprintf("%s|%s|%s", tx.Sender, tx.Receiver, formatAmount(tx.Amount))
}
