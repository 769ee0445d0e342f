// Package signature provides helper functions for handling the blockchain
// signature needs.
package signature

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// ZeroHash represents the parent hash of the genesis block.
const ZeroHash = "0"

// =============================================================================

// Hash returns the hex encoded sha256 hash of the specified data.
func Hash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// Canonical returns the deterministic encoding of the transfer values used
// for signing and verifying. The keys are sorted so the encoding is stable
// across processes.
func Canonical(sender string, receiver string, amount float64) ([]byte, error) {
	transfer := struct {
		Amount   float64 `json:"amount"`
		Receiver string  `json:"receiver"`
		Sender   string  `json:"sender"`
	}{
		Amount:   amount,
		Receiver: receiver,
		Sender:   sender,
	}

	data, err := json.Marshal(transfer)
	if err != nil {
		return nil, fmt.Errorf("unable to marshal transfer: %w", err)
	}

	return data, nil
}

// Sign uses the specified private key to sign the transfer values. The
// signature is returned hex encoded.
func Sign(sender string, receiver string, amount float64, privateKey *ecdsa.PrivateKey) (string, error) {
	data, err := Canonical(sender, receiver, amount)
	if err != nil {
		return "", err
	}

	digest := sha256.Sum256(data)

	sig, err := crypto.Sign(digest[:], privateKey)
	if err != nil {
		return "", fmt.Errorf("unable to sign transfer: %w", err)
	}

	return hex.EncodeToString(sig), nil
}

// Verify checks the specified signature was produced by the private key
// behind the sender's public key for these exact transfer values.
func Verify(sender string, receiver string, amount float64, sigStr string) error {
	publicKey, err := toPublicKeyBytes(sender)
	if err != nil {
		return err
	}

	sig, err := hex.DecodeString(sigStr)
	if err != nil {
		return fmt.Errorf("unable to decode signature: %w", err)
	}

	// Drop the recovery id if present. Verification only needs R and S.
	if len(sig) == crypto.SignatureLength {
		sig = sig[:crypto.RecoveryIDOffset]
	}
	if len(sig) != crypto.RecoveryIDOffset {
		return errors.New("invalid signature length")
	}

	data, err := Canonical(sender, receiver, amount)
	if err != nil {
		return err
	}

	digest := sha256.Sum256(data)

	if !crypto.VerifySignature(publicKey, digest[:], sig) {
		return errors.New("signature does not match sender")
	}

	return nil
}

// PublicKeyToAccount converts the public key to the hex encoded account
// string used as the sender of a transaction.
func PublicKeyToAccount(pk ecdsa.PublicKey) string {
	return hex.EncodeToString(crypto.FromECDSAPub(&pk)[1:])
}

// =============================================================================

// toPublicKeyBytes interprets the account string as a hex encoded secp256k1
// public key in either raw (64 byte), uncompressed (65 byte) or compressed
// (33 byte) form.
func toPublicKeyBytes(account string) ([]byte, error) {
	publicKey, err := hex.DecodeString(account)
	if err != nil {
		return nil, fmt.Errorf("account is not a public key: %w", err)
	}

	switch len(publicKey) {
	case 64:
		return append([]byte{4}, publicKey...), nil
	case 65, 33:
		return publicKey, nil
	}

	return nil, errors.New("account is not a public key: invalid length")
}
