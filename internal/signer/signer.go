// Package signer provides the simulated signing SDK that backs the
// background's signing handlers. Keys are ephemeral or derived from a seed;
// it never holds real custody keys.
package signer

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"fmt"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/hkdf"
)

const (
	hkdfInfo   = "vwharness simulated signer v1"
	minSeedLen = 16
	maxDerive  = 16
)

// Signer signs transactions and messages with a single secp256k1 key
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// Generate creates a signer with a random key
func Generate() (*Signer, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}
	return newSigner(key), nil
}

// FromSeed derives a signer deterministically from seed using HKDF-SHA256.
// The same seed always yields the same address.
func FromSeed(seed []byte) (*Signer, error) {
	if len(seed) < minSeedLen {
		return nil, fmt.Errorf("seed must be at least %d bytes, got %d", minSeedLen, len(seed))
	}

	r := hkdf.New(sha256.New, seed, nil, []byte(hkdfInfo))
	buf := make([]byte, 32)
	// A derived scalar can be zero or above the curve order; keep reading until one fits.
	for i := 0; i < maxDerive; i++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("failed to derive key: %w", err)
		}
		key, err := crypto.ToECDSA(buf)
		if err == nil {
			return newSigner(key), nil
		}
	}
	return nil, fmt.Errorf("failed to derive a valid key from seed")
}

func newSigner(key *ecdsa.PrivateKey) *Signer {
	return &Signer{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

// Address returns the signer's address
func (s *Signer) Address() common.Address {
	return s.address
}

// SignTransaction signs tx for chainID
func (s *Signer) SignTransaction(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	signer := types.LatestSignerForChainID(chainID)

	signedTx, err := types.SignTx(tx, signer, s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return signedTx, nil
}

// SignText produces an EIP-191 personal message signature with V in {27, 28}
func (s *Signer) SignText(message []byte) ([]byte, error) {
	sig, err := crypto.Sign(accounts.TextHash(message), s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign message: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// RecoverText returns the address that produced sig over message
func RecoverText(message, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes, got %d", crypto.SignatureLength, len(sig))
	}
	normalized := make([]byte, len(sig))
	copy(normalized, sig)
	if normalized[crypto.RecoveryIDOffset] >= 27 {
		normalized[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash(message), normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
