// Package wallet is an operator wallet backed by a Solana CLI keypair file.
package wallet

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"token_vote/internal/domain"
	"token_vote/internal/ledger"
)

var ErrKeypairMismatch = errors.New("keypair public half does not match its seed")

// Sender submits signed transactions.
type Sender interface {
	SendTransaction(ctx context.Context, tx *ledger.Transaction) (domain.Signature, error)
}

// Keypair holds the key in memory only while connected.
type Keypair struct {
	path   string
	sender Sender
	logger *slog.Logger

	mu        sync.RWMutex
	key       ed25519.PrivateKey
	address   domain.Address
	connected bool
}

func NewKeypair(path string, sender Sender) *Keypair {
	return &Keypair{
		path:   path,
		sender: sender,
		logger: slog.Default().With("module", "wallet"),
	}
}

// Connect loads the keypair file. Connecting twice reloads it.
func (k *Keypair) Connect() error {
	if k.path == "" {
		return fmt.Errorf("%w: no keypair configured", domain.ErrWalletNotConnected)
	}
	key, err := LoadKeypairFile(k.path)
	if err != nil {
		return err
	}
	addr, err := domain.AddressFromBytes(key.Public().(ed25519.PublicKey))
	if err != nil {
		return err
	}

	k.mu.Lock()
	k.key = key
	k.address = addr
	k.connected = true
	k.mu.Unlock()

	k.logger.Info("Wallet connected", "key", addr.String())
	return nil
}

// Disconnect drops the key from memory.
func (k *Keypair) Disconnect() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.connected {
		return
	}
	for i := range k.key {
		k.key[i] = 0
	}
	k.key = nil
	k.connected = false
	k.logger.Info("Wallet disconnected", "key", k.address.String())
}

func (k *Keypair) PublicKey() (domain.Address, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.address, k.connected
}

// SignAndSend signs tx with the connected key and submits it.
func (k *Keypair) SignAndSend(ctx context.Context, tx *ledger.Transaction) (domain.Signature, error) {
	k.mu.RLock()
	if !k.connected {
		k.mu.RUnlock()
		return domain.Signature{}, domain.ErrWalletNotConnected
	}
	err := tx.Sign(k.key)
	k.mu.RUnlock()
	if err != nil {
		return domain.Signature{}, fmt.Errorf("sign: %w", err)
	}

	return k.sender.SendTransaction(ctx, tx)
}

// LoadKeypairFile reads a JSON array of 64 bytes: the ed25519 seed followed by the public key.
func LoadKeypairFile(path string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keypair: %w", err)
	}

	var raw []int
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse keypair %s: %w", path, err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("parse keypair %s: %d bytes, want %d", path, len(raw), ed25519.PrivateKeySize)
	}

	buf := make([]byte, ed25519.PrivateKeySize)
	for i, v := range raw {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("parse keypair %s: byte %d out of range", path, i)
		}
		buf[i] = byte(v)
	}

	key := ed25519.NewKeyFromSeed(buf[:ed25519.SeedSize])
	if !key.Public().(ed25519.PublicKey).Equal(ed25519.PublicKey(buf[ed25519.SeedSize:])) {
		return nil, ErrKeypairMismatch
	}
	return key, nil
}

// WriteKeypairFile stores key in the format LoadKeypairFile reads, readable by the owner only.
func WriteKeypairFile(path string, key ed25519.PrivateKey) error {
	raw := make([]int, len(key))
	for i, b := range key {
		raw[i] = int(b)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
