// Package ledgertest provides in-memory ledger and wallet doubles that emulate the vote program.
package ledgertest

import (
	"context"
	"crypto/ed25519"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"token_vote/internal/domain"
	"token_vote/internal/ledger"
)

var ErrAccountInUse = errors.New("custom program error: voted flag already initialised")

// Ledger is an in-memory ledger. Transactions addressed to Program with the vote account layout
// create the voted flag and increment the 8-byte little-endian tally.
type Ledger struct {
	mu       sync.Mutex
	Program  domain.Address
	accounts map[domain.Address]*ledger.AccountInfo
	sent     []*ledger.Transaction
	refs     []ledger.BlockReference
	reads    int
	height   uint64

	ReadErr    error
	BlockErr   error
	SendErr    error
	ConfirmErr error
}

// New returns an empty ledger hosting the vote program at program.
func New(program domain.Address) *Ledger {
	return &Ledger{
		Program:  program,
		accounts: make(map[domain.Address]*ledger.AccountInfo),
		height:   100,
	}
}

// SetAccount stores data at address, owned by owner.
func (l *Ledger) SetAccount(address domain.Address, data []byte, owner domain.Address) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accounts[address] = &ledger.AccountInfo{Data: append([]byte(nil), data...), Owner: owner, Lamports: 1}
}

// SetTally stores an 8-byte tally at address, owned by the program.
func (l *Ledger) SetTally(address domain.Address, tally uint64) {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, tally)
	l.SetAccount(address, buf, l.Program)
}

func (l *Ledger) GetAccountInfo(ctx context.Context, address domain.Address) (*ledger.AccountInfo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reads++
	if l.ReadErr != nil {
		return nil, l.ReadErr
	}
	acc, ok := l.accounts[address]
	if !ok {
		return nil, nil
	}
	cp := *acc
	cp.Data = append([]byte(nil), acc.Data...)
	return &cp, nil
}

func (l *Ledger) GetLatestBlockReference(ctx context.Context) (ledger.BlockReference, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.BlockErr != nil {
		return ledger.BlockReference{}, l.BlockErr
	}
	l.height++
	var hash domain.Address
	binary.LittleEndian.PutUint64(hash[:], l.height)
	hash[31] = 0xB1
	ref := ledger.BlockReference{Blockhash: hash, LastValidBlockHeight: l.height + 150}
	l.refs = append(l.refs, ref)
	return ref, nil
}

func (l *Ledger) SendTransaction(ctx context.Context, tx *ledger.Transaction) (domain.Signature, error) {
	if _, err := tx.Serialize(); err != nil {
		return domain.Signature{}, err
	}
	if !tx.VerifySignatures() {
		return domain.Signature{}, errors.New("signature verification failed")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.SendErr != nil {
		return domain.Signature{}, l.SendErr
	}
	if err := l.apply(tx); err != nil {
		return domain.Signature{}, err
	}
	l.sent = append(l.sent, tx)
	return tx.Signature(), nil
}

func (l *Ledger) apply(tx *ledger.Transaction) error {
	keys := tx.Message.AccountKeys
	for _, ix := range tx.Message.Instructions {
		if keys[ix.ProgramIDIndex] != l.Program || len(ix.AccountIndexes) != 4 {
			continue
		}
		count := keys[ix.AccountIndexes[1]]
		flag := keys[ix.AccountIndexes[2]]
		if _, exists := l.accounts[flag]; exists {
			return fmt.Errorf("%w: %s", ErrAccountInUse, flag)
		}
		l.accounts[flag] = &ledger.AccountInfo{Owner: l.Program, Lamports: 1}

		var tally uint64
		if acc, ok := l.accounts[count]; ok && len(acc.Data) == 8 {
			tally = binary.LittleEndian.Uint64(acc.Data)
		}
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, tally+1)
		l.accounts[count] = &ledger.AccountInfo{Data: buf, Owner: l.Program, Lamports: 1}
	}
	return nil
}

func (l *Ledger) ConfirmTransaction(ctx context.Context, sig domain.Signature, ref ledger.BlockReference, level ledger.Commitment) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ConfirmErr != nil {
		return l.ConfirmErr
	}
	for _, tx := range l.sent {
		if tx.Signature() == sig {
			return nil
		}
	}
	return fmt.Errorf("unknown signature %s", sig)
}

// Sent returns the transactions accepted so far.
func (l *Ledger) Sent() []*ledger.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*ledger.Transaction(nil), l.sent...)
}

// BlockReferences returns every reference handed out so far.
func (l *Ledger) BlockReferences() []ledger.BlockReference {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ledger.BlockReference(nil), l.refs...)
}

// Reads returns the number of GetAccountInfo calls.
func (l *Ledger) Reads() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reads
}

// Sender is the part of a ledger a wallet needs.
type Sender interface {
	SendTransaction(ctx context.Context, tx *ledger.Transaction) (domain.Signature, error)
}

// Wallet is a connectable in-memory wallet that signs with a generated key.
type Wallet struct {
	mu        sync.Mutex
	key       ed25519.PrivateKey
	address   domain.Address
	connected bool
	sender    Sender
	signed    int

	SignErr error
}

// NewWallet returns a connected wallet sending through sender.
func NewWallet(sender Sender) *Wallet {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		panic(err)
	}
	addr, _ := domain.AddressFromBytes(pub)
	return &Wallet{key: priv, address: addr, connected: true, sender: sender}
}

// Address returns the wallet key regardless of connection state.
func (w *Wallet) Address() domain.Address {
	return w.address
}

func (w *Wallet) PublicKey() (domain.Address, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.address, w.connected
}

// SetConnected toggles the connection state.
func (w *Wallet) SetConnected(connected bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.connected = connected
}

func (w *Wallet) SignAndSend(ctx context.Context, tx *ledger.Transaction) (domain.Signature, error) {
	w.mu.Lock()
	if !w.connected {
		w.mu.Unlock()
		return domain.Signature{}, domain.ErrWalletNotConnected
	}
	if w.SignErr != nil {
		w.mu.Unlock()
		return domain.Signature{}, w.SignErr
	}
	w.signed++
	w.mu.Unlock()

	if err := tx.Sign(w.key); err != nil {
		return domain.Signature{}, err
	}
	return w.sender.SendTransaction(ctx, tx)
}

// Signed returns how many transactions the wallet has signed.
func (w *Wallet) Signed() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.signed
}
