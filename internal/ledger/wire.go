package ledger

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"fmt"

	"token_vote/internal/domain"
)

var (
	ErrNoInstructions   = errors.New("transaction has no instructions")
	ErrMissingSignature = errors.New("transaction is missing a required signature")
	ErrUnknownSigner    = errors.New("key is not a signer of this transaction")
	ErrTooManyAccounts  = errors.New("transaction references more than 256 accounts")
)

// AccountMeta describes how an instruction uses an account.
type AccountMeta struct {
	Address    domain.Address
	IsSigner   bool
	IsWritable bool
}

// Instruction is a single program invocation.
type Instruction struct {
	ProgramID domain.Address
	Accounts  []AccountMeta
	Data      []byte
}

// Message is a compiled legacy transaction message.
type Message struct {
	NumRequiredSignatures       uint8
	NumReadonlySignedAccounts   uint8
	NumReadonlyUnsignedAccounts uint8
	AccountKeys                 []domain.Address
	RecentBlockhash             domain.Address
	Instructions                []CompiledInstruction
}

// CompiledInstruction references accounts by index into Message.AccountKeys.
type CompiledInstruction struct {
	ProgramIDIndex uint8
	AccountIndexes []uint8
	Data           []byte
}

// Transaction is a compiled message plus one signature slot per required signer.
type Transaction struct {
	Message    Message
	Signatures []domain.Signature
}

// NewTransaction compiles instructions into a transaction paid for by feePayer.
//
// Accounts are deduplicated with their flags merged, then ordered: fee payer, writable signers,
// readonly signers, writable non-signers, readonly non-signers. Order within a class is first use.
func NewTransaction(instructions []Instruction, blockhash domain.Address, feePayer domain.Address) (*Transaction, error) {
	if len(instructions) == 0 {
		return nil, ErrNoInstructions
	}

	type slot struct {
		meta  AccountMeta
		order int
	}
	index := make(map[domain.Address]*slot)
	var ordered []*slot
	add := func(m AccountMeta) {
		if s, ok := index[m.Address]; ok {
			s.meta.IsSigner = s.meta.IsSigner || m.IsSigner
			s.meta.IsWritable = s.meta.IsWritable || m.IsWritable
			return
		}
		s := &slot{meta: m, order: len(ordered)}
		index[m.Address] = s
		ordered = append(ordered, s)
	}

	add(AccountMeta{Address: feePayer, IsSigner: true, IsWritable: true})
	for _, ix := range instructions {
		for _, acc := range ix.Accounts {
			add(acc)
		}
		add(AccountMeta{Address: ix.ProgramID})
	}
	if len(ordered) > 256 {
		return nil, ErrTooManyAccounts
	}

	rank := func(m AccountMeta) int {
		switch {
		case m.IsSigner && m.IsWritable:
			return 0
		case m.IsSigner:
			return 1
		case m.IsWritable:
			return 2
		default:
			return 3
		}
	}

	var buckets [4][]*slot
	for _, s := range ordered {
		if s.meta.Address == feePayer {
			continue
		}
		r := rank(s.meta)
		buckets[r] = append(buckets[r], s)
	}

	msg := Message{RecentBlockhash: blockhash}
	msg.AccountKeys = append(msg.AccountKeys, feePayer)
	msg.NumRequiredSignatures = 1
	for r, bucket := range buckets {
		for _, s := range bucket {
			msg.AccountKeys = append(msg.AccountKeys, s.meta.Address)
			switch r {
			case 0:
				msg.NumRequiredSignatures++
			case 1:
				msg.NumRequiredSignatures++
				msg.NumReadonlySignedAccounts++
			case 3:
				msg.NumReadonlyUnsignedAccounts++
			}
		}
	}

	position := make(map[domain.Address]uint8, len(msg.AccountKeys))
	for i, k := range msg.AccountKeys {
		position[k] = uint8(i)
	}
	for _, ix := range instructions {
		ci := CompiledInstruction{
			ProgramIDIndex: position[ix.ProgramID],
			AccountIndexes: make([]uint8, len(ix.Accounts)),
			Data:           append([]byte(nil), ix.Data...),
		}
		for i, acc := range ix.Accounts {
			ci.AccountIndexes[i] = position[acc.Address]
		}
		msg.Instructions = append(msg.Instructions, ci)
	}

	return &Transaction{
		Message:    msg,
		Signatures: make([]domain.Signature, msg.NumRequiredSignatures),
	}, nil
}

// Serialize encodes the message in the ledger's wire format.
func (m *Message) Serialize() []byte {
	var buf bytes.Buffer
	buf.WriteByte(m.NumRequiredSignatures)
	buf.WriteByte(m.NumReadonlySignedAccounts)
	buf.WriteByte(m.NumReadonlyUnsignedAccounts)

	buf.Write(EncodeCompactU16(len(m.AccountKeys)))
	for _, k := range m.AccountKeys {
		buf.Write(k[:])
	}
	buf.Write(m.RecentBlockhash[:])

	buf.Write(EncodeCompactU16(len(m.Instructions)))
	for _, ix := range m.Instructions {
		buf.WriteByte(ix.ProgramIDIndex)
		buf.Write(EncodeCompactU16(len(ix.AccountIndexes)))
		buf.Write(ix.AccountIndexes)
		buf.Write(EncodeCompactU16(len(ix.Data)))
		buf.Write(ix.Data)
	}
	return buf.Bytes()
}

// Signers returns the keys whose signatures the message requires, in slot order.
func (m *Message) Signers() []domain.Address {
	return m.AccountKeys[:m.NumRequiredSignatures]
}

// Sign fills the signature slot belonging to key's public half.
func (t *Transaction) Sign(key ed25519.PrivateKey) error {
	pub, err := domain.AddressFromBytes(key.Public().(ed25519.PublicKey))
	if err != nil {
		return err
	}
	for i, signer := range t.Message.Signers() {
		if signer == pub {
			sig := ed25519.Sign(key, t.Message.Serialize())
			copy(t.Signatures[i][:], sig)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownSigner, pub)
}

// Signature returns the fee payer's signature, which identifies the transaction.
func (t *Transaction) Signature() domain.Signature {
	if len(t.Signatures) == 0 {
		return domain.Signature{}
	}
	return t.Signatures[0]
}

// Serialize encodes signatures and message. Every signature slot must be filled.
func (t *Transaction) Serialize() ([]byte, error) {
	for i, sig := range t.Signatures {
		if sig.IsZero() {
			return nil, fmt.Errorf("%w: slot %d (%s)", ErrMissingSignature, i, t.Message.AccountKeys[i])
		}
	}
	var buf bytes.Buffer
	buf.Write(EncodeCompactU16(len(t.Signatures)))
	for _, sig := range t.Signatures {
		buf.Write(sig[:])
	}
	buf.Write(t.Message.Serialize())
	return buf.Bytes(), nil
}

// VerifySignatures checks every signature against the message bytes.
func (t *Transaction) VerifySignatures() bool {
	msg := t.Message.Serialize()
	for i, signer := range t.Message.Signers() {
		if !ed25519.Verify(signer[:], msg, t.Signatures[i][:]) {
			return false
		}
	}
	return true
}

// EncodeCompactU16 encodes n as the ledger's variable-length "shortvec" length prefix.
func EncodeCompactU16(n int) []byte {
	out := make([]byte, 0, 3)
	v := uint16(n)
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

// DecodeCompactU16 decodes a shortvec prefix and returns the value and bytes consumed.
func DecodeCompactU16(b []byte) (int, int, error) {
	var v, shift int
	for i := 0; i < 3; i++ {
		if i >= len(b) {
			return 0, 0, errors.New("compact-u16: unexpected end of input")
		}
		v |= int(b[i]&0x7f) << shift
		if b[i]&0x80 == 0 {
			return v, i + 1, nil
		}
		shift += 7
	}
	return 0, 0, errors.New("compact-u16: value too long")
}
