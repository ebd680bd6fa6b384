package ledger

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"

	"token_vote/internal/domain"
)

func addr(fill byte) domain.Address {
	var a domain.Address
	for i := range a {
		a[i] = fill
	}
	return a
}

func TestCompactU16(t *testing.T) {
	tests := []struct {
		n    int
		want []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{255, []byte{0xff, 0x01}},
		{16383, []byte{0xff, 0x7f}},
		{16384, []byte{0x80, 0x80, 0x01}},
		{65535, []byte{0xff, 0xff, 0x03}},
	}

	for _, tt := range tests {
		got := EncodeCompactU16(tt.n)
		require.Equal(t, tt.want, got, "encode %d", tt.n)

		v, n, err := DecodeCompactU16(got)
		require.NoError(t, err)
		require.Equal(t, tt.n, v)
		require.Equal(t, len(got), n)
	}

	_, _, err := DecodeCompactU16([]byte{0x80})
	require.Error(t, err)
}

func TestNewTransaction_AccountOrdering(t *testing.T) {
	voter := addr(1)
	count := addr(2)
	flag := addr(3)
	program := addr(9)
	blockhash := addr(7)

	ix := Instruction{
		ProgramID: program,
		Accounts: []AccountMeta{
			{Address: voter, IsSigner: true, IsWritable: true},
			{Address: count, IsWritable: true},
			{Address: flag, IsWritable: true},
			{Address: SystemProgramID},
		},
		Data: []byte{1, 2, 3},
	}

	tx, err := NewTransaction([]Instruction{ix}, blockhash, voter)
	require.NoError(t, err)

	msg := tx.Message
	require.Equal(t, uint8(1), msg.NumRequiredSignatures)
	require.Equal(t, uint8(0), msg.NumReadonlySignedAccounts)
	require.Equal(t, uint8(2), msg.NumReadonlyUnsignedAccounts)
	require.Equal(t, []domain.Address{voter, count, flag, SystemProgramID, program}, msg.AccountKeys)
	require.Len(t, msg.Instructions, 1)
	require.Equal(t, uint8(4), msg.Instructions[0].ProgramIDIndex)
	require.Equal(t, []uint8{0, 1, 2, 3}, msg.Instructions[0].AccountIndexes)
	require.Len(t, tx.Signatures, 1)
}

func TestNewTransaction_ProgramSharesSystemAddress(t *testing.T) {
	voter := addr(1)
	ix := Instruction{
		ProgramID: SystemProgramID,
		Accounts: []AccountMeta{
			{Address: voter, IsSigner: true, IsWritable: true},
			{Address: addr(2), IsWritable: true},
			{Address: addr(3), IsWritable: true},
			{Address: SystemProgramID},
		},
	}

	tx, err := NewTransaction([]Instruction{ix}, addr(7), voter)
	require.NoError(t, err)
	require.Len(t, tx.Message.AccountKeys, 4)
	require.Equal(t, uint8(1), tx.Message.NumReadonlyUnsignedAccounts)
	require.Equal(t, uint8(3), tx.Message.Instructions[0].ProgramIDIndex)
}

func TestNewTransaction_NoInstructions(t *testing.T) {
	_, err := NewTransaction(nil, addr(1), addr(2))
	require.ErrorIs(t, err, ErrNoInstructions)
}

func TestMessageSerialize_Layout(t *testing.T) {
	voter := addr(1)
	ix := Instruction{
		ProgramID: addr(9),
		Accounts:  []AccountMeta{{Address: voter, IsSigner: true, IsWritable: true}},
		Data:      []byte{0xAA, 0xBB},
	}
	tx, err := NewTransaction([]Instruction{ix}, addr(7), voter)
	require.NoError(t, err)

	raw := tx.Message.Serialize()
	// header(3) + keys(1 + 2*32) + blockhash(32) + ixs(1) + [program idx(1) + accs(1+1) + data(1+2)]
	require.Len(t, raw, 3+1+64+32+1+1+2+3)
	require.Equal(t, []byte{1, 0, 1, 2}, raw[:4])
	require.Equal(t, voter[:], raw[4:36])
	require.Equal(t, []byte{0xAA, 0xBB}, raw[len(raw)-2:])
}

func TestTransaction_SignAndSerialize(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	payer, err := domain.AddressFromBytes(pub)
	require.NoError(t, err)

	ix := Instruction{
		ProgramID: addr(9),
		Accounts:  []AccountMeta{{Address: payer, IsSigner: true, IsWritable: true}},
		Data:      payer.Bytes(),
	}
	tx, err := NewTransaction([]Instruction{ix}, addr(7), payer)
	require.NoError(t, err)

	_, err = tx.Serialize()
	require.ErrorIs(t, err, ErrMissingSignature)

	require.NoError(t, tx.Sign(priv))
	require.False(t, tx.Signature().IsZero())
	require.True(t, tx.VerifySignatures())

	raw, err := tx.Serialize()
	require.NoError(t, err)
	require.Equal(t, byte(1), raw[0])
	require.Equal(t, tx.Signature().String(), domain.Signature(raw[1:65]).String())
	require.Equal(t, tx.Message.Serialize(), raw[65:])

	_, other, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	require.ErrorIs(t, tx.Sign(other), ErrUnknownSigner)
}

func TestCommitmentReached(t *testing.T) {
	require.True(t, CommitmentConfirmed.Reached("confirmed"))
	require.True(t, CommitmentConfirmed.Reached("finalized"))
	require.False(t, CommitmentConfirmed.Reached("processed"))
	require.False(t, CommitmentFinalized.Reached("confirmed"))
	require.True(t, CommitmentProcessed.Reached("processed"))
	require.False(t, Commitment("bogus").Reached("finalized"))
}
