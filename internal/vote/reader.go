package vote

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"

	"token_vote/internal/derive"
	"token_vote/internal/domain"
	"token_vote/internal/infra"
	"token_vote/internal/ledger"
)

// TallyLength is the exact storage size of a vote count account.
const TallyLength = 8

// AccountReader is the ledger read capability the state reader needs.
type AccountReader interface {
	GetAccountInfo(ctx context.Context, address domain.Address) (*ledger.AccountInfo, error)
}

// StateReader answers vote state questions from on-chain truth. Nothing is cached.
type StateReader struct {
	ledger      AccountReader
	deriver     *derive.Deriver
	verifyOwner bool
	metrics     *infra.Metrics
	logger      *slog.Logger
}

// ReaderOption configures a StateReader.
type ReaderOption func(*StateReader)

// WithOwnerCheck makes HasVoted ignore flag accounts not owned by the vote program.
func WithOwnerCheck(enabled bool) ReaderOption {
	return func(r *StateReader) { r.verifyOwner = enabled }
}

// WithReaderMetrics overrides GlobalMetrics.
func WithReaderMetrics(m *infra.Metrics) ReaderOption {
	return func(r *StateReader) { r.metrics = m }
}

func NewStateReader(l AccountReader, d *derive.Deriver, opts ...ReaderOption) *StateReader {
	r := &StateReader{
		ledger:  l,
		deriver: d,
		metrics: infra.GlobalMetrics,
		logger:  slog.Default().With("module", "vote_reader"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// HasVoted reports whether the voted-flag account for (voter, contract) exists.
func (r *StateReader) HasVoted(ctx context.Context, voter, contract domain.Address) (bool, error) {
	flag, err := r.deriver.VotedFlagAddress(voter, contract)
	if err != nil {
		return false, fmt.Errorf("derive voted flag: %w", err)
	}

	acc, err := r.read(ctx, flag)
	if err != nil {
		return false, err
	}
	if acc == nil {
		return false, nil
	}

	if r.verifyOwner && acc.Owner != r.deriver.Program() {
		r.logger.Warn("Ignoring voted flag with foreign owner",
			"voter", voter.Short(),
			"contract", contract.Short(),
			"flag", flag.String(),
			"owner", acc.Owner.String(),
		)
		return false, nil
	}
	return true, nil
}

// GetVoteTally reads the vote count for contract. An absent account is a zero tally.
func (r *StateReader) GetVoteTally(ctx context.Context, contract domain.Address) (uint64, error) {
	countAddr, err := r.deriver.VoteCountAddress(contract)
	if err != nil {
		return 0, fmt.Errorf("derive vote count: %w", err)
	}

	acc, err := r.read(ctx, countAddr)
	if err != nil {
		return 0, err
	}
	if acc == nil {
		return 0, nil
	}
	return DecodeTally(acc.Data)
}

// DecodeTally interprets vote count storage as an unsigned 64-bit little-endian integer.
func DecodeTally(data []byte) (uint64, error) {
	if len(data) != TallyLength {
		return 0, fmt.Errorf("%w: %d bytes, want %d", domain.ErrCorruptTallyState, len(data), TallyLength)
	}
	return binary.LittleEndian.Uint64(data), nil
}

func (r *StateReader) read(ctx context.Context, address domain.Address) (*ledger.AccountInfo, error) {
	r.metrics.RecordLedgerRead()
	acc, err := r.ledger.GetAccountInfo(ctx, address)
	if err != nil {
		return nil, unavailable("getAccountInfo", err)
	}
	return acc, nil
}

// unavailable makes sure every ledger failure matches ErrLedgerUnavailable.
func unavailable(op string, err error) error {
	if errors.Is(err, domain.ErrLedgerUnavailable) {
		return err
	}
	return &domain.LedgerError{Op: op, Err: err}
}
