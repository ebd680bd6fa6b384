package vote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"token_vote/internal/derive"
	"token_vote/internal/domain"
	"token_vote/internal/infra"
	"token_vote/internal/ledger"
)

// Ledger is the read/write ledger capability the submitter needs.
type Ledger interface {
	AccountReader
	GetLatestBlockReference(ctx context.Context) (ledger.BlockReference, error)
	ConfirmTransaction(ctx context.Context, sig domain.Signature, ref ledger.BlockReference, level ledger.Commitment) error
}

// Wallet signs and sends transactions for the connected key.
// PublicKey reports false while no wallet is connected.
type Wallet interface {
	PublicKey() (domain.Address, bool)
	SignAndSend(ctx context.Context, tx *ledger.Transaction) (domain.Signature, error)
}

// Request is built fresh for every attempt and never persisted.
// An empty AttemptID gets a generated one.
type Request struct {
	AttemptID string
	Voter     *domain.Address
	Contract  *domain.Address
}

// Submitter casts votes. Each SubmitVote call is one attempt; nothing is retried.
type Submitter struct {
	ledger  Ledger
	wallet  Wallet
	reader  *StateReader
	deriver *derive.Deriver
	metrics *infra.Metrics
	logger  *slog.Logger
}

func NewSubmitter(l Ledger, w Wallet, reader *StateReader, d *derive.Deriver, m *infra.Metrics) *Submitter {
	if m == nil {
		m = infra.GlobalMetrics
	}
	return &Submitter{
		ledger:  l,
		wallet:  w,
		reader:  reader,
		deriver: d,
		metrics: m,
		logger:  slog.Default().With("module", "vote_submitter"),
	}
}

// BuildInstruction returns the vote instruction for (voter, contract).
// Accounts: voter (signer, writable), vote count (writable), voted flag (writable), system program.
// Data is the raw contract address.
func (s *Submitter) BuildInstruction(voter, contract domain.Address) (ledger.Instruction, error) {
	countAddr, err := s.deriver.VoteCountAddress(contract)
	if err != nil {
		return ledger.Instruction{}, err
	}
	flagAddr, err := s.deriver.VotedFlagAddress(voter, contract)
	if err != nil {
		return ledger.Instruction{}, err
	}

	return ledger.Instruction{
		ProgramID: s.deriver.Program(),
		Accounts: []ledger.AccountMeta{
			{Address: voter, IsSigner: true, IsWritable: true},
			{Address: countAddr, IsWritable: true},
			{Address: flagAddr, IsWritable: true},
			{Address: ledger.SystemProgramID},
		},
		Data: contract.Bytes(),
	}, nil
}

// SubmitVote casts one vote and waits for "confirmed" commitment.
//
// Preconditions are checked in order: connected wallet matching the voter, a selected contract,
// then an on-chain re-check of the voted flag. Failures after that return *domain.VoteSubmissionError.
func (s *Submitter) SubmitVote(ctx context.Context, req Request) (domain.Signature, error) {
	start := time.Now()
	attempt := req.AttemptID
	if attempt == "" {
		attempt = uuid.NewString()
	}
	log := s.logger.With("attempt", attempt)
	s.metrics.RecordVoteAttempt()

	key, connected := s.wallet.PublicKey()
	if !connected || req.Voter == nil {
		s.metrics.RecordVoteRejected()
		return domain.Signature{}, domain.ErrWalletNotConnected
	}
	if *req.Voter != key {
		s.metrics.RecordVoteRejected()
		return domain.Signature{}, fmt.Errorf("%w: voter %s is not the connected key", domain.ErrWalletNotConnected, req.Voter.Short())
	}
	if req.Contract == nil {
		s.metrics.RecordVoteRejected()
		return domain.Signature{}, domain.ErrNoContractSelected
	}
	voter, contract := *req.Voter, *req.Contract
	log = log.With("voter", voter.Short(), "contract", contract.Short())

	voted, err := s.reader.HasVoted(ctx, voter, contract)
	if err != nil {
		s.metrics.RecordError()
		log.Warn("Voted flag re-check failed", "error", err)
		return domain.Signature{}, err
	}
	if voted {
		s.metrics.RecordVoteRejected()
		log.Info("Vote rejected, flag already set")
		return domain.Signature{}, domain.ErrAlreadyVoted
	}

	ix, err := s.BuildInstruction(voter, contract)
	if err != nil {
		return domain.Signature{}, s.fail(log, domain.StageBuild, err)
	}

	ref, err := s.ledger.GetLatestBlockReference(ctx)
	if err != nil {
		return domain.Signature{}, s.fail(log, domain.StageBlockReference, err)
	}

	tx, err := ledger.NewTransaction([]ledger.Instruction{ix}, ref.Blockhash, voter)
	if err != nil {
		return domain.Signature{}, s.fail(log, domain.StageBuild, err)
	}

	sig, err := s.wallet.SignAndSend(ctx, tx)
	if err != nil {
		return domain.Signature{}, s.fail(log, domain.StageSign, err)
	}
	log = log.With("signature", sig.String())
	log.Info("Vote transaction sent", "last_valid_block_height", ref.LastValidBlockHeight)

	if err := s.ledger.ConfirmTransaction(ctx, sig, ref, ledger.CommitmentConfirmed); err != nil {
		return domain.Signature{}, s.fail(log, domain.StageConfirm, err)
	}

	elapsed := time.Since(start)
	s.metrics.RecordVoteConfirmed(elapsed)
	log.Info("Vote confirmed", "elapsed_ms", elapsed.Milliseconds())
	return sig, nil
}

func (s *Submitter) fail(log *slog.Logger, stage domain.SubmissionStage, err error) error {
	s.metrics.RecordVoteFailed()
	log.Error("Vote submission failed", "stage", string(stage), "error", err)

	var subErr *domain.VoteSubmissionError
	if errors.As(err, &subErr) {
		return err
	}
	return &domain.VoteSubmissionError{Stage: stage, Err: err}
}
