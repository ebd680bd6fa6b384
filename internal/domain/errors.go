package domain

import "errors"

// RetriableError defines an interface for errors that a user may retry by hand.
// Nothing in the core retries automatically; the flag only drives presentation.
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

var (
	// ErrInvalidAddressFormat is returned when text is not a 32-byte base58 ledger address.
	ErrInvalidAddressFormat = errors.New("invalid address format")

	// ErrLedgerUnavailable is returned when a ledger query could not be answered.
	ErrLedgerUnavailable = errors.New("ledger unavailable")

	// ErrCorruptTallyState is returned when vote count storage is not exactly 8 bytes.
	ErrCorruptTallyState = errors.New("corrupt tally state")

	// ErrWalletNotConnected is returned when no wallet is connected for the voter.
	ErrWalletNotConnected = errors.New("wallet not connected")

	// ErrNoContractSelected is returned when a vote is attempted without a selected contract.
	ErrNoContractSelected = errors.New("no contract selected")

	// ErrAlreadyVoted is returned when the ledger already holds a voted flag for the pair.
	ErrAlreadyVoted = errors.New("already voted")

	// ErrVoteSubmissionFailed is matched by every *VoteSubmissionError.
	ErrVoteSubmissionFailed = errors.New("vote submission failed")

	// ErrMarketDataUnavailable never leaves the market reader; it is logged and absorbed there.
	ErrMarketDataUnavailable = errors.New("market data unavailable")
)

// NetworkError represents a network-related error that may be retriable
type NetworkError struct {
	Op        string // Operation that failed (e.g., "getAccountInfo", "fetch")
	Err       error  // Underlying error
	Retriable bool   // Whether a manual retry makes sense
}

func (e *NetworkError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) IsRetriable() bool {
	return e.Retriable
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new retriable network error
func NewNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: true}
}

// NewFatalNetworkError creates a non-retriable network error
func NewFatalNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: false}
}

// LedgerError wraps a failed ledger call. It matches ErrLedgerUnavailable.
type LedgerError struct {
	Op  string
	Err error
}

func (e *LedgerError) Error() string {
	return "ledger unavailable [" + e.Op + "]: " + e.Err.Error()
}

func (e *LedgerError) Is(target error) bool {
	return target == ErrLedgerUnavailable
}

func (e *LedgerError) IsRetriable() bool {
	return true
}

func (e *LedgerError) Unwrap() error {
	return e.Err
}

// SubmissionStage names the step of a vote submission that failed.
type SubmissionStage string

const (
	StageBlockReference SubmissionStage = "block_reference"
	StageBuild          SubmissionStage = "build"
	StageSign           SubmissionStage = "sign"
	StageConfirm        SubmissionStage = "confirm"
)

// VoteSubmissionError is the terminal failure of one submission attempt.
type VoteSubmissionError struct {
	Stage SubmissionStage
	Err   error
}

func (e *VoteSubmissionError) Error() string {
	return "vote submission failed [" + string(e.Stage) + "]: " + e.Err.Error()
}

func (e *VoteSubmissionError) Is(target error) bool {
	return target == ErrVoteSubmissionFailed
}

func (e *VoteSubmissionError) IsRetriable() bool {
	return true
}

func (e *VoteSubmissionError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
