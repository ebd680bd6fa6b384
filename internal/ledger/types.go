package ledger

import (
	"token_vote/internal/domain"
)

// SystemProgramID is the ledger's native account-creation program.
var SystemProgramID = domain.Address{}

// Commitment is the confirmation level requested from the ledger.
type Commitment string

const (
	CommitmentProcessed Commitment = "processed"
	CommitmentConfirmed Commitment = "confirmed"
	CommitmentFinalized Commitment = "finalized"
)

// Reached reports whether status satisfies the requested level.
func (c Commitment) Reached(status string) bool {
	switch c {
	case CommitmentProcessed:
		return status == "processed" || status == "confirmed" || status == "finalized"
	case CommitmentConfirmed:
		return status == "confirmed" || status == "finalized"
	case CommitmentFinalized:
		return status == "finalized"
	default:
		return false
	}
}

// AccountInfo is the storage held at an address.
type AccountInfo struct {
	Data       []byte
	Owner      domain.Address
	Lamports   uint64
	Executable bool
}

// BlockReference is the recent blockhash a transaction is anchored to.
// The transaction expires once the chain passes LastValidBlockHeight.
type BlockReference struct {
	Blockhash            domain.Address
	LastValidBlockHeight uint64
}

// SignatureStatus is the ledger's view of a submitted transaction.
type SignatureStatus struct {
	Slot               uint64
	ConfirmationStatus string
	Err                any
}
