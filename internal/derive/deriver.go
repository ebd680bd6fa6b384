package derive

import (
	"fmt"

	"token_vote/internal/domain"
)

// Seed tags namespacing the two address kinds owned by the vote program.
var (
	VoteCountSeed = []byte("vote_count")
	VotedSeed     = []byte("voted")
)

// Deriver maps contracts and voters to the vote program's accounts.
// It holds no mutable state and is safe for concurrent use.
type Deriver struct {
	program domain.Address
}

// New returns a Deriver for the given owning program.
func New(program domain.Address) *Deriver {
	return &Deriver{program: program}
}

// Program returns the owning program address.
func (d *Deriver) Program() domain.Address {
	return d.program
}

// VoteCountAddress derives the account holding the tally for contract.
func (d *Deriver) VoteCountAddress(contract domain.Address) (domain.Address, error) {
	addr, _, err := FindProgramAddress([][]byte{VoteCountSeed, contract[:]}, d.program)
	if err != nil {
		return domain.Address{}, fmt.Errorf("derive vote count address: %w", err)
	}
	return addr, nil
}

// VotedFlagAddress derives the account whose existence marks that voter has voted on contract.
func (d *Deriver) VotedFlagAddress(voter, contract domain.Address) (domain.Address, error) {
	addr, _, err := FindProgramAddress([][]byte{VotedSeed, voter[:], contract[:]}, d.program)
	if err != nil {
		return domain.Address{}, fmt.Errorf("derive voted flag address: %w", err)
	}
	return addr, nil
}

// DeriveVoteCountAddress is VoteCountAddress for textual input.
func (d *Deriver) DeriveVoteCountAddress(contract string) (domain.Address, error) {
	c, err := domain.ParseAddress(contract)
	if err != nil {
		return domain.Address{}, err
	}
	return d.VoteCountAddress(c)
}

// DeriveVotedFlagAddress is VotedFlagAddress for textual input.
func (d *Deriver) DeriveVotedFlagAddress(voter, contract string) (domain.Address, error) {
	v, err := domain.ParseAddress(voter)
	if err != nil {
		return domain.Address{}, err
	}
	c, err := domain.ParseAddress(contract)
	if err != nil {
		return domain.Address{}, err
	}
	return d.VotedFlagAddress(v, c)
}
