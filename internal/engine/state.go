package engine

import (
	"time"

	"token_vote/internal/domain"
)

// State is what the presentation layer renders. Snapshots are copies.
type State struct {
	Version  uint64                  `json:"version"`
	Wallet   *domain.Address         `json:"wallet,omitempty"`
	Contract *domain.Address         `json:"contract,omitempty"`
	Market   *domain.TokenMarketView `json:"market,omitempty"`
	HasVoted bool                    `json:"has_voted"`
	Tally    uint64                  `json:"tally"`

	// Err is the last vote state read failure; Tally and HasVoted are not meaningful while set.
	Err       error  `json:"-"`
	ErrorText string `json:"error,omitempty"`

	LastSignature string    `json:"last_signature,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CanVote mirrors the vote button: wallet, contract, readable state, not yet voted.
func (s State) CanVote() bool {
	return s.Wallet != nil && s.Contract != nil && s.Err == nil && !s.HasVoted
}

func (s State) clone() State {
	c := s
	if s.Wallet != nil {
		w := *s.Wallet
		c.Wallet = &w
	}
	if s.Contract != nil {
		k := *s.Contract
		c.Contract = &k
	}
	if s.Market != nil {
		m := *s.Market
		c.Market = &m
	}
	return c
}
