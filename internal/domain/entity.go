package domain

import (
	"time"
)

// VoteReceipt records a confirmed vote observed by this process.
// It is informational only: eligibility is always decided by the ledger.
type VoteReceipt struct {
	Signature   string    `gorm:"primaryKey" json:"signature"`
	Voter       string    `json:"voter" gorm:"index"`
	Contract    string    `json:"contract" gorm:"index"`
	TallyAfter  uint64    `json:"tally_after"` // Tally read back after confirmation
	ConfirmedAt time.Time `json:"confirmed_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// TrackedToken represents a contract that was searched in this installation
type TrackedToken struct {
	Contract       string    `gorm:"primaryKey" json:"contract"`
	BaseSymbol     string    `json:"base_symbol"`
	QuoteSymbol    string    `json:"quote_symbol"`
	IconPath       string    `json:"icon_path"`
	SearchCount    int       `json:"search_count"`
	LastSearchedAt time.Time `json:"last_searched_at" gorm:"index"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// AppConfig is a persisted session setting. The session stores its last selected contract here.
type AppConfig struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// VoteRecorded is published after a vote is confirmed on the ledger.
type VoteRecorded struct {
	AttemptID   string    `json:"attempt_id"`
	Signature   string    `json:"signature"`
	Voter       string    `json:"voter"`
	Contract    string    `json:"contract"`
	TallyAfter  uint64    `json:"tally_after"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}
