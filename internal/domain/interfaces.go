package domain

import (
	"context"
)

// MarketDataReader returns the market view for a contract, or nil when no data could be fetched.
type MarketDataReader interface {
	FetchTokenData(ctx context.Context, contract string) *TokenMarketView
}

// VotePublisher announces confirmed votes to downstream consumers.
type VotePublisher interface {
	Publish(ctx context.Context, rec VoteRecorded) error
	Close() error
}

// HistoryRepository persists what this installation has seen (receipts, searched tokens, settings).
type HistoryRepository interface {
	SaveReceipt(receipt *VoteReceipt) error
	GetReceipt(signature string) (*VoteReceipt, error)
	ListReceipts(voter string, limit int) ([]VoteReceipt, error)
	TouchToken(view *TokenMarketView) error
	SetTokenIcon(contract, path string) error
	GetToken(contract string) (*TrackedToken, error)
	ListTokens(limit int) ([]TrackedToken, error)
	DeleteToken(contract string) error
	SaveConfig(key, value string) error
	LoadConfigMap() (map[string]string, error)
}
