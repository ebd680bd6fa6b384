// Package event defines the intents consumed by the session loop and the outbound vote feed.
package event

import (
	"time"

	"token_vote/internal/domain"
)

type Type string

const (
	TypeSearch  Type = "search"
	TypeVote    Type = "vote"
	TypeWallet  Type = "wallet"
	TypeRefresh Type = "refresh"
)

// Event is anything the session loop accepts.
type Event interface {
	GetType() Type
	GetTs() int64
}

// Base carries the enqueue time in unix microseconds.
type Base struct {
	Ts int64
}

func (b Base) GetTs() int64 { return b.Ts }

func now() Base { return Base{Ts: time.Now().UnixMicro()} }

// Reply answers an event that asked for one. Exactly one Reply is sent per such event.
type Reply struct {
	Err       error
	Signature domain.Signature
}

// SearchEvent selects a contract by its text form.
type SearchEvent struct {
	Base
	Contract string
	Reply    chan Reply
}

func (*SearchEvent) GetType() Type { return TypeSearch }

// VoteEvent casts a vote for the selected contract with the connected wallet.
type VoteEvent struct {
	Base
	Reply chan Reply
}

func (*VoteEvent) GetType() Type { return TypeVote }

// WalletEvent reports a change of the connected wallet key. Key is nil on disconnect.
type WalletEvent struct {
	Base
	Key *domain.Address
}

func (*WalletEvent) GetType() Type { return TypeWallet }

// RefreshEvent re-reads vote state for the current selection.
type RefreshEvent struct {
	Base
	Reply chan Reply
}

func (*RefreshEvent) GetType() Type { return TypeRefresh }

// NewSearch returns a search event with a buffered reply channel.
func NewSearch(contract string) *SearchEvent {
	return &SearchEvent{Base: now(), Contract: contract, Reply: make(chan Reply, 1)}
}

func NewVote() *VoteEvent {
	return &VoteEvent{Base: now(), Reply: make(chan Reply, 1)}
}

func NewWallet(key *domain.Address) *WalletEvent {
	return &WalletEvent{Base: now(), Key: key}
}

func NewRefresh() *RefreshEvent {
	return &RefreshEvent{Base: now(), Reply: make(chan Reply, 1)}
}

// Respond delivers r without blocking. Reply channels are buffered with capacity one.
func Respond(ch chan Reply, r Reply) {
	if ch == nil {
		return
	}
	select {
	case ch <- r:
	default:
	}
}
