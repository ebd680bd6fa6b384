package engine

import (
	"context"
	"log/slog"
	"time"

	"token_vote/internal/domain"
	"token_vote/internal/event"
)

// DefaultWalletPoll matches the one second wallet poll of the browser client.
const DefaultWalletPoll = time.Second

// KeySource reports the connected wallet key, false when disconnected.
type KeySource interface {
	PublicKey() (domain.Address, bool)
}

// WalletWatcher polls a KeySource and emits a WalletEvent only when the key changes.
type WalletWatcher struct {
	source   KeySource
	inbox    chan<- event.Event
	interval time.Duration

	// lastKey is owned by the watcher goroutine; nil means no wallet
	lastKey *domain.Address
}

func NewWalletWatcher(source KeySource, inbox chan<- event.Event, interval time.Duration) *WalletWatcher {
	if interval <= 0 {
		interval = DefaultWalletPoll
	}
	return &WalletWatcher{source: source, inbox: inbox, interval: interval}
}

// Run polls until ctx is done. The first poll happens immediately.
func (w *WalletWatcher) Run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Wallet watcher panic recovered", slog.Any("panic", r))
		}
	}()

	w.Poll(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Wallet watcher stopped")
			return
		case <-ticker.C:
			w.Poll(ctx)
		}
	}
}

// Poll reads the key once and reports whether an event was emitted.
// A key is only recorded as seen once its event was delivered.
func (w *WalletWatcher) Poll(ctx context.Context) bool {
	var current *domain.Address
	if key, ok := w.source.PublicKey(); ok {
		current = &key
	}

	if sameKey(current, w.lastKey) {
		return false
	}

	ev := event.NewWallet(current)
	select {
	case w.inbox <- ev:
		w.lastKey = current
		return true
	case <-ctx.Done():
		return false
	}
}

func sameKey(a, b *domain.Address) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
