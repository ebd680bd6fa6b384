package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"token_vote/internal/domain"
	"token_vote/internal/event"
)

type toggleSource struct {
	mu        sync.Mutex
	key       domain.Address
	connected bool
}

func (s *toggleSource) PublicKey() (domain.Address, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key, s.connected
}

func (s *toggleSource) set(key domain.Address, connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.key, s.connected = key, connected
}

func TestWalletWatcher_EdgeTriggered(t *testing.T) {
	src := &toggleSource{}
	inbox := make(chan event.Event, 8)
	w := NewWalletWatcher(src, inbox, time.Second)
	ctx := context.Background()

	require.False(t, w.Poll(ctx), "disconnected at start emits nothing")

	first := testAddress(0x01)
	src.set(first, true)
	require.True(t, w.Poll(ctx))
	require.False(t, w.Poll(ctx), "same key is not re-emitted")
	require.False(t, w.Poll(ctx))

	second := testAddress(0x02)
	src.set(second, true)
	require.True(t, w.Poll(ctx))

	src.set(second, false)
	require.True(t, w.Poll(ctx))
	require.False(t, w.Poll(ctx))

	require.Len(t, inbox, 3)
	ev := (<-inbox).(*event.WalletEvent)
	require.Equal(t, first, *ev.Key)
	ev = (<-inbox).(*event.WalletEvent)
	require.Equal(t, second, *ev.Key)
	ev = (<-inbox).(*event.WalletEvent)
	require.Nil(t, ev.Key)
}

func TestWalletWatcher_UndeliveredKeyIsRetried(t *testing.T) {
	src := &toggleSource{}
	src.set(testAddress(0x03), true)
	inbox := make(chan event.Event) // nobody reads
	w := NewWalletWatcher(src, inbox, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.False(t, w.Poll(ctx))

	buffered := make(chan event.Event, 1)
	w.inbox = buffered
	require.True(t, w.Poll(context.Background()))
}

func TestWalletWatcher_Run(t *testing.T) {
	src := &toggleSource{}
	src.set(testAddress(0x04), true)
	inbox := make(chan event.Event, 8)
	w := NewWalletWatcher(src, inbox, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()

	select {
	case ev := <-inbox:
		require.Equal(t, event.TypeWallet, ev.GetType())
	case <-time.After(time.Second):
		t.Fatal("expected initial wallet event")
	}

	time.Sleep(50 * time.Millisecond)
	require.Len(t, inbox, 0, "no repeated events for an unchanged key")

	cancel()
	<-done
}
