package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"token_vote/internal/domain"
	"token_vote/internal/event"
	"token_vote/internal/infra"
	"token_vote/internal/vote"
)

// ErrSessionStopped is returned to callers whose event could not be delivered or answered.
var ErrSessionStopped = errors.New("session stopped")

// LastContractKey is the history setting holding the most recently selected contract.
const LastContractKey = "last_contract"

// StateQuerier reads vote state from the ledger.
type StateQuerier interface {
	HasVoted(ctx context.Context, voter, contract domain.Address) (bool, error)
	GetVoteTally(ctx context.Context, contract domain.Address) (uint64, error)
}

// VoteCaster submits votes.
type VoteCaster interface {
	SubmitVote(ctx context.Context, req vote.Request) (domain.Signature, error)
}

// IconFetcher stores a token icon locally and returns its path.
type IconFetcher interface {
	DownloadIcon(contract, imageURL string) (string, error)
}

// Deps are the collaborators of a Session. History, Publisher and Icons may be nil.
type Deps struct {
	Market    domain.MarketDataReader
	Reader    StateQuerier
	Submitter VoteCaster
	History   domain.HistoryRepository
	Publisher domain.VotePublisher
	Icons     IconFetcher
	Metrics   *infra.Metrics
}

// Session is the single-goroutine event processor behind the presentation layer.
// Only Run mutates state; HTTP handlers enqueue events and read snapshots.
type Session struct {
	inbox chan event.Event
	deps  Deps
	state State

	// Boundary: notifies the presentation layer of every committed state
	onStateUpdate func(State)

	mu     sync.RWMutex // guards state for external reads
	iconWG sync.WaitGroup
	logger *slog.Logger
}

// NewSession creates a session with a buffered inbox.
func NewSession(inboxSize int, deps Deps, onUpdate func(State)) *Session {
	if deps.Metrics == nil {
		deps.Metrics = infra.GlobalMetrics
	}
	if deps.Publisher == nil {
		deps.Publisher = event.NopPublisher{}
	}
	return &Session{
		inbox:         make(chan event.Event, inboxSize),
		deps:          deps,
		onStateUpdate: onUpdate,
		logger:        slog.Default().With("module", "session"),
	}
}

// Inbox returns the event channel. The wallet watcher and API handlers send here.
func (s *Session) Inbox() chan<- event.Event {
	return s.inbox
}

// Run starts the event loop. It must run in exactly one goroutine.
func (s *Session) Run(ctx context.Context) {
	s.logger.Info("Session started")

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("CRITICAL_PANIC_DETECTED", slog.Any("panic", r))
			s.DumpState("session_dump.json")
			panic(fmt.Sprintf("HALTED: %v", r))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Session stopping...")
			s.drain()
			s.iconWG.Wait()
			return
		case ev := <-s.inbox:
			start := time.Now()
			s.processEvent(ctx, ev)
			s.deps.Metrics.RecordEvent(time.Since(start).Nanoseconds())
		}
	}
}

// drain answers queued events so no caller waits forever.
func (s *Session) drain() {
	for {
		select {
		case ev := <-s.inbox:
			switch e := ev.(type) {
			case *event.SearchEvent:
				event.Respond(e.Reply, event.Reply{Err: ErrSessionStopped})
			case *event.VoteEvent:
				event.Respond(e.Reply, event.Reply{Err: ErrSessionStopped})
			case *event.RefreshEvent:
				event.Respond(e.Reply, event.Reply{Err: ErrSessionStopped})
			}
		default:
			return
		}
	}
}

func (s *Session) processEvent(ctx context.Context, ev event.Event) {
	switch e := ev.(type) {
	case *event.SearchEvent:
		event.Respond(e.Reply, event.Reply{Err: s.handleSearch(ctx, e)})
	case *event.VoteEvent:
		sig, err := s.handleVote(ctx)
		event.Respond(e.Reply, event.Reply{Signature: sig, Err: err})
	case *event.WalletEvent:
		s.handleWallet(ctx, e)
	case *event.RefreshEvent:
		st := s.current()
		s.refresh(ctx, &st)
		s.commit(st)
		event.Respond(e.Reply, event.Reply{Err: st.Err})
	default:
		s.logger.Warn("Unknown event type", slog.Any("type", ev.GetType()))
	}
}

func (s *Session) handleSearch(ctx context.Context, e *event.SearchEvent) error {
	contract, err := domain.ParseAddress(e.Contract)
	if err != nil {
		s.logger.Info("Search rejected", "input", e.Contract, "error", err)
		return err
	}

	st := s.current()
	st.Contract = &contract
	st.Market = s.deps.Market.FetchTokenData(ctx, contract.String())
	if st.Market != nil {
		s.track(st.Market)
	}
	s.refresh(ctx, &st)
	s.commit(st)
	s.remember(contract)
	return nil
}

func (s *Session) remember(contract domain.Address) {
	if s.deps.History == nil {
		return
	}
	if err := s.deps.History.SaveConfig(LastContractKey, contract.String()); err != nil {
		s.logger.Warn("Failed to save selection", "contract", contract.Short(), "error", err)
	}
}

func (s *Session) handleWallet(ctx context.Context, e *event.WalletEvent) {
	st := s.current()
	st.Wallet = e.Key
	s.deps.Metrics.SetWalletConnected(e.Key != nil)
	if e.Key != nil {
		s.logger.Info("Wallet connected", "key", e.Key.String())
	} else {
		s.logger.Info("Wallet disconnected")
	}
	s.refresh(ctx, &st)
	s.commit(st)
}

func (s *Session) handleVote(ctx context.Context) (domain.Signature, error) {
	st := s.current()
	req := vote.Request{
		AttemptID: uuid.NewString(),
		Voter:     st.Wallet,
		Contract:  st.Contract,
	}

	sig, err := s.deps.Submitter.SubmitVote(ctx, req)
	if err != nil {
		// the ledger may know more than we do
		if errors.Is(err, domain.ErrAlreadyVoted) || errors.Is(err, domain.ErrVoteSubmissionFailed) {
			s.refresh(ctx, &st)
			s.commit(st)
		}
		return domain.Signature{}, err
	}

	st.LastSignature = sig.String()
	s.refresh(ctx, &st)
	s.commit(st)

	confirmedAt := time.Now().UTC()
	rec := domain.VoteRecorded{
		AttemptID:   req.AttemptID,
		Signature:   sig.String(),
		Voter:       req.Voter.String(),
		Contract:    req.Contract.String(),
		TallyAfter:  st.Tally,
		ConfirmedAt: confirmedAt,
	}
	if s.deps.History != nil {
		receipt := &domain.VoteReceipt{
			Signature:   rec.Signature,
			Voter:       rec.Voter,
			Contract:    rec.Contract,
			TallyAfter:  rec.TallyAfter,
			ConfirmedAt: confirmedAt,
		}
		if err := s.deps.History.SaveReceipt(receipt); err != nil {
			s.logger.Warn("Failed to save vote receipt", "signature", rec.Signature, "error", err)
		}
	}
	if err := s.deps.Publisher.Publish(ctx, rec); err != nil {
		s.logger.Warn("Failed to publish vote", "signature", rec.Signature, "error", err)
	}
	return sig, nil
}

// refresh re-reads vote state into st. Without wallet or contract the state is "not voted, 0".
// Read failures are kept on the state, never replaced by defaults.
func (s *Session) refresh(ctx context.Context, st *State) {
	st.Err = nil
	if st.Wallet == nil || st.Contract == nil {
		st.HasVoted = false
		st.Tally = 0
		return
	}

	voted, err := s.deps.Reader.HasVoted(ctx, *st.Wallet, *st.Contract)
	if err != nil {
		s.readFailed(st, err)
		return
	}
	tally, err := s.deps.Reader.GetVoteTally(ctx, *st.Contract)
	if err != nil {
		s.readFailed(st, err)
		return
	}
	st.HasVoted = voted
	st.Tally = tally
}

func (s *Session) readFailed(st *State, err error) {
	s.deps.Metrics.RecordError()
	s.logger.Warn("Vote state read failed", "contract", st.Contract.Short(), "error", err)
	st.Err = err
}

func (s *Session) track(view *domain.TokenMarketView) {
	if s.deps.History == nil {
		return
	}
	if err := s.deps.History.TouchToken(view); err != nil {
		s.logger.Warn("Failed to record token", "contract", view.Contract, "error", err)
		return
	}
	if s.deps.Icons == nil || view.ImageURL == "" {
		return
	}

	contract, imageURL := view.Contract, view.ImageURL
	s.iconWG.Add(1)
	go func() {
		defer s.iconWG.Done()
		path, err := s.deps.Icons.DownloadIcon(contract, imageURL)
		if err != nil {
			s.logger.Debug("Icon download failed", "contract", contract, "error", err)
			return
		}
		if err := s.deps.History.SetTokenIcon(contract, path); err != nil {
			s.logger.Warn("Failed to store icon path", "contract", contract, "error", err)
		}
	}()
}

func (s *Session) current() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

func (s *Session) commit(st State) {
	if st.Err != nil {
		st.ErrorText = st.Err.Error()
	} else {
		st.ErrorText = ""
	}
	st.UpdatedAt = time.Now().UTC()

	s.mu.Lock()
	st.Version = s.state.Version + 1
	s.state = st
	snapshot := st.clone()
	s.mu.Unlock()

	if s.onStateUpdate != nil {
		s.onStateUpdate(snapshot)
	}
}

// Snapshot returns a copy of the current state (external read).
func (s *Session) Snapshot() State {
	return s.current()
}

// Search selects a contract and waits for the resulting state.
func (s *Session) Search(ctx context.Context, contract string) error {
	ev := event.NewSearch(contract)
	r, err := s.roundTrip(ctx, ev, ev.Reply)
	if err != nil {
		return err
	}
	return r.Err
}

// Vote casts a vote for the current selection and waits for confirmation.
func (s *Session) Vote(ctx context.Context) (domain.Signature, error) {
	ev := event.NewVote()
	r, err := s.roundTrip(ctx, ev, ev.Reply)
	if err != nil {
		return domain.Signature{}, err
	}
	return r.Signature, r.Err
}

// Restore re-selects the contract saved by the previous run, if any.
// It reports whether a selection was restored. Run must already be consuming the inbox.
func (s *Session) Restore(ctx context.Context) (bool, error) {
	if s.deps.History == nil {
		return false, nil
	}
	settings, err := s.deps.History.LoadConfigMap()
	if err != nil {
		return false, fmt.Errorf("load settings: %w", err)
	}
	last := settings[LastContractKey]
	if last == "" {
		return false, nil
	}
	if err := s.Search(ctx, last); err != nil {
		return false, fmt.Errorf("restore %s: %w", last, err)
	}
	s.logger.Info("Selection restored", "contract", last)
	return true, nil
}

// Refresh re-reads vote state for the current selection.
func (s *Session) Refresh(ctx context.Context) error {
	ev := event.NewRefresh()
	r, err := s.roundTrip(ctx, ev, ev.Reply)
	if err != nil {
		return err
	}
	return r.Err
}

func (s *Session) roundTrip(ctx context.Context, ev event.Event, reply chan event.Reply) (event.Reply, error) {
	select {
	case s.inbox <- ev:
	case <-ctx.Done():
		return event.Reply{}, ctx.Err()
	}
	select {
	case r := <-reply:
		return r, nil
	case <-ctx.Done():
		return event.Reply{}, ctx.Err()
	}
}

// DumpState writes the current state to a file (for post-mortem).
func (s *Session) DumpState(filename string) {
	s.logger.Info("Dumping session state...", slog.String("file", filename))

	b, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		s.logger.Error("Failed to marshal state", slog.Any("error", err))
		return
	}
	if err := os.WriteFile(filename, b, 0644); err != nil {
		s.logger.Error("Failed to write state dump", slog.Any("error", err))
	}
}
