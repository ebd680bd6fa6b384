// Package api is the JSON and websocket presentation surface of the vote session.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"token_vote/internal/domain"
	"token_vote/internal/engine"
	"token_vote/internal/market"
)

// SessionAPI is what handlers need from the session.
type SessionAPI interface {
	Snapshot() engine.State
	Search(ctx context.Context, contract string) error
	Vote(ctx context.Context) (domain.Signature, error)
	Refresh(ctx context.Context) error
}

// MarketLookup resolves market data with its outcome.
type MarketLookup interface {
	Lookup(ctx context.Context, contract string) market.Result
}

// WalletControl connects and disconnects the operator wallet.
type WalletControl interface {
	Connect() error
	Disconnect()
	PublicKey() (domain.Address, bool)
}

// Handler serves the API. History and Wallet may be nil.
type Handler struct {
	session SessionAPI
	market  MarketLookup
	history domain.HistoryRepository
	wallet  WalletControl
	hub     *Hub
	logger  *slog.Logger
}

func NewHandler(session SessionAPI, m MarketLookup, history domain.HistoryRepository, wallet WalletControl, hub *Hub) *Handler {
	return &Handler{
		session: session,
		market:  m,
		history: history,
		wallet:  wallet,
		hub:     hub,
		logger:  slog.Default().With("module", "api"),
	}
}

type stateResponse struct {
	engine.State
	CanVote bool `json:"can_vote"`
}

func newStateResponse(st engine.State) stateResponse {
	return stateResponse{State: st, CanVote: st.CanVote()}
}

type searchRequest struct {
	Contract string `json:"contract"`
}

type voteResponse struct {
	Signature string        `json:"signature"`
	State     stateResponse `json:"state"`
}

type tokenResponse struct {
	Status  string                  `json:"status"`
	Cached  bool                    `json:"cached"`
	View    *domain.TokenMarketView `json:"view,omitempty"`
	Tracked *domain.TrackedToken    `json:"tracked,omitempty"`
}

type walletResponse struct {
	Connected bool   `json:"connected"`
	Key       string `json:"key,omitempty"`
}

func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("pong"))
}

func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newStateResponse(h.session.Snapshot()))
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if err := h.session.Search(r.Context(), req.Contract); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newStateResponse(h.session.Snapshot()))
}

func (h *Handler) Vote(w http.ResponseWriter, r *http.Request) {
	sig, err := h.session.Vote(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, voteResponse{
		Signature: sig.String(),
		State:     newStateResponse(h.session.Snapshot()),
	})
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Refresh(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newStateResponse(h.session.Snapshot()))
}

func (h *Handler) GetToken(w http.ResponseWriter, r *http.Request) {
	contract, err := domain.ParseAddress(chi.URLParam(r, "contract"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	res := h.market.Lookup(r.Context(), contract.String())
	resp := tokenResponse{
		Status: res.Status.String(),
		Cached: res.Cached,
		View:   res.View,
	}
	if h.history != nil {
		tracked, err := h.history.GetToken(contract.String())
		if err != nil {
			h.logger.Warn("Failed to read tracked token", "contract", contract.Short(), "error", err)
		}
		resp.Tracked = tracked
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) ListTokens(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSON(w, http.StatusOK, []domain.TrackedToken{})
		return
	}
	tokens, err := h.history.ListTokens(queryLimit(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if tokens == nil {
		tokens = []domain.TrackedToken{}
	}
	writeJSON(w, http.StatusOK, tokens)
}

// DeleteToken stops tracking a contract locally. Ledger state is untouched.
func (h *Handler) DeleteToken(w http.ResponseWriter, r *http.Request) {
	contract, err := domain.ParseAddress(chi.URLParam(r, "contract"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if h.history != nil {
		if err := h.history.DeleteToken(contract.String()); err != nil {
			h.writeError(w, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetReceipt(w http.ResponseWriter, r *http.Request) {
	sig, err := domain.ParseSignature(chi.URLParam(r, "signature"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	var receipt *domain.VoteReceipt
	if h.history != nil {
		receipt, err = h.history.GetReceipt(sig.String())
		if err != nil {
			h.writeError(w, err)
			return
		}
	}
	if receipt == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "receipt not found"})
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (h *Handler) ListReceipts(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSON(w, http.StatusOK, []domain.VoteReceipt{})
		return
	}
	voter := r.URL.Query().Get("voter")
	if voter != "" {
		if _, err := domain.ParseAddress(voter); err != nil {
			h.writeError(w, err)
			return
		}
	}
	receipts, err := h.history.ListReceipts(voter, queryLimit(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if receipts == nil {
		receipts = []domain.VoteReceipt{}
	}
	writeJSON(w, http.StatusOK, receipts)
}

func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.walletStatus())
}

// ConnectWallet loads the operator key. The session learns about it from the wallet watcher.
func (h *Handler) ConnectWallet(w http.ResponseWriter, r *http.Request) {
	if h.wallet == nil {
		h.writeError(w, domain.ErrWalletNotConnected)
		return
	}
	if err := h.wallet.Connect(); err != nil {
		h.logger.Warn("Wallet connect failed", "error", err)
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error(), Retriable: true})
		return
	}
	writeJSON(w, http.StatusAccepted, h.walletStatus())
}

func (h *Handler) DisconnectWallet(w http.ResponseWriter, r *http.Request) {
	if h.wallet != nil {
		h.wallet.Disconnect()
	}
	writeJSON(w, http.StatusAccepted, h.walletStatus())
}

func (h *Handler) walletStatus() walletResponse {
	if h.wallet == nil {
		return walletResponse{}
	}
	key, ok := h.wallet.PublicKey()
	if !ok {
		return walletResponse{}
	}
	return walletResponse{Connected: true, Key: key.String()}
}

func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	h.hub.ServeWS(w, r, h.session.Snapshot())
}

// statusFor maps domain failures to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidAddressFormat):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrWalletNotConnected):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNoContractSelected):
		return http.StatusPreconditionFailed
	case errors.Is(err, domain.ErrAlreadyVoted):
		return http.StatusConflict
	case errors.Is(err, domain.ErrVoteSubmissionFailed):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrLedgerUnavailable), errors.Is(err, engine.ErrSessionStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrCorruptTallyState):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error     string `json:"error"`
	Retriable bool   `json:"retriable"`
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", "status", status, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Retriable: domain.IsRetriable(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func queryLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return 50
	}
	return min(limit, 200)
}
