package ledger

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"token_vote/internal/domain"
)

// Public RPC endpoints
const (
	DevnetURL  = "https://api.devnet.solana.com"
	MainnetURL = "https://api.mainnet-beta.solana.com"

	defaultConfirmPoll = 500 * time.Millisecond
)

var (
	ErrTransactionFailed   = errors.New("transaction failed on ledger")
	ErrBlockHeightExceeded = errors.New("transaction expired: block height exceeded")
)

// RPCError is an error object returned by the JSON-RPC endpoint.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Client is a JSON-RPC 2.0 client for the ledger (Boundary Layer)
type Client struct {
	url         string
	commitment  Commitment
	httpClient  *http.Client
	confirmPoll time.Duration
	nextID      atomic.Uint64
	logger      *slog.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithConfirmPoll sets how often ConfirmTransaction polls signature statuses.
func WithConfirmPoll(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.confirmPoll = d
		}
	}
}

// NewClient creates a ledger client for url reading at the given commitment.
func NewClient(url string, commitment Commitment, opts ...Option) *Client {
	if url == "" {
		url = DevnetURL
	}
	if commitment == "" {
		commitment = CommitmentConfirmed
	}
	c := &Client{
		url:        url,
		commitment: commitment,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
		confirmPoll: defaultConfirmPoll,
		logger:      slog.Default().With("module", "ledger_client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// call performs one JSON-RPC request. Transport and HTTP status failures come back as
// *domain.NetworkError, endpoint errors as *RPCError.
func (c *Client) call(ctx context.Context, method string, params []any, out any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return domain.NewFatalNetworkError(method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return domain.NewFatalNetworkError(method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.NewNetworkError(method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.NewNetworkError(method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.NewNetworkError(method, fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	var rr rpcResponse
	if err := json.Unmarshal(respBody, &rr); err != nil {
		return domain.NewFatalNetworkError(method, fmt.Errorf("decode response: %w", err))
	}
	if rr.Error != nil {
		return rr.Error
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(rr.Result, out); err != nil {
		return domain.NewFatalNetworkError(method, fmt.Errorf("decode result: %w", err))
	}
	return nil
}

func (c *Client) unavailable(op string, err error) error {
	return &domain.LedgerError{Op: op, Err: err}
}

type accountInfoResult struct {
	Value *struct {
		Data       []string `json:"data"`
		Owner      string   `json:"owner"`
		Lamports   uint64   `json:"lamports"`
		Executable bool     `json:"executable"`
	} `json:"value"`
}

// GetAccountInfo returns the account stored at address, or nil if none exists.
func (c *Client) GetAccountInfo(ctx context.Context, address domain.Address) (*AccountInfo, error) {
	const op = "getAccountInfo"
	var res accountInfoResult
	params := []any{
		address.String(),
		map[string]any{"encoding": "base64", "commitment": c.commitment},
	}
	if err := c.call(ctx, op, params, &res); err != nil {
		return nil, c.unavailable(op, err)
	}
	if res.Value == nil {
		return nil, nil
	}

	info := &AccountInfo{Lamports: res.Value.Lamports, Executable: res.Value.Executable}
	if len(res.Value.Data) > 0 {
		data, err := base64.StdEncoding.DecodeString(res.Value.Data[0])
		if err != nil {
			return nil, c.unavailable(op, fmt.Errorf("decode account data: %w", err))
		}
		info.Data = data
	}
	if res.Value.Owner != "" {
		owner, err := domain.ParseAddress(res.Value.Owner)
		if err != nil {
			return nil, c.unavailable(op, fmt.Errorf("decode account owner: %w", err))
		}
		info.Owner = owner
	}
	return info, nil
}

// GetLatestBlockReference fetches a fresh blockhash. Never reuse it across submissions.
func (c *Client) GetLatestBlockReference(ctx context.Context) (BlockReference, error) {
	const op = "getLatestBlockhash"
	var res struct {
		Value struct {
			Blockhash            string `json:"blockhash"`
			LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
		} `json:"value"`
	}
	params := []any{map[string]any{"commitment": c.commitment}}
	if err := c.call(ctx, op, params, &res); err != nil {
		return BlockReference{}, c.unavailable(op, err)
	}
	hash, err := domain.ParseAddress(res.Value.Blockhash)
	if err != nil {
		return BlockReference{}, c.unavailable(op, fmt.Errorf("decode blockhash: %w", err))
	}
	return BlockReference{Blockhash: hash, LastValidBlockHeight: res.Value.LastValidBlockHeight}, nil
}

// GetBlockHeight returns the current block height at the client's commitment.
func (c *Client) GetBlockHeight(ctx context.Context) (uint64, error) {
	const op = "getBlockHeight"
	var height uint64
	params := []any{map[string]any{"commitment": c.commitment}}
	if err := c.call(ctx, op, params, &height); err != nil {
		return 0, c.unavailable(op, err)
	}
	return height, nil
}

// SendTransaction submits a signed transaction and returns its signature.
// Ledger-side rejections come back as *RPCError.
func (c *Client) SendTransaction(ctx context.Context, tx *Transaction) (domain.Signature, error) {
	const op = "sendTransaction"
	raw, err := tx.Serialize()
	if err != nil {
		return domain.Signature{}, err
	}

	var sigText string
	params := []any{
		base64.StdEncoding.EncodeToString(raw),
		map[string]any{"encoding": "base64", "preflightCommitment": c.commitment},
	}
	if err := c.call(ctx, op, params, &sigText); err != nil {
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) {
			return domain.Signature{}, fmt.Errorf("%s rejected: %w", op, rpcErr)
		}
		return domain.Signature{}, c.unavailable(op, err)
	}
	sig, err := domain.ParseSignature(sigText)
	if err != nil {
		return domain.Signature{}, c.unavailable(op, err)
	}
	c.logger.Info("Transaction sent", "signature", sig.String())
	return sig, nil
}

// GetSignatureStatuses returns one status per signature; nil entries are unknown to the ledger.
func (c *Client) GetSignatureStatuses(ctx context.Context, sigs ...domain.Signature) ([]*SignatureStatus, error) {
	const op = "getSignatureStatuses"
	texts := make([]string, len(sigs))
	for i, s := range sigs {
		texts[i] = s.String()
	}

	var res struct {
		Value []*struct {
			Slot               uint64 `json:"slot"`
			ConfirmationStatus string `json:"confirmationStatus"`
			Err                any    `json:"err"`
		} `json:"value"`
	}
	if err := c.call(ctx, op, []any{texts}, &res); err != nil {
		return nil, c.unavailable(op, err)
	}

	out := make([]*SignatureStatus, len(res.Value))
	for i, v := range res.Value {
		if v == nil {
			continue
		}
		out[i] = &SignatureStatus{Slot: v.Slot, ConfirmationStatus: v.ConfirmationStatus, Err: v.Err}
	}
	return out, nil
}

// ConfirmTransaction waits until sig reaches level, the transaction fails, the reference
// blockhash expires, or ctx is done. It is the only timeout a vote submission has.
func (c *Client) ConfirmTransaction(ctx context.Context, sig domain.Signature, ref BlockReference, level Commitment) error {
	ticker := time.NewTicker(c.confirmPoll)
	defer ticker.Stop()

	for {
		statuses, err := c.GetSignatureStatuses(ctx, sig)
		if err != nil {
			return err
		}
		if len(statuses) > 0 && statuses[0] != nil {
			st := statuses[0]
			if st.Err != nil {
				return fmt.Errorf("%w: %v", ErrTransactionFailed, st.Err)
			}
			if level.Reached(st.ConfirmationStatus) {
				c.logger.Info("Transaction confirmed", "signature", sig.String(), "status", st.ConfirmationStatus, "slot", st.Slot)
				return nil
			}
		} else if ref.LastValidBlockHeight > 0 {
			height, err := c.GetBlockHeight(ctx)
			if err != nil {
				return err
			}
			if height > ref.LastValidBlockHeight {
				return fmt.Errorf("%w: height %d > %d", ErrBlockHeightExceeded, height, ref.LastValidBlockHeight)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Ping checks node health; it returns nil when the node reports "ok".
func (c *Client) Ping(ctx context.Context) error {
	const op = "getHealth"
	var status string
	if err := c.call(ctx, op, nil, &status); err != nil {
		return c.unavailable(op, err)
	}
	if status != "ok" {
		return c.unavailable(op, fmt.Errorf("node status %q", status))
	}
	return nil
}
