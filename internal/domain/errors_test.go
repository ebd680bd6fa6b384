package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestNetworkError(t *testing.T) {
	baseErr := errors.New("connection refused")

	t.Run("retriable error", func(t *testing.T) {
		err := NewNetworkError("getAccountInfo", baseErr)

		if !err.IsRetriable() {
			t.Error("Expected error to be retriable")
		}

		if err.Error() != "getAccountInfo: connection refused" {
			t.Errorf("Error message = %q, want %q", err.Error(), "getAccountInfo: connection refused")
		}

		if !errors.Is(err, baseErr) {
			t.Error("Expected error to wrap baseErr")
		}
	})

	t.Run("fatal error", func(t *testing.T) {
		err := NewFatalNetworkError("decode", baseErr)

		if err.IsRetriable() {
			t.Error("Expected error to not be retriable")
		}
	})

	t.Run("IsRetriable helper", func(t *testing.T) {
		retriable := NewNetworkError("dial", baseErr)
		fatal := NewFatalNetworkError("decode", baseErr)
		plain := errors.New("plain error")

		if !IsRetriable(retriable) {
			t.Error("IsRetriable should return true for retriable error")
		}

		if IsRetriable(fatal) {
			t.Error("IsRetriable should return false for fatal error")
		}

		if IsRetriable(plain) {
			t.Error("IsRetriable should return false for plain error")
		}
	})
}

func TestLedgerError(t *testing.T) {
	cause := NewNetworkError("getAccountInfo", errors.New("timeout"))
	err := fmt.Errorf("tally: %w", &LedgerError{Op: "getAccountInfo", Err: cause})

	if !errors.Is(err, ErrLedgerUnavailable) {
		t.Error("LedgerError should match ErrLedgerUnavailable")
	}
	if errors.Is(err, ErrCorruptTallyState) {
		t.Error("LedgerError should not match ErrCorruptTallyState")
	}

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatal("LedgerError should unwrap to the NetworkError")
	}
	if netErr.Op != "getAccountInfo" {
		t.Errorf("Op = %q, want getAccountInfo", netErr.Op)
	}
}

func TestVoteSubmissionError(t *testing.T) {
	cause := errors.New("user rejected the request")
	err := &VoteSubmissionError{Stage: StageSign, Err: cause}

	if !errors.Is(err, ErrVoteSubmissionFailed) {
		t.Error("VoteSubmissionError should match ErrVoteSubmissionFailed")
	}
	if !errors.Is(err, cause) {
		t.Error("VoteSubmissionError should wrap its cause")
	}

	expected := "vote submission failed [sign]: user rejected the request"
	if err.Error() != expected {
		t.Errorf("Error message = %q, want %q", err.Error(), expected)
	}
}

func TestConfigError(t *testing.T) {
	baseErr := errors.New("missing value")
	err := &ConfigError{Field: "ledger.rpc_url", Err: baseErr}

	if err.IsRetriable() {
		t.Error("ConfigError should never be retriable")
	}

	expected := "config error [ledger.rpc_url]: missing value"
	if err.Error() != expected {
		t.Errorf("Error message = %q, want %q", err.Error(), expected)
	}
}
