package storage

import (
	"path/filepath"
	"testing"
	"time"

	"token_vote/internal/domain"
)

func setupTestDB(t *testing.T) *Storage {
	dbPath := filepath.Join(t.TempDir(), "data", "test.db")
	s, err := NewStorage(dbPath)
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func TestSaveAndListReceipts(t *testing.T) {
	s := setupTestDB(t)
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	receipts := []domain.VoteReceipt{
		{Signature: "sig-1", Voter: "alice", Contract: "c1", TallyAfter: 1, ConfirmedAt: base},
		{Signature: "sig-2", Voter: "alice", Contract: "c2", TallyAfter: 4, ConfirmedAt: base.Add(time.Minute)},
		{Signature: "sig-3", Voter: "bob", Contract: "c1", TallyAfter: 2, ConfirmedAt: base.Add(2 * time.Minute)},
	}
	for i := range receipts {
		if err := s.SaveReceipt(&receipts[i]); err != nil {
			t.Fatalf("SaveReceipt failed: %v", err)
		}
	}

	all, err := s.ListReceipts("", 0)
	if err != nil {
		t.Fatalf("ListReceipts failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 receipts, got %d", len(all))
	}
	if all[0].Signature != "sig-3" {
		t.Errorf("expected newest first, got %s", all[0].Signature)
	}

	alice, _ := s.ListReceipts("alice", 0)
	if len(alice) != 2 {
		t.Errorf("expected 2 receipts for alice, got %d", len(alice))
	}

	limited, _ := s.ListReceipts("", 1)
	if len(limited) != 1 {
		t.Errorf("expected limit to apply, got %d", len(limited))
	}

	got, err := s.GetReceipt("sig-2")
	if err != nil || got == nil {
		t.Fatalf("GetReceipt failed: %v", err)
	}
	if got.TallyAfter != 4 {
		t.Errorf("expected tally 4, got %d", got.TallyAfter)
	}

	missing, err := s.GetReceipt("nope")
	if err != nil || missing != nil {
		t.Errorf("expected nil receipt without error, got %v, %v", missing, err)
	}
}

func TestSaveReceipt_SameSignatureOverwrites(t *testing.T) {
	s := setupTestDB(t)
	r := &domain.VoteReceipt{Signature: "dup", Voter: "v", Contract: "c", TallyAfter: 1}
	if err := s.SaveReceipt(r); err != nil {
		t.Fatalf("SaveReceipt failed: %v", err)
	}
	r.TallyAfter = 2
	if err := s.SaveReceipt(r); err != nil {
		t.Fatalf("second SaveReceipt failed: %v", err)
	}

	all, _ := s.ListReceipts("", 0)
	if len(all) != 1 {
		t.Fatalf("expected 1 receipt, got %d", len(all))
	}
	if all[0].TallyAfter != 2 {
		t.Errorf("expected tally 2, got %d", all[0].TallyAfter)
	}
}

func TestTouchToken(t *testing.T) {
	s := setupTestDB(t)
	view := &domain.TokenMarketView{Contract: "c1", BaseSymbol: "BONK", QuoteSymbol: "SOL"}

	if err := s.TouchToken(view); err != nil {
		t.Fatalf("TouchToken failed: %v", err)
	}
	if err := s.TouchToken(domain.NoDataView("c1")); err != nil {
		t.Fatalf("TouchToken (no data) failed: %v", err)
	}

	token, err := s.GetToken("c1")
	if err != nil || token == nil {
		t.Fatalf("GetToken failed: %v", err)
	}
	if token.SearchCount != 2 {
		t.Errorf("expected search count 2, got %d", token.SearchCount)
	}
	if token.BaseSymbol != "BONK" {
		t.Errorf("no-data view must not clear symbol, got %q", token.BaseSymbol)
	}

	if err := s.TouchToken(&domain.TokenMarketView{}); err == nil {
		t.Error("expected error for empty contract")
	}
}

func TestSetTokenIcon(t *testing.T) {
	s := setupTestDB(t)
	s.TouchToken(&domain.TokenMarketView{Contract: "c1", BaseSymbol: "A"})

	if err := s.SetTokenIcon("c1", "/icons/c1.png"); err != nil {
		t.Fatalf("SetTokenIcon failed: %v", err)
	}
	token, _ := s.GetToken("c1")
	if token.IconPath != "/icons/c1.png" {
		t.Errorf("expected icon path, got %q", token.IconPath)
	}

	if err := s.SetTokenIcon("unknown", "/x.png"); err == nil {
		t.Error("expected error for untracked token")
	}
}

func TestListAndDeleteTokens(t *testing.T) {
	s := setupTestDB(t)
	s.TouchToken(&domain.TokenMarketView{Contract: "old"})
	time.Sleep(5 * time.Millisecond)
	s.TouchToken(&domain.TokenMarketView{Contract: "new"})

	tokens, err := s.ListTokens(0)
	if err != nil {
		t.Fatalf("ListTokens failed: %v", err)
	}
	if len(tokens) != 2 || tokens[0].Contract != "new" {
		t.Fatalf("expected newest token first, got %+v", tokens)
	}

	if err := s.DeleteToken("old"); err != nil {
		t.Fatalf("DeleteToken failed: %v", err)
	}
	if token, _ := s.GetToken("old"); token != nil {
		t.Error("expected token to be deleted, but found record")
	}
}

func TestConfigMap(t *testing.T) {
	s := setupTestDB(t)
	s.SaveConfig("last_contract", "c1")
	s.SaveConfig("last_contract", "c2")
	s.SaveConfig("theme", "dark")

	m, err := s.LoadConfigMap()
	if err != nil {
		t.Fatalf("LoadConfigMap failed: %v", err)
	}
	if m["last_contract"] != "c2" || m["theme"] != "dark" {
		t.Errorf("unexpected config map: %v", m)
	}
}
