package core

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestKidValidate(t *testing.T) {
	good := Kid{ID: uuid.New(), Name: "Emma", AvatarEmoji: "👧", ColorHex: "FF6B6B"}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Kid{
		{ID: uuid.New(), Name: ""},
		{ID: uuid.New(), Name: "   "},
	}
	for i, k := range bads {
		if err := k.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestTransactionValidate(t *testing.T) {
	kid := uuid.New()
	good := Transaction{ID: uuid.New(), KidID: kid, Amount: Money{Cents: 2500}}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	if err := (Transaction{ID: uuid.New(), KidID: kid, Amount: Money{}}).Validate(); err != ErrZeroAmount {
		t.Fatalf("expected ErrZeroAmount, got %v", err)
	}
	if err := (Transaction{ID: uuid.New(), Amount: Money{Cents: 100}}).Validate(); err != ErrMissingKid {
		t.Fatalf("expected ErrMissingKid, got %v", err)
	}
}

func TestBalance(t *testing.T) {
	kid := uuid.New()
	var txs []Transaction
	if got := Balance(txs); got.Cents != 0 {
		t.Fatalf("empty ledger balance = %d, want 0", got.Cents)
	}

	txs = append(txs, Transaction{ID: uuid.New(), KidID: kid, Amount: Money{Cents: 2500}})
	if got := Balance(txs); got.Cents != 2500 {
		t.Fatalf("balance = %d, want 2500", got.Cents)
	}

	txs = append(txs, Transaction{ID: uuid.New(), KidID: kid, Amount: Money{Cents: -500}})
	if got := Balance(txs); got.Cents != 2000 {
		t.Fatalf("balance = %d, want 2000", got.Cents)
	}
}

func TestSortTransactionsNewestFirst(t *testing.T) {
	now := time.Now()
	older := Transaction{ID: uuid.New(), CreatedAt: now.Add(-time.Hour)}
	newer := Transaction{ID: uuid.New(), CreatedAt: now}

	txs := []Transaction{older, newer}
	SortTransactions(txs)

	if txs[0].ID != newer.ID {
		t.Fatalf("expected newest transaction first")
	}
}

func TestSortTransactionsTieBreakByID(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	a := Transaction{ID: uuid.MustParse("00000000-0000-0000-0000-000000000001"), CreatedAt: ts}
	b := Transaction{ID: uuid.MustParse("00000000-0000-0000-0000-000000000002"), CreatedAt: ts}

	for _, txs := range [][]Transaction{{a, b}, {b, a}} {
		SortTransactions(txs)
		if txs[0].ID != a.ID || txs[1].ID != b.ID {
			t.Fatalf("equal timestamps must sort ascending by id, got %v then %v", txs[0].ID, txs[1].ID)
		}
	}
}

func TestSortKidsByName(t *testing.T) {
	kids := []Kid{
		{ID: uuid.New(), Name: "Jack"},
		{ID: uuid.New(), Name: "Emma"},
	}
	SortKids(kids)
	if kids[0].Name != "Emma" || kids[1].Name != "Jack" {
		t.Fatalf("expected kids sorted by name, got %v", []string{kids[0].Name, kids[1].Name})
	}
}

func TestDisplayColorFallback(t *testing.T) {
	if got := (Kid{}).DisplayColor(); got != DefaultColorHex {
		t.Fatalf("DisplayColor = %q, want %q", got, DefaultColorHex)
	}
	if got := (Kid{ColorHex: "4ECDC4"}).DisplayColor(); got != "4ECDC4" {
		t.Fatalf("DisplayColor = %q, want 4ECDC4", got)
	}
}
