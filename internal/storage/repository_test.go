package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"munnies/internal/core"
)

func newTestRepo(t *testing.T, scope core.Scope) *Repository {
	t.Helper()
	repo, err := NewRepository(filepath.Join(t.TempDir(), string(scope)+".db"), scope)
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestKidLifecycle(t *testing.T) {
	repo := newTestRepo(t, core.ScopePrivate)
	ctx := context.Background()

	kid := core.Kid{
		ID:          uuid.New(),
		Name:        "Emma",
		AvatarEmoji: "👧",
		ColorHex:    "FF6B6B",
		CreatedAt:   time.Now().UTC(),
	}
	if err := repo.CreateKid(ctx, kid); err != nil {
		t.Fatalf("create kid: %v", err)
	}

	got, err := repo.GetKid(ctx, kid.ID)
	if err != nil {
		t.Fatalf("get kid: %v", err)
	}
	if got.Name != "Emma" || got.Scope != core.ScopePrivate {
		t.Fatalf("got %+v, want name Emma scope private", got)
	}

	if err := repo.UpdateKid(ctx, kid.ID, "Emma Rose", "🌹", "4ECDC4"); err != nil {
		t.Fatalf("update kid: %v", err)
	}
	got, err = repo.GetKid(ctx, kid.ID)
	if err != nil {
		t.Fatalf("get kid after update: %v", err)
	}
	if got.Name != "Emma Rose" || got.AvatarEmoji != "🌹" {
		t.Fatalf("update not applied: %+v", got)
	}

	if err := repo.DeleteKid(ctx, kid.ID); err != nil {
		t.Fatalf("delete kid: %v", err)
	}
	if _, err := repo.GetKid(ctx, kid.ID); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestListKidsOrderedByName(t *testing.T) {
	repo := newTestRepo(t, core.ScopePrivate)
	ctx := context.Background()

	for _, name := range []string{"Jack", "Emma", "Ada"} {
		kid := core.Kid{ID: uuid.New(), Name: name, CreatedAt: time.Now()}
		if err := repo.CreateKid(ctx, kid); err != nil {
			t.Fatalf("create kid %s: %v", name, err)
		}
	}

	kids, err := repo.ListKids(ctx)
	if err != nil {
		t.Fatalf("list kids: %v", err)
	}
	want := []string{"Ada", "Emma", "Jack"}
	if len(kids) != len(want) {
		t.Fatalf("got %d kids, want %d", len(kids), len(want))
	}
	for i, name := range want {
		if kids[i].Name != name {
			t.Fatalf("position %d: got %q, want %q", i, kids[i].Name, name)
		}
	}
}

// Covers the add/spend/delete scenario end to end: balances track the sum
// of movements and deleting the kid leaves no orphaned transactions.
func TestBalanceAndCascadeDelete(t *testing.T) {
	repo := newTestRepo(t, core.ScopePrivate)
	ctx := context.Background()

	kid := core.Kid{ID: uuid.New(), Name: "Emma", CreatedAt: time.Now()}
	if err := repo.CreateKid(ctx, kid); err != nil {
		t.Fatalf("create kid: %v", err)
	}

	b, err := repo.Balance(ctx, kid.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if b.Cents != 0 {
		t.Fatalf("fresh balance = %d, want 0", b.Cents)
	}

	credit := core.Transaction{
		ID: uuid.New(), KidID: kid.ID,
		Amount: core.Money{Cents: 2500}, Note: "Birthday money from Grandma",
		CreatedAt: time.Now(),
	}
	debit := core.Transaction{
		ID: uuid.New(), KidID: kid.ID,
		Amount: core.Money{Cents: -500}, Note: "Ice cream",
		CreatedAt: time.Now(),
	}
	for _, tx := range []core.Transaction{credit, debit} {
		if err := repo.CreateTransaction(ctx, tx); err != nil {
			t.Fatalf("create transaction: %v", err)
		}
	}

	if b, err = repo.Balance(ctx, kid.ID); err != nil || b.Cents != 2000 {
		t.Fatalf("balance = %d (err %v), want 2000", b.Cents, err)
	}

	if err := repo.DeleteKid(ctx, kid.ID); err != nil {
		t.Fatalf("delete kid: %v", err)
	}
	txs, err := repo.ListTransactionsByKid(ctx, kid.ID)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(txs) != 0 {
		t.Fatalf("expected no transactions after cascade delete, got %d", len(txs))
	}
	kids, err := repo.ListKids(ctx)
	if err != nil {
		t.Fatalf("list kids: %v", err)
	}
	if len(kids) != 0 {
		t.Fatalf("expected no kids after delete, got %d", len(kids))
	}
}

func TestTransactionOrdering(t *testing.T) {
	repo := newTestRepo(t, core.ScopePrivate)
	ctx := context.Background()

	kid := core.Kid{ID: uuid.New(), Name: "Jack", CreatedAt: time.Now()}
	if err := repo.CreateKid(ctx, kid); err != nil {
		t.Fatalf("create kid: %v", err)
	}

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	oldTx := core.Transaction{ID: uuid.New(), KidID: kid.ID, Amount: core.Money{Cents: 100}, CreatedAt: base.Add(-time.Hour)}
	newTx := core.Transaction{ID: uuid.New(), KidID: kid.ID, Amount: core.Money{Cents: 200}, CreatedAt: base}
	// Two transactions at the exact same instant: tie broken by id.
	tieA := core.Transaction{ID: uuid.MustParse("00000000-0000-0000-0000-00000000000a"), KidID: kid.ID, Amount: core.Money{Cents: 300}, CreatedAt: base.Add(time.Hour)}
	tieB := core.Transaction{ID: uuid.MustParse("00000000-0000-0000-0000-00000000000b"), KidID: kid.ID, Amount: core.Money{Cents: 400}, CreatedAt: base.Add(time.Hour)}

	for _, tx := range []core.Transaction{tieB, oldTx, newTx, tieA} {
		if err := repo.CreateTransaction(ctx, tx); err != nil {
			t.Fatalf("create transaction: %v", err)
		}
	}

	txs, err := repo.ListTransactionsByKid(ctx, kid.ID)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	wantOrder := []uuid.UUID{tieA.ID, tieB.ID, newTx.ID, oldTx.ID}
	if len(txs) != len(wantOrder) {
		t.Fatalf("got %d transactions, want %d", len(txs), len(wantOrder))
	}
	for i, id := range wantOrder {
		if txs[i].ID != id {
			t.Fatalf("position %d: got %v, want %v", i, txs[i].ID, id)
		}
	}
}

func TestZeroAmountRejected(t *testing.T) {
	repo := newTestRepo(t, core.ScopePrivate)
	ctx := context.Background()

	kid := core.Kid{ID: uuid.New(), Name: "Emma", CreatedAt: time.Now()}
	if err := repo.CreateKid(ctx, kid); err != nil {
		t.Fatalf("create kid: %v", err)
	}
	tx := core.Transaction{ID: uuid.New(), KidID: kid.ID, Amount: core.Money{}, CreatedAt: time.Now()}
	if err := repo.CreateTransaction(ctx, tx); err != core.ErrZeroAmount {
		t.Fatalf("expected ErrZeroAmount, got %v", err)
	}
}

func TestSettingsLazilyCreated(t *testing.T) {
	repo := newTestRepo(t, core.ScopePrivate)
	ctx := context.Background()

	s, err := repo.GetSettings(ctx)
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if s.CurrencyCode != "USD" {
		t.Fatalf("default currency = %q, want USD", s.CurrencyCode)
	}

	s.CurrencyCode = "EUR"
	s.HasCompletedOnboarding = true
	if err := repo.SaveSettings(ctx, s); err != nil {
		t.Fatalf("save settings: %v", err)
	}

	s, err = repo.GetSettings(ctx)
	if err != nil {
		t.Fatalf("get settings again: %v", err)
	}
	if s.CurrencyCode != "EUR" || !s.HasCompletedOnboarding {
		t.Fatalf("settings not persisted: %+v", s)
	}

	// Second write updates in place.
	s.CurrencyCode = "GBP"
	if err := repo.SaveSettings(ctx, s); err != nil {
		t.Fatalf("update settings: %v", err)
	}
	if s, _ = repo.GetSettings(ctx); s.CurrencyCode != "GBP" {
		t.Fatalf("settings not updated: %+v", s)
	}
}

func TestChangeLogCheckpoint(t *testing.T) {
	repo := newTestRepo(t, core.ScopeShared)
	ctx := context.Background()

	seq, err := repo.Checkpoint(ctx)
	if err != nil {
		t.Fatalf("checkpoint: %v", err)
	}
	if seq != 0 {
		t.Fatalf("fresh checkpoint = %d, want 0", seq)
	}

	if err := repo.AppendChange(ctx, EntityKid, uuid.NewString()); err != nil {
		t.Fatalf("append change: %v", err)
	}
	if err := repo.AppendChange(ctx, EntityTransaction, uuid.NewString()); err != nil {
		t.Fatalf("append change: %v", err)
	}

	changes, err := repo.ChangesAfter(ctx, 0)
	if err != nil {
		t.Fatalf("changes after: %v", err)
	}
	if len(changes) != 2 {
		t.Fatalf("got %d changes, want 2", len(changes))
	}

	last := changes[len(changes)-1].Seq
	if err := repo.SetCheckpoint(ctx, last); err != nil {
		t.Fatalf("set checkpoint: %v", err)
	}
	changes, err = repo.ChangesAfter(ctx, last)
	if err != nil {
		t.Fatalf("changes after checkpoint: %v", err)
	}
	if len(changes) != 0 {
		t.Fatalf("expected no unprocessed changes, got %d", len(changes))
	}

	if seq, err = repo.Checkpoint(ctx); err != nil || seq != last {
		t.Fatalf("checkpoint = %d (err %v), want %d", seq, err, last)
	}
}
