package core

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// ScopePrivate tags records living in the caller's own partition.
	ScopePrivate Scope = "private"
	// ScopeShared tags records living in the shared partition (ownership
	// transferred via a share grant).
	ScopeShared Scope = "shared"
)

// DefaultColorHex is used when a kid has no display color assigned.
const DefaultColorHex = "007AFF"

type (
	// Scope identifies which storage partition a record was fetched from.
	// It is assigned at fetch time and never persisted.
	Scope string

	// Kid is a named ledger belonging to one child. Balance is always
	// derived from its transactions, never stored.
	Kid struct {
		ID          uuid.UUID
		Name        string
		AvatarEmoji string
		ColorHex    string
		CreatedAt   time.Time
		Scope       Scope
	}

	// Transaction is a single signed monetary event on a kid's ledger.
	// Positive amounts are credits, negative amounts are debits; the sign
	// alone encodes direction. Immutable once created except for deletion.
	Transaction struct {
		ID        uuid.UUID
		KidID     uuid.UUID
		Amount    Money
		Note      string
		CreatedBy string
		CreatedAt time.Time
	}

	// Settings is the single application configuration record. It is
	// lazily created on first write.
	Settings struct {
		CurrencyCode           string
		HasCompletedOnboarding bool
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrZeroAmount    = errors.New("amount must not be zero")
	ErrEmptyName     = errors.New("empty name")
	ErrMissingKid    = errors.New("transaction requires a kid")
)

func (s Scope) Valid() bool {
	return s == ScopePrivate || s == ScopeShared
}

func (k Kid) Validate() error {
	if len(strings.TrimSpace(k.Name)) == 0 {
		return ErrEmptyName
	}
	if len(k.Name) > 100 {
		return errors.New("name too long (max 100 characters)")
	}
	return nil
}

// DisplayColor returns the kid's color, falling back to the default.
func (k Kid) DisplayColor() string {
	if k.ColorHex == "" {
		return DefaultColorHex
	}
	return k.ColorHex
}

func (t Transaction) Validate() error {
	if t.KidID == uuid.Nil {
		return ErrMissingKid
	}
	if t.Amount.Cents == 0 {
		return ErrZeroAmount
	}
	if len(t.Note) > 200 {
		return errors.New("note too long (max 200 characters)")
	}
	return nil
}

// Balance is the sum of the signed amounts of the given transactions.
func Balance(transactions []Transaction) Money {
	var cents int64
	for _, t := range transactions {
		cents += t.Amount.Cents
	}
	return Money{Cents: cents}
}

// SortTransactions orders transactions newest first. Transactions with
// identical timestamps fall back to ascending ID order so the result is
// stable across fetches.
func SortTransactions(transactions []Transaction) {
	sort.SliceStable(transactions, func(i, j int) bool {
		ti, tj := transactions[i], transactions[j]
		if !ti.CreatedAt.Equal(tj.CreatedAt) {
			return ti.CreatedAt.After(tj.CreatedAt)
		}
		return ti.ID.String() < tj.ID.String()
	})
}

// SortKids orders kids ascending by name, then by ID for equal names.
func SortKids(kids []Kid) {
	sort.SliceStable(kids, func(i, j int) bool {
		if kids[i].Name != kids[j].Name {
			return kids[i].Name < kids[j].Name
		}
		return kids[i].ID.String() < kids[j].ID.String()
	})
}
