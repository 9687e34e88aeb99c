package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"munnies/internal/core"
	"munnies/internal/persistence"
)

// seedSampleData populates an empty private partition with a small family so
// a fresh deployment has something to look at. A non-empty store is left
// untouched.
func seedSampleData(ctx context.Context, manager *persistence.Manager) error {
	existing, _ := manager.FetchAllKids(ctx)
	if len(existing) > 0 {
		slog.InfoContext(ctx, "Skipping sample data, store not empty", "kids", len(existing))
		return nil
	}

	now := time.Now().UTC()
	emma := core.Kid{
		ID:          uuid.New(),
		Name:        "Emma",
		AvatarEmoji: "👧",
		ColorHex:    "FF6B6B",
		CreatedAt:   now,
		Scope:       core.ScopePrivate,
	}
	jack := core.Kid{
		ID:          uuid.New(),
		Name:        "Jack",
		AvatarEmoji: "👦",
		ColorHex:    "4ECDC4",
		CreatedAt:   now,
		Scope:       core.ScopePrivate,
	}

	for _, kid := range []core.Kid{emma, jack} {
		if err := manager.CreateKid(ctx, kid); err != nil {
			return fmt.Errorf("seed kid %s: %w", kid.Name, err)
		}
	}

	samples := []core.Transaction{
		{
			ID:        uuid.New(),
			KidID:     emma.ID,
			Amount:    core.Money{Cents: 2500},
			Note:      "Birthday money from Grandma",
			CreatedAt: now.AddDate(0, 0, -7),
		},
		{
			ID:        uuid.New(),
			KidID:     emma.ID,
			Amount:    core.Money{Cents: -500},
			Note:      "Ice cream",
			CreatedAt: now.AddDate(0, 0, -2),
		},
		{
			ID:        uuid.New(),
			KidID:     jack.ID,
			Amount:    core.Money{Cents: 5000},
			Note:      "Christmas money",
			CreatedAt: now.AddDate(0, 0, -30),
		},
	}
	for _, tx := range samples {
		kid := emma
		if tx.KidID == jack.ID {
			kid = jack
		}
		if err := manager.AddTransaction(ctx, kid, tx); err != nil {
			return fmt.Errorf("seed transaction %q: %w", tx.Note, err)
		}
	}

	slog.InfoContext(ctx, "Sample data seeded", "kids", 2, "transactions", len(samples))
	return nil
}
