package relay

import (
	"context"
	"fmt"
	"log/slog"

	"munnies/internal/core"
	"munnies/internal/events"
	"munnies/internal/persistence"
	"munnies/internal/storage"
)

// Processor journals incoming remote-change announcements into the
// affected partition's change log, then inspects the log past the last
// processed checkpoint, classifies what changed and broadcasts a single
// refresh signal. The checkpoint is persisted in the partition itself.
type Processor struct {
	manager *persistence.Manager
	bus     *events.Bus
}

func NewProcessor(manager *persistence.Manager, bus *events.Bus) *Processor {
	return &Processor{manager: manager, bus: bus}
}

// HandleRemoteChange is the AMQP consumer entry point for one message.
func (p *Processor) HandleRemoteChange(ctx context.Context, msg *RemoteChangeMessage) error {
	if !msg.Scope.Valid() {
		return fmt.Errorf("unknown scope %q", msg.Scope)
	}
	repo := p.manager.Repository(msg.Scope)
	if repo == nil {
		return fmt.Errorf("%s partition not loaded", msg.Scope)
	}

	if err := repo.AppendChange(ctx, msg.Entity, msg.RecordID); err != nil {
		return fmt.Errorf("journal remote change: %w", err)
	}

	return p.ProcessHistory(ctx, msg.Scope)
}

// ProcessHistory drains the partition's change log past the checkpoint.
// The checkpoint advances even when only unrecognized entities changed, so
// stale entries are never revisited. A refresh signal goes out only when a
// kid or transaction actually changed.
func (p *Processor) ProcessHistory(ctx context.Context, scope core.Scope) error {
	repo := p.manager.Repository(scope)
	if repo == nil {
		return fmt.Errorf("%s partition not loaded", scope)
	}

	checkpoint, err := repo.Checkpoint(ctx)
	if err != nil {
		return fmt.Errorf("read checkpoint: %w", err)
	}

	changes, err := repo.ChangesAfter(ctx, checkpoint)
	if err != nil {
		return fmt.Errorf("read change history: %w", err)
	}
	if len(changes) == 0 {
		return nil
	}

	var kidsChanged, transactionsChanged bool
	for _, c := range changes {
		switch c.Entity {
		case storage.EntityKid:
			kidsChanged = true
		case storage.EntityTransaction:
			transactionsChanged = true
		default:
			slog.DebugContext(ctx, "Ignoring change for unknown entity",
				"entity", c.Entity, "seq", c.Seq)
		}
	}

	last := changes[len(changes)-1].Seq
	if err := repo.SetCheckpoint(ctx, last); err != nil {
		return fmt.Errorf("advance checkpoint: %w", err)
	}

	slog.InfoContext(ctx, "Processed remote change history",
		"scope", scope,
		"changes", len(changes),
		"checkpoint", last,
		"kids_changed", kidsChanged,
		"transactions_changed", transactionsChanged)

	if kidsChanged || transactionsChanged {
		p.bus.Publish(events.Signal{
			Kind:                events.KindRemoteChange,
			KidsChanged:         kidsChanged,
			TransactionsChanged: transactionsChanged,
		})
	}
	return nil
}
