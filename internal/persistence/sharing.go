package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"munnies/internal/cloud"
	"munnies/internal/core"
	"munnies/internal/events"
)

// ShareStatus describes whether a kid is shared, who owns it, and how many
// people participate.
type ShareStatus struct {
	IsShared         bool
	IsOwner          bool
	ParticipantCount int
	OwnerName        string
	Grant            *cloud.ShareGrant
}

// ShareStatus resolves the sharing state of one kid.
//
// Lookup failures are swallowed and reported as "not shared, owned by me".
// That favors showing data as editable private content over blocking the
// UI on a transient error; a participant may briefly see inaccurate
// ownership state. Kept deliberately.
func (m *Manager) ShareStatus(ctx context.Context, kid core.Kid) ShareStatus {
	owned := ShareStatus{IsShared: false, IsOwner: true}

	grant, err := m.cloud.ShareFor(ctx, kid.ID)
	if err != nil && !errors.Is(err, cloud.ErrShareNotFound) {
		slog.DebugContext(ctx, "Share status lookup failed, defaulting to owned",
			"kid_id", kid.ID, "error", err)
		return owned
	}

	if grant != nil {
		current := grant.ParticipantFor(m.cloud.CurrentUserID())
		return ShareStatus{
			IsShared:         true,
			IsOwner:          current != nil && current.Role == cloud.RoleOwner,
			ParticipantCount: grant.ParticipantCount(),
			OwnerName:        grant.Owner.Name,
			Grant:            grant,
		}
	}

	// No grant attached to the record itself, but the record lives in the
	// shared partition: we are a participant viewing another owner's
	// share. Resolve the grant through the partition's associated shares,
	// matching on the record it covers. An unmatched grant is never used:
	// reporting an unrelated owner would be worse than reporting unknown.
	if m.IsShared(kid) {
		grants, err := m.cloud.SharesInScope(ctx, core.ScopeShared)
		if err == nil {
			for _, g := range grants {
				if g.RecordID != kid.ID {
					continue
				}
				return ShareStatus{
					IsShared:         true,
					IsOwner:          false,
					ParticipantCount: g.ParticipantCount(),
					OwnerName:        g.Owner.Name,
					Grant:            g,
				}
			}
		}
		return ShareStatus{IsShared: true, IsOwner: false}
	}

	return owned
}

// CanEdit reports whether the current actor may modify the kid: a grant
// participant with read-write permission or the owner role may, and
// otherwise only records in the private partition are editable.
func (m *Manager) CanEdit(ctx context.Context, kid core.Kid) bool {
	grant, err := m.cloud.ShareFor(ctx, kid.ID)
	if err == nil && grant != nil {
		if p := grant.ParticipantFor(m.cloud.CurrentUserID()); p != nil {
			return p.Permission == cloud.PermissionReadWrite || p.Role == cloud.RoleOwner
		}
	}
	return !m.IsShared(kid)
}

// ShareKid creates a share grant scoped to exactly this kid, or returns
// the existing grant when one is already attached. Idempotent.
func (m *Manager) ShareKid(ctx context.Context, kid core.Kid) (*cloud.ShareGrant, error) {
	grant, err := m.cloud.ShareFor(ctx, kid.ID)
	if err != nil && !errors.Is(err, cloud.ErrShareNotFound) {
		return nil, fmt.Errorf("look up existing share: %w", err)
	}
	if grant != nil {
		return grant, nil
	}

	title := fmt.Sprintf("%s's Ledger", kid.Name)
	grant, err = m.cloud.CreateShare(ctx, kid.ID, title)
	if err != nil {
		return nil, fmt.Errorf("create share: %w", err)
	}

	slog.InfoContext(ctx, "Share created",
		"kid_id", kid.ID,
		"share_id", grant.ID,
		"title", title)
	return grant, nil
}

// StopSharing deletes the kid's grant from the backend's private database.
// Owner only; destructive and not reversed automatically. No-op when no
// grant exists.
func (m *Manager) StopSharing(ctx context.Context, kid core.Kid) error {
	grant, err := m.cloud.ShareFor(ctx, kid.ID)
	if errors.Is(err, cloud.ErrShareNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("look up share: %w", err)
	}

	if err := m.cloud.DeleteShare(ctx, grant.ID); err != nil {
		return fmt.Errorf("stop sharing: %w", err)
	}

	slog.InfoContext(ctx, "Share deleted", "kid_id", kid.ID, "share_id", grant.ID)
	return nil
}

// LeaveShare removes the current participant's access to a shared kid by
// deleting the grant's zone from the backend's shared database. No-op when
// the current actor owns the grant or no grant can be resolved.
func (m *Manager) LeaveShare(ctx context.Context, kid core.Kid) error {
	status := m.ShareStatus(ctx, kid)
	if status.Grant == nil || status.IsOwner {
		return nil
	}

	if err := m.cloud.LeaveShare(ctx, status.Grant.ZoneID); err != nil {
		return fmt.Errorf("leave share: %w", err)
	}

	slog.InfoContext(ctx, "Left share",
		"kid_id", kid.ID,
		"zone_id", status.Grant.ZoneID)
	return nil
}

// AcceptShare accepts a sharing invitation handed to the application by
// the backend. Both partitions must be loaded first; the bounded wait
// keeps an early invitation from hanging forever. Outcomes are broadcast
// on the bus so the UI can refresh or surface the failure.
func (m *Manager) AcceptShare(ctx context.Context, metadata cloud.ShareMetadata, timeout time.Duration) error {
	if err := m.WaitForStores(ctx, timeout); err != nil {
		msg := fmt.Sprintf("could not accept invitation: %v", err)
		m.announceShareFailure(msg)
		return errors.New(msg)
	}

	if err := m.cloud.AcceptShare(ctx, metadata); err != nil {
		msg := fmt.Sprintf("could not accept invitation: %v", err)
		m.announceShareFailure(msg)
		return errors.New(msg)
	}

	slog.InfoContext(ctx, "Share accepted", "share_id", metadata.ShareID)
	if m.bus != nil {
		m.bus.Publish(events.Signal{Kind: events.KindShareAccepted})
		m.bus.Publish(events.Signal{
			Kind:                events.KindRemoteChange,
			KidsChanged:         true,
			TransactionsChanged: true,
		})
	}
	return nil
}

func (m *Manager) announceShareFailure(msg string) {
	slog.Error("Share acceptance failed", "reason", msg)
	if m.bus != nil {
		m.bus.Publish(events.Signal{Kind: events.KindShareAcceptFailed, Message: msg})
	}
}

// CurrentUserName is the acting user's display name, recorded as the
// creator on new transactions.
func (m *Manager) CurrentUserName() string {
	return m.cloud.CurrentUserName()
}

// AccountStatus surfaces the cloud account state for the settings screen.
func (m *Manager) AccountStatus(ctx context.Context) cloud.AccountStatus {
	status, err := m.cloud.AccountStatus(ctx)
	if err != nil {
		return cloud.AccountStatus{
			Available: false,
			Reason:    fmt.Sprintf("error checking account status: %v", err),
		}
	}
	return status
}
