// Package cloud defines the boundary to the sync/sharing backend. The
// application never stores share grants itself; they are queried from the
// backend per record. Conflict resolution between concurrent writers is the
// backend's job (field-level, most recent write wins) and is not
// re-implemented here.
package cloud

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"munnies/internal/core"
)

const (
	RoleOwner       Role = "owner"
	RoleParticipant Role = "participant"

	PermissionReadOnly  Permission = "read-only"
	PermissionReadWrite Permission = "read-write"
)

type (
	Role       string
	Permission string

	// AccountStatus reports whether the current actor has a usable cloud
	// account.
	AccountStatus struct {
		Available bool
		Reason    string
	}

	// Participant is one member of a share grant.
	Participant struct {
		UserID     string
		Name       string
		Role       Role
		Permission Permission
	}

	// ShareGrant associates one kid record with an owner and a set of
	// participants. Grants are owned by the backend and referenced here.
	ShareGrant struct {
		ID           uuid.UUID
		RecordID     uuid.UUID
		ZoneID       string
		Title        string
		Owner        Participant
		Participants []Participant
	}

	// ShareMetadata is what the backend hands the application when a
	// sharing invitation is opened.
	ShareMetadata struct {
		ShareID  uuid.UUID
		RecordID uuid.UUID
		ZoneID   string
		OwnerID  string
	}
)

var (
	ErrShareNotFound = errors.New("share not found")
	ErrNotSignedIn   = errors.New("cloud account not available")
)

// Client is the sync/sharing backend surface the application depends on.
// Every call may be network-bound; callers must tolerate arbitrary latency.
type Client interface {
	// AccountStatus reports whether the current actor is signed in.
	AccountStatus(ctx context.Context) (AccountStatus, error)

	// CurrentUserID identifies the current actor within share grants.
	CurrentUserID() string

	// CurrentUserName is the current actor's display name, used for
	// creator attribution on records.
	CurrentUserName() string

	// ShareFor returns the grant attached to the given record, or
	// ErrShareNotFound when the record is not shared.
	ShareFor(ctx context.Context, recordID uuid.UUID) (*ShareGrant, error)

	// SharesInScope enumerates all grants visible in one partition.
	SharesInScope(ctx context.Context, scope core.Scope) ([]*ShareGrant, error)

	// CreateShare issues a new grant scoped to exactly one record.
	CreateShare(ctx context.Context, recordID uuid.UUID, title string) (*ShareGrant, error)

	// DeleteShare removes a grant from the backend's private database.
	// Owner only; destructive and not reversed automatically.
	DeleteShare(ctx context.Context, shareID uuid.UUID) error

	// LeaveShare deletes the zone backing a grant from the backend's
	// shared database, removing the current participant's access.
	LeaveShare(ctx context.Context, zoneID string) error

	// AcceptShare accepts a sharing invitation into the shared partition.
	AcceptShare(ctx context.Context, metadata ShareMetadata) error
}

// Participant lookup by user ID. Returns nil when the user is not part of
// the grant.
func (g *ShareGrant) ParticipantFor(userID string) *Participant {
	if g.Owner.UserID == userID {
		return &g.Owner
	}
	for i := range g.Participants {
		if g.Participants[i].UserID == userID {
			return &g.Participants[i]
		}
	}
	return nil
}

// ParticipantCount counts every member of the grant, owner included.
func (g *ShareGrant) ParticipantCount() int {
	return 1 + len(g.Participants)
}
