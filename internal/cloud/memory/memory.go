// Package memory is an in-memory cloud backend used for local deployments
// and tests. It honors the same contract as a real backend: grants live
// here, not in the record store, and acceptance moves access, not data.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"munnies/internal/cloud"
	"munnies/internal/core"
)

// Service is a thread-safe in-memory implementation of cloud.Client.
type Service struct {
	mu        sync.Mutex
	userID    string
	userName  string
	available bool
	shares    map[uuid.UUID]*cloud.ShareGrant // keyed by share ID
	// scopeOf records which partition a grant is visible in for the
	// current actor: owned grants are private, accepted ones shared.
	scopeOf map[uuid.UUID]core.Scope
}

func NewService(userID, userName string) *Service {
	return &Service{
		userID:    userID,
		userName:  userName,
		available: true,
		shares:    make(map[uuid.UUID]*cloud.ShareGrant),
		scopeOf:   make(map[uuid.UUID]core.Scope),
	}
}

// SetAvailable toggles the simulated account status.
func (s *Service) SetAvailable(available bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.available = available
}

func (s *Service) AccountStatus(ctx context.Context) (cloud.AccountStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.available {
		return cloud.AccountStatus{
			Available: false,
			Reason:    "cloud account not available, sign in to enable sharing",
		}, nil
	}
	return cloud.AccountStatus{Available: true}, nil
}

func (s *Service) CurrentUserID() string {
	return s.userID
}

func (s *Service) CurrentUserName() string {
	return s.userName
}

func (s *Service) ShareFor(ctx context.Context, recordID uuid.UUID) (*cloud.ShareGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.shares {
		if g.RecordID == recordID {
			return cloneGrant(g), nil
		}
	}
	return nil, cloud.ErrShareNotFound
}

func (s *Service) SharesInScope(ctx context.Context, scope core.Scope) ([]*cloud.ShareGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*cloud.ShareGrant
	for id, g := range s.shares {
		if s.scopeOf[id] == scope {
			out = append(out, cloneGrant(g))
		}
	}
	return out, nil
}

func (s *Service) CreateShare(ctx context.Context, recordID uuid.UUID, title string) (*cloud.ShareGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.available {
		return nil, cloud.ErrNotSignedIn
	}
	for _, g := range s.shares {
		if g.RecordID == recordID {
			return cloneGrant(g), nil
		}
	}
	g := &cloud.ShareGrant{
		ID:       uuid.New(),
		RecordID: recordID,
		ZoneID:   "zone-" + recordID.String(),
		Title:    title,
		Owner: cloud.Participant{
			UserID:     s.userID,
			Name:       s.userName,
			Role:       cloud.RoleOwner,
			Permission: cloud.PermissionReadWrite,
		},
	}
	s.shares[g.ID] = g
	s.scopeOf[g.ID] = core.ScopePrivate
	return cloneGrant(g), nil
}

func (s *Service) DeleteShare(ctx context.Context, shareID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.shares[shareID]; !ok {
		return cloud.ErrShareNotFound
	}
	delete(s.shares, shareID)
	delete(s.scopeOf, shareID)
	return nil
}

func (s *Service) LeaveShare(ctx context.Context, zoneID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, g := range s.shares {
		if g.ZoneID != zoneID {
			continue
		}
		remaining := g.Participants[:0]
		for _, p := range g.Participants {
			if p.UserID != s.userID {
				remaining = append(remaining, p)
			}
		}
		g.Participants = remaining
		delete(s.scopeOf, id)
		return nil
	}
	return cloud.ErrShareNotFound
}

func (s *Service) AcceptShare(ctx context.Context, metadata cloud.ShareMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.available {
		return cloud.ErrNotSignedIn
	}
	g, ok := s.shares[metadata.ShareID]
	if !ok {
		// Invitation from another actor's private database: register the
		// grant as visible in our shared partition.
		g = &cloud.ShareGrant{
			ID:       metadata.ShareID,
			RecordID: metadata.RecordID,
			ZoneID:   metadata.ZoneID,
			Owner: cloud.Participant{
				UserID:     metadata.OwnerID,
				Role:       cloud.RoleOwner,
				Permission: cloud.PermissionReadWrite,
			},
		}
		s.shares[g.ID] = g
	}
	if g.ParticipantFor(s.userID) == nil {
		g.Participants = append(g.Participants, cloud.Participant{
			UserID:     s.userID,
			Name:       s.userName,
			Role:       cloud.RoleParticipant,
			Permission: cloud.PermissionReadWrite,
		})
	}
	s.scopeOf[g.ID] = core.ScopeShared
	return nil
}

// AddParticipant simulates the owner inviting another user. Used by tests
// and the dev seeding path.
func (s *Service) AddParticipant(shareID uuid.UUID, p cloud.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.shares[shareID]
	if !ok {
		return cloud.ErrShareNotFound
	}
	g.Participants = append(g.Participants, p)
	return nil
}

// RegisterAccepted marks an existing grant as living in the shared
// partition for the current actor, as if a prior invitation was accepted.
func (s *Service) RegisterAccepted(g *cloud.ShareGrant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shares[g.ID] = cloneGrant(g)
	s.scopeOf[g.ID] = core.ScopeShared
}

func cloneGrant(g *cloud.ShareGrant) *cloud.ShareGrant {
	out := *g
	out.Participants = append([]cloud.Participant(nil), g.Participants...)
	return &out
}

var _ cloud.Client = (*Service)(nil)
