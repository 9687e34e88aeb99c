// Package persistence owns the two storage partitions (private and shared)
// under one logical schema and exposes a unified read view, classifying
// every fetched record by the partition it lives in. It also resolves
// share status and drives the sharing lifecycle against the cloud backend.
package persistence

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"munnies/internal/cloud"
	"munnies/internal/core"
	"munnies/internal/events"
	"munnies/internal/storage"
)

// DefaultStoreLoadTimeout bounds how long callers wait for both partitions
// to finish loading before an operation that needs them gives up.
const DefaultStoreLoadTimeout = 15 * time.Second

const storePollInterval = 100 * time.Millisecond

// Manager loads and owns both partition repositories. Partition loading
// happens in the background; a load failure is recorded per partition and
// never crashes the process.
type Manager struct {
	cloud cloud.Client
	bus   *events.Bus

	mu         sync.Mutex
	partitions map[core.Scope]*storage.Repository
	loadErrs   map[core.Scope]error
	cachedKids map[core.Scope][]core.Kid
}

// NewManager starts loading both partition databases concurrently and
// returns immediately. Use WaitForStores to block until they are ready.
func NewManager(privatePath, sharedPath string, cloudClient cloud.Client, bus *events.Bus) *Manager {
	m := &Manager{
		cloud:      cloudClient,
		bus:        bus,
		partitions: make(map[core.Scope]*storage.Repository),
		loadErrs:   make(map[core.Scope]error),
		cachedKids: make(map[core.Scope][]core.Kid),
	}

	go m.loadPartition(core.ScopePrivate, privatePath)
	go m.loadPartition(core.ScopeShared, sharedPath)

	return m
}

func (m *Manager) loadPartition(scope core.Scope, path string) {
	repo, err := storage.NewRepository(path, scope)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.loadErrs[scope] = err
		slog.Error("Partition load failed", "scope", scope, "path", path, "error", err)
		return
	}
	m.partitions[scope] = repo
	slog.Info("Partition loaded", "scope", scope, "path", path)
}

// StoresLoaded reports whether both partitions finished loading
// successfully.
func (m *Manager) StoresLoaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.partitions[core.ScopePrivate] != nil && m.partitions[core.ScopeShared] != nil
}

// LoadError returns the first partition load failure, if any.
func (m *Manager) LoadError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, scope := range []core.Scope{core.ScopePrivate, core.ScopeShared} {
		if err := m.loadErrs[scope]; err != nil {
			return fmt.Errorf("%s partition: %w", scope, err)
		}
	}
	return nil
}

// WaitForStores polls until both partitions are loaded or the timeout
// elapses. A zero timeout means DefaultStoreLoadTimeout.
func (m *Manager) WaitForStores(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultStoreLoadTimeout
	}
	deadline := time.Now().Add(timeout)

	for {
		if m.StoresLoaded() {
			return nil
		}
		if err := m.LoadError(); err != nil {
			return fmt.Errorf("storage partitions failed to load: %w", err)
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("storage partitions not ready after %s", timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(storePollInterval):
		}
	}
}

// Repository returns the repository backing one partition, or nil while it
// is still loading.
func (m *Manager) Repository(scope core.Scope) *storage.Repository {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.partitions[scope]
}

// FetchAllKids returns the private and shared kid collections, each
// ordered by name and tagged with its partition's scope. An underlying
// fetch failure degrades to an empty collection: callers must tolerate
// silently-empty results on storage error.
func (m *Manager) FetchAllKids(ctx context.Context) (privateKids, sharedKids []core.Kid) {
	return m.fetchScope(ctx, core.ScopePrivate), m.fetchScope(ctx, core.ScopeShared)
}

func (m *Manager) fetchScope(ctx context.Context, scope core.Scope) []core.Kid {
	repo := m.Repository(scope)
	if repo == nil {
		return nil
	}
	kids, err := repo.ListKids(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Fetch kids failed, returning empty collection",
			"scope", scope, "error", err)
		return nil
	}
	return kids
}

// IsShared reports whether a record lives in the shared partition.
func (m *Manager) IsShared(kid core.Kid) bool {
	return kid.Scope == core.ScopeShared
}

// Refresh rebuilds the in-memory kid collections wholesale. The cache is
// never patched incrementally, which keeps concurrent remote merges from
// producing partial views.
func (m *Manager) Refresh(ctx context.Context) {
	privateKids, sharedKids := m.FetchAllKids(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.cachedKids[core.ScopePrivate] = privateKids
	m.cachedKids[core.ScopeShared] = sharedKids
}

// Kids returns the cached partitioned collections from the last Refresh.
func (m *Manager) Kids() (privateKids, sharedKids []core.Kid) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.Kid(nil), m.cachedKids[core.ScopePrivate]...),
		append([]core.Kid(nil), m.cachedKids[core.ScopeShared]...)
}

// FindKid looks a kid up across both partitions.
func (m *Manager) FindKid(ctx context.Context, id uuid.UUID) (core.Kid, error) {
	for _, scope := range []core.Scope{core.ScopePrivate, core.ScopeShared} {
		repo := m.Repository(scope)
		if repo == nil {
			continue
		}
		kid, err := repo.GetKid(ctx, id)
		if err == nil {
			return kid, nil
		}
		if err != storage.ErrNotFound {
			return core.Kid{}, err
		}
	}
	return core.Kid{}, storage.ErrNotFound
}

// --- Writes (routed by scope, announced on the bus) ---

func (m *Manager) repoFor(scope core.Scope) (*storage.Repository, error) {
	repo := m.Repository(scope)
	if repo == nil {
		return nil, fmt.Errorf("%s partition not loaded", scope)
	}
	return repo, nil
}

// CreateKid stores a new kid in the private partition. New ledgers always
// start private; they move to the shared partition only through sharing.
func (m *Manager) CreateKid(ctx context.Context, kid core.Kid) error {
	repo, err := m.repoFor(core.ScopePrivate)
	if err != nil {
		return err
	}
	if err := repo.CreateKid(ctx, kid); err != nil {
		return err
	}
	m.announceSave()
	return nil
}

func (m *Manager) UpdateKid(ctx context.Context, kid core.Kid, name, avatarEmoji, colorHex string) error {
	repo, err := m.repoFor(kid.Scope)
	if err != nil {
		return err
	}
	if err := repo.UpdateKid(ctx, kid.ID, name, avatarEmoji, colorHex); err != nil {
		return err
	}
	m.announceSave()
	return nil
}

// DeleteKid removes the kid and, via the storage cascade, every one of its
// transactions.
func (m *Manager) DeleteKid(ctx context.Context, kid core.Kid) error {
	repo, err := m.repoFor(kid.Scope)
	if err != nil {
		return err
	}
	if err := repo.DeleteKid(ctx, kid.ID); err != nil {
		return err
	}
	m.announceSave()
	return nil
}

func (m *Manager) AddTransaction(ctx context.Context, kid core.Kid, tx core.Transaction) error {
	repo, err := m.repoFor(kid.Scope)
	if err != nil {
		return err
	}
	if err := repo.CreateTransaction(ctx, tx); err != nil {
		return err
	}
	m.announceSave()
	return nil
}

func (m *Manager) DeleteTransaction(ctx context.Context, kid core.Kid, id uuid.UUID) error {
	repo, err := m.repoFor(kid.Scope)
	if err != nil {
		return err
	}
	if err := repo.DeleteTransaction(ctx, id); err != nil {
		return err
	}
	m.announceSave()
	return nil
}

// Transactions returns the kid's movements newest first along with the
// derived balance.
func (m *Manager) Transactions(ctx context.Context, kid core.Kid) ([]core.Transaction, core.Money, error) {
	repo, err := m.repoFor(kid.Scope)
	if err != nil {
		return nil, core.Money{}, err
	}
	txs, err := repo.ListTransactionsByKid(ctx, kid.ID)
	if err != nil {
		return nil, core.Money{}, err
	}
	balance, err := repo.Balance(ctx, kid.ID)
	if err != nil {
		return nil, core.Money{}, err
	}
	return txs, balance, nil
}

func (m *Manager) announceSave() {
	if m.bus != nil {
		m.bus.Publish(events.Signal{Kind: events.KindLocalSave})
	}
}

// Close releases both partitions.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var firstErr error
	for scope, repo := range m.partitions {
		if err := repo.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close %s partition: %w", scope, err)
		}
		delete(m.partitions, scope)
	}
	return firstErr
}
