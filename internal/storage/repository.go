// Package storage implements the record store over SQLite. One Repository
// owns one partition database; the private and shared partitions run the
// same schema and differ only in the Scope they tag fetched records with.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"munnies/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a record does not exist in this partition.
var ErrNotFound = errors.New("record not found")

// ChangeRecord is one processed entry of the partition's change log.
type ChangeRecord struct {
	Seq        int64
	Entity     string
	RecordID   string
	RecordedAt time.Time
}

// Entity names used in the change log.
const (
	EntityKid         = "Kid"
	EntityTransaction = "Transaction"
)

type Repository struct {
	db    *sql.DB
	scope core.Scope
}

// NewRepository opens (creating if needed) the partition database at dbPath
// and runs migrations. Foreign keys are enabled so deleting a kid cascades
// to its transactions.
func NewRepository(dbPath string, scope core.Scope) (*Repository, error) {
	if !scope.Valid() {
		return nil, fmt.Errorf("invalid scope %q", scope)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db, scope: scope}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Scope reports which partition this repository backs.
func (r *Repository) Scope() core.Scope {
	return r.scope
}

// --- Kids ---

func (r *Repository) CreateKid(ctx context.Context, k core.Kid) error {
	if err := k.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO kids (id, name, avatar_emoji, color_hex, created_at) VALUES (?, ?, ?, ?, ?)`,
		k.ID.String(), k.Name, k.AvatarEmoji, k.ColorHex, k.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("create kid: %w", err)
	}

	slog.InfoContext(ctx, "Kid saved",
		"id", k.ID,
		"name", k.Name,
		"scope", r.scope)
	return nil
}

func (r *Repository) GetKid(ctx context.Context, id uuid.UUID) (core.Kid, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, avatar_emoji, color_hex, created_at FROM kids WHERE id = ?`,
		id.String())
	k, err := r.scanKid(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Kid{}, ErrNotFound
	}
	if err != nil {
		return core.Kid{}, fmt.Errorf("get kid: %w", err)
	}
	return k, nil
}

// UpdateKid mutates the only editable fields: name, avatar and color.
func (r *Repository) UpdateKid(ctx context.Context, id uuid.UUID, name, avatarEmoji, colorHex string) error {
	probe := core.Kid{ID: id, Name: name}
	if err := probe.Validate(); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE kids SET name = ?, avatar_emoji = ?, color_hex = ? WHERE id = ?`,
		name, avatarEmoji, colorHex, id.String())
	if err != nil {
		return fmt.Errorf("update kid: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteKid removes a kid and, via the cascade, all of its transactions.
func (r *Repository) DeleteKid(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM kids WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete kid: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	slog.InfoContext(ctx, "Kid deleted", "id", id, "scope", r.scope)
	return nil
}

// ListKids returns every kid in this partition, ascending by name, each
// tagged with the partition's scope.
func (r *Repository) ListKids(ctx context.Context) ([]core.Kid, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, avatar_emoji, color_hex, created_at FROM kids ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list kids: %w", err)
	}
	defer rows.Close()

	var kids []core.Kid
	for rows.Next() {
		k, err := r.scanKid(rows)
		if err != nil {
			return nil, fmt.Errorf("scan kid: %w", err)
		}
		kids = append(kids, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list kids: %w", err)
	}
	return kids, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *Repository) scanKid(row rowScanner) (core.Kid, error) {
	var (
		k         core.Kid
		id        string
		createdAt int64
	)
	if err := row.Scan(&id, &k.Name, &k.AvatarEmoji, &k.ColorHex, &createdAt); err != nil {
		return core.Kid{}, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return core.Kid{}, fmt.Errorf("parse kid id %q: %w", id, err)
	}
	k.ID = parsed
	k.CreatedAt = time.Unix(0, createdAt).UTC()
	k.Scope = r.scope
	return k, nil
}

// --- Transactions ---

func (r *Repository) CreateTransaction(ctx context.Context, t core.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (id, kid_id, amount_cents, note, created_by, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID.String(), t.KidID.String(), t.Amount.Cents, t.Note, t.CreatedBy, t.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", t.ID,
		"kid_id", t.KidID,
		"amount_cents", t.Amount.Cents,
		"scope", r.scope)
	return nil
}

func (r *Repository) DeleteTransaction(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListTransactionsByKid returns a kid's transactions newest first; equal
// timestamps order ascending by id so the listing is stable.
func (r *Repository) ListTransactionsByKid(ctx context.Context, kidID uuid.UUID) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, kid_id, amount_cents, note, created_by, created_at
		 FROM transactions WHERE kid_id = ?
		 ORDER BY created_at DESC, id ASC`,
		kidID.String())
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			t         core.Transaction
			id        string
			kid       string
			createdAt int64
		)
		if err := rows.Scan(&id, &kid, &t.Amount.Cents, &t.Note, &t.CreatedBy, &createdAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if t.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse transaction id %q: %w", id, err)
		}
		if t.KidID, err = uuid.Parse(kid); err != nil {
			return nil, fmt.Errorf("parse kid id %q: %w", kid, err)
		}
		t.CreatedAt = time.Unix(0, createdAt).UTC()
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return out, nil
}

// Balance sums the signed amounts of a kid's transactions. A kid with no
// transactions has a zero balance.
func (r *Repository) Balance(ctx context.Context, kidID uuid.UUID) (core.Money, error) {
	var cents sql.NullInt64
	err := r.db.QueryRowContext(ctx,
		`SELECT SUM(amount_cents) FROM transactions WHERE kid_id = ?`,
		kidID.String()).Scan(&cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("balance: %w", err)
	}
	return core.Money{Cents: cents.Int64}, nil
}

// --- Settings ---

// GetSettings returns the settings row, or defaults when it was never
// written.
func (r *Repository) GetSettings(ctx context.Context) (core.Settings, error) {
	var (
		s         core.Settings
		onboarded int
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT currency_code, has_completed_onboarding FROM app_settings WHERE id = 1`).
		Scan(&s.CurrencyCode, &onboarded)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Settings{CurrencyCode: "USD"}, nil
	}
	if err != nil {
		return core.Settings{}, fmt.Errorf("get settings: %w", err)
	}
	s.HasCompletedOnboarding = onboarded != 0
	return s, nil
}

// SaveSettings lazily creates the single settings row on first write and
// updates it in place thereafter.
func (r *Repository) SaveSettings(ctx context.Context, s core.Settings) error {
	onboarded := 0
	if s.HasCompletedOnboarding {
		onboarded = 1
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO app_settings (id, currency_code, has_completed_onboarding) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET currency_code = excluded.currency_code,
		                               has_completed_onboarding = excluded.has_completed_onboarding`,
		s.CurrencyCode, onboarded)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// --- Change log / checkpoint ---

// AppendChange records one remote change delivered for this partition.
func (r *Repository) AppendChange(ctx context.Context, entity, recordID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO change_log (entity, record_id, recorded_at) VALUES (?, ?, ?)`,
		entity, recordID, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("append change: %w", err)
	}
	return nil
}

// ChangesAfter returns change-log entries newer than the given sequence.
func (r *Repository) ChangesAfter(ctx context.Context, seq int64) ([]ChangeRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT seq, entity, record_id, recorded_at FROM change_log WHERE seq > ? ORDER BY seq ASC`,
		seq)
	if err != nil {
		return nil, fmt.Errorf("changes after: %w", err)
	}
	defer rows.Close()

	var out []ChangeRecord
	for rows.Next() {
		var (
			c          ChangeRecord
			recordedAt int64
		)
		if err := rows.Scan(&c.Seq, &c.Entity, &c.RecordID, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		c.RecordedAt = time.Unix(0, recordedAt).UTC()
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("changes after: %w", err)
	}
	return out, nil
}

// Checkpoint returns the last processed change-log sequence. It survives
// process restarts so history is never replayed from the beginning.
func (r *Repository) Checkpoint(ctx context.Context) (int64, error) {
	var seq int64
	err := r.db.QueryRowContext(ctx, `SELECT checkpoint FROM sync_state WHERE id = 1`).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get checkpoint: %w", err)
	}
	return seq, nil
}

func (r *Repository) SetCheckpoint(ctx context.Context, seq int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sync_state (id, checkpoint) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET checkpoint = excluded.checkpoint`,
		seq)
	if err != nil {
		return fmt.Errorf("set checkpoint: %w", err)
	}
	return nil
}
