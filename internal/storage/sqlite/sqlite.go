// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/mmynk/ajo/internal/models"
	"github.com/mmynk/ajo/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serializes writers, which is the ledger's transaction model.
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Atomic runs fn inside one SQL transaction.
func (s *SQLiteStore) Atomic(ctx context.Context, fn func(tx storage.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&queries{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// View runs fn inside a transaction that is always rolled back.
func (s *SQLiteStore) View(ctx context.Context, fn func(r storage.Reader) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	return fn(&queries{q: tx})
}

// queries implements storage.Tx over a querier.
type queries struct {
	q querier
}

var _ storage.Tx = (*queries)(nil)

// NextGroupID increments the group counter and returns the new value.
func (r *queries) NextGroupID(ctx context.Context) (uint64, error) {
	var next uint64
	err := r.q.QueryRowContext(ctx,
		`INSERT INTO counters (name, value) VALUES ('group_id', 1)
		 ON CONFLICT(name) DO UPDATE SET value = value + 1
		 RETURNING value`,
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate group id: %w", err)
	}
	return next, nil
}

// CreateGroup inserts the group row and its members.
func (r *queries) CreateGroup(ctx context.Context, g *models.Group) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO groups (id, creator, contribution_amount, cycle_length, max_members,
		 current_cycle, cycle_start_time, payout_index, created_at, is_complete, is_cancelled)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.Creator, g.ContributionAmount, g.CycleLength, g.MaxMembers,
		g.CurrentCycle, g.CycleStartTime, g.PayoutIndex, g.CreatedAt, g.IsComplete, g.IsCancelled,
	)
	if err != nil {
		return fmt.Errorf("failed to insert group: %w", err)
	}

	return r.insertMembers(ctx, g.ID, 0, g.Members)
}

// UpdateGroup writes the mutable columns and appends new members.
func (r *queries) UpdateGroup(ctx context.Context, g *models.Group) error {
	result, err := r.q.ExecContext(ctx,
		`UPDATE groups SET current_cycle = ?, cycle_start_time = ?, payout_index = ?,
		 is_complete = ?, is_cancelled = ? WHERE id = ?`,
		g.CurrentCycle, g.CycleStartTime, g.PayoutIndex, g.IsComplete, g.IsCancelled, g.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return models.ErrGroupNotFound
	}

	var stored int
	if err := r.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM group_members WHERE group_id = ?", g.ID,
	).Scan(&stored); err != nil {
		return fmt.Errorf("failed to count members: %w", err)
	}
	if stored > len(g.Members) {
		return fmt.Errorf("group %d: members cannot shrink from %d to %d", g.ID, stored, len(g.Members))
	}

	return r.insertMembers(ctx, g.ID, stored, g.Members[stored:])
}

func (r *queries) insertMembers(ctx context.Context, groupID uint64, offset int, members []string) error {
	for i, m := range members {
		_, err := r.q.ExecContext(ctx,
			"INSERT INTO group_members (group_id, position, member) VALUES (?, ?, ?)",
			groupID, offset+i, m,
		)
		if err != nil {
			return fmt.Errorf("failed to insert member: %w", err)
		}
	}
	return nil
}

// GetGroup retrieves a group with its members in join order.
func (r *queries) GetGroup(ctx context.Context, groupID uint64) (*models.Group, error) {
	g := &models.Group{}
	err := r.q.QueryRowContext(ctx,
		`SELECT id, creator, contribution_amount, cycle_length, max_members, current_cycle,
		 cycle_start_time, payout_index, created_at, is_complete, is_cancelled
		 FROM groups WHERE id = ?`,
		groupID,
	).Scan(&g.ID, &g.Creator, &g.ContributionAmount, &g.CycleLength, &g.MaxMembers, &g.CurrentCycle,
		&g.CycleStartTime, &g.PayoutIndex, &g.CreatedAt, &g.IsComplete, &g.IsCancelled)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrGroupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	rows, err := r.q.QueryContext(ctx,
		"SELECT member FROM group_members WHERE group_id = ? ORDER BY position",
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var member string
		if err := rows.Scan(&member); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		g.Members = append(g.Members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}

	return g, nil
}

// ListGroupIDs returns all group IDs in ascending order.
func (r *queries) ListGroupIDs(ctx context.Context) ([]uint64, error) {
	rows, err := r.q.QueryContext(ctx, "SELECT id FROM groups ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan group id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate groups: %w", err)
	}
	return ids, nil
}

// GetMetadata retrieves a group's metadata, or nil if none was set.
func (r *queries) GetMetadata(ctx context.Context, groupID uint64) (*models.GroupMetadata, error) {
	m := &models.GroupMetadata{}
	err := r.q.QueryRowContext(ctx,
		"SELECT group_id, name, description, rules, updated_at FROM group_metadata WHERE group_id = ?",
		groupID,
	).Scan(&m.GroupID, &m.Name, &m.Description, &m.Rules, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata: %w", err)
	}
	return m, nil
}

// PutMetadata upserts a group's metadata.
func (r *queries) PutMetadata(ctx context.Context, m models.GroupMetadata) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO group_metadata (group_id, name, description, rules, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(group_id) DO UPDATE SET
		   name = excluded.name, description = excluded.description,
		   rules = excluded.rules, updated_at = excluded.updated_at`,
		m.GroupID, m.Name, m.Description, m.Rules, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to put metadata: %w", err)
	}
	return nil
}
