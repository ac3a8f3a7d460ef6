package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mmynk/ajo/internal/events"
)

const recordColumns = "group_id, seq, id, type, timestamp, payload, hash, prev_hash, chain_hash"

// AppendRecord inserts a journal record.
func (r *queries) AppendRecord(ctx context.Context, rec events.Record) error {
	_, err := r.q.ExecContext(ctx,
		"INSERT INTO events ("+recordColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		rec.GroupID, rec.Seq, rec.ID, string(rec.Type), rec.Timestamp, rec.Payload,
		rec.Hash, rec.PrevHash, rec.ChainHash,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// LastRecord retrieves the newest record of a group.
func (r *queries) LastRecord(ctx context.Context, groupID uint64) (events.Record, bool, error) {
	row := r.q.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM events WHERE group_id = ? ORDER BY seq DESC LIMIT 1",
		groupID,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return events.Record{}, false, nil
	}
	if err != nil {
		return events.Record{}, false, fmt.Errorf("failed to get last event: %w", err)
	}
	return rec, true, nil
}

// ListRecords retrieves records after afterSeq in sequence order.
func (r *queries) ListRecords(ctx context.Context, groupID uint64, afterSeq uint64, limit int) ([]events.Record, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := r.q.QueryContext(ctx,
		"SELECT "+recordColumns+" FROM events WHERE group_id = ? AND seq > ? ORDER BY seq LIMIT ?",
		groupID, afterSeq, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer rows.Close()

	var recs []events.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return recs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (events.Record, error) {
	var (
		rec events.Record
		typ string
	)
	err := s.Scan(&rec.GroupID, &rec.Seq, &rec.ID, &typ, &rec.Timestamp, &rec.Payload,
		&rec.Hash, &rec.PrevHash, &rec.ChainHash)
	if err != nil {
		return events.Record{}, err
	}
	rec.Type = events.Type(typ)
	return rec, nil
}
