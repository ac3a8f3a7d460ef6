package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mmynk/ajo/internal/models"
)

// HasContributed checks for a contribution marker.
func (r *queries) HasContributed(ctx context.Context, groupID uint64, cycle uint32, member string) (bool, error) {
	var exists bool
	err := r.q.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM contributions WHERE group_id = ? AND cycle = ? AND member = ?)",
		groupID, cycle, member,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check contribution: %w", err)
	}
	return exists, nil
}

// RecordContribution inserts a marker. The primary key rejects duplicates.
func (r *queries) RecordContribution(ctx context.Context, rec models.ContributionRecord) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO contributions (group_id, cycle, member, amount, contributed_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.GroupID, rec.Cycle, rec.Member, rec.Amount, rec.ContributedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert contribution: %w", err)
	}
	return nil
}

// ListContributions retrieves the markers of one cycle.
func (r *queries) ListContributions(ctx context.Context, groupID uint64, cycle uint32) ([]models.ContributionRecord, error) {
	return r.scanContributions(ctx,
		`SELECT group_id, cycle, member, amount, contributed_at FROM contributions
		 WHERE group_id = ? AND cycle = ? ORDER BY contributed_at, member`,
		groupID, cycle,
	)
}

// ListAllContributions retrieves every marker of a group.
func (r *queries) ListAllContributions(ctx context.Context, groupID uint64) ([]models.ContributionRecord, error) {
	return r.scanContributions(ctx,
		`SELECT group_id, cycle, member, amount, contributed_at FROM contributions
		 WHERE group_id = ? ORDER BY cycle, contributed_at, member`,
		groupID,
	)
}

func (r *queries) scanContributions(ctx context.Context, query string, args ...any) ([]models.ContributionRecord, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get contributions: %w", err)
	}
	defer rows.Close()

	var recs []models.ContributionRecord
	for rows.Next() {
		var c models.ContributionRecord
		if err := rows.Scan(&c.GroupID, &c.Cycle, &c.Member, &c.Amount, &c.ContributedAt); err != nil {
			return nil, fmt.Errorf("failed to scan contribution: %w", err)
		}
		recs = append(recs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate contributions: %w", err)
	}
	return recs, nil
}

// RecordPayout inserts a payout record.
func (r *queries) RecordPayout(ctx context.Context, rec models.PayoutRecord) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO payouts (group_id, recipient, cycle, amount, paid_at) VALUES (?, ?, ?, ?, ?)`,
		rec.GroupID, rec.Recipient, rec.Cycle, rec.Amount, rec.PaidAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert payout: %w", err)
	}
	return nil
}

// GetPayout retrieves a member's payout, or nil if none.
func (r *queries) GetPayout(ctx context.Context, groupID uint64, member string) (*models.PayoutRecord, error) {
	p := &models.PayoutRecord{}
	err := r.q.QueryRowContext(ctx,
		`SELECT group_id, cycle, recipient, amount, paid_at FROM payouts
		 WHERE group_id = ? AND recipient = ?`,
		groupID, member,
	).Scan(&p.GroupID, &p.Cycle, &p.Recipient, &p.Amount, &p.PaidAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payout: %w", err)
	}
	return p, nil
}

// ListPayouts retrieves all payouts of a group by cycle.
func (r *queries) ListPayouts(ctx context.Context, groupID uint64) ([]models.PayoutRecord, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT group_id, cycle, recipient, amount, paid_at FROM payouts
		 WHERE group_id = ? ORDER BY cycle`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get payouts: %w", err)
	}
	defer rows.Close()

	var payouts []models.PayoutRecord
	for rows.Next() {
		var p models.PayoutRecord
		if err := rows.Scan(&p.GroupID, &p.Cycle, &p.Recipient, &p.Amount, &p.PaidAt); err != nil {
			return nil, fmt.Errorf("failed to scan payout: %w", err)
		}
		payouts = append(payouts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payouts: %w", err)
	}
	return payouts, nil
}

// RecordRefund inserts a refund record.
func (r *queries) RecordRefund(ctx context.Context, rec models.RefundRecord) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO refunds (group_id, member, amount, reason, refunded_at) VALUES (?, ?, ?, ?, ?)`,
		rec.GroupID, rec.Member, rec.Amount, string(rec.Reason), rec.RefundedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert refund: %w", err)
	}
	return nil
}

// ListRefunds retrieves all refunds of a group in insertion order.
func (r *queries) ListRefunds(ctx context.Context, groupID uint64) ([]models.RefundRecord, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT group_id, member, amount, reason, refunded_at FROM refunds
		 WHERE group_id = ? ORDER BY rowid`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get refunds: %w", err)
	}
	defer rows.Close()

	var refunds []models.RefundRecord
	for rows.Next() {
		var rf models.RefundRecord
		var reason string
		if err := rows.Scan(&rf.GroupID, &rf.Member, &rf.Amount, &reason, &rf.RefundedAt); err != nil {
			return nil, fmt.Errorf("failed to scan refund: %w", err)
		}
		rf.Reason = models.RefundReason(reason)
		refunds = append(refunds, rf)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate refunds: %w", err)
	}
	return refunds, nil
}
