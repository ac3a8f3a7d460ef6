package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mmynk/ajo/internal/models"
)

// GetRefundRequest retrieves a group's refund request, or nil if none exists.
func (r *queries) GetRefundRequest(ctx context.Context, groupID uint64) (*models.RefundRequest, error) {
	req := &models.RefundRequest{}
	err := r.q.QueryRowContext(ctx,
		`SELECT group_id, requester, created_at, voting_deadline, votes_for, votes_against, executed, approved
		 FROM refund_requests WHERE group_id = ?`,
		groupID,
	).Scan(&req.GroupID, &req.Requester, &req.CreatedAt, &req.VotingDeadline,
		&req.VotesFor, &req.VotesAgainst, &req.Executed, &req.Approved)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get refund request: %w", err)
	}
	return req, nil
}

// PutRefundRequest upserts a group's refund request.
func (r *queries) PutRefundRequest(ctx context.Context, req models.RefundRequest) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO refund_requests (group_id, requester, created_at, voting_deadline,
		 votes_for, votes_against, executed, approved)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(group_id) DO UPDATE SET
		   votes_for = excluded.votes_for, votes_against = excluded.votes_against,
		   executed = excluded.executed, approved = excluded.approved`,
		req.GroupID, req.Requester, req.CreatedAt, req.VotingDeadline,
		req.VotesFor, req.VotesAgainst, req.Executed, req.Approved,
	)
	if err != nil {
		return fmt.Errorf("failed to put refund request: %w", err)
	}
	return nil
}

// HasVoted checks for a ballot by voter.
func (r *queries) HasVoted(ctx context.Context, groupID uint64, voter string) (bool, error) {
	var exists bool
	err := r.q.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM refund_votes WHERE group_id = ? AND voter = ?)",
		groupID, voter,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check vote: %w", err)
	}
	return exists, nil
}

// RecordVote inserts a ballot. The primary key rejects a second vote.
func (r *queries) RecordVote(ctx context.Context, vote models.RefundVote) error {
	_, err := r.q.ExecContext(ctx,
		"INSERT INTO refund_votes (group_id, voter, in_favor, voted_at) VALUES (?, ?, ?, ?)",
		vote.GroupID, vote.Voter, vote.InFavor, vote.VotedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert vote: %w", err)
	}
	return nil
}
