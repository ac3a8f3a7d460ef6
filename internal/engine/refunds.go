package engine

import (
	"context"

	"github.com/mmynk/ajo/internal/calculator"
	"github.com/mmynk/ajo/internal/events"
	"github.com/mmynk/ajo/internal/models"
	"github.com/mmynk/ajo/internal/storage"
	"github.com/mmynk/ajo/internal/validation"
)

// RequestRefund opens a refund vote on a group whose current cycle ended
// without a payout. Members vote until the deadline, then anyone may execute.
func (e *Engine) RequestRefund(ctx context.Context, groupID uint64, requester string, now int64) (models.RefundRequest, error) {
	var req models.RefundRequest
	err := e.mutate(ctx, "RequestRefund", groupID, now, func(ctx context.Context, tx storage.Tx) ([]events.Event, error) {
		g, err := tx.GetGroup(ctx, groupID)
		if err != nil {
			return nil, err
		}
		existing, err := tx.GetRefundRequest(ctx, groupID)
		if err != nil {
			return nil, err
		}
		end, err := calculator.CycleEndTime(g.CycleStartTime, g.CycleLength)
		if err != nil {
			return nil, err
		}
		if err := validation.CheckCanRequestRefund(g, requester, existing, end, now); err != nil {
			return nil, err
		}

		deadline, err := calculator.AddInt64(now, e.votingPeriod)
		if err != nil {
			return nil, err
		}
		req = models.RefundRequest{
			GroupID:        groupID,
			Requester:      requester,
			CreatedAt:      now,
			VotingDeadline: deadline,
		}
		if err := tx.PutRefundRequest(ctx, req); err != nil {
			return nil, err
		}

		return []events.Event{events.RefundRequested{
			GroupID:        groupID,
			Requester:      requester,
			VotingDeadline: deadline,
		}}, nil
	})
	if err != nil {
		return models.RefundRequest{}, err
	}

	e.logger.Info("Refund requested", "group_id", groupID, "requester", requester, "voting_deadline", req.VotingDeadline)
	return req, nil
}

// VoteRefund records voter's ballot on the group's refund request.
func (e *Engine) VoteRefund(ctx context.Context, groupID uint64, voter string, inFavor bool, now int64) (models.RefundRequest, error) {
	var req models.RefundRequest
	err := e.mutate(ctx, "VoteRefund", groupID, now, func(ctx context.Context, tx storage.Tx) ([]events.Event, error) {
		g, err := tx.GetGroup(ctx, groupID)
		if err != nil {
			return nil, err
		}
		existing, err := tx.GetRefundRequest(ctx, groupID)
		if err != nil {
			return nil, err
		}
		voted, err := tx.HasVoted(ctx, groupID, voter)
		if err != nil {
			return nil, err
		}
		if err := validation.CheckCanVote(g, voter, existing, voted, now); err != nil {
			return nil, err
		}

		if err := tx.RecordVote(ctx, models.RefundVote{
			GroupID: groupID,
			Voter:   voter,
			InFavor: inFavor,
			VotedAt: now,
		}); err != nil {
			return nil, err
		}

		req = *existing
		if inFavor {
			req.VotesFor, err = calculator.IncUint32(req.VotesFor)
		} else {
			req.VotesAgainst, err = calculator.IncUint32(req.VotesAgainst)
		}
		if err != nil {
			return nil, err
		}
		if err := tx.PutRefundRequest(ctx, req); err != nil {
			return nil, err
		}

		return []events.Event{events.RefundVoted{GroupID: groupID, Voter: voter, InFavor: inFavor}}, nil
	})
	if err != nil {
		return models.RefundRequest{}, err
	}

	e.logger.Info("Refund vote recorded", "group_id", groupID, "voter", voter, "in_favor", inFavor)
	return req, nil
}

// ExecuteRefund applies the outcome of a closed refund vote. A request with
// at least models.RefundApprovalPercent of the cast votes in favor refunds
// the current cycle's contributors and cancels the group. Otherwise the
// request is marked rejected and the group carries on. Either way the
// request cannot be executed again.
func (e *Engine) ExecuteRefund(ctx context.Context, groupID uint64, now int64) (models.RefundRequest, []models.RefundRecord, error) {
	var (
		req     models.RefundRequest
		refunds []models.RefundRecord
	)
	err := e.mutate(ctx, "ExecuteRefund", groupID, now, func(ctx context.Context, tx storage.Tx) ([]events.Event, error) {
		g, err := tx.GetGroup(ctx, groupID)
		if err != nil {
			return nil, err
		}
		existing, err := tx.GetRefundRequest(ctx, groupID)
		if err != nil {
			return nil, err
		}
		if err := validation.CheckCanExecuteRefund(g, existing, now); err != nil {
			return nil, err
		}

		req = *existing
		req.Executed = true
		req.Approved = req.Passes()

		var (
			evts  []events.Event
			total int64
		)
		if req.Approved {
			refunds, evts, total, err = refundCurrentCycle(ctx, tx, g, models.RefundMemberVote, now)
			if err != nil {
				return nil, err
			}
			g.IsCancelled = true
			if err := tx.UpdateGroup(ctx, g); err != nil {
				return nil, err
			}
		}
		if err := tx.PutRefundRequest(ctx, req); err != nil {
			return nil, err
		}

		return append(evts, events.RefundResolved{
			GroupID:      groupID,
			Approved:     req.Approved,
			VotesFor:     req.VotesFor,
			VotesAgainst: req.VotesAgainst,
			RefundTotal:  total,
		}), nil
	})
	if err != nil {
		return models.RefundRequest{}, nil, err
	}

	e.logger.Info("Refund request resolved",
		"group_id", groupID,
		"approved", req.Approved,
		"votes_for", req.VotesFor,
		"votes_against", req.VotesAgainst,
		"refunds", len(refunds),
	)
	return req, refunds, nil
}

// GetRefundRequest returns the group's refund request.
func (e *Engine) GetRefundRequest(ctx context.Context, groupID uint64) (*models.RefundRequest, error) {
	var req *models.RefundRequest
	err := e.view(ctx, "GetRefundRequest", groupID, func(ctx context.Context, r storage.Reader) error {
		if _, err := r.GetGroup(ctx, groupID); err != nil {
			return err
		}
		var err error
		req, err = r.GetRefundRequest(ctx, groupID)
		if err != nil {
			return err
		}
		if req == nil {
			return models.ErrNoRefundRequest
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}
