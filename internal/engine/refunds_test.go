package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/ajo/internal/events"
	"github.com/mmynk/ajo/internal/models"
)

const votingPeriod = int64(3600)

// stalledGroup returns a full group where alice and carol paid into cycle 0
// and the cycle has run out without a payout.
func stalledGroup(t *testing.T, e *Engine) uint64 {
	t.Helper()
	ctx := context.Background()
	id := threeMemberGroup(t, e)
	require.NoError(t, e.Contribute(ctx, id, "alice", 100, start+10))
	require.NoError(t, e.Contribute(ctx, id, "carol", 100, start+20))
	return id
}

func TestRequestRefund(t *testing.T) {
	forEachBackend(t, func(t *testing.T, newHarness func(...Option) *harness) {
		ctx := context.Background()

		t.Run("opens a vote after the cycle ends", func(t *testing.T) {
			h := newHarness(WithRefundVotingPeriod(votingPeriod))
			e := h.engine
			id := stalledGroup(t, e)

			_, err := e.RequestRefund(ctx, id, "bob", start+day)
			assert.ErrorIs(t, err, models.ErrCycleNotExpired, "the cycle's last second still belongs to it")
			_, err = e.RequestRefund(ctx, id, "mallory", start+day+1)
			assert.ErrorIs(t, err, models.ErrNotAMember)
			_, err = e.RequestRefund(ctx, 99, "bob", start+day+1)
			assert.ErrorIs(t, err, models.ErrGroupNotFound)

			h.sink.reset()
			req, err := e.RequestRefund(ctx, id, "bob", start+day+1)
			require.NoError(t, err)
			assert.Equal(t, models.RefundRequest{
				GroupID:        id,
				Requester:      "bob",
				CreatedAt:      start + day + 1,
				VotingDeadline: start + day + 1 + votingPeriod,
			}, req)
			assert.Equal(t, []events.Type{events.TypeRefundRequested}, h.sink.types())

			stored, err := e.GetRefundRequest(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, req, *stored)

			_, err = e.RequestRefund(ctx, id, "alice", start+day+2)
			assert.ErrorIs(t, err, models.ErrRefundRequestExists)
		})

		t.Run("not on terminal groups", func(t *testing.T) {
			h := newHarness()
			e := h.engine
			id := stalledGroup(t, e)
			_, err := e.CancelGroup(ctx, id, "alice", start+30)
			require.NoError(t, err)

			_, err = e.RequestRefund(ctx, id, "bob", start+2*day)
			assert.ErrorIs(t, err, models.ErrGroupCancelled)
		})

		t.Run("no request yet", func(t *testing.T) {
			h := newHarness()
			id := threeMemberGroup(t, h.engine)

			_, err := h.engine.GetRefundRequest(ctx, id)
			assert.ErrorIs(t, err, models.ErrNoRefundRequest)
			_, err = h.engine.GetRefundRequest(ctx, 99)
			assert.ErrorIs(t, err, models.ErrGroupNotFound)

			_, err = h.engine.VoteRefund(ctx, id, "alice", true, start)
			assert.ErrorIs(t, err, models.ErrNoRefundRequest)
			_, _, err = h.engine.ExecuteRefund(ctx, id, start)
			assert.ErrorIs(t, err, models.ErrNoRefundRequest)
		})
	})
}

func TestVoteRefund(t *testing.T) {
	forEachBackend(t, func(t *testing.T, newHarness func(...Option) *harness) {
		ctx := context.Background()
		h := newHarness(WithRefundVotingPeriod(votingPeriod))
		e := h.engine
		id := stalledGroup(t, e)
		opened := start + day + 1
		_, err := e.RequestRefund(ctx, id, "bob", opened)
		require.NoError(t, err)

		req, err := e.VoteRefund(ctx, id, "alice", true, opened+1)
		require.NoError(t, err)
		assert.Equal(t, uint32(1), req.VotesFor)

		req, err = e.VoteRefund(ctx, id, "carol", false, opened+votingPeriod)
		require.NoError(t, err, "the deadline itself is still open")
		assert.Equal(t, uint32(1), req.VotesFor)
		assert.Equal(t, uint32(1), req.VotesAgainst)

		_, err = e.VoteRefund(ctx, id, "alice", false, opened+2)
		assert.ErrorIs(t, err, models.ErrAlreadyVoted)
		_, err = e.VoteRefund(ctx, id, "mallory", true, opened+2)
		assert.ErrorIs(t, err, models.ErrNotAMember)
		_, err = e.VoteRefund(ctx, id, "bob", true, opened+votingPeriod+1)
		assert.ErrorIs(t, err, models.ErrVotingPeriodEnded)

		stored, err := e.GetRefundRequest(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, req, *stored, "rejected ballots leave the tally alone")
	})
}

func TestExecuteRefund(t *testing.T) {
	forEachBackend(t, func(t *testing.T, newHarness func(...Option) *harness) {
		ctx := context.Background()
		opened := start + day + 1
		closed := opened + votingPeriod + 1

		t.Run("approved vote refunds and cancels", func(t *testing.T) {
			h := newHarness(WithRefundVotingPeriod(votingPeriod))
			e := h.engine
			id := stalledGroup(t, e)
			_, err := e.RequestRefund(ctx, id, "bob", opened)
			require.NoError(t, err)
			_, err = e.VoteRefund(ctx, id, "alice", true, opened)
			require.NoError(t, err)
			_, err = e.VoteRefund(ctx, id, "bob", true, opened)
			require.NoError(t, err)
			_, err = e.VoteRefund(ctx, id, "carol", false, opened)
			require.NoError(t, err)

			_, _, err = e.ExecuteRefund(ctx, id, opened+votingPeriod)
			assert.ErrorIs(t, err, models.ErrVotingPeriodActive)

			h.sink.reset()
			req, refunds, err := e.ExecuteRefund(ctx, id, closed)
			require.NoError(t, err)
			assert.True(t, req.Executed)
			assert.True(t, req.Approved, "2 of 3 is 66%")
			require.Len(t, refunds, 2)
			assert.Equal(t, models.RefundRecord{
				GroupID: id, Member: "alice", Amount: 100, Reason: models.RefundMemberVote, RefundedAt: closed,
			}, refunds[0])
			assert.Equal(t, "carol", refunds[1].Member)
			assert.Equal(t, []events.Type{
				events.TypeRefundIssued, events.TypeRefundIssued, events.TypeRefundResolved,
			}, h.sink.types())

			g, err := e.GetGroup(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, models.PhaseCancelled, g.Phase())
			assert.ErrorIs(t, e.Contribute(ctx, id, "bob", 100, closed), models.ErrGroupCancelled)

			_, _, err = e.ExecuteRefund(ctx, id, closed+1)
			assert.ErrorIs(t, err, models.ErrRefundAlreadyExecuted)

			require.NoError(t, e.VerifyJournal(ctx, id))
		})

		t.Run("rejected vote leaves the group running", func(t *testing.T) {
			h := newHarness(WithRefundVotingPeriod(votingPeriod))
			e := h.engine
			id := stalledGroup(t, e)
			_, err := e.RequestRefund(ctx, id, "bob", opened)
			require.NoError(t, err)
			_, err = e.VoteRefund(ctx, id, "alice", true, opened)
			require.NoError(t, err)
			_, err = e.VoteRefund(ctx, id, "carol", false, opened)
			require.NoError(t, err)

			h.sink.reset()
			req, refunds, err := e.ExecuteRefund(ctx, id, closed)
			require.NoError(t, err)
			assert.True(t, req.Executed)
			assert.False(t, req.Approved, "50% is below the threshold")
			assert.Empty(t, refunds)
			assert.Equal(t, []events.Type{events.TypeRefundResolved}, h.sink.types())

			g, err := e.GetGroup(ctx, id)
			require.NoError(t, err)
			assert.False(t, g.IsCancelled)

			payout, err := e.ExecutePayout(ctx, id, closed)
			require.NoError(t, err)
			assert.Equal(t, int64(200), payout.Amount)

			_, _, err = e.ExecuteRefund(ctx, id, closed+1)
			assert.ErrorIs(t, err, models.ErrRefundAlreadyExecuted)
		})

		t.Run("no votes is a rejection", func(t *testing.T) {
			h := newHarness(WithRefundVotingPeriod(votingPeriod))
			id := stalledGroup(t, h.engine)
			_, err := h.engine.RequestRefund(ctx, id, "bob", opened)
			require.NoError(t, err)

			req, _, err := h.engine.ExecuteRefund(ctx, id, closed)
			require.NoError(t, err)
			assert.False(t, req.Approved)
		})

		t.Run("resolution is journaled", func(t *testing.T) {
			h := newHarness(WithRefundVotingPeriod(votingPeriod))
			e := h.engine
			id := stalledGroup(t, e)
			_, err := e.RequestRefund(ctx, id, "alice", opened)
			require.NoError(t, err)
			_, err = e.VoteRefund(ctx, id, "alice", true, opened)
			require.NoError(t, err)
			_, _, err = e.ExecuteRefund(ctx, id, closed)
			require.NoError(t, err)

			recs, err := e.ListEvents(ctx, id, 0, 0)
			require.NoError(t, err)
			last, err := events.Decode(recs[len(recs)-1])
			require.NoError(t, err)
			assert.Equal(t, events.RefundResolved{GroupID: id, Approved: true, VotesFor: 1, RefundTotal: 200}, last)
		})
	})
}

func TestRefundApproval(t *testing.T) {
	tests := []struct {
		votesFor, votesAgainst uint32
		want                   bool
	}{
		{0, 0, false},
		{1, 0, true},
		{1, 1, false},
		{51, 49, true},
		{50, 50, false},
		{2, 1, true},
	}
	for _, tt := range tests {
		req := models.RefundRequest{VotesFor: tt.votesFor, VotesAgainst: tt.votesAgainst}
		assert.Equal(t, tt.want, req.Passes(), "for=%d against=%d", tt.votesFor, tt.votesAgainst)
	}
}
