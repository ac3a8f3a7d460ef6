package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/ajo/internal/events"
	"github.com/mmynk/ajo/internal/models"
	"github.com/mmynk/ajo/internal/storage"
)

func seedGroup(t *testing.T, s *Store, members ...string) *models.Group {
	t.Helper()
	ctx := context.Background()
	g := &models.Group{Creator: members[0], ContributionAmount: 100, CycleLength: 60, MaxMembers: 5, Members: members}
	require.NoError(t, s.Atomic(ctx, func(tx storage.Tx) error {
		id, err := tx.NextGroupID(ctx)
		if err != nil {
			return err
		}
		g.ID = id
		return tx.CreateGroup(ctx, g)
	}))
	return g
}

func TestStore_AtomicCommitsOnSuccess(t *testing.T) {
	ctx := context.Background()
	s := New()
	g := seedGroup(t, s, "alice", "bob")
	assert.Equal(t, uint64(1), g.ID)

	require.NoError(t, s.Atomic(ctx, func(tx storage.Tx) error {
		require.NoError(t, tx.RecordContribution(ctx, models.ContributionRecord{GroupID: g.ID, Member: "bob", Amount: 100}))

		// Reads inside the unit of work see its own writes.
		paid, err := tx.HasContributed(ctx, g.ID, 0, "bob")
		require.NoError(t, err)
		assert.True(t, paid)

		g.Members = append(g.Members, "carol")
		return tx.UpdateGroup(ctx, g)
	}))

	require.NoError(t, s.View(ctx, func(r storage.Reader) error {
		stored, err := r.GetGroup(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"alice", "bob", "carol"}, stored.Members)

		recs, err := r.ListContributions(ctx, g.ID, 0)
		require.NoError(t, err)
		assert.Len(t, recs, 1)
		return nil
	}))
}

func TestStore_AtomicDiscardsOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	g := seedGroup(t, s, "alice", "bob")
	boom := errors.New("boom")

	err := s.Atomic(ctx, func(tx storage.Tx) error {
		_, err := tx.NextGroupID(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.RecordPayout(ctx, models.PayoutRecord{GroupID: g.ID, Recipient: "alice", Amount: 200}))
		_, err = events.NewEmitter().Append(ctx, tx, 5, events.Joined{GroupID: g.ID, Member: "zed"})
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	require.NoError(t, s.View(ctx, func(r storage.Reader) error {
		p, err := r.GetPayout(ctx, g.ID, "alice")
		require.NoError(t, err)
		assert.Nil(t, p)

		_, ok, err := r.LastRecord(ctx, g.ID)
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	}))

	next := seedGroup(t, s, "dave")
	assert.Equal(t, uint64(2), next.ID, "aborted id allocation must not be consumed")
}

func TestStore_KeyedUniqueness(t *testing.T) {
	ctx := context.Background()
	s := New()
	g := seedGroup(t, s, "alice", "bob")

	rec := models.ContributionRecord{GroupID: g.ID, Cycle: 0, Member: "alice", Amount: 100}
	require.NoError(t, s.Atomic(ctx, func(tx storage.Tx) error { return tx.RecordContribution(ctx, rec) }))
	assert.Error(t, s.Atomic(ctx, func(tx storage.Tx) error { return tx.RecordContribution(ctx, rec) }))

	payout := models.PayoutRecord{GroupID: g.ID, Recipient: "alice", Amount: 200}
	require.NoError(t, s.Atomic(ctx, func(tx storage.Tx) error { return tx.RecordPayout(ctx, payout) }))
	assert.Error(t, s.Atomic(ctx, func(tx storage.Tx) error { return tx.RecordPayout(ctx, payout) }))

	shrunk := g.Clone()
	shrunk.Members = []string{"bob"}
	assert.Error(t, s.Atomic(ctx, func(tx storage.Tx) error { return tx.UpdateGroup(ctx, shrunk) }))

	assert.ErrorIs(t, s.Atomic(ctx, func(tx storage.Tx) error {
		return tx.UpdateGroup(ctx, &models.Group{ID: 99})
	}), models.ErrGroupNotFound)
}

func TestStore_ViewIsReadOnly(t *testing.T) {
	ctx := context.Background()
	s := New()

	err := s.View(ctx, func(r storage.Reader) error {
		tx, ok := r.(storage.Tx)
		require.True(t, ok)
		_, err := tx.NextGroupID(ctx)
		return err
	})
	assert.Error(t, err)
}

func TestStore_ListRecordsPaging(t *testing.T) {
	ctx := context.Background()
	s := New()
	g := seedGroup(t, s, "alice")

	require.NoError(t, s.Atomic(ctx, func(tx storage.Tx) error {
		_, err := events.NewEmitter().Append(ctx, tx, 1,
			events.Created{GroupID: g.ID, Creator: "alice", ContributionAmount: 100, MaxMembers: 5},
			events.Joined{GroupID: g.ID, Member: "bob"},
			events.Joined{GroupID: g.ID, Member: "carol"},
		)
		return err
	}))

	require.NoError(t, s.View(ctx, func(r storage.Reader) error {
		all, err := r.ListRecords(ctx, g.ID, 0, 0)
		require.NoError(t, err)
		require.Len(t, all, 3)
		require.NoError(t, events.VerifyChain(all))

		page, err := r.ListRecords(ctx, g.ID, 1, 1)
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, uint64(2), page[0].Seq)
		return nil
	}))
}

func TestStore_ReadsStayWithinGroup(t *testing.T) {
	ctx := context.Background()
	s := New()
	a := seedGroup(t, s, "alice", "bob")
	b := seedGroup(t, s, "alice", "bob")

	require.NoError(t, s.Atomic(ctx, func(tx storage.Tx) error {
		for _, rec := range []models.ContributionRecord{
			{GroupID: a.ID, Cycle: 0, Member: "bob", Amount: 100, ContributedAt: 20},
			{GroupID: a.ID, Cycle: 0, Member: "alice", Amount: 100, ContributedAt: 10},
			{GroupID: a.ID, Cycle: 1, Member: "alice", Amount: 100, ContributedAt: 30},
			{GroupID: b.ID, Cycle: 0, Member: "alice", Amount: 100, ContributedAt: 5},
		} {
			if err := tx.RecordContribution(ctx, rec); err != nil {
				return err
			}
		}
		return tx.RecordPayout(ctx, models.PayoutRecord{GroupID: b.ID, Recipient: "alice", Amount: 100})
	}))

	// A second unit of work merges its overlay with the committed cycle.
	require.NoError(t, s.Atomic(ctx, func(tx storage.Tx) error {
		require.NoError(t, tx.RecordContribution(ctx, models.ContributionRecord{GroupID: b.ID, Cycle: 0, Member: "bob", Amount: 100, ContributedAt: 6}))
		recs, err := tx.ListContributions(ctx, b.ID, 0)
		require.NoError(t, err)
		assert.Len(t, recs, 2)
		return nil
	}))

	require.NoError(t, s.View(ctx, func(r storage.Reader) error {
		cycle0, err := r.ListContributions(ctx, a.ID, 0)
		require.NoError(t, err)
		require.Len(t, cycle0, 2)
		assert.Equal(t, "alice", cycle0[0].Member, "ordered by contribution time")

		all, err := r.ListAllContributions(ctx, a.ID)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, uint32(1), all[2].Cycle)

		payouts, err := r.ListPayouts(ctx, a.ID)
		require.NoError(t, err)
		assert.Empty(t, payouts)

		payouts, err = r.ListPayouts(ctx, b.ID)
		require.NoError(t, err)
		assert.Len(t, payouts, 1)
		return nil
	}))
}

func TestStore_RefundVotes(t *testing.T) {
	ctx := context.Background()
	s := New()
	g := seedGroup(t, s, "alice", "bob")

	vote := models.RefundVote{GroupID: g.ID, Voter: "alice", InFavor: true, VotedAt: 10}
	assert.Error(t, s.Atomic(ctx, func(tx storage.Tx) error { return tx.RecordVote(ctx, vote) }),
		"a vote needs a request")

	require.NoError(t, s.Atomic(ctx, func(tx storage.Tx) error {
		if err := tx.PutRefundRequest(ctx, models.RefundRequest{GroupID: g.ID, Requester: "bob", VotingDeadline: 100}); err != nil {
			return err
		}
		return tx.RecordVote(ctx, vote)
	}))
	assert.Error(t, s.Atomic(ctx, func(tx storage.Tx) error { return tx.RecordVote(ctx, vote) }))

	require.NoError(t, s.View(ctx, func(r storage.Reader) error {
		req, err := r.GetRefundRequest(ctx, g.ID)
		require.NoError(t, err)
		require.NotNil(t, req)
		assert.Equal(t, "bob", req.Requester)

		voted, err := r.HasVoted(ctx, g.ID, "alice")
		require.NoError(t, err)
		assert.True(t, voted)

		voted, err = r.HasVoted(ctx, g.ID, "bob")
		require.NoError(t, err)
		assert.False(t, voted)
		return nil
	}))

	assert.ErrorIs(t, s.Atomic(ctx, func(tx storage.Tx) error {
		return tx.PutRefundRequest(ctx, models.RefundRequest{GroupID: 99})
	}), models.ErrGroupNotFound)
}
