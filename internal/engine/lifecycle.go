package engine

import (
	"context"

	"github.com/mmynk/ajo/internal/calculator"
	"github.com/mmynk/ajo/internal/events"
	"github.com/mmynk/ajo/internal/models"
	"github.com/mmynk/ajo/internal/storage"
	"github.com/mmynk/ajo/internal/validation"
)

// CreateGroup validates the parameters, allocates an ID and stores a group
// whose only member is creator. The cycle clock starts at now.
func (e *Engine) CreateGroup(ctx context.Context, creator string, contributionAmount, cycleLength int64, maxMembers uint32, now int64) (uint64, error) {
	if err := validation.ValidateGroupParams(contributionAmount, cycleLength, maxMembers); err != nil {
		return 0, err
	}
	if err := validation.ValidateCycleWindow(now, cycleLength); err != nil {
		return 0, err
	}

	var group *models.Group
	err := e.mutate(ctx, "CreateGroup", 0, now, func(ctx context.Context, tx storage.Tx) ([]events.Event, error) {
		id, err := tx.NextGroupID(ctx)
		if err != nil {
			return nil, err
		}

		group = &models.Group{
			ID:                 id,
			Creator:            creator,
			ContributionAmount: contributionAmount,
			CycleLength:        cycleLength,
			MaxMembers:         maxMembers,
			Members:            []string{creator},
			CycleStartTime:     now,
			CreatedAt:          now,
		}
		if err := tx.CreateGroup(ctx, group); err != nil {
			return nil, err
		}

		return []events.Event{events.Created{
			GroupID:            id,
			Creator:            creator,
			ContributionAmount: contributionAmount,
			MaxMembers:         maxMembers,
		}}, nil
	})
	if err != nil {
		return 0, err
	}

	e.logger.Info("Group created",
		"group_id", group.ID,
		"creator", creator,
		"contribution_amount", contributionAmount,
		"max_members", maxMembers,
	)
	return group.ID, nil
}

// JoinGroup appends member to the group. Join order is payout order.
func (e *Engine) JoinGroup(ctx context.Context, groupID uint64, member string, now int64) error {
	var position int
	err := e.mutate(ctx, "JoinGroup", groupID, now, func(ctx context.Context, tx storage.Tx) ([]events.Event, error) {
		g, err := tx.GetGroup(ctx, groupID)
		if err != nil {
			return nil, err
		}
		if err := validation.CheckCanJoin(g, member); err != nil {
			return nil, err
		}

		g.Members = append(g.Members, member)
		if err := tx.UpdateGroup(ctx, g); err != nil {
			return nil, err
		}
		position = len(g.Members) - 1

		return []events.Event{events.Joined{GroupID: groupID, Member: member}}, nil
	})
	if err != nil {
		return err
	}

	e.logger.Info("Member joined", "group_id", groupID, "member", member, "position", position)
	return nil
}

// Contribute records member's payment of amount into the current cycle.
func (e *Engine) Contribute(ctx context.Context, groupID uint64, member string, amount int64, now int64) error {
	var cycle uint32
	err := e.mutate(ctx, "Contribute", groupID, now, func(ctx context.Context, tx storage.Tx) ([]events.Event, error) {
		g, err := tx.GetGroup(ctx, groupID)
		if err != nil {
			return nil, err
		}
		cycle = g.CurrentCycle

		paid, err := tx.HasContributed(ctx, groupID, cycle, member)
		if err != nil {
			return nil, err
		}
		if err := validation.CheckCanContribute(g, member, paid, amount); err != nil {
			return nil, err
		}

		if err := tx.RecordContribution(ctx, models.ContributionRecord{
			GroupID:       groupID,
			Cycle:         cycle,
			Member:        member,
			Amount:        amount,
			ContributedAt: now,
		}); err != nil {
			return nil, err
		}

		return []events.Event{events.Contributed{
			GroupID: groupID,
			Cycle:   cycle,
			Member:  member,
			Amount:  amount,
		}}, nil
	})
	if err != nil {
		return err
	}

	e.logger.Info("Contribution recorded", "group_id", groupID, "cycle", cycle, "member", member, "amount", amount)
	return nil
}

// ExecutePayout pays the current cycle's collection to the member at the
// payout index, then starts the next cycle at now. The payout that reaches
// the last member completes the group.
func (e *Engine) ExecutePayout(ctx context.Context, groupID uint64, now int64) (models.PayoutRecord, error) {
	var (
		payout   models.PayoutRecord
		complete bool
	)
	err := e.mutate(ctx, "ExecutePayout", groupID, now, func(ctx context.Context, tx storage.Tx) ([]events.Event, error) {
		g, err := tx.GetGroup(ctx, groupID)
		if err != nil {
			return nil, err
		}
		if err := validation.CheckOpen(g); err != nil {
			return nil, err
		}
		recipient, ok := g.NextRecipient()
		if !ok {
			return nil, models.ErrNoEligibleRecipient
		}

		contributions, err := tx.ListContributions(ctx, groupID, g.CurrentCycle)
		if err != nil {
			return nil, err
		}
		if err := e.checkPayoutPolicy(g, len(contributions), now); err != nil {
			return nil, err
		}
		amount, err := calculator.PayoutAmount(len(contributions), g.ContributionAmount)
		if err != nil {
			return nil, err
		}

		payout = models.PayoutRecord{
			GroupID:   groupID,
			Cycle:     g.CurrentCycle,
			Recipient: recipient,
			Amount:    amount,
			PaidAt:    now,
		}
		if err := tx.RecordPayout(ctx, payout); err != nil {
			return nil, err
		}

		if g.PayoutIndex, err = calculator.IncUint32(g.PayoutIndex); err != nil {
			return nil, err
		}
		if g.CurrentCycle, err = calculator.IncUint32(g.CurrentCycle); err != nil {
			return nil, err
		}
		// The next cycle's end must stay representable.
		if _, err := calculator.CycleEndTime(now, g.CycleLength); err != nil {
			return nil, err
		}
		g.CycleStartTime = now
		g.IsComplete = g.PayoutIndex == g.MemberCount()
		complete = g.IsComplete

		if err := tx.UpdateGroup(ctx, g); err != nil {
			return nil, err
		}

		evts := []events.Event{
			events.PayoutExecuted{GroupID: groupID, Cycle: payout.Cycle, Recipient: recipient, Amount: amount},
			events.CycleAdvanced{GroupID: groupID, Cycle: g.CurrentCycle, CycleStartTime: now},
		}
		if complete {
			evts = append(evts, events.Completed{GroupID: groupID})
		}
		return evts, nil
	})
	if err != nil {
		return models.PayoutRecord{}, err
	}

	e.logger.Info("Payout executed",
		"group_id", groupID,
		"cycle", payout.Cycle,
		"recipient", payout.Recipient,
		"amount", payout.Amount,
	)
	if complete {
		e.logger.Info("Group completed", "group_id", groupID)
	}
	return payout, nil
}

func (e *Engine) checkPayoutPolicy(g *models.Group, contributions int, now int64) error {
	if e.policy != PayoutFullOrExpired || contributions >= len(g.Members) {
		return nil
	}
	end, err := calculator.CycleEndTime(g.CycleStartTime, g.CycleLength)
	if err != nil {
		return err
	}
	if now < end {
		return models.ErrIncompleteContributions
	}
	return nil
}

// SetGroupMetadata replaces the group's descriptive metadata. Only the
// creator may call it.
func (e *Engine) SetGroupMetadata(ctx context.Context, groupID uint64, caller, name, description, rules string, now int64) error {
	err := e.mutate(ctx, "SetGroupMetadata", groupID, now, func(ctx context.Context, tx storage.Tx) ([]events.Event, error) {
		g, err := tx.GetGroup(ctx, groupID)
		if err != nil {
			return nil, err
		}
		if err := validation.CheckIsCreator(g, caller); err != nil {
			return nil, err
		}

		meta := models.GroupMetadata{
			GroupID:     groupID,
			Name:        name,
			Description: description,
			Rules:       rules,
			UpdatedAt:   now,
		}
		if err := validation.ValidateMetadata(&meta); err != nil {
			return nil, err
		}
		if err := tx.PutMetadata(ctx, meta); err != nil {
			return nil, err
		}

		return []events.Event{events.MetadataUpdated{GroupID: groupID, Name: name}}, nil
	})
	if err != nil {
		return err
	}

	e.logger.Info("Group metadata updated", "group_id", groupID, "name", name)
	return nil
}

// CancelGroup lets the creator abandon a group before its first payout.
// Everyone who paid into the current cycle is refunded.
func (e *Engine) CancelGroup(ctx context.Context, groupID uint64, caller string, now int64) ([]models.RefundRecord, error) {
	var refunds []models.RefundRecord
	err := e.mutate(ctx, "CancelGroup", groupID, now, func(ctx context.Context, tx storage.Tx) ([]events.Event, error) {
		g, err := tx.GetGroup(ctx, groupID)
		if err != nil {
			return nil, err
		}
		if err := validation.CheckCanCancel(g, caller); err != nil {
			return nil, err
		}

		var (
			evts  []events.Event
			total int64
		)
		refunds, evts, total, err = refundCurrentCycle(ctx, tx, g, models.RefundCreatorCancellation, now)
		if err != nil {
			return nil, err
		}

		g.IsCancelled = true
		if err := tx.UpdateGroup(ctx, g); err != nil {
			return nil, err
		}

		return append(evts, events.Cancelled{
			GroupID:     groupID,
			Creator:     g.Creator,
			MemberCount: g.MemberCount(),
			RefundTotal: total,
		}), nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Group cancelled", "group_id", groupID, "refunds", len(refunds))
	return refunds, nil
}

// refundCurrentCycle returns the contribution of every member who paid into
// the group's current cycle, in member order.
func refundCurrentCycle(ctx context.Context, tx storage.Tx, g *models.Group, reason models.RefundReason, now int64) ([]models.RefundRecord, []events.Event, int64, error) {
	var (
		refunds []models.RefundRecord
		evts    []events.Event
		total   int64
	)
	for _, member := range g.Members {
		paid, err := tx.HasContributed(ctx, g.ID, g.CurrentCycle, member)
		if err != nil {
			return nil, nil, 0, err
		}
		if !paid {
			continue
		}

		refund := models.RefundRecord{
			GroupID:    g.ID,
			Member:     member,
			Amount:     g.ContributionAmount,
			Reason:     reason,
			RefundedAt: now,
		}
		if err := tx.RecordRefund(ctx, refund); err != nil {
			return nil, nil, 0, err
		}
		if total, err = calculator.AddInt64(total, refund.Amount); err != nil {
			return nil, nil, 0, err
		}
		refunds = append(refunds, refund)
		evts = append(evts, events.RefundIssued{
			GroupID: g.ID,
			Member:  member,
			Amount:  refund.Amount,
			Reason:  string(reason),
		})
	}
	return refunds, evts, total, nil
}
