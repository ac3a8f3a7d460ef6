// Package validation holds the pure precondition checks of the ledger.
// Nothing here reads or writes storage; callers pass in the state to check.
package validation

import (
	"errors"

	"github.com/go-playground/validator/v10"

	"github.com/mmynk/ajo/internal/calculator"
	"github.com/mmynk/ajo/internal/models"
)

var validate = validator.New()

// ValidateGroupParams checks group-creation parameters.
func ValidateGroupParams(contributionAmount, cycleLength int64, maxMembers uint32) error {
	switch {
	case contributionAmount == 0:
		return models.ErrContributionAmountZero
	case contributionAmount < 0:
		return models.ErrContributionAmountNegative
	case cycleLength <= 0:
		return models.ErrCycleDurationZero
	case maxMembers < models.MinMembers:
		return models.ErrMaxMembersBelowMinimum
	case maxMembers > models.MaxMembers:
		return models.ErrMaxMembersAboveLimit
	}
	return nil
}

// ValidateCycleWindow checks that a cycle beginning at start has an end time
// representable as an int64 Unix timestamp.
func ValidateCycleWindow(start, cycleLength int64) error {
	if _, err := calculator.CycleEndTime(start, cycleLength); err != nil {
		return models.ErrCycleDurationTooLong
	}
	return nil
}

// ValidateMetadata checks metadata field lengths.
func ValidateMetadata(m *models.GroupMetadata) error {
	if err := validate.Struct(m); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return models.ErrMetadataTooLong
		}
		return err
	}
	return nil
}

// CheckOpen fails if the group has reached a terminal phase.
func CheckOpen(g *models.Group) error {
	if g.IsComplete {
		return models.ErrGroupComplete
	}
	if g.IsCancelled {
		return models.ErrGroupCancelled
	}
	return nil
}

// CheckCanJoin checks that member may be appended to g.
func CheckCanJoin(g *models.Group, member string) error {
	if err := CheckOpen(g); err != nil {
		return err
	}
	if g.IsFull() {
		return models.ErrMaxMembersExceeded
	}
	if g.HasMember(member) {
		return models.ErrAlreadyMember
	}
	return nil
}

// CheckCanContribute checks a contribution of amount by member in the group's
// current cycle. alreadyContributed is the marker lookup for that cycle.
func CheckCanContribute(g *models.Group, member string, alreadyContributed bool, amount int64) error {
	if !g.HasMember(member) {
		return models.ErrNotAMember
	}
	if err := CheckOpen(g); err != nil {
		return err
	}
	if alreadyContributed {
		return models.ErrAlreadyContributed
	}
	if amount != g.ContributionAmount {
		return models.ErrInvalidAmount
	}
	return nil
}

// CheckCanCancel checks that caller may cancel g.
func CheckCanCancel(g *models.Group, caller string) error {
	if caller != g.Creator {
		return models.ErrOnlyCreatorCanCancel
	}
	if g.IsCancelled {
		return models.ErrGroupCancelled
	}
	if g.IsComplete {
		return models.ErrGroupComplete
	}
	if g.PayoutIndex > 0 {
		return models.ErrCannotCancelAfterPayout
	}
	return nil
}

// CheckIsCreator fails with ErrUnauthorized unless caller created g.
func CheckIsCreator(g *models.Group, caller string) error {
	if caller != g.Creator {
		return models.ErrUnauthorized
	}
	return nil
}

// CheckCanRequestRefund checks that requester may open a refund vote on g.
// Requests are only accepted once the current cycle has ended without a
// payout, and only once per group.
func CheckCanRequestRefund(g *models.Group, requester string, existing *models.RefundRequest, cycleEnd, now int64) error {
	if !g.HasMember(requester) {
		return models.ErrNotAMember
	}
	if g.IsCancelled {
		return models.ErrGroupCancelled
	}
	if g.IsComplete {
		return models.ErrGroupComplete
	}
	if now <= cycleEnd {
		return models.ErrCycleNotExpired
	}
	if existing != nil {
		return models.ErrRefundRequestExists
	}
	return nil
}

// CheckCanVote checks a ballot by voter on req.
func CheckCanVote(g *models.Group, voter string, req *models.RefundRequest, alreadyVoted bool, now int64) error {
	if !g.HasMember(voter) {
		return models.ErrNotAMember
	}
	if req == nil {
		return models.ErrNoRefundRequest
	}
	if alreadyVoted {
		return models.ErrAlreadyVoted
	}
	if now > req.VotingDeadline {
		return models.ErrVotingPeriodEnded
	}
	return nil
}

// CheckCanExecuteRefund checks that the outcome of req may be applied to g.
func CheckCanExecuteRefund(g *models.Group, req *models.RefundRequest, now int64) error {
	if req == nil {
		return models.ErrNoRefundRequest
	}
	if req.Executed {
		return models.ErrRefundAlreadyExecuted
	}
	if now <= req.VotingDeadline {
		return models.ErrVotingPeriodActive
	}
	return CheckOpen(g)
}
