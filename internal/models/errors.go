package models

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed set of ledger failures. Every operation either
// succeeds or fails with exactly one kind and no partial mutation.
//
// Codes are stable and safe to persist or send over the wire.
type ErrorKind uint32

const (
	ErrGroupNotFound              ErrorKind = 1
	ErrMaxMembersExceeded         ErrorKind = 2
	ErrAlreadyMember              ErrorKind = 3
	ErrNotAMember                 ErrorKind = 4
	ErrAlreadyContributed         ErrorKind = 5
	ErrIncompleteContributions    ErrorKind = 6
	ErrGroupComplete              ErrorKind = 8
	ErrContributionAmountZero     ErrorKind = 9
	ErrCycleDurationZero          ErrorKind = 10
	ErrMaxMembersBelowMinimum     ErrorKind = 11
	ErrNoEligibleRecipient        ErrorKind = 14
	ErrUnauthorized               ErrorKind = 15
	ErrContributionAmountNegative ErrorKind = 17
	ErrMaxMembersAboveLimit       ErrorKind = 18
	ErrGroupCancelled             ErrorKind = 19
	ErrMetadataTooLong            ErrorKind = 27
	ErrCannotCancelAfterPayout    ErrorKind = 28
	ErrOnlyCreatorCanCancel       ErrorKind = 29
	ErrRefundRequestExists        ErrorKind = 30
	ErrNoRefundRequest            ErrorKind = 31
	ErrAlreadyVoted               ErrorKind = 32
	ErrVotingPeriodActive         ErrorKind = 33
	ErrVotingPeriodEnded          ErrorKind = 34
	ErrRefundAlreadyExecuted      ErrorKind = 36
	ErrCycleNotExpired            ErrorKind = 37
	ErrInvalidAmount              ErrorKind = 38

	// ErrArithmeticOverflow signals a broken internal invariant. The bounds on
	// groups make it unreachable, but checked arithmetic surfaces it instead of wrapping.
	ErrArithmeticOverflow ErrorKind = 39

	// ErrCycleDurationTooLong rejects a cycle length whose end time would not
	// fit in an int64 timestamp.
	ErrCycleDurationTooLong ErrorKind = 40
)

var kindNames = map[ErrorKind]string{
	ErrGroupNotFound:              "GroupNotFound",
	ErrMaxMembersExceeded:         "MaxMembersExceeded",
	ErrAlreadyMember:              "AlreadyMember",
	ErrNotAMember:                 "NotAMember",
	ErrAlreadyContributed:         "AlreadyContributed",
	ErrIncompleteContributions:    "IncompleteContributions",
	ErrGroupComplete:              "GroupComplete",
	ErrContributionAmountZero:     "ContributionAmountZero",
	ErrCycleDurationZero:          "CycleDurationZero",
	ErrMaxMembersBelowMinimum:     "MaxMembersBelowMinimum",
	ErrNoEligibleRecipient:        "NoEligibleRecipient",
	ErrUnauthorized:               "Unauthorized",
	ErrContributionAmountNegative: "ContributionAmountNegative",
	ErrMaxMembersAboveLimit:       "MaxMembersAboveLimit",
	ErrGroupCancelled:             "GroupCancelled",
	ErrMetadataTooLong:            "MetadataTooLong",
	ErrCannotCancelAfterPayout:    "CannotCancelAfterPayout",
	ErrOnlyCreatorCanCancel:       "OnlyCreatorCanCancel",
	ErrRefundRequestExists:        "RefundRequestExists",
	ErrNoRefundRequest:            "NoRefundRequest",
	ErrAlreadyVoted:               "AlreadyVoted",
	ErrVotingPeriodActive:         "VotingPeriodActive",
	ErrVotingPeriodEnded:          "VotingPeriodEnded",
	ErrRefundAlreadyExecuted:      "RefundAlreadyExecuted",
	ErrCycleNotExpired:            "CycleNotExpired",
	ErrInvalidAmount:              "InvalidAmount",
	ErrArithmeticOverflow:         "ArithmeticOverflow",
	ErrCycleDurationTooLong:       "CycleDurationTooLong",
}

var kindMessages = map[ErrorKind]string{
	ErrGroupNotFound:              "group not found",
	ErrMaxMembersExceeded:         "group is already at its member limit",
	ErrAlreadyMember:              "address is already a member of the group",
	ErrNotAMember:                 "address is not a member of the group",
	ErrAlreadyContributed:         "member already contributed this cycle",
	ErrIncompleteContributions:    "not every member has contributed and the cycle has not ended",
	ErrGroupComplete:              "group has completed all cycles",
	ErrContributionAmountZero:     "contribution amount cannot be zero",
	ErrCycleDurationZero:          "cycle duration must be greater than zero",
	ErrMaxMembersBelowMinimum:     "groups need at least 2 members",
	ErrNoEligibleRecipient:        "no member at the current payout index",
	ErrUnauthorized:               "caller is not allowed to perform this operation",
	ErrContributionAmountNegative: "contribution amount cannot be negative",
	ErrMaxMembersAboveLimit:       "max members exceeds the limit of 100",
	ErrGroupCancelled:             "group has been cancelled by its creator",
	ErrMetadataTooLong:            "metadata field exceeds maximum length",
	ErrCannotCancelAfterPayout:    "group cannot be cancelled after the first payout",
	ErrOnlyCreatorCanCancel:       "only the group creator can cancel the group",
	ErrRefundRequestExists:        "group already has a refund request",
	ErrNoRefundRequest:            "group has no refund request",
	ErrAlreadyVoted:               "member already voted on the refund request",
	ErrVotingPeriodActive:         "refund voting period has not ended",
	ErrVotingPeriodEnded:          "refund voting period has ended",
	ErrRefundAlreadyExecuted:      "refund request was already executed",
	ErrCycleNotExpired:            "current cycle has not ended yet",
	ErrInvalidAmount:              "amount must equal the group's contribution amount",
	ErrArithmeticOverflow:         "arithmetic overflow",
	ErrCycleDurationTooLong:       "cycle end time would overflow",
}

// Kinds returns every defined kind in code order.
func Kinds() []ErrorKind {
	return []ErrorKind{
		ErrGroupNotFound, ErrMaxMembersExceeded, ErrAlreadyMember, ErrNotAMember,
		ErrAlreadyContributed, ErrIncompleteContributions, ErrGroupComplete,
		ErrContributionAmountZero, ErrCycleDurationZero, ErrMaxMembersBelowMinimum,
		ErrNoEligibleRecipient, ErrUnauthorized, ErrContributionAmountNegative,
		ErrMaxMembersAboveLimit, ErrGroupCancelled, ErrMetadataTooLong,
		ErrCannotCancelAfterPayout, ErrOnlyCreatorCanCancel, ErrRefundRequestExists,
		ErrNoRefundRequest, ErrAlreadyVoted, ErrVotingPeriodActive, ErrVotingPeriodEnded,
		ErrRefundAlreadyExecuted, ErrCycleNotExpired, ErrInvalidAmount,
		ErrArithmeticOverflow, ErrCycleDurationTooLong,
	}
}

// String returns the kind's name, e.g. "GroupNotFound".
func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", uint32(k))
}

// Error implements error.
func (k ErrorKind) Error() string {
	if msg, ok := kindMessages[k]; ok {
		return msg
	}
	return k.String()
}

// Code returns the stable numeric code.
func (k ErrorKind) Code() uint32 {
	return uint32(k)
}

// KindOf extracts the ErrorKind from err, unwrapping as needed.
func KindOf(err error) (ErrorKind, bool) {
	var kind ErrorKind
	if errors.As(err, &kind) {
		return kind, true
	}
	return 0, false
}

// ParseErrorKind is the inverse of ErrorKind.String.
func ParseErrorKind(name string) (ErrorKind, bool) {
	for k, n := range kindNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}
