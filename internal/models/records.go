package models

// ContributionRecord is the marker proving a member paid into a cycle.
// There is at most one per (GroupID, Cycle, Member). Never updated or deleted.
type ContributionRecord struct {
	GroupID uint64
	Cycle   uint32
	Member  string

	// Amount always equals the group's ContributionAmount.
	Amount int64

	// ContributedAt is the Unix timestamp the contribution was recorded.
	ContributedAt int64
}

// PayoutRecord is written once per executed payout.
// A member receives at most one payout per group.
type PayoutRecord struct {
	GroupID   uint64
	Cycle     uint32
	Recipient string

	// Amount is what was actually collected in Cycle.
	Amount int64

	PaidAt int64
}

// RefundReason explains why a contribution was returned.
type RefundReason string

const (
	// RefundCreatorCancellation is used when the creator cancels the group.
	RefundCreatorCancellation RefundReason = "creator_cancellation"

	// RefundMemberVote is used when members vote to unwind a stalled cycle.
	RefundMemberVote RefundReason = "member_vote"
)

// RefundRecord is a contribution handed back to a member.
type RefundRecord struct {
	GroupID    uint64
	Member     string
	Amount     int64
	Reason     RefundReason
	RefundedAt int64
}

// RefundApprovalPercent is the share of cast votes, in percent, that must be
// in favor for a refund request to pass.
const RefundApprovalPercent = 51

// RefundRequest is a member's proposal to refund the current cycle and close
// the group. A group holds at most one request for its whole lifetime.
type RefundRequest struct {
	GroupID   uint64
	Requester string
	CreatedAt int64

	// VotingDeadline is the last Unix timestamp at which votes are accepted.
	VotingDeadline int64

	VotesFor     uint32
	VotesAgainst uint32

	// Executed is set once the outcome has been applied, whichever way it went.
	Executed bool
	Approved bool
}

// ApprovalPercent returns the integer percentage of cast votes in favor.
// No votes counts as zero.
func (r *RefundRequest) ApprovalPercent() uint64 {
	total := uint64(r.VotesFor) + uint64(r.VotesAgainst)
	if total == 0 {
		return 0
	}
	return uint64(r.VotesFor) * 100 / total
}

// Passes reports whether the votes cast so far meet RefundApprovalPercent.
func (r *RefundRequest) Passes() bool {
	return r.ApprovalPercent() >= RefundApprovalPercent
}

// RefundVote is one member's ballot on a group's refund request.
type RefundVote struct {
	GroupID uint64
	Voter   string
	InFavor bool
	VotedAt int64
}

// MemberContribution pairs a member with their contribution flag for one cycle.
type MemberContribution struct {
	Member         string
	HasContributed bool
}

// MemberPosition summarizes one member's flows through a group.
type MemberPosition struct {
	Member string

	// Contributed is the sum of the member's contribution records.
	Contributed int64

	// Received is the payout the member received, zero if none yet.
	Received int64

	// Refunded is the sum of refunds returned to the member.
	Refunded int64

	// Net is Received + Refunded - Contributed.
	// Positive means the member has taken out more than they paid in so far.
	Net int64
}
