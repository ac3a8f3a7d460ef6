// Package events defines the ledger's audit events and the append-only
// journal they are written to.
//
// Every successful mutating operation produces one or more Events. The
// engine never reads them back; they exist for external consumers.
package events

// Type identifies the kind of an event.
type Type string

// Group lifecycle events.
const (
	// TypeCreated records the creation of a group.
	TypeCreated Type = "group.created"
	// TypeCompleted records the final payout of a group.
	TypeCompleted Type = "group.completed"
	// TypeCancelled records a creator cancelling a group.
	TypeCancelled Type = "group.cancelled"
	// TypeMetadataUpdated records new group metadata.
	TypeMetadataUpdated Type = "group.metadata_updated"
)

// Member and money events.
const (
	// TypeJoined records a member joining a group.
	TypeJoined Type = "member.joined"
	// TypeContributed records a member's contribution for a cycle.
	TypeContributed Type = "contribution.recorded"
	// TypePayoutExecuted records the pool for a cycle being paid out.
	TypePayoutExecuted Type = "payout.executed"
	// TypeRefundIssued records a contribution refunded after cancellation.
	TypeRefundIssued Type = "refund.issued"
)

// Refund vote events.
const (
	// TypeRefundRequested records a member opening a refund vote.
	TypeRefundRequested Type = "refund.requested"
	// TypeRefundVoted records one ballot.
	TypeRefundVoted Type = "refund.voted"
	// TypeRefundResolved records the outcome of a refund vote being applied.
	TypeRefundResolved Type = "refund.resolved"
)

// Cycle events.
const (
	// TypeCycleAdvanced records the start of a new cycle.
	TypeCycleAdvanced Type = "cycle.advanced"
)

// Event is implemented by every event variant. The set is closed: only
// types in this package satisfy it.
type Event interface {
	EventType() Type
	Group() uint64
	isEvent()
}

// Created is emitted by create_group.
type Created struct {
	GroupID            uint64 `json:"group_id"`
	Creator            string `json:"creator"`
	ContributionAmount int64  `json:"contribution_amount"`
	MaxMembers         uint32 `json:"max_members"`
}

// Joined is emitted by join_group.
type Joined struct {
	GroupID uint64 `json:"group_id"`
	Member  string `json:"member"`
}

// Contributed is emitted by contribute.
type Contributed struct {
	GroupID uint64 `json:"group_id"`
	Cycle   uint32 `json:"cycle"`
	Member  string `json:"member"`
	Amount  int64  `json:"amount"`
}

// PayoutExecuted is emitted by execute_payout before the cycle advances.
type PayoutExecuted struct {
	GroupID   uint64 `json:"group_id"`
	Cycle     uint32 `json:"cycle"`
	Recipient string `json:"recipient"`
	Amount    int64  `json:"amount"`
}

// CycleAdvanced follows every PayoutExecuted.
type CycleAdvanced struct {
	GroupID        uint64 `json:"group_id"`
	Cycle          uint32 `json:"cycle"`
	CycleStartTime int64  `json:"cycle_start_time"`
}

// Completed follows the CycleAdvanced of the final payout.
type Completed struct {
	GroupID uint64 `json:"group_id"`
}

// MetadataUpdated is emitted by set_group_metadata.
type MetadataUpdated struct {
	GroupID uint64 `json:"group_id"`
	Name    string `json:"name"`
}

// RefundIssued is emitted once per refunded member during cancellation or
// an approved refund.
type RefundIssued struct {
	GroupID uint64 `json:"group_id"`
	Member  string `json:"member"`
	Amount  int64  `json:"amount"`
	Reason  string `json:"reason"`
}

// Cancelled closes a cancellation, after its RefundIssued events.
type Cancelled struct {
	GroupID     uint64 `json:"group_id"`
	Creator     string `json:"creator"`
	MemberCount uint32 `json:"member_count"`
	RefundTotal int64  `json:"refund_total"`
}

// RefundRequested is emitted by request_refund.
type RefundRequested struct {
	GroupID        uint64 `json:"group_id"`
	Requester      string `json:"requester"`
	VotingDeadline int64  `json:"voting_deadline"`
}

// RefundVoted is emitted by vote_refund.
type RefundVoted struct {
	GroupID uint64 `json:"group_id"`
	Voter   string `json:"voter"`
	InFavor bool   `json:"in_favor"`
}

// RefundResolved closes a refund vote. When Approved it follows the
// RefundIssued events and the group is cancelled.
type RefundResolved struct {
	GroupID      uint64 `json:"group_id"`
	Approved     bool   `json:"approved"`
	VotesFor     uint32 `json:"votes_for"`
	VotesAgainst uint32 `json:"votes_against"`
	RefundTotal  int64  `json:"refund_total"`
}

func (Created) EventType() Type         { return TypeCreated }
func (Joined) EventType() Type          { return TypeJoined }
func (Contributed) EventType() Type     { return TypeContributed }
func (PayoutExecuted) EventType() Type  { return TypePayoutExecuted }
func (CycleAdvanced) EventType() Type   { return TypeCycleAdvanced }
func (Completed) EventType() Type       { return TypeCompleted }
func (MetadataUpdated) EventType() Type { return TypeMetadataUpdated }
func (RefundIssued) EventType() Type    { return TypeRefundIssued }
func (Cancelled) EventType() Type       { return TypeCancelled }
func (RefundRequested) EventType() Type { return TypeRefundRequested }
func (RefundVoted) EventType() Type     { return TypeRefundVoted }
func (RefundResolved) EventType() Type  { return TypeRefundResolved }

func (e Created) Group() uint64         { return e.GroupID }
func (e Joined) Group() uint64          { return e.GroupID }
func (e Contributed) Group() uint64     { return e.GroupID }
func (e PayoutExecuted) Group() uint64  { return e.GroupID }
func (e CycleAdvanced) Group() uint64   { return e.GroupID }
func (e Completed) Group() uint64       { return e.GroupID }
func (e MetadataUpdated) Group() uint64 { return e.GroupID }
func (e RefundIssued) Group() uint64    { return e.GroupID }
func (e Cancelled) Group() uint64       { return e.GroupID }
func (e RefundRequested) Group() uint64 { return e.GroupID }
func (e RefundVoted) Group() uint64     { return e.GroupID }
func (e RefundResolved) Group() uint64  { return e.GroupID }

func (Created) isEvent()         {}
func (Joined) isEvent()          {}
func (Contributed) isEvent()     {}
func (PayoutExecuted) isEvent()  {}
func (CycleAdvanced) isEvent()   {}
func (Completed) isEvent()       {}
func (MetadataUpdated) isEvent() {}
func (RefundIssued) isEvent()    {}
func (Cancelled) isEvent()       {}
func (RefundRequested) isEvent() {}
func (RefundVoted) isEvent()     {}
func (RefundResolved) isEvent()  {}
