package models

import "slices"

// Member count bounds accepted at group creation.
const (
	MinMembers = 2
	MaxMembers = 100
)

// Phase is the lifecycle position of a group, derived from its stored fields.
type Phase string

const (
	// PhaseForming covers everything before the first payout.
	PhaseForming Phase = "forming"
	// PhaseCycling covers groups with at least one payout left to execute.
	PhaseCycling Phase = "cycling"
	// PhaseComplete is terminal: every member has received a payout.
	PhaseComplete Phase = "complete"
	// PhaseCancelled is terminal: the creator cancelled before the first payout,
	// or the members voted to refund a stalled cycle.
	PhaseCancelled Phase = "cancelled"
)

// Group represents one savings circle.
type Group struct {
	// ID is assigned by the store at creation and never changes.
	ID uint64

	// Creator is the founding member. It is always Members[0].
	Creator string

	// ContributionAmount is the exact amount each member pays per cycle.
	ContributionAmount int64

	// CycleLength is the duration of a cycle in seconds.
	CycleLength int64

	// MaxMembers caps len(Members). Between MinMembers and MaxMembers.
	MaxMembers uint32

	// Members holds member addresses in join order.
	Members []string

	// CurrentCycle starts at 0 and increments once per executed payout.
	CurrentCycle uint32

	// CycleStartTime is the Unix timestamp the current cycle began.
	CycleStartTime int64

	// PayoutIndex is the position in Members of the next recipient.
	PayoutIndex uint32

	// CreatedAt is the Unix timestamp the group was created.
	CreatedAt int64

	// IsComplete becomes true when PayoutIndex reaches len(Members).
	IsComplete bool

	// IsCancelled becomes true when the creator cancels the group or an
	// approved refund request is executed.
	IsCancelled bool
}

// HasMember reports whether member has joined the group.
func (g *Group) HasMember(member string) bool {
	return slices.Contains(g.Members, member)
}

// MemberCount returns len(Members) as the ledger's counter type.
func (g *Group) MemberCount() uint32 {
	return uint32(len(g.Members))
}

// IsFull reports whether no further member can join.
func (g *Group) IsFull() bool {
	return g.MemberCount() >= g.MaxMembers
}

// NextRecipient returns the member scheduled for the next payout.
// The second result is false once the group is complete or cancelled, or if
// PayoutIndex has no corresponding member.
func (g *Group) NextRecipient() (string, bool) {
	if g.IsComplete || g.IsCancelled || g.PayoutIndex >= g.MemberCount() {
		return "", false
	}
	return g.Members[g.PayoutIndex], true
}

// Phase derives the lifecycle phase.
func (g *Group) Phase() Phase {
	switch {
	case g.IsCancelled:
		return PhaseCancelled
	case g.IsComplete:
		return PhaseComplete
	case g.PayoutIndex == 0:
		return PhaseForming
	default:
		return PhaseCycling
	}
}

// Clone returns a deep copy so callers can mutate it without aliasing stored state.
func (g *Group) Clone() *Group {
	c := *g
	c.Members = slices.Clone(g.Members)
	return &c
}
