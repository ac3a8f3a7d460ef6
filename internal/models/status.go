package models

// GroupStatus is a point-in-time projection of a group. It is computed on
// every query from stored state and the caller's clock, and never persisted.
type GroupStatus struct {
	GroupID      uint64
	CurrentCycle uint32
	TotalMembers uint32
	IsComplete   bool
	IsCancelled  bool
	Phase        Phase

	// NextRecipient is only meaningful when HasNextRecipient is true.
	NextRecipient    string
	HasNextRecipient bool

	// ContributionsReceived counts markers for CurrentCycle.
	ContributionsReceived uint32

	// PendingContributors lists members without a marker for CurrentCycle, in member order.
	PendingContributors []string

	CycleStartTime int64
	CycleEndTime   int64
	CurrentTime    int64
	IsCycleActive  bool
}
