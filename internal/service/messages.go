package service

import (
	"encoding/json"

	"github.com/mmynk/ajo/internal/events"
	"github.com/mmynk/ajo/internal/models"
)

// Group is the wire form of models.Group.
type Group struct {
	ID                 uint64   `json:"id"`
	Creator            string   `json:"creator"`
	ContributionAmount int64    `json:"contribution_amount"`
	CycleLength        int64    `json:"cycle_length"`
	MaxMembers         uint32   `json:"max_members"`
	Members            []string `json:"members"`
	CurrentCycle       uint32   `json:"current_cycle"`
	CycleStartTime     int64    `json:"cycle_start_time"`
	PayoutIndex        uint32   `json:"payout_index"`
	CreatedAt          int64    `json:"created_at"`
	IsComplete         bool     `json:"is_complete"`
	IsCancelled        bool     `json:"is_cancelled"`
	Phase              string   `json:"phase"`
}

// GroupStatus is the wire form of models.GroupStatus.
type GroupStatus struct {
	GroupID               uint64   `json:"group_id"`
	CurrentCycle          uint32   `json:"current_cycle"`
	TotalMembers          uint32   `json:"total_members"`
	IsComplete            bool     `json:"is_complete"`
	IsCancelled           bool     `json:"is_cancelled"`
	Phase                 string   `json:"phase"`
	NextRecipient         string   `json:"next_recipient,omitempty"`
	HasNextRecipient      bool     `json:"has_next_recipient"`
	ContributionsReceived uint32   `json:"contributions_received"`
	PendingContributors   []string `json:"pending_contributors"`
	CycleStartTime        int64    `json:"cycle_start_time"`
	CycleEndTime          int64    `json:"cycle_end_time"`
	CurrentTime           int64    `json:"current_time"`
	IsCycleActive         bool     `json:"is_cycle_active"`
}

type MemberContribution struct {
	Member         string `json:"member"`
	HasContributed bool   `json:"has_contributed"`
}

type MemberPosition struct {
	Member      string `json:"member"`
	Contributed int64  `json:"contributed"`
	Received    int64  `json:"received"`
	Refunded    int64  `json:"refunded"`
	Net         int64  `json:"net"`
}

type Payout struct {
	GroupID   uint64 `json:"group_id"`
	Cycle     uint32 `json:"cycle"`
	Recipient string `json:"recipient"`
	Amount    int64  `json:"amount"`
	PaidAt    int64  `json:"paid_at"`
}

type Refund struct {
	Member     string `json:"member"`
	Amount     int64  `json:"amount"`
	Reason     string `json:"reason"`
	RefundedAt int64  `json:"refunded_at"`
}

type Metadata struct {
	GroupID     uint64 `json:"group_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Rules       string `json:"rules"`
	UpdatedAt   int64  `json:"updated_at"`
}

// Event is one journal record. Payload is the event body as stored.
type Event struct {
	ID        string          `json:"id"`
	Seq       uint64          `json:"seq"`
	Type      string          `json:"type"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
	Hash      string          `json:"hash"`
	PrevHash  string          `json:"prev_hash"`
	ChainHash string          `json:"chain_hash"`
}

type CreateGroupRequest struct {
	ContributionAmount int64  `json:"contribution_amount"`
	CycleLength        int64  `json:"cycle_length"`
	MaxMembers         uint32 `json:"max_members"`
}

type CreateGroupResponse struct {
	Group Group `json:"group"`
}

type JoinGroupRequest struct {
	GroupID uint64 `json:"group_id"`
}

type JoinGroupResponse struct {
	Group Group `json:"group"`
}

type ContributeRequest struct {
	GroupID uint64 `json:"group_id"`
	Amount  int64  `json:"amount"`
}

// ContributeResponse carries the status after the contribution. Status is
// omitted when the contribution committed but the projection could not be
// read back.
type ContributeResponse struct {
	Status *GroupStatus `json:"status,omitempty"`
}

type ExecutePayoutRequest struct {
	GroupID uint64 `json:"group_id"`
}

type ExecutePayoutResponse struct {
	Payout Payout       `json:"payout"`
	Status *GroupStatus `json:"status,omitempty"`
}

type GetGroupStatusRequest struct {
	GroupID uint64 `json:"group_id"`
}

type GetGroupStatusResponse struct {
	Status GroupStatus `json:"status"`
}

type GetGroupRequest struct {
	GroupID uint64 `json:"group_id"`
}

type GetGroupResponse struct {
	Group Group `json:"group"`
}

// GetContributionStatusRequest selects a cycle; nil means the current one.
type GetContributionStatusRequest struct {
	GroupID uint64  `json:"group_id"`
	Cycle   *uint32 `json:"cycle,omitempty"`
}

type GetContributionStatusResponse struct {
	Cycle         uint32               `json:"cycle"`
	Contributions []MemberContribution `json:"contributions"`
}

type SetGroupMetadataRequest struct {
	GroupID     uint64 `json:"group_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Rules       string `json:"rules"`
}

type SetGroupMetadataResponse struct {
	Metadata Metadata `json:"metadata"`
}

type GetGroupMetadataRequest struct {
	GroupID uint64 `json:"group_id"`
}

type GetGroupMetadataResponse struct {
	Metadata Metadata `json:"metadata"`
}

type CancelGroupRequest struct {
	GroupID uint64 `json:"group_id"`
}

type CancelGroupResponse struct {
	Refunds []Refund `json:"refunds"`
}

type GetMemberPositionsRequest struct {
	GroupID uint64 `json:"group_id"`
}

type GetMemberPositionsResponse struct {
	Positions []MemberPosition `json:"positions"`
}

type HasReceivedPayoutRequest struct {
	GroupID uint64 `json:"group_id"`
	Member  string `json:"member"`
}

type HasReceivedPayoutResponse struct {
	Received bool `json:"received"`
}

type ListEventsRequest struct {
	GroupID  uint64 `json:"group_id"`
	AfterSeq uint64 `json:"after_seq"`
	Limit    int    `json:"limit"`
}

type ListEventsResponse struct {
	Events []Event `json:"events"`
}

type VerifyJournalRequest struct {
	GroupID uint64 `json:"group_id"`
}

// VerifyJournalResponse reports a broken chain as data, not as an RPC error.
type VerifyJournalResponse struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// RefundRequest is the wire form of models.RefundRequest.
type RefundRequest struct {
	GroupID         uint64 `json:"group_id"`
	Requester       string `json:"requester"`
	CreatedAt       int64  `json:"created_at"`
	VotingDeadline  int64  `json:"voting_deadline"`
	VotesFor        uint32 `json:"votes_for"`
	VotesAgainst    uint32 `json:"votes_against"`
	ApprovalPercent uint64 `json:"approval_percent"`
	Executed        bool   `json:"executed"`
	Approved        bool   `json:"approved"`
}

type RequestRefundRequest struct {
	GroupID uint64 `json:"group_id"`
}

type RequestRefundResponse struct {
	Request RefundRequest `json:"request"`
}

type VoteRefundRequest struct {
	GroupID uint64 `json:"group_id"`
	InFavor bool   `json:"in_favor"`
}

type VoteRefundResponse struct {
	Request RefundRequest `json:"request"`
}

type ExecuteRefundRequest struct {
	GroupID uint64 `json:"group_id"`
}

// ExecuteRefundResponse lists the refunds paid out. It is empty when the
// vote did not pass.
type ExecuteRefundResponse struct {
	Request RefundRequest `json:"request"`
	Refunds []Refund      `json:"refunds"`
}

type GetRefundRequestRequest struct {
	GroupID uint64 `json:"group_id"`
}

type GetRefundRequestResponse struct {
	Request RefundRequest `json:"request"`
}

// GetGroupID lets the logging interceptor tag requests with their group.
func (r *JoinGroupRequest) GetGroupID() uint64             { return r.GroupID }
func (r *ContributeRequest) GetGroupID() uint64            { return r.GroupID }
func (r *ExecutePayoutRequest) GetGroupID() uint64         { return r.GroupID }
func (r *GetGroupStatusRequest) GetGroupID() uint64        { return r.GroupID }
func (r *GetGroupRequest) GetGroupID() uint64              { return r.GroupID }
func (r *GetContributionStatusRequest) GetGroupID() uint64 { return r.GroupID }
func (r *SetGroupMetadataRequest) GetGroupID() uint64      { return r.GroupID }
func (r *GetGroupMetadataRequest) GetGroupID() uint64      { return r.GroupID }
func (r *CancelGroupRequest) GetGroupID() uint64           { return r.GroupID }
func (r *GetMemberPositionsRequest) GetGroupID() uint64    { return r.GroupID }
func (r *HasReceivedPayoutRequest) GetGroupID() uint64     { return r.GroupID }
func (r *ListEventsRequest) GetGroupID() uint64            { return r.GroupID }
func (r *VerifyJournalRequest) GetGroupID() uint64         { return r.GroupID }
func (r *RequestRefundRequest) GetGroupID() uint64         { return r.GroupID }
func (r *VoteRefundRequest) GetGroupID() uint64            { return r.GroupID }
func (r *ExecuteRefundRequest) GetGroupID() uint64         { return r.GroupID }
func (r *GetRefundRequestRequest) GetGroupID() uint64      { return r.GroupID }

func toGroup(g *models.Group) Group {
	return Group{
		ID:                 g.ID,
		Creator:            g.Creator,
		ContributionAmount: g.ContributionAmount,
		CycleLength:        g.CycleLength,
		MaxMembers:         g.MaxMembers,
		Members:            g.Members,
		CurrentCycle:       g.CurrentCycle,
		CycleStartTime:     g.CycleStartTime,
		PayoutIndex:        g.PayoutIndex,
		CreatedAt:          g.CreatedAt,
		IsComplete:         g.IsComplete,
		IsCancelled:        g.IsCancelled,
		Phase:              string(g.Phase()),
	}
}

func toGroupStatus(s *models.GroupStatus) GroupStatus {
	return GroupStatus{
		GroupID:               s.GroupID,
		CurrentCycle:          s.CurrentCycle,
		TotalMembers:          s.TotalMembers,
		IsComplete:            s.IsComplete,
		IsCancelled:           s.IsCancelled,
		Phase:                 string(s.Phase),
		NextRecipient:         s.NextRecipient,
		HasNextRecipient:      s.HasNextRecipient,
		ContributionsReceived: s.ContributionsReceived,
		PendingContributors:   s.PendingContributors,
		CycleStartTime:        s.CycleStartTime,
		CycleEndTime:          s.CycleEndTime,
		CurrentTime:           s.CurrentTime,
		IsCycleActive:         s.IsCycleActive,
	}
}

func toRefundRequest(r *models.RefundRequest) RefundRequest {
	return RefundRequest{
		GroupID:         r.GroupID,
		Requester:       r.Requester,
		CreatedAt:       r.CreatedAt,
		VotingDeadline:  r.VotingDeadline,
		VotesFor:        r.VotesFor,
		VotesAgainst:    r.VotesAgainst,
		ApprovalPercent: r.ApprovalPercent(),
		Executed:        r.Executed,
		Approved:        r.Approved,
	}
}

func toRefunds(refunds []models.RefundRecord) []Refund {
	out := make([]Refund, len(refunds))
	for i, r := range refunds {
		out[i] = Refund{
			Member:     r.Member,
			Amount:     r.Amount,
			Reason:     string(r.Reason),
			RefundedAt: r.RefundedAt,
		}
	}
	return out
}

func toMetadata(m *models.GroupMetadata) Metadata {
	return Metadata{
		GroupID:     m.GroupID,
		Name:        m.Name,
		Description: m.Description,
		Rules:       m.Rules,
		UpdatedAt:   m.UpdatedAt,
	}
}

func toEvent(rec events.Record) Event {
	return Event{
		ID:        rec.ID,
		Seq:       rec.Seq,
		Type:      string(rec.Type),
		Timestamp: rec.Timestamp,
		Payload:   json.RawMessage(rec.Payload),
		Hash:      rec.Hash,
		PrevHash:  rec.PrevHash,
		ChainHash: rec.ChainHash,
	}
}
