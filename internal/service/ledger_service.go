package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/ajo/internal/auth"
	"github.com/mmynk/ajo/internal/engine"
	"github.com/mmynk/ajo/internal/events"
	"github.com/mmynk/ajo/internal/middleware"
	"github.com/mmynk/ajo/internal/models"
	"github.com/mmynk/ajo/internal/status"
)

// LedgerService implements the Connect LedgerService. The caller's identity
// comes from the auth middleware and the clock comes from the server.
type LedgerService struct {
	engine    *engine.Engine
	projector *status.Projector
	clock     func() time.Time
}

// NewLedgerService creates a LedgerService over an engine and projector.
func NewLedgerService(e *engine.Engine, p *status.Projector) *LedgerService {
	return &LedgerService{engine: e, projector: p, clock: time.Now}
}

// WithClock replaces the wall clock, for tests.
func (s *LedgerService) WithClock(clock func() time.Time) *LedgerService {
	s.clock = clock
	return s
}

func (s *LedgerService) now() int64 {
	return s.clock().Unix()
}

// caller returns the authenticated member or an Unauthenticated error.
func caller(ctx context.Context) (string, error) {
	member := middleware.GetMember(ctx)
	if member == "" {
		return "", connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}
	return member, nil
}

// fail logs a failed call and converts err for the wire.
func fail(op string, err error, attrs ...any) error {
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return connectErr
	}
	if kind, ok := models.KindOf(err); ok {
		slog.Warn(op+" rejected", append(attrs, "kind", kind.String())...)
	} else {
		slog.Error(op+" failed", append(attrs, "error", err)...)
	}
	return toConnectError(err)
}

// CreateGroup creates a group with the caller as creator and first member.
func (s *LedgerService) CreateGroup(ctx context.Context, req *connect.Request[CreateGroupRequest]) (*connect.Response[CreateGroupResponse], error) {
	slog.Info("CreateGroup request received",
		"contribution_amount", req.Msg.ContributionAmount,
		"cycle_length", req.Msg.CycleLength,
		"max_members", req.Msg.MaxMembers,
	)

	creator, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	id, err := s.engine.CreateGroup(ctx, creator, req.Msg.ContributionAmount, req.Msg.CycleLength, req.Msg.MaxMembers, s.now())
	if err != nil {
		return nil, fail("CreateGroup", err, "creator", creator)
	}

	group, err := s.engine.GetGroup(ctx, id)
	if err != nil {
		return nil, fail("CreateGroup", err, "group_id", id)
	}

	return connect.NewResponse(&CreateGroupResponse{Group: toGroup(group)}), nil
}

// JoinGroup appends the caller to a group.
func (s *LedgerService) JoinGroup(ctx context.Context, req *connect.Request[JoinGroupRequest]) (*connect.Response[JoinGroupResponse], error) {
	slog.Info("JoinGroup request received", "group_id", req.Msg.GroupID)

	member, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.engine.JoinGroup(ctx, req.Msg.GroupID, member, s.now()); err != nil {
		return nil, fail("JoinGroup", err, "group_id", req.Msg.GroupID, "member", member)
	}

	group, err := s.engine.GetGroup(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, fail("JoinGroup", err, "group_id", req.Msg.GroupID)
	}

	return connect.NewResponse(&JoinGroupResponse{Group: toGroup(group)}), nil
}

// Contribute records the caller's payment into the current cycle.
func (s *LedgerService) Contribute(ctx context.Context, req *connect.Request[ContributeRequest]) (*connect.Response[ContributeResponse], error) {
	slog.Info("Contribute request received", "group_id", req.Msg.GroupID, "amount", req.Msg.Amount)

	member, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.engine.Contribute(ctx, req.Msg.GroupID, member, req.Msg.Amount, now); err != nil {
		return nil, fail("Contribute", err, "group_id", req.Msg.GroupID, "member", member)
	}

	return connect.NewResponse(&ContributeResponse{Status: s.statusAfter(ctx, "Contribute", req.Msg.GroupID, now)}), nil
}

// statusAfter reads the projection that follows a committed mutation. The
// mutation already happened, so a failed read is logged and the status left
// out rather than reported to the caller as a failure.
func (s *LedgerService) statusAfter(ctx context.Context, op string, groupID uint64, now int64) *GroupStatus {
	st, err := s.projector.GroupStatus(ctx, groupID, now)
	if err != nil {
		slog.Warn(op+" status unavailable", "group_id", groupID, "error", err)
		return nil
	}
	status := toGroupStatus(st)
	return &status
}

// ExecutePayout pays the current cycle to the next recipient. Any member may
// trigger it; the recipient is fixed by join order.
func (s *LedgerService) ExecutePayout(ctx context.Context, req *connect.Request[ExecutePayoutRequest]) (*connect.Response[ExecutePayoutResponse], error) {
	slog.Info("ExecutePayout request received", "group_id", req.Msg.GroupID)

	if _, err := caller(ctx); err != nil {
		return nil, err
	}

	now := s.now()
	payout, err := s.engine.ExecutePayout(ctx, req.Msg.GroupID, now)
	if err != nil {
		return nil, fail("ExecutePayout", err, "group_id", req.Msg.GroupID)
	}

	return connect.NewResponse(&ExecutePayoutResponse{
		Payout: Payout{
			GroupID:   payout.GroupID,
			Cycle:     payout.Cycle,
			Recipient: payout.Recipient,
			Amount:    payout.Amount,
			PaidAt:    payout.PaidAt,
		},
		Status: s.statusAfter(ctx, "ExecutePayout", req.Msg.GroupID, now),
	}), nil
}

// GetGroupStatus returns the status projection at the server's current time.
func (s *LedgerService) GetGroupStatus(ctx context.Context, req *connect.Request[GetGroupStatusRequest]) (*connect.Response[GetGroupStatusResponse], error) {
	slog.Info("GetGroupStatus request received", "group_id", req.Msg.GroupID)

	st, err := s.projector.GroupStatus(ctx, req.Msg.GroupID, s.now())
	if err != nil {
		return nil, fail("GetGroupStatus", err, "group_id", req.Msg.GroupID)
	}

	return connect.NewResponse(&GetGroupStatusResponse{Status: toGroupStatus(st)}), nil
}

// GetGroup returns the stored group.
func (s *LedgerService) GetGroup(ctx context.Context, req *connect.Request[GetGroupRequest]) (*connect.Response[GetGroupResponse], error) {
	slog.Info("GetGroup request received", "group_id", req.Msg.GroupID)

	group, err := s.engine.GetGroup(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, fail("GetGroup", err, "group_id", req.Msg.GroupID)
	}

	return connect.NewResponse(&GetGroupResponse{Group: toGroup(group)}), nil
}

// GetContributionStatus lists who paid into a cycle, the current one by default.
func (s *LedgerService) GetContributionStatus(ctx context.Context, req *connect.Request[GetContributionStatusRequest]) (*connect.Response[GetContributionStatusResponse], error) {
	slog.Info("GetContributionStatus request received", "group_id", req.Msg.GroupID)

	var cycle uint32
	if req.Msg.Cycle != nil {
		cycle = *req.Msg.Cycle
	} else {
		group, err := s.engine.GetGroup(ctx, req.Msg.GroupID)
		if err != nil {
			return nil, fail("GetContributionStatus", err, "group_id", req.Msg.GroupID)
		}
		cycle = group.CurrentCycle
	}

	contributions, err := s.projector.ContributionStatus(ctx, req.Msg.GroupID, cycle)
	if err != nil {
		return nil, fail("GetContributionStatus", err, "group_id", req.Msg.GroupID, "cycle", cycle)
	}

	resp := &GetContributionStatusResponse{
		Cycle:         cycle,
		Contributions: make([]MemberContribution, len(contributions)),
	}
	for i, c := range contributions {
		resp.Contributions[i] = MemberContribution{Member: c.Member, HasContributed: c.HasContributed}
	}
	return connect.NewResponse(resp), nil
}

// SetGroupMetadata replaces the group's name, description and rules.
func (s *LedgerService) SetGroupMetadata(ctx context.Context, req *connect.Request[SetGroupMetadataRequest]) (*connect.Response[SetGroupMetadataResponse], error) {
	slog.Info("SetGroupMetadata request received", "group_id", req.Msg.GroupID, "name", req.Msg.Name)

	member, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	err = s.engine.SetGroupMetadata(ctx, req.Msg.GroupID, member, req.Msg.Name, req.Msg.Description, req.Msg.Rules, s.now())
	if err != nil {
		return nil, fail("SetGroupMetadata", err, "group_id", req.Msg.GroupID, "caller", member)
	}

	meta, err := s.engine.GetGroupMetadata(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, fail("SetGroupMetadata", err, "group_id", req.Msg.GroupID)
	}

	return connect.NewResponse(&SetGroupMetadataResponse{Metadata: toMetadata(meta)}), nil
}

// GetGroupMetadata returns the group's metadata.
func (s *LedgerService) GetGroupMetadata(ctx context.Context, req *connect.Request[GetGroupMetadataRequest]) (*connect.Response[GetGroupMetadataResponse], error) {
	slog.Info("GetGroupMetadata request received", "group_id", req.Msg.GroupID)

	meta, err := s.engine.GetGroupMetadata(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, fail("GetGroupMetadata", err, "group_id", req.Msg.GroupID)
	}

	return connect.NewResponse(&GetGroupMetadataResponse{Metadata: toMetadata(meta)}), nil
}

// CancelGroup cancels a group on behalf of its creator and reports the refunds.
func (s *LedgerService) CancelGroup(ctx context.Context, req *connect.Request[CancelGroupRequest]) (*connect.Response[CancelGroupResponse], error) {
	slog.Info("CancelGroup request received", "group_id", req.Msg.GroupID)

	member, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	refunds, err := s.engine.CancelGroup(ctx, req.Msg.GroupID, member, s.now())
	if err != nil {
		return nil, fail("CancelGroup", err, "group_id", req.Msg.GroupID, "caller", member)
	}

	return connect.NewResponse(&CancelGroupResponse{Refunds: toRefunds(refunds)}), nil
}

// GetMemberPositions returns every member's totals and net position.
func (s *LedgerService) GetMemberPositions(ctx context.Context, req *connect.Request[GetMemberPositionsRequest]) (*connect.Response[GetMemberPositionsResponse], error) {
	slog.Info("GetMemberPositions request received", "group_id", req.Msg.GroupID)

	positions, err := s.projector.MemberPositions(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, fail("GetMemberPositions", err, "group_id", req.Msg.GroupID)
	}

	resp := &GetMemberPositionsResponse{Positions: make([]MemberPosition, len(positions))}
	for i, p := range positions {
		resp.Positions[i] = MemberPosition(p)
	}
	return connect.NewResponse(resp), nil
}

// HasReceivedPayout reports whether a member was already paid.
func (s *LedgerService) HasReceivedPayout(ctx context.Context, req *connect.Request[HasReceivedPayoutRequest]) (*connect.Response[HasReceivedPayoutResponse], error) {
	slog.Info("HasReceivedPayout request received", "group_id", req.Msg.GroupID, "member", req.Msg.Member)

	received, err := s.engine.HasReceivedPayout(ctx, req.Msg.GroupID, req.Msg.Member)
	if err != nil {
		return nil, fail("HasReceivedPayout", err, "group_id", req.Msg.GroupID)
	}

	return connect.NewResponse(&HasReceivedPayoutResponse{Received: received}), nil
}

// ListEvents pages through a group's journal.
func (s *LedgerService) ListEvents(ctx context.Context, req *connect.Request[ListEventsRequest]) (*connect.Response[ListEventsResponse], error) {
	slog.Info("ListEvents request received",
		"group_id", req.Msg.GroupID,
		"after_seq", req.Msg.AfterSeq,
		"limit", req.Msg.Limit,
	)

	recs, err := s.engine.ListEvents(ctx, req.Msg.GroupID, req.Msg.AfterSeq, req.Msg.Limit)
	if err != nil {
		return nil, fail("ListEvents", err, "group_id", req.Msg.GroupID)
	}

	resp := &ListEventsResponse{Events: make([]Event, len(recs))}
	for i, rec := range recs {
		resp.Events[i] = toEvent(rec)
	}
	return connect.NewResponse(resp), nil
}

// VerifyJournal recomputes the group's hash chain.
func (s *LedgerService) VerifyJournal(ctx context.Context, req *connect.Request[VerifyJournalRequest]) (*connect.Response[VerifyJournalResponse], error) {
	slog.Info("VerifyJournal request received", "group_id", req.Msg.GroupID)

	err := s.engine.VerifyJournal(ctx, req.Msg.GroupID)
	if errors.Is(err, events.ErrChainBroken) {
		slog.Error("Journal verification failed", "group_id", req.Msg.GroupID, "error", err)
		return connect.NewResponse(&VerifyJournalResponse{Reason: err.Error()}), nil
	}
	if err != nil {
		return nil, fail("VerifyJournal", err, "group_id", req.Msg.GroupID)
	}

	return connect.NewResponse(&VerifyJournalResponse{Valid: true}), nil
}

// RequestRefund opens a refund vote on behalf of the caller.
func (s *LedgerService) RequestRefund(ctx context.Context, req *connect.Request[RequestRefundRequest]) (*connect.Response[RequestRefundResponse], error) {
	slog.Info("RequestRefund request received", "group_id", req.Msg.GroupID)

	member, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	refund, err := s.engine.RequestRefund(ctx, req.Msg.GroupID, member, s.now())
	if err != nil {
		return nil, fail("RequestRefund", err, "group_id", req.Msg.GroupID, "requester", member)
	}

	return connect.NewResponse(&RequestRefundResponse{Request: toRefundRequest(&refund)}), nil
}

// VoteRefund casts the caller's ballot on the group's refund request.
func (s *LedgerService) VoteRefund(ctx context.Context, req *connect.Request[VoteRefundRequest]) (*connect.Response[VoteRefundResponse], error) {
	slog.Info("VoteRefund request received", "group_id", req.Msg.GroupID, "in_favor", req.Msg.InFavor)

	member, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	refund, err := s.engine.VoteRefund(ctx, req.Msg.GroupID, member, req.Msg.InFavor, s.now())
	if err != nil {
		return nil, fail("VoteRefund", err, "group_id", req.Msg.GroupID, "voter", member)
	}

	return connect.NewResponse(&VoteRefundResponse{Request: toRefundRequest(&refund)}), nil
}

// ExecuteRefund applies the result of a closed vote. Any authenticated
// caller may trigger it.
func (s *LedgerService) ExecuteRefund(ctx context.Context, req *connect.Request[ExecuteRefundRequest]) (*connect.Response[ExecuteRefundResponse], error) {
	slog.Info("ExecuteRefund request received", "group_id", req.Msg.GroupID)

	if _, err := caller(ctx); err != nil {
		return nil, err
	}

	refund, refunds, err := s.engine.ExecuteRefund(ctx, req.Msg.GroupID, s.now())
	if err != nil {
		return nil, fail("ExecuteRefund", err, "group_id", req.Msg.GroupID)
	}

	return connect.NewResponse(&ExecuteRefundResponse{
		Request: toRefundRequest(&refund),
		Refunds: toRefunds(refunds),
	}), nil
}

// GetRefundRequest returns the group's refund request and its tally.
func (s *LedgerService) GetRefundRequest(ctx context.Context, req *connect.Request[GetRefundRequestRequest]) (*connect.Response[GetRefundRequestResponse], error) {
	slog.Info("GetRefundRequest request received", "group_id", req.Msg.GroupID)

	refund, err := s.engine.GetRefundRequest(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, fail("GetRefundRequest", err, "group_id", req.Msg.GroupID)
	}

	return connect.NewResponse(&GetRefundRequestResponse{Request: toRefundRequest(refund)}), nil
}
