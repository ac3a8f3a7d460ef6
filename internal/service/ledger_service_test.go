package service

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/ajo/internal/auth"
	"github.com/mmynk/ajo/internal/engine"
	"github.com/mmynk/ajo/internal/middleware"
	"github.com/mmynk/ajo/internal/models"
	"github.com/mmynk/ajo/internal/status"
	"github.com/mmynk/ajo/internal/storage/memory"
	"github.com/mmynk/ajo/internal/storage/sqlite"
)

const day = 24 * time.Hour

type testServer struct {
	url    string
	jwt    *auth.JWTManager
	clock  *atomic.Int64
	client *LedgerClient // anonymous
}

// as returns a client that authenticates as member.
func (s *testServer) as(t *testing.T, member string) *LedgerClient {
	t.Helper()
	token, err := s.jwt.Generate(member)
	require.NoError(t, err)
	return NewLedgerClient(http.DefaultClient, s.url,
		connect.WithInterceptors(middleware.BearerToken(token)),
	)
}

func (s *testServer) advance(d time.Duration) {
	s.clock.Add(int64(d / time.Second))
}

// setupTestServer creates a test server backed by a temporary SQLite database.
func setupTestServer(t *testing.T, opts ...engine.Option) *testServer {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clock := &atomic.Int64{}
	clock.Store(1_700_000_000)

	jwtManager := auth.NewJWTManager("test-secret-0123456789", time.Hour)
	svc := NewLedgerService(engine.New(store, opts...), status.NewProjector(store)).
		WithClock(func() time.Time { return time.Unix(clock.Load(), 0) })

	path, handler := NewLedgerServiceHandler(svc, connect.WithInterceptors(
		middleware.OptionalAuth(jwtManager),
		middleware.LoggingInterceptor(),
	))
	mux := http.NewServeMux()
	mux.Handle(path, handler)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &testServer{
		url:    server.URL,
		jwt:    jwtManager,
		clock:  clock,
		client: NewLedgerClient(http.DefaultClient, server.URL),
	}
}

func requireKind(t *testing.T, err error, want models.ErrorKind, code connect.Code) {
	t.Helper()
	require.Error(t, err)
	kind, ok := ErrorKindOf(err)
	require.True(t, ok, "expected an ErrorKind in %v", err)
	assert.Equal(t, want, kind)
	assert.Equal(t, code, connect.CodeOf(err))
}

func createGroup(t *testing.T, ts *testServer, members ...string) uint64 {
	t.Helper()
	ctx := context.Background()

	resp, err := ts.as(t, members[0]).CreateGroup(ctx, connect.NewRequest(&CreateGroupRequest{
		ContributionAmount: 100,
		CycleLength:        int64(day / time.Second),
		MaxMembers:         3,
	}))
	require.NoError(t, err)
	id := resp.Msg.Group.ID

	for _, m := range members[1:] {
		_, err := ts.as(t, m).JoinGroup(ctx, connect.NewRequest(&JoinGroupRequest{GroupID: id}))
		require.NoError(t, err)
	}
	return id
}

func TestCreateGroup(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()

	resp, err := ts.as(t, "alice").CreateGroup(ctx, connect.NewRequest(&CreateGroupRequest{
		ContributionAmount: 100,
		CycleLength:        86400,
		MaxMembers:         3,
	}))
	require.NoError(t, err)

	g := resp.Msg.Group
	assert.Equal(t, uint64(1), g.ID)
	assert.Equal(t, "alice", g.Creator)
	assert.Equal(t, []string{"alice"}, g.Members)
	assert.Equal(t, int64(1_700_000_000), g.CycleStartTime)
	assert.Equal(t, "forming", g.Phase)
}

func TestCreateGroup_Validation(t *testing.T) {
	ts := setupTestServer(t)
	_, err := ts.as(t, "alice").CreateGroup(context.Background(), connect.NewRequest(&CreateGroupRequest{
		ContributionAmount: 0,
		CycleLength:        86400,
		MaxMembers:         3,
	}))
	requireKind(t, err, models.ErrContributionAmountZero, connect.CodeInvalidArgument)
}

func TestMutationsRequireAuth(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()

	_, err := ts.client.CreateGroup(ctx, connect.NewRequest(&CreateGroupRequest{
		ContributionAmount: 100, CycleLength: 60, MaxMembers: 2,
	}))
	assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))

	forged := NewLedgerClient(http.DefaultClient, ts.url,
		connect.WithInterceptors(middleware.BearerToken("forged")))
	_, err = forged.CreateGroup(ctx, connect.NewRequest(&CreateGroupRequest{
		ContributionAmount: 100, CycleLength: 60, MaxMembers: 2,
	}))
	assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
}

func TestGetGroup_NotFound(t *testing.T) {
	ts := setupTestServer(t)

	_, err := ts.client.GetGroup(context.Background(), connect.NewRequest(&GetGroupRequest{GroupID: 404}))

	var connectErr *connect.Error
	require.True(t, errors.As(err, &connectErr), "expected connect.Error, got %T", err)
	assert.Equal(t, connect.CodeNotFound, connectErr.Code())
	requireKind(t, err, models.ErrGroupNotFound, connect.CodeNotFound)
}

func TestFullRotation(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()
	id := createGroup(t, ts, "alice", "bob", "carol")

	// Cycle 0: everyone pays.
	for _, m := range []string{"alice", "bob", "carol"} {
		_, err := ts.as(t, m).Contribute(ctx, connect.NewRequest(&ContributeRequest{GroupID: id, Amount: 100}))
		require.NoError(t, err)
	}
	_, err := ts.as(t, "bob").Contribute(ctx, connect.NewRequest(&ContributeRequest{GroupID: id, Amount: 100}))
	requireKind(t, err, models.ErrAlreadyContributed, connect.CodeAlreadyExists)

	ts.advance(day)
	payout, err := ts.as(t, "bob").ExecutePayout(ctx, connect.NewRequest(&ExecutePayoutRequest{GroupID: id}))
	require.NoError(t, err)
	assert.Equal(t, "alice", payout.Msg.Payout.Recipient)
	assert.Equal(t, int64(300), payout.Msg.Payout.Amount)
	assert.Equal(t, uint32(1), payout.Msg.Status.CurrentCycle)
	assert.Equal(t, "bob", payout.Msg.Status.NextRecipient)

	// Cycle 1: only carol pays.
	contributed, err := ts.as(t, "carol").Contribute(ctx, connect.NewRequest(&ContributeRequest{GroupID: id, Amount: 100}))
	require.NoError(t, err)
	assert.Equal(t, uint32(1), contributed.Msg.Status.ContributionsReceived)
	assert.Equal(t, []string{"alice", "bob"}, contributed.Msg.Status.PendingContributors)

	ts.advance(day)
	payout, err = ts.as(t, "carol").ExecutePayout(ctx, connect.NewRequest(&ExecutePayoutRequest{GroupID: id}))
	require.NoError(t, err)
	assert.Equal(t, "bob", payout.Msg.Payout.Recipient)
	assert.Equal(t, int64(100), payout.Msg.Payout.Amount)

	ts.advance(day)
	_, err = ts.as(t, "alice").ExecutePayout(ctx, connect.NewRequest(&ExecutePayoutRequest{GroupID: id}))
	require.NoError(t, err)

	st, err := ts.client.GetGroupStatus(ctx, connect.NewRequest(&GetGroupStatusRequest{GroupID: id}))
	require.NoError(t, err)
	assert.True(t, st.Msg.Status.IsComplete)
	assert.False(t, st.Msg.Status.HasNextRecipient)
	assert.Equal(t, uint32(3), st.Msg.Status.TotalMembers)

	_, err = ts.as(t, "alice").Contribute(ctx, connect.NewRequest(&ContributeRequest{GroupID: id, Amount: 100}))
	requireKind(t, err, models.ErrGroupComplete, connect.CodeFailedPrecondition)

	received, err := ts.client.HasReceivedPayout(ctx, connect.NewRequest(&HasReceivedPayoutRequest{GroupID: id, Member: "carol"}))
	require.NoError(t, err)
	assert.True(t, received.Msg.Received)

	positions, err := ts.client.GetMemberPositions(ctx, connect.NewRequest(&GetMemberPositionsRequest{GroupID: id}))
	require.NoError(t, err)
	require.Len(t, positions.Msg.Positions, 3)
	assert.Equal(t, int64(200), positions.Msg.Positions[0].Net)

	history, err := ts.client.GetContributionStatus(ctx, connect.NewRequest(&GetContributionStatusRequest{
		GroupID: id,
		Cycle:   new(uint32),
	}))
	require.NoError(t, err)
	assert.Equal(t, uint32(0), history.Msg.Cycle)
	for _, c := range history.Msg.Contributions {
		assert.True(t, c.HasContributed, c.Member)
	}

	verified, err := ts.client.VerifyJournal(ctx, connect.NewRequest(&VerifyJournalRequest{GroupID: id}))
	require.NoError(t, err)
	assert.True(t, verified.Msg.Valid)
}

func TestExecutePayout_FullOrExpired(t *testing.T) {
	ts := setupTestServer(t, engine.WithPayoutPolicy(engine.PayoutFullOrExpired))
	ctx := context.Background()
	id := createGroup(t, ts, "alice", "bob")

	_, err := ts.as(t, "alice").ExecutePayout(ctx, connect.NewRequest(&ExecutePayoutRequest{GroupID: id}))
	requireKind(t, err, models.ErrIncompleteContributions, connect.CodeFailedPrecondition)

	ts.advance(day)
	_, err = ts.as(t, "alice").ExecutePayout(ctx, connect.NewRequest(&ExecutePayoutRequest{GroupID: id}))
	require.NoError(t, err)
}

func TestMetadataAndCancel(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()
	id := createGroup(t, ts, "alice", "bob")

	_, err := ts.as(t, "bob").SetGroupMetadata(ctx, connect.NewRequest(&SetGroupMetadataRequest{GroupID: id, Name: "Mine"}))
	requireKind(t, err, models.ErrUnauthorized, connect.CodePermissionDenied)

	set, err := ts.as(t, "alice").SetGroupMetadata(ctx, connect.NewRequest(&SetGroupMetadataRequest{
		GroupID: id, Name: "Family circle", Description: "Monthly", Rules: "Pay by the 5th",
	}))
	require.NoError(t, err)
	assert.Equal(t, "Family circle", set.Msg.Metadata.Name)

	got, err := ts.client.GetGroupMetadata(ctx, connect.NewRequest(&GetGroupMetadataRequest{GroupID: id}))
	require.NoError(t, err)
	assert.Equal(t, "Pay by the 5th", got.Msg.Metadata.Rules)

	_, err = ts.as(t, "bob").Contribute(ctx, connect.NewRequest(&ContributeRequest{GroupID: id, Amount: 100}))
	require.NoError(t, err)

	_, err = ts.as(t, "bob").CancelGroup(ctx, connect.NewRequest(&CancelGroupRequest{GroupID: id}))
	requireKind(t, err, models.ErrOnlyCreatorCanCancel, connect.CodePermissionDenied)

	cancelled, err := ts.as(t, "alice").CancelGroup(ctx, connect.NewRequest(&CancelGroupRequest{GroupID: id}))
	require.NoError(t, err)
	require.Len(t, cancelled.Msg.Refunds, 1)
	assert.Equal(t, Refund{Member: "bob", Amount: 100, Reason: "creator_cancellation", RefundedAt: 1_700_000_000}, cancelled.Msg.Refunds[0])

	g, err := ts.client.GetGroup(ctx, connect.NewRequest(&GetGroupRequest{GroupID: id}))
	require.NoError(t, err)
	assert.Equal(t, "cancelled", g.Msg.Group.Phase)
}

func TestListEvents(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()
	id := createGroup(t, ts, "alice", "bob")

	resp, err := ts.client.ListEvents(ctx, connect.NewRequest(&ListEventsRequest{GroupID: id}))
	require.NoError(t, err)
	require.Len(t, resp.Msg.Events, 2)
	assert.Equal(t, "group.created", resp.Msg.Events[0].Type)
	assert.Equal(t, "member.joined", resp.Msg.Events[1].Type)
	assert.Equal(t, resp.Msg.Events[0].ChainHash, resp.Msg.Events[1].PrevHash)

	var joined struct {
		GroupID uint64 `json:"group_id"`
		Member  string `json:"member"`
	}
	require.NoError(t, json.Unmarshal(resp.Msg.Events[1].Payload, &joined))
	assert.Equal(t, "bob", joined.Member)

	page, err := ts.client.ListEvents(ctx, connect.NewRequest(&ListEventsRequest{GroupID: id, AfterSeq: 1, Limit: 5}))
	require.NoError(t, err)
	require.Len(t, page.Msg.Events, 1)
	assert.Equal(t, uint64(2), page.Msg.Events[0].Seq)
}

func TestCreateGroup_CycleTooLong(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()

	_, err := ts.as(t, "alice").CreateGroup(ctx, connect.NewRequest(&CreateGroupRequest{
		ContributionAmount: 100,
		CycleLength:        math.MaxInt64,
		MaxMembers:         3,
	}))
	requireKind(t, err, models.ErrCycleDurationTooLong, connect.CodeInvalidArgument)

	// The next group still gets the first id and its status stays readable.
	id := createGroup(t, ts, "alice")
	assert.Equal(t, uint64(1), id)
	_, err = ts.client.GetGroupStatus(ctx, connect.NewRequest(&GetGroupStatusRequest{GroupID: id}))
	require.NoError(t, err)
}

func TestMutationSucceedsWithoutStatus(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	e := engine.New(store)
	id, err := e.CreateGroup(ctx, "alice", 100, 60, 2, 1_700_000_000)
	require.NoError(t, err)
	require.NoError(t, e.JoinGroup(ctx, id, "bob", 1_700_000_000))

	// The projector reads a store that has never seen the group.
	svc := NewLedgerService(e, status.NewProjector(memory.New())).
		WithClock(func() time.Time { return time.Unix(1_700_000_010, 0) })
	ctx = middleware.WithMember(ctx, "bob")

	contributed, err := svc.Contribute(ctx, connect.NewRequest(&ContributeRequest{GroupID: id, Amount: 100}))
	require.NoError(t, err)
	assert.Nil(t, contributed.Msg.Status)

	paid, err := svc.ExecutePayout(ctx, connect.NewRequest(&ExecutePayoutRequest{GroupID: id}))
	require.NoError(t, err)
	assert.Equal(t, "alice", paid.Msg.Payout.Recipient)
	assert.Nil(t, paid.Msg.Status)

	g, err := e.GetGroup(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), g.CurrentCycle)
}

func TestRefundVote(t *testing.T) {
	ts := setupTestServer(t, engine.WithRefundVotingPeriod(3600))
	ctx := context.Background()
	id := createGroup(t, ts, "alice", "bob", "carol")

	_, err := ts.client.GetRefundRequest(ctx, connect.NewRequest(&GetRefundRequestRequest{GroupID: id}))
	requireKind(t, err, models.ErrNoRefundRequest, connect.CodeNotFound)

	_, err = ts.as(t, "alice").Contribute(ctx, connect.NewRequest(&ContributeRequest{GroupID: id, Amount: 100}))
	require.NoError(t, err)

	_, err = ts.as(t, "bob").RequestRefund(ctx, connect.NewRequest(&RequestRefundRequest{GroupID: id}))
	requireKind(t, err, models.ErrCycleNotExpired, connect.CodeFailedPrecondition)
	_, err = ts.client.RequestRefund(ctx, connect.NewRequest(&RequestRefundRequest{GroupID: id}))
	assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))

	ts.advance(day + time.Second)
	opened, err := ts.as(t, "bob").RequestRefund(ctx, connect.NewRequest(&RequestRefundRequest{GroupID: id}))
	require.NoError(t, err)
	assert.Equal(t, "bob", opened.Msg.Request.Requester)
	assert.Equal(t, opened.Msg.Request.CreatedAt+3600, opened.Msg.Request.VotingDeadline)

	_, err = ts.as(t, "carol").RequestRefund(ctx, connect.NewRequest(&RequestRefundRequest{GroupID: id}))
	requireKind(t, err, models.ErrRefundRequestExists, connect.CodeAlreadyExists)

	for member, inFavor := range map[string]bool{"alice": true, "bob": true, "carol": false} {
		_, err := ts.as(t, member).VoteRefund(ctx, connect.NewRequest(&VoteRefundRequest{GroupID: id, InFavor: inFavor}))
		require.NoError(t, err, member)
	}
	_, err = ts.as(t, "carol").VoteRefund(ctx, connect.NewRequest(&VoteRefundRequest{GroupID: id, InFavor: true}))
	requireKind(t, err, models.ErrAlreadyVoted, connect.CodeAlreadyExists)
	_, err = ts.as(t, "mallory").VoteRefund(ctx, connect.NewRequest(&VoteRefundRequest{GroupID: id, InFavor: true}))
	requireKind(t, err, models.ErrNotAMember, connect.CodePermissionDenied)

	_, err = ts.as(t, "alice").ExecuteRefund(ctx, connect.NewRequest(&ExecuteRefundRequest{GroupID: id}))
	requireKind(t, err, models.ErrVotingPeriodActive, connect.CodeFailedPrecondition)

	ts.advance(time.Hour + time.Second)
	_, err = ts.as(t, "carol").VoteRefund(ctx, connect.NewRequest(&VoteRefundRequest{GroupID: id, InFavor: true}))
	requireKind(t, err, models.ErrAlreadyVoted, connect.CodeAlreadyExists)

	executed, err := ts.as(t, "carol").ExecuteRefund(ctx, connect.NewRequest(&ExecuteRefundRequest{GroupID: id}))
	require.NoError(t, err)
	assert.True(t, executed.Msg.Request.Approved)
	assert.Equal(t, uint64(66), executed.Msg.Request.ApprovalPercent)
	require.Len(t, executed.Msg.Refunds, 1)
	assert.Equal(t, Refund{Member: "alice", Amount: 100, Reason: "member_vote", RefundedAt: ts.clock.Load()}, executed.Msg.Refunds[0])

	_, err = ts.as(t, "carol").ExecuteRefund(ctx, connect.NewRequest(&ExecuteRefundRequest{GroupID: id}))
	requireKind(t, err, models.ErrRefundAlreadyExecuted, connect.CodeFailedPrecondition)

	got, err := ts.client.GetRefundRequest(ctx, connect.NewRequest(&GetRefundRequestRequest{GroupID: id}))
	require.NoError(t, err)
	assert.Equal(t, executed.Msg.Request, got.Msg.Request)

	g, err := ts.client.GetGroup(ctx, connect.NewRequest(&GetGroupRequest{GroupID: id}))
	require.NoError(t, err)
	assert.Equal(t, "cancelled", g.Msg.Group.Phase)
}
