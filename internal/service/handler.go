package service

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
)

// LedgerServiceName is the fully-qualified name of the LedgerService.
const LedgerServiceName = "ajo.v1.LedgerService"

// Procedure paths, in the form Connect routes them.
const (
	CreateGroupProcedure           = "/" + LedgerServiceName + "/CreateGroup"
	JoinGroupProcedure             = "/" + LedgerServiceName + "/JoinGroup"
	ContributeProcedure            = "/" + LedgerServiceName + "/Contribute"
	ExecutePayoutProcedure         = "/" + LedgerServiceName + "/ExecutePayout"
	GetGroupStatusProcedure        = "/" + LedgerServiceName + "/GetGroupStatus"
	GetGroupProcedure              = "/" + LedgerServiceName + "/GetGroup"
	GetContributionStatusProcedure = "/" + LedgerServiceName + "/GetContributionStatus"
	SetGroupMetadataProcedure      = "/" + LedgerServiceName + "/SetGroupMetadata"
	GetGroupMetadataProcedure      = "/" + LedgerServiceName + "/GetGroupMetadata"
	CancelGroupProcedure           = "/" + LedgerServiceName + "/CancelGroup"
	GetMemberPositionsProcedure    = "/" + LedgerServiceName + "/GetMemberPositions"
	HasReceivedPayoutProcedure     = "/" + LedgerServiceName + "/HasReceivedPayout"
	ListEventsProcedure            = "/" + LedgerServiceName + "/ListEvents"
	VerifyJournalProcedure         = "/" + LedgerServiceName + "/VerifyJournal"
	RequestRefundProcedure         = "/" + LedgerServiceName + "/RequestRefund"
	VoteRefundProcedure            = "/" + LedgerServiceName + "/VoteRefund"
	ExecuteRefundProcedure         = "/" + LedgerServiceName + "/ExecuteRefund"
	GetRefundRequestProcedure      = "/" + LedgerServiceName + "/GetRefundRequest"
)

// NewLedgerServiceHandler builds an HTTP handler from the service
// implementation. It returns the path on which to mount the handler and the
// handler itself.
func NewLedgerServiceHandler(svc *LedgerService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(Codec{})}, opts...)

	routes := map[string]http.Handler{
		CreateGroupProcedure:           connect.NewUnaryHandler(CreateGroupProcedure, svc.CreateGroup, opts...),
		JoinGroupProcedure:             connect.NewUnaryHandler(JoinGroupProcedure, svc.JoinGroup, opts...),
		ContributeProcedure:            connect.NewUnaryHandler(ContributeProcedure, svc.Contribute, opts...),
		ExecutePayoutProcedure:         connect.NewUnaryHandler(ExecutePayoutProcedure, svc.ExecutePayout, opts...),
		GetGroupStatusProcedure:        connect.NewUnaryHandler(GetGroupStatusProcedure, svc.GetGroupStatus, opts...),
		GetGroupProcedure:              connect.NewUnaryHandler(GetGroupProcedure, svc.GetGroup, opts...),
		GetContributionStatusProcedure: connect.NewUnaryHandler(GetContributionStatusProcedure, svc.GetContributionStatus, opts...),
		SetGroupMetadataProcedure:      connect.NewUnaryHandler(SetGroupMetadataProcedure, svc.SetGroupMetadata, opts...),
		GetGroupMetadataProcedure:      connect.NewUnaryHandler(GetGroupMetadataProcedure, svc.GetGroupMetadata, opts...),
		CancelGroupProcedure:           connect.NewUnaryHandler(CancelGroupProcedure, svc.CancelGroup, opts...),
		GetMemberPositionsProcedure:    connect.NewUnaryHandler(GetMemberPositionsProcedure, svc.GetMemberPositions, opts...),
		HasReceivedPayoutProcedure:     connect.NewUnaryHandler(HasReceivedPayoutProcedure, svc.HasReceivedPayout, opts...),
		ListEventsProcedure:            connect.NewUnaryHandler(ListEventsProcedure, svc.ListEvents, opts...),
		VerifyJournalProcedure:         connect.NewUnaryHandler(VerifyJournalProcedure, svc.VerifyJournal, opts...),
		RequestRefundProcedure:         connect.NewUnaryHandler(RequestRefundProcedure, svc.RequestRefund, opts...),
		VoteRefundProcedure:            connect.NewUnaryHandler(VoteRefundProcedure, svc.VoteRefund, opts...),
		ExecuteRefundProcedure:         connect.NewUnaryHandler(ExecuteRefundProcedure, svc.ExecuteRefund, opts...),
		GetRefundRequestProcedure:      connect.NewUnaryHandler(GetRefundRequestProcedure, svc.GetRefundRequest, opts...),
	}

	return "/" + LedgerServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h, ok := routes[r.URL.Path]; ok {
			h.ServeHTTP(w, r)
			return
		}
		http.NotFound(w, r)
	})
}

// LedgerClient is a client for the LedgerService.
type LedgerClient struct {
	createGroup           *connect.Client[CreateGroupRequest, CreateGroupResponse]
	joinGroup             *connect.Client[JoinGroupRequest, JoinGroupResponse]
	contribute            *connect.Client[ContributeRequest, ContributeResponse]
	executePayout         *connect.Client[ExecutePayoutRequest, ExecutePayoutResponse]
	getGroupStatus        *connect.Client[GetGroupStatusRequest, GetGroupStatusResponse]
	getGroup              *connect.Client[GetGroupRequest, GetGroupResponse]
	getContributionStatus *connect.Client[GetContributionStatusRequest, GetContributionStatusResponse]
	setGroupMetadata      *connect.Client[SetGroupMetadataRequest, SetGroupMetadataResponse]
	getGroupMetadata      *connect.Client[GetGroupMetadataRequest, GetGroupMetadataResponse]
	cancelGroup           *connect.Client[CancelGroupRequest, CancelGroupResponse]
	getMemberPositions    *connect.Client[GetMemberPositionsRequest, GetMemberPositionsResponse]
	hasReceivedPayout     *connect.Client[HasReceivedPayoutRequest, HasReceivedPayoutResponse]
	listEvents            *connect.Client[ListEventsRequest, ListEventsResponse]
	verifyJournal         *connect.Client[VerifyJournalRequest, VerifyJournalResponse]
	requestRefund         *connect.Client[RequestRefundRequest, RequestRefundResponse]
	voteRefund            *connect.Client[VoteRefundRequest, VoteRefundResponse]
	executeRefund         *connect.Client[ExecuteRefundRequest, ExecuteRefundResponse]
	getRefundRequest      *connect.Client[GetRefundRequestRequest, GetRefundRequestResponse]
}

// NewLedgerClient constructs a client for the LedgerService at baseURL
// (for example, http://localhost:8080).
func NewLedgerClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *LedgerClient {
	opts = append([]connect.ClientOption{connect.WithCodec(Codec{})}, opts...)
	return &LedgerClient{
		createGroup:           connect.NewClient[CreateGroupRequest, CreateGroupResponse](httpClient, baseURL+CreateGroupProcedure, opts...),
		joinGroup:             connect.NewClient[JoinGroupRequest, JoinGroupResponse](httpClient, baseURL+JoinGroupProcedure, opts...),
		contribute:            connect.NewClient[ContributeRequest, ContributeResponse](httpClient, baseURL+ContributeProcedure, opts...),
		executePayout:         connect.NewClient[ExecutePayoutRequest, ExecutePayoutResponse](httpClient, baseURL+ExecutePayoutProcedure, opts...),
		getGroupStatus:        connect.NewClient[GetGroupStatusRequest, GetGroupStatusResponse](httpClient, baseURL+GetGroupStatusProcedure, opts...),
		getGroup:              connect.NewClient[GetGroupRequest, GetGroupResponse](httpClient, baseURL+GetGroupProcedure, opts...),
		getContributionStatus: connect.NewClient[GetContributionStatusRequest, GetContributionStatusResponse](httpClient, baseURL+GetContributionStatusProcedure, opts...),
		setGroupMetadata:      connect.NewClient[SetGroupMetadataRequest, SetGroupMetadataResponse](httpClient, baseURL+SetGroupMetadataProcedure, opts...),
		getGroupMetadata:      connect.NewClient[GetGroupMetadataRequest, GetGroupMetadataResponse](httpClient, baseURL+GetGroupMetadataProcedure, opts...),
		cancelGroup:           connect.NewClient[CancelGroupRequest, CancelGroupResponse](httpClient, baseURL+CancelGroupProcedure, opts...),
		getMemberPositions:    connect.NewClient[GetMemberPositionsRequest, GetMemberPositionsResponse](httpClient, baseURL+GetMemberPositionsProcedure, opts...),
		hasReceivedPayout:     connect.NewClient[HasReceivedPayoutRequest, HasReceivedPayoutResponse](httpClient, baseURL+HasReceivedPayoutProcedure, opts...),
		listEvents:            connect.NewClient[ListEventsRequest, ListEventsResponse](httpClient, baseURL+ListEventsProcedure, opts...),
		verifyJournal:         connect.NewClient[VerifyJournalRequest, VerifyJournalResponse](httpClient, baseURL+VerifyJournalProcedure, opts...),
		requestRefund:         connect.NewClient[RequestRefundRequest, RequestRefundResponse](httpClient, baseURL+RequestRefundProcedure, opts...),
		voteRefund:            connect.NewClient[VoteRefundRequest, VoteRefundResponse](httpClient, baseURL+VoteRefundProcedure, opts...),
		executeRefund:         connect.NewClient[ExecuteRefundRequest, ExecuteRefundResponse](httpClient, baseURL+ExecuteRefundProcedure, opts...),
		getRefundRequest:      connect.NewClient[GetRefundRequestRequest, GetRefundRequestResponse](httpClient, baseURL+GetRefundRequestProcedure, opts...),
	}
}

func (c *LedgerClient) CreateGroup(ctx context.Context, req *connect.Request[CreateGroupRequest]) (*connect.Response[CreateGroupResponse], error) {
	return c.createGroup.CallUnary(ctx, req)
}

func (c *LedgerClient) JoinGroup(ctx context.Context, req *connect.Request[JoinGroupRequest]) (*connect.Response[JoinGroupResponse], error) {
	return c.joinGroup.CallUnary(ctx, req)
}

func (c *LedgerClient) Contribute(ctx context.Context, req *connect.Request[ContributeRequest]) (*connect.Response[ContributeResponse], error) {
	return c.contribute.CallUnary(ctx, req)
}

func (c *LedgerClient) ExecutePayout(ctx context.Context, req *connect.Request[ExecutePayoutRequest]) (*connect.Response[ExecutePayoutResponse], error) {
	return c.executePayout.CallUnary(ctx, req)
}

func (c *LedgerClient) GetGroupStatus(ctx context.Context, req *connect.Request[GetGroupStatusRequest]) (*connect.Response[GetGroupStatusResponse], error) {
	return c.getGroupStatus.CallUnary(ctx, req)
}

func (c *LedgerClient) GetGroup(ctx context.Context, req *connect.Request[GetGroupRequest]) (*connect.Response[GetGroupResponse], error) {
	return c.getGroup.CallUnary(ctx, req)
}

func (c *LedgerClient) GetContributionStatus(ctx context.Context, req *connect.Request[GetContributionStatusRequest]) (*connect.Response[GetContributionStatusResponse], error) {
	return c.getContributionStatus.CallUnary(ctx, req)
}

func (c *LedgerClient) SetGroupMetadata(ctx context.Context, req *connect.Request[SetGroupMetadataRequest]) (*connect.Response[SetGroupMetadataResponse], error) {
	return c.setGroupMetadata.CallUnary(ctx, req)
}

func (c *LedgerClient) GetGroupMetadata(ctx context.Context, req *connect.Request[GetGroupMetadataRequest]) (*connect.Response[GetGroupMetadataResponse], error) {
	return c.getGroupMetadata.CallUnary(ctx, req)
}

func (c *LedgerClient) CancelGroup(ctx context.Context, req *connect.Request[CancelGroupRequest]) (*connect.Response[CancelGroupResponse], error) {
	return c.cancelGroup.CallUnary(ctx, req)
}

func (c *LedgerClient) GetMemberPositions(ctx context.Context, req *connect.Request[GetMemberPositionsRequest]) (*connect.Response[GetMemberPositionsResponse], error) {
	return c.getMemberPositions.CallUnary(ctx, req)
}

func (c *LedgerClient) HasReceivedPayout(ctx context.Context, req *connect.Request[HasReceivedPayoutRequest]) (*connect.Response[HasReceivedPayoutResponse], error) {
	return c.hasReceivedPayout.CallUnary(ctx, req)
}

func (c *LedgerClient) ListEvents(ctx context.Context, req *connect.Request[ListEventsRequest]) (*connect.Response[ListEventsResponse], error) {
	return c.listEvents.CallUnary(ctx, req)
}

func (c *LedgerClient) VerifyJournal(ctx context.Context, req *connect.Request[VerifyJournalRequest]) (*connect.Response[VerifyJournalResponse], error) {
	return c.verifyJournal.CallUnary(ctx, req)
}

func (c *LedgerClient) RequestRefund(ctx context.Context, req *connect.Request[RequestRefundRequest]) (*connect.Response[RequestRefundResponse], error) {
	return c.requestRefund.CallUnary(ctx, req)
}

func (c *LedgerClient) VoteRefund(ctx context.Context, req *connect.Request[VoteRefundRequest]) (*connect.Response[VoteRefundResponse], error) {
	return c.voteRefund.CallUnary(ctx, req)
}

func (c *LedgerClient) ExecuteRefund(ctx context.Context, req *connect.Request[ExecuteRefundRequest]) (*connect.Response[ExecuteRefundResponse], error) {
	return c.executeRefund.CallUnary(ctx, req)
}

func (c *LedgerClient) GetRefundRequest(ctx context.Context, req *connect.Request[GetRefundRequestRequest]) (*connect.Response[GetRefundRequestResponse], error) {
	return c.getRefundRequest.CallUnary(ctx, req)
}
