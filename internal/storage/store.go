// Package storage provides abstractions for persistent ledger storage.
package storage

import (
	"context"

	"github.com/mmynk/ajo/internal/events"
	"github.com/mmynk/ajo/internal/models"
)

// Store defines the ledger's durable key-value persistence.
// This abstraction allows swapping storage backends (SQLite, in-memory)
// without changing the engine.
//
// Groups are keyed by ID, contribution markers by (group, cycle, member),
// payout records by (group, member), refund votes by (group, voter) and
// journal records by (group, seq).
type Store interface {
	// Atomic runs fn as one all-or-nothing unit of work. If fn returns an
	// error nothing it wrote is visible afterwards.
	Atomic(ctx context.Context, fn func(tx Tx) error) error

	// View runs fn against a consistent read-only snapshot.
	View(ctx context.Context, fn func(r Reader) error) error

	// Close releases any resources held by the store.
	Close() error
}

// Reader holds the read operations available inside View and Atomic.
type Reader interface {
	// GetGroup returns the group or models.ErrGroupNotFound.
	GetGroup(ctx context.Context, groupID uint64) (*models.Group, error)

	// ListGroupIDs returns every group ID in ascending order.
	ListGroupIDs(ctx context.Context) ([]uint64, error)

	// HasContributed reports whether a marker exists for (group, cycle, member).
	HasContributed(ctx context.Context, groupID uint64, cycle uint32, member string) (bool, error)

	// ListContributions returns the markers of one cycle.
	ListContributions(ctx context.Context, groupID uint64, cycle uint32) ([]models.ContributionRecord, error)

	// ListAllContributions returns every marker of a group ordered by cycle.
	ListAllContributions(ctx context.Context, groupID uint64) ([]models.ContributionRecord, error)

	// GetPayout returns the payout a member received, or nil if none.
	GetPayout(ctx context.Context, groupID uint64, member string) (*models.PayoutRecord, error)

	// ListPayouts returns a group's payouts ordered by cycle.
	ListPayouts(ctx context.Context, groupID uint64) ([]models.PayoutRecord, error)

	// ListRefunds returns a group's refunds.
	ListRefunds(ctx context.Context, groupID uint64) ([]models.RefundRecord, error)

	// GetMetadata returns the group's metadata, or nil if none was set.
	GetMetadata(ctx context.Context, groupID uint64) (*models.GroupMetadata, error)

	// GetRefundRequest returns the group's refund request, or nil if none was made.
	GetRefundRequest(ctx context.Context, groupID uint64) (*models.RefundRequest, error)

	// HasVoted reports whether voter has a ballot on the group's refund request.
	HasVoted(ctx context.Context, groupID uint64, voter string) (bool, error)

	// ListRecords returns up to limit journal records with Seq > afterSeq.
	// A limit <= 0 returns all of them.
	ListRecords(ctx context.Context, groupID uint64, afterSeq uint64, limit int) ([]events.Record, error)

	// LastRecord returns the newest journal record of a group.
	LastRecord(ctx context.Context, groupID uint64) (events.Record, bool, error)
}

// Tx holds the writes available inside Atomic.
type Tx interface {
	Reader

	// NextGroupID allocates a unique group ID. The first ID is 1.
	NextGroupID(ctx context.Context) (uint64, error)

	// CreateGroup persists a new group with its initial members.
	CreateGroup(ctx context.Context, group *models.Group) error

	// UpdateGroup persists the group's mutable fields. Members are append-only:
	// entries beyond those already stored are added in order.
	UpdateGroup(ctx context.Context, group *models.Group) error

	// RecordContribution stores a marker. Fails if one already exists.
	RecordContribution(ctx context.Context, rec models.ContributionRecord) error

	// RecordPayout stores a payout record. Fails if the member was already paid.
	RecordPayout(ctx context.Context, rec models.PayoutRecord) error

	// RecordRefund stores a refund record.
	RecordRefund(ctx context.Context, rec models.RefundRecord) error

	// PutMetadata creates or replaces a group's metadata.
	PutMetadata(ctx context.Context, meta models.GroupMetadata) error

	// PutRefundRequest creates or replaces the group's refund request.
	PutRefundRequest(ctx context.Context, req models.RefundRequest) error

	// RecordVote stores a ballot. Fails if the voter already voted.
	RecordVote(ctx context.Context, vote models.RefundVote) error

	// AppendRecord adds a journal record.
	AppendRecord(ctx context.Context, rec events.Record) error
}

var _ events.Journal = Tx(nil)
