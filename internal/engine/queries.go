package engine

import (
	"context"
	"fmt"

	"github.com/mmynk/ajo/internal/events"
	"github.com/mmynk/ajo/internal/models"
	"github.com/mmynk/ajo/internal/storage"
)

// GetGroup returns a copy of the stored group.
func (e *Engine) GetGroup(ctx context.Context, groupID uint64) (*models.Group, error) {
	var g *models.Group
	err := e.view(ctx, "GetGroup", groupID, func(ctx context.Context, r storage.Reader) error {
		var err error
		g, err = r.GetGroup(ctx, groupID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

// ListMembers returns the members in join order.
func (e *Engine) ListMembers(ctx context.Context, groupID uint64) ([]string, error) {
	g, err := e.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return g.Members, nil
}

// IsMember reports whether member has joined the group.
func (e *Engine) IsMember(ctx context.Context, groupID uint64, member string) (bool, error) {
	g, err := e.GetGroup(ctx, groupID)
	if err != nil {
		return false, err
	}
	return g.HasMember(member), nil
}

// IsComplete reports whether every member has received a payout.
func (e *Engine) IsComplete(ctx context.Context, groupID uint64) (bool, error) {
	g, err := e.GetGroup(ctx, groupID)
	if err != nil {
		return false, err
	}
	return g.IsComplete, nil
}

// HasReceivedPayout reports whether member has already been paid.
func (e *Engine) HasReceivedPayout(ctx context.Context, groupID uint64, member string) (bool, error) {
	var received bool
	err := e.view(ctx, "HasReceivedPayout", groupID, func(ctx context.Context, r storage.Reader) error {
		if _, err := r.GetGroup(ctx, groupID); err != nil {
			return err
		}
		p, err := r.GetPayout(ctx, groupID, member)
		if err != nil {
			return err
		}
		received = p != nil
		return nil
	})
	return received, err
}

// GetGroupMetadata returns the metadata set by the creator. It fails with
// ErrGroupNotFound when the group does not exist or has no metadata yet.
func (e *Engine) GetGroupMetadata(ctx context.Context, groupID uint64) (*models.GroupMetadata, error) {
	var meta *models.GroupMetadata
	err := e.view(ctx, "GetGroupMetadata", groupID, func(ctx context.Context, r storage.Reader) error {
		var err error
		meta, err = r.GetMetadata(ctx, groupID)
		if err != nil {
			return err
		}
		if meta == nil {
			return models.ErrGroupNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return meta, nil
}

// ListEvents pages through a group's journal. limit <= 0 returns everything
// after afterSeq.
func (e *Engine) ListEvents(ctx context.Context, groupID uint64, afterSeq uint64, limit int) ([]events.Record, error) {
	var recs []events.Record
	err := e.view(ctx, "ListEvents", groupID, func(ctx context.Context, r storage.Reader) error {
		if _, err := r.GetGroup(ctx, groupID); err != nil {
			return err
		}
		var err error
		recs, err = r.ListRecords(ctx, groupID, afterSeq, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// VerifyJournal recomputes the group's hash chain and returns
// events.ErrChainBroken if any record was altered, dropped or reordered.
func (e *Engine) VerifyJournal(ctx context.Context, groupID uint64) error {
	recs, err := e.ListEvents(ctx, groupID, 0, 0)
	if err != nil {
		return err
	}
	if err := events.VerifyChain(recs); err != nil {
		return fmt.Errorf("group %d: %w", groupID, err)
	}
	return nil
}
