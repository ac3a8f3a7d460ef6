// Package status derives read-only views of a group from stored state.
// Nothing is cached or persisted; every call reads a fresh snapshot.
package status

import (
	"context"

	"github.com/mmynk/ajo/internal/calculator"
	"github.com/mmynk/ajo/internal/models"
	"github.com/mmynk/ajo/internal/storage"
)

// Projector builds GroupStatus and related projections.
type Projector struct {
	store storage.Store
}

// NewProjector creates a Projector reading from store.
func NewProjector(store storage.Store) *Projector {
	return &Projector{store: store}
}

// GroupStatus returns the status of a group as seen at now.
func (p *Projector) GroupStatus(ctx context.Context, groupID uint64, now int64) (*models.GroupStatus, error) {
	var st *models.GroupStatus
	err := p.store.View(ctx, func(r storage.Reader) error {
		g, err := r.GetGroup(ctx, groupID)
		if err != nil {
			return err
		}
		contributions, err := r.ListContributions(ctx, groupID, g.CurrentCycle)
		if err != nil {
			return err
		}
		st, err = project(g, contributions, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

func project(g *models.Group, contributions []models.ContributionRecord, now int64) (*models.GroupStatus, error) {
	end, err := calculator.CycleEndTime(g.CycleStartTime, g.CycleLength)
	if err != nil {
		return nil, err
	}

	paid := make(map[string]bool, len(contributions))
	for _, c := range contributions {
		paid[c.Member] = true
	}

	pending := make([]string, 0, len(g.Members))
	var received uint32
	for _, m := range g.Members {
		if paid[m] {
			received++
		} else {
			pending = append(pending, m)
		}
	}

	next, hasNext := g.NextRecipient()
	return &models.GroupStatus{
		GroupID:               g.ID,
		CurrentCycle:          g.CurrentCycle,
		TotalMembers:          g.MemberCount(),
		IsComplete:            g.IsComplete,
		IsCancelled:           g.IsCancelled,
		Phase:                 g.Phase(),
		NextRecipient:         next,
		HasNextRecipient:      hasNext,
		ContributionsReceived: received,
		PendingContributors:   pending,
		CycleStartTime:        g.CycleStartTime,
		CycleEndTime:          end,
		CurrentTime:           now,
		IsCycleActive:         now < end,
	}, nil
}

// ContributionStatus lists, in member order, whether each member paid into
// cycle. Past and future cycle numbers are accepted.
func (p *Projector) ContributionStatus(ctx context.Context, groupID uint64, cycle uint32) ([]models.MemberContribution, error) {
	var out []models.MemberContribution
	err := p.store.View(ctx, func(r storage.Reader) error {
		g, err := r.GetGroup(ctx, groupID)
		if err != nil {
			return err
		}
		contributions, err := r.ListContributions(ctx, groupID, cycle)
		if err != nil {
			return err
		}

		paid := make(map[string]bool, len(contributions))
		for _, c := range contributions {
			paid[c.Member] = true
		}
		out = make([]models.MemberContribution, len(g.Members))
		for i, m := range g.Members {
			out[i] = models.MemberContribution{Member: m, HasContributed: paid[m]}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MemberPositions returns each member's lifetime totals and net position.
func (p *Projector) MemberPositions(ctx context.Context, groupID uint64) ([]models.MemberPosition, error) {
	var positions []models.MemberPosition
	err := p.store.View(ctx, func(r storage.Reader) error {
		g, err := r.GetGroup(ctx, groupID)
		if err != nil {
			return err
		}
		contributions, err := r.ListAllContributions(ctx, groupID)
		if err != nil {
			return err
		}
		payouts, err := r.ListPayouts(ctx, groupID)
		if err != nil {
			return err
		}
		refunds, err := r.ListRefunds(ctx, groupID)
		if err != nil {
			return err
		}
		positions, err = calculator.MemberPositions(g.Members, contributions, payouts, refunds)
		return err
	})
	if err != nil {
		return nil, err
	}
	return positions, nil
}
