package calculator

import (
	"fmt"

	"github.com/mmynk/ajo/internal/models"
)

// MemberPositions aggregates contribution, payout and refund records into one
// position per member. The result follows the order of members; records for
// addresses outside members are rejected.
//
// Algorithm:
//   - Contributed: sum of the member's contribution records across all cycles
//   - Received: the member's payout, if any
//   - Refunded: sum of refunds paid back to the member
//   - Net = Received + Refunded - Contributed
func MemberPositions(
	members []string,
	contributions []models.ContributionRecord,
	payouts []models.PayoutRecord,
	refunds []models.RefundRecord,
) ([]models.MemberPosition, error) {
	positions := make([]models.MemberPosition, len(members))
	index := make(map[string]int, len(members))
	for i, m := range members {
		positions[i].Member = m
		index[m] = i
	}

	lookup := func(member string) (*models.MemberPosition, error) {
		i, ok := index[member]
		if !ok {
			return nil, fmt.Errorf("record references non-member %q", member)
		}
		return &positions[i], nil
	}

	var err error
	for _, c := range contributions {
		p, lerr := lookup(c.Member)
		if lerr != nil {
			return nil, lerr
		}
		if p.Contributed, err = AddInt64(p.Contributed, c.Amount); err != nil {
			return nil, err
		}
	}
	for _, po := range payouts {
		p, lerr := lookup(po.Recipient)
		if lerr != nil {
			return nil, lerr
		}
		if p.Received, err = AddInt64(p.Received, po.Amount); err != nil {
			return nil, err
		}
	}
	for _, r := range refunds {
		p, lerr := lookup(r.Member)
		if lerr != nil {
			return nil, lerr
		}
		if p.Refunded, err = AddInt64(p.Refunded, r.Amount); err != nil {
			return nil, err
		}
	}

	for i := range positions {
		p := &positions[i]
		in, err := AddInt64(p.Received, p.Refunded)
		if err != nil {
			return nil, err
		}
		if p.Net, err = SubInt64(in, p.Contributed); err != nil {
			return nil, err
		}
	}

	return positions, nil
}
