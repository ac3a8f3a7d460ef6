// Package memory provides an in-memory implementation of the storage.Store
// interface, used by tests and by the server when no database path is set.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/mmynk/ajo/internal/events"
	"github.com/mmynk/ajo/internal/models"
	"github.com/mmynk/ajo/internal/storage"
)

var _ storage.Store = (*Store)(nil)

// state is one layer of keyed data. The committed store is a state, and so
// is the pending overlay of each transaction. Everything but the group table
// is indexed by group ID first, so reads touch one group's records only.
type state struct {
	nextID         uint64
	groups         map[uint64]*models.Group
	contributions  map[uint64]map[uint32]map[string]models.ContributionRecord
	payouts        map[uint64]map[string]models.PayoutRecord
	refunds        map[uint64][]models.RefundRecord
	metadata       map[uint64]models.GroupMetadata
	refundRequests map[uint64]models.RefundRequest
	votes          map[uint64]map[string]models.RefundVote
	records        map[uint64][]events.Record
}

func newState() *state {
	return &state{
		groups:         make(map[uint64]*models.Group),
		contributions:  make(map[uint64]map[uint32]map[string]models.ContributionRecord),
		payouts:        make(map[uint64]map[string]models.PayoutRecord),
		refunds:        make(map[uint64][]models.RefundRecord),
		metadata:       make(map[uint64]models.GroupMetadata),
		refundRequests: make(map[uint64]models.RefundRequest),
		votes:          make(map[uint64]map[string]models.RefundVote),
		records:        make(map[uint64][]events.Record),
	}
}

// bucket returns m[k], creating it if needed.
func bucket[K1, K2 comparable, V any](m map[K1]map[K2]V, k K1) map[K2]V {
	b, ok := m[k]
	if !ok {
		b = make(map[K2]V)
		m[k] = b
	}
	return b
}

// Store keeps the ledger in maps guarded by a RWMutex. Atomic holds the
// write lock for the whole unit of work and only merges its overlay on success.
type Store struct {
	mu   sync.RWMutex
	base *state
}

// New creates an empty Store.
func New() *Store {
	return &Store{base: newState()}
}

// Atomic runs fn against a pending overlay and commits it if fn succeeds.
func (s *Store) Atomic(ctx context.Context, fn func(tx storage.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &txn{base: s.base, pending: newState()}
	tx.pending.nextID = s.base.nextID
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// View runs fn against the committed state.
func (s *Store) View(_ context.Context, fn func(r storage.Reader) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return fn(&txn{base: s.base, pending: newState(), readOnly: true})
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

type txn struct {
	base     *state
	pending  *state
	readOnly bool
}

var _ storage.Tx = (*txn)(nil)

func (t *txn) commit() {
	b, p := t.base, t.pending
	b.nextID = p.nextID
	maps.Copy(b.groups, p.groups)
	maps.Copy(b.metadata, p.metadata)
	maps.Copy(b.refundRequests, p.refundRequests)
	for id, cycles := range p.contributions {
		for cycle, recs := range cycles {
			maps.Copy(bucket(bucket(b.contributions, id), cycle), recs)
		}
	}
	for id, payouts := range p.payouts {
		maps.Copy(bucket(b.payouts, id), payouts)
	}
	for id, votes := range p.votes {
		maps.Copy(bucket(b.votes, id), votes)
	}
	for id, refunds := range p.refunds {
		b.refunds[id] = append(b.refunds[id], refunds...)
	}
	for id, recs := range p.records {
		b.records[id] = append(b.records[id], recs...)
	}
}

func (t *txn) writable() error {
	if t.readOnly {
		return fmt.Errorf("write attempted in read-only view")
	}
	return nil
}

func (t *txn) group(groupID uint64) (*models.Group, bool) {
	if g, ok := t.pending.groups[groupID]; ok {
		return g, true
	}
	g, ok := t.base.groups[groupID]
	return g, ok
}

func (t *txn) GetGroup(_ context.Context, groupID uint64) (*models.Group, error) {
	g, ok := t.group(groupID)
	if !ok {
		return nil, models.ErrGroupNotFound
	}
	return g.Clone(), nil
}

func (t *txn) ListGroupIDs(_ context.Context) ([]uint64, error) {
	ids := slices.Collect(maps.Keys(t.base.groups))
	for id := range t.pending.groups {
		if _, ok := t.base.groups[id]; !ok {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (t *txn) HasContributed(_ context.Context, groupID uint64, cycle uint32, member string) (bool, error) {
	for _, layer := range []*state{t.pending, t.base} {
		if _, ok := layer.contributions[groupID][cycle][member]; ok {
			return true, nil
		}
	}
	return false, nil
}

func (t *txn) cycleContributions(groupID uint64, cycle uint32) []models.ContributionRecord {
	recs := slices.Collect(maps.Values(t.base.contributions[groupID][cycle]))
	recs = slices.AppendSeq(recs, maps.Values(t.pending.contributions[groupID][cycle]))
	slices.SortFunc(recs, func(a, b models.ContributionRecord) int {
		return cmp.Or(
			cmp.Compare(a.ContributedAt, b.ContributedAt),
			cmp.Compare(a.Member, b.Member),
		)
	})
	return recs
}

func (t *txn) ListContributions(_ context.Context, groupID uint64, cycle uint32) ([]models.ContributionRecord, error) {
	return t.cycleContributions(groupID, cycle), nil
}

func (t *txn) ListAllContributions(_ context.Context, groupID uint64) ([]models.ContributionRecord, error) {
	cycles := slices.Collect(maps.Keys(t.base.contributions[groupID]))
	for cycle := range t.pending.contributions[groupID] {
		if _, ok := t.base.contributions[groupID][cycle]; !ok {
			cycles = append(cycles, cycle)
		}
	}
	slices.Sort(cycles)

	var recs []models.ContributionRecord
	for _, cycle := range cycles {
		recs = append(recs, t.cycleContributions(groupID, cycle)...)
	}
	return recs, nil
}

func (t *txn) GetPayout(_ context.Context, groupID uint64, member string) (*models.PayoutRecord, error) {
	for _, layer := range []*state{t.pending, t.base} {
		if p, ok := layer.payouts[groupID][member]; ok {
			return &p, nil
		}
	}
	return nil, nil
}

func (t *txn) ListPayouts(_ context.Context, groupID uint64) ([]models.PayoutRecord, error) {
	payouts := slices.Collect(maps.Values(t.base.payouts[groupID]))
	payouts = slices.AppendSeq(payouts, maps.Values(t.pending.payouts[groupID]))
	slices.SortFunc(payouts, func(a, b models.PayoutRecord) int {
		return cmp.Compare(a.Cycle, b.Cycle)
	})
	return payouts, nil
}

func (t *txn) ListRefunds(_ context.Context, groupID uint64) ([]models.RefundRecord, error) {
	return slices.Concat(t.base.refunds[groupID], t.pending.refunds[groupID]), nil
}

func (t *txn) GetMetadata(_ context.Context, groupID uint64) (*models.GroupMetadata, error) {
	for _, layer := range []*state{t.pending, t.base} {
		if m, ok := layer.metadata[groupID]; ok {
			return &m, nil
		}
	}
	return nil, nil
}

func (t *txn) GetRefundRequest(_ context.Context, groupID uint64) (*models.RefundRequest, error) {
	for _, layer := range []*state{t.pending, t.base} {
		if req, ok := layer.refundRequests[groupID]; ok {
			return &req, nil
		}
	}
	return nil, nil
}

func (t *txn) HasVoted(_ context.Context, groupID uint64, voter string) (bool, error) {
	for _, layer := range []*state{t.pending, t.base} {
		if _, ok := layer.votes[groupID][voter]; ok {
			return true, nil
		}
	}
	return false, nil
}

func (t *txn) ListRecords(_ context.Context, groupID uint64, afterSeq uint64, limit int) ([]events.Record, error) {
	var recs []events.Record
	for _, rec := range slices.Concat(t.base.records[groupID], t.pending.records[groupID]) {
		if rec.Seq <= afterSeq {
			continue
		}
		recs = append(recs, rec)
		if limit > 0 && len(recs) == limit {
			break
		}
	}
	return recs, nil
}

func (t *txn) LastRecord(_ context.Context, groupID uint64) (events.Record, bool, error) {
	if recs := t.pending.records[groupID]; len(recs) > 0 {
		return recs[len(recs)-1], true, nil
	}
	if recs := t.base.records[groupID]; len(recs) > 0 {
		return recs[len(recs)-1], true, nil
	}
	return events.Record{}, false, nil
}

func (t *txn) NextGroupID(_ context.Context) (uint64, error) {
	if err := t.writable(); err != nil {
		return 0, err
	}
	t.pending.nextID++
	return t.pending.nextID, nil
}

func (t *txn) CreateGroup(_ context.Context, g *models.Group) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, exists := t.group(g.ID); exists {
		return fmt.Errorf("group %d already exists", g.ID)
	}
	t.pending.groups[g.ID] = g.Clone()
	return nil
}

func (t *txn) UpdateGroup(_ context.Context, g *models.Group) error {
	if err := t.writable(); err != nil {
		return err
	}
	stored, ok := t.group(g.ID)
	if !ok {
		return models.ErrGroupNotFound
	}
	if len(g.Members) < len(stored.Members) || !slices.Equal(stored.Members, g.Members[:len(stored.Members)]) {
		return fmt.Errorf("group %d: members are append-only", g.ID)
	}
	t.pending.groups[g.ID] = g.Clone()
	return nil
}

func (t *txn) RecordContribution(ctx context.Context, rec models.ContributionRecord) error {
	if err := t.writable(); err != nil {
		return err
	}
	exists, _ := t.HasContributed(ctx, rec.GroupID, rec.Cycle, rec.Member)
	if exists {
		return fmt.Errorf("contribution for %s in group %d cycle %d already recorded", rec.Member, rec.GroupID, rec.Cycle)
	}
	bucket(bucket(t.pending.contributions, rec.GroupID), rec.Cycle)[rec.Member] = rec
	return nil
}

func (t *txn) RecordPayout(ctx context.Context, rec models.PayoutRecord) error {
	if err := t.writable(); err != nil {
		return err
	}
	existing, _ := t.GetPayout(ctx, rec.GroupID, rec.Recipient)
	if existing != nil {
		return fmt.Errorf("payout for %s in group %d already recorded", rec.Recipient, rec.GroupID)
	}
	bucket(t.pending.payouts, rec.GroupID)[rec.Recipient] = rec
	return nil
}

func (t *txn) RecordRefund(_ context.Context, rec models.RefundRecord) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.pending.refunds[rec.GroupID] = append(t.pending.refunds[rec.GroupID], rec)
	return nil
}

func (t *txn) PutMetadata(_ context.Context, m models.GroupMetadata) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.pending.metadata[m.GroupID] = m
	return nil
}

func (t *txn) PutRefundRequest(_ context.Context, req models.RefundRequest) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.group(req.GroupID); !ok {
		return models.ErrGroupNotFound
	}
	t.pending.refundRequests[req.GroupID] = req
	return nil
}

func (t *txn) RecordVote(ctx context.Context, vote models.RefundVote) error {
	if err := t.writable(); err != nil {
		return err
	}
	if req, _ := t.GetRefundRequest(ctx, vote.GroupID); req == nil {
		return fmt.Errorf("group %d has no refund request to vote on", vote.GroupID)
	}
	voted, _ := t.HasVoted(ctx, vote.GroupID, vote.Voter)
	if voted {
		return fmt.Errorf("vote by %s in group %d already recorded", vote.Voter, vote.GroupID)
	}
	bucket(t.pending.votes, vote.GroupID)[vote.Voter] = vote
	return nil
}

func (t *txn) AppendRecord(ctx context.Context, rec events.Record) error {
	if err := t.writable(); err != nil {
		return err
	}
	last, ok, _ := t.LastRecord(ctx, rec.GroupID)
	if ok && rec.Seq <= last.Seq {
		return fmt.Errorf("event seq %d for group %d is not after %d", rec.Seq, rec.GroupID, last.Seq)
	}
	t.pending.records[rec.GroupID] = append(t.pending.records[rec.GroupID], rec)
	return nil
}
