// Package engine implements the group lifecycle state machine: creation,
// admission, contributions, round-robin payouts, cancellation and completion.
//
// Every mutating operation loads the group, checks its preconditions, writes
// its changes and journals its events inside one storage unit of work. A
// failed operation leaves no trace, and sinks only see committed records.
// Time only enters through the explicit now argument.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mmynk/ajo/internal/events"
	"github.com/mmynk/ajo/internal/storage"
)

const tracerName = "github.com/mmynk/ajo/internal/engine"

// PayoutPolicy decides when ExecutePayout may run.
type PayoutPolicy string

const (
	// PayoutCollected pays out whatever was collected in the current cycle,
	// at any time. Non-contributors forfeit nothing but the recipient gets less.
	PayoutCollected PayoutPolicy = "collected"

	// PayoutFullOrExpired requires every member to have contributed, unless
	// the cycle has already ended.
	PayoutFullOrExpired PayoutPolicy = "full-or-expired"
)

// ParsePayoutPolicy converts a configuration string to a PayoutPolicy.
func ParsePayoutPolicy(s string) (PayoutPolicy, error) {
	switch p := PayoutPolicy(s); p {
	case PayoutCollected, PayoutFullOrExpired:
		return p, nil
	case "":
		return PayoutCollected, nil
	default:
		return "", fmt.Errorf("unknown payout policy %q", s)
	}
}

// DefaultRefundVotingPeriod is how long, in seconds, members may vote on a
// refund request.
const DefaultRefundVotingPeriod int64 = 7 * 24 * 60 * 60

// Engine runs ledger operations against a Store.
type Engine struct {
	store        storage.Store
	emitter      *events.Emitter
	policy       PayoutPolicy
	votingPeriod int64
	logger       *slog.Logger
	tracer       trace.Tracer
	locks        groupLocks
}

// Option configures an Engine.
type Option func(*Engine)

// WithPayoutPolicy sets the payout policy. The default is PayoutCollected.
func WithPayoutPolicy(p PayoutPolicy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithRefundVotingPeriod sets the refund voting window in seconds.
// Non-positive values keep the default.
func WithRefundVotingPeriod(seconds int64) Option {
	return func(e *Engine) {
		if seconds > 0 {
			e.votingPeriod = seconds
		}
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithEmitter sets the emitter used to journal and publish events.
func WithEmitter(em *events.Emitter) Option {
	return func(e *Engine) { e.emitter = em }
}

// New creates an Engine over store.
func New(store storage.Store, opts ...Option) *Engine {
	e := &Engine{
		store:        store,
		emitter:      events.NewEmitter(),
		policy:       PayoutCollected,
		votingPeriod: DefaultRefundVotingPeriod,
		logger:       slog.Default(),
		tracer:       otel.Tracer(tracerName),
		locks:        groupLocks{locks: make(map[uint64]*groupLock)},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the configured payout policy.
func (e *Engine) Policy() PayoutPolicy {
	return e.policy
}

// mutation is the body of a mutating operation. It returns the events to
// journal once every check has passed and every write succeeded.
type mutation func(ctx context.Context, tx storage.Tx) ([]events.Event, error)

// mutate runs fn as one unit of work under the group's lock. groupID 0 skips
// the lock; it is used by CreateGroup before an ID exists.
func (e *Engine) mutate(ctx context.Context, op string, groupID uint64, now int64, fn mutation) (err error) {
	ctx, span := e.tracer.Start(ctx, "engine."+op,
		trace.WithAttributes(attribute.Int64("ajo.group_id", int64(groupID))),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}()

	if groupID != 0 {
		unlock := e.locks.lock(groupID)
		defer unlock()
	}

	var records []events.Record
	err = e.store.Atomic(ctx, func(tx storage.Tx) error {
		evts, err := fn(ctx, tx)
		if err != nil {
			return err
		}
		records, err = e.emitter.Append(ctx, tx, now, evts...)
		return err
	})
	if err != nil {
		return err
	}

	span.SetAttributes(attribute.Int("ajo.events", len(records)))
	e.emitter.Publish(ctx, records)
	return nil
}

// view runs fn against a read snapshot inside a span.
func (e *Engine) view(ctx context.Context, op string, groupID uint64, fn func(ctx context.Context, r storage.Reader) error) (err error) {
	ctx, span := e.tracer.Start(ctx, "engine."+op,
		trace.WithAttributes(attribute.Int64("ajo.group_id", int64(groupID))),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	return e.store.View(ctx, func(r storage.Reader) error {
		return fn(ctx, r)
	})
}

// groupLocks hands out one mutex per group ID and forgets it once unused.
type groupLocks struct {
	mu    sync.Mutex
	locks map[uint64]*groupLock
}

type groupLock struct {
	mu   sync.Mutex
	refs int
}

func (l *groupLocks) lock(groupID uint64) (unlock func()) {
	l.mu.Lock()
	gl, ok := l.locks[groupID]
	if !ok {
		gl = &groupLock{}
		l.locks[groupID] = gl
	}
	gl.refs++
	l.mu.Unlock()

	gl.mu.Lock()
	return func() {
		gl.mu.Unlock()

		l.mu.Lock()
		gl.refs--
		if gl.refs == 0 {
			delete(l.locks, groupID)
		}
		l.mu.Unlock()
	}
}
