package events

import (
	"context"
	"fmt"
	"log/slog"
)

// Journal is the append-only storage the Emitter writes to. Implementations
// run inside the caller's unit of work so records disappear with a rollback.
type Journal interface {
	// LastRecord returns the newest record of a group, if any.
	LastRecord(ctx context.Context, groupID uint64) (Record, bool, error)
	// AppendRecord stores rec. Seq must be one past the last record.
	AppendRecord(ctx context.Context, rec Record) error
}

// Sink receives records after the operation that produced them committed.
type Sink interface {
	Publish(ctx context.Context, rec Record, evt Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, rec Record, evt Event)

// Publish calls f.
func (f SinkFunc) Publish(ctx context.Context, rec Record, evt Event) {
	f(ctx, rec, evt)
}

// Emitter turns events into chained journal records.
type Emitter struct {
	sinks []Sink
}

// NewEmitter creates an Emitter that fans committed records out to sinks.
func NewEmitter(sinks ...Sink) *Emitter {
	return &Emitter{sinks: sinks}
}

// Append writes evts, in order, to j. Call it inside the operation's unit of
// work, after every check has passed.
func (e *Emitter) Append(ctx context.Context, j Journal, timestamp int64, evts ...Event) ([]Record, error) {
	type head struct {
		seq  uint64
		hash string
	}
	heads := make(map[uint64]head)

	records := make([]Record, 0, len(evts))
	for _, evt := range evts {
		gid := evt.Group()
		h, ok := heads[gid]
		if !ok {
			last, found, err := j.LastRecord(ctx, gid)
			if err != nil {
				return nil, fmt.Errorf("failed to load journal head: %w", err)
			}
			if found {
				h = head{seq: last.Seq, hash: last.ChainHash}
			}
		}

		rec, err := NewRecord(evt, h.seq+1, timestamp, h.hash)
		if err != nil {
			return nil, err
		}
		if err := j.AppendRecord(ctx, rec); err != nil {
			return nil, fmt.Errorf("failed to append %s: %w", rec.Type, err)
		}
		heads[gid] = head{seq: rec.Seq, hash: rec.ChainHash}
		records = append(records, rec)
	}
	return records, nil
}

// Publish hands committed records to every sink.
func (e *Emitter) Publish(ctx context.Context, records []Record) {
	for _, rec := range records {
		evt, err := Decode(rec)
		if err != nil {
			slog.Error("Failed to decode journal record", "group_id", rec.GroupID, "seq", rec.Seq, "error", err)
			continue
		}
		for _, s := range e.sinks {
			s.Publish(ctx, rec, evt)
		}
	}
}

// LogSink writes every committed record to a logger at debug level.
type LogSink struct {
	Logger *slog.Logger
}

// Publish implements Sink.
func (s LogSink) Publish(ctx context.Context, rec Record, _ Event) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.DebugContext(ctx, "Event journaled",
		"group_id", rec.GroupID,
		"seq", rec.Seq,
		"type", rec.Type,
		"event_id", rec.ID,
		"chain_hash", rec.ChainHash,
	)
}
