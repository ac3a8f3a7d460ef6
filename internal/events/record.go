package events

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// ErrChainBroken is returned by VerifyChain when a journal has been altered.
var ErrChainBroken = errors.New("event journal chain broken")

// Record is the journaled envelope of one Event.
type Record struct {
	// ID is a random identifier for external deduplication.
	ID string
	// GroupID is the group the event belongs to.
	GroupID uint64
	// Seq is the event's position within its group's journal, starting at 1.
	Seq uint64
	// Type identifies the payload variant.
	Type Type
	// Timestamp is the Unix time of the operation that produced the event.
	Timestamp int64
	// Payload is the JSON encoding of the Event.
	Payload []byte
	// Hash is the BLAKE2b-256 content hash of the envelope (hex).
	Hash string
	// PrevHash is the ChainHash of the previous record in the group, empty for Seq 1.
	PrevHash string
	// ChainHash links Hash to PrevHash (hex).
	ChainHash string
}

// canonical is the hashed portion of a Record. Field order is fixed by the struct.
type canonical struct {
	GroupID   uint64          `json:"group_id"`
	Seq       uint64          `json:"seq"`
	Type      Type            `json:"type"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// NewRecord encodes evt as the record following prevChainHash at position seq.
func NewRecord(evt Event, seq uint64, timestamp int64, prevChainHash string) (Record, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return Record{}, fmt.Errorf("failed to encode %s payload: %w", evt.EventType(), err)
	}

	rec := Record{
		ID:        uuid.NewString(),
		GroupID:   evt.Group(),
		Seq:       seq,
		Type:      evt.EventType(),
		Timestamp: timestamp,
		Payload:   payload,
		PrevHash:  prevChainHash,
	}

	rec.Hash, err = contentHash(rec)
	if err != nil {
		return Record{}, err
	}
	rec.ChainHash = chainHash(rec.Hash, prevChainHash)
	return rec, nil
}

func contentHash(rec Record) (string, error) {
	data, err := json.Marshal(canonical{
		GroupID:   rec.GroupID,
		Seq:       rec.Seq,
		Type:      rec.Type,
		Timestamp: rec.Timestamp,
		Payload:   rec.Payload,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode envelope: %w", err)
	}
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func chainHash(hash, prev string) string {
	sum := blake2b.Sum256([]byte(prev + ":" + hash))
	return hex.EncodeToString(sum[:])
}

// Decode returns the Event carried by rec.
func Decode(rec Record) (Event, error) {
	var (
		evt Event
		err error
	)
	switch rec.Type {
	case TypeCreated:
		evt, err = decodeAs[Created](rec.Payload)
	case TypeJoined:
		evt, err = decodeAs[Joined](rec.Payload)
	case TypeContributed:
		evt, err = decodeAs[Contributed](rec.Payload)
	case TypePayoutExecuted:
		evt, err = decodeAs[PayoutExecuted](rec.Payload)
	case TypeCycleAdvanced:
		evt, err = decodeAs[CycleAdvanced](rec.Payload)
	case TypeCompleted:
		evt, err = decodeAs[Completed](rec.Payload)
	case TypeMetadataUpdated:
		evt, err = decodeAs[MetadataUpdated](rec.Payload)
	case TypeRefundIssued:
		evt, err = decodeAs[RefundIssued](rec.Payload)
	case TypeCancelled:
		evt, err = decodeAs[Cancelled](rec.Payload)
	case TypeRefundRequested:
		evt, err = decodeAs[RefundRequested](rec.Payload)
	case TypeRefundVoted:
		evt, err = decodeAs[RefundVoted](rec.Payload)
	case TypeRefundResolved:
		evt, err = decodeAs[RefundResolved](rec.Payload)
	default:
		return nil, fmt.Errorf("unknown event type %q", rec.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", rec.Type, err)
	}
	return evt, nil
}

func decodeAs[T Event](payload []byte) (Event, error) {
	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// VerifyChain checks that records form one group's journal from Seq 1 with
// intact content and chain hashes.
func VerifyChain(records []Record) error {
	prev := ""
	for i, rec := range records {
		if rec.Seq != uint64(i+1) {
			return fmt.Errorf("%w: record %d has seq %d", ErrChainBroken, i, rec.Seq)
		}
		if i > 0 && rec.GroupID != records[0].GroupID {
			return fmt.Errorf("%w: seq %d belongs to group %d", ErrChainBroken, rec.Seq, rec.GroupID)
		}
		hash, err := contentHash(rec)
		if err != nil {
			return err
		}
		if hash != rec.Hash {
			return fmt.Errorf("%w: content hash mismatch at seq %d", ErrChainBroken, rec.Seq)
		}
		if rec.PrevHash != prev {
			return fmt.Errorf("%w: prev hash mismatch at seq %d", ErrChainBroken, rec.Seq)
		}
		if chainHash(rec.Hash, prev) != rec.ChainHash {
			return fmt.Errorf("%w: chain hash mismatch at seq %d", ErrChainBroken, rec.Seq)
		}
		prev = rec.ChainHash
	}
	return nil
}
