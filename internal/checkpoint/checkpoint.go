// Package checkpoint persists conversation snapshots per thread.
//
// A thread's snapshots form an append-only sequence: each snapshot's message
// list extends the previous one. Backends store snapshots as JSON records and
// return them newest first.
//
// Message roles are resolved when a record is decoded (see DecodeMessage), so
// callers always see messages with an explicit Eino role.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/oklog/ulid/v2"
)

// ErrNotFound is returned by Latest when a thread has no snapshots.
var ErrNotFound = errors.New("not found")

// Snapshot is a point-in-time message list for a thread.
type Snapshot struct {
	ID        string            `json:"id"`
	ThreadID  string            `json:"threadId"`
	ParentID  string            `json:"parentId,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	Messages  []*schema.Message `json:"messages"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// UnmarshalJSON decodes messages through DecodeMessage so records written by
// other tools get their roles resolved.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	type alias Snapshot
	aux := struct {
		*alias
		Messages []json.RawMessage `json:"messages"`
	}{alias: (*alias)(s)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	s.Messages = make([]*schema.Message, 0, len(aux.Messages))
	for i, raw := range aux.Messages {
		msg, err := DecodeMessage(raw)
		if err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
		s.Messages = append(s.Messages, msg)
	}
	return nil
}

// Tuple is a raw checkpoint-store entry.
type Tuple struct {
	ThreadID     string
	CheckpointID string
	ParentID     string
	Snapshot     Snapshot
}

// Saver is a checkpoint backend.
type Saver interface {
	// Put appends snap to the thread. ID, ParentID and CreatedAt are filled
	// in when empty.
	Put(ctx context.Context, threadID string, snap *Snapshot) error
	// List returns the thread's entries, newest first.
	List(ctx context.Context, threadID string) ([]Tuple, error)
	// Latest returns the newest snapshot or ErrNotFound.
	Latest(ctx context.Context, threadID string) (*Snapshot, error)
	Close() error
}

// StateHistorian is implemented by backends that expose snapshots directly.
type StateHistorian interface {
	// StateHistory returns the thread's snapshots, newest first.
	StateHistory(ctx context.Context, threadID string) ([]Snapshot, error)
}

// prepare fills the generated fields of snap before it is written.
func prepare(threadID, parentID string, snap *Snapshot) {
	snap.ThreadID = threadID
	if snap.ID == "" {
		snap.ID = ulid.Make().String()
	}
	if snap.ParentID == "" {
		snap.ParentID = parentID
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}
}

func encode(snap *Snapshot) ([]byte, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return data, nil
}

func decode(data []byte) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return snap, nil
}

func tupleOf(snap Snapshot) Tuple {
	return Tuple{
		ThreadID:     snap.ThreadID,
		CheckpointID: snap.ID,
		ParentID:     snap.ParentID,
		Snapshot:     snap,
	}
}

// latestOf returns the first tuple of a newest-first list.
func latestOf(tuples []Tuple) (*Snapshot, error) {
	if len(tuples) == 0 {
		return nil, ErrNotFound
	}
	snap := tuples[0].Snapshot
	return &snap, nil
}
