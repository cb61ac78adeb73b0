// Package history rebuilds a flat message timeline from a thread's
// checkpoint snapshots.
package history

import (
	"context"
	"fmt"

	"github.com/opencode-ai/llmcall/internal/checkpoint"
	"github.com/opencode-ai/llmcall/internal/logging"
	"github.com/opencode-ai/llmcall/internal/message"
	"github.com/opencode-ai/llmcall/pkg/types"
)

// Source is the checkpoint store a timeline is read from. Stores that also
// implement checkpoint.StateHistorian are read through StateHistory.
type Source interface {
	List(ctx context.Context, threadID string) ([]checkpoint.Tuple, error)
}

// Result is a reconstructed thread.
type Result struct {
	// FullHistory holds the snapshots as read, newest first.
	FullHistory []checkpoint.Snapshot `json:"fullHistory"`
	// Messages is the deduplicated timeline, oldest first.
	Messages []types.HistoryMessageItem `json:"messages"`
}

// Reconstruct reads the thread's snapshots and derives its timeline.
// System messages and messages with an unknown role are left out.
func Reconstruct(ctx context.Context, threadID string, src Source) (*Result, error) {
	snaps, err := snapshots(ctx, threadID, src)
	if err != nil {
		return nil, err
	}
	return &Result{
		FullHistory: snaps,
		Messages:    Timeline(snaps),
	}, nil
}

func snapshots(ctx context.Context, threadID string, src Source) ([]checkpoint.Snapshot, error) {
	if h, ok := src.(checkpoint.StateHistorian); ok {
		snaps, err := h.StateHistory(ctx, threadID)
		if err != nil {
			return nil, fmt.Errorf("failed to read state history: %w", err)
		}
		return snaps, nil
	}

	tuples, err := src.List(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	snaps := make([]checkpoint.Snapshot, len(tuples))
	for i, t := range tuples {
		snaps[i] = t.Snapshot
	}
	return snaps, nil
}

// Timeline flattens newest-first snapshots into oldest-first items. Each
// snapshot contributes only the messages past the previous snapshot's length,
// stamped with that snapshot's creation time.
func Timeline(snaps []checkpoint.Snapshot) []types.HistoryMessageItem {
	items := make([]types.HistoryMessageItem, 0)
	seen := 0

	for i := len(snaps) - 1; i >= 0; i-- {
		snap := snaps[i]
		if len(snap.Messages) < seen {
			// The thread was rewritten; restart counting from this snapshot.
			logging.Component("history").Warn().
				Str("threadID", snap.ThreadID).
				Str("checkpointID", snap.ID).
				Int("seen", seen).
				Int("length", len(snap.Messages)).
				Msg("snapshot shorter than its predecessor")
			seen = len(snap.Messages)
			continue
		}

		for _, m := range snap.Messages[seen:] {
			role := message.RoleOf(m.Role)
			if role == "" || role == types.RoleSystem {
				continue
			}
			items = append(items, types.HistoryMessageItem{
				Role:      role,
				CreatedAt: snap.CreatedAt,
				Content:   message.ContentText(m),
			})
		}
		seen = len(snap.Messages)
	}
	return items
}
