package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func userMsg(text string) *schema.Message {
	return &schema.Message{Role: schema.User, Content: text}
}

func aiMsg(text string) *schema.Message {
	return &schema.Message{Role: schema.Assistant, Content: text}
}

// exerciseSaver runs the behavior every backend shares.
func exerciseSaver(t *testing.T, s Saver) {
	t.Helper()
	ctx := context.Background()

	t.Run("EmptyThread", func(t *testing.T) {
		_, err := s.Latest(ctx, "empty")
		assert.True(t, errors.Is(err, ErrNotFound))

		tuples, err := s.List(ctx, "empty")
		require.NoError(t, err)
		assert.Empty(t, tuples)
	})

	t.Run("AppendAndList", func(t *testing.T) {
		first := &Snapshot{Messages: []*schema.Message{userMsg("hi")}}
		require.NoError(t, s.Put(ctx, "t1", first))
		assert.NotEmpty(t, first.ID)
		assert.Equal(t, "t1", first.ThreadID)
		assert.Empty(t, first.ParentID)
		assert.False(t, first.CreatedAt.IsZero())

		second := &Snapshot{
			Messages: []*schema.Message{userMsg("hi"), aiMsg("hello")},
			Metadata: map[string]string{"model": "gpt-4o"},
		}
		require.NoError(t, s.Put(ctx, "t1", second))
		assert.Equal(t, first.ID, second.ParentID)

		tuples, err := s.List(ctx, "t1")
		require.NoError(t, err)
		require.Len(t, tuples, 2)
		assert.Equal(t, second.ID, tuples[0].CheckpointID)
		assert.Equal(t, first.ID, tuples[1].CheckpointID)
		assert.Equal(t, first.ID, tuples[0].ParentID)

		latest := tuples[0].Snapshot
		require.Len(t, latest.Messages, 2)
		assert.Equal(t, schema.User, latest.Messages[0].Role)
		assert.Equal(t, "hello", latest.Messages[1].Content)
		assert.Equal(t, schema.Assistant, latest.Messages[1].Role)
		assert.Equal(t, "gpt-4o", latest.Metadata["model"])
		assert.WithinDuration(t, second.CreatedAt, latest.CreatedAt, time.Millisecond)
	})

	t.Run("Latest", func(t *testing.T) {
		snap, err := s.Latest(ctx, "t1")
		require.NoError(t, err)
		assert.Len(t, snap.Messages, 2)
	})

	t.Run("ThreadsAreIsolated", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, "t2", &Snapshot{Messages: []*schema.Message{userMsg("other")}}))

		tuples, err := s.List(ctx, "t1")
		require.NoError(t, err)
		assert.Len(t, tuples, 2)

		tuples, err = s.List(ctx, "t2")
		require.NoError(t, err)
		require.Len(t, tuples, 1)
		assert.Equal(t, "other", tuples[0].Snapshot.Messages[0].Content)
	})

	t.Run("ManySnapshotsKeepOrder", func(t *testing.T) {
		var msgs []*schema.Message
		for i := 0; i < 10; i++ {
			msgs = append(msgs, userMsg(fmt.Sprintf("m%d", i)))
			require.NoError(t, s.Put(ctx, "t3", &Snapshot{Messages: append([]*schema.Message(nil), msgs...)}))
		}
		tuples, err := s.List(ctx, "t3")
		require.NoError(t, err)
		require.Len(t, tuples, 10)
		for i, tp := range tuples {
			assert.Len(t, tp.Snapshot.Messages, 10-i)
		}
	})
}

func TestMemorySaver(t *testing.T) {
	s := NewMemorySaver()
	exerciseSaver(t, s)

	history, err := s.StateHistory(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Len(t, history[0].Messages, 2)
}

func TestMemorySaver_CopiesOnWrite(t *testing.T) {
	s := NewMemorySaver()
	ctx := context.Background()

	msg := userMsg("original")
	require.NoError(t, s.Put(ctx, "t", &Snapshot{Messages: []*schema.Message{msg}}))
	msg.Content = "mutated"

	snap, err := s.Latest(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, "original", snap.Messages[0].Content)
}

func TestFileSaver(t *testing.T) {
	s, err := NewFileSaver(t.TempDir())
	require.NoError(t, err)
	exerciseSaver(t, s)
}

func TestFileSaver_ThreadIDWithSeparators(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileSaver(dir)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "user/42", &Snapshot{Messages: []*schema.Message{userMsg("x")}}))
	matches, err := filepath.Glob(filepath.Join(dir, "threads", "user%2F42", "*.json"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	assert.Error(t, s.Put(ctx, "..", &Snapshot{}))
}

func TestFileSaver_ConcurrentPuts(t *testing.T) {
	s, err := NewFileSaver(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.Put(ctx, "busy", &Snapshot{Messages: []*schema.Message{userMsg(fmt.Sprint(i))}}))
		}(i)
	}
	wg.Wait()

	tuples, err := s.List(ctx, "busy")
	require.NoError(t, err)
	assert.Len(t, tuples, 10)
}

func TestSqliteSaver(t *testing.T) {
	s, err := NewSqliteSaver(context.Background(), filepath.Join(t.TempDir(), "checkpoints.db"))
	require.NoError(t, err)
	defer s.Close()
	exerciseSaver(t, s)
}

func TestRedisSaver(t *testing.T) {
	mr := miniredis.RunT(t)

	s, err := NewRedisSaver(context.Background(), "redis://"+mr.Addr(), RedisOptions{KeyPrefix: "test:"})
	require.NoError(t, err)
	defer s.Close()
	exerciseSaver(t, s)

	assert.True(t, mr.Exists("test:t1"))
}

func TestRedisSaver_TTL(t *testing.T) {
	mr := miniredis.RunT(t)

	s, err := NewRedisSaver(context.Background(), "redis://"+mr.Addr(), RedisOptions{TTL: time.Minute})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Put(context.Background(), "ttl", &Snapshot{Messages: []*schema.Message{userMsg("x")}}))
	assert.Equal(t, time.Minute, mr.TTL(defaultRedisPrefix+"ttl"))
}

func TestRedisSaver_Unreachable(t *testing.T) {
	_, err := NewRedisSaver(context.Background(), "redis://127.0.0.1:1", RedisOptions{})
	assert.Error(t, err)
}
