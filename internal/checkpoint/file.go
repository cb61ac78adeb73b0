package checkpoint

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileSaver stores one JSON file per snapshot under
// <dir>/threads/<thread>/<snapshot-id>.json. Snapshot ids are ULIDs, so
// lexical file order is creation order.
type FileSaver struct {
	basePath string
	mu       sync.Mutex
	locks    map[string]*fileLock
}

// NewFileSaver creates a file backend rooted at dir.
func NewFileSaver(dir string) (*FileSaver, error) {
	if err := os.MkdirAll(filepath.Join(dir, "threads"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}
	return &FileSaver{basePath: dir, locks: make(map[string]*fileLock)}, nil
}

func (s *FileSaver) threadDir(threadID string) (string, error) {
	if threadID == "" || threadID == "." || threadID == ".." {
		return "", fmt.Errorf("invalid thread id %q", threadID)
	}
	return filepath.Join(s.basePath, "threads", url.PathEscape(threadID)), nil
}

func (s *FileSaver) Put(ctx context.Context, threadID string, snap *Snapshot) error {
	dir, err := s.threadDir(threadID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	lock := s.getLock(dir)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer lock.Unlock()

	ids, err := snapshotIDs(dir)
	if err != nil {
		return err
	}
	parentID := ""
	if len(ids) > 0 {
		parentID = ids[len(ids)-1]
	}

	prepare(threadID, parentID, snap)
	data, err := encode(snap)
	if err != nil {
		return err
	}

	// Write to temp file first, then rename (atomic operation)
	filePath := filepath.Join(dir, snap.ID+".json")
	tmpPath := filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, filePath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}

func (s *FileSaver) List(ctx context.Context, threadID string) ([]Tuple, error) {
	dir, err := s.threadDir(threadID)
	if err != nil {
		return nil, err
	}
	ids, err := snapshotIDs(dir)
	if err != nil {
		return nil, err
	}

	tuples := make([]Tuple, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(filepath.Join(dir, ids[i]+".json"))
		if err != nil {
			return nil, fmt.Errorf("failed to read snapshot %s: %w", ids[i], err)
		}
		snap, err := decode(data)
		if err != nil {
			return nil, err
		}
		tuples = append(tuples, tupleOf(snap))
	}
	return tuples, nil
}

func (s *FileSaver) Latest(ctx context.Context, threadID string) (*Snapshot, error) {
	dir, err := s.threadDir(threadID)
	if err != nil {
		return nil, err
	}
	ids, err := snapshotIDs(dir)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, ErrNotFound
	}
	data, err := os.ReadFile(filepath.Join(dir, ids[len(ids)-1]+".json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	snap, err := decode(data)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *FileSaver) Close() error {
	return nil
}

// snapshotIDs returns the ids stored in dir, oldest first.
func snapshotIDs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	return ids, nil
}

func (s *FileSaver) getLock(dir string) *fileLock {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[dir]
	if !ok {
		lock = newFileLock(filepath.Join(dir, ".lock"))
		s.locks[dir] = lock
	}
	return lock
}
