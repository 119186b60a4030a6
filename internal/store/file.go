package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"remindd/internal/reminder"
	logx "remindd/pkg/logx"
)

// fileStore is a dependency-free persistence backend: the whole collection
// lives in memory and every mutation rewrites an atomic JSON snapshot
// (write temp file, fsync, rename). Good enough for the collection sizes a
// personal reminder list reaches.
type fileStore struct {
	log  logx.Logger
	path string

	mu     sync.Mutex
	items  map[string]reminder.Reminder
	closed bool
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("store.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	s := &fileStore{log: log, path: path, items: map[string]reminder.Reminder{}}

	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// Fresh store.
	case err != nil:
		return nil, err
	default:
		var rs []reminder.Reminder
		if err := json.Unmarshal(b, &rs); err != nil {
			return nil, err
		}
		for _, r := range rs {
			s.items[r.ID] = r
		}
	}
	return s, nil
}

func (s *fileStore) List(ctx context.Context) ([]reminder.Reminder, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	return s.snapshotLocked(), nil
}

func (s *fileStore) Get(ctx context.Context, id string) (reminder.Reminder, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return reminder.Reminder{}, false, ErrClosed
	}
	r, ok := s.items[id]
	return r, ok, nil
}

func (s *fileStore) Put(ctx context.Context, r reminder.Reminder) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.items[r.ID] = r
	return s.persistLocked()
}

func (s *fileStore) Delete(ctx context.Context, id string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, ok := s.items[id]; !ok {
		return nil
	}
	delete(s.items, id)
	return s.persistLocked()
}

func (s *fileStore) ReplaceAll(ctx context.Context, rs []reminder.Reminder) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	next := make(map[string]reminder.Reminder, len(rs))
	for _, r := range rs {
		next[r.ID] = r
	}
	prev := s.items
	s.items = next
	if err := s.persistLocked(); err != nil {
		s.items = prev
		return err
	}
	return nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fileStore) snapshotLocked() []reminder.Reminder {
	out := make([]reminder.Reminder, 0, len(s.items))
	for _, r := range s.items {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *fileStore) persistLocked() error {
	b, err := json.MarshalIndent(s.snapshotLocked(), "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
