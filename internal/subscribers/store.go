// Package subscribers keeps the durable set of subscribed chat ids.
//
// The on-disk format is a plain JSON array of chat ids, fully rewritten on
// every mutation. The in-memory set is the source of truth while the process
// runs; a failed write drops durability, not the mutation.
package subscribers

import (
	"encoding/json"
	"os"
	"sort"
	"sync"

	"flightbot/pkg/logx"
)

type Store struct {
	path string
	log  logx.Logger

	mu  sync.Mutex
	ids map[int64]struct{}
}

func NewStore(path string, log logx.Logger) *Store {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Store{path: path, log: log, ids: map[int64]struct{}{}}
}

// Load reads the persisted set. A missing or corrupt file yields an empty
// set; it never fails the process.
func (s *Store) Load() {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("subscriber file unreadable; starting empty", logx.String("path", s.path), logx.Err(err))
		}
		return
	}
	var ids []int64
	if err := json.Unmarshal(b, &ids); err != nil {
		s.log.Warn("subscriber file corrupt; starting empty", logx.String("path", s.path), logx.Err(err))
		return
	}
	s.mu.Lock()
	s.ids = make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	s.mu.Unlock()
}

// Add registers a chat id. It returns false (and skips the write) when the
// id is already present.
func (s *Store) Add(id int64) bool {
	s.mu.Lock()
	if _, ok := s.ids[id]; ok {
		s.mu.Unlock()
		return false
	}
	s.ids[id] = struct{}{}
	snap := s.sortedLocked()
	s.mu.Unlock()

	s.persist(snap)
	return true
}

// Remove drops a chat id. It returns false when the id wasn't subscribed.
func (s *Store) Remove(id int64) bool {
	s.mu.Lock()
	if _, ok := s.ids[id]; !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.ids, id)
	snap := s.sortedLocked()
	s.mu.Unlock()

	s.persist(snap)
	return true
}

// Snapshot returns the current subscriber ids for iteration during a pass.
func (s *Store) Snapshot() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked()
}

func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

func (s *Store) sortedLocked() []int64 {
	out := make([]int64, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// persist rewrites the whole file. Write-through, no batching: the set is
// tiny and mutations are rare (one per subscribe command).
func (s *Store) persist(ids []int64) {
	b, err := json.MarshalIndent(ids, "", "  ")
	if err != nil {
		s.log.Error("subscriber list marshal failed", logx.Err(err))
		return
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		s.log.Warn("subscriber file write failed (in-memory state kept)", logx.String("path", s.path), logx.Err(err))
		return
	}
	if err := os.Rename(tmp, s.path); err != nil {
		s.log.Warn("subscriber file rename failed (in-memory state kept)", logx.String("path", s.path), logx.Err(err))
	}
}
