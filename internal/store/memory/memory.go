// Package memory provides in-process implementations of the engine's store
// interfaces. It backs every engine and transport test and doubles as the
// single-node development backend.
package memory

import (
	"context"
	"sort"
	stdsync "sync"
	"time"

	coresync "github.com/fieldsync/fieldsync/internal/core/sync"
)

type entityKey struct {
	kind  coresync.Kind
	owner string
	id    string
}

// Store holds entities and sync log entries behind one mutex. It implements
// both coresync.EntityStore and coresync.SyncLogStore.
type Store struct {
	mu       stdsync.RWMutex
	entities map[entityKey]coresync.Entity
	logs     []coresync.LogEntry
}

var (
	_ coresync.EntityStore  = (*Store)(nil)
	_ coresync.SyncLogStore = (*Store)(nil)
)

func New() *Store {
	return &Store{
		entities: make(map[entityKey]coresync.Entity),
	}
}

func (s *Store) Get(_ context.Context, kind coresync.Kind, ownerID, id string) (*coresync.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entities[entityKey{kind: kind, owner: ownerID, id: id}]
	if !ok {
		return nil, coresync.ErrNotFound
	}
	return &e, nil
}

func (s *Store) Upsert(_ context.Context, e coresync.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entities[entityKey{kind: e.Kind, owner: e.OwnerID, id: e.ID}] = e
	return nil
}

func (s *Store) UpdatedSince(_ context.Context, kind coresync.Kind, ownerID string, since *time.Time) ([]coresync.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []coresync.Entity
	for k, e := range s.entities {
		if k.kind != kind || k.owner != ownerID {
			continue
		}
		if since != nil && !e.UpdatedAt.After(*since) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.Before(out[j].UpdatedAt)
	})
	return out, nil
}

func (s *Store) Append(_ context.Context, entry coresync.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logs = append(s.logs, entry)
	return nil
}

func (s *Store) List(_ context.Context, f coresync.LogFilter) ([]coresync.LogEntry, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []coresync.LogEntry
	for _, e := range s.logs {
		if e.OwnerID != f.OwnerID {
			continue
		}
		if f.DeviceID != "" && e.DeviceID != f.DeviceID {
			continue
		}
		matched = append(matched, e)
	}
	// Newest first.
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].SyncTime.After(matched[j].SyncTime)
	})

	total := int64(len(matched))
	page, size := f.Page, f.PageSize
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		return matched, total, nil
	}
	start := (page - 1) * size
	if start >= len(matched) {
		return nil, total, nil
	}
	end := start + size
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}
