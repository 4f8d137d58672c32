package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/seckatie/echoes/internal/core"
)

// MemoryStore is a map-backed Store. The map lock only guards membership;
// each entry has its own mutex so updates are atomic per id.
type MemoryStore struct {
	emitter

	mu      sync.RWMutex
	records map[string]*entry
	seq     uint64
}

type entry struct {
	mu     sync.Mutex
	seq    uint64
	record Record
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*entry)}
}

func (s *MemoryStore) Put(ctx context.Context, rec Record) error {
	if err := ctxErr(ctx, "put"); err != nil {
		return err
	}
	if err := ValidateRecord(rec); err != nil {
		return err
	}

	s.mu.Lock()
	e, exists := s.records[rec.ID]
	if !exists {
		s.seq++
		e = &entry{seq: s.seq}
		s.records[rec.ID] = e
	}
	e.mu.Lock()
	s.mu.Unlock()
	// status never moves back to pending
	if exists && e.record.Status == core.StatusComplete {
		rec.Status = core.StatusComplete
	}
	e.record = rec.Clone()
	e.mu.Unlock()

	if !exists {
		s.emit(ResurrectionCreatedEvent{Record: rec.Clone()})
	}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Record, error) {
	if err := ctxErr(ctx, "get"); err != nil {
		return Record{}, err
	}
	s.mu.RLock()
	e, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return Record{}, notFound(id)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.record.Clone(), nil
}

func (s *MemoryStore) List(ctx context.Context) ([]Record, error) {
	if err := ctxErr(ctx, "list"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.records))
	for _, e := range s.records {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	type row struct {
		seq uint64
		rec Record
	}
	rows := make([]row, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		rows = append(rows, row{seq: e.seq, rec: e.record.Clone()})
		e.mu.Unlock()
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.rec.CreatedAt.Equal(b.rec.CreatedAt) {
			return a.rec.CreatedAt.After(b.rec.CreatedAt)
		}
		return a.seq > b.seq
	})

	out := make([]Record, len(rows))
	for i, r := range rows {
		out[i] = r.rec
	}
	return out, nil
}

func (s *MemoryStore) Complete(ctx context.Context, id string) (Record, bool, error) {
	if err := ctxErr(ctx, "complete"); err != nil {
		return Record{}, false, err
	}
	s.mu.RLock()
	e, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return Record{}, false, notFound(id)
	}

	e.mu.Lock()
	if e.record.Status == core.StatusComplete {
		rec := e.record.Clone()
		e.mu.Unlock()
		return rec, false, nil
	}
	e.record.Status = core.StatusComplete
	rec := e.record.Clone()
	e.mu.Unlock()

	s.emit(ResurrectionCompletedEvent{Record: rec.Clone()})
	return rec, true, nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *MemoryStore) Close() error {
	return nil
}

func ctxErr(ctx context.Context, op string) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("store %s: %w", op, ctx.Err())
	default:
		return nil
	}
}
