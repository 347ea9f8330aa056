package game

import (
	"sync"

	"github.com/google/uuid"
)

// TableStore keeps tables in memory only. Each table has its own lock and clock.
type TableStore struct {
	mu     sync.Mutex
	tables map[uuid.UUID]*Table
	opts   TableOptions

	// OnCreate wires a new table to its transport before it is returned.
	OnCreate func(t *Table)

	// OnDelete unwires a table as it leaves the store. Runs under the store lock.
	OnDelete func(t *Table)
}

func NewTableStore(opts TableOptions) *TableStore {
	return &TableStore{
		tables: make(map[uuid.UUID]*Table),
		opts:   opts,
	}
}

// GetOrCreate returns the table with id, creating it on first use.
func (s *TableStore) GetOrCreate(id uuid.UUID) *Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreate(id)
}

// Acquire is GetOrCreate that also runs fn on the table before releasing the store lock, so a
// concurrent Reclaim cannot remove the table between lookup and attach.
func (s *TableStore) Acquire(id uuid.UUID, fn func(t *Table)) *Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.getOrCreate(id)
	fn(t)
	return t
}

// Reclaim removes the table with id if idle reports true for it, all under the store lock.
func (s *TableStore) Reclaim(id uuid.UUID, idle func(t *Table) bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[id]
	if !ok || !idle(t) {
		return false
	}
	s.remove(t)
	return true
}

func (s *TableStore) getOrCreate(id uuid.UUID) *Table {
	if t, ok := s.tables[id]; ok {
		return t
	}
	t := NewTable(id, s.opts)
	if s.OnCreate != nil {
		s.OnCreate(t)
	}
	s.tables[id] = t
	return t
}

func (s *TableStore) remove(t *Table) {
	delete(s.tables, t.ID)
	if s.OnDelete != nil {
		s.OnDelete(t)
	}
}

func (s *TableStore) GetTable(id uuid.UUID) (*Table, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, exists := s.tables[id]
	return t, exists
}

func (s *TableStore) DeleteTable(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tables[id]; ok {
		s.remove(t)
	}
}

// All returns a snapshot of the stored tables.
func (s *TableStore) All() []*Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Table, 0, len(s.tables))
	for _, t := range s.tables {
		out = append(out, t)
	}
	return out
}

// CloseAll cancels every game in play.
func (s *TableStore) CloseAll(reason string) {
	for _, t := range s.All() {
		t.Close(reason)
	}
}
