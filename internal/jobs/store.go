package jobs

import (
	"sync"

	"github.com/google/uuid"

	"github.com/jonathan/report-retriever/internal/steps"
)

// Store is a concurrency-safe, in-memory registry of job records. It is the
// sole owner of record memory; readers only ever see copies. Job state does
// not survive process restart and records are never deleted.
type Store struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*Record
	catalog []steps.Definition
}

// NewStore creates an empty store using the given step catalog for new records.
func NewStore(catalog []steps.Definition) *Store {
	return &Store{
		records: make(map[uuid.UUID]*Record),
		catalog: catalog,
	}
}

// Create allocates a fresh job id, inserts an initialized record and returns
// the id.
func (s *Store) Create() uuid.UUID {
	id := uuid.New()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[id] = newRecord(id, s.catalog)
	return id
}

// StepCount returns the number of steps new records are created with.
func (s *Store) StepCount() int {
	return len(s.catalog)
}

// Get returns a deep copy of the record, or false if the id is unknown.
func (s *Store) Get(id uuid.UUID) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return Record{}, false
	}
	return rec.clone(), true
}

// Mutate applies fn to the record under exclusive access. Unknown ids are
// ignored so callers racing with an absent record stay safe.
func (s *Store) Mutate(id uuid.UUID, fn func(*Record)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return
	}
	fn(rec)
}
