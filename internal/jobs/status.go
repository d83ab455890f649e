package jobs

import (
	"sync"
	"time"
)

type State string

const (
	StateQueued  State = "queued"
	StateRunning State = "running"
	StateDone    State = "done"
	StateFailed  State = "failed"
)

// Status is the observable record of one job. Async callers only see
// acceptance at enqueue time; failures surface here, never at the enqueue call.
type Status struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	MALID      int64     `json:"mal_id,omitempty"`
	Limit      int       `json:"limit,omitempty"`
	State      State     `json:"state"`
	Error      string    `json:"error,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	StartedAt  time.Time `json:"started_at,omitzero"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// StatusStore keeps job records in memory for the life of the process.
type StatusStore struct {
	mu sync.RWMutex
	m  map[string]Status
}

func NewStatusStore() *StatusStore {
	return &StatusStore{m: make(map[string]Status)}
}

func (s *StatusStore) Get(id string) (Status, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.m[id]
	return st, ok
}

func (s *StatusStore) put(st Status) {
	s.mu.Lock()
	s.m[st.ID] = st
	s.mu.Unlock()
}

func (s *StatusStore) remove(id string) {
	s.mu.Lock()
	delete(s.m, id)
	s.mu.Unlock()
}

func (s *StatusStore) enqueued(job Job) {
	s.put(Status{
		ID:         job.ID,
		Kind:       job.Kind,
		MALID:      job.MALID,
		Limit:      job.Limit,
		State:      StateQueued,
		EnqueuedAt: time.Now().UTC(),
	})
}

func (s *StatusStore) running(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.m[id]
	if !ok {
		return
	}
	st.State = StateRunning
	st.StartedAt = time.Now().UTC()
	s.m[id] = st
}

func (s *StatusStore) finished(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.m[id]
	if !ok {
		return
	}
	st.FinishedAt = time.Now().UTC()
	if err != nil {
		st.State = StateFailed
		st.Error = err.Error()
	} else {
		st.State = StateDone
	}
	s.m[id] = st
}
