package indexer

import (
	"sync"
	"sync/atomic"
	"time"
)

// Tracker records which projects have an indexing call in flight.
// It is advisory: it never blocks a caller, it only answers IsIndexing.
type Tracker struct {
	mu       sync.Mutex
	projects map[string]*projectState
}

type projectState struct {
	active      atomic.Int32 // in-flight batch/reindex calls
	lastIndexed atomic.Int64 // unix nanos of the last successful write, 0 if none
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{projects: make(map[string]*projectState)}
}

func (t *Tracker) state(projectID string) *projectState {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.projects[projectID]
	if !ok {
		s = &projectState{}
		t.projects[projectID] = s
	}
	return s
}

// Begin marks projectID as indexing until the returned func is called.
// Callers defer the func so the flag clears on every exit path.
func (t *Tracker) Begin(projectID string) (done func()) {
	s := t.state(projectID)
	s.active.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() { s.active.Add(-1) })
	}
}

// IsIndexing reports whether any batch or reindex is running for projectID
func (t *Tracker) IsIndexing(projectID string) bool {
	t.mu.Lock()
	s, ok := t.projects[projectID]
	t.mu.Unlock()
	return ok && s.active.Load() > 0
}

// Touch records a successful write for projectID
func (t *Tracker) Touch(projectID string) {
	t.state(projectID).lastIndexed.Store(time.Now().UnixNano())
}

// LastIndexed returns the time of the last successful write seen by this process
func (t *Tracker) LastIndexed(projectID string) (time.Time, bool) {
	t.mu.Lock()
	s, ok := t.projects[projectID]
	t.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	n := s.lastIndexed.Load()
	if n == 0 {
		return time.Time{}, false
	}
	return time.Unix(0, n), true
}

// Forget drops the write history of projectID. In-flight calls keep their flag.
func (t *Tracker) Forget(projectID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.projects[projectID]; ok && s.active.Load() == 0 {
		delete(t.projects, projectID)
	} else if ok {
		s.lastIndexed.Store(0)
	}
}
