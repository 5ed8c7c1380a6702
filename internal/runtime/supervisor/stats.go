package supervisor

import (
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// task holds the counters shared by every run of one task name.
type task struct {
	name string

	active   atomic.Int64
	started  atomic.Uint64
	restarts atomic.Uint64
	panics   atomic.Uint64

	mu        sync.Mutex
	lastStart time.Time
	lastErr   string
	lastErrAt time.Time
}

func (t *task) begin(restart bool) time.Time {
	now := time.Now()
	t.active.Add(1)
	t.started.Add(1)
	if restart {
		t.restarts.Add(1)
	}
	t.mu.Lock()
	t.lastStart = now
	t.mu.Unlock()
	return now
}

func (t *task) end(err error) {
	t.active.Add(-1)
	if err == nil {
		return
	}
	t.mu.Lock()
	t.lastErr = err.Error()
	t.lastErrAt = time.Now()
	t.mu.Unlock()
}

type taskTable struct {
	mu sync.Mutex
	m  map[string]*task
}

func (tt *taskTable) get(name string) *task {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	if tt.m == nil {
		tt.m = make(map[string]*task)
	}
	t, ok := tt.m[name]
	if !ok {
		t = &task{name: name}
		tt.m[name] = t
	}
	return t
}

func (tt *taskTable) all() []*task {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	out := make([]*task, 0, len(tt.m))
	for _, t := range tt.m {
		out = append(out, t)
	}
	return out
}

// TaskStats is a point-in-time copy of one task's counters.
type TaskStats struct {
	Name      string    `json:"name"`
	Active    int64     `json:"active"`
	Started   uint64    `json:"started"`
	Restarts  uint64    `json:"restarts"`
	Panics    uint64    `json:"panics"`
	LastStart time.Time `json:"last_start"`
	LastErr   string    `json:"last_err,omitempty"`
	LastErrAt time.Time `json:"last_err_at"`
}

// Snapshot sums TaskStats across the supervisor. Counters are best-effort
// and may be mid-update.
type Snapshot struct {
	Active     int64       `json:"active"`
	Started    uint64      `json:"started"`
	Restarts   uint64      `json:"restarts"`
	Panics     uint64      `json:"panics"`
	FirstError string      `json:"first_error,omitempty"`
	Tasks      []TaskStats `json:"tasks"`
}

// Snapshot lists tasks busiest first, then by name. A nil supervisor gives
// an empty snapshot.
func (s *Supervisor) Snapshot() Snapshot {
	var snap Snapshot
	if s == nil {
		return snap
	}
	if err := s.Err(); err != nil {
		snap.FirstError = err.Error()
	}
	for _, t := range s.tasks.all() {
		t.mu.Lock()
		ts := TaskStats{
			Name:      t.name,
			Active:    t.active.Load(),
			Started:   t.started.Load(),
			Restarts:  t.restarts.Load(),
			Panics:    t.panics.Load(),
			LastStart: t.lastStart,
			LastErr:   t.lastErr,
			LastErrAt: t.lastErrAt,
		}
		t.mu.Unlock()
		snap.Active += ts.Active
		snap.Started += ts.Started
		snap.Restarts += ts.Restarts
		snap.Panics += ts.Panics
		snap.Tasks = append(snap.Tasks, ts)
	}
	slices.SortFunc(snap.Tasks, func(a, b TaskStats) int {
		if a.Active != b.Active {
			return int(b.Active - a.Active)
		}
		return strings.Compare(a.Name, b.Name)
	})
	return snap
}
