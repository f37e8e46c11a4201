package draft

import (
	"sync"
	"time"
)

const (
	// DefaultDebounceInterval is the quiet period before a scheduled form
	// state is persisted.
	DefaultDebounceInterval = 3 * time.Second

	// savingHold keeps the saving flag visible after a write completes so
	// fast writes do not flicker in the UI.
	savingHold = 500 * time.Millisecond
)

// Snapshot is the full form state handed to a scheduled write. The commit
// always receives the most recently scheduled snapshot, never a diff.
type Snapshot struct {
	Data        []byte
	Title       string
	ClientName  string
	ClientPhone string
}

// Scheduler is a trailing-edge debounce around a commit function. Each
// Schedule call discards any pending write and restarts the timer, so at most
// one write is in flight per quiet period and it always carries the last
// observed state. Cancel must run on form teardown and before any immediate
// delete, or a stale write can land after the delete.
type Scheduler struct {
	interval time.Duration
	commit   func(Snapshot)

	mu     sync.Mutex
	timer  *time.Timer
	saving bool
	gen    uint64

	// runMu serializes commits so writes for the same form are strictly
	// ordered even if a fire overlaps a freshly scheduled one.
	runMu sync.Mutex
}

// NewScheduler wraps commit in a debounce of the given interval.
// interval <= 0 falls back to DefaultDebounceInterval.
func NewScheduler(interval time.Duration, commit func(Snapshot)) *Scheduler {
	if interval <= 0 {
		interval = DefaultDebounceInterval
	}
	return &Scheduler{interval: interval, commit: commit}
}

// Schedule queues snap for persistence after the quiet period, replacing any
// pending write.
func (s *Scheduler) Schedule(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}
	gen := s.gen
	s.timer = time.AfterFunc(s.interval, func() {
		s.fire(gen, snap)
	})
}

// Cancel drops any pending write. A write already in progress is unaffected,
// but its snapshot was the latest at the time it fired.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}

// Saving reports whether a write is in flight or within its visibility hold.
func (s *Scheduler) Saving() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saving
}

func (s *Scheduler) fire(gen uint64, snap Snapshot) {
	s.mu.Lock()
	if gen != s.gen {
		// cancelled between timer fire and here
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.saving = true
	s.mu.Unlock()

	s.runMu.Lock()
	s.commit(snap)
	s.runMu.Unlock()

	// Hold the flag whether the write succeeded or failed.
	time.AfterFunc(savingHold, func() {
		s.mu.Lock()
		s.saving = false
		s.mu.Unlock()
	})
}
