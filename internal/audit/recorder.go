// Package audit keeps the latest logged record of each incident.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/ai-devops/autoheal/internal/domain"
	"go.uber.org/zap"
)

// Entry is one incident as it was last logged.
type Entry struct {
	Incident domain.Incident `json:"incident"`
	LoggedAt time.Time       `json:"logged_at"`
	Writes   int             `json:"writes"`
}

// Recorder is a bounded, in-memory incident logger. Logging the same
// incident twice replaces the stored record, so calls are idempotent.
type Recorder struct {
	mu       sync.RWMutex
	entries  map[string]*Entry
	order    []string // insertion order, oldest first
	capacity int
	logger   *zap.Logger
}

// New creates a Recorder holding at most capacity incidents.
func New(capacity int, logger *zap.Logger) *Recorder {
	if capacity < 1 {
		capacity = 1
	}
	return &Recorder{
		entries:  make(map[string]*Entry),
		capacity: capacity,
		logger:   logger.Named("audit"),
	}
}

// LogIncident stores the incident, replacing any earlier record of it.
func (r *Recorder) LogIncident(_ context.Context, inc domain.Incident) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[inc.ID]; ok {
		e.Incident = inc
		e.LoggedAt = time.Now().UTC()
		e.Writes++
	} else {
		if len(r.order) >= r.capacity {
			oldest := r.order[0]
			r.order = r.order[1:]
			delete(r.entries, oldest)
		}
		r.entries[inc.ID] = &Entry{Incident: inc, LoggedAt: time.Now().UTC(), Writes: 1}
		r.order = append(r.order, inc.ID)
	}

	r.logger.Info("incident logged",
		zap.String("incident_id", inc.ID),
		zap.String("state", string(inc.State)),
		zap.Int("timeline_entries", len(inc.Timeline)),
	)
	return nil
}

// Get returns the logged record of one incident.
func (r *Recorder) Get(id string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// List returns up to limit records, newest first. limit <= 0 returns all.
func (r *Recorder) List(limit int) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := len(r.order)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Entry, 0, n)
	for i := len(r.order) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, *r.entries[r.order[i]])
	}
	return out
}

// Len returns the number of stored records.
func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
