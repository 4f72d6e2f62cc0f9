package main

import (
	// stdlib
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	// internal
	"github.com/grigone/detweb/pkg/detect"
	"github.com/grigone/detweb/pkg/stats"

	// external
	"github.com/google/uuid"
)

type jobState string

const (
	jobQueued  jobState = "queued"
	jobRunning jobState = "running"
	jobDone    jobState = "done"
	jobFailed  jobState = "failed"
)

// jobUpdate is what status polls and the websocket both see
type jobUpdate struct {
	ID       string         `json:"id"`
	State    jobState       `json:"state"`
	Done     int            `json:"done"`
	Total    int            `json:"total"`
	Fraction float64        `json:"fraction"`
	Frames   int            `json:"frames,omitempty"`
	Counts   map[string]int `json:"counts,omitempty"`
	Stats    []stats.Entry  `json:"stats,omitempty"`
	Error    string         `json:"error,omitempty"`
}

type job struct {
	id       string
	created  time.Time
	mu       sync.Mutex
	state    jobState
	done     int
	total    int
	fraction float64
	result   *detect.VideoResult
	err      error
	finished time.Time
	subs     map[chan jobUpdate]struct{}
}

func (j *job) progress(done, total int, fraction float64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state = jobRunning
	j.done, j.total, j.fraction = done, total, fraction
	j.notify()
}

func (j *job) complete(result *detect.VideoResult) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state = jobDone
	j.result = result
	j.fraction = 1
	j.finished = time.Now()
	j.notify()
}

func (j *job) fail(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state = jobFailed
	j.err = err
	j.finished = time.Now()
	j.notify()
}

func (j *job) snapshot() jobUpdate {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.update()
}

// update builds the outward view; callers hold j.mu
func (j *job) update() jobUpdate {
	u := jobUpdate{
		ID:       j.id,
		State:    j.state,
		Done:     j.done,
		Total:    j.total,
		Fraction: j.fraction,
	}
	if j.result != nil {
		u.Frames = j.result.Frames
		u.Counts = j.result.Stats.Counts()
		u.Stats = j.result.Stats.Entries()
	}
	if j.err != nil {
		u.Error = j.err.Error()
	}
	return u
}

// notify pushes the current state to all subscribers without ever blocking
// the video loop; a slow websocket just misses intermediate updates
func (j *job) notify() {
	u := j.update()
	for sub := range j.subs {
		select {
		case sub <- u:
		default:
		}
	}
}

func (j *job) subscribe() (<-chan jobUpdate, func()) {
	sub := make(chan jobUpdate, 16)
	j.mu.Lock()
	j.subs[sub] = struct{}{}
	j.mu.Unlock()
	return sub, func() {
		j.mu.Lock()
		delete(j.subs, sub)
		j.mu.Unlock()
	}
}

type jobRegistry struct {
	mu     sync.Mutex
	jobs   map[string]*job
	ttl    time.Duration
	logger *slog.Logger
}

func newJobRegistry(ttl time.Duration, logger *slog.Logger) *jobRegistry {
	return &jobRegistry{
		jobs:   make(map[string]*job),
		ttl:    ttl,
		logger: logger,
	}
}

func (r *jobRegistry) create() *job {
	j := &job{
		id:      uuid.NewString(),
		created: time.Now(),
		state:   jobQueued,
		subs:    make(map[chan jobUpdate]struct{}),
	}
	r.mu.Lock()
	r.jobs[j.id] = j
	r.mu.Unlock()
	return j
}

func (r *jobRegistry) get(id string) (*job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	return j, ok
}

// sweep deletes finished jobs and their output files once the user has had
// ttl to download them. Deletion failures are swallowed.
func (r *jobRegistry) sweep(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.expire(time.Now())
		}
	}
}

func (r *jobRegistry) expire(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, j := range r.jobs {
		j.mu.Lock()
		expired := (j.state == jobDone || j.state == jobFailed) &&
			now.Sub(j.finished) > r.ttl
		result := j.result
		j.mu.Unlock()
		if !expired {
			continue
		}
		if result != nil {
			if err := os.Remove(result.OutputPath); err != nil && !os.IsNotExist(err) {
				r.logger.Debug("Job output not deleted", "path", result.OutputPath, "error", err)
			}
		}
		delete(r.jobs, id)
	}
}
