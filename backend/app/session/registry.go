package session

import (
	"math/rand/v2"
	"sort"
	"sync"
	"time"
)

const (
	DefaultMinID      = 100000
	DefaultMaxID      = 999999
	DefaultIDAttempts = 100
)

// Registry owns every Session in the process. Registry-level mutations are
// serialized by mu; per-session operations only hold the session's own lock.
type Registry struct {
	mu       sync.RWMutex
	sessions map[int]*Session

	minID        int
	maxID        int
	attempts     int
	pollInterval int
	intn         func(n int) int
	now          func() time.Time
}

type Option func(*Registry)

// WithIDRange restricts allocated ids to [min, max].
func WithIDRange(min, max int) Option {
	return func(r *Registry) {
		if min > 0 && max >= min {
			r.minID, r.maxID = min, max
		}
	}
}

func WithMaxAttempts(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.attempts = n
		}
	}
}

// WithDefaultPollInterval sets the poll interval given to new sessions.
func WithDefaultPollInterval(seconds int) Option {
	return func(r *Registry) {
		if ValidatePollInterval(seconds) == nil {
			r.pollInterval = seconds
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithRandom replaces the id sampler; intn must return a value in [0, n).
func WithRandom(intn func(n int) int) Option {
	return func(r *Registry) {
		if intn != nil {
			r.intn = intn
		}
	}
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		sessions:     make(map[int]*Session),
		minID:        DefaultMinID,
		maxID:        DefaultMaxID,
		attempts:     DefaultIDAttempts,
		pollInterval: DefaultPollInterval,
		intn:         rand.IntN,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register allocates a fresh random id, creates a session for it and
// returns the id. It fails with ErrAllocationExhausted when no free id was
// sampled within the attempt budget.
func (r *Registry) Register(address, hostname, user string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	span := r.maxID - r.minID + 1
	for i := 0; i < r.attempts; i++ {
		id := r.minID + r.intn(span)
		if _, taken := r.sessions[id]; taken {
			continue
		}
		r.sessions[id] = newSession(id, address, hostname, user, r.pollInterval, r.now)
		return id, nil
	}
	return 0, ErrAllocationExhausted
}

func (r *Registry) Lookup(id int) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrAgentNotFound
	}
	return s, nil
}

// Remove deletes the session and reports whether it existed.
func (r *Registry) Remove(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	return true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// List returns summaries ordered by join time, then id.
func (r *Registry) List(now time.Time, threshold time.Duration) []Summary {
	r.mu.RLock()
	all := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	r.mu.RUnlock()

	out := make([]Summary, 0, len(all))
	for _, s := range all {
		out = append(out, s.Summary(now, threshold))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Now returns the registry clock's current time.
func (r *Registry) Now() time.Time { return r.now() }
