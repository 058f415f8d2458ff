package router

import "sync"

// Limiter counts model invocations in a world and stops routing to agents
// once the configured limit is reached. The count covers the whole world,
// not a single agent, so chains of agents mentioning each other run down the
// same budget.
type Limiter struct {
	mu    sync.Mutex
	limit int
	count int
}

func NewLimiter(limit int) *Limiter {
	return &Limiter{limit: limit}
}

// Acquire consumes one turn. It returns false when the limit is exhausted,
// in which case the caller must not invoke a model.
func (l *Limiter) Acquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.count >= l.limit {
		return false
	}
	l.count++
	return true
}

// Reset returns the full budget. Called whenever a human or the system
// speaks, and when an agent hands the conversation back.
func (l *Limiter) Reset() {
	l.mu.Lock()
	l.count = 0
	l.mu.Unlock()
}

func (l *Limiter) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

func (l *Limiter) Blocked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count >= l.limit
}

// SetLimit changes the budget without touching the current count.
func (l *Limiter) SetLimit(limit int) {
	l.mu.Lock()
	l.limit = limit
	l.mu.Unlock()
}

func (l *Limiter) Limit() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.limit
}
