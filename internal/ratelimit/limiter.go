// Package ratelimit provides per-caller admission control with a daily
// quota. The dispatcher consumes only the Limiter interface; the in-memory
// implementation here is the default deployment, swappable for a shared
// policy store.
package ratelimit

import (
	"sync"
	"time"

	"github.com/khroma-labs/khroma/internal/core"
)

// Limiter admits or rejects one turn for a caller. A denial returns
// core.ErrQuotaExceeded.
type Limiter interface {
	Allow(callerID string) error
}

type window struct {
	start time.Time
	count int
}

// DailyLimiter counts admitted requests per caller over a rolling 24-hour
// window starting at the caller's first counted request. Tickets are
// ephemeral; nothing here is durable conversation state.
type DailyLimiter struct {
	mu      sync.Mutex
	quota   int
	span    time.Duration
	callers map[string]*window
	now     func() time.Time
}

func NewDailyLimiter(quota int) *DailyLimiter {
	return &DailyLimiter{
		quota:   quota,
		span:    24 * time.Hour,
		callers: make(map[string]*window),
		now:     time.Now,
	}
}

func (l *DailyLimiter) Allow(callerID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.callers[callerID]
	if !ok || now.Sub(w.start) >= l.span {
		l.callers[callerID] = &window{start: now, count: 1}
		return nil
	}
	if w.count >= l.quota {
		return core.ErrQuotaExceeded
	}
	w.count++
	return nil
}
