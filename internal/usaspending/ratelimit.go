package usaspending

import (
	"context"
	"sync"
	"time"
)

// SlidingWindow enforces a cap on dispatches inside a rolling time window.
// It is shared, process-wide state for whichever client owns it: every caller
// through the same instance competes for the same budget. The zero value is
// not usable; construct with NewSlidingWindow.
type SlidingWindow struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	stamps []time.Time

	// injectable for tests
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewSlidingWindow returns a limiter allowing at most limit dispatches per
// window.
func NewSlidingWindow(limit int, window time.Duration) *SlidingWindow {
	if limit <= 0 {
		limit = 10
	}
	if window <= 0 {
		window = time.Second
	}
	return &SlidingWindow{
		limit:  limit,
		window: window,
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Wait blocks until a dispatch slot is available inside the rolling window,
// then records the dispatch. Returns early only if ctx is cancelled.
func (s *SlidingWindow) Wait(ctx context.Context) error {
	for {
		s.mu.Lock()
		now := s.now()
		s.evict(now)
		if len(s.stamps) < s.limit {
			s.stamps = append(s.stamps, now)
			s.mu.Unlock()
			return nil
		}
		// Oldest stamp decides when the next slot opens.
		wait := s.stamps[0].Add(s.window).Sub(now)
		s.mu.Unlock()
		if wait < time.Millisecond {
			wait = time.Millisecond
		}
		if err := s.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// InWindow reports how many dispatches are currently inside the window.
func (s *SlidingWindow) InWindow() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evict(s.now())
	return len(s.stamps)
}

func (s *SlidingWindow) evict(now time.Time) {
	cutoff := now.Add(-s.window)
	i := 0
	for i < len(s.stamps) && !s.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		s.stamps = append(s.stamps[:0], s.stamps[i:]...)
	}
}
