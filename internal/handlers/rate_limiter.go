package handlers

import (
	"strings"
	"sync"
	"time"
)

// rateLimiter gates order creation per caller key.
type rateLimiter interface {
	Allow(key string) bool
}

// createThrottle counts order creations per caller in fixed windows. State
// is in-memory only; each instance enforces its own budget.
type createThrottle struct {
	limit  int
	window time.Duration
	clock  func() time.Time

	mu      sync.Mutex
	callers map[string]callerWindow
}

type callerWindow struct {
	remaining int
	expires   time.Time
}

func newCreateThrottle(limit int, window time.Duration, clock func() time.Time) rateLimiter {
	if limit <= 0 || window <= 0 {
		return nil
	}
	if clock == nil {
		clock = time.Now
	}
	return &createThrottle{
		limit:   limit,
		window:  window,
		clock:   clock,
		callers: make(map[string]callerWindow),
	}
}

// WithCreateThrottle caps order creation at limit requests per window for
// each client. Non-positive values disable throttling.
func WithCreateThrottle(limit int, window time.Duration) OrderHandlerOption {
	return WithCreateRateLimiter(newCreateThrottle(limit, window, nil))
}

func (t *createThrottle) Allow(key string) bool {
	if t == nil {
		return true
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = "unknown"
	}

	now := t.clock()
	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.callers[key]
	if !ok || now.After(w.expires) {
		t.sweepLocked(now)
		t.callers[key] = callerWindow{remaining: t.limit - 1, expires: now.Add(t.window)}
		return true
	}
	if w.remaining == 0 {
		return false
	}
	w.remaining--
	t.callers[key] = w
	return true
}

// sweepLocked drops expired windows so idle callers do not accumulate.
func (t *createThrottle) sweepLocked(now time.Time) {
	for key, w := range t.callers {
		if now.After(w.expires) {
			delete(t.callers, key)
		}
	}
}
