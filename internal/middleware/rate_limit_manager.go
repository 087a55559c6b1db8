package middleware

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimitPolicy is the allowance of one scope, per client IP.
type RateLimitPolicy struct {
	Requests int
	Window   time.Duration
	Burst    int
}

func (p RateLimitPolicy) limiter() *rate.Limiter {
	window := p.Window
	if window <= 0 {
		window = time.Minute
	}
	burst := p.Burst
	if burst < p.Requests {
		burst = p.Requests
	}
	return rate.NewLimiter(rate.Limit(float64(p.Requests)/window.Seconds()), burst)
}

// RateLimitManager keeps one limiter per (scope, IP) and drops idle ones in
// the background until Shutdown.
type RateLimitManager struct {
	mu       sync.Mutex
	visitors map[string]map[string]*visitor
	idle     time.Duration
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRateLimitManager(ctx context.Context) *RateLimitManager {
	managerCtx, cancel := context.WithCancel(ctx)

	m := &RateLimitManager{
		visitors: make(map[string]map[string]*visitor),
		idle:     10 * time.Minute,
		now:      time.Now,
		ctx:      managerCtx,
		cancel:   cancel,
	}

	m.wg.Add(1)
	go m.cleanupLoop()

	return m
}

// Limiter returns the limiter of ip within scope, or nil when the policy
// does not limit.
func (m *RateLimitManager) Limiter(scope, ip string, policy RateLimitPolicy) *rate.Limiter {
	if policy.Requests <= 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	scoped, ok := m.visitors[scope]
	if !ok {
		scoped = make(map[string]*visitor)
		m.visitors[scope] = scoped
	}

	v, ok := scoped[ip]
	if !ok {
		v = &visitor{limiter: policy.limiter()}
		scoped[ip] = v
	}
	v.lastSeen = m.now()
	return v.limiter
}

func (m *RateLimitManager) cleanupLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.cleanup()
		}
	}
}

func (m *RateLimitManager) cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-m.idle)
	for scope, scoped := range m.visitors {
		for ip, v := range scoped {
			if v.lastSeen.Before(cutoff) {
				delete(scoped, ip)
			}
		}
		if len(scoped) == 0 {
			delete(m.visitors, scope)
		}
	}
}

// Shutdown stops the cleanup goroutine and waits for it to finish.
func (m *RateLimitManager) Shutdown() error {
	m.cancel()
	m.wg.Wait()
	return nil
}
