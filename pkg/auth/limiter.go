package auth

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultRPS   = 5
	defaultBurst = 10
)

// bucket pairs a token bucket with the last time its key was seen, so
// stale entries can be evicted.
type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// limiterPool keeps one token bucket per API key (or client IP for
// unauthenticated callers). Buckets idle past idleTTL are swept so rotated
// keys and one-off probe IPs do not accumulate for the process lifetime.
type limiterPool struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	cfg     SecConfig

	idleTTL    time.Duration
	sweepEvery time.Duration
	sweepOnce  sync.Once
}

func (p *limiterPool) Allow(key string) bool {
	return p.get(key).Allow()
}

func (p *limiterPool) get(key string) *rate.Limiter {
	p.sweepOnce.Do(func() {
		if p.idleTTL <= 0 {
			p.idleTTL = 15 * time.Minute
		}
		if p.sweepEvery <= 0 {
			p.sweepEvery = time.Minute
		}
		go p.sweepLoop()
	})

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.buckets == nil {
		p.buckets = make(map[string]*bucket)
	}
	if b, ok := p.buckets[key]; ok {
		b.lastSeen = time.Now()
		return b.lim
	}

	rps := p.cfg.RPS
	if rps <= 0 {
		rps = defaultRPS
	}
	burst := p.cfg.Burst
	if burst <= 0 {
		burst = defaultBurst
	}
	b := &bucket{lim: rate.NewLimiter(rate.Limit(rps), burst), lastSeen: time.Now()}
	p.buckets[key] = b
	return b.lim
}

// sweepLoop drops buckets whose key has been idle longer than idleTTL.
func (p *limiterPool) sweepLoop() {
	t := time.NewTicker(p.sweepEvery)
	defer t.Stop()
	for range t.C {
		cutoff := time.Now().Add(-p.idleTTL)
		p.mu.Lock()
		for k, b := range p.buckets {
			if b.lastSeen.Before(cutoff) {
				delete(p.buckets, k)
			}
		}
		p.mu.Unlock()
	}
}
