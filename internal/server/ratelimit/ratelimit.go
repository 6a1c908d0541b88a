// Package ratelimit provides per-client request limiting using a token
// bucket. Generation endpoints get a tighter budget than read endpoints
// because each accepted job turns into a series of model calls.
package ratelimit

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Rule is one rate limit applied to a path prefix.
type Rule struct {
	Prefix     string  // request path prefix the rule applies to
	Method     string  // HTTP method, empty means any
	Capacity   int     // burst capacity
	RefillRate float64 // tokens per second
}

// Config holds the limiter's rules and defaults.
type Config struct {
	Enabled         bool
	Default         Rule
	Rules           []Rule
	CleanupInterval time.Duration
}

// LoadConfig builds the limiter configuration from environment variables.
// RATE_LIMIT_ENABLED (default true), RATE_LIMIT_RPM (default 120) for reads,
// RATE_LIMIT_JOBS_RPM (default 10) for job creation.
func LoadConfig() Config {
	enabled := true
	if v := os.Getenv("RATE_LIMIT_ENABLED"); v != "" {
		enabled = !strings.EqualFold(v, "false") && v != "0"
	}
	rpm := envInt("RATE_LIMIT_RPM", 120)
	jobsRPM := envInt("RATE_LIMIT_JOBS_RPM", 10)

	return Config{
		Enabled: enabled,
		Default: Rule{Capacity: rpm, RefillRate: float64(rpm) / 60},
		Rules: []Rule{
			{Prefix: "/jobs", Method: "POST", Capacity: jobsRPM, RefillRate: float64(jobsRPM) / 60},
		},
		CleanupInterval: 5 * time.Minute,
	}
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// Info reports the limit state returned alongside each decision.
type Info struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetTime time.Time
}

// bucket is a token bucket for one client and rule.
type bucket struct {
	capacity   int
	refillRate float64
	tokens     float64
	lastRefill time.Time
	lastSeen   time.Time
}

func (b *bucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastRefill)
	b.tokens = min(float64(b.capacity), b.tokens+elapsed.Seconds()*b.refillRate)
	b.lastRefill = now
}

// Limiter applies rate limit rules per client.
type Limiter struct {
	config  Config
	mu      sync.Mutex
	buckets map[string]*bucket
	done    chan struct{}
}

// NewLimiter creates a limiter and starts its idle-bucket cleanup goroutine.
func NewLimiter(config Config) *Limiter {
	l := &Limiter{
		config:  config,
		buckets: make(map[string]*bucket),
		done:    make(chan struct{}),
	}
	if config.CleanupInterval > 0 {
		go l.cleanupLoop()
	}
	return l
}

// Allow reports whether a request from clientID for path/method may proceed.
func (l *Limiter) Allow(clientID, path, method string) (bool, Info) {
	if !l.config.Enabled {
		return true, Info{Allowed: true}
	}

	rule := l.match(path, method)
	key := clientID + "|" + rule.Prefix + "|" + rule.Method

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{
			capacity:   rule.Capacity,
			refillRate: rule.RefillRate,
			tokens:     float64(rule.Capacity),
			lastRefill: now,
		}
		l.buckets[key] = b
	}
	b.lastSeen = now
	b.refill(now)

	allowed := b.tokens >= 1.0
	if allowed {
		b.tokens -= 1.0
	}

	info := Info{
		Allowed:   allowed,
		Limit:     b.capacity,
		Remaining: int(b.tokens),
	}
	if b.tokens < float64(b.capacity) {
		deficit := float64(b.capacity) - b.tokens
		info.ResetTime = now.Add(time.Duration(deficit / b.refillRate * float64(time.Second)))
	} else {
		info.ResetTime = now
	}
	return allowed, info
}

// Stop terminates the cleanup goroutine.
func (l *Limiter) Stop() {
	close(l.done)
}

// match finds the first rule covering the path and method, falling back to
// the default rule.
func (l *Limiter) match(path, method string) Rule {
	for _, rule := range l.config.Rules {
		if !strings.HasPrefix(path, rule.Prefix) {
			continue
		}
		if rule.Method != "" && rule.Method != method {
			continue
		}
		return rule
	}
	return l.config.Default
}

// cleanupLoop drops buckets idle for two cleanup intervals.
func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(l.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-2 * l.config.CleanupInterval)
			l.mu.Lock()
			for key, b := range l.buckets {
				if b.lastSeen.Before(cutoff) {
					delete(l.buckets, key)
				}
			}
			l.mu.Unlock()
		}
	}
}
