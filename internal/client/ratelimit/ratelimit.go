// Package ratelimit guards the login path against brute-force attempts by
// tracking failed logins per identifier inside a sliding window.
package ratelimit

import (
	"strings"
	"sync"
	"time"
)

const (
	DefaultMaxAttempts = 5
	DefaultWindow      = 15 * time.Minute
)

// Decision is the advisory result of a pre-login check. The limiter never
// blocks anything itself; enforcement is the caller's responsibility.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

type attempt struct {
	count int
	last  time.Time
}

// Limiter tracks failed login attempts per identifier.
//
// The protocol is two-phase: call Check before submitting a login and Record
// once the outcome is known. The split is deliberate — the limiter must
// never veto a user based on an attempt it has not yet recorded.
type Limiter struct {
	maxAttempts int
	window      time.Duration
	now         func() time.Time

	mu       sync.Mutex
	attempts map[string]*attempt
}

func New(maxAttempts int, window time.Duration) *Limiter {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{
		maxAttempts: maxAttempts,
		window:      window,
		now:         time.Now,
		attempts:    make(map[string]*attempt),
	}
}

// Check reports whether another attempt for identifier may be submitted.
// A record whose window has fully elapsed is deleted, not reset.
func (l *Limiter) Check(identifier string) Decision {
	key := normalize(identifier)

	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.attempts[key]
	if !ok {
		return Decision{Allowed: true}
	}

	elapsed := l.now().Sub(rec.last)
	if elapsed >= l.window {
		delete(l.attempts, key)
		return Decision{Allowed: true}
	}

	if rec.count >= l.maxAttempts {
		return Decision{Allowed: false, RetryAfter: l.window - elapsed}
	}
	return Decision{Allowed: true}
}

// Record notes the outcome of an attempt. Success deletes the record
// entirely; failure increments the count and refreshes the attempt time,
// creating the record if absent.
func (l *Limiter) Record(identifier string, success bool) {
	key := normalize(identifier)

	l.mu.Lock()
	defer l.mu.Unlock()

	if success {
		delete(l.attempts, key)
		return
	}

	now := l.now()
	rec, ok := l.attempts[key]
	if !ok || now.Sub(rec.last) >= l.window {
		l.attempts[key] = &attempt{count: 1, last: now}
		return
	}
	rec.count++
	rec.last = now
}

// normalize keys "Alice@example.com" and " alice@example.com " to the same
// record.
func normalize(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}
