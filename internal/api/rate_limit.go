package api

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// loginThrottle blocks logins from an IP after too many failures in a
// sliding window. It deliberately counts failures, not attempts: a shared
// office NAT logging many users in legitimately must not lock itself out.
//
// State is in-memory and per-process. That is acceptable for a throttle:
// it bounds brute force per instance, and the audit trail is the
// authoritative record across instances.
type loginThrottle struct {
	mu       sync.Mutex
	max      int
	window   time.Duration
	failures map[string][]time.Time
}

func newLoginThrottle(max int, window time.Duration) *loginThrottle {
	return &loginThrottle{
		max:      max,
		window:   window,
		failures: make(map[string][]time.Time),
	}
}

// Blocked reports whether ip has exhausted its failure budget, and if so
// how long the caller should wait.
func (t *loginThrottle) Blocked(ip string, now time.Time) (bool, time.Duration) {
	if t == nil || t.max <= 0 || ip == "" {
		return false, 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	recent := t.pruneLocked(ip, now)
	if len(recent) < t.max {
		return false, 0
	}
	// Budget resets when the oldest failure leaves the window.
	return true, recent[0].Add(t.window).Sub(now)
}

// NoteFailure records a failed login from ip.
func (t *loginThrottle) NoteFailure(ip string, now time.Time) {
	if t == nil || t.max <= 0 || ip == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.failures[ip] = append(t.pruneLocked(ip, now), now)
}

// pruneLocked drops failures older than the window. Caller must hold t.mu.
func (t *loginThrottle) pruneLocked(ip string, now time.Time) []time.Time {
	cut := now.Add(-t.window)
	all := t.failures[ip]

	recent := all[:0]
	for _, ts := range all {
		if ts.After(cut) {
			recent = append(recent, ts)
		}
	}
	if len(recent) == 0 {
		delete(t.failures, ip)
		return nil
	}
	t.failures[ip] = recent
	return recent
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	if retryAfter > 0 {
		secs := int64(retryAfter.Seconds())
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
	}
	writeError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
}
