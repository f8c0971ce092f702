// Package ratelimit bounds call frequency against external API quotas.
package ratelimit

import (
	"sync"
	"time"
)

const hourWindow = time.Hour

// QuotaStatus is a read-only snapshot of hourly quota usage.
type QuotaStatus struct {
	CallsThisHour int     `json:"calls_this_hour"`
	QuotaPerHour  int     `json:"quota_per_hour"`
	Remaining     int     `json:"remaining"`
	PercentUsed   float64 `json:"percent_used"`
}

type serviceState struct {
	lastCall        time.Time
	hourWindowStart time.Time
	callsThisHour   int
}

// Limiter is a process-wide gate shared by every caller that may reach the
// same external service (interactive poller and scheduled collector). All
// state transitions happen under one lock so two concurrent CanCall checks
// cannot both be allowed inside the minimum interval.
type Limiter struct {
	mu          sync.Mutex
	minInterval time.Duration
	services    map[string]*serviceState

	now func() time.Time
}

// New returns a limiter enforcing minInterval between any two calls to the
// same service. Service state is created lazily on first use and lives for
// the process lifetime.
func New(minInterval time.Duration) *Limiter {
	return &Limiter{
		minInterval: minInterval,
		services:    make(map[string]*serviceState),
		now:         time.Now,
	}
}

// state returns the per-service record, rolling the hourly window forward
// when it has elapsed. Every accessor goes through here, so quota reads are
// never stale even without an intervening CanCall. Lazy reset on access; no
// background timer is needed given calls occur at most every few minutes.
// Callers hold l.mu.
func (l *Limiter) state(service string) *serviceState {
	st, ok := l.services[service]
	if !ok {
		st = &serviceState{}
		l.services[service] = st
	}

	if !st.hourWindowStart.IsZero() && l.now().Sub(st.hourWindowStart) > hourWindow {
		st.callsThisHour = 0
		st.hourWindowStart = l.now()
	}
	return st
}

// CanCall reports whether a call to service is allowed now. When denied, the
// returned wait is the seconds remaining until the minimum interval elapses.
// The limiter gates batches, not individual probes: one check covers the
// whole set of live probe calls issued by a refresh cycle.
func (l *Limiter) CanCall(service string) (bool, float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := l.state(service)
	now := l.now()

	if !st.lastCall.IsZero() {
		elapsed := now.Sub(st.lastCall)
		if elapsed < l.minInterval {
			return false, (l.minInterval - elapsed).Seconds()
		}
	}

	return true, 0
}

// RecordCall records a call timestamp and increments the hourly counter.
func (l *Limiter) RecordCall(service string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := l.state(service)
	now := l.now()

	st.lastCall = now
	if st.hourWindowStart.IsZero() {
		st.hourWindowStart = now
	}
	st.callsThisHour++
}

// MinInterval reports the configured spacing between calls.
func (l *Limiter) MinInterval() time.Duration { return l.minInterval }

// QuotaStatus returns hourly usage against quotaPerHour. Reading the status
// never counts as a call.
func (l *Limiter) QuotaStatus(service string, quotaPerHour int) QuotaStatus {
	l.mu.Lock()
	defer l.mu.Unlock()

	count := l.state(service).callsThisHour
	status := QuotaStatus{
		CallsThisHour: count,
		QuotaPerHour:  quotaPerHour,
	}
	if quotaPerHour > 0 {
		status.Remaining = max(0, quotaPerHour-count)
		status.PercentUsed = min(100, float64(count)/float64(quotaPerHour)*100)
	}
	return status
}

// LastCallAge returns the time since the last recorded call to service.
// ok is false when the service has never been called.
func (l *Limiter) LastCallAge(service string) (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := l.state(service)
	if st.lastCall.IsZero() {
		return 0, false
	}
	return l.now().Sub(st.lastCall), true
}
