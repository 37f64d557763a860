/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package ratelimit implements sliding-window admission control per client key.
// Unlike fixed-window counters, the limiter keeps the exact timestamps of
// admitted events, so a denied caller gets a precise retry-after hint and stale
// events roll out of the window one by one.
package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"github.com/cardkit/cardkit/internal/lrumap"
)

// Rate describes the frequency of admitted events: at most Count events per Window.
type Rate struct {
	Count  int
	Window time.Duration
}

func (r Rate) String() string {
	return fmt.Sprintf("%d/%s", r.Count, r.Window)
}

// Result is the outcome of a single admission check.
// RetryAfter is non-zero only when the check was denied.
type Result struct {
	Allowed    bool
	RetryAfter time.Duration
}

// RetryAfterSeconds returns the retry hint rounded up to whole seconds,
// suitable for a Retry-After response header.
func (r Result) RetryAfterSeconds() int {
	if r.Allowed || r.RetryAfter <= 0 {
		return 0
	}
	secs := int((r.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

type eventLog struct {
	stamps []time.Time
}

// SlidingWindow is a per-key sliding-window rate limiter.
// Keys are held in a capacity-bounded LRU map, so the number of tracked clients
// stays bounded regardless of traffic; eviction there is by recency, not by time.
type SlidingWindow struct {
	rate Rate

	mu   sync.Mutex
	keys *lrumap.Map[string, *eventLog]

	nowFn func() time.Time // for tests
}

// NewSlidingWindow creates a new limiter tracking at most maxKeys client keys.
func NewSlidingWindow(rate Rate, maxKeys int, metricsCollector lrumap.MetricsCollector) (*SlidingWindow, error) {
	if rate.Count <= 0 || rate.Window <= 0 {
		return nil, fmt.Errorf("invalid rate %s", rate)
	}
	keys, err := lrumap.New[string, *eventLog](maxKeys, metricsCollector)
	if err != nil {
		return nil, fmt.Errorf("new LRU store for keys: %w", err)
	}
	return &SlidingWindow{rate: rate, keys: keys, nowFn: time.Now}, nil
}

// Rate returns the limiter's rate.
func (l *SlidingWindow) Rate() Rate {
	return l.rate
}

// CheckAndRecord prunes events older than the window for the key, checks the
// remaining count against the limit and, if allowed, records the current moment.
func (l *SlidingWindow) CheckAndRecord(key string) Result {
	now := l.nowFn()
	cutoff := now.Add(-l.rate.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	log, ok := l.keys.Get(key)
	if !ok {
		log = &eventLog{}
		l.keys.Set(key, log)
	}

	log.stamps = pruneStamps(log.stamps, cutoff)

	if len(log.stamps) >= l.rate.Count {
		// The slot frees up when the oldest event leaves the window.
		return Result{RetryAfter: log.stamps[0].Add(l.rate.Window).Sub(now)}
	}

	log.stamps = append(log.stamps, now)
	return Result{Allowed: true}
}

// Sweep prunes stale timestamps across all keys and removes keys whose window
// is now empty. It returns the number of removed keys.
// Sweeping is independent of the LRU cap: an idle key is removed here even if
// it is recent enough to survive eviction.
func (l *SlidingWindow) Sweep() (removed int) {
	cutoff := l.nowFn().Add(-l.rate.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	var empty []string
	l.keys.Range(func(key string, log *eventLog) bool {
		log.stamps = pruneStamps(log.stamps, cutoff)
		if len(log.stamps) == 0 {
			empty = append(empty, key)
		}
		return true
	})
	for _, key := range empty {
		if l.keys.Remove(key) {
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (l *SlidingWindow) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.keys.Len()
}

func pruneStamps(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for ; i < len(stamps); i++ {
		if stamps[i].After(cutoff) {
			break
		}
	}
	if i == 0 {
		return stamps
	}
	return append(stamps[:0], stamps[i:]...)
}
