/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package lrumap provides a generic capacity-bounded map with access-order eviction.
// It backs the in-memory stores that must stay bounded no matter how many distinct
// keys clients throw at them (rate-limit counters, anti-forgery tokens).
package lrumap

import (
	"container/list"
	"fmt"
	"sync"
)

type mapEntry[K comparable, V any] struct {
	key   K
	value V
}

// Map is a mapping capped at a fixed number of entries.
// Both Get and Set count as an access and move the entry to the most-recently-used
// position; inserting beyond capacity evicts the single least-recently-used entry.
// All operations are safe for concurrent use and O(1) amortized.
type Map[K comparable, V any] struct {
	maxEntries int

	mu      sync.Mutex
	lruList *list.List
	index   map[K]*list.Element

	metricsCollector MetricsCollector
}

// New creates a new Map with the provided maximum number of entries.
// Metrics collector is used to collect statistics about the map usage, it may be nil.
func New[K comparable, V any](maxEntries int, metricsCollector MetricsCollector) (*Map[K, V], error) {
	if maxEntries <= 0 {
		return nil, fmt.Errorf("maxEntries must be greater than 0")
	}
	if metricsCollector == nil {
		metricsCollector = disabledMetrics{}
	}
	return &Map[K, V]{
		maxEntries:       maxEntries,
		lruList:          list.New(),
		index:            make(map[K]*list.Element),
		metricsCollector: metricsCollector,
	}, nil
}

// Get returns the value stored under the key and promotes the entry to
// most-recently-used. A miss has no side effects.
func (m *Map[K, V]) Get(key K) (value V, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, hit := m.index[key]
	if !hit {
		m.metricsCollector.IncMisses()
		return value, false
	}
	m.lruList.MoveToFront(elem)
	m.metricsCollector.IncHits()
	return elem.Value.(*mapEntry[K, V]).value, true
}

// Set upserts the value under the key, promoting the entry to most-recently-used.
// If the map is full, the least-recently-used entry is evicted.
func (m *Map[K, V]) Set(key K, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if elem, ok := m.index[key]; ok {
		m.lruList.MoveToFront(elem)
		elem.Value.(*mapEntry[K, V]).value = value
		return
	}

	m.index[key] = m.lruList.PushFront(&mapEntry[K, V]{key: key, value: value})
	if len(m.index) <= m.maxEntries {
		m.metricsCollector.SetAmount(len(m.index))
		return
	}
	if m.removeOldest() {
		m.metricsCollector.AddEvictions(1)
		m.metricsCollector.SetAmount(len(m.index))
	}
}

// Remove removes the entry stored under the key.
func (m *Map[K, V]) Remove(key K) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.index[key]
	if !ok {
		return false
	}
	m.lruList.Remove(elem)
	delete(m.index, key)
	m.metricsCollector.SetAmount(len(m.index))
	return true
}

// Len returns the number of entries in the map.
func (m *Map[K, V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.index)
}

// Range calls fn for each entry until fn returns false.
// Unlike Get, iteration does not touch recency order, so periodic sweeps can
// walk the map without protecting stale entries from eviction.
// fn must not call other methods of the map.
func (m *Map[K, V]) Range(fn func(key K, value V) bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for elem := m.lruList.Front(); elem != nil; elem = elem.Next() {
		entry := elem.Value.(*mapEntry[K, V])
		if !fn(entry.key, entry.value) {
			return
		}
	}
}

func (m *Map[K, V]) removeOldest() bool {
	elem := m.lruList.Back()
	if elem == nil {
		return false
	}
	m.lruList.Remove(elem)
	delete(m.index, elem.Value.(*mapEntry[K, V]).key)
	return true
}
