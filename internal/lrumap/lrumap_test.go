/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package lrumap

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMap(t *testing.T) {
	tests := []struct {
		name       string
		maxEntries int
		fn         func(t *testing.T, m *Map[string, int])
	}{
		{
			name:       "get on absent key returns nothing, no side effects",
			maxEntries: 2,
			fn: func(t *testing.T, m *Map[string, int]) {
				_, ok := m.Get("missing")
				require.False(t, ok)
				require.Equal(t, 0, m.Len())
			},
		},
		{
			name:       "set and get",
			maxEntries: 10,
			fn: func(t *testing.T, m *Map[string, int]) {
				m.Set("a", 1)
				v, ok := m.Get("a")
				require.True(t, ok)
				require.Equal(t, 1, v)
			},
		},
		{
			name:       "set upserts, never duplicates",
			maxEntries: 10,
			fn: func(t *testing.T, m *Map[string, int]) {
				m.Set("a", 1)
				m.Set("a", 2)
				require.Equal(t, 1, m.Len())
				v, ok := m.Get("a")
				require.True(t, ok)
				require.Equal(t, 2, v)
			},
		},
		{
			name:       "inserting N+1 distinct keys evicts exactly the least-recently-used one",
			maxEntries: 3,
			fn: func(t *testing.T, m *Map[string, int]) {
				m.Set("a", 1)
				m.Set("b", 2)
				m.Set("c", 3)
				m.Set("d", 4)
				require.Equal(t, 3, m.Len())
				_, ok := m.Get("a")
				assert.False(t, ok)
				for _, key := range []string{"b", "c", "d"} {
					_, ok = m.Get(key)
					assert.True(t, ok, "key %q must survive", key)
				}
			},
		},
		{
			name:       "get protects an entry from eviction ahead of a less-recently-touched one",
			maxEntries: 3,
			fn: func(t *testing.T, m *Map[string, int]) {
				m.Set("a", 1)
				m.Set("b", 2)
				m.Set("c", 3)
				_, ok := m.Get("a") // now "b" is the oldest
				require.True(t, ok)
				m.Set("d", 4)
				_, ok = m.Get("b")
				assert.False(t, ok)
				_, ok = m.Get("a")
				assert.True(t, ok)
			},
		},
		{
			name:       "remove",
			maxEntries: 10,
			fn: func(t *testing.T, m *Map[string, int]) {
				m.Set("a", 1)
				require.True(t, m.Remove("a"))
				require.False(t, m.Remove("a"))
				_, ok := m.Get("a")
				require.False(t, ok)
			},
		},
		{
			name:       "range walks all entries without touching recency",
			maxEntries: 3,
			fn: func(t *testing.T, m *Map[string, int]) {
				m.Set("a", 1)
				m.Set("b", 2)
				m.Set("c", 3)
				seen := map[string]int{}
				m.Range(func(key string, value int) bool {
					seen[key] = value
					return true
				})
				require.Equal(t, map[string]int{"a": 1, "b": 2, "c": 3}, seen)

				// "a" is still the oldest after Range.
				m.Set("d", 4)
				_, ok := m.Get("a")
				assert.False(t, ok)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New[string, int](tt.maxEntries, nil)
			require.NoError(t, err)
			tt.fn(t, m)
		})
	}
}

func TestNewValidation(t *testing.T) {
	_, err := New[string, int](0, nil)
	require.Error(t, err)
	_, err = New[string, int](-1, nil)
	require.Error(t, err)
}

func TestMapEvictionOrderUnderChurn(t *testing.T) {
	const capacity = 100
	m, err := New[string, int](capacity, nil)
	require.NoError(t, err)

	for i := 0; i < capacity*2; i++ {
		m.Set(fmt.Sprintf("key-%d", i), i)
	}
	require.Equal(t, capacity, m.Len())
	for i := 0; i < capacity; i++ {
		_, ok := m.Get(fmt.Sprintf("key-%d", i))
		require.False(t, ok)
	}
	for i := capacity; i < capacity*2; i++ {
		_, ok := m.Get(fmt.Sprintf("key-%d", i))
		require.True(t, ok)
	}
}
