/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package csrftoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, ttl time.Duration, maxSessions int) (*Store, *time.Time) {
	t.Helper()
	s, err := NewStore(ttl, maxSessions, nil)
	require.NoError(t, err)
	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	s.nowFn = func() time.Time { return now }
	return s, &now
}

func TestStoreIssueAndValidate(t *testing.T) {
	s, _ := newTestStore(t, 24*time.Hour, 100)

	token, err := s.Issue("session-1")
	require.NoError(t, err)
	require.Len(t, token, 64) // 32 random bytes, hex-encoded

	assert.True(t, s.Validate("session-1", token))
	assert.False(t, s.Validate("session-1", "deadbeef"))
	assert.False(t, s.Validate("session-2", token))
}

func TestStoreIssueOverwritesPriorToken(t *testing.T) {
	s, _ := newTestStore(t, 24*time.Hour, 100)

	first, err := s.Issue("session-1")
	require.NoError(t, err)
	second, err := s.Issue("session-1")
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	assert.False(t, s.Validate("session-1", first))
	assert.True(t, s.Validate("session-1", second))
	assert.Equal(t, 1, s.Len())
}

func TestStoreExpiredTokenFailsAndIsRemoved(t *testing.T) {
	s, now := newTestStore(t, 24*time.Hour, 100)

	token, err := s.Issue("session-1")
	require.NoError(t, err)

	*now = now.Add(24*time.Hour + time.Second)
	require.False(t, s.Validate("session-1", token))

	// The failed check removed the entry as a side effect.
	_, ok := s.tokens.Get("session-1")
	require.False(t, ok)
}

func TestStoreSweep(t *testing.T) {
	s, now := newTestStore(t, time.Hour, 100)

	_, err := s.Issue("old-1")
	require.NoError(t, err)
	_, err = s.Issue("old-2")
	require.NoError(t, err)

	*now = now.Add(30 * time.Minute)
	fresh, err := s.Issue("fresh")
	require.NoError(t, err)

	*now = now.Add(31 * time.Minute)
	require.Equal(t, 2, s.Sweep())
	require.Equal(t, 1, s.Len())
	assert.True(t, s.Validate("fresh", fresh))
}

func TestStoreSessionCap(t *testing.T) {
	s, _ := newTestStore(t, time.Hour, 2)

	_, err := s.Issue("a")
	require.NoError(t, err)
	tokenB, err := s.Issue("b")
	require.NoError(t, err)
	tokenC, err := s.Issue("c")
	require.NoError(t, err)

	require.Equal(t, 2, s.Len())
	assert.False(t, s.Validate("a", "anything"))
	assert.True(t, s.Validate("b", tokenB))
	assert.True(t, s.Validate("c", tokenC))
}
