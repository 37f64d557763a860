/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package csrftoken issues and validates per-session anti-forgery tokens.
package csrftoken

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/cardkit/cardkit/internal/lrumap"
)

const tokenBytesLen = 32

type tokenEntry struct {
	token    string
	issuedAt time.Time
}

// Store holds one anti-forgery token per session in a capacity-bounded map.
// Issuing a token for a session overwrites any prior one.
type Store struct {
	ttl    time.Duration
	tokens *lrumap.Map[string, tokenEntry]

	nowFn func() time.Time // for tests
}

// NewStore creates a new Store. Tokens older than ttl fail validation.
func NewStore(ttl time.Duration, maxSessions int, metricsCollector lrumap.MetricsCollector) (*Store, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("ttl must be positive")
	}
	tokens, err := lrumap.New[string, tokenEntry](maxSessions, metricsCollector)
	if err != nil {
		return nil, fmt.Errorf("new LRU store for sessions: %w", err)
	}
	return &Store{ttl: ttl, tokens: tokens, nowFn: time.Now}, nil
}

// Issue generates a new cryptographically random token for the session,
// replacing any previously issued one.
func (s *Store) Issue(sessionID string) (string, error) {
	buf := make([]byte, tokenBytesLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	token := hex.EncodeToString(buf)
	s.tokens.Set(sessionID, tokenEntry{token: token, issuedAt: s.nowFn()})
	return token, nil
}

// Validate reports whether the presented token matches the one issued for the
// session and is not older than the store's TTL. An expired-but-matching token
// fails validation and is removed from the store.
func (s *Store) Validate(sessionID, presented string) bool {
	entry, ok := s.tokens.Get(sessionID)
	if !ok {
		return false
	}
	if s.nowFn().Sub(entry.issuedAt) >= s.ttl {
		s.tokens.Remove(sessionID)
		return false
	}
	return subtle.ConstantTimeCompare([]byte(entry.token), []byte(presented)) == 1
}

// Sweep removes all expired tokens and returns the number of removed entries.
func (s *Store) Sweep() (removed int) {
	cutoff := s.nowFn().Add(-s.ttl)

	var expired []string
	s.tokens.Range(func(sessionID string, entry tokenEntry) bool {
		if !entry.issuedAt.After(cutoff) {
			expired = append(expired, sessionID)
		}
		return true
	})
	for _, sessionID := range expired {
		if s.tokens.Remove(sessionID) {
			removed++
		}
	}
	return removed
}

// Len returns the number of sessions with an issued token.
func (s *Store) Len() int {
	return s.tokens.Len()
}
