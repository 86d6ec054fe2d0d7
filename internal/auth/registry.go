/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package auth

import (
	"context"
	"sync"
	"time"

	"tradechat-go/internal/clock"

	"go.uber.org/zap"
)

const (
	DefaultTokenTTL         = 5 * time.Minute
	DefaultMaxPendingLogins = 1024
)

type tokenEntry struct {
	issuedAt time.Time
	used     bool
	seq      uint64
}

// TokenRegistryConfig contains configuration for TokenRegistry
type TokenRegistryConfig struct {
	Clock           clock.Clock
	TTL             time.Duration
	CleanupInterval time.Duration
	MaxEntries      int
}

// TokenRegistry holds request tokens delivered by the login callback until a
// handshake claims them. Entries older than the TTL are never claimable and
// are evicted by the cleanup loop and on every write.
type TokenRegistry struct {
	clock           clock.Clock
	ttl             time.Duration
	cleanupInterval time.Duration
	maxEntries      int

	mutex  sync.Mutex
	tokens map[string]*tokenEntry
	seq    uint64

	started  bool
	stopOnce sync.Once
	stopChan chan struct{}
	doneChan chan struct{}
}

func NewTokenRegistry(cfg TokenRegistryConfig) *TokenRegistry {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTokenTTL
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxPendingLogins
	}
	return &TokenRegistry{
		clock:           cfg.Clock,
		ttl:             cfg.TTL,
		cleanupInterval: cfg.CleanupInterval,
		maxEntries:      cfg.MaxEntries,
		tokens:          make(map[string]*tokenEntry),
		stopChan:        make(chan struct{}),
		doneChan:        make(chan struct{}),
	}
}

// Ingest records a freshly delivered token. A token already present keeps its
// original state, so a replayed callback cannot re-arm a used token.
func (r *TokenRegistry) Ingest(token string) bool {
	if token == "" {
		return false
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	now := r.clock.Now()
	r.evictExpiredLocked(now)

	if _, exists := r.tokens[token]; exists {
		return false
	}
	if len(r.tokens) >= r.maxEntries {
		r.evictOldestLocked()
	}

	r.seq++
	r.tokens[token] = &tokenEntry{issuedAt: now, seq: r.seq}
	return true
}

// ClaimUnused atomically marks the oldest unused token younger than the TTL
// as used and returns it. At most one caller can claim any given token.
func (r *TokenRegistry) ClaimUnused() (string, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	now := r.clock.Now()
	var (
		claimed string
		best    *tokenEntry
	)
	for token, entry := range r.tokens {
		if entry.used || now.Sub(entry.issuedAt) >= r.ttl {
			continue
		}
		if best == nil || entry.seq < best.seq {
			claimed, best = token, entry
		}
	}
	if best == nil {
		return "", false
	}

	best.used = true
	return claimed, true
}

// Len returns the number of tracked tokens, used or not.
func (r *TokenRegistry) Len() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.tokens)
}

// Start runs the periodic eviction loop until Stop or ctx is done.
func (r *TokenRegistry) Start(ctx context.Context) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.started {
		return
	}
	r.started = true
	go r.cleanupLoop(ctx)
}

// Stop ends the eviction loop. It is safe to call more than once.
func (r *TokenRegistry) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopChan)
		r.mutex.Lock()
		started := r.started
		r.mutex.Unlock()
		if started {
			<-r.doneChan
		}
	})
}

func (r *TokenRegistry) cleanupLoop(ctx context.Context) {
	defer close(r.doneChan)

	ticker := time.NewTicker(r.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.Cleanup()
		case <-r.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Cleanup evicts every entry older than the TTL.
func (r *TokenRegistry) Cleanup() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	cleaned := r.evictExpiredLocked(r.clock.Now())
	if cleaned > 0 {
		zap.L().Debug("Cleaned up expired login tokens",
			zap.Int("cleaned", cleaned),
			zap.Int("remaining", len(r.tokens)))
	}
}

func (r *TokenRegistry) evictExpiredLocked(now time.Time) int {
	cutoff := now.Add(-r.ttl)
	cleaned := 0
	for token, entry := range r.tokens {
		if !entry.issuedAt.After(cutoff) {
			delete(r.tokens, token)
			cleaned++
		}
	}
	return cleaned
}

func (r *TokenRegistry) evictOldestLocked() {
	var oldest string
	var oldestSeq uint64
	for token, entry := range r.tokens {
		if oldest == "" || entry.seq < oldestSeq {
			oldest, oldestSeq = token, entry.seq
		}
	}
	if oldest != "" {
		delete(r.tokens, oldest)
		zap.L().Warn("Login token registry full, dropped oldest entry")
	}
}
