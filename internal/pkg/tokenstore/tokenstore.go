// Package tokenstore holds short-lived payloads (verification tokens,
// webhook dedup marks) in a shared Redis backend with native expiry. When
// the backend is unreachable the store silently degrades to a process-local
// table: the payloads are short-lived by nature, so availability wins over
// cross-instance consistency here.
package tokenstore

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Source tags where a store operation was served from. It stays internal to
// the package's callers' tests; the public contract collapses to plain
// present/absent values.
type Source int

const (
	// SourceNone means the key was absent (or expired) everywhere.
	SourceNone Source = iota
	// SourcePrimary means the shared Redis backend served the call.
	SourcePrimary
	// SourceFallback means the process-local table served the call.
	SourceFallback
)

type localEntry struct {
	payload   []byte
	expiresAt time.Time
}

// Store is a key/value store with per-entry expiry. Safe for concurrent use.
type Store struct {
	client *redis.Client

	mu    sync.Mutex
	local map[string]localEntry

	now func() time.Time
}

// New creates a store backed by client. A nil client serves everything from
// the local fallback table.
func New(client *redis.Client) *Store {
	return &Store{
		client: client,
		local:  make(map[string]localEntry),
		now:    time.Now,
	}
}

// Put stores payload under key for ttl. A failing primary store never
// surfaces to the caller; the entry lands in the local table instead.
func (s *Store) Put(ctx context.Context, key string, payload []byte, ttl time.Duration) {
	s.put(ctx, key, payload, ttl)
}

func (s *Store) put(ctx context.Context, key string, payload []byte, ttl time.Duration) Source {
	if s.client != nil {
		err := s.client.Set(ctx, key, payload, ttl).Err()
		if err == nil {
			return SourcePrimary
		}
		log.Printf("[tokenstore] primary store unavailable, using local fallback: %v", err)
	}
	s.putLocal(key, payload, ttl)
	return SourceFallback
}

// PutIfAbsent stores payload under key only if the key is not already
// present. It returns true when the entry was newly created, which makes it
// usable as a check-and-set dedup mark.
func (s *Store) PutIfAbsent(ctx context.Context, key string, payload []byte, ttl time.Duration) bool {
	if s.client != nil {
		created, err := s.client.SetNX(ctx, key, payload, ttl).Result()
		if err == nil {
			return created
		}
		log.Printf("[tokenstore] primary store unavailable, using local fallback: %v", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.local[key]; ok && s.now().Before(entry.expiresAt) {
		return false
	}
	s.local[key] = localEntry{payload: payload, expiresAt: s.now().Add(ttl)}
	return true
}

// Get returns the payload stored under key, or false if the key is absent
// or expired.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool) {
	payload, src := s.get(ctx, key)
	return payload, src != SourceNone
}

func (s *Store) get(ctx context.Context, key string) ([]byte, Source) {
	if s.client != nil {
		payload, err := s.client.Get(ctx, key).Bytes()
		if err == nil {
			return payload, SourcePrimary
		}
		if err == redis.Nil {
			return nil, SourceNone
		}
		log.Printf("[tokenstore] primary store unavailable, checking local fallback: %v", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.local[key]
	if !ok {
		return nil, SourceNone
	}
	// Expired fallback entries are purged on read; no background sweep is
	// needed for correctness.
	if !s.now().Before(entry.expiresAt) {
		delete(s.local, key)
		return nil, SourceNone
	}
	return entry.payload, SourceFallback
}

// Delete removes key from both layers. Deleting an absent key is not an
// error.
func (s *Store) Delete(ctx context.Context, key string) {
	if s.client != nil {
		if err := s.client.Del(ctx, key).Err(); err != nil {
			log.Printf("[tokenstore] primary delete failed for %q: %v", key, err)
		}
	}
	s.mu.Lock()
	delete(s.local, key)
	s.mu.Unlock()
}

// PurgeExpired drops expired entries from the local table and reports how
// many were removed. Only needed to bound memory during long idle periods.
func (s *Store) PurgeExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	purged := 0
	now := s.now()
	for key, entry := range s.local {
		if !now.Before(entry.expiresAt) {
			delete(s.local, key)
			purged++
		}
	}
	return purged
}

// Ping reports whether the primary store is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s.client == nil {
		return errors.New("no primary store configured")
	}
	return s.client.Ping(ctx).Err()
}

func (s *Store) putLocal(key string, payload []byte, ttl time.Duration) {
	s.mu.Lock()
	s.local[key] = localEntry{payload: payload, expiresAt: s.now().Add(ttl)}
	s.mu.Unlock()
}
