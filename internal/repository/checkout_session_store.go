package repository

import (
	"errors"
	"sync"
	"time"

	"storefront-checkout-backend/internal/models"
	"storefront-checkout-backend/pkg/cache"
)

// ErrCheckoutSessionNotFound is returned when no record exists for a key.
var ErrCheckoutSessionNotFound = errors.New("checkout session not found")

// CheckoutSessionStore keeps checkout attempt records between requests.
type CheckoutSessionStore interface {
	Get(key string) (*models.CheckoutSession, error)
	Save(session *models.CheckoutSession, ttl time.Duration) error
	Delete(key string) error
}

type redisCheckoutSessionStore struct {
	cache *cache.Cache
}

// NewCheckoutSessionStore stores records in redis when the cache is enabled
// and in process memory otherwise.
func NewCheckoutSessionStore(c *cache.Cache) CheckoutSessionStore {
	if c == nil || !c.Enabled() {
		return NewMemoryCheckoutSessionStore(nil)
	}
	return &redisCheckoutSessionStore{cache: c}
}

func (s *redisCheckoutSessionStore) Get(key string) (*models.CheckoutSession, error) {
	var session models.CheckoutSession
	if err := s.cache.Get(cache.CheckoutSessionKey(key), &session); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, ErrCheckoutSessionNotFound
		}
		return nil, err
	}
	return &session, nil
}

func (s *redisCheckoutSessionStore) Save(session *models.CheckoutSession, ttl time.Duration) error {
	return s.cache.Set(cache.CheckoutSessionKey(session.Key), session, ttl)
}

func (s *redisCheckoutSessionStore) Delete(key string) error {
	return s.cache.Delete(cache.CheckoutSessionKey(key))
}

type memoryEntry struct {
	session   models.CheckoutSession
	expiresAt time.Time
}

type memoryCheckoutSessionStore struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]memoryEntry
}

// NewMemoryCheckoutSessionStore is a single-process store. now defaults to
// time.Now.
func NewMemoryCheckoutSessionStore(now func() time.Time) CheckoutSessionStore {
	if now == nil {
		now = time.Now
	}
	return &memoryCheckoutSessionStore{now: now, entries: make(map[string]memoryEntry)}
}

func (s *memoryCheckoutSessionStore) Get(key string) (*models.CheckoutSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, ErrCheckoutSessionNotFound
	}
	if !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt) {
		delete(s.entries, key)
		return nil, ErrCheckoutSessionNotFound
	}
	session := entry.session
	return &session, nil
}

func (s *memoryCheckoutSessionStore) Save(session *models.CheckoutSession, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := memoryEntry{session: *session}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}
	s.entries[session.Key] = entry
	return nil
}

func (s *memoryCheckoutSessionStore) Delete(key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}
