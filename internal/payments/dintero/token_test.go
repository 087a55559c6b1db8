package dintero

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"storefront-checkout-backend/internal/payments"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestTokenCacheReusesTokenUntilExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	var calls int32
	cache := NewTokenCache(func(context.Context) (*tokenResponse, error) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			return &tokenResponse{AccessToken: "first", TokenType: "Bearer", ExpiresIn: 60}, nil
		}
		return &tokenResponse{AccessToken: "second", TokenType: "Bearer", ExpiresIn: 60}, nil
	}, clock.Now)

	token, err := cache.Token(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "Bearer first" {
		t.Fatalf("unexpected token %q", token)
	}

	clock.Advance(59 * time.Second)
	if token, _ = cache.Token(context.Background()); token != "Bearer first" {
		t.Fatalf("expected cached token before expiry, got %q", token)
	}

	clock.Advance(time.Second)
	if token, _ = cache.Token(context.Background()); token != "Bearer second" {
		t.Fatalf("expected refreshed token at expiry, got %q", token)
	}
	if calls != 2 {
		t.Fatalf("expected 2 fetches, got %d", calls)
	}
}

func TestTokenCacheRejectsZeroLifetime(t *testing.T) {
	var calls int32
	cache := NewTokenCache(func(context.Context) (*tokenResponse, error) {
		atomic.AddInt32(&calls, 1)
		return &tokenResponse{AccessToken: "abc", TokenType: "Bearer", ExpiresIn: 0}, nil
	}, nil)

	for i := 0; i < 2; i++ {
		_, err := cache.Token(context.Background())
		var authErr *payments.AuthError
		if !errors.As(err, &authErr) {
			t.Fatalf("expected AuthError, got %v", err)
		}
	}
	if calls != 2 {
		t.Fatalf("expected failed token not to be cached, got %d fetches", calls)
	}
}

func TestTokenCacheDoesNotCacheFailures(t *testing.T) {
	var calls int32
	cache := NewTokenCache(func(context.Context) (*tokenResponse, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return nil, &payments.AuthError{Status: 401, Message: "bad credentials"}
		}
		return &tokenResponse{AccessToken: "ok", TokenType: "Bearer", ExpiresIn: 300}, nil
	}, nil)

	if _, err := cache.Token(context.Background()); err == nil {
		t.Fatalf("expected first fetch to fail")
	}
	token, err := cache.Token(context.Background())
	if err != nil || token != "Bearer ok" {
		t.Fatalf("expected recovery on next call, got %q, %v", token, err)
	}
}

func TestTokenCacheCollapsesConcurrentRefreshes(t *testing.T) {
	var calls int32
	cache := NewTokenCache(func(context.Context) (*tokenResponse, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(50 * time.Millisecond)
		return &tokenResponse{AccessToken: "shared", TokenType: "Bearer", ExpiresIn: 300}, nil
	}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if token, err := cache.Token(context.Background()); err != nil || token != "Bearer shared" {
				t.Errorf("unexpected token %q, %v", token, err)
			}
		}()
	}
	wg.Wait()

	if calls != 1 {
		t.Fatalf("expected a single fetch, got %d", calls)
	}
}

func TestTokenCacheInvalidate(t *testing.T) {
	var calls int32
	cache := NewTokenCache(func(context.Context) (*tokenResponse, error) {
		atomic.AddInt32(&calls, 1)
		return &tokenResponse{AccessToken: "t", TokenType: "Bearer", ExpiresIn: 300}, nil
	}, nil)

	_, _ = cache.Token(context.Background())
	cache.Invalidate()
	if !cache.ExpiresAt().IsZero() {
		t.Fatalf("expected expiry to be cleared")
	}
	_, _ = cache.Token(context.Background())
	if calls != 2 {
		t.Fatalf("expected refetch after invalidate, got %d fetches", calls)
	}
}

func TestTokenCacheRefreshSurvivesCanceledCaller(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var fetchErr atomic.Value
	cache := NewTokenCache(func(ctx context.Context) (*tokenResponse, error) {
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			fetchErr.Store(err)
			return nil, err
		}
		return &tokenResponse{AccessToken: "shared", TokenType: "Bearer", ExpiresIn: 300}, nil
	}, nil)

	first, cancel := context.WithCancel(context.Background())
	firstDone := make(chan error, 1)
	go func() {
		_, err := cache.Token(first)
		firstDone <- err
	}()
	<-started

	secondDone := make(chan string, 1)
	go func() {
		token, err := cache.Token(context.Background())
		if err != nil {
			t.Errorf("waiting caller failed: %v", err)
		}
		secondDone <- token
	}()

	cancel()
	if err := <-firstDone; !errors.Is(err, context.Canceled) {
		t.Fatalf("canceled caller should return its own error, got %v", err)
	}
	close(release)

	if token := <-secondDone; token != "Bearer shared" {
		t.Fatalf("expected shared token for the waiting caller, got %q", token)
	}
	if err := fetchErr.Load(); err != nil {
		t.Fatalf("fetch context was canceled with the first caller: %v", err)
	}
}
