package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeRateStore struct {
	counts map[string]int64
	err    error
}

func newFakeRateStore() *fakeRateStore {
	return &fakeRateStore{counts: map[string]int64{}}
}

func (f *fakeRateStore) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.counts[key]++
	return f.counts[key], nil
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestPaymentRateLimitBlocksIPOverLimit(t *testing.T) {
	policy := NewPaymentRateLimitPolicy("payments", time.Minute, 2, 0)
	store := newFakeRateStore()
	handler := PaymentRateLimit(policy, store, nil)(okHandler())

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/pay", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d should pass, got %d", i+1, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/pay", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}

	// A different IP has its own counter.
	req = httptest.NewRequest(http.MethodPost, "/pay", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("other IP should pass, got %d", rec.Code)
	}
}

func TestPaymentRateLimitBlocksUserOverLimit(t *testing.T) {
	policy := NewPaymentRateLimitPolicy("payments", time.Minute, 0, 1)
	store := newFakeRateStore()
	handler := PaymentRateLimit(policy, store, nil)(okHandler())

	send := func(userID string) int {
		req := httptest.NewRequest(http.MethodPost, "/pay", nil)
		req = req.WithContext(WithUserID(req.Context(), userID))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := send("user-a"); code != http.StatusOK {
		t.Fatalf("first request should pass, got %d", code)
	}
	if code := send("user-a"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 for user over limit, got %d", code)
	}
	if code := send("user-b"); code != http.StatusOK {
		t.Fatalf("other user should pass, got %d", code)
	}
}

func TestPaymentRateLimitUsesForwardedForHeader(t *testing.T) {
	policy := NewPaymentRateLimitPolicy("payments", time.Minute, 1, 0)
	store := newFakeRateStore()
	handler := PaymentRateLimit(policy, store, nil)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/pay", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected pass, got %d", rec.Code)
	}
	if _, ok := store.counts["rl:ip:payments:203.0.113.7"]; !ok {
		t.Fatalf("expected counter for forwarded client, got %v", store.counts)
	}
}

func TestPaymentRateLimitDisabledPolicyPassesThrough(t *testing.T) {
	policy := NewPaymentRateLimitPolicy("payments", 0, 0, 0)
	handler := PaymentRateLimit(policy, newFakeRateStore(), nil)(okHandler())

	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodPost, "/pay", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("disabled policy must not block, got %d", rec.Code)
		}
	}
}
