package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func rateLimited(t *testing.T, h echo.HandlerFunc, ip string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/results", nil)
	req.RemoteAddr = ip + ":12345"
	rec := httptest.NewRecorder()
	return rec, h(e.NewContext(req, rec))
}

func TestRateLimit_RequestsWithinLimit(t *testing.T) {
	h := RateLimit(RateLimitConfig{RequestsPerSecond: 10, BurstSize: 5})(okHandler)

	for i := 0; i < 5; i++ {
		rec, err := rateLimited(t, h, "10.0.0.1")
		if err != nil {
			t.Fatalf("request %d: expected no error, got %v", i+1, err)
		}
		if rec.Header().Get("X-RateLimit-Limit") != "10" {
			t.Errorf("request %d: expected X-RateLimit-Limit '10', got %q", i+1, rec.Header().Get("X-RateLimit-Limit"))
		}
	}
}

func TestRateLimit_ExceedsLimit(t *testing.T) {
	h := RateLimit(RateLimitConfig{RequestsPerSecond: 0.5, BurstSize: 2})(okHandler)

	for i := 0; i < 2; i++ {
		if _, err := rateLimited(t, h, "10.0.0.2"); err != nil {
			t.Fatalf("request %d: expected no error, got %v", i+1, err)
		}
	}

	rec, err := rateLimited(t, h, "10.0.0.2")
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %v", err)
	}
	retry, convErr := strconv.Atoi(rec.Header().Get("Retry-After"))
	if convErr != nil || retry < 1 || retry > 2 {
		t.Errorf("expected Retry-After of 1-2 seconds, got %q", rec.Header().Get("Retry-After"))
	}

	if _, err := rateLimited(t, h, "10.0.0.3"); err != nil {
		t.Errorf("other clients must have their own bucket, got %v", err)
	}
}

func TestRateLimit_Skipper(t *testing.T) {
	h := RateLimit(RateLimitConfig{
		RequestsPerSecond: 1,
		BurstSize:         1,
		Skipper:           func(echo.Context) bool { return true },
	})(okHandler)

	for i := 0; i < 5; i++ {
		if _, err := rateLimited(t, h, "10.0.0.4"); err != nil {
			t.Fatalf("skipped requests must not be limited: %v", err)
		}
	}
}

func TestRateLimit_Disabled(t *testing.T) {
	h := RateLimit(RateLimitConfig{})(okHandler)
	for i := 0; i < 20; i++ {
		if _, err := rateLimited(t, h, "10.0.0.5"); err != nil {
			t.Fatalf("zero rate should disable limiting: %v", err)
		}
	}
}

func TestIPRateLimiter_EvictsIdleClients(t *testing.T) {
	l := newIPRateLimiter(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1, IdleTTL: time.Minute})
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.get("a")
	l.get("b")
	now = now.Add(2 * time.Minute)
	l.get("c")

	if l.size() != 1 {
		t.Errorf("expected idle clients to be evicted, %d left", l.size())
	}
}
