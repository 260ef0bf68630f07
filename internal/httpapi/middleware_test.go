package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/time/rate"

	"github.com/brunoSandoval210/authorization-service/internal/obs"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestRateLimitExceeded(t *testing.T) {
	handler := RequestID(RateLimit(newIPLimiter(rate.Limit(1), 1), nil)(okHandler))

	req := httptest.NewRequest(http.MethodGet, "/limited", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	rr1 := httptest.NewRecorder()
	handler.ServeHTTP(rr1, req.Clone(context.Background()))
	if rr1.Code != http.StatusOK {
		t.Fatalf("expected first call 200, got %d", rr1.Code)
	}

	rr2 := httptest.NewRecorder()
	handler.ServeHTTP(rr2, req.Clone(context.Background()))
	if rr2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr2.Code)
	}
	if rr2.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}

	var body map[string]any
	if err := json.Unmarshal(rr2.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode rate limit body: %v", err)
	}
	if body["error"] != "rate limit exceeded" {
		t.Fatalf("unexpected error message: %v", body["error"])
	}
	if body["request_id"] == nil {
		t.Fatalf("expected request_id in body")
	}

	other := req.Clone(context.Background())
	other.RemoteAddr = "10.0.0.2:1234"
	rr3 := httptest.NewRecorder()
	handler.ServeHTTP(rr3, other)
	if rr3.Code != http.StatusOK {
		t.Fatalf("expected a separate bucket per IP, got %d", rr3.Code)
	}
}

func TestIPLimiterSweepsIdleBuckets(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := newIPLimiter(rate.Limit(1), 1)
	l.now = func() time.Time { return now }
	l.lastSweep = now

	l.Allow("10.0.0.1")
	now = now.Add(10 * time.Minute)
	l.Allow("10.0.0.2")

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.buckets["10.0.0.1"]; ok {
		t.Fatal("expected idle bucket to be swept")
	}
	if _, ok := l.buckets["10.0.0.2"]; !ok {
		t.Fatal("expected fresh bucket to remain")
	}
}

func TestRateLimitIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	handler := RateLimit(newIPLimiter(rate.Limit(1), 1), nil)(okHandler)

	allowed := 0
	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = "203.0.113.7:4000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code == http.StatusOK {
			allowed++
		}
	}
	if allowed != 1 {
		t.Fatalf("rotating X-Forwarded-For let %d of 50 attempts through, want 1", allowed)
	}
}

func TestRateLimitHonoursTrustedProxy(t *testing.T) {
	proxies, err := parseTrustedProxies([]string{"10.0.0.0/8"})
	if err != nil {
		t.Fatalf("parse proxies: %v", err)
	}
	handler := RateLimit(newIPLimiter(rate.Limit(1), 1), proxies)(okHandler)

	send := func(xff string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = "10.0.0.5:4000"
		req.Header.Set("X-Forwarded-For", xff)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := send("198.51.100.1, 10.0.0.9"); code != http.StatusOK {
		t.Fatalf("first client: %d", code)
	}
	// A spoofed leftmost hop does not change the hop the proxy appended.
	if code := send("1.2.3.4, 198.51.100.1, 10.0.0.9"); code != http.StatusTooManyRequests {
		t.Fatalf("spoofed prefix: %d, want 429", code)
	}
	if code := send("198.51.100.2"); code != http.StatusOK {
		t.Fatalf("second client behind the proxy: %d", code)
	}
}

func TestPeerIP(t *testing.T) {
	proxies, err := parseTrustedProxies([]string{"10.0.0.1", "192.168.0.0/16"})
	if err != nil {
		t.Fatalf("parse proxies: %v", err)
	}
	cases := []struct {
		name   string
		remote string
		xff    string
		want   string
	}{
		{"direct", "203.0.113.7:1", "", "203.0.113.7"},
		{"untrusted peer keeps remote", "203.0.113.7:1", "198.51.100.1", "203.0.113.7"},
		{"trusted peer", "10.0.0.1:1", "198.51.100.1", "198.51.100.1"},
		{"proxy chain", "10.0.0.1:1", "198.51.100.1, 192.168.1.1", "198.51.100.1"},
		{"all trusted", "10.0.0.1:1", "192.168.1.1", "10.0.0.1"},
		{"garbage hop", "10.0.0.1:1", "not-an-ip", "10.0.0.1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			if tc.xff != "" {
				req.Header.Set("X-Forwarded-For", tc.xff)
			}
			if got := proxies.peerIP(req); got != tc.want {
				t.Fatalf("peerIP = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestParseTrustedProxiesRejectsHostnames(t *testing.T) {
	if _, err := parseTrustedProxies([]string{"proxy.internal"}); err == nil {
		t.Fatal("expected error for a hostname")
	}
}

func TestIPLimiterCapsBuckets(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := newIPLimiter(rate.Limit(1), 1)
	l.max = 2
	l.now = func() time.Time { return now }
	l.lastSweep = now

	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		l.Allow(ip)
		now = now.Add(time.Second)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.buckets) != 2 {
		t.Fatalf("buckets = %d, want 2", len(l.buckets))
	}
	if _, ok := l.buckets["10.0.0.1"]; ok {
		t.Fatal("expected the oldest bucket to be evicted")
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = obs.RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "  client-id  ")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if seen != "client-id" || rr.Header().Get("X-Request-Id") != "client-id" {
		t.Fatalf("client id not propagated: ctx=%q header=%q", seen, rr.Header().Get("X-Request-Id"))
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", strings.Repeat("x", 300))
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if len(seen) != 128 {
		t.Fatalf("expected id trimmed to 128 chars, got %d", len(seen))
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if len(seen) != 26 || rr.Header().Get("X-Request-Id") != seen {
		t.Fatalf("expected generated ULID, got %q", seen)
	}
}

func TestAccessLogEmitsStructuredEntry(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	obs.SetLogger(zap.New(core))
	t.Cleanup(func() { obs.SetLogger(nil) })

	r := chi.NewRouter()
	r.Use(RequestID, AccessLog)
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("ok"))
	})

	req := httptest.NewRequest(http.MethodGet, "/items/42", nil)
	req.RemoteAddr = "127.0.0.1:1234"
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	entries := logs.FilterMessage("http request").All()
	if len(entries) != 1 {
		t.Fatalf("expected one access log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["route"] != "/items/{id}" {
		t.Fatalf("unexpected route: %v", fields["route"])
	}
	if fields["status"] != int64(http.StatusTeapot) {
		t.Fatalf("unexpected status: %v", fields["status"])
	}
	if fields["bytes"] != int64(2) {
		t.Fatalf("unexpected bytes: %v", fields["bytes"])
	}
	if fields["request_id"] == "" || fields["request_id"] == nil {
		t.Fatal("expected request_id")
	}
}

func TestCORS(t *testing.T) {
	handler := CORS([]string{"https://admin.example.com"})(okHandler)

	cases := []struct {
		origin string
		want   string
	}{
		{"https://admin.example.com", "https://admin.example.com"},
		{"http://localhost:5173", "http://localhost:5173"},
		{"https://evil.example.com", ""},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", tc.origin)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tc.want {
			t.Fatalf("origin %s: allow-origin = %q, want %q", tc.origin, got, tc.want)
		}
	}

	req := httptest.NewRequest(http.MethodOptions, "/api/modules", nil)
	req.Header.Set("Origin", "https://admin.example.com")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("preflight: expected 204, got %d", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("Access-Control-Allow-Headers"), "Authorization") {
		t.Fatalf("preflight must allow the Authorization header")
	}
}

func TestSecurityHeaders(t *testing.T) {
	rr := httptest.NewRecorder()
	SecurityHeaders(okHandler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	for _, h := range []string{"X-Content-Type-Options", "X-Frame-Options", "Content-Security-Policy", "Cache-Control"} {
		if rr.Header().Get(h) == "" {
			t.Fatalf("expected %s header", h)
		}
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.10:4000"
	if got := clientIP(req); got != "192.0.2.10" {
		t.Fatalf("clientIP = %q", got)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	if got := clientIP(req); got != "203.0.113.5" {
		t.Fatalf("clientIP with XFF = %q", got)
	}
}
