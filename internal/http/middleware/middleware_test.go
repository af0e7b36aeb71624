package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/support-ai-platform/pkg/logging"
)

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if called != nil {
			*called = true
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name      string
		allowed   []string
		method    string
		origin    string
		preflight bool
		wantAllow string
		wantCode  int
		wantNext  bool
	}{
		{"listed origin", []string{"https://shop.example"}, http.MethodGet, "https://shop.example", false, "https://shop.example", http.StatusOK, true},
		{"unknown origin", []string{"https://shop.example"}, http.MethodGet, "https://evil.example", false, "", http.StatusOK, true},
		{"wildcard", []string{" * "}, http.MethodGet, "https://any.example", false, "https://any.example", http.StatusOK, true},
		{"preflight", []string{"https://shop.example"}, http.MethodOptions, "https://shop.example", true, "https://shop.example", http.StatusNoContent, false},
		{"preflight unknown origin", []string{"https://shop.example"}, http.MethodOptions, "https://evil.example", true, "", http.StatusForbidden, false},
		{"no origin", []string{"*"}, http.MethodGet, "", false, "", http.StatusOK, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			req := httptest.NewRequest(tt.method, "/api/v1/chat", nil)
			req.Header.Set("Origin", tt.origin)
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rec := httptest.NewRecorder()
			CORS(tt.allowed)(okHandler(&called)).ServeHTTP(rec, req)

			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
				t.Fatalf("allow origin = %q, want %q", got, tt.wantAllow)
			}
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if called != tt.wantNext {
				t.Fatalf("next called = %v, want %v", called, tt.wantNext)
			}
			if tt.wantAllow != "" && !strings.Contains(rec.Header().Get("Access-Control-Expose-Headers"), "X-Process-Time") {
				t.Fatalf("expected X-Process-Time to be exposed")
			}
			if tt.wantAllow != "" && rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
				t.Fatalf("expected credentials to be allowed")
			}
		})
	}
}

func TestCORSPreflightEchoesRequestedHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/chat", nil)
	req.Header.Set("Origin", "https://shop.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "content-type, x-custom")
	rec := httptest.NewRecorder()
	CORS([]string{"https://shop.example/"})(okHandler(nil)).ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Headers"); got != "content-type, x-custom" {
		t.Fatalf("allow headers = %q", got)
	}
	if rec.Header().Get("Access-Control-Max-Age") == "" {
		t.Fatal("expected max age on preflight")
	}
}

func TestProcessTimeHeader(t *testing.T) {
	rec := httptest.NewRecorder()
	ProcessTime(okHandler(nil)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	v := rec.Header().Get("X-Process-Time")
	if v == "" {
		t.Fatal("expected X-Process-Time header")
	}
	if secs, err := strconv.ParseFloat(v, 64); err != nil || secs < 0 {
		t.Fatalf("unexpected X-Process-Time %q", v)
	}
}

func TestProcessTimeWithoutExplicitWrite(t *testing.T) {
	rec := httptest.NewRecorder()
	ProcessTime(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get("X-Process-Time") == "" {
		t.Fatal("expected header even when the handler writes nothing")
	}
}

func TestRequestLoggerUsesChiRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, "info")

	handler := chimw.RequestID(RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))
	req := httptest.NewRequest(http.MethodGet, "/orders/ORD-1", nil)
	req.Header.Set("X-Request-Id", "req-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	out := buf.String()
	if !strings.Contains(out, `"request_id":"req-123"`) {
		t.Fatalf("expected request id in log, got %s", out)
	}
	if !strings.Contains(out, `"status":418`) {
		t.Fatalf("expected status in log, got %s", out)
	}
}

func TestRateLimit(t *testing.T) {
	limiter := NewClientLimiter(1, 2)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	handler := RateLimit(limiter)(okHandler(nil))

	do := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if do("10.0.0.1:1234") != http.StatusOK || do("10.0.0.1:5678") != http.StatusOK {
		t.Fatal("expected burst to be allowed")
	}
	if code := do("10.0.0.1:9999"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", code)
	}
	if code := do("10.0.0.2:1234"); code != http.StatusOK {
		t.Fatalf("other clients keep their own budget, got %d", code)
	}

	now = now.Add(time.Second)
	if code := do("10.0.0.1:1234"); code != http.StatusOK {
		t.Fatalf("expected refill after a second, got %d", code)
	}

	now = now.Add(limiterIdleTTL + time.Second)
	if removed := limiter.Sweep(); removed != 2 {
		t.Fatalf("expected 2 idle clients swept, got %d", removed)
	}
}

func TestClientLimiterRunStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewClientLimiter(1, 1).Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
