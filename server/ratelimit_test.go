package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetTokenCost(t *testing.T) {
	testCases := []struct {
		path     string
		expected int64
	}{
		{"/health", 1},
		{"/metrics", 0},
		{"/dossiers", 5},
		{"/archives", 20},
		{"/archives/save_abc123", 10},
		{"/dossier/chambre_1", 3},
		{"/dossier/chambre_1/subscribe", 10},
		{"/dossier/chambre_1/export", 10},
		{"/somewhere/else", 5},
	}

	for _, tc := range testCases {
		req := httptest.NewRequest("GET", tc.path, nil)
		if got := getTokenCost(req); got != tc.expected {
			t.Errorf("getTokenCost(%s): expected %d, got %d", tc.path, tc.expected, got)
		}
	}
}

func TestRateLimitHandlerSetsHeaders(t *testing.T) {
	h := RateLimitHandler(okHandler())

	req := httptest.NewRequest("GET", "/dossier/chambre_1", nil)
	req.RemoteAddr = "10.9.8.7:1000"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if w.Header().Get("X-RateLimit-Limit") != "600" {
		t.Errorf("Expected the limit header, got %q", w.Header().Get("X-RateLimit-Limit"))
	}
	if w.Header().Get("X-RateLimit-Remaining") == "" {
		t.Error("Expected the remaining header")
	}
}

func TestRateLimitHandlerExhaustion(t *testing.T) {
	h := RateLimitHandler(okHandler())

	// Archive creation costs 20 tokens against a 600 token bucket; the
	// bucket refills at 5/s, so hammering it exhausts within this loop.
	var limited bool
	for i := 0; i < 60; i++ {
		req := httptest.NewRequest("POST", "/archives", nil)
		req.RemoteAddr = "10.1.2.3:4567"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		if w.Code == http.StatusTooManyRequests {
			limited = true
			if w.Header().Get("Retry-After") == "" {
				t.Error("Expected a Retry-After header on the 429")
			}
			break
		}
	}
	if !limited {
		t.Error("Expected the client rate limited")
	}

	// A different client keeps its own bucket.
	req := httptest.NewRequest("POST", "/archives", nil)
	req.RemoteAddr = "10.4.5.6:7890"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected a fresh client unaffected, got %d", w.Code)
	}
}
