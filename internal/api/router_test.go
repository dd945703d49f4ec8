package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/cryptoknapsack/internal/knapsack"
	"github.com/eugenenazirov/cryptoknapsack/internal/playback"
	"github.com/eugenenazirov/cryptoknapsack/internal/session"
	"github.com/eugenenazirov/cryptoknapsack/internal/storage"
	"github.com/eugenenazirov/cryptoknapsack/internal/stream"
)

func TestLoggingMiddleware(t *testing.T) {
	logger := zaptest.NewLogger(t)
	var called bool
	handler := loggingMiddleware(logger, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if !called {
		t.Fatalf("expected handler to be called")
	}
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d", rec.Code)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	logger := zaptest.NewLogger(t)
	handler := recoveryMiddleware(logger, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(errors.New("boom"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 after panic, got %d", rec.Code)
	}
}

func TestResponseRecorderWriteHeader(t *testing.T) {
	underlying := httptest.NewRecorder()
	rec := &responseRecorder{ResponseWriter: underlying}
	rec.WriteHeader(http.StatusTeapot)

	if rec.status != http.StatusTeapot {
		t.Fatalf("expected status to be recorded")
	}
	if underlying.Code != http.StatusTeapot {
		t.Fatalf("expected status to propagate to ResponseWriter")
	}
}

func TestWithRateLimiterOptionAppliesLimiter(t *testing.T) {
	router := newTestRouter(t, WithLogging(false), WithRateLimiter(&staticLimiter{allow: false}))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected rate limiter to block request, got %d", rec.Code)
	}
}

func TestWithRateLimitDisablesLimiterWhenZero(t *testing.T) {
	router := newTestRouter(t, WithLogging(false), WithRateLimiter(&staticLimiter{allow: false}), WithRateLimit(0, 0))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected limiter to be disabled, got %d", rec.Code)
	}
}

func TestWithRateLimitEnforcesLimit(t *testing.T) {
	router := newTestRouter(t, WithLogging(false), WithRateLimit(1, 1))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected first request to succeed, got %d", rec.Code)
	}

	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req.Clone(req.Context()))
	if rec2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected rate limiter to block second request, got %d", rec2.Code)
	}
}

func TestResponseRecorderHijackUnsupported(t *testing.T) {
	rec := &responseRecorder{ResponseWriter: httptest.NewRecorder()}
	if _, _, err := rec.Hijack(); err == nil {
		t.Fatalf("expected hijack to fail on a recorder")
	}
	if rec.Unwrap() == nil {
		t.Fatalf("expected Unwrap to expose the underlying writer")
	}
}

func TestEventStreamThroughMiddleware(t *testing.T) {
	logger := zaptest.NewLogger(t)
	hub := stream.NewHub(logger)
	t.Cleanup(hub.Close)

	sess, err := session.New(storage.NewMemoryStorage(), 64, logger)
	if err != nil {
		t.Fatalf("session.New returned error: %v", err)
	}
	scheduler := playback.NewVirtualScheduler()
	player := playback.NewPlayer(sess, scheduler, playback.WithObserver(hub), playback.WithRunIDs(func() string { return "run-1" }))
	handler := NewHandler(knapsack.DefaultRegistry(), sess, player, WithEvents(hub))

	server := httptest.NewServer(NewRouter(handler, logger))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/playback/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial event stream: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, err := player.Start(knapsack.NewGreedy()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	scheduler.RunUntilIdle()

	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("set read deadline: %v", err)
	}
	var kinds []string
	for len(kinds) < 5 {
		var msg stream.Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read event: %v", err)
		}
		if msg.RunID != "run-1" {
			t.Fatalf("unexpected run id %q", msg.RunID)
		}
		kinds = append(kinds, msg.Kind)
	}
	want := []string{"started", "item_added", "item_added", "item_added", "finished"}
	if strings.Join(kinds, ",") != strings.Join(want, ",") {
		t.Fatalf("expected events %v, got %v", want, kinds)
	}
}

func newTestRouter(t *testing.T, opts ...RouterOption) http.Handler {
	t.Helper()

	logger := zaptest.NewLogger(t)
	sess, err := session.New(storage.NewMemoryStorage(), 64, logger)
	if err != nil {
		t.Fatalf("session.New returned error: %v", err)
	}
	player := playback.NewPlayer(sess, playback.NewVirtualScheduler())
	handler := NewHandler(knapsack.DefaultRegistry(), sess, player)
	return NewRouter(handler, logger, opts...)
}
