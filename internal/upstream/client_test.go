package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/scoutpulse/scout-engine/internal/platform/logging"
	"github.com/scoutpulse/scout-engine/internal/platform/resilience"
	"github.com/scoutpulse/scout-engine/internal/usecase"
)

const samplePlayerBody = `{"data":{
	"id": 42,
	"name": "Jude Example",
	"position": "CM",
	"age": 21,
	"current_team": "Example FC",
	"league": "Premier League",
	"market_value": 80.0,
	"last_transfer_value": 95.0,
	"release_clause": 120.0,
	"overall_rating": 8.6,
	"potential_rating": 9.2,
	"goals_season": 12,
	"assists_season": 9,
	"appearances_season": 30,
	"contract_ends_at": "2027-06-30",
	"market_trend": "rising"
}}`

func newTestClient(t *testing.T, serverURL string, mutate func(*ClientConfig)) *Client {
	t.Helper()

	cfg := ClientConfig{
		BaseURL: serverURL,
		APIKey:  "secret-key",
		Timeout: 2 * time.Second,
		Backoff: resilience.Backoff{Base: time.Millisecond, Cap: 2 * time.Millisecond, Jitter: time.Millisecond},
		Logger:  logging.NewNop(),
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          true,
			FailureThreshold: 3,
			Cooldown:         time.Minute,
			HalfOpenProbes:   1,
		},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewClient(cfg)
}

func TestFetchPlayerDecodesSnapshot(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Path; got != "/players/42" {
			t.Errorf("unexpected path %q", got)
		}
		if got := r.URL.Query().Get("api_key"); got != "secret-key" {
			t.Errorf("api key not forwarded, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(samplePlayerBody))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, nil)
	snapshot, err := client.FetchPlayer(context.Background(), 42)
	if err != nil {
		t.Fatalf("FetchPlayer returned error: %v", err)
	}
	if snapshot.Name != "Jude Example" {
		t.Fatalf("expected name Jude Example, got %q", snapshot.Name)
	}
	if snapshot.MarketValue != 80.0 {
		t.Fatalf("expected market value 80.0, got %v", snapshot.MarketValue)
	}
	if snapshot.ContractEndsAt == nil || snapshot.ContractEndsAt.Year() != 2027 {
		t.Fatalf("contract end date not decoded: %+v", snapshot.ContractEndsAt)
	}
	if snapshot.Trend != "rising" {
		t.Fatalf("expected rising trend, got %q", snapshot.Trend)
	}
	if snapshot.FetchedAt.IsZero() {
		t.Fatalf("expected fetched-at to be stamped")
	}
}

func TestFetchRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(samplePlayerBody))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, func(cfg *ClientConfig) { cfg.MaxRetries = 3 })
	if _, err := client.FetchPlayer(context.Background(), 42); err != nil {
		t.Fatalf("expected retries to recover, got %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 requests, got %d", got)
	}
}

func TestFetchRejectionFailsWithoutRetry(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, func(cfg *ClientConfig) { cfg.MaxRetries = 5 })
	_, err := client.FetchPlayer(context.Background(), 42)
	if !errors.Is(err, usecase.ErrUpstreamRejected) {
		t.Fatalf("expected ErrUpstreamRejected, got %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("4xx must not retry, saw %d requests", got)
	}
}

func TestFetchOpensCircuitAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, func(cfg *ClientConfig) {
		cfg.CircuitBreaker.FailureThreshold = 2
	})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := client.Fetch(ctx, ClassStats, "/players/1/stats", nil); err == nil {
			t.Fatalf("expected failure on attempt %d", i)
		}
	}
	before := calls.Load()

	_, err := client.Fetch(ctx, ClassStats, "/players/1/stats", nil)
	if !errors.Is(err, usecase.ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if calls.Load() != before {
		t.Fatalf("open circuit must fail fast without a network call")
	}

	// Other endpoint classes keep their own breaker.
	if _, err := client.Fetch(ctx, ClassMarket, "/market/values", nil); errors.Is(err, usecase.ErrCircuitOpen) {
		t.Fatalf("market class breaker must be independent, got %v", err)
	}
}

func TestFetchPacingRespectsDeadline(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(samplePlayerBody))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, func(cfg *ClientConfig) {
		cfg.PaceInterval = time.Hour
		cfg.PaceBurst = 1
	})

	if _, err := client.Fetch(context.Background(), ClassPlayers, "/players/42", nil); err != nil {
		t.Fatalf("first call should pass the pacer: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := client.Fetch(ctx, ClassPlayers, "/players/42", nil)
	if !errors.Is(err, usecase.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestFetchPacedOutProbeDoesNotWedgeBreaker(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, func(cfg *ClientConfig) {
		cfg.MaxRetries = 0
		cfg.PaceInterval = time.Hour
		cfg.PaceBurst = 1
		cfg.CircuitBreaker.FailureThreshold = 1
		cfg.CircuitBreaker.Cooldown = 20 * time.Millisecond
	})

	// First call spends the only pace token and trips the breaker.
	if _, err := client.Fetch(context.Background(), ClassStats, "/players/1/stats", nil); err == nil {
		t.Fatal("expected upstream failure")
	}
	time.Sleep(40 * time.Millisecond)

	// Each half-open trial claims the probe slot, then abandons it when the
	// pacer cannot release a token before the deadline. The slot must come
	// back every time; a leaked slot would turn these into ErrCircuitOpen.
	for i := 0; i < 5; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		_, err := client.Fetch(ctx, ClassStats, "/players/1/stats", nil)
		cancel()
		if !errors.Is(err, usecase.ErrRateLimited) {
			t.Fatalf("attempt %d: expected ErrRateLimited, got %v", i, err)
		}
	}

	if err := client.state(ClassStats).breaker.Allow(); err != nil {
		t.Fatalf("trial call still admitted after abandoned probes: %v", err)
	}
}

func TestFetchCallerCancellationIsNotATimeout(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-block
	}))
	defer server.Close()
	defer close(block)

	client := newTestClient(t, server.URL, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := client.Fetch(ctx, ClassPlayers, "/players/42", nil)
	if errors.Is(err, usecase.ErrTimeout) {
		t.Fatalf("cancellation misclassified as timeout: %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestFetchHonorsRetryAfter(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	var gap atomic.Int64
	var first atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n == 1 {
			first.Store(time.Now().UnixNano())
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		gap.Store(time.Now().UnixNano() - first.Load())
		_, _ = w.Write([]byte(samplePlayerBody))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, func(cfg *ClientConfig) { cfg.MaxRetries = 1 })
	if _, err := client.FetchPlayer(context.Background(), 42); err != nil {
		t.Fatalf("expected recovery after 429, got %v", err)
	}
	if got := time.Duration(gap.Load()); got < 900*time.Millisecond {
		t.Fatalf("Retry-After not honored, second request after %v", got)
	}
}

func TestRedactAPIURL(t *testing.T) {
	t.Parallel()

	redacted := redactAPIURL("https://api.example.com/players/1?api_key=secret-key&ids=1")
	if strings.Contains(redacted, "secret-key") {
		t.Fatalf("api key leaked: %s", redacted)
	}
	if !strings.Contains(redacted, "api_key=REDACTED") {
		t.Fatalf("expected redaction marker, got %s", redacted)
	}
}

func TestParseRetryAfter(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	if got := parseRetryAfter("3", now); got != 3*time.Second {
		t.Fatalf("seconds form: got %v", got)
	}
	if got := parseRetryAfter(now.Add(5*time.Second).Format(http.TimeFormat), now); got != 5*time.Second {
		t.Fatalf("date form: got %v", got)
	}
	if got := parseRetryAfter("garbage", now); got != 0 {
		t.Fatalf("malformed header must be ignored, got %v", got)
	}
}
