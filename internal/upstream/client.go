package upstream

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	crerr "github.com/cockroachdb/errors"
	"github.com/scoutpulse/scout-engine/internal/platform/logging"
	"github.com/scoutpulse/scout-engine/internal/platform/resilience"
	"github.com/scoutpulse/scout-engine/internal/usecase"
)

const defaultBaseURL = "https://api.scoutdata.example.com/v2"

// Class groups provider endpoints that share one rate budget and one
// circuit breaker. A meltdown on stats endpoints must not block player
// profile lookups.
type Class string

const (
	ClassPlayers   Class = "players"
	ClassStats     Class = "stats"
	ClassMarket    Class = "market"
	ClassTransfers Class = "transfers"
)

var apiKeyParamRegex = regexp.MustCompile(`api_key=[^&\s"']+`)
var errUpstreamTransient = crerr.New("upstream transient failure")

type ClientConfig struct {
	HTTPClient     *http.Client
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	MaxRetries     int
	Backoff        resilience.Backoff
	PaceInterval   time.Duration
	PaceBurst      int
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

// endpointState is the per-class resilience record. Created lazily on the
// first request for a class and kept for the life of the client.
type endpointState struct {
	pacer   *resilience.Pacer
	breaker *resilience.CircuitBreaker

	mu          sync.Mutex
	lastSuccess time.Time
}

func (s *endpointState) markSuccess(at time.Time) {
	s.mu.Lock()
	s.lastSuccess = at
	s.mu.Unlock()
}

func (s *endpointState) LastSuccess() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSuccess
}

// Client talks to the scouting data provider. One instance is shared by all
// callers; per-class pacing and breaker state live inside it.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	maxRetries     int
	backoff        resilience.Backoff
	paceInterval   time.Duration
	paceBurst      int
	logger         *logging.Logger
	breakerCfg     resilience.CircuitBreakerConfig
	circuitEnabled bool
	flight         resilience.SingleFlight[[]byte]

	statesMu sync.Mutex
	states   map[Class]*endpointState

	now func() time.Time
}

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = 15 * time.Second
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	paceInterval := cfg.PaceInterval
	if paceInterval <= 0 {
		paceInterval = 100 * time.Millisecond
	}
	paceBurst := cfg.PaceBurst
	if paceBurst <= 0 {
		paceBurst = 5
	}

	breakerCfg := resilience.NormalizeCircuitBreakerConfig(cfg.CircuitBreaker)

	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		apiKey:         strings.TrimSpace(cfg.APIKey),
		maxRetries:     max(cfg.MaxRetries, 0),
		backoff:        resilience.NormalizeBackoff(cfg.Backoff),
		paceInterval:   paceInterval,
		paceBurst:      paceBurst,
		logger:         logger,
		breakerCfg:     breakerCfg,
		circuitEnabled: breakerCfg.Enabled,
		states:         make(map[Class]*endpointState, 4),
		now:            time.Now,
	}
}

func (c *Client) state(class Class) *endpointState {
	c.statesMu.Lock()
	defer c.statesMu.Unlock()

	st, ok := c.states[class]
	if !ok {
		st = &endpointState{
			pacer:   resilience.NewPacer(c.paceInterval, c.paceBurst),
			breaker: resilience.NewCircuitBreaker(c.breakerCfg),
		}
		c.states[class] = st
	}
	return st
}

// BreakerSnapshot exposes the breaker state for one endpoint class, for the
// status endpoint. Classes never requested report a closed breaker.
func (c *Client) BreakerSnapshot(class Class) resilience.Snapshot {
	return c.state(class).breaker.Snapshot()
}

// Fetch issues one GET against the provider, going through the class pacer,
// breaker, and retry policy. The returned bytes are the raw response body.
func (c *Client) Fetch(ctx context.Context, class Class, path string, query map[string]string) ([]byte, error) {
	st := c.state(class)

	if c.circuitEnabled {
		if err := st.breaker.Allow(); err != nil {
			c.logger.WarnContext(ctx, "provider circuit breaker rejected request",
				"class", string(class), "state", string(st.breaker.State()))
			return nil, fmt.Errorf("%w: %s endpoints are cooling down", usecase.ErrCircuitOpen, class)
		}
	}

	if err := st.pacer.Wait(ctx); err != nil {
		// The probe slot claimed by Allow was never spent on a request.
		if c.circuitEnabled {
			st.breaker.ReleaseProbe()
		}
		if stderrors.Is(err, resilience.ErrPacedOut) {
			return nil, fmt.Errorf("%w: %s pace budget exhausted before deadline", usecase.ErrRateLimited, class)
		}
		return nil, err
	}

	values := url.Values{}
	for key, value := range query {
		values.Set(key, value)
	}
	values.Set("api_key", c.apiKey)

	fullURL := c.baseURL + path
	if encoded := values.Encode(); encoded != "" {
		fullURL += "?" + encoded
	}

	key := string(class) + ":" + path + "?" + values.Encode()
	raw, err := c.flight.Do(key, func() ([]byte, error) {
		return c.executeRequest(ctx, fullURL)
	})
	// Every caller that passed Allow settles its probe slot here, including
	// callers that shared another caller's in-flight request.
	if c.circuitEnabled {
		if err != nil && isTransientFailure(err) {
			st.breaker.RecordFailure()
		} else {
			st.breaker.RecordSuccess()
		}
	}
	if err != nil {
		return nil, err
	}
	st.markSuccess(c.now())
	return raw, nil
}

func (c *Client) executeRequest(ctx context.Context, fullURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		retryAfter := time.Duration(0)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if stderrors.Is(ctx.Err(), context.Canceled) {
				return nil, fmt.Errorf("request canceled: %w", ctx.Err())
			}
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %v", usecase.ErrTimeout, ctx.Err())
			}
			if isTimeoutError(err) {
				lastErr = crerr.Mark(fmt.Errorf("%w: %s", usecase.ErrTimeout, sanitizeSensitiveText(err.Error(), c.apiKey)), errUpstreamTransient)
			} else {
				lastErr = crerr.Mark(fmt.Errorf("%w: send request: %s", usecase.ErrTransient, sanitizeSensitiveText(err.Error(), c.apiKey)), errUpstreamTransient)
			}
		} else {
			raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 6<<20))
			_ = resp.Body.Close()
			switch {
			case readErr != nil:
				lastErr = crerr.Mark(fmt.Errorf("%w: read response body: %v", usecase.ErrTransient, readErr), errUpstreamTransient)
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				return raw, nil
			case resp.StatusCode == http.StatusTooManyRequests:
				retryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), c.now())
				lastErr = crerr.Mark(fmt.Errorf("%w: provider status=429 body=%s", usecase.ErrTransient, abbreviateBody(raw)), errUpstreamTransient)
			case resp.StatusCode >= http.StatusInternalServerError:
				lastErr = crerr.Mark(fmt.Errorf("%w: provider status=%d body=%s", usecase.ErrTransient, resp.StatusCode, abbreviateBody(raw)), errUpstreamTransient)
			default:
				return nil, fmt.Errorf("%w: provider status=%d body=%s", usecase.ErrUpstreamRejected, resp.StatusCode, abbreviateBody(raw))
			}
		}

		if attempt == c.maxRetries {
			break
		}
		delay := c.backoff.Delay(attempt)
		if retryAfter > delay {
			delay = retryAfter
		}
		if !resilience.Sleep(ctx.Done(), delay) {
			return nil, ctx.Err()
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("%w: provider request failed", usecase.ErrTransient)
	}
	c.logger.WarnContext(ctx, "provider request failed", "url", redactAPIURL(fullURL), "error", lastErr)
	return nil, lastErr
}

func isTransientFailure(err error) bool {
	if err == nil {
		return false
	}
	return crerr.Is(err, errUpstreamTransient)
}

func isTimeoutError(err error) bool {
	var netErr net.Error
	return stderrors.As(err, &netErr) && netErr.Timeout()
}

// parseRetryAfter handles both delta-seconds and HTTP-date forms. Malformed
// or absent headers mean no provider preference.
func parseRetryAfter(header string, now time.Time) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil {
		if seconds <= 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if delay := at.Sub(now); delay > 0 {
			return delay
		}
	}
	return 0
}

func sanitizeSensitiveText(value, apiKey string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	if apiKey != "" {
		value = strings.ReplaceAll(value, apiKey, "REDACTED")
	}
	return apiKeyParamRegex.ReplaceAllString(value, "api_key=REDACTED")
}

func redactAPIURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	query := parsed.Query()
	if query.Has("api_key") {
		query.Set("api_key", "REDACTED")
		parsed.RawQuery = query.Encode()
	}
	return parsed.String()
}

func abbreviateBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) <= 240 {
		return text
	}
	return text[:240] + "..."
}
