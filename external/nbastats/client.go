package nbastats

import (
	"context"
	"fmt"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	resty "github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/courtdata/nba-sync/internal/platform/cache"
	"github.com/courtdata/nba-sync/internal/platform/logging"
	"github.com/courtdata/nba-sync/internal/platform/resilience"
	"github.com/courtdata/nba-sync/internal/usecase"
)

const (
	defaultBaseURL     = "https://cdn.nba.com/static/json"
	defaultUserAgent   = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36"
	defaultCacheTTL    = 10 * time.Minute
	maxResponseBytes   = 12 << 20
	defaultRateLimit   = 3.0
	defaultRateBurst   = 3
	defaultHTTPRetries = 2
)

var errStatsTransient = crerr.New("nba stats transient failure")

// errStatsNoData marks a response that means the game has no payload
// upstream, as opposed to a failed request.
var errStatsNoData = crerr.New("nba stats no data")

type ClientConfig struct {
	BaseURL        string
	UserAgent      string
	Timeout        time.Duration
	MaxRetries     int
	RatePerSecond  float64
	RateBurst      int
	CacheTTL       time.Duration
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Client talks to the NBA stats CDN. All fetches run through one rate
// limiter, one circuit breaker, and a single-flight group so that
// concurrent workers never duplicate an in-flight request.
type Client struct {
	http           *resty.Client
	baseURL        string
	maxRetries     int
	limiter        *rate.Limiter
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
	flight         resilience.SingleFlight
	payloads       *cache.Store
	logger         *logging.Logger
}

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	httpClient := resty.New().
		SetTimeout(timeout).
		SetHeader("accept", "application/json").
		SetHeader("user-agent", userAgent)

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	perSecond := cfg.RatePerSecond
	if perSecond <= 0 {
		perSecond = defaultRateLimit
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = defaultRateBurst
	}

	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = defaultHTTPRetries
	}

	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}

	breakerCfg := resilience.NormalizeCircuitBreakerConfig(cfg.CircuitBreaker)

	return &Client{
		http:           httpClient,
		baseURL:        baseURL,
		maxRetries:     maxRetries,
		limiter:        rate.NewLimiter(rate.Limit(perSecond), burst),
		breaker:        resilience.NewCircuitBreaker(breakerCfg.FailureThreshold, breakerCfg.OpenTimeout, breakerCfg.HalfOpenMaxReq),
		circuitEnabled: breakerCfg.Enabled,
		payloads:       cache.NewStore(ttl),
		logger:         logger.Named("nbastats"),
	}
}

// fetchJSON resolves one path into a decoded target. Force bypasses the
// payload cache. A no-data upstream response returns (false, nil) with
// the target untouched.
func (c *Client) fetchJSON(ctx context.Context, path string, force bool, target any) (bool, error) {
	raw, found, err := c.fetchRaw(ctx, path, force)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	if err := sonic.Unmarshal(raw, target); err != nil {
		return false, fmt.Errorf("%w: decode %s: %v", usecase.ErrParse, path, err)
	}
	return true, nil
}

func (c *Client) fetchRaw(ctx context.Context, path string, force bool) ([]byte, bool, error) {
	if !force {
		if raw, ok := c.payloads.Get(ctx, path); ok {
			return raw, true, nil
		}
	}

	if c.circuitEnabled {
		if err := c.breaker.Allow(); err != nil {
			c.logger.WarnContext(ctx, "circuit breaker rejected request",
				"path", path,
				"state", c.breaker.State(),
			)
			return nil, false, fmt.Errorf("%w: stats provider is temporarily unavailable", usecase.ErrDependencyUnavailable)
		}
	}

	out, err, _ := c.flight.Do(path, func() (any, error) {
		raw, reqErr := c.executeRequest(ctx, c.baseURL+path)
		if c.circuitEnabled {
			if reqErr != nil && crerr.Is(reqErr, errStatsTransient) {
				c.breaker.RecordFailure()
			} else {
				c.breaker.RecordSuccess()
			}
		}
		return raw, reqErr
	})
	if err != nil {
		if crerr.Is(err, errStatsNoData) {
			return nil, false, nil
		}
		return nil, false, err
	}

	raw, ok := out.([]byte)
	if !ok {
		return nil, false, fmt.Errorf("unexpected response payload type %T", out)
	}
	c.payloads.Set(ctx, path, raw)
	return raw, true, nil
}

func (c *Client) executeRequest(ctx context.Context, fullURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, err := c.http.R().SetContext(ctx).Get(fullURL)
		switch {
		case err != nil:
			lastErr = fmt.Errorf("%w: %w: send request: %v", usecase.ErrTransport, errStatsTransient, err)
		case resp.StatusCode() == 403 || resp.StatusCode() == 404:
			// The CDN answers both for games that never had this payload.
			return nil, errStatsNoData
		case resp.StatusCode() >= 200 && resp.StatusCode() < 300:
			body := resp.Body()
			if len(body) > maxResponseBytes {
				return nil, fmt.Errorf("%w: response exceeds %d bytes", usecase.ErrParse, maxResponseBytes)
			}
			return body, nil
		case isRetryableStatus(resp.StatusCode()):
			lastErr = fmt.Errorf("%w: %w: provider status=%d", usecase.ErrTransport, errStatsTransient, resp.StatusCode())
		default:
			return nil, fmt.Errorf("%w: provider status=%d body=%s", usecase.ErrTransport, resp.StatusCode(), abbreviateBody(resp.Body()))
		}

		if attempt == c.maxRetries {
			break
		}
		backoff := time.Duration(attempt+1) * time.Second
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("%w: provider request failed", usecase.ErrTransport)
	}
	c.logger.WarnContext(ctx, "stats request failed", "url", fullURL, "error", lastErr)
	return nil, lastErr
}

func isRetryableStatus(status int) bool {
	return status == 408 || status == 425 || status == 429 || status >= 500
}

func abbreviateBody(raw []byte) string {
	const limit = 200
	body := strings.TrimSpace(string(raw))
	if len(body) > limit {
		return body[:limit] + "..."
	}
	return body
}
