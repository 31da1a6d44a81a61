// Package regrid queries the Regrid parcel API v2 for parcel boundaries.
package regrid

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/HansenHomeAI/RegridParcelBoundaries/internal/resilience"
)

// DefaultBaseURL is the Regrid v2 API root.
const DefaultBaseURL = "https://app.regrid.com/api/v2"

const serviceName = "regrid"

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 16 << 20

// Scope narrows a lookup to a county and state.
type Scope struct {
	County string
	State  string
}

// NewScope normalizes county and state values: surrounding whitespace is
// trimmed and a trailing " County" suffix is dropped.
func NewScope(county, state string) Scope {
	county = strings.TrimSpace(county)
	if n := len(county) - len(" county"); n >= 0 && strings.EqualFold(county[n:], " county") {
		county = strings.TrimSpace(county[:n])
	}
	return Scope{County: county, State: strings.TrimSpace(state)}
}

func (s Scope) apply(q url.Values) {
	if s.County != "" {
		q.Set("county", s.County)
	}
	if s.State != "" {
		q.Set("state", s.State)
	}
}

// Client looks up parcels. Both methods return the raw JSON body on a match,
// nil with a nil error on 404, and an error for any other failure.
type Client interface {
	ByNumber(ctx context.Context, number string, scope Scope) ([]byte, error)
	ByAddress(ctx context.Context, address string, scope Scope) ([]byte, error)
}

// Option configures the client.
type Option func(*client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		c.httpClient = hc
	}
}

// WithBaseURL overrides the API root.
func WithBaseURL(base string) Option {
	return func(c *client) {
		c.baseURL = strings.TrimRight(base, "/")
	}
}

// WithRateLimit sets the requests-per-second limit.
func WithRateLimit(rps float64) Option {
	return func(c *client) {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRetry sets the retry policy for transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *client) {
		c.retry = cfg
	}
}

type client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	limiter    *rate.Limiter
	retry      resilience.RetryConfig
}

// NewClient creates a Regrid client authenticating with token.
func NewClient(token string, opts ...Option) Client {
	c := &client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    DefaultBaseURL,
		token:      token,
		limiter:    rate.NewLimiter(5, 5),
		retry:      resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CleanNumber strips everything but letters and digits from an assessor
// number; the API matches the unformatted form.
func CleanNumber(number string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, number)
}

func (c *client) ByNumber(ctx context.Context, number string, scope Scope) ([]byte, error) {
	q := url.Values{"parcelnumb": {CleanNumber(number)}}
	scope.apply(q)
	return c.get(ctx, "apn", q)
}

func (c *client) ByAddress(ctx context.Context, address string, scope Scope) ([]byte, error) {
	q := url.Values{"query": {strings.TrimSpace(address)}}
	scope.apply(q)
	return c.get(ctx, "address", q)
}

func (c *client) get(ctx context.Context, endpoint string, q url.Values) ([]byte, error) {
	cfg := c.retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger(serviceName, endpoint)
	}

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]byte, error) {
		return c.do(ctx, endpoint, q)
	})
}

func (c *client) do(ctx context.Context, endpoint string, q url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "regrid: rate limit")
	}

	reqURL := c.baseURL + "/parcels/" + endpoint + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "regrid: build request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "regrid: %s request", endpoint)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, eris.Wrapf(err, "regrid: %s read body", endpoint)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return body, nil
	case http.StatusNotFound:
		zap.L().Debug("regrid: no parcel found",
			zap.String("endpoint", endpoint),
			zap.String("query", q.Encode()),
		)
		return nil, nil
	default:
		return nil, resilience.NewStatusError(serviceName, resp.StatusCode, body)
	}
}
