// Package confluence is a small Confluence Cloud v2 API client used to
// seed and clean the demo sandbox space. Requests are rate limited and
// retried with exponential backoff on throttling and transient server
// errors.
package confluence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultMaxRetries  = 3
	defaultBaseDelay   = time.Second
	defaultHTTPTimeout = 30 * time.Second
	defaultSpaceKey    = "CDEMO"
)

// retryableStatus lists responses worth retrying: throttling and
// transient server failures.
var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// Config carries the connection settings for one Confluence site.
type Config struct {
	SiteURL  string
	Email    string
	APIToken string

	// SpaceKey is the demo sandbox space this client works against.
	SpaceKey string
}

// LoadConfig reads connection settings through lookup, typically
// os.LookupEnv. SpaceKey falls back to the demo default.
func LoadConfig(lookup func(string) (string, bool)) Config {
	cfg := Config{SpaceKey: defaultSpaceKey}
	if v, ok := lookup("CONFLUENCE_SITE_URL"); ok {
		cfg.SiteURL = strings.TrimRight(v, "/")
	}
	if v, ok := lookup("CONFLUENCE_EMAIL"); ok {
		cfg.Email = v
	}
	if v, ok := lookup("CONFLUENCE_API_TOKEN"); ok {
		cfg.APIToken = v
	}
	if v, ok := lookup("DEMO_SPACE_KEY"); ok && v != "" {
		cfg.SpaceKey = v
	}
	return cfg
}

// Validate reports which required settings are missing.
func (c Config) Validate() error {
	var missing []string
	if c.SiteURL == "" {
		missing = append(missing, "CONFLUENCE_SITE_URL")
	}
	if c.Email == "" {
		missing = append(missing, "CONFLUENCE_EMAIL")
	}
	if c.APIToken == "" {
		missing = append(missing, "CONFLUENCE_API_TOKEN")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Options tunes client behavior. The zero value is ready for production
// use.
type Options struct {
	HTTPClient *http.Client

	// Limiter paces outgoing requests. Defaults to 5 requests per second.
	Limiter *rate.Limiter

	MaxRetries int
	BaseDelay  time.Duration

	// Out receives retry notices. Defaults to discard.
	Out io.Writer
}

func (o *Options) applyDefaults() {
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if o.Limiter == nil {
		o.Limiter = rate.NewLimiter(rate.Limit(5), 5)
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = defaultMaxRetries
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = defaultBaseDelay
	}
	if o.Out == nil {
		o.Out = io.Discard
	}
}

// Client issues authenticated requests against one Confluence site.
type Client struct {
	cfg  Config
	http *http.Client

	limiter    *rate.Limiter
	maxRetries int
	baseDelay  time.Duration
	out        io.Writer
}

func NewClient(cfg Config, opts Options) *Client {
	opts.applyDefaults()
	return &Client{
		cfg:        cfg,
		http:       opts.HTTPClient,
		limiter:    opts.Limiter,
		maxRetries: opts.MaxRetries,
		baseDelay:  opts.BaseDelay,
		out:        opts.Out,
	}
}

// SpaceKey returns the sandbox space key this client is configured for.
func (c *Client) SpaceKey() string {
	return c.cfg.SpaceKey
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, endpoint, params, nil)
}

func (c *Client) post(ctx context.Context, endpoint string, body any) (*http.Response, error) {
	return c.do(ctx, http.MethodPost, endpoint, nil, body)
}

func (c *Client) delete(ctx context.Context, endpoint string) (*http.Response, error) {
	return c.do(ctx, http.MethodDelete, endpoint, nil, nil)
}

// do sends one API request, retrying throttled and transiently failed
// calls. The last response is returned as-is once retries are spent, so
// callers always see the final status code.
func (c *Client) do(ctx context.Context, method, endpoint string, params url.Values, body any) (*http.Response, error) {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		payload = b
	}

	target := c.cfg.SiteURL + endpoint
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
		if err != nil {
			return nil, err
		}
		req.SetBasicAuth(c.cfg.Email, c.cfg.APIToken)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if attempt >= c.maxRetries || ctx.Err() != nil {
				return nil, err
			}
			delay := c.baseDelay << attempt
			fmt.Fprintf(c.out, "  Retry %d/%d after %s (%v)\n", attempt+1, c.maxRetries, delay, err)
			if err := sleepCtx(ctx, delay); err != nil {
				return nil, err
			}
			continue
		}
		if !retryableStatus[resp.StatusCode] || attempt >= c.maxRetries {
			return resp, nil
		}

		delay := c.retryDelay(attempt, resp)
		drain(resp)
		fmt.Fprintf(c.out, "  Retry %d/%d after %s (status %d)\n", attempt+1, c.maxRetries, delay, resp.StatusCode)
		if err := sleepCtx(ctx, delay); err != nil {
			return nil, err
		}
	}
}

// retryDelay doubles the base delay per attempt. A Retry-After header on
// a throttled response wins when it asks for longer.
func (c *Client) retryDelay(attempt int, resp *http.Response) time.Duration {
	delay := c.baseDelay << attempt
	if resp.StatusCode != http.StatusTooManyRequests {
		return delay
	}
	ra := resp.Header.Get("Retry-After")
	if ra == "" {
		return delay
	}
	secs, err := strconv.ParseFloat(ra, 64)
	if err != nil {
		return delay
	}
	if d := time.Duration(secs * float64(time.Second)); d > delay {
		return d
	}
	return delay
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

// apiError turns a non-success response into an error carrying a body
// excerpt.
func apiError(op string, resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := strings.TrimSpace(string(b))
	if msg == "" {
		return fmt.Errorf("%s: status %d", op, resp.StatusCode)
	}
	return fmt.Errorf("%s: status %d: %s", op, resp.StatusCode, msg)
}
