package splunk

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultHECURL is the in-container collector address.
	DefaultHECURL = "https://splunk:8088"
	// DefaultHECToken matches the demo collector configuration.
	DefaultHECToken = "demo-hec-token-12345"

	// EnvHECURL and EnvHECToken override the collector settings.
	EnvHECURL   = "SPLUNK_HEC_URL"
	EnvHECToken = "SPLUNK_HEC_TOKEN"

	defaultHECTimeout    = 10 * time.Second
	defaultReadyRetries  = 60
	defaultReadyInterval = 5 * time.Second
)

// HECOptions configures the collector client. Zero values fall back to
// the demo collector defaults.
type HECOptions struct {
	URL         string
	Token       string
	DefaultHost string
	HTTPClient  *http.Client
	Out         io.Writer
}

func (o *HECOptions) applyDefaults() {
	if o.URL == "" {
		o.URL = DefaultHECURL
	}
	if o.Token == "" {
		o.Token = DefaultHECToken
	}
	if o.DefaultHost == "" {
		o.DefaultHost = "unknown"
	}
	if o.HTTPClient == nil {
		// The demo collector serves a self-signed certificate.
		o.HTTPClient = &http.Client{
			Timeout: defaultHECTimeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		}
	}
	if o.Out == nil {
		o.Out = io.Discard
	}
}

// EnvHECOptions reads collector settings from the environment. Unset
// variables leave the option empty so defaults apply.
func EnvHECOptions(lookup func(string) (string, bool)) HECOptions {
	var opts HECOptions
	if lookup == nil {
		return opts
	}
	if v, ok := lookup(EnvHECURL); ok && v != "" {
		opts.URL = v
	}
	if v, ok := lookup(EnvHECToken); ok && v != "" {
		opts.Token = v
	}
	return opts
}

// HECClient posts event batches to a Splunk HTTP Event Collector.
type HECClient struct {
	url         string
	token       string
	defaultHost string
	http        *http.Client
	out         io.Writer
}

// NewHECClient builds a collector client.
func NewHECClient(opts HECOptions) *HECClient {
	opts.applyDefaults()
	return &HECClient{
		url:         opts.URL,
		token:       opts.Token,
		defaultHost: opts.DefaultHost,
		http:        opts.HTTPClient,
		out:         opts.Out,
	}
}

// URL returns the collector base address.
func (c *HECClient) URL() string { return c.url }

// Send delivers events in a single collector request. Envelope fields
// left empty get collector defaults first. An empty batch is a no-op.
func (c *HECClient) Send(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, ev := range events {
		if err := enc.Encode(c.withDefaults(ev)); err != nil {
			return fmt.Errorf("encode event: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/services/collector/event", &buf)
	if err != nil {
		return fmt.Errorf("send events: %w", err)
	}
	req.Header.Set("Authorization", "Splunk "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send events: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if len(excerpt) > 0 {
			return fmt.Errorf("send events: status %d: %s", resp.StatusCode, excerpt)
		}
		return fmt.Errorf("send events: status %d", resp.StatusCode)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *HECClient) withDefaults(ev Event) Event {
	if ev.Source == "" {
		ev.Source = "as-demo"
	}
	if ev.Sourcetype == "" {
		ev.Sourcetype = "_json"
	}
	if ev.Index == "" {
		ev.Index = "main"
	}
	if ev.Host == "" {
		ev.Host = c.defaultHost
	}
	return ev
}

// WaitUntilReady polls the collector health endpoint until it answers.
// A 400 response counts as ready; the collector returns it once up but
// before any event arrives. Zero retries or interval use the defaults
// (60 tries, 5s apart).
func (c *HECClient) WaitUntilReady(ctx context.Context, maxRetries int, interval time.Duration) error {
	if maxRetries <= 0 {
		maxRetries = defaultReadyRetries
	}
	if interval <= 0 {
		interval = defaultReadyInterval
	}

	fmt.Fprintf(c.out, "Waiting for HEC at %s...\n", c.url)
	for i := 0; i < maxRetries; i++ {
		if c.healthy(ctx) {
			fmt.Fprintf(c.out, "HEC ready after %s\n", time.Duration(i)*interval)
			return nil
		}
		fmt.Fprintf(c.out, "  Waiting... (%d/%d)\n", i+1, maxRetries)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
	return fmt.Errorf("collector not available after %d retries", maxRetries)
}

func (c *HECClient) healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"/services/collector/health", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Splunk "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusBadRequest
}
