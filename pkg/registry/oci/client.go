// Copyright 2026 BWI GmbH and Regio contributors
// SPDX-License-Identifier: Apache-2.0

// Package oci implements a read-path client for OCI/Docker container
// registries. It normalizes registry endpoints, selects credentials from a
// Docker config document, negotiates authentication against whichever
// scheme the server demands (Basic, bearer token flow or OAuth2 refresh)
// and executes paginated, retried GET requests for manifests and tag lists.
package oci

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// RegistryClient talks to a single registry. The zero value is not usable;
// construct with NewClient.
//
// A client instance may be shared across goroutines: the strategies guard
// their token caches and the last-header bookkeeping is locked. Two
// concurrent challenges for the same repository both fetch a valid token
// and the last writer wins, which is harmless.
type RegistryClient struct {
	rawURL   string // as handed in by the caller, kept for credential matching
	endpoint string // normalized origin, e.g. https://index.docker.io
	host     string // canonical hostname of the endpoint

	dockerCfg  string
	creds      *CredentialStore
	proxy      *url.URL
	httpClient *http.Client
	userAgent  string
	logger     logr.Logger
	limiter    *rate.Limiter

	strategies []Strategy

	mu             sync.Mutex
	lastAuthHeader string
}

// ClientOption configures a RegistryClient.
type ClientOption func(*RegistryClient)

// WithDockerConfigJSON supplies a Docker config JSON document to read
// credentials from. A malformed document is logged and ignored; the client
// then works anonymously.
func WithDockerConfigJSON(doc string) ClientOption {
	return func(c *RegistryClient) {
		c.dockerCfg = doc
	}
}

// WithProxy routes all HTTP calls, realm exchanges included, through the
// given proxy URL.
func WithProxy(proxy *url.URL) ClientOption {
	return func(c *RegistryClient) {
		c.proxy = proxy
	}
}

// WithHTTPClient replaces the default retrying HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *RegistryClient) {
		c.httpClient = client
	}
}

// WithUserAgent sets the User-Agent sent on every request.
func WithUserAgent(ua string) ClientOption {
	return func(c *RegistryClient) {
		c.userAgent = ua
	}
}

// WithLogger sets the logger for the client and its strategies.
func WithLogger(logger logr.Logger) ClientOption {
	return func(c *RegistryClient) {
		c.logger = logger
	}
}

// WithRateLimit limits outbound request attempts to one per interval with
// the given burst. Useful against registries that throttle pulls.
func WithRateLimit(limiter *rate.Limiter) ClientOption {
	return func(c *RegistryClient) {
		c.limiter = limiter
	}
}

// NewClient creates a client for the given registry. The registry may be a
// bare hostname, a hostname with port, or a full URL; it is normalized
// before use and any path component is discarded.
func NewClient(registry string, opts ...ClientOption) *RegistryClient {
	c := &RegistryClient{
		rawURL:    registry,
		logger:    logr.Discard(),
		userAgent: "regio/1.0",
	}
	for _, opt := range opts {
		opt(c)
	}

	c.endpoint = Normalize(registry)
	if u, err := url.Parse(c.endpoint); err == nil {
		c.host = u.Hostname()
	}

	if c.dockerCfg != "" {
		store, err := ParseDockerConfig(c.dockerCfg)
		if err != nil {
			// Configuration errors are not fatal: fall back to anonymous.
			c.logger.Info("ignoring malformed Docker config", "reason", err.Error())
		} else {
			c.creds = store
		}
	}

	if c.httpClient == nil {
		c.httpClient = newHTTPClient(c.proxy, c.logger)
	}

	cred, _ := c.creds.Resolve(c.rawURL, c.host)
	c.strategies = []Strategy{
		NewBearerStrategy(cred.Auth, c.httpClient, WithBearerLogger(c.logger)),
		NewOAuth2Strategy(cred.IdentityToken, c.httpClient, WithOAuth2Logger(c.logger)),
		NewBasicStrategy(cred.Auth),
	}

	return c
}

// Endpoint returns the normalized registry origin the client talks to.
func (c *RegistryClient) Endpoint() string {
	return c.endpoint
}

// LastAuthHeader returns the Authorization value of the strategy that
// produced the final response of the most recent request. Exposed for
// diagnostics; overwritten on every request.
func (c *RegistryClient) LastAuthHeader() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastAuthHeader
}

// Get issues a GET against the given registry API path, negotiating
// authentication by trying the bearer, OAuth2 and basic strategies in that
// fixed order until one yields a non-401 response. The first 401 of an
// unauthenticated probe carries the challenge that usually lets the bearer
// strategy complete on that same call, so no extra round trip is spent when
// the server speaks the token flow.
//
// The response is returned regardless of its status; deciding whether a
// 4xx/5xx is an error is the caller's business. Transport errors propagate
// unmodified.
func (c *RegistryClient) Get(ctx context.Context, path string, params url.Values, headers http.Header) (*http.Response, error) {
	fullURL := c.endpoint + "/" + strings.TrimPrefix(path, "/")
	requestID := uuid.NewString()

	for i, strategy := range c.strategies {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request for %s: %w", fullURL, err)
		}
		if params != nil {
			req.URL.RawQuery = params.Encode()
		}
		for key, values := range headers {
			for _, value := range values {
				req.Header.Add(key, value)
			}
		}
		req.Header.Set("User-Agent", c.userAgent)
		strategy.Prepare(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		resp, err = strategy.HandleChallenge(c.httpClient, resp)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.lastAuthHeader = strategy.AuthHeader()
		c.mu.Unlock()

		if resp.StatusCode != http.StatusUnauthorized || i == len(c.strategies)-1 {
			c.logger.V(1).Info("registry GET",
				"url", req.URL.String(), "status", resp.StatusCode, "request", requestID)
			return resp, nil
		}

		c.logger.V(1).Info("auth strategy unsuccessful, trying next",
			"url", req.URL.String(), "strategy", fmt.Sprintf("%T", strategy), "request", requestID)
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		resp.Body.Close()
	}

	// Unreachable: the final strategy returns above.
	return nil, fmt.Errorf("no authentication strategies configured")
}

// Ping checks that the registry's v2 API endpoint is reachable with the
// negotiated authentication.
func (c *RegistryClient) Ping(ctx context.Context) error {
	resp, err := c.Get(ctx, "v2/", nil, nil)
	if err != nil {
		return fmt.Errorf("pinging %s: %w", c.endpoint, err)
	}
	return c.checkResponse(resp)
}

// checkResponse logs the response by status class and converts non-2xx
// statuses into a *StatusError, consuming the body. On success the body is
// left untouched for the caller.
func (c *RegistryClient) checkResponse(resp *http.Response) error {
	status := resp.StatusCode
	reqURL := resp.Request.URL.String()

	switch {
	case status >= 500:
		c.logger.Info("unexpected registry response", "url", reqURL, "status", status)
	case status >= 400:
		c.logger.Info("registry rejected request", "url", reqURL, "status", status)
	default:
		c.logger.V(1).Info("registry request successful", "url", reqURL, "status", status)
	}

	if status >= 200 && status < 300 {
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
	return &StatusError{
		StatusCode: status,
		URL:        reqURL,
		Body:       strings.TrimSpace(string(snippet)),
	}
}
