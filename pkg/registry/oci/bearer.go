// Copyright 2026 BWI GmbH and Regio contributors
// SPDX-License-Identifier: Apache-2.0

package oci

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/go-logr/logr"
)

// tokenSource performs the realm exchange for a parsed bearer challenge.
// Implemented by the token-endpoint GET of BearerStrategy and the OAuth2
// refresh POST of OAuth2Strategy.
type tokenSource interface {
	fetchToken(ctx context.Context, challenge map[string]string, repo string) (string, error)
}

// challengeStrategy carries the state and behavior shared by the Bearer and
// OAuth2 strategies: the per-repository token cache and the 401 handling
// that exchanges a challenge for a token and replays the failed request.
//
// Tokens are specific to repositories, so the cache may hold several of
// them. Entries are never expired; a cached token that causes a 401 is
// evicted on the challenge path and replaced by the fresh exchange.
type challengeStrategy struct {
	mu         sync.Mutex
	tokens     map[string]string
	lastHeader string

	source tokenSource
	logger logr.Logger
}

// Prepare attaches a cached token for the repository addressed by the
// request, when one exists.
func (s *challengeStrategy) Prepare(req *http.Request) {
	repo := repositoryFromPath(req.URL.Path)

	s.mu.Lock()
	token, ok := s.tokens[repo]
	s.mu.Unlock()

	if ok {
		s.setHeader(req, token)
	}
}

// HandleChallenge reacts to a 401 carrying a bearer challenge: it fetches a
// token from the challenge realm, caches it under the repository, rewrites
// the failed request's Authorization header and resends it. Cookies set by
// the failed response are carried onto the replay. Responses that are not
// bearer challenges are returned untouched so the caller can try the next
// strategy.
func (s *challengeStrategy) HandleChallenge(client *http.Client, resp *http.Response) (*http.Response, error) {
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	authInfo := resp.Header.Get(challengeHeader)
	if !isBearerChallenge(authInfo) {
		return resp, nil
	}

	req := resp.Request
	repo := repositoryFromPath(req.URL.Path)

	// A cached token that still produced a 401 is stale. Evict it so a
	// failed exchange below does not leave it around to be retried forever.
	s.mu.Lock()
	delete(s.tokens, repo)
	s.mu.Unlock()

	token, err := s.source.fetchToken(req.Context(), parseChallenge(authInfo), repo)
	if err != nil {
		s.logger.V(1).Info("token exchange failed", "url", req.URL.String(), "reason", err.Error())
		return resp, nil
	}

	s.mu.Lock()
	s.tokens[repo] = token
	s.mu.Unlock()

	// Consume and close the failed response so its connection returns to
	// the pool and the replay can reuse it.
	io.Copy(io.Discard, resp.Body) //nolint:errcheck
	resp.Body.Close()

	retry := req.Clone(req.Context())
	for _, cookie := range resp.Cookies() {
		retry.AddCookie(cookie)
	}
	s.setHeader(retry, token)

	return client.Do(retry)
}

// AuthHeader returns the Authorization value last placed on a request.
func (s *challengeStrategy) AuthHeader() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastHeader
}

func (s *challengeStrategy) setHeader(req *http.Request, token string) {
	header := "Bearer " + token

	s.mu.Lock()
	s.lastHeader = header
	s.mu.Unlock()

	req.Header.Set("Authorization", header)
}

// tokenResponse covers both token endpoint shapes: the token flow returns
// "token", the OAuth2 flow "access_token"; some registries set both.
type tokenResponse struct {
	Token        string `json:"token"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// BearerStrategy implements the Docker registry v2 token flow: a 401
// response names a realm, the strategy fetches a short-lived token from it
// (authenticating with Basic credentials when configured) and replays the
// original request with the token attached.
type BearerStrategy struct {
	challengeStrategy

	authB64    string
	access     []string
	httpClient *http.Client
}

// BearerOption configures a BearerStrategy.
type BearerOption func(*BearerStrategy)

// WithAccess sets the access actions requested in token scopes. Defaults to
// pull-only.
func WithAccess(access ...string) BearerOption {
	return func(s *BearerStrategy) {
		s.access = access
	}
}

// WithBearerLogger sets the logger used by the strategy.
func WithBearerLogger(logger logr.Logger) BearerOption {
	return func(s *BearerStrategy) {
		s.logger = logger
	}
}

// NewBearerStrategy creates a BearerStrategy. authB64 is the optional base64
// credential used to authenticate against the realm; when empty the token is
// requested anonymously. Realm exchanges go through httpClient so proxy and
// retry settings apply to them as well.
func NewBearerStrategy(authB64 string, httpClient *http.Client, opts ...BearerOption) *BearerStrategy {
	s := &BearerStrategy{
		authB64:    authB64,
		access:     []string{"pull"},
		httpClient: httpClient,
	}
	s.tokens = make(map[string]string)
	s.logger = logr.Discard()
	s.source = s
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// fetchToken exchanges a bearer challenge for a token by issuing a GET to
// the challenge realm with the remaining challenge parameters as query
// parameters. When a repository was identified a pull scope for it is
// requested; otherwise scope is omitted, which implies registry-wide access.
func (s *BearerStrategy) fetchToken(ctx context.Context, challenge map[string]string, repo string) (string, error) {
	realm := challenge["realm"]
	if realm == "" {
		return "", fmt.Errorf("challenge carries no realm")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, realm, nil)
	if err != nil {
		return "", fmt.Errorf("creating realm request: %w", err)
	}

	query := req.URL.Query()
	for key, value := range challenge {
		if key != "realm" {
			query.Set(key, value)
		}
	}
	if repo != "" {
		query.Set("scope", fmt.Sprintf("repository:%s:%s", repo, strings.Join(s.access, ",")))
	}
	req.URL.RawQuery = query.Encode()

	if s.authB64 != "" {
		req.Header.Set("Authorization", "Basic "+s.authB64)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("querying realm %s: %w", realm, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("realm %s responded with status %d", realm, resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decoding realm response: %w", err)
	}

	// Registries use either field name; take the first one present.
	if tr.Token != "" {
		return tr.Token, nil
	}
	if tr.AccessToken != "" {
		return tr.AccessToken, nil
	}
	return "", fmt.Errorf("realm %s returned no token", realm)
}
