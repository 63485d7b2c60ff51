// Copyright 2026 BWI GmbH and Regio contributors
// SPDX-License-Identifier: Apache-2.0

package oci

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-logr/logr"
)

// oauthClientID is the fixed client identifier sent with the refresh-token
// grant.
const oauthClientID = "mercury"

// OAuth2Strategy implements the registry OAuth2 flow: a 401 bearer challenge
// is answered by POSTing a refresh token (the identity token of the
// credential store) to the realm in exchange for a short-lived access token.
// When the realm rotates the refresh token, the new one silently replaces
// the stored one for subsequent exchanges.
type OAuth2Strategy struct {
	challengeStrategy

	refreshToken string
	httpClient   *http.Client
}

// OAuth2Option configures an OAuth2Strategy.
type OAuth2Option func(*OAuth2Strategy)

// WithOAuth2Logger sets the logger used by the strategy.
func WithOAuth2Logger(logger logr.Logger) OAuth2Option {
	return func(s *OAuth2Strategy) {
		s.logger = logger
	}
}

// NewOAuth2Strategy creates an OAuth2Strategy around a refresh token. Realm
// exchanges go through httpClient so proxy and retry settings apply to them
// as well.
func NewOAuth2Strategy(refreshToken string, httpClient *http.Client, opts ...OAuth2Option) *OAuth2Strategy {
	s := &OAuth2Strategy{
		refreshToken: refreshToken,
		httpClient:   httpClient,
	}
	s.tokens = make(map[string]string)
	s.logger = logr.Discard()
	s.source = s
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// fetchToken acquires an access token from the challenge realm with a
// form-encoded refresh_token grant. A pull scope for the identified
// repository is requested; without a repository scope is omitted, implying
// registry-wide access.
func (s *OAuth2Strategy) fetchToken(ctx context.Context, challenge map[string]string, repo string) (string, error) {
	realm := challenge["realm"]
	if realm == "" {
		return "", fmt.Errorf("challenge carries no realm")
	}

	s.mu.Lock()
	refreshToken := s.refreshToken
	s.mu.Unlock()

	form := url.Values{}
	form.Set("service", challenge["service"])
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", oauthClientID)
	if repo != "" {
		form.Set("scope", fmt.Sprintf("repository:%s:pull", repo))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, realm, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating realm request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

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
	if tr.AccessToken == "" {
		return "", fmt.Errorf("realm %s returned no access token", realm)
	}

	// The realm may rotate the refresh token alongside the access token.
	if tr.RefreshToken != "" {
		s.mu.Lock()
		s.refreshToken = tr.RefreshToken
		s.mu.Unlock()
	}

	return tr.AccessToken, nil
}
