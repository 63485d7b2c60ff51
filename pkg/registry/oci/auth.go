// Copyright 2026 BWI GmbH and Regio contributors
// SPDX-License-Identifier: Apache-2.0

package oci

import (
	"net/http"
)

// Strategy is one way of authenticating requests against a registry. The
// registry does not advertise which scheme it expects, so the client tries a
// fixed order of strategies until one yields a non-401 response.
type Strategy interface {
	// Prepare sets the Authorization header on an outbound request when the
	// strategy already holds usable material (a cached token, a static
	// credential blob). Strategies without material leave the request alone.
	Prepare(req *http.Request)

	// HandleChallenge inspects a 401 response. A strategy that can satisfy
	// the challenge fetches a token, rewrites the failed request's
	// Authorization header and replays it, returning the replay response.
	// A strategy that cannot help returns the response unchanged with a nil
	// error so the caller can fall through to the next strategy.
	HandleChallenge(client *http.Client, resp *http.Response) (*http.Response, error)

	// AuthHeader reports the Authorization value last placed on a request by
	// this strategy, for diagnostics.
	AuthHeader() string
}

// BasicStrategy sends a precomputed RFC 7617 credential blob on every
// request. It never reacts to challenges; there is nothing else it could try.
type BasicStrategy struct {
	header string
}

// NewBasicStrategy creates a BasicStrategy from a base64 "user:password"
// blob. An empty blob produces a strategy that leaves requests
// unauthenticated, which is the anonymous-access fallback.
func NewBasicStrategy(authB64 string) *BasicStrategy {
	s := &BasicStrategy{}
	if authB64 != "" {
		s.header = "Basic " + authB64
	}
	return s
}

// Prepare sets the Authorization header when a credential is configured.
func (s *BasicStrategy) Prepare(req *http.Request) {
	if s.header != "" {
		req.Header.Set("Authorization", s.header)
	}
}

// HandleChallenge returns the response unchanged.
func (s *BasicStrategy) HandleChallenge(_ *http.Client, resp *http.Response) (*http.Response, error) {
	return resp, nil
}

// AuthHeader returns the configured Basic header, or "" when anonymous.
func (s *BasicStrategy) AuthHeader() string {
	return s.header
}
