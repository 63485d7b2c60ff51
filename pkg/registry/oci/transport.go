// Copyright 2026 BWI GmbH and Regio contributors
// SPDX-License-Identifier: Apache-2.0

package oci

import (
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-logr/logr"
)

const (
	// defaultConnectTimeout is deliberately short so endpoints that drop
	// packets fail on dial rather than hanging on data transfer.
	defaultConnectTimeout = 7 * time.Second
	// defaultReadTimeout bounds the wait for response headers per attempt.
	defaultReadTimeout = 15 * time.Second

	defaultMaxAttempts = 10
)

// retryableStatusCodes are the transient statuses worth retrying an
// idempotent request for.
var retryableStatusCodes = map[int]bool{
	http.StatusRequestTimeout:      true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// retryTransport retries GET requests on transport errors and on a fixed
// set of transient status codes with exponential backoff. Non-GET requests
// pass through untouched. After the attempt budget is spent, the last
// response (or error) is returned as-is so callers can still inspect the
// status; the transport never converts a status into an error.
type retryTransport struct {
	next        http.RoundTripper
	maxAttempts int
	logger      logr.Logger
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet {
		return t.next.RoundTrip(req)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second

	for attempt := 1; ; attempt++ {
		resp, err := t.next.RoundTrip(req)
		if err == nil && !retryableStatusCodes[resp.StatusCode] {
			return resp, nil
		}
		if attempt >= t.maxAttempts {
			return resp, err
		}
		wait := b.NextBackOff()
		if wait == backoff.Stop {
			return resp, err
		}

		if err != nil {
			t.logger.V(1).Info("retrying after transport error",
				"url", req.URL.String(), "attempt", attempt, "reason", err.Error())
		} else {
			t.logger.V(1).Info("retrying after transient status",
				"url", req.URL.String(), "attempt", attempt, "status", resp.StatusCode)
			io.Copy(io.Discard, resp.Body) //nolint:errcheck
			resp.Body.Close()
		}

		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(wait):
		}
	}
}

// newHTTPClient builds the HTTP client shared by the registry requests and
// the realm exchanges: short connect timeout, bounded header wait, optional
// outbound proxy and transparent retry of transient failures.
func newHTTPClient(proxy *url.URL, logger logr.Logger) *http.Client {
	dialer := &net.Dialer{Timeout: defaultConnectTimeout}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: defaultReadTimeout,
	}
	if proxy != nil {
		transport.Proxy = http.ProxyURL(proxy)
	}

	return &http.Client{
		Transport: &retryTransport{
			next:        transport,
			maxAttempts: defaultMaxAttempts,
			logger:      logger,
		},
	}
}
