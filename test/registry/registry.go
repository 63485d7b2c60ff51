// Copyright 2026 BWI GmbH and Regio contributors
// SPDX-License-Identifier: Apache-2.0

// Package registry provides an in-process Docker registry for tests,
// wrapping go-containerregistry's implementation with the authentication
// schemes the client negotiates: Basic, the bearer token flow and OAuth2
// refresh-token exchange.
package registry

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/google/go-containerregistry/pkg/registry"
)

// Registry represents a Docker registry for use in tests.
type Registry struct {
	wantedAuthHeader string

	tokenRealm   string
	service      string
	token        string
	refreshToken string

	tokensIssued atomic.Int64

	dockerRegistryHandler http.Handler
}

// New returns a new Registry. Without further configuration it accepts all
// requests anonymously.
func New(opts ...registry.Option) *Registry {
	r := &Registry{}
	r.dockerRegistryHandler = registry.New(opts...)

	return r
}

// HandleFunc returns a http.Handler that handles requests to the registry.
func (r *Registry) HandleFunc() http.Handler {
	return http.HandlerFunc(r.handle)
}

// TokenHandler returns the handler for the token realm. Mount it on a test
// server and pass its URL to WithTokenAuth or WithOAuth. It answers GET with
// the token flow response and POST with the OAuth2 response, so a single
// realm serves both modes.
func (r *Registry) TokenHandler() http.Handler {
	return http.HandlerFunc(r.handleToken)
}

// TokensIssued reports how many tokens the realm handed out.
func (r *Registry) TokensIssued() int64 {
	return r.tokensIssued.Load()
}

func (r *Registry) handle(w http.ResponseWriter, req *http.Request) {
	switch {
	case r.tokenRealm != "":
		if req.Header.Get("Authorization") != "Bearer "+r.token {
			w.Header().Set("Www-Authenticate",
				fmt.Sprintf(`Bearer realm=%q,service=%q`, r.tokenRealm, r.service))
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
	case r.wantedAuthHeader != "":
		if req.Header.Get("Authorization") != r.wantedAuthHeader {
			w.Header().Set("Www-Authenticate", `Basic realm="Test Server"`)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
	}
	r.dockerRegistryHandler.ServeHTTP(w, req)
}

func (r *Registry) handleToken(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if req.Method == http.MethodPost {
		if err := req.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req.PostForm.Get("grant_type") != "refresh_token" ||
			req.PostForm.Get("refresh_token") != r.refreshToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		r.tokensIssued.Add(1)
		json.NewEncoder(w).Encode(map[string]string{ //nolint:errcheck
			"access_token": r.token,
		})
		return
	}

	if r.wantedAuthHeader != "" && req.Header.Get("Authorization") != r.wantedAuthHeader {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	r.tokensIssued.Add(1)
	json.NewEncoder(w).Encode(map[string]string{ //nolint:errcheck
		"token": r.token,
	})
}

// WithAuth sets the wanted Basic auth header for the registry.
func (r *Registry) WithAuth(username string, password string) *Registry {
	r.wantedAuthHeader = "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
	return r
}

// WithTokenAuth makes the registry demand the bearer token flow: requests
// without the issued token get a 401 naming the realm, and the realm hands
// out the token (requiring the Basic credentials set via WithAuth, if any).
func (r *Registry) WithTokenAuth(realm, service, token string) *Registry {
	r.tokenRealm = realm
	r.service = service
	r.token = token
	return r
}

// WithOAuth configures the realm's POST endpoint to exchange the given
// refresh token for the access token set via WithTokenAuth.
func (r *Registry) WithOAuth(refreshToken string) *Registry {
	r.refreshToken = refreshToken
	return r
}

// AuthBlob is a helper producing the base64 "user:password" blob used in
// Docker config documents.
func AuthBlob(username, password string) string {
	return base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
}

// DockerConfig renders a minimal Docker config JSON document with a single
// auths entry.
func DockerConfig(registryKey string, cred map[string]string) string {
	var fields []string
	for k, v := range cred {
		fields = append(fields, fmt.Sprintf("%q: %q", k, v))
	}
	return fmt.Sprintf(`{"auths": {%q: {%s}}}`, registryKey, strings.Join(fields, ", "))
}
