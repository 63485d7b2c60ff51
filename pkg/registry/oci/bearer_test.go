// Copyright 2026 BWI GmbH and Regio contributors
// SPDX-License-Identifier: Apache-2.0

package oci

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTokenRegistry spins up a realm and a registry demanding the bearer
// flow: 401 with a challenge until the issued token is presented.
func newTokenRegistry(t *testing.T, token string) (registrySrv *httptest.Server, realmSrv *httptest.Server) {
	t.Helper()

	realmSrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"token": token}) //nolint:errcheck
	}))
	t.Cleanup(realmSrv.Close)

	registrySrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			w.Header().Set("Www-Authenticate",
				fmt.Sprintf(`Bearer realm=%q,service="test-registry"`, realmSrv.URL))
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(registrySrv.Close)

	return registrySrv, realmSrv
}

func TestBearerStrategyChallengeAndReplay(t *testing.T) {
	t.Parallel()

	registrySrv, _ := newTokenRegistry(t, "abc")
	strategy := NewBearerStrategy("", registrySrv.Client())

	req, err := http.NewRequest(http.MethodGet, registrySrv.URL+"/v2/myrepo/manifests/latest", nil)
	require.NoError(t, err)
	strategy.Prepare(req)
	assert.Empty(t, req.Header.Get("Authorization"), "no token cached yet")

	resp, err := registrySrv.Client().Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = strategy.HandleChallenge(registrySrv.Client(), resp)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Bearer abc", strategy.AuthHeader())
}

func TestBearerStrategyCachesToken(t *testing.T) {
	t.Parallel()

	registrySrv, _ := newTokenRegistry(t, "abc")
	strategy := NewBearerStrategy("", registrySrv.Client())

	req, err := http.NewRequest(http.MethodGet, registrySrv.URL+"/v2/myrepo/manifests/latest", nil)
	require.NoError(t, err)
	resp, err := registrySrv.Client().Do(req)
	require.NoError(t, err)
	resp, err = strategy.HandleChallenge(registrySrv.Client(), resp)
	require.NoError(t, err)
	resp.Body.Close()

	// A later request on the same repository gets the token up front.
	second, err := http.NewRequest(http.MethodGet, registrySrv.URL+"/v2/myrepo/tags/list", nil)
	require.NoError(t, err)
	strategy.Prepare(second)
	assert.Equal(t, "Bearer abc", second.Header.Get("Authorization"))

	// A different repository does not.
	other, err := http.NewRequest(http.MethodGet, registrySrv.URL+"/v2/otherrepo/tags/list", nil)
	require.NoError(t, err)
	strategy.Prepare(other)
	assert.Empty(t, other.Header.Get("Authorization"))
}

func TestBearerStrategyScope(t *testing.T) {
	t.Parallel()

	var gotScope, gotService, gotAuth string
	realmSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotScope = r.URL.Query().Get("scope")
		gotService = r.URL.Query().Get("service")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"access_token": "tok"}) //nolint:errcheck
	}))
	t.Cleanup(realmSrv.Close)

	strategy := NewBearerStrategy("dXNlcjpwYXNz", realmSrv.Client())
	challenge := map[string]string{"realm": realmSrv.URL, "service": "test-registry"}

	token, err := strategy.fetchToken(testContext(t), challenge, "my/repo")
	require.NoError(t, err)

	assert.Equal(t, "tok", token, "access_token accepted when token absent")
	assert.Equal(t, "repository:my/repo:pull", gotScope)
	assert.Equal(t, "test-registry", gotService)
	assert.Equal(t, "Basic dXNlcjpwYXNz", gotAuth)
}

func TestBearerStrategyRealmFailure(t *testing.T) {
	t.Parallel()

	realmSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(realmSrv.Close)

	registrySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Www-Authenticate", fmt.Sprintf(`Bearer realm=%q`, realmSrv.URL))
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(registrySrv.Close)

	strategy := NewBearerStrategy("", registrySrv.Client())

	req, err := http.NewRequest(http.MethodGet, registrySrv.URL+"/v2/myrepo/manifests/latest", nil)
	require.NoError(t, err)
	resp, err := registrySrv.Client().Do(req)
	require.NoError(t, err)

	// A failed exchange hands the original 401 back instead of erroring so
	// the next strategy gets its turn.
	out, err := strategy.HandleChallenge(registrySrv.Client(), resp)
	require.NoError(t, err)
	defer out.Body.Close()
	assert.Same(t, resp, out)
	assert.Equal(t, http.StatusUnauthorized, out.StatusCode)
}

func TestBearerStrategyIgnoresBasicChallenge(t *testing.T) {
	t.Parallel()

	registrySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Www-Authenticate", `Basic realm="Test Server"`)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(registrySrv.Close)

	strategy := NewBearerStrategy("", registrySrv.Client())

	req, err := http.NewRequest(http.MethodGet, registrySrv.URL+"/v2/myrepo/manifests/latest", nil)
	require.NoError(t, err)
	resp, err := registrySrv.Client().Do(req)
	require.NoError(t, err)

	out, err := strategy.HandleChallenge(registrySrv.Client(), resp)
	require.NoError(t, err)
	defer out.Body.Close()
	assert.Same(t, resp, out)
}
