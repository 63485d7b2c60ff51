// Copyright 2026 BWI GmbH and Regio contributors
// SPDX-License-Identifier: Apache-2.0

package oci

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDigest = "sha256:e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

func manifestServer(t *testing.T) (*httptest.Server, *http.Header) {
	t.Helper()

	var seenHeaders http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenHeaders = r.Header.Clone()
		if r.URL.Path != "/v2/myrepo/manifests/latest" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.docker.distribution.manifest.v2+json")
		w.Header().Set("Docker-Content-Digest", testDigest)
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"schemaVersion": 2,
			"mediaType":     "application/vnd.docker.distribution.manifest.v2+json",
		})
	}))
	t.Cleanup(srv.Close)

	return srv, &seenHeaders
}

func TestGetManifest(t *testing.T) {
	t.Parallel()

	srv, seenHeaders := manifestServer(t)
	client := NewClient(srv.URL, WithHTTPClient(srv.Client()))

	manifest, err := client.GetManifest(testContext(t), "myrepo", "latest")
	require.NoError(t, err)

	assert.EqualValues(t, 2, manifest["schemaVersion"])
	assert.Equal(t,
		"application/vnd.docker.distribution.manifest.v2+json, application/vnd.oci.image.manifest.v1+json",
		seenHeaders.Get("Accept"))
}

func TestGetManifestCustomTypes(t *testing.T) {
	t.Parallel()

	srv, seenHeaders := manifestServer(t)
	client := NewClient(srv.URL, WithHTTPClient(srv.Client()))

	_, err := client.GetManifest(testContext(t), "myrepo", "latest", "oci_index")
	require.NoError(t, err)
	assert.Equal(t, "application/vnd.oci.image.index.v1+json", seenHeaders.Get("Accept"))

	_, err = client.GetManifest(testContext(t), "myrepo", "latest", "bogus")
	assert.ErrorContains(t, err, "unknown manifest type")
}

func TestGetManifestNotFound(t *testing.T) {
	t.Parallel()

	srv, _ := manifestServer(t)
	client := NewClient(srv.URL, WithHTTPClient(srv.Client()))

	_, err := client.GetManifest(testContext(t), "myrepo", "gone")
	assert.True(t, IsNotFound(err))

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}

func TestGetManifestHeaders(t *testing.T) {
	t.Parallel()

	srv, _ := manifestServer(t)
	client := NewClient(srv.URL, WithHTTPClient(srv.Client()))

	headers, err := client.GetManifestHeaders(testContext(t), "myrepo", "latest")
	require.NoError(t, err)
	assert.Equal(t, testDigest, headers.Get("Docker-Content-Digest"))
}

func TestGetManifestDigest(t *testing.T) {
	t.Parallel()

	srv, _ := manifestServer(t)
	client := NewClient(srv.URL, WithHTTPClient(srv.Client()))

	dgst, err := client.GetManifestDigest(testContext(t), "myrepo", "latest")
	require.NoError(t, err)
	assert.Equal(t, testDigest, dgst.String())
}
