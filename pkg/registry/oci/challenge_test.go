// Copyright 2026 BWI GmbH and Regio contributors
// SPDX-License-Identifier: Apache-2.0

package oci

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRepositoryFromPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path     string
		expected string
	}{
		{"/v2/myrepo/manifests/latest", "myrepo"},
		{"/v2/my/nested/repo/manifests/v1.0", "my/nested/repo"},
		{"/v2/myrepo/tags/list", "myrepo"},
		{"/v2/myrepo/blobs/sha256:deadbeef", "myrepo"},
		{"/v2/", ""},
		{"/v2/_catalog", ""},
		{"/token", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, repositoryFromPath(tt.path), "path %q", tt.path)
	}
}

func TestIsBearerChallenge(t *testing.T) {
	t.Parallel()

	assert.True(t, isBearerChallenge(`Bearer realm="https://auth.example/token"`))
	assert.True(t, isBearerChallenge(`bearer realm="x"`))
	assert.False(t, isBearerChallenge(`Basic realm="Test Server"`))
	assert.False(t, isBearerChallenge(""))
}

func TestParseChallenge(t *testing.T) {
	t.Parallel()

	params := parseChallenge(`Bearer realm="https://auth.docker.io/token",service="registry.docker.io",scope="repository:library/alpine:pull"`)

	assert.Equal(t, "https://auth.docker.io/token", params["realm"])
	assert.Equal(t, "registry.docker.io", params["service"])
	assert.Equal(t, "repository:library/alpine:pull", params["scope"])
}

func TestParseChallengeQuotedComma(t *testing.T) {
	t.Parallel()

	params := parseChallenge(`Bearer realm="https://r/token",scope="repository:a:pull,push"`)

	assert.Equal(t, "repository:a:pull,push", params["scope"])
}

func TestParseChallengeUnquoted(t *testing.T) {
	t.Parallel()

	params := parseChallenge(`Bearer realm=https://r/token, Service = registry`)

	assert.Equal(t, "https://r/token", params["realm"])
	assert.Equal(t, "registry", params["service"])
}
