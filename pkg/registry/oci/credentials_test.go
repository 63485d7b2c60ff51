// Copyright 2026 BWI GmbH and Regio contributors
// SPDX-License-Identifier: Apache-2.0

package oci

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDockerConfig(t *testing.T) {
	t.Parallel()

	doc := `{
		"credsStore": "desktop",
		"auths": {
			"quay.io": {"auth": "cXVheQ=="},
			"https://index.docker.io/v1/": {"auth": "aHVi", "identitytoken": "refresh-me"}
		}
	}`

	store, err := ParseDockerConfig(doc)
	require.NoError(t, err)
	assert.Equal(t, 2, store.Len())

	cred, ok := store.Resolve("quay.io", "quay.io")
	require.True(t, ok)
	assert.Equal(t, "cXVheQ==", cred.Auth)
	assert.Empty(t, cred.IdentityToken)

	cred, ok = store.Resolve("docker.io", "index.docker.io")
	require.True(t, ok)
	assert.Equal(t, "aHVi", cred.Auth)
	assert.Equal(t, "refresh-me", cred.IdentityToken)
}

func TestParseDockerConfigMalformed(t *testing.T) {
	t.Parallel()

	for _, doc := range []string{"", "not json", `["auths"]`, `{"auths": [1]}`} {
		_, err := ParseDockerConfig(doc)
		assert.Error(t, err, "document %q", doc)
	}
}

func TestResolveMatching(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		key       string
		rawURL    string
		canonical string
		found     bool
	}{
		{
			name:      "exact key",
			key:       "quay.io",
			rawURL:    "quay.io",
			canonical: "quay.io",
			found:     true,
		},
		{
			name:      "key with path matches hostname query",
			key:       "quay.io/my-namespace",
			rawURL:    "https://quay.io",
			canonical: "quay.io",
			found:     true,
		},
		{
			name:      "url key matches hostname query",
			key:       "https://index.docker.io/v1/",
			rawURL:    "docker.io",
			canonical: "index.docker.io",
			found:     true,
		},
		{
			name:      "parent domain match",
			key:       "registry.quay.io",
			rawURL:    "https://quay.io",
			canonical: "quay.io",
			found:     true,
		},
		{
			name:      "different registry",
			key:       "https://docker.io",
			rawURL:    "quay.io",
			canonical: "quay.io",
			found:     false,
		},
		{
			name:      "raw url match against original caller input",
			key:       "http://localhost:5000",
			rawURL:    "http://localhost:5000",
			canonical: "localhost",
			found:     true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store, err := ParseDockerConfig(`{"auths": {"` + tt.key + `": {"auth": "Zm9v"}}}`)
			require.NoError(t, err)

			cred, ok := store.Resolve(tt.rawURL, tt.canonical)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.Equal(t, "Zm9v", cred.Auth)
			}
		})
	}
}

func TestResolveDocumentOrder(t *testing.T) {
	t.Parallel()

	// Both keys match the same hostname; the earlier one must win.
	doc := `{"auths": {
		"quay.io/first": {"auth": "Zmlyc3Q="},
		"quay.io/second": {"auth": "c2Vjb25k"}
	}}`

	store, err := ParseDockerConfig(doc)
	require.NoError(t, err)

	cred, ok := store.Resolve("quay.io", "quay.io")
	require.True(t, ok)
	assert.Equal(t, "Zmlyc3Q=", cred.Auth)
}

func TestResolveNoMatch(t *testing.T) {
	t.Parallel()

	store, err := ParseDockerConfig(`{"auths": {"quay.io": {"auth": "Zm9v"}}}`)
	require.NoError(t, err)

	cred, ok := store.Resolve("ghcr.io", "ghcr.io")
	assert.False(t, ok)
	assert.True(t, cred.Empty())

	var nilStore *CredentialStore
	_, ok = nilStore.Resolve("quay.io", "quay.io")
	assert.False(t, ok)
}
