// Copyright 2026 BWI GmbH and Regio contributors
// SPDX-License-Identifier: Apache-2.0

package oci

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/opencontainers/go-digest"
)

// acceptHeader joins the Accept media types for the requested manifest
// kinds, erroring on unknown names.
func acceptHeader(manifestTypes []string) (string, error) {
	if len(manifestTypes) == 0 {
		manifestTypes = defaultManifestTypes
	}
	accepts := make([]string, 0, len(manifestTypes))
	for _, name := range manifestTypes {
		mediaType, ok := AcceptHeaders[name]
		if !ok {
			return "", fmt.Errorf("unknown manifest type %q", name)
		}
		accepts = append(accepts, mediaType)
	}
	return strings.Join(accepts, ", "), nil
}

// GetManifest fetches the manifest of the given repository and reference
// (tag or digest) and returns it decoded. With no manifest types given it
// asks for Docker schema 2 and OCI image manifests.
func (c *RegistryClient) GetManifest(ctx context.Context, repository, reference string, manifestTypes ...string) (map[string]any, error) {
	accept, err := acceptHeader(manifestTypes)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Accept", accept)

	resp, err := c.Get(ctx, fmt.Sprintf("v2/%s/manifests/%s", repository, reference), nil, headers)
	if err != nil {
		return nil, fmt.Errorf("fetching manifest %s:%s: %w", repository, reference, err)
	}
	if err := c.checkResponse(resp); err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var manifest map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&manifest); err != nil {
		return nil, fmt.Errorf("decoding manifest %s:%s: %w", repository, reference, err)
	}
	return manifest, nil
}

// GetManifestHeaders performs the same request as GetManifest but returns
// only the response headers, discarding the body. Useful for cheap
// existence checks and digest lookups.
func (c *RegistryClient) GetManifestHeaders(ctx context.Context, repository, reference string, manifestTypes ...string) (http.Header, error) {
	accept, err := acceptHeader(manifestTypes)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Accept", accept)

	resp, err := c.Get(ctx, fmt.Sprintf("v2/%s/manifests/%s", repository, reference), nil, headers)
	if err != nil {
		return nil, fmt.Errorf("fetching manifest headers %s:%s: %w", repository, reference, err)
	}
	if err := c.checkResponse(resp); err != nil {
		return nil, err
	}
	resp.Body.Close()
	return resp.Header, nil
}

// GetManifestDigest resolves a reference to the digest the registry reports
// in the Docker-Content-Digest header.
func (c *RegistryClient) GetManifestDigest(ctx context.Context, repository, reference string, manifestTypes ...string) (digest.Digest, error) {
	headers, err := c.GetManifestHeaders(ctx, repository, reference, manifestTypes...)
	if err != nil {
		return "", err
	}
	raw := headers.Get("Docker-Content-Digest")
	if raw == "" {
		return "", fmt.Errorf("registry returned no digest for %s:%s", repository, reference)
	}
	dgst, err := digest.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parsing digest for %s:%s: %w", repository, reference, err)
	}
	return dgst, nil
}
