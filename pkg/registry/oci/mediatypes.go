// Copyright 2026 BWI GmbH and Regio contributors
// SPDX-License-Identifier: Apache-2.0

package oci

import (
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Media types the client can request via the Accept header, keyed by the
// short names callers use to pick a subset.
var AcceptHeaders = map[string]string{
	"oci_index":            ocispec.MediaTypeImageIndex,
	"oci_manifest":         ocispec.MediaTypeImageManifest,
	"oci_config":           ocispec.MediaTypeImageConfig,
	"oci_gzip":             ocispec.MediaTypeImageLayerGzip,
	"docker_manifest_list": "application/vnd.docker.distribution.manifest.list.v2+json",
	"docker_manifest_v2":   "application/vnd.docker.distribution.manifest.v2+json",
	"docker_manifest_v1":   "application/vnd.docker.distribution.manifest.v1+json",
}

// defaultManifestTypes is the subset requested when a caller does not pick
// one.
var defaultManifestTypes = []string{"docker_manifest_v2", "oci_manifest"}
