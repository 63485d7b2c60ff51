// Copyright 2026 BWI GmbH and Regio contributors
// SPDX-License-Identifier: Apache-2.0

package oci

import (
	"net"
	"net/url"
	"regexp"
)

// dockerHubAliases maps the public spellings of Docker Hub to the canonical
// index hostname. Content referenced through docker.io is actually served
// from index.docker.io; from observation this aliasing is specific to Docker
// Hub, so a fixed lookup table is enough.
var dockerHubAliases = map[string]string{
	"docker.io":            "index.docker.io",
	"registry-1.docker.io": "index.docker.io",
	"hub.docker.com":       "index.docker.io",
	"www.docker.com":       "index.docker.io",
}

var schemePattern = regexp.MustCompile(`^[A-Za-z0-9+.\-]+://`)

// AddSchemeIfMissing prepends https:// to raw if it does not already carry a
// URI scheme.
func AddSchemeIfMissing(raw string) string {
	if !schemePattern.MatchString(raw) {
		return "https://" + raw
	}
	return raw
}

// Normalize canonicalizes a registry endpoint to "scheme://hostname[:port]".
// A missing scheme defaults to https, known Docker Hub aliases resolve to the
// canonical index hostname, and any path, query or fragment on the input is
// discarded. The function is total: input that cannot be parsed as a URL is
// passed through with only the scheme defaulted.
func Normalize(raw string) string {
	withScheme := AddSchemeIfMissing(raw)

	u, err := url.Parse(withScheme)
	if err != nil || u.Hostname() == "" {
		return withScheme
	}

	host := u.Hostname()
	if canonical, ok := dockerHubAliases[host]; ok {
		host = canonical
	}
	if port := u.Port(); port != "" {
		host = net.JoinHostPort(host, port)
	}

	return u.Scheme + "://" + host
}
