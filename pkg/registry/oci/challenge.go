// Copyright 2026 BWI GmbH and Regio contributors
// SPDX-License-Identifier: Apache-2.0

package oci

import (
	"regexp"
	"strings"
)

// challengeHeader is the response header carrying authentication challenges.
const challengeHeader = "WWW-Authenticate"

var (
	bearerScheme  = regexp.MustCompile(`(?i)bearer `)
	v2RepoPattern = regexp.MustCompile(`^/v2/(.*)/(manifests|tags|blobs)/`)
)

// repositoryFromPath derives the repository name addressed by a registry v2
// API path, e.g. "/v2/my/repo/manifests/latest" yields "my/repo". It returns
// the empty string for paths outside the repository-scoped v2 surface.
func repositoryFromPath(path string) string {
	m := v2RepoPattern.FindStringSubmatch(path)
	if m == nil {
		return ""
	}
	return m[1]
}

// isBearerChallenge reports whether a WWW-Authenticate value demands the
// bearer token flow.
func isBearerChallenge(header string) bool {
	return strings.Contains(strings.ToLower(header), "bearer")
}

// parseChallenge splits a WWW-Authenticate bearer challenge into its
// key/value parameters, dropping the leading scheme token. Values may be
// quoted; quotes are stripped and commas inside quotes are preserved.
// Example: `Bearer realm="https://auth.example/token",service="registry"`
// yields {"realm": "https://auth.example/token", "service": "registry"}.
func parseChallenge(header string) map[string]string {
	raw := header
	if loc := bearerScheme.FindStringIndex(raw); loc != nil {
		raw = raw[:loc[0]] + raw[loc[1]:]
	}

	params := make(map[string]string)
	for _, pair := range splitQuoted(raw, ',') {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.Trim(strings.TrimSpace(value), `"`)
		if key != "" {
			params[key] = value
		}
	}
	return params
}

// splitQuoted splits s on sep, keeping separators inside double quotes.
func splitQuoted(s string, sep byte) []string {
	var parts []string
	var start int
	inQuotes := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuotes = !inQuotes
		case sep:
			if !inQuotes {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}
