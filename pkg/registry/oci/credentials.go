// Copyright 2026 BWI GmbH and Regio contributors
// SPDX-License-Identifier: Apache-2.0

package oci

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Credential is a single entry from the auths section of a Docker config
// document.
type Credential struct {
	// Auth is the base64 encoded "user:password" blob as described in RFC 7617.
	Auth string `json:"auth,omitempty"`
	// IdentityToken is a long-lived refresh token usable with the OAuth2
	// token flow. When present it takes precedence over Auth.
	IdentityToken string `json:"identitytoken,omitempty"`
}

// Empty reports whether the credential carries no usable material.
func (c Credential) Empty() bool {
	return c.Auth == "" && c.IdentityToken == ""
}

type credentialEntry struct {
	key  string
	cred Credential
}

// CredentialStore holds registry credentials parsed from a Docker config
// JSON document. Entries keep the order of the original document: lookup is
// first-match-wins, so a plain Go map would not do.
type CredentialStore struct {
	entries []credentialEntry
}

// ParseDockerConfig parses a Docker config JSON document (the usual
// ~/.docker/config.json shape with a top-level "auths" object) into a
// CredentialStore.
func ParseDockerConfig(doc string) (*CredentialStore, error) {
	dec := json.NewDecoder(strings.NewReader(doc))

	if err := expectDelim(dec, '{'); err != nil {
		return nil, fmt.Errorf("parsing docker config: %w", err)
	}

	store := &CredentialStore{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("parsing docker config: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("parsing docker config: unexpected token %v", tok)
		}

		if key != "auths" {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, fmt.Errorf("parsing docker config: %w", err)
			}
			continue
		}

		if err := expectDelim(dec, '{'); err != nil {
			return nil, fmt.Errorf("parsing docker config auths: %w", err)
		}
		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return nil, fmt.Errorf("parsing docker config auths: %w", err)
			}
			registryKey, ok := tok.(string)
			if !ok {
				return nil, fmt.Errorf("parsing docker config auths: unexpected token %v", tok)
			}
			var cred Credential
			if err := dec.Decode(&cred); err != nil {
				return nil, fmt.Errorf("parsing docker config entry %q: %w", registryKey, err)
			}
			store.entries = append(store.entries, credentialEntry{key: registryKey, cred: cred})
		}
		if _, err := dec.Token(); err != nil {
			return nil, fmt.Errorf("parsing docker config auths: %w", err)
		}
	}

	return store, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

// Len returns the number of stored entries.
func (s *CredentialStore) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

// Resolve returns the credential of the first entry matching either of the
// two query strings, typically the raw registry URL as given by the caller
// and the canonical hostname. Entries are tried in document order, and for
// each entry three comparisons are attempted from cheapest to loosest:
// exact key equality, the key's parsed hostname, and the hostname stripped
// to its last two DNS labels (registry.quay.io matches quay.io). Keys with
// no extractable hostname are skipped.
func (s *CredentialStore) Resolve(rawURL, canonical string) (Credential, bool) {
	if s == nil {
		return Credential{}, false
	}
	for _, e := range s.entries {
		if e.key == "" {
			continue
		}
		if matchesRegistry(e.key, rawURL, canonical) {
			return e.cred, true
		}
	}
	return Credential{}, false
}

func matchesRegistry(key, rawURL, canonical string) bool {
	matches := func(candidate string) bool {
		return candidate == rawURL || candidate == canonical
	}

	if matches(key) {
		return true
	}

	u, err := url.Parse(AddSchemeIfMissing(key))
	if err != nil || u.Hostname() == "" {
		return false
	}
	host := u.Hostname()
	if matches(host) {
		return true
	}

	labels := strings.Split(host, ".")
	if len(labels) > 2 {
		labels = labels[len(labels)-2:]
	}
	return matches(strings.Join(labels, "."))
}
