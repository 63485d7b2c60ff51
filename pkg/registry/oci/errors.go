// Copyright 2026 BWI GmbH and Regio contributors
// SPDX-License-Identifier: Apache-2.0

package oci

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the repository, manifest or tag does not exist
	// (or the registry hides it behind a 404).
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized indicates every authentication strategy was rejected.
	ErrUnauthorized = errors.New("unauthorized")
)

// StatusError reports a non-success registry response to callers of the
// convenience methods. The core request path never raises on statuses; this
// type only exists at the thin layer that turns responses into values.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("registry responded with status %d for %s: %s", e.StatusCode, e.URL, e.Body)
}

// Unwrap maps well-known statuses onto the package sentinel errors so
// callers can use errors.Is.
func (e *StatusError) Unwrap() error {
	switch e.StatusCode {
	case 404:
		return ErrNotFound
	case 401:
		return ErrUnauthorized
	}
	return nil
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
