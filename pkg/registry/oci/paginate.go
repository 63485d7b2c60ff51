// Copyright 2026 BWI GmbH and Regio contributors
// SPDX-License-Identifier: Apache-2.0

package oci

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultPageSize is the page size requested from list endpoints when
	// the caller passes 0.
	DefaultPageSize = 100
	// DefaultTagLimit caps tag listings when the caller passes 0.
	DefaultTagLimit = 2000
)

// GetPaginated walks a paginated list endpoint, collecting the elements of
// the named JSON list field across pages until the server stops sending a
// next link or limit elements have been gathered. A limit of 0 means
// unbounded.
//
// The first page is requested with the given params plus a page size hint;
// follow-up pages use the server's Link URL verbatim, since it already
// carries the continuation parameters.
func (c *RegistryClient) GetPaginated(ctx context.Context, path, listName string, params url.Values, headers http.Header, pageSize, limit int) ([]json.RawMessage, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("n", strconv.Itoa(pageSize))

	var items []json.RawMessage
	for {
		resp, err := c.Get(ctx, path, params, headers)
		if err != nil {
			return nil, fmt.Errorf("fetching page of %s: %w", path, err)
		}
		if err := c.checkResponse(resp); err != nil {
			return nil, err
		}

		var page map[string]json.RawMessage
		err = json.NewDecoder(resp.Body).Decode(&page)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("decoding page of %s: %w", path, err)
		}

		var pageItems []json.RawMessage
		if raw, ok := page[listName]; ok {
			if err := json.Unmarshal(raw, &pageItems); err != nil {
				return nil, fmt.Errorf("decoding %q list of %s: %w", listName, path, err)
			}
		}
		items = append(items, pageItems...)

		if limit > 0 && len(items) >= limit {
			return items[:limit], nil
		}

		next := parseLinkHeader(resp.Header.Get("Link"), c.endpoint)
		if next == "" {
			return items, nil
		}
		// The next URL is self-contained; hand it over as the path with no
		// extra params so its own query survives.
		path = strings.TrimPrefix(next, c.endpoint+"/")
		params = nil
	}
}

// GetTags lists the tags of a repository, paging through the registry's
// tags/list endpoint. pageSize and limit of 0 select the defaults.
func (c *RegistryClient) GetTags(ctx context.Context, repository string, pageSize, limit int) ([]string, error) {
	if limit <= 0 {
		limit = DefaultTagLimit
	}

	raw, err := c.GetPaginated(ctx, fmt.Sprintf("v2/%s/tags/list", repository), "tags", nil, nil, pageSize, limit)
	if err != nil {
		return nil, fmt.Errorf("listing tags of %s: %w", repository, err)
	}

	tags := make([]string, 0, len(raw))
	for _, msg := range raw {
		var tag string
		if err := json.Unmarshal(msg, &tag); err != nil {
			return nil, fmt.Errorf("decoding tag of %s: %w", repository, err)
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// parseLinkHeader extracts the rel="next" URL from a Link header. Relative
// links are resolved against baseURL. Returns "" when there is no next
// page.
func parseLinkHeader(link, baseURL string) string {
	if link == "" {
		return ""
	}
	// Link header format: </v2/repo/tags/list?n=10&last=tag>; rel="next"
	for _, entry := range strings.Split(link, ",") {
		parts := strings.Split(entry, ";")
		if len(parts) < 2 {
			continue
		}
		for _, part := range parts[1:] {
			if strings.Contains(part, `rel="next"`) {
				urlPart := strings.Trim(strings.TrimSpace(parts[0]), "<>")
				if strings.HasPrefix(urlPart, "/") {
					return baseURL + urlPart
				}
				return urlPart
			}
		}
	}
	return ""
}
