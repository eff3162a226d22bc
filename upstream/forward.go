// Copyright 2025 ActiveStore
// SPDX-License-Identifier: Apache-2.0

package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ForwardResult is the verbatim outcome of a forwarded upstream request.
// Non-2xx responses are returned as values, not errors, so the boundary can
// relay the upstream's status and body unchanged.
type ForwardResult struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the upstream accepted the request.
func (fr *ForwardResult) OK() bool {
	return fr.StatusCode >= 200 && fr.StatusCode < 300
}

// Forward relays a GET for objPath to the upstream source, passing through
// the caller's headers. This is the signature-passthrough mode: the caller
// signed against the canonical object URL, so the Authorization header
// verifies once the request reaches the upstream host. The Host header is
// dropped; forwarding it would confuse an upstream that is not expecting to
// be proxied.
func (c *Client) Forward(ctx context.Context, source, objPath string, hdr http.Header) (*ForwardResult, error) {
	url := strings.TrimRight(source, "/") + "/" + strings.TrimLeft(objPath, "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building forwarded request: %w", err)
	}
	for k, vv := range hdr {
		if strings.EqualFold(k, "Host") {
			continue
		}
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response body: %v", ErrUnreachable, err)
	}
	return &ForwardResult{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}
