// Copyright 2025 ActiveStore
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package client lets aws-sdk-go-v2 based applications talk to an
// ActiveStore proxy without code changes: New builds an s3.Client whose
// signer transparently signs requests against the canonical upstream object
// URL whenever the endpoint advertises active-storage support, and signs them
// as a standard client would otherwise. Whether the endpoint cooperates is
// only observable through the round trip, never through configuration.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"
)

// WellKnownPath is where an active-storage proxy advertises itself.
const WellKnownPath = "/.well-known/s3-active-storage"

// WellKnownDocument is the discovery document an active-storage proxy serves.
type WellKnownDocument struct {
	ActiveStorageVersion string   `json:"active_storage_version"`
	S3Endpoint           string   `json:"s3_endpoint"`
	AvailableReducers    []string `json:"available_reducers"`
	SupportedDatatypes   []string `json:"supported_datatypes"`
}

// ProxyInfo describes how to translate proxy URLs into canonical upstream
// object URLs for signing.
type ProxyInfo struct {
	// UpstreamScheme and UpstreamHost address the S3 endpoint the proxy
	// itself talks to.
	UpstreamScheme string
	UpstreamHost   string
	// pathPrefix strips the reducer/dtype (or obj passthrough) prefix the
	// proxy adds in front of the object path.
	pathPrefix *regexp.Regexp
}

// CanonicalURL translates a proxy object URL into the URL of the canonical
// upstream object.
func (p *ProxyInfo) CanonicalURL(proxyURL *url.URL) *url.URL {
	canonical := *proxyURL
	canonical.Scheme = p.UpstreamScheme
	canonical.Host = p.UpstreamHost
	canonical.Path = p.pathPrefix.ReplaceAllString(proxyURL.Path, "")
	canonical.RawPath = ""
	return &canonical
}

// Discovery probes endpoints for the well-known document and caches the
// outcome per host, including negative results so ordinary S3 endpoints are
// probed exactly once.
type Discovery struct {
	httpClient *http.Client

	mu      sync.Mutex
	proxies map[string]*ProxyInfo
}

// NewDiscovery builds a Discovery. A nil httpClient gets a short-timeout
// default; the probe sits on the signing path and must not hang it.
func NewDiscovery(httpClient *http.Client) *Discovery {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &Discovery{
		httpClient: httpClient,
		proxies:    make(map[string]*ProxyInfo),
	}
}

// ProxyInfo returns translation info for the endpoint hosting rawURL, or nil
// when the endpoint is not an active-storage proxy. Probe failures are
// treated as "not a proxy": the caller falls back to standard signing and
// correctness is preserved either way.
func (d *Discovery) ProxyInfo(ctx context.Context, u *url.URL) *ProxyInfo {
	d.mu.Lock()
	defer d.mu.Unlock()

	if info, seen := d.proxies[u.Host]; seen {
		return info
	}

	info := d.probe(ctx, u)
	d.proxies[u.Host] = info
	return info
}

func (d *Discovery) probe(ctx context.Context, u *url.URL) *ProxyInfo {
	wellKnown := fmt.Sprintf("%s://%s%s", u.Scheme, u.Host, WellKnownPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, wellKnown, nil)
	if err != nil {
		return nil
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil
	}

	var doc WellKnownDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil
	}

	upstream, err := url.Parse(doc.S3Endpoint)
	if err != nil || upstream.Host == "" {
		return nil
	}
	prefix, err := compilePathPrefix(&doc)
	if err != nil {
		return nil
	}

	return &ProxyInfo{
		UpstreamScheme: upstream.Scheme,
		UpstreamHost:   upstream.Host,
		pathPrefix:     prefix,
	}
}

// compilePathPrefix builds the prefix-stripping pattern from the advertised
// reducers and datatypes, covering both the reducer routes and the /obj
// passthrough.
func compilePathPrefix(doc *WellKnownDocument) (*regexp.Regexp, error) {
	reducers := make([]string, 0, len(doc.AvailableReducers))
	for _, r := range doc.AvailableReducers {
		reducers = append(reducers, regexp.QuoteMeta(r))
	}
	datatypes := make([]string, 0, len(doc.SupportedDatatypes))
	for _, dt := range doc.SupportedDatatypes {
		datatypes = append(datatypes, regexp.QuoteMeta(dt))
	}
	pattern := fmt.Sprintf("^/(((%s)/(%s))|obj)",
		strings.Join(reducers, "|"), strings.Join(datatypes, "|"))
	return regexp.Compile(pattern)
}
