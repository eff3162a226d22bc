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

package client

import (
	"context"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
)

// Signer is a SigV4 signer that understands active-storage proxies. When the
// request targets an endpoint that advertises active storage, the request is
// signed as if it addressed the canonical upstream object directly: the proxy
// later forwards the request and the signature verifies at the upstream host.
// For any other endpoint it behaves exactly like the wrapped v4 signer, so
// it can be installed unconditionally.
type Signer struct {
	inner     *v4.Signer
	discovery *Discovery
}

// NewSigner builds an active-storage aware signer. A nil discovery gets a
// default probe client.
func NewSigner(discovery *Discovery) *Signer {
	if discovery == nil {
		discovery = NewDiscovery(nil)
	}
	return &Signer{
		inner:     v4.NewSigner(),
		discovery: discovery,
	}
}

// SignHTTP implements the aws-sdk-go-v2 HTTPSignerV4 contract. The request
// URL and Host are swapped for the canonical object URL for the duration of
// signing and restored before the request goes on the wire to the proxy.
func (s *Signer) SignHTTP(ctx context.Context, credentials aws.Credentials, r *http.Request,
	payloadHash, service, region string, signingTime time.Time,
	optFns ...func(*v4.SignerOptions)) error {

	info := s.discovery.ProxyInfo(ctx, r.URL)
	if info == nil {
		return s.inner.SignHTTP(ctx, credentials, r, payloadHash, service, region, signingTime, optFns...)
	}

	proxyURL := r.URL
	proxyHost := r.Host

	canonical := info.CanonicalURL(proxyURL)
	r.URL = canonical
	r.Host = canonical.Host

	err := s.inner.SignHTTP(ctx, credentials, r, payloadHash, service, region, signingTime, optFns...)

	r.URL = proxyURL
	r.Host = proxyHost
	return err
}
