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

// Package upstream retrieves byte ranges from S3-compatible object stores on
// behalf of the reduction pipeline. Authentication is delegated to a Signer
// strategy supplied at construction, so the signing scheme is an explicit
// capability of the client rather than process-wide state.
package upstream

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
)

// emptyPayloadHash is the SHA-256 of an empty body; every fetch is a GET.
const emptyPayloadHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

// Signer produces an upstream-acceptable signature for an outbound request.
// *v4.Signer satisfies it directly; the client-side active-storage adapter
// wraps one with a canonical-URL rewrite.
type Signer interface {
	SignHTTP(ctx context.Context, credentials aws.Credentials, r *http.Request,
		payloadHash, service, region string, signingTime time.Time,
		optFns ...func(*v4.SignerOptions)) error
}

// Options configures a Client.
type Options struct {
	// HTTPClient issues the outbound requests. Timeouts belong here; on
	// expiry they surface as ErrUnreachable.
	HTTPClient *http.Client
	// Signer signs authenticated fetches. Defaults to a plain SigV4 signer.
	Signer Signer
	// Region is the signing region. S3-compatible stores generally accept
	// any consistent value; defaults to us-east-1.
	Region string
}

// Client fetches object byte ranges. It holds no per-request state and is
// safe for concurrent use.
type Client struct {
	httpClient *http.Client
	signer     Signer
	region     string
}

// NewClient builds a fetch client from the given options.
func NewClient(opts Options) *Client {
	c := &Client{
		httpClient: opts.HTTPClient,
		signer:     opts.Signer,
		region:     opts.Region,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if c.signer == nil {
		c.signer = v4.NewSigner()
	}
	if c.region == "" {
		c.region = "us-east-1"
	}
	return c
}

// FetchRequest identifies one byte range of one object.
type FetchRequest struct {
	// Source is the upstream base URL, e.g. "http://localhost:9000".
	Source string
	Bucket string
	Object string
	// Offset is the first byte to fetch.
	Offset int64
	// Size is the number of bytes to fetch, 0 meaning to end of object.
	Size int64
	// Credentials, when set, make the fetch a signed request. Nil issues
	// an unsigned request for anonymously readable objects.
	Credentials *aws.Credentials
}

// rangeHeader renders the HTTP range for the request, or "" for the whole
// object. Byte ranges are inclusive, hence the -1.
func (fr *FetchRequest) rangeHeader() string {
	if fr.Offset == 0 && fr.Size == 0 {
		return ""
	}
	if fr.Size == 0 {
		return fmt.Sprintf("bytes=%d-", fr.Offset)
	}
	return fmt.Sprintf("bytes=%d-%d", fr.Offset, fr.Offset+fr.Size-1)
}

// Fetch retrieves the requested byte range in a single attempt. Retries, if
// wanted, belong to the caller. The context cancels the request in flight
// without leaking the connection.
func (c *Client) Fetch(ctx context.Context, fr FetchRequest) ([]byte, error) {
	url := strings.TrimRight(fr.Source, "/") + "/" + fr.Bucket + "/" + strings.TrimLeft(fr.Object, "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building fetch request: %w", err)
	}
	if rng := fr.rangeHeader(); rng != "" {
		req.Header.Set("Range", rng)
	}

	if fr.Credentials != nil {
		if err := c.signer.SignHTTP(ctx, *fr.Credentials, req, emptyPayloadHash,
			"s3", c.region, time.Now().UTC()); err != nil {
			return nil, fmt.Errorf("signing fetch request: %w", err)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return nil, upstreamError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response body: %v", ErrUnreachable, err)
	}
	return body, nil
}

// s3ErrorDoc is the XML error document S3-compatible stores return.
// https://docs.aws.amazon.com/AmazonS3/latest/API/ErrorResponses.html
type s3ErrorDoc struct {
	XMLName  xml.Name `xml:"Error"`
	Code     string   `xml:"Code"`
	Message  string   `xml:"Message"`
	Resource string   `xml:"Resource"`
	Key      string   `xml:"Key"`
}

// upstreamError turns a non-2xx response into an UpstreamError, keeping only
// an excerpt of unparseable bodies.
func upstreamError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var doc s3ErrorDoc
	if err := xml.Unmarshal(body, &doc); err == nil && doc.Code != "" {
		resource := doc.Resource
		if resource == "" {
			resource = doc.Key
		}
		return &UpstreamError{
			StatusCode: resp.StatusCode,
			Code:       doc.Code,
			Message:    doc.Message,
			Resource:   resource,
		}
	}

	excerpt := strings.TrimSpace(string(body))
	if len(excerpt) > 256 {
		excerpt = excerpt[:256]
	}
	return &UpstreamError{
		StatusCode: resp.StatusCode,
		Message:    excerpt,
	}
}
