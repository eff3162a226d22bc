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
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Options tunes client construction.
type Options struct {
	// Region is the SigV4 signing region, defaulting to us-east-1.
	Region string
	// Discovery overrides the endpoint prober, mainly for tests.
	Discovery *Discovery
}

// New builds an s3.Client pointed at endpoint with the active-storage signer
// installed. Application code uses the returned client exactly like any
// other: GetObject against an active-storage proxy gets a signature the
// upstream store accepts for the derived request, while pointing the same
// client at a plain S3 endpoint degrades to standard SigV4 with no
// configuration change.
func New(ctx context.Context, endpoint, accessKey, secretKey string, opts Options) (*s3.Client, error) {
	region := opts.Region
	if region == "" {
		region = "us-east-1"
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	signer := NewSigner(opts.Discovery)

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
		o.HTTPSignerV4 = signer
	}), nil
}
