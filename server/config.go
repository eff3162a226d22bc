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

// Package server is the HTTP boundary of the ActiveStore proxy. It parses
// and validates reduction requests, drives the engine and upstream packages,
// and maps every error kind onto a distinct, documented status code. The
// boundary holds no cross-request state; concurrency is whatever the Go HTTP
// server provides.
package server

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the proxy's runtime settings.
type Config struct {
	// ListenAddr is the host:port the proxy serves on.
	ListenAddr string `yaml:"listen_addr"`
	// S3Endpoint is the upstream used by the path-based reducer and /obj
	// routes, which carry no source in the request.
	S3Endpoint string `yaml:"s3_endpoint"`
	// Region is the SigV4 signing region for outbound fetches.
	Region string `yaml:"region"`
	// UpstreamTimeout bounds one upstream fetch end to end.
	UpstreamTimeout time.Duration `yaml:"upstream_timeout"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	// CORSAllowedOrigins defaults to "*".
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
}

// DefaultConfig returns the settings used when no file or environment
// overrides are present.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:         ":8080",
		S3Endpoint:         "http://localhost:9000",
		Region:             "us-east-1",
		UpstreamTimeout:    30 * time.Second,
		ReadTimeout:        30 * time.Second,
		WriteTimeout:       60 * time.Second,
		CORSAllowedOrigins: []string{"*"},
	}
}

// LoadConfig reads the YAML file at path (skipped when path is empty or the
// file does not exist) and then applies ACTIVESTORE_* environment overrides,
// which win over the file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config file %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if v := os.Getenv("ACTIVESTORE_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("ACTIVESTORE_S3_ENDPOINT"); v != "" {
		cfg.S3Endpoint = v
	}
	if v := os.Getenv("ACTIVESTORE_REGION"); v != "" {
		cfg.Region = v
	}
	if v := os.Getenv("ACTIVESTORE_UPSTREAM_TIMEOUT"); v != "" {
		d, err := parseDurationOrSeconds(v)
		if err != nil {
			return nil, fmt.Errorf("ACTIVESTORE_UPSTREAM_TIMEOUT: %w", err)
		}
		cfg.UpstreamTimeout = d
	}

	return cfg, nil
}

// parseDurationOrSeconds accepts either a Go duration ("30s") or a bare
// number of seconds ("30").
func parseDurationOrSeconds(v string) (time.Duration, error) {
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(v)
}
