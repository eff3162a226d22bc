// Copyright 2025 ActiveStore
// SPDX-License-Identifier: Apache-2.0

// Package main is the entry point for the ActiveStore reduction proxy.
//
// The proxy sits in front of an S3-compatible object store and computes
// reductions (sum, min, max, mean, count, select) over byte ranges of
// stored numeric arrays, returning the result instead of the raw bytes.
//
// Usage:
//
//	./proxy
//
// Environment Variables:
//
//	ACTIVESTORE_CONFIG - path to a YAML config file
//	ACTIVESTORE_LISTEN_ADDR - listen address (default: :8080)
//	ACTIVESTORE_S3_ENDPOINT - upstream object store for path-based routes
//	ACTIVESTORE_REGION - SigV4 signing region (default: us-east-1)
//	ACTIVESTORE_UPSTREAM_TIMEOUT - upstream fetch timeout (default: 30s)
package main

import (
	"fmt"
	"os"

	"activestore/proxy/server"
)

func main() {
	if err := server.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "proxy: %v\n", err)
		os.Exit(1)
	}
}
