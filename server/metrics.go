// Copyright 2025 ActiveStore
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics
var (
	promRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "activestore_requests_total",
			Help: "Total number of reduction requests processed by the proxy",
		},
		[]string{"operation", "status"},
	)
	promRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "activestore_request_duration_milliseconds",
			Help:    "Request duration in milliseconds",
			Buckets: []float64{1, 5, 10, 50, 100, 200, 500, 1000, 2000, 5000},
		},
		[]string{"operation"},
	)
	promUpstreamFetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "activestore_upstream_fetch_duration_milliseconds",
			Help:    "Upstream byte-range fetch duration in milliseconds",
			Buckets: []float64{1, 5, 10, 50, 100, 200, 500, 1000, 2000, 5000},
		},
	)
	promFetchedBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "activestore_fetched_bytes_total",
			Help: "Total bytes fetched from upstream object stores",
		},
	)
	promResultBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "activestore_result_bytes_total",
			Help: "Total bytes of reduction results returned to callers",
		},
	)
)

func init() {
	prometheus.MustRegister(promRequestsTotal)
	prometheus.MustRegister(promRequestDuration)
	prometheus.MustRegister(promUpstreamFetchDuration)
	prometheus.MustRegister(promFetchedBytes)
	prometheus.MustRegister(promResultBytes)
}
