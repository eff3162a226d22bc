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

package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"activestore/proxy/engine"
	"activestore/proxy/shared/logger"
	"activestore/proxy/upstream"
)

// Response headers carrying the result metadata the caller needs to
// reconstruct a typed array from the payload.
const (
	headerDType = "x-activestorage-dtype"
	headerShape = "x-activestorage-shape"
)

// Handler serves the reduction API.
type Handler struct {
	cfg    *Config
	client *upstream.Client
	log    *logger.Logger
}

// NewHandler creates a handler backed by the given upstream client.
func NewHandler(cfg *Config, client *upstream.Client, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.New("server")
	}
	return &Handler{cfg: cfg, client: client, log: log}
}

// RegisterRoutes registers all proxy routes with a gorilla/mux router.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.Health).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/.well-known/s3-active-storage", h.WellKnown).Methods("GET")

	// JSON body API: one endpoint per reducer.
	r.HandleFunc("/v1/{operation}/", h.Reduce).Methods("POST")
	r.HandleFunc("/v1/{operation}", h.Reduce).Methods("POST")

	// Path-based API with signature passthrough, plus raw object access.
	r.HandleFunc("/obj/{path:.+}", h.PassThrough).Methods("GET")
	r.HandleFunc("/{operation}/{dtype}/{path:.+}", h.ReducePath).Methods("GET")
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// WellKnown serves the active-storage discovery document consumed by
// client-side signature adapters.
func (h *Handler) WellKnown(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"active_storage_version": "v1",
		"s3_endpoint":            h.cfg.S3Endpoint,
		"available_reducers":     engine.ReducerNames(),
		"supported_datatypes":    engine.DTypeNames(),
	})
}

// reductionRequest is the JSON body of a POST /v1/{operation}/ call.
type reductionRequest struct {
	Source    string  `json:"source"`
	Bucket    string  `json:"bucket"`
	Object    string  `json:"object"`
	DType     string  `json:"dtype"`
	Offset    *int64  `json:"offset"`
	Size      *int64  `json:"size"`
	Shape     []int   `json:"shape"`
	Order     string  `json:"order"`
	Selection [][]int `json:"selection"`
}

// parse validates the request body and assembles the descriptor and
// selection the engine consumes.
func (rr *reductionRequest) parse() (*engine.ArrayDescriptor, engine.SelectionSpec, error) {
	if rr.Source == "" || rr.Bucket == "" || rr.Object == "" {
		return nil, nil, &engine.ValidationError{
			Kind:    engine.ShapeMismatch,
			Message: "source, bucket and object are required",
		}
	}

	dtype, err := engine.ParseDType(rr.DType)
	if err != nil {
		return nil, nil, err
	}
	order, err := engine.ParseOrder(rr.Order)
	if err != nil {
		return nil, nil, err
	}

	desc := &engine.ArrayDescriptor{DType: dtype, Shape: rr.Shape, Order: order}
	if rr.Offset != nil {
		width := int64(dtype.Size())
		if *rr.Offset < 0 || *rr.Offset%width != 0 {
			return nil, nil, &engine.ValidationError{
				Kind: engine.ShapeMismatch,
				Message: fmt.Sprintf(
					"offset parameter must be non-negative and divisible by the number of bytes in dtype (i.e. %d for dtype %s), given offset = %d",
					width, dtype, *rr.Offset),
			}
		}
		desc.ByteOffset = *rr.Offset
	}
	if rr.Size != nil {
		if *rr.Size < 1 {
			return nil, nil, &engine.ValidationError{
				Kind:    engine.ShapeMismatch,
				Message: fmt.Sprintf("size parameter must be positive, given size = %d", *rr.Size),
			}
		}
		desc.ByteSize = *rr.Size
	}

	var sel engine.SelectionSpec
	if rr.Selection != nil {
		sel = make(engine.SelectionSpec, len(rr.Selection))
		for i, triple := range rr.Selection {
			if len(triple) != 3 {
				return nil, nil, &engine.ValidationError{
					Kind:    engine.SelectionOutOfBounds,
					Message: fmt.Sprintf("selection[%d] must be a [start, end, stride] triple", i),
				}
			}
			sel[i] = engine.AxisRange{Start: triple[0], End: triple[1], Stride: triple[2]}
		}
	}
	return desc, sel, nil
}

// Reduce handles POST /v1/{operation}/: fetch the declared byte range from
// the request's own source and run the reduction pipeline over it.
func (h *Handler) Reduce(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	opName := mux.Vars(r)["operation"]
	requestID := requestIDFrom(r.Context())

	op, err := engine.ParseReducer(opName)
	if err != nil {
		promRequestsTotal.WithLabelValues(opName, "error").Inc()
		writeJSON(w, http.StatusNotFound, detailBody{Detail: err.Error()})
		return
	}

	var body reductionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.fail(w, requestID, opName, &engine.ValidationError{
			Kind:    engine.ShapeMismatch,
			Message: fmt.Sprintf("invalid request body: %v", err),
		})
		return
	}

	desc, sel, err := body.parse()
	if err != nil {
		h.fail(w, requestID, opName, err)
		return
	}

	fetchStart := time.Now()
	buf, err := h.client.Fetch(r.Context(), upstream.FetchRequest{
		Source:      body.Source,
		Bucket:      body.Bucket,
		Object:      body.Object,
		Offset:      desc.ByteOffset,
		Size:        desc.ByteSize,
		Credentials: basicCredentials(r),
	})
	promUpstreamFetchDuration.Observe(float64(time.Since(fetchStart).Microseconds()) / 1000.0)
	if err != nil {
		h.fail(w, requestID, opName, err)
		return
	}
	promFetchedBytes.Add(float64(len(buf)))

	red, err := engine.Run(buf, desc, sel, op)
	if err != nil {
		h.fail(w, requestID, opName, err)
		return
	}

	h.writeResult(w, red)
	promRequestsTotal.WithLabelValues(opName, "success").Inc()
	promRequestDuration.WithLabelValues(opName).Observe(float64(time.Since(start).Microseconds()) / 1000.0)
}

// ReducePath handles GET /{operation}/{dtype}/{object path}: the caller's
// headers, including a signature computed over the canonical object URL, are
// forwarded to the configured upstream, and the returned chunk is reduced as
// a one-dimensional array of the path's dtype.
func (h *Handler) ReducePath(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	vars := mux.Vars(r)
	opName := vars["operation"]
	requestID := requestIDFrom(r.Context())

	op, err := engine.ParseReducer(opName)
	if err != nil {
		promRequestsTotal.WithLabelValues(opName, "error").Inc()
		writeJSON(w, http.StatusNotFound, detailBody{Detail: err.Error()})
		return
	}
	dtype, err := engine.ParseDType(vars["dtype"])
	if err != nil {
		h.fail(w, requestID, opName, err)
		return
	}

	res, err := h.client.Forward(r.Context(), h.cfg.S3Endpoint, vars["path"], r.Header)
	if err != nil {
		h.fail(w, requestID, opName, err)
		return
	}
	if !res.OK() {
		h.relay(w, res)
		promRequestsTotal.WithLabelValues(opName, "upstream_error").Inc()
		return
	}
	promFetchedBytes.Add(float64(len(res.Body)))

	red, err := engine.Run(res.Body, &engine.ArrayDescriptor{DType: dtype}, nil, op)
	if err != nil {
		h.fail(w, requestID, opName, err)
		return
	}

	h.writeResult(w, red)
	promRequestsTotal.WithLabelValues(opName, "success").Inc()
	promRequestDuration.WithLabelValues(opName).Observe(float64(time.Since(start).Microseconds()) / 1000.0)
}

// PassThrough handles GET /obj/{object path}: the upstream response is
// relayed unchanged, success or not.
func (h *Handler) PassThrough(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r.Context())

	res, err := h.client.Forward(r.Context(), h.cfg.S3Endpoint, mux.Vars(r)["path"], r.Header)
	if err != nil {
		h.fail(w, requestID, "obj", err)
		return
	}
	h.relay(w, res)
	promRequestsTotal.WithLabelValues("obj", strconv.Itoa(res.StatusCode)).Inc()
}

// writeResult sends a successful reduction payload with its metadata headers.
func (h *Handler) writeResult(w http.ResponseWriter, red *engine.Reduction) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set(headerDType, red.DType)
	w.Header().Set(headerShape, engine.ShapeJSON(red.Shape))
	w.WriteHeader(http.StatusOK)
	w.Write(red.Payload)
	promResultBytes.Add(float64(len(red.Payload)))
}

// relay copies an upstream response through to the caller.
func (h *Handler) relay(w http.ResponseWriter, res *upstream.ForwardResult) {
	if ct := res.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(res.StatusCode)
	w.Write(res.Body)
}

// fail logs the error, counts it, and writes the mapped response.
func (h *Handler) fail(w http.ResponseWriter, requestID, operation string, err error) {
	status := statusFor(err)
	h.log.ErrorWithCode(requestID, "request failed", status, err, map[string]interface{}{
		"operation": operation,
	})
	promRequestsTotal.WithLabelValues(operation, "error").Inc()
	writeError(w, err)
}

// basicCredentials maps HTTP Basic auth onto upstream access/secret keys.
// Requests without credentials fetch anonymously.
func basicCredentials(r *http.Request) *aws.Credentials {
	user, pass, ok := r.BasicAuth()
	if !ok {
		return nil
	}
	return &aws.Credentials{AccessKeyID: user, SecretAccessKey: pass}
}
