// Copyright 2025 ActiveStore
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"activestore/proxy/upstream"
)

func int32le(vals ...int32) []byte {
	buf := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(v))
	}
	return buf
}

// newTestRouter wires a handler against the given upstream endpoint with the
// full middleware chain, as Run does.
func newTestRouter(upstreamURL string) http.Handler {
	cfg := DefaultConfig()
	cfg.S3Endpoint = upstreamURL
	h := NewHandler(cfg, upstream.NewClient(upstream.Options{}), nil)
	r := mux.NewRouter()
	h.RegisterRoutes(r)
	return h.Middleware(r)
}

func postReduction(t *testing.T, router http.Handler, op string, body map[string]interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest("POST", "/v1/"+op+"/", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestReduceSumInt32(t *testing.T) {
	data := int32le(1, 2, 3, 4, 5)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/mybucket/data.bin" {
			t.Errorf("unexpected upstream path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}))
	defer upstream.Close()

	router := newTestRouter(upstream.URL)
	rec := postReduction(t, router, "sum", map[string]interface{}{
		"source": upstream.URL,
		"bucket": "mybucket",
		"object": "data.bin",
		"dtype":  "int32",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("x-activestorage-dtype"); got != "int32" {
		t.Errorf("dtype header = %q, want int32", got)
	}
	if got := rec.Header().Get("x-activestorage-shape"); got != "[]" {
		t.Errorf("shape header = %q, want []", got)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/octet-stream" {
		t.Errorf("content type = %q", got)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
	if !bytes.Equal(rec.Body.Bytes(), int32le(15)) {
		t.Errorf("payload = %v, want little-endian 15", rec.Body.Bytes())
	}
}

func TestReduceRangedFetch(t *testing.T) {
	// 8 int64 values; offset 16, size 24 selects values 2, 3, 4.
	data := make([]byte, 64)
	for i := int64(0); i < 8; i++ {
		binary.LittleEndian.PutUint64(data[i*8:], uint64(i))
	}
	var gotRange string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRange = r.Header.Get("Range")
		w.WriteHeader(http.StatusPartialContent)
		w.Write(data[16:40])
	}))
	defer upstream.Close()

	router := newTestRouter(upstream.URL)
	rec := postReduction(t, router, "max", map[string]interface{}{
		"source": upstream.URL,
		"bucket": "b",
		"object": "o",
		"dtype":  "int64",
		"offset": 16,
		"size":   24,
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if gotRange != "bytes=16-39" {
		t.Errorf("Range = %q, want bytes=16-39", gotRange)
	}
	want := make([]byte, 8)
	binary.LittleEndian.PutUint64(want, 4)
	if !bytes.Equal(rec.Body.Bytes(), want) {
		t.Errorf("payload = %v, want max 4", rec.Body.Bytes())
	}
}

func TestReduceWithShapeAndSelection(t *testing.T) {
	// 2x3 row-major float64 matrix; select column stride picking 1.0 and 6.0.
	vals := []float64{1, 2, 3, 4, 5, 6}
	data := make([]byte, 48)
	for i, v := range vals {
		binary.LittleEndian.PutUint64(data[i*8:], math.Float64bits(v))
	}
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(data)
	}))
	defer upstream.Close()

	router := newTestRouter(upstream.URL)
	rec := postReduction(t, router, "select", map[string]interface{}{
		"source":    upstream.URL,
		"bucket":    "b",
		"object":    "o",
		"dtype":     "float64",
		"shape":     []int{2, 3},
		"selection": [][]int{{0, 1, 1}, {0, 2, 2}},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("x-activestorage-shape"); got != "[2, 2]" {
		t.Errorf("shape header = %q, want [2, 2]", got)
	}
	want := []float64{1, 3, 4, 6}
	body := rec.Body.Bytes()
	if len(body) != 32 {
		t.Fatalf("payload length = %d, want 32", len(body))
	}
	for i, w := range want {
		got := math.Float64frombits(binary.LittleEndian.Uint64(body[i*8:]))
		if got != w {
			t.Errorf("payload[%d] = %v, want %v", i, got, w)
		}
	}
}

func TestReduceUnknownOperation(t *testing.T) {
	router := newTestRouter("http://localhost:9000")
	rec := postReduction(t, router, "median", map[string]interface{}{
		"source": "http://localhost:9000",
		"bucket": "b",
		"object": "o",
		"dtype":  "int32",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestReduceValidationErrors(t *testing.T) {
	router := newTestRouter("http://localhost:9000")
	cases := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing source", map[string]interface{}{
			"bucket": "b", "object": "o", "dtype": "int32",
		}},
		{"bad dtype", map[string]interface{}{
			"source": "http://s", "bucket": "b", "object": "o", "dtype": "int16",
		}},
		{"bad order", map[string]interface{}{
			"source": "http://s", "bucket": "b", "object": "o", "dtype": "int32", "order": "Z",
		}},
		{"negative offset", map[string]interface{}{
			"source": "http://s", "bucket": "b", "object": "o", "dtype": "int32", "offset": -4,
		}},
		{"misaligned offset", map[string]interface{}{
			"source": "http://s", "bucket": "b", "object": "o", "dtype": "int64", "offset": 12,
		}},
		{"zero size", map[string]interface{}{
			"source": "http://s", "bucket": "b", "object": "o", "dtype": "int32", "size": 0,
		}},
		{"ragged selection", map[string]interface{}{
			"source": "http://s", "bucket": "b", "object": "o", "dtype": "int32",
			"selection": [][]int{{0, 1}},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postReduction(t, router, "sum", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400, body = %s", rec.Code, rec.Body.String())
			}
			var body detailBody
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.Detail == "" {
				t.Errorf("expected detail envelope, got %s", rec.Body.String())
			}
		})
	}
}

func TestReduceUpstreamErrorRelayed(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `<?xml version="1.0"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message><Key>missing.bin</Key></Error>`)
	}))
	defer upstream.Close()

	router := newTestRouter(upstream.URL)
	rec := postReduction(t, router, "min", map[string]interface{}{
		"source": upstream.URL,
		"bucket": "b",
		"object": "missing.bin",
		"dtype":  "int32",
	})

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var body awsErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Code != "NoSuchKey" {
		t.Errorf("aws_error_code = %q, want NoSuchKey", body.Code)
	}
}

func TestReduceUnreachableUpstream(t *testing.T) {
	router := newTestRouter("http://127.0.0.1:1")
	rec := postReduction(t, router, "sum", map[string]interface{}{
		"source": "http://127.0.0.1:1",
		"bucket": "b",
		"object": "o",
		"dtype":  "int32",
	})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

func TestReduceBasicAuthForwardedAsSignature(t *testing.T) {
	var gotAuth string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write(int32le(7))
	}))
	defer upstream.Close()

	router := newTestRouter(upstream.URL)
	raw, _ := json.Marshal(map[string]interface{}{
		"source": upstream.URL,
		"bucket": "b",
		"object": "o",
		"dtype":  "int32",
	})
	req := httptest.NewRequest("POST", "/v1/count/", bytes.NewReader(raw))
	req.SetBasicAuth("minioadmin", "minioadmin")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.HasPrefix(gotAuth, "AWS4-HMAC-SHA256 Credential=minioadmin/") {
		t.Errorf("upstream Authorization = %q, want SigV4 for minioadmin", gotAuth)
	}
	// count always returns int64 regardless of the source dtype.
	if got := rec.Header().Get("x-activestorage-dtype"); got != "int64" {
		t.Errorf("dtype header = %q, want int64", got)
	}
}

func TestReducePathRoute(t *testing.T) {
	var gotPath, gotAuth string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Write(int32le(10, 20, 30))
	}))
	defer upstream.Close()

	router := newTestRouter(upstream.URL)
	req := httptest.NewRequest("GET", "/max/int32/mybucket/chunk.bin", nil)
	req.Header.Set("Authorization", "AWS4-HMAC-SHA256 Credential=presigned/...")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if gotPath != "/mybucket/chunk.bin" {
		t.Errorf("upstream path = %q", gotPath)
	}
	if !strings.HasPrefix(gotAuth, "AWS4-HMAC-SHA256") {
		t.Errorf("caller signature not forwarded, got %q", gotAuth)
	}
	if !bytes.Equal(rec.Body.Bytes(), int32le(30)) {
		t.Errorf("payload = %v, want max 30", rec.Body.Bytes())
	}
}

func TestReducePathRelaysUpstreamFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `<Error><Code>SignatureDoesNotMatch</Code></Error>`)
	}))
	defer upstream.Close()

	router := newTestRouter(upstream.URL)
	req := httptest.NewRequest("GET", "/sum/int32/b/o", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "SignatureDoesNotMatch") {
		t.Errorf("upstream body not relayed: %s", rec.Body.String())
	}
}

func TestPassThrough(t *testing.T) {
	payload := []byte("raw object bytes")
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/b/raw.bin" {
			t.Errorf("upstream path = %q", r.URL.Path)
		}
		w.Write(payload)
	}))
	defer upstream.Close()

	router := newTestRouter(upstream.URL)
	req := httptest.NewRequest("GET", "/obj/b/raw.bin", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !bytes.Equal(rec.Body.Bytes(), payload) {
		t.Errorf("body = %q, want %q", rec.Body.Bytes(), payload)
	}
}

func TestWellKnownDocument(t *testing.T) {
	router := newTestRouter("http://minio.internal:9000")
	req := httptest.NewRequest("GET", "/.well-known/s3-active-storage", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var doc struct {
		Version   string   `json:"active_storage_version"`
		Endpoint  string   `json:"s3_endpoint"`
		Reducers  []string `json:"available_reducers"`
		Datatypes []string `json:"supported_datatypes"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc.Version != "v1" {
		t.Errorf("version = %q", doc.Version)
	}
	if doc.Endpoint != "http://minio.internal:9000" {
		t.Errorf("s3_endpoint = %q", doc.Endpoint)
	}
	for _, want := range []string{"sum", "min", "max", "count", "select", "mean"} {
		found := false
		for _, r := range doc.Reducers {
			if r == want {
				found = true
			}
		}
		if !found {
			t.Errorf("reducer %q missing from %v", want, doc.Reducers)
		}
	}
	if len(doc.Datatypes) != 6 {
		t.Errorf("datatypes = %v, want 6 entries", doc.Datatypes)
	}
}

func TestHealth(t *testing.T) {
	router := newTestRouter("http://localhost:9000")
	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "healthy") {
		t.Errorf("body = %s", rec.Body.String())
	}
}
